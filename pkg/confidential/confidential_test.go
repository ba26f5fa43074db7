package confidential_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/grexie/confidential-defi/pkg/confidential"
	"github.com/grexie/confidential-defi/pkg/contracts/simulated"
	"github.com/grexie/confidential-defi/pkg/fhevm"
	"github.com/grexie/confidential-defi/pkg/fhevm/mock"
	"github.com/grexie/confidential-defi/pkg/signer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	service confidential.Service
	network *simulated.Network
	owner   signer.Signer
	alice   signer.Signer
}

func newSigner(t *testing.T) signer.Signer {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return signer.FromPrivateKey(key)
}

func setup(t *testing.T) fixture {
	t.Helper()

	config := fhevm.LocalConfig
	config.RelayerURL = "http://relayer.test"

	relayer, err := mock.NewRelayer(config)
	require.NoError(t, err)

	instance, err := fhevm.CreateInstance(context.Background(), config, fhevm.WithHTTPClient(relayer.HTTPClient()))
	require.NoError(t, err)

	owner, alice := newSigner(t), newSigner(t)
	network := simulated.NewNetwork(relayer, owner.Address())

	service, err := confidential.NewService(confidential.Options{
		Instance:          instance,
		Waiter:            network.Chain,
		ConfidentialETH:   network.ConfidentialETH,
		ConfidentialVault: network.ConfidentialVault,
		ConfidentialAAVE:  network.ConfidentialAAVE,
	})
	require.NoError(t, err)

	return fixture{service: service, network: network, owner: owner, alice: alice}
}

func TestFaucetRevealsBalance(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	b, err := f.service.CETHBalance(ctx, f.alice)
	require.NoError(t, err)
	assert.True(t, b.Handle.IsZero())
	assert.Equal(t, "0", b.Formatted)

	b, err = f.service.Faucet(ctx, f.alice)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), b.Value.Int64())
	assert.Equal(t, "1", b.Formatted)

	b, err = f.service.Faucet(ctx, f.alice)
	require.NoError(t, err)
	assert.Equal(t, "2", b.Formatted)
}

func TestVaultRequiresOperator(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.service.Faucet(ctx, f.alice)
	require.NoError(t, err)

	ok, err := f.service.IsOperator(ctx, f.alice.Address())
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.service.VaultDeposit(ctx, f.alice, 1_000_000)
	assert.True(t, errors.Is(err, confidential.ErrTransactionReverted))
}

func TestVaultDepositWithdraw(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.service.Faucet(ctx, f.alice)
	require.NoError(t, err)

	_, err = f.service.AuthorizeVault(ctx, f.alice)
	require.NoError(t, err)

	ok, err := f.service.IsOperator(ctx, f.alice.Address())
	require.NoError(t, err)
	assert.True(t, ok)

	b, err := f.service.VaultDeposit(ctx, f.alice, 1_000_000)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), b.Value.Int64())
	assert.Equal(t, f.network.ConfidentialVault.Address(), b.Contract)

	b, err = f.service.VaultWithdraw(ctx, f.alice, 400_000)
	require.NoError(t, err)
	assert.Equal(t, int64(600_000), b.Value.Int64())
	assert.Equal(t, "0.6", b.Formatted)

	b, err = f.service.CETHBalance(ctx, f.alice)
	require.NoError(t, err)
	assert.Equal(t, int64(400_000), b.Value.Int64())
}

func TestVaultProgress(t *testing.T) {
	f := setup(t)

	_, err := f.service.Faucet(context.Background(), f.alice)
	require.NoError(t, err)
	_, err = f.service.AuthorizeVault(context.Background(), f.alice)
	require.NoError(t, err)

	var statuses []string
	ctx := confidential.WithProgress(context.Background(), func(s string) {
		statuses = append(statuses, s)
	})

	_, err = f.service.VaultDeposit(ctx, f.alice, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Encrypting amount...",
		"Sending transaction...",
		"Transaction submitted. Waiting for confirmation...",
		"Deposit successful!",
	}, statuses)
}

func TestAAVEFlows(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	supply, err := f.service.AAVETotalSupply(ctx, f.owner)
	require.NoError(t, err)
	assert.Equal(t, int64(0), supply.Value.Int64())

	e, err := f.service.AAVELastError(ctx, f.alice)
	require.NoError(t, err)
	assert.Equal(t, "NO_ERROR", e.Name)

	_, err = f.service.AAVEDeposit(ctx, f.alice, 500)
	require.NoError(t, err)
	_, err = f.service.AAVEDeposit(ctx, f.alice, 300)
	require.NoError(t, err)

	b, err := f.service.AAVEBalance(ctx, f.alice)
	require.NoError(t, err)
	assert.Equal(t, int64(800), b.Value.Int64())
	assert.Equal(t, "800", b.Formatted)

	supply, err = f.service.AAVETotalSupply(ctx, f.owner)
	require.NoError(t, err)
	assert.Equal(t, int64(800), supply.Value.Int64())

	_, err = f.service.AAVEDeposit(ctx, f.alice, 0)
	require.NoError(t, err)
	e, err = f.service.AAVELastError(ctx, f.alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), e.Code)
	assert.Equal(t, "INVALID_AMOUNT", e.Name)

	_, err = f.service.AAVEWithdraw(ctx, f.alice, 5000)
	require.NoError(t, err)
	e, err = f.service.AAVELastError(ctx, f.alice)
	require.NoError(t, err)
	assert.Equal(t, "INSUFFICIENT_BALANCE", e.Name)

	_, err = f.service.AAVEWithdraw(ctx, f.alice, 300)
	require.NoError(t, err)
	b, err = f.service.AAVEBalance(ctx, f.alice)
	require.NoError(t, err)
	assert.Equal(t, int64(500), b.Value.Int64())

	info, err := f.service.AAVEInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, f.network.ConfidentialTestCoin, info.Token)
	assert.Equal(t, f.network.ConfidentialAAVE.Address(), info.Contract)
}

func TestRevertedTransaction(t *testing.T) {
	f := setup(t)

	f.network.Chain.FailNext()
	_, err := f.service.Faucet(context.Background(), f.alice)
	assert.True(t, errors.Is(err, confidential.ErrTransactionReverted))
}

func TestMissingContract(t *testing.T) {
	f := setup(t)

	config := fhevm.LocalConfig
	config.RelayerURL = "http://relayer.test"
	relayer, err := mock.NewRelayer(config)
	require.NoError(t, err)
	instance, err := fhevm.CreateInstance(context.Background(), config, fhevm.WithHTTPClient(relayer.HTTPClient()))
	require.NoError(t, err)

	service, err := confidential.NewService(confidential.Options{Instance: instance, Waiter: f.network.Chain})
	require.NoError(t, err)

	_, err = service.AAVEInfo(context.Background())
	assert.True(t, errors.Is(err, confidential.ErrContractNotConfigured))

	_, err = service.IsOperator(context.Background(), f.alice.Address())
	assert.True(t, errors.Is(err, confidential.ErrContractNotConfigured))
}

func TestErrorName(t *testing.T) {
	assert.Equal(t, "NO_ERROR", confidential.ErrorName(0))
	assert.Equal(t, "INSUFFICIENT_BALANCE", confidential.ErrorName(1))
	assert.Equal(t, "INVALID_AMOUNT", confidential.ErrorName(2))
	assert.Equal(t, "UNKNOWN_ERROR", confidential.ErrorName(7))
}
