package deploy_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/grexie/confidential-defi/pkg/chain"
	"github.com/grexie/confidential-defi/pkg/contracts"
	"github.com/grexie/confidential-defi/pkg/deploy"
	"github.com/grexie/confidential-defi/pkg/signer"
	"github.com/grexie/confidential-defi/pkg/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	name string
	args []any
}

type fakeDeployer struct {
	nonce uint64
	calls []call
}

func (d *fakeDeployer) DeployContract(ctx context.Context, name string, from signer.Signer, args ...any) (*deploy.Pending, error) {
	d.calls = append(d.calls, call{name: name, args: args})
	tx := types.NewTx(&types.LegacyTx{Nonce: d.nonce, Data: []byte(name)})
	address := crypto.CreateAddress(from.Address(), d.nonce)
	d.nonce++
	return &deploy.Pending{Address: address, Transaction: tx}, nil
}

func (d *fakeDeployer) names() []string {
	out := []string{}
	for _, c := range d.calls {
		out = append(out, c.name)
	}
	return out
}

type fakeWaiter struct {
	revert bool
}

func (w *fakeWaiter) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	status := types.ReceiptStatusSuccessful
	if w.revert {
		status = types.ReceiptStatusFailed
	}
	return chain.CheckReceipt(&types.Receipt{Status: status, TxHash: tx.Hash()}, nil)
}

func newEnv(t *testing.T, deployer deploy.Deployer, waiter chain.Waiter) (*deploy.Env, *memory.Backend) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	storage := memory.NewMemoryStorageBackend()
	return &deploy.Env{
		Network:     "localhost",
		Deployer:    signer.FromPrivateKey(key),
		Deployments: deploy.NewDeployments("localhost", storage, deployer, waiter),
	}, storage
}

func TestRunAAVEDeploysDependenciesFirst(t *testing.T) {
	ctx := context.Background()
	deployer := &fakeDeployer{}
	env, storage := newEnv(t, deployer, &fakeWaiter{})

	runner := deploy.NewRunner(storage, deploy.DefaultScripts()...)
	ran, err := runner.Run(ctx, env, contracts.ConfidentialAAVEName)
	require.NoError(t, err)
	assert.Equal(t, []string{"deploy_confidential_test_coin", "deploy_confidential_aave"}, ran)
	assert.Equal(t, []string{contracts.ConfidentialTestCoinName, contracts.ConfidentialAAVEName}, deployer.names())

	coin, err := env.Deployments.Get(ctx, contracts.ConfidentialTestCoinName)
	require.NoError(t, err)
	assert.Equal(t, []any{coin.Address()}, deployer.calls[1].args)

	ran, err = runner.Run(ctx, env, contracts.ConfidentialAAVEName)
	require.NoError(t, err)
	assert.Empty(t, ran)
	assert.Len(t, deployer.calls, 2)
}

func TestRunAll(t *testing.T) {
	ctx := context.Background()
	deployer := &fakeDeployer{}
	env, storage := newEnv(t, deployer, &fakeWaiter{})

	ran, err := deploy.NewRunner(storage, deploy.DefaultScripts()...).Run(ctx, env)
	require.NoError(t, err)
	assert.Equal(t, []string{"deploy_all", "deploy_confidential_test_coin", "deploy_confidential_aave"}, ran)
	assert.Equal(t, []string{
		contracts.FHECounterName,
		contracts.ConfidentialETHName,
		contracts.ConfidentialVaultName,
		contracts.ConfidentialTestCoinName,
		contracts.ConfidentialAAVEName,
	}, deployer.names())

	ceth, err := env.Deployments.Get(ctx, contracts.ConfidentialETHName)
	require.NoError(t, err)
	vault, err := env.Deployments.Get(ctx, contracts.ConfidentialVaultName)
	require.NoError(t, err)
	assert.Equal(t, []string{ceth.Address().Hex()}, vault.Args())
}

func TestDeployReuse(t *testing.T) {
	ctx := context.Background()
	deployer := &fakeDeployer{}
	env, _ := newEnv(t, deployer, &fakeWaiter{})

	first, err := env.Deployments.Deploy(ctx, "ConfidentialVault", deploy.Options{From: env.Deployer, Args: []any{common.HexToAddress("0x01")}})
	require.NoError(t, err)
	assert.True(t, first.NewlyDeployed)

	same, err := env.Deployments.Deploy(ctx, "ConfidentialVault", deploy.Options{From: env.Deployer, Args: []any{common.HexToAddress("0x01")}})
	require.NoError(t, err)
	assert.False(t, same.NewlyDeployed)
	assert.Equal(t, first.Address, same.Address)

	changed, err := env.Deployments.Deploy(ctx, "ConfidentialVault", deploy.Options{From: env.Deployer, Args: []any{common.HexToAddress("0x02")}})
	require.NoError(t, err)
	assert.True(t, changed.NewlyDeployed)
	assert.NotEqual(t, first.Address, changed.Address)

	skipped, err := env.Deployments.Deploy(ctx, "ConfidentialVault", deploy.Options{From: env.Deployer, Args: []any{common.HexToAddress("0x03")}, SkipIfAlreadyDeployed: true})
	require.NoError(t, err)
	assert.False(t, skipped.NewlyDeployed)
	assert.Equal(t, changed.Address, skipped.Address)
}

func TestDeployReverted(t *testing.T) {
	env, _ := newEnv(t, &fakeDeployer{}, &fakeWaiter{revert: true})

	_, err := env.Deployments.Deploy(context.Background(), "FHECounter", deploy.Options{From: env.Deployer})
	assert.True(t, errors.Is(err, chain.ErrTransactionReverted))

	_, err = env.Deployments.Get(context.Background(), "FHECounter")
	assert.Error(t, err)
}

func TestPlanErrors(t *testing.T) {
	noop := func(context.Context, *deploy.Env) error { return nil }
	storage := memory.NewMemoryStorageBackend()

	_, err := deploy.NewRunner(storage, deploy.Script{ID: "a", Tags: []string{"A"}, Dependencies: []string{"Missing"}, Run: noop}).Plan()
	assert.ErrorContains(t, err, "Missing")

	_, err = deploy.NewRunner(storage,
		deploy.Script{ID: "a", Tags: []string{"A"}, Dependencies: []string{"B"}, Run: noop},
		deploy.Script{ID: "b", Tags: []string{"B"}, Dependencies: []string{"A"}, Run: noop},
	).Plan()
	assert.ErrorContains(t, err, "cycle")

	_, err = deploy.NewRunner(storage, deploy.DefaultScripts()...).Plan("Unknown")
	assert.Error(t, err)
}

func TestScriptFailureIsNotRecorded(t *testing.T) {
	ctx := context.Background()
	env, storage := newEnv(t, &fakeDeployer{}, &fakeWaiter{})

	calls := 0
	failing := deploy.Script{ID: "flaky", Tags: []string{"Flaky"}, Run: func(context.Context, *deploy.Env) error {
		calls++
		if calls == 1 {
			return errors.New("boom")
		}
		return nil
	}}

	runner := deploy.NewRunner(storage, failing)
	_, err := runner.Run(ctx, env)
	assert.ErrorContains(t, err, "boom")

	ran, err := runner.Run(ctx, env)
	require.NoError(t, err)
	assert.Equal(t, []string{"flaky"}, ran)
}

func TestUnnamedScriptsKeepRegistrationIndex(t *testing.T) {
	ctx := context.Background()
	env, storage := newEnv(t, &fakeDeployer{}, &fakeWaiter{})
	noop := func(context.Context, *deploy.Env) error { return nil }

	runner := deploy.NewRunner(storage,
		deploy.Script{Tags: []string{"X"}, Run: noop},
		deploy.Script{Tags: []string{"Y"}, Run: noop},
		deploy.Script{Tags: []string{"Z"}, Run: func(context.Context, *deploy.Env) error { return errors.New("boom") }},
	)

	ran, err := runner.Run(ctx, env, "Y")
	require.NoError(t, err)
	assert.Equal(t, []string{"#1"}, ran)

	_, err = runner.Run(ctx, env, "Z")
	assert.ErrorContains(t, err, "script #2")

	_, err = deploy.NewRunner(storage,
		deploy.Script{Tags: []string{"X"}, Run: noop},
		deploy.Script{Tags: []string{"Y"}, Dependencies: []string{"Missing"}, Run: noop},
	).Plan("Y")
	assert.ErrorContains(t, err, "script #1")
}
