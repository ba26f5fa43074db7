package vault_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/grexie/confidential-defi/pkg/storage/memory"
	"github.com/grexie/confidential-defi/pkg/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hardhatKey0 = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

var (
	hardhatAccount0 = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	hardhatAccount1 = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
)

func TestMnemonicAccounts(t *testing.T) {
	ctx := context.Background()
	v, err := vault.NewVault(vault.Options{
		Mnemonic: vault.DefaultMnemonic,
		Count:    2,
		Names:    []string{"deployer", "alice"},
	})
	require.NoError(t, err)

	wallets, err := v.Wallets(ctx)
	require.NoError(t, err)
	require.Len(t, wallets, 2)

	assert.Equal(t, hardhatAccount0, wallets[0].Address())
	assert.Equal(t, hardhatAccount1, wallets[1].Address())
	assert.Equal(t, "deployer", wallets[0].Name())
	assert.Equal(t, vault.SourceMnemonic, wallets[1].Source())

	key, err := wallets[0].PrivateKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, hardhatKey0[2:], common.Bytes2Hex(crypto.FromECDSA(&key)))
}

func TestInvalidMnemonic(t *testing.T) {
	_, err := vault.NewVault(vault.Options{Mnemonic: "not a mnemonic"})
	assert.Error(t, err)
}

func TestGetWalletByIndexAndAddress(t *testing.T) {
	ctx := context.Background()
	v, err := vault.NewVault(vault.Options{PrivateKeys: []string{hardhatKey0}})
	require.NoError(t, err)

	w, err := v.GetWallet(ctx, "0")
	require.NoError(t, err)
	assert.Equal(t, hardhatAccount0, w.Address())
	assert.Equal(t, vault.SourcePrivateKey, w.Source())

	w, err = v.GetWallet(ctx, hardhatAccount0.Hex())
	require.NoError(t, err)
	assert.Equal(t, 0, w.Index())

	_, err = v.GetWallet(ctx, "3")
	assert.True(t, errors.Is(err, vault.ErrWalletNotFound))

	_, err = v.GetWallet(ctx, hardhatAccount1.Hex())
	assert.True(t, errors.Is(err, vault.ErrWalletNotFound))

	_, err = v.GetWallet(ctx, "bob")
	assert.True(t, errors.Is(err, vault.ErrWalletNotFound))
}

func TestImportWallet(t *testing.T) {
	ctx := context.Background()
	storage := memory.NewMemoryStorageBackend()

	v, err := vault.NewVault(vault.Options{MasterKey: "correct horse battery staple"})
	require.NoError(t, err)
	require.NoError(t, v.SetStorageBackend(storage))
	assert.Error(t, v.SetStorageBackend(storage))

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(key.PublicKey)

	w, err := v.ImportWallet(ctx, "carol", common.Bytes2Hex(crypto.FromECDSA(key)))
	require.NoError(t, err)
	assert.Equal(t, address, w.Address())
	assert.Equal(t, vault.SourceImported, w.Source())
	assert.Equal(t, "carol", w.Name())

	a, err := storage.GetAccount(ctx, address)
	require.NoError(t, err)
	assert.NotContains(t, string(a.EncryptedPrivateKey()), string(crypto.FromECDSA(key)))

	pk, err := w.PrivateKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, crypto.FromECDSA(key), crypto.FromECDSA(&pk))

	other, err := vault.NewVault(vault.Options{MasterKey: "wrong"})
	require.NoError(t, err)
	require.NoError(t, other.SetStorageBackend(storage))

	w, err = other.GetWallet(ctx, address.Hex())
	require.NoError(t, err)
	_, err = w.PrivateKey(ctx)
	assert.Error(t, err)
}

func TestImportWalletRequiresMasterKey(t *testing.T) {
	v, err := vault.NewVault(vault.Options{})
	require.NoError(t, err)
	require.NoError(t, v.SetStorageBackend(memory.NewMemoryStorageBackend()))

	_, err = v.ImportWallet(context.Background(), "", hardhatKey0)
	assert.True(t, errors.Is(err, vault.ErrImportUnavailable))
}

func TestImportWalletRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	v, err := vault.NewVault(vault.Options{PrivateKeys: []string{hardhatKey0}, MasterKey: "k"})
	require.NoError(t, err)
	require.NoError(t, v.SetStorageBackend(memory.NewMemoryStorageBackend()))

	_, err = v.ImportWallet(ctx, "again", hardhatKey0)
	assert.True(t, errors.Is(err, vault.ErrWalletExists))

	_, err = v.ImportWallet(ctx, "bad", "0x1234")
	assert.True(t, errors.Is(err, vault.ErrInvalidPrivateKey))

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	_, err = v.ImportWallet(ctx, "carol", common.Bytes2Hex(crypto.FromECDSA(key)))
	require.NoError(t, err)
	_, err = v.ImportWallet(ctx, "carol", common.Bytes2Hex(crypto.FromECDSA(key)))
	assert.True(t, errors.Is(err, vault.ErrWalletExists))
}
