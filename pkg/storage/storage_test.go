package storage_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/grexie/confidential-defi/pkg/storage"
	"github.com/grexie/confidential-defi/pkg/storage/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileBackendPersists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	opts := storage.Options{Backend: "file", DeploymentsDir: dir}

	b, err := storage.NewStorage(ctx, opts)
	require.NoError(t, err)

	address := common.HexToAddress("0x00000000000000000000000000000000000000c1")
	hash := common.HexToHash("0x01")
	_, err = b.SaveDeployment(ctx, "localhost", "ConfidentialETH", address, hash, []string{}, nil)
	require.NoError(t, err)
	require.NoError(t, b.MarkScriptExecuted(ctx, "localhost", "deploy_all"))

	account := common.HexToAddress("0x00000000000000000000000000000000000000d1")
	_, err = b.CreateAccount(ctx, "alice", account, []byte{1, 2, 3})
	require.NoError(t, err)

	reopened, err := storage.NewStorage(ctx, opts)
	require.NoError(t, err)

	d, err := reopened.GetDeployment(ctx, "localhost", "ConfidentialETH")
	require.NoError(t, err)
	assert.Equal(t, address, d.Address())
	assert.Equal(t, hash, d.TransactionHash())

	executed, err := reopened.IsScriptExecuted(ctx, "localhost", "deploy_all")
	require.NoError(t, err)
	assert.True(t, executed)

	executed, err = reopened.IsScriptExecuted(ctx, "sepolia", "deploy_all")
	require.NoError(t, err)
	assert.False(t, executed)

	a, err := reopened.GetAccount(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, "alice", a.Name())
	assert.Equal(t, []byte{1, 2, 3}, a.EncryptedPrivateKey())
}

func TestMemoryBackendNotFound(t *testing.T) {
	ctx := context.Background()
	b, err := storage.NewStorage(ctx, storage.Options{Backend: "memory"})
	require.NoError(t, err)

	_, err = b.GetDeployment(ctx, "localhost", "Missing")
	assert.True(t, errors.Is(err, interfaces.ErrNotFound))

	_, err = b.GetAccount(ctx, common.Address{})
	assert.True(t, errors.Is(err, interfaces.ErrNotFound))
}

func TestMemoryBackendPagination(t *testing.T) {
	ctx := context.Background()
	b, err := storage.NewStorage(ctx, storage.Options{Backend: "memory"})
	require.NoError(t, err)

	for i := 1; i <= 5; i++ {
		_, err := b.CreateAccount(ctx, "", common.BigToAddress(new(big.Int).Lsh(big.NewInt(1), uint(i))), nil)
		require.NoError(t, err)
	}

	r, err := b.ListAccounts(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), r.Count())
	assert.Len(t, r.Page(), 2)

	r, err = b.ListAccounts(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, r.Page(), 5)

	r, err = b.ListAccounts(ctx, 10, 2)
	require.NoError(t, err)
	assert.Empty(t, r.Page())
}

func TestInvalidBackend(t *testing.T) {
	_, err := storage.NewStorage(context.Background(), storage.Options{Backend: "redis"})
	assert.Error(t, err)

	_, err = storage.NewStorage(context.Background(), storage.Options{})
	assert.Error(t, err)
}
