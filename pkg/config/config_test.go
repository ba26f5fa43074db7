package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/grexie/confidential-defi/pkg/config"
	"github.com/grexie/confidential-defi/pkg/fhevm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV", "test")
	t.Setenv("API_KEYS", "one, two")

	c, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "test", c.Env)
	assert.Equal(t, config.MockNetwork, c.Network)
	assert.Equal(t, 10, c.AccountCount)
	assert.Equal(t, 2*time.Minute, c.ReceiptTimeout)
	assert.Equal(t, "file", c.StorageBackend)
	assert.Len(t, c.APIKeys, 2)
}

func TestLoadInvalid(t *testing.T) {
	t.Setenv("ENV", "test")
	t.Setenv("DECRYPT_DURATION_DAYS", "0")

	_, err := config.Load()
	assert.ErrorContains(t, err, "DECRYPT_DURATION_DAYS")
}

func TestLoadEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	specific := filepath.Join(dir, ".env.test")
	general := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(specific, []byte("CDEFI_SAMPLE=specific\n"), 0o644))
	require.NoError(t, os.WriteFile(general, []byte("CDEFI_SAMPLE=general\nCDEFI_OTHER=general\n"), 0o644))

	t.Setenv("CDEFI_SAMPLE", "")
	os.Unsetenv("CDEFI_SAMPLE")
	t.Setenv("CDEFI_OTHER", "")
	os.Unsetenv("CDEFI_OTHER")

	config.LoadEnv(filepath.Join(dir, ".env.missing"), specific, general)
	assert.Equal(t, "specific", os.Getenv("CDEFI_SAMPLE"))
	assert.Equal(t, "general", os.Getenv("CDEFI_OTHER"))

	assert.Equal(t, []string{".env.production.local", ".env.production", ".env.local", ".env"}, config.EnvFiles("production"))
}

func TestLoadNetworks(t *testing.T) {
	dir := t.TempDir()
	filename := filepath.Join(dir, "networks.yaml")
	require.NoError(t, os.WriteFile(filename, []byte(`
networks:
  localhost:
    fhevm:
      relayerUrl: http://127.0.0.1:3000
    contracts:
      ConfidentialETH: "0x5FbDB2315678afecb367f032d93F642f64180aa3"
  devnet:
    fhevm:
      chainId: 9000
      gatewayChainId: 55815
      relayerUrl: http://relayer.devnet
      networkUrl: http://rpc.devnet
      aclContractAddress: "0x50157CFfD6bBFA2DECe204a89ec419c23ef5755D"
      verifyingContractAddressDecryption: "0xa02Cda4Ca3a71D7C46997716F4283aa851C28812"
`), 0o644))

	networks, err := config.LoadNetworks(filename)
	require.NoError(t, err)

	local := networks["localhost"]
	assert.Equal(t, "http://127.0.0.1:3000", local.FHEVM.RelayerURL)
	assert.Equal(t, fhevm.LocalConfig.ChainID, local.FHEVM.ChainID)
	assert.Equal(t, fhevm.LocalConfig.ACLContractAddress, local.FHEVM.ACLContractAddress)

	address, ok := local.Contract("ConfidentialETH")
	assert.True(t, ok)
	assert.Equal(t, common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"), address)
	_, ok = local.Contract("ConfidentialVault")
	assert.False(t, ok)

	devnet := networks["devnet"]
	assert.Equal(t, "devnet", devnet.Name)
	assert.Equal(t, uint64(9000), devnet.FHEVM.ChainID)
	assert.NoError(t, devnet.FHEVM.Validate())

	assert.True(t, networks[config.MockNetwork].Mock)
	assert.Equal(t, fhevm.SepoliaConfig, networks["sepolia"].FHEVM)
}

func TestResolveNetwork(t *testing.T) {
	c := config.Config{Network: "sepolia", NetworksFile: filepath.Join(t.TempDir(), "missing.yaml"), RPCURL: "https://rpc.example"}

	n, err := c.ResolveNetwork()
	require.NoError(t, err)
	assert.Equal(t, "https://rpc.example", n.FHEVM.NetworkURL)
	assert.Equal(t, fhevm.SepoliaConfig.RelayerURL, n.FHEVM.RelayerURL)

	c.Network = "mainnet"
	_, err = c.ResolveNetwork()
	assert.ErrorContains(t, err, "unknown network")
}
