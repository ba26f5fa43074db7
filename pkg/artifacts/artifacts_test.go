package artifacts_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/grexie/confidential-defi/pkg/artifacts"
	"github.com/grexie/confidential-defi/pkg/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeArtifact(t *testing.T, dir string, name string, body string) {
	p := filepath.Join(dir, "contracts", name+".sol")
	require.NoError(t, os.MkdirAll(p, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(p, name+".json"), []byte(body), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(p, name+".dbg.json"), []byte(`{}`), 0o644))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "ConfidentialVault", `{
		"contractName": "ConfidentialVault",
		"sourceName": "contracts/ConfidentialVault.sol",
		"abi": `+contracts.ConfidentialVaultABI+`,
		"bytecode": "0x6080604052"
	}`)

	l := artifacts.NewLoader(dir)
	a, err := l.Load("ConfidentialVault")
	require.NoError(t, err)

	parsed, err := a.ParsedABI()
	require.NoError(t, err)
	assert.Contains(t, parsed.Methods, "deposit")
	assert.Len(t, parsed.Constructor.Inputs, 1)

	code, err := a.Code()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x60, 0x80, 0x60, 0x40, 0x52}, code)
}

func TestLoadMissing(t *testing.T) {
	_, err := artifacts.NewLoader(t.TempDir()).Load("FHECounter")
	assert.True(t, errors.Is(err, artifacts.ErrArtifactNotFound))
}

func TestLoadNoBytecode(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "FHECounter", `{"contractName":"FHECounter","abi":[],"bytecode":"0x"}`)

	a, err := artifacts.NewLoader(dir).Load("FHECounter")
	require.NoError(t, err)
	_, err = a.Code()
	assert.Error(t, err)
}
