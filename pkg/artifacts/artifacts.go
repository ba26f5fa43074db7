// Package artifacts reads hardhat compilation output.
package artifacts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var ErrArtifactNotFound = errors.New("artifact not found")

type Artifact struct {
	ContractName     string          `json:"contractName"`
	SourceName       string          `json:"sourceName"`
	ABI              json.RawMessage `json:"abi"`
	Bytecode         string          `json:"bytecode"`
	DeployedBytecode string          `json:"deployedBytecode"`
}

func (a *Artifact) ParsedABI() (abi.ABI, error) {
	return abi.JSON(bytes.NewReader(a.ABI))
}

func (a *Artifact) Code() ([]byte, error) {
	if a.Bytecode == "" || a.Bytecode == "0x" {
		return nil, fmt.Errorf("artifact %s has no bytecode", a.ContractName)
	}
	return hexutil.Decode(a.Bytecode)
}

type Loader interface {
	Load(name string) (*Artifact, error)
}

type loader struct {
	dir string

	mutex sync.Mutex
	cache map[string]*Artifact
}

var _ Loader = &loader{}

// NewLoader searches dir, usually artifacts/, for <name>.json files.
func NewLoader(dir string) Loader {
	return &loader{dir: dir, cache: map[string]*Artifact{}}
}

func (l *loader) Load(name string) (*Artifact, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if a, ok := l.cache[name]; ok {
		return a, nil
	}

	path, err := l.find(name)
	if err != nil {
		return nil, err
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var a Artifact
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, fmt.Errorf("invalid artifact %s: %w", path, err)
	} else if a.ContractName != name {
		return nil, fmt.Errorf("artifact %s declares contract %q", path, a.ContractName)
	}

	l.cache[name] = &a
	return &a, nil
}

func (l *loader) find(name string) (string, error) {
	target := name + ".json"
	found := ""

	err := filepath.WalkDir(l.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		} else if d.IsDir() {
			if d.Name() == "build-info" {
				return filepath.SkipDir
			}
			return nil
		} else if d.Name() == target && !strings.HasSuffix(path, ".dbg.json") {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", err
	} else if found == "" {
		return "", fmt.Errorf("%w: %s in %s", ErrArtifactNotFound, name, l.dir)
	}
	return found, nil
}
