// Package file stores deployments the way hardhat-deploy lays them out on
// disk: one json file per contract under deployments/<network>/ plus a
// .migrations.json of executed script ids.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/grexie/confidential-defi/pkg/storage/interfaces"
	"github.com/grexie/confidential-defi/pkg/storage/memory"
)

const (
	migrationsFile = ".migrations.json"
	accountsDir    = ".accounts"
)

type fileStorageBackend struct {
	*memory.Backend
	dir string
	mu  sync.Mutex
}

var _ interfaces.IStorageBackend = &fileStorageBackend{}

func NewFileStorageBackend(dir string) (interfaces.IStorageBackend, error) {
	b := &fileStorageBackend{Backend: memory.NewMemoryStorageBackend(), dir: dir}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	} else if err := b.load(); err != nil {
		return nil, fmt.Errorf("loading deployments from %s: %v", dir, err)
	}

	return b, nil
}

func readJSON(filename string, o any) error {
	if b, err := os.ReadFile(filename); err != nil {
		return err
	} else {
		return json.Unmarshal(b, o)
	}
}

func writeJSON(filename string, o any) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	} else if b, err := json.MarshalIndent(o, "", "  "); err != nil {
		return err
	} else {
		tmp := filename + ".tmp"
		if err := os.WriteFile(tmp, b, 0o600); err != nil {
			return err
		}
		return os.Rename(tmp, filename)
	}
}

func (b *fileStorageBackend) load() error {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return err
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		} else if e.Name() == accountsDir {
			if err := b.loadAccounts(filepath.Join(b.dir, accountsDir)); err != nil {
				return err
			}
		} else if err := b.loadNetwork(e.Name()); err != nil {
			return err
		}
	}

	return nil
}

func (b *fileStorageBackend) loadNetwork(network string) error {
	dir := filepath.Join(b.dir, network)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		} else if name == migrationsFile {
			var migrations map[interfaces.ID]int64
			if err := readJSON(filepath.Join(dir, name), &migrations); err != nil {
				return err
			}
			for id := range migrations {
				b.PutScript(network, id)
			}
		} else {
			var d memory.Deployment
			if err := readJSON(filepath.Join(dir, name), &d); err != nil {
				return err
			}
			b.PutDeployment(&d)
		}
	}

	return nil
}

func (b *fileStorageBackend) loadAccounts(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		var a memory.Account
		if err := readJSON(filepath.Join(dir, e.Name()), &a); err != nil {
			return err
		}
		b.PutAccount(&a)
	}

	return nil
}

func (b *fileStorageBackend) SaveDeployment(ctx context.Context, network string, name string, address common.Address, transactionHash common.Hash, args []string, abi json.RawMessage) (interfaces.Deployment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if d, err := b.Backend.SaveDeployment(ctx, network, name, address, transactionHash, args, abi); err != nil {
		return nil, err
	} else if err := writeJSON(filepath.Join(b.dir, network, name+".json"), d); err != nil {
		return nil, err
	} else {
		return d, nil
	}
}

func (b *fileStorageBackend) MarkScriptExecuted(ctx context.Context, network string, id interfaces.ID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	filename := filepath.Join(b.dir, network, migrationsFile)
	migrations := map[interfaces.ID]int64{}
	if err := readJSON(filename, &migrations); err != nil && !os.IsNotExist(err) {
		return err
	}
	migrations[id] = time.Now().Unix()

	if err := writeJSON(filename, migrations); err != nil {
		return err
	}
	return b.Backend.MarkScriptExecuted(ctx, network, id)
}

func (b *fileStorageBackend) CreateAccount(ctx context.Context, name string, address common.Address, encryptedPrivateKey []byte) (interfaces.Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if a, err := b.Backend.CreateAccount(ctx, name, address, encryptedPrivateKey); err != nil {
		return nil, err
	} else if err := writeJSON(filepath.Join(b.dir, accountsDir, strings.ToLower(address.Hex())+".json"), a); err != nil {
		return nil, err
	} else {
		return a, nil
	}
}
