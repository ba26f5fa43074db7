package vault

import (
	"context"
	"crypto/ecdsa"
	"crypto/sha256"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/grexie/confidential-defi/pkg/storage/interfaces"
)

var (
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrWalletExists      = errors.New("wallet already exists")
	ErrInvalidPrivateKey = errors.New("invalid private key")
	ErrImportUnavailable = errors.New("account import unavailable")
)

type Vault interface {
	SetStorageBackend(storage interfaces.IStorageBackend) error

	Wallets(ctx context.Context) ([]Wallet, error)
	GetWallet(ctx context.Context, ref string) (Wallet, error)
	ImportWallet(ctx context.Context, name string, privateKey string) (Wallet, error)
}

// Options configures the signer accounts. Mnemonic accounts come first,
// followed by raw private keys and finally accounts imported into storage.
type Options struct {
	Mnemonic    string
	Count       int
	PrivateKeys []string
	Names       []string
	MasterKey   string
}

type vault struct {
	storage   interfaces.IStorageBackend
	masterKey []byte
	names     []string

	mutex   sync.RWMutex
	derived []*wallet
}

var _ Vault = &vault{}

func NewVault(opts Options) (Vault, error) {
	v := vault{names: opts.Names}

	if opts.MasterKey != "" {
		k := sha256.Sum256([]byte(opts.MasterKey))
		v.masterKey = k[:]
	}

	if opts.Mnemonic != "" {
		count := opts.Count
		if count <= 0 {
			count = DefaultAccountCount
		}

		if keys, err := DeriveKeys(opts.Mnemonic, count); err != nil {
			return nil, err
		} else {
			for _, k := range keys {
				v.addDerived(k, SourceMnemonic)
			}
		}
	}

	for i, s := range opts.PrivateKeys {
		if k, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(s), "0x")); err != nil {
			return nil, fmt.Errorf("invalid private key at position %d: %w", i, err)
		} else {
			v.addDerived(k, SourcePrivateKey)
		}
	}

	return &v, nil
}

func (v *vault) addDerived(key *ecdsa.PrivateKey, source Source) {
	index := len(v.derived)
	name := ""
	if index < len(v.names) {
		name = v.names[index]
	}

	v.derived = append(v.derived, &wallet{
		index:   index,
		name:    name,
		address: crypto.PubkeyToAddress(key.PublicKey),
		source:  source,
		key:     key,
	})
}

func (v *vault) SetStorageBackend(storage interfaces.IStorageBackend) error {
	if v.storage != nil {
		return fmt.Errorf("storage backend already set")
	}
	v.storage = storage
	return nil
}

func (v *vault) Wallets(ctx context.Context) ([]Wallet, error) {
	v.mutex.RLock()
	out := make([]Wallet, 0, len(v.derived))
	for _, w := range v.derived {
		out = append(out, w)
	}
	v.mutex.RUnlock()

	if v.storage == nil {
		return out, nil
	}

	if r, err := v.storage.ListAccounts(ctx, 0, 0); err != nil {
		return nil, err
	} else {
		for _, a := range r.Page() {
			if v.isDerived(a.Address()) {
				continue
			}
			out = append(out, &wallet{
				index:   len(out),
				name:    a.Name(),
				address: a.Address(),
				source:  SourceImported,
				vault:   v,
				account: a,
			})
		}
		return out, nil
	}
}

func (v *vault) isDerived(address common.Address) bool {
	v.mutex.RLock()
	defer v.mutex.RUnlock()

	for _, w := range v.derived {
		if w.address == address {
			return true
		}
	}
	return false
}

// GetWallet resolves ref as an account index or a hex address.
func (v *vault) GetWallet(ctx context.Context, ref string) (Wallet, error) {
	ref = strings.TrimSpace(ref)

	if wallets, err := v.Wallets(ctx); err != nil {
		return nil, err
	} else if index, err := strconv.Atoi(ref); err == nil {
		if index < 0 || index >= len(wallets) {
			return nil, fmt.Errorf("%w: index %d out of range (%d accounts)", ErrWalletNotFound, index, len(wallets))
		}
		return wallets[index], nil
	} else if common.IsHexAddress(ref) {
		address := common.HexToAddress(ref)
		for _, w := range wallets {
			if w.Address() == address {
				return w, nil
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrWalletNotFound, address.Hex())
	} else {
		return nil, fmt.Errorf("%w: invalid account reference %q", ErrWalletNotFound, ref)
	}
}

// ImportWallet stores privateKey wrapped under the master key. Imported
// wallets are listed after the configured ones.
func (v *vault) ImportWallet(ctx context.Context, name string, privateKey string) (Wallet, error) {
	if v.storage == nil {
		return nil, fmt.Errorf("%w: storage backend not set", ErrImportUnavailable)
	} else if v.masterKey == nil {
		return nil, fmt.Errorf("%w: set MASTER_KEY to import accounts", ErrImportUnavailable)
	}

	k, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	address := crypto.PubkeyToAddress(k.PublicKey)

	if v.isDerived(address) {
		return nil, fmt.Errorf("%w: %s", ErrWalletExists, address.Hex())
	} else if _, err := v.storage.GetAccount(ctx, address); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrWalletExists, address.Hex())
	} else if !errors.Is(err, interfaces.ErrNotFound) {
		return nil, err
	} else if b, err := encrypt(v.masterKey, crypto.FromECDSA(k)); err != nil {
		return nil, err
	} else if a, err := v.storage.CreateAccount(ctx, name, address, b); err != nil {
		return nil, err
	} else {
		return v.GetWallet(ctx, a.Address().Hex())
	}
}
