package vault

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/grexie/confidential-defi/pkg/storage/interfaces"
)

type Source string

const (
	SourceMnemonic   Source = "mnemonic"
	SourcePrivateKey Source = "private-key"
	SourceImported   Source = "imported"
)

type Wallet interface {
	Index() int
	Name() string
	Address() common.Address
	Source() Source
	PublicKey(ctx context.Context) (ecdsa.PublicKey, error)
	PrivateKey(ctx context.Context) (ecdsa.PrivateKey, error)
}

type wallet struct {
	index   int
	name    string
	address common.Address
	source  Source

	key *ecdsa.PrivateKey

	vault   *vault
	account interfaces.Account
}

var _ Wallet = &wallet{}
var _ json.Marshaler = &wallet{}

func (w *wallet) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"index":   w.index,
		"name":    w.name,
		"address": w.address,
		"source":  w.source,
	})
}

func (w *wallet) Index() int {
	return w.index
}

func (w *wallet) Name() string {
	return w.name
}

func (w *wallet) Address() common.Address {
	return w.address
}

func (w *wallet) Source() Source {
	return w.source
}

func (w *wallet) PublicKey(ctx context.Context) (ecdsa.PublicKey, error) {
	if privateKey, err := w.PrivateKey(ctx); err != nil {
		return ecdsa.PublicKey{}, err
	} else {
		return privateKey.PublicKey, nil
	}
}

func (w *wallet) PrivateKey(ctx context.Context) (ecdsa.PrivateKey, error) {
	if w.key != nil {
		return *w.key, nil
	}

	if w.vault == nil || w.vault.masterKey == nil {
		return ecdsa.PrivateKey{}, fmt.Errorf("master key not configured for imported account %s", w.address.Hex())
	} else if b, err := decrypt(w.vault.masterKey, w.account.EncryptedPrivateKey()); err != nil {
		return ecdsa.PrivateKey{}, err
	} else if privateKey, err := crypto.ToECDSA(b); err != nil {
		return ecdsa.PrivateKey{}, err
	} else if crypto.PubkeyToAddress(privateKey.PublicKey) != w.address {
		return ecdsa.PrivateKey{}, fmt.Errorf("stored key does not match account %s", w.address.Hex())
	} else {
		return *privateKey, nil
	}
}
