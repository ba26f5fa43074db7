package signer

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/grexie/confidential-defi/pkg/vault"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Signer signs typed data and transactions for one account.
type Signer interface {
	Address() common.Address
	SignHash(ctx context.Context, hash []byte) ([]byte, error)
	SignTypedData(ctx context.Context, typedData apitypes.TypedData) ([]byte, error)
	TransactOpts(ctx context.Context, chainID *big.Int) (*bind.TransactOpts, error)
}

// Signers hands out signers for vault wallets, keeping decrypted private
// keys in an lru cache.
type Signers interface {
	Signer(ctx context.Context, ref string) (Signer, error)
	ForWallet(wallet vault.Wallet) Signer
}

type signers struct {
	vault vault.Vault
	cache *lru.Cache[common.Address, ecdsa.PrivateKey]
}

var _ Signers = &signers{}

func NewSigners(vault vault.Vault) (Signers, error) {
	s := signers{vault: vault}

	if c, err := lru.New[common.Address, ecdsa.PrivateKey](1024); err != nil {
		return nil, err
	} else {
		s.cache = c
	}

	return &s, nil
}

func (s *signers) Signer(ctx context.Context, ref string) (Signer, error) {
	if w, err := s.vault.GetWallet(ctx, ref); err != nil {
		return nil, err
	} else {
		return s.ForWallet(w), nil
	}
}

func (s *signers) ForWallet(w vault.Wallet) Signer {
	return &signer{
		address: w.Address(),
		key: func(ctx context.Context) (ecdsa.PrivateKey, error) {
			if pk, ok := s.cache.Get(w.Address()); ok {
				return pk, nil
			}

			pk, err := w.PrivateKey(ctx)
			if err != nil {
				return ecdsa.PrivateKey{}, err
			}

			if crypto.PubkeyToAddress(pk.PublicKey) != w.Address() {
				return ecdsa.PrivateKey{}, fmt.Errorf("invalid signer: %s", w.Address())
			}

			s.cache.Add(w.Address(), pk)
			return pk, nil
		},
	}
}

type signer struct {
	address common.Address
	key     func(ctx context.Context) (ecdsa.PrivateKey, error)
}

var _ Signer = &signer{}

// FromPrivateKey wraps a raw key, bypassing the vault.
func FromPrivateKey(privateKey *ecdsa.PrivateKey) Signer {
	pk := *privateKey
	return &signer{
		address: crypto.PubkeyToAddress(pk.PublicKey),
		key: func(context.Context) (ecdsa.PrivateKey, error) {
			return pk, nil
		},
	}
}

func (s *signer) Address() common.Address {
	return s.address
}

// SignHash returns a 65 byte [R || S || V] signature with V in {27, 28}.
func (s *signer) SignHash(ctx context.Context, hash []byte) ([]byte, error) {
	privateKey, err := s.key(ctx)
	if err != nil {
		return nil, err
	}

	signatureBytes, err := crypto.Sign(hash, &privateKey)
	if err != nil {
		return nil, err
	}

	signatureBytes[64] += 27
	return signatureBytes, nil
}

func (s *signer) SignTypedData(ctx context.Context, typedData apitypes.TypedData) ([]byte, error) {
	if hash, _, err := apitypes.TypedDataAndHash(typedData); err != nil {
		return nil, err
	} else {
		return s.SignHash(ctx, hash)
	}
}

func (s *signer) TransactOpts(ctx context.Context, chainID *big.Int) (*bind.TransactOpts, error) {
	privateKey, err := s.key(ctx)
	if err != nil {
		return nil, err
	}

	if opts, err := bind.NewKeyedTransactorWithChainID(&privateKey, chainID); err != nil {
		return nil, err
	} else {
		opts.Context = ctx
		return opts, nil
	}
}
