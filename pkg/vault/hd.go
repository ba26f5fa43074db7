package vault

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcutil/hdkeychain"
	"github.com/tyler-smith/go-bip39"
)

// DefaultMnemonic is the well known development mnemonic used by local
// hardhat nodes.
const DefaultMnemonic = "test test test test test test test test test test test junk"

const DefaultAccountCount = 10

// m/44'/60'/0'/0
var ethereumPath = []uint32{
	hdkeychain.HardenedKeyStart + 44,
	hdkeychain.HardenedKeyStart + 60,
	hdkeychain.HardenedKeyStart + 0,
	0,
}

// DeriveKeys returns the first count keys of the standard ethereum
// derivation path m/44'/60'/0'/0/i.
func DeriveKeys(mnemonic string, count int) ([]*ecdsa.PrivateKey, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("invalid mnemonic")
	}

	seed := bip39.NewSeed(mnemonic, "")

	key, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, err
	}

	for _, i := range ethereumPath {
		if key, err = key.Derive(i); err != nil {
			return nil, err
		}
	}

	out := make([]*ecdsa.PrivateKey, 0, count)
	for i := 0; i < count; i++ {
		if child, err := key.Derive(uint32(i)); err != nil {
			return nil, err
		} else if k, err := child.ECPrivKey(); err != nil {
			return nil, err
		} else {
			out = append(out, k.ToECDSA())
		}
	}

	return out, nil
}
