package fhevm

import (
	"crypto/rand"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/crypto/nacl/box"
)

// Keypair is generated for a single user decryption. The relayer seals every
// cleartext to PublicKey.
type Keypair struct {
	PublicKey  [32]byte
	PrivateKey [32]byte
}

func GenerateKeypair() (Keypair, error) {
	if pub, priv, err := box.GenerateKey(rand.Reader); err != nil {
		return Keypair{}, err
	} else {
		return Keypair{PublicKey: *pub, PrivateKey: *priv}, nil
	}
}

func (k Keypair) PublicKeyHex() string {
	return hexutil.Encode(k.PublicKey[:])
}

// Open recovers a cleartext sealed to the keypair.
func (k Keypair) Open(sealed []byte) ([]byte, error) {
	if out, ok := box.OpenAnonymous(nil, sealed, &k.PublicKey, &k.PrivateKey); !ok {
		return nil, fmt.Errorf("unable to open sealed cleartext")
	} else {
		return out, nil
	}
}

func ParsePublicKey(s string) ([32]byte, error) {
	var out [32]byte
	if b, err := hexutil.Decode(ensure0x(s)); err != nil {
		return out, fmt.Errorf("invalid public key: %v", err)
	} else if len(b) != 32 {
		return out, fmt.Errorf("invalid public key length %d", len(b))
	} else {
		copy(out[:], b)
		return out, nil
	}
}

// Seal encrypts message for the holder of recipient. The relayer uses it for
// decrypted values and clients use it for input cleartexts.
func Seal(message []byte, recipient [32]byte) ([]byte, error) {
	return box.SealAnonymous(nil, message, &recipient, rand.Reader)
}
