package fhevm

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	MaxInputBits   = 2048
	MaxInputValues = 256

	inputSignatureLength = 65
	packedValueLength    = 33
)

var (
	rawCiphertextDomain = []byte("ZK-w_rct")
	handleDomain        = []byte("ZK-w_hdl")
)

// Encrypted is what a contract entrypoint taking external encrypted values
// expects: one handle per added value plus the proof covering all of them.
type Encrypted struct {
	Handles    []Handle
	InputProof []byte
}

type EncryptedInput interface {
	AddBool(v bool) EncryptedInput
	Add4(v uint8) EncryptedInput
	Add8(v uint8) EncryptedInput
	Add16(v uint16) EncryptedInput
	Add32(v uint32) EncryptedInput
	Add64(v uint64) EncryptedInput
	Add128(v *big.Int) EncryptedInput
	Add256(v *big.Int) EncryptedInput
	AddAddress(v common.Address) EncryptedInput

	Bits() []FheType
	Err() error
	Encrypt(ctx context.Context) (Encrypted, error)
}

type encryptedInput struct {
	instance *instance
	contract common.Address
	user     common.Address
	types    []FheType
	values   []*big.Int
	bits     int
	err      error
}

var _ EncryptedInput = &encryptedInput{}

func (i *encryptedInput) add(t FheType, v *big.Int) EncryptedInput {
	if i.err != nil {
		return i
	}

	if v == nil || v.Sign() < 0 {
		i.err = fmt.Errorf("invalid %s value: must be a non-negative integer", t)
	} else if t == TypeBool && v.Cmp(big.NewInt(1)) > 0 {
		i.err = fmt.Errorf("invalid ebool value %s", v)
	} else if t != TypeBool && v.BitLen() > valueBits(t) {
		i.err = fmt.Errorf("value %s does not fit in %s", v, t)
	} else if len(i.values)+1 > MaxInputValues {
		i.err = fmt.Errorf("packing more than %d variables in a single input ciphertext is unsupported", MaxInputValues)
	} else if i.bits+t.Bits() > MaxInputBits {
		i.err = fmt.Errorf("packing more than %d bits in a single input ciphertext is unsupported", MaxInputBits)
	} else {
		i.types = append(i.types, t)
		i.values = append(i.values, new(big.Int).Set(v))
		i.bits += t.Bits()
	}

	return i
}

func valueBits(t FheType) int {
	if t == TypeAddress {
		return 160
	}
	return t.Bits()
}

func (i *encryptedInput) AddBool(v bool) EncryptedInput {
	if v {
		return i.add(TypeBool, big.NewInt(1))
	}
	return i.add(TypeBool, big.NewInt(0))
}

func (i *encryptedInput) Add4(v uint8) EncryptedInput {
	return i.add(TypeUint4, new(big.Int).SetUint64(uint64(v)))
}

func (i *encryptedInput) Add8(v uint8) EncryptedInput {
	return i.add(TypeUint8, new(big.Int).SetUint64(uint64(v)))
}

func (i *encryptedInput) Add16(v uint16) EncryptedInput {
	return i.add(TypeUint16, new(big.Int).SetUint64(uint64(v)))
}

func (i *encryptedInput) Add32(v uint32) EncryptedInput {
	return i.add(TypeUint32, new(big.Int).SetUint64(uint64(v)))
}

func (i *encryptedInput) Add64(v uint64) EncryptedInput {
	return i.add(TypeUint64, new(big.Int).SetUint64(v))
}

func (i *encryptedInput) Add128(v *big.Int) EncryptedInput {
	return i.add(TypeUint128, v)
}

func (i *encryptedInput) Add256(v *big.Int) EncryptedInput {
	return i.add(TypeUint256, v)
}

func (i *encryptedInput) AddAddress(v common.Address) EncryptedInput {
	return i.add(TypeAddress, new(big.Int).SetBytes(v.Bytes()))
}

func (i *encryptedInput) Bits() []FheType {
	out := make([]FheType, len(i.types))
	copy(out, i.types)
	return out
}

func (i *encryptedInput) Err() error {
	return i.err
}

func (i *encryptedInput) Encrypt(ctx context.Context) (Encrypted, error) {
	if i.err != nil {
		return Encrypted{}, i.err
	} else if len(i.values) == 0 {
		return Encrypted{}, fmt.Errorf("encrypted input is empty, add at least one value")
	}

	cfg := i.instance.config
	packed := PackValues(i.types, i.values)

	if ciphertext, err := Seal(packed, i.instance.NetworkPublicKey()); err != nil {
		return Encrypted{}, err
	} else {
		handles := ComputeHandles(ciphertext, i.types, cfg.ACLContractAddress, cfg.ChainID)

		req := InputProofRequest{
			ContractAddress:                 i.contract.Hex(),
			UserAddress:                     i.user.Hex(),
			CiphertextWithInputVerification: strip0x(hexutil.Encode(ciphertext)),
			ContractChainID:                 hexutil.EncodeUint64(cfg.ChainID),
			ExtraData:                       strip0x(hexutil.Encode(DefaultExtraData)),
		}

		if res, err := i.instance.relayer.InputProof(ctx, &req); err != nil {
			return Encrypted{}, err
		} else if len(res.Handles) != len(handles) {
			return Encrypted{}, fmt.Errorf("relayer returned %d handles, expected %d", len(res.Handles), len(handles))
		} else {
			for j, s := range res.Handles {
				if h, err := HandleFromHex(s); err != nil {
					return Encrypted{}, err
				} else if h != handles[j] {
					return Encrypted{}, fmt.Errorf("relayer returned handle %s at index %d, expected %s", h, j, handles[j])
				}
			}

			signatures := make([][]byte, len(res.Signatures))
			for j, s := range res.Signatures {
				if b, err := hexutil.Decode(ensure0x(s)); err != nil {
					return Encrypted{}, fmt.Errorf("invalid input signature: %v", err)
				} else {
					signatures[j] = b
				}
			}

			if proof, err := EncodeInputProof(handles, signatures, DefaultExtraData); err != nil {
				return Encrypted{}, err
			} else {
				return Encrypted{Handles: handles, InputProof: proof}, nil
			}
		}
	}
}

// PackValues lays out each value as its type byte followed by the 32 byte
// big endian value.
func PackValues(types []FheType, values []*big.Int) []byte {
	out := make([]byte, 0, len(values)*packedValueLength)
	for i, v := range values {
		out = append(out, byte(types[i]))
		out = append(out, common.LeftPadBytes(v.Bytes(), 32)...)
	}
	return out
}

func UnpackValues(b []byte) ([]FheType, []*big.Int, error) {
	if len(b)%packedValueLength != 0 {
		return nil, nil, fmt.Errorf("invalid packed input length %d", len(b))
	}

	n := len(b) / packedValueLength
	types := make([]FheType, n)
	values := make([]*big.Int, n)
	for i := 0; i < n; i++ {
		chunk := b[i*packedValueLength : (i+1)*packedValueLength]
		if t := FheType(chunk[0]); !t.Valid() {
			return nil, nil, fmt.Errorf("invalid fhe type %d at index %d", chunk[0], i)
		} else {
			types[i] = t
			values[i] = new(big.Int).SetBytes(chunk[1:])
		}
	}
	return types, values, nil
}

// ComputeHandles derives the handles of every value of an input ciphertext.
// The relayer derives the same handles, so a mismatch means the ciphertext
// was altered in flight.
func ComputeHandles(ciphertext []byte, types []FheType, acl common.Address, chainID uint64) []Handle {
	blobHash := crypto.Keccak256(rawCiphertextDomain, ciphertext)

	var chainIDWord [32]byte
	binary.BigEndian.PutUint64(chainIDWord[24:], chainID)

	handles := make([]Handle, len(types))
	for i, t := range types {
		var h Handle
		copy(h[:], crypto.Keccak256(handleDomain, blobHash, []byte{byte(i)}, acl.Bytes(), chainIDWord[:]))
		h[21] = byte(i)
		binary.BigEndian.PutUint64(h[22:30], chainID)
		h[30] = byte(t)
		h[31] = HandleVersion
		handles[i] = h
	}
	return handles
}

func EncodeInputProof(handles []Handle, signatures [][]byte, extraData []byte) ([]byte, error) {
	if len(handles) > 255 || len(signatures) > 255 {
		return nil, fmt.Errorf("too many handles or signatures for an input proof")
	}

	out := []byte{byte(len(handles)), byte(len(signatures))}
	for _, h := range handles {
		out = append(out, h[:]...)
	}
	for _, s := range signatures {
		if len(s) != inputSignatureLength {
			return nil, fmt.Errorf("invalid input signature length %d", len(s))
		}
		out = append(out, s...)
	}
	return append(out, extraData...), nil
}

func ParseInputProof(proof []byte) (handles []Handle, signatures [][]byte, extraData []byte, err error) {
	if len(proof) < 2 {
		err = fmt.Errorf("input proof too short")
		return
	}

	numHandles := int(proof[0])
	numSigners := int(proof[1])
	offset := 2
	end := offset + numHandles*32 + numSigners*inputSignatureLength

	if len(proof) < end {
		err = fmt.Errorf("input proof truncated: %d bytes, expected at least %d", len(proof), end)
		return
	}

	handles = make([]Handle, numHandles)
	for i := range handles {
		copy(handles[i][:], proof[offset:offset+32])
		offset += 32
	}

	signatures = make([][]byte, numSigners)
	for i := range signatures {
		signatures[i] = append([]byte(nil), proof[offset:offset+inputSignatureLength]...)
		offset += inputSignatureLength
	}

	extraData = append([]byte(nil), proof[offset:]...)
	return
}
