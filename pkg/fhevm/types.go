package fhevm

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

type FheType byte

const (
	TypeBool FheType = iota
	TypeUint4
	TypeUint8
	TypeUint16
	TypeUint32
	TypeUint64
	TypeUint128
	TypeAddress
	TypeUint256
)

var fheTypeBits = map[FheType]int{
	TypeBool:    2,
	TypeUint4:   4,
	TypeUint8:   8,
	TypeUint16:  16,
	TypeUint32:  32,
	TypeUint64:  64,
	TypeUint128: 128,
	TypeAddress: 160,
	TypeUint256: 256,
}

var fheTypeNames = map[FheType]string{
	TypeBool:    "ebool",
	TypeUint4:   "euint4",
	TypeUint8:   "euint8",
	TypeUint16:  "euint16",
	TypeUint32:  "euint32",
	TypeUint64:  "euint64",
	TypeUint128: "euint128",
	TypeAddress: "eaddress",
	TypeUint256: "euint256",
}

// Bits is the number of bits the type occupies in an input ciphertext. ebool
// counts as 2 bits, like the relayer does.
func (t FheType) Bits() int {
	return fheTypeBits[t]
}

func (t FheType) Valid() bool {
	_, ok := fheTypeBits[t]
	return ok
}

func (t FheType) String() string {
	if n, ok := fheTypeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("FheType(%d)", byte(t))
}

const HandleVersion byte = 0

// Handle is the 32 byte on-chain reference to a ciphertext held by the
// coprocessor.
type Handle [32]byte

var ZeroHandle Handle

func HandleFromHex(s string) (Handle, error) {
	var h Handle
	if b, err := hexutil.Decode(ensure0x(s)); err != nil {
		return h, fmt.Errorf("invalid handle %q: %v", s, err)
	} else if len(b) != 32 {
		return h, fmt.Errorf("invalid handle length %d, expected 32", len(b))
	} else {
		copy(h[:], b)
		return h, nil
	}
}

func (h Handle) IsZero() bool {
	return h == ZeroHandle
}

func (h Handle) Index() byte {
	return h[21]
}

func (h Handle) ChainID() uint64 {
	return binary.BigEndian.Uint64(h[22:30])
}

func (h Handle) Type() FheType {
	return FheType(h[30])
}

func (h Handle) Version() byte {
	return h[31]
}

func (h Handle) Hex() string {
	return hexutil.Encode(h[:])
}

func (h Handle) String() string {
	return h.Hex()
}

func (h Handle) MarshalText() ([]byte, error) {
	return []byte(h.Hex()), nil
}

func (h *Handle) UnmarshalText(b []byte) error {
	if v, err := HandleFromHex(string(b)); err != nil {
		return err
	} else {
		*h = v
		return nil
	}
}

type HandleContractPair struct {
	Handle          Handle         `json:"handle"`
	ContractAddress common.Address `json:"contractAddress"`
}

// DecryptedResults maps every requested handle to its cleartext. Booleans
// decrypt to 0 or 1 and addresses to their 160 bit integer.
type DecryptedResults map[Handle]*big.Int

func (r DecryptedResults) Uint64(h Handle) (uint64, error) {
	if v, ok := r[h]; !ok {
		return 0, fmt.Errorf("handle %s missing from decrypted results", h)
	} else if !v.IsUint64() {
		return 0, fmt.Errorf("handle %s does not fit in uint64", h)
	} else {
		return v.Uint64(), nil
	}
}

func (r DecryptedResults) Bool(h Handle) (bool, error) {
	if v, ok := r[h]; !ok {
		return false, fmt.Errorf("handle %s missing from decrypted results", h)
	} else {
		return v.Sign() != 0, nil
	}
}

func (r DecryptedResults) Address(h Handle) (common.Address, error) {
	if v, ok := r[h]; !ok {
		return common.Address{}, fmt.Errorf("handle %s missing from decrypted results", h)
	} else {
		return common.BigToAddress(v), nil
	}
}

var _ json.Marshaler = DecryptedResults{}

func (r DecryptedResults) MarshalJSON() ([]byte, error) {
	out := make(map[string]string, len(r))
	for h, v := range r {
		out[h.Hex()] = v.String()
	}
	return json.Marshal(out)
}

func ensure0x(s string) string {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s
	}
	return "0x" + s
}

func strip0x(s string) string {
	return strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
}
