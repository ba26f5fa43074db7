package fhevm

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

const (
	MaxUserDecryptDurationDays      = 365
	MaxUserDecryptContractAddresses = 10
	MaxUserDecryptBits              = 2048

	UserDecryptPrimaryType = "UserDecryptRequestVerification"
)

var DefaultExtraData = []byte{0x00}

// EIP712 is the typed data a user signs to authorize the relayer to reencrypt
// handles of the listed contracts for a public key during a validity window.
type EIP712 struct {
	apitypes.TypedData
}

var userDecryptTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	UserDecryptPrimaryType: {
		{Name: "publicKey", Type: "bytes"},
		{Name: "contractAddresses", Type: "address[]"},
		{Name: "startTimestamp", Type: "uint256"},
		{Name: "durationDays", Type: "uint256"},
		{Name: "extraData", Type: "bytes"},
	},
}

func NewUserDecryptEIP712(gatewayChainID uint64, verifyingContract common.Address, publicKey []byte, contracts []common.Address, startTimestamp int64, durationDays int, extraData []byte) (EIP712, error) {
	if len(publicKey) == 0 {
		return EIP712{}, fmt.Errorf("missing public key")
	} else if len(contracts) == 0 {
		return EIP712{}, fmt.Errorf("at least one contract address is required")
	} else if len(contracts) > MaxUserDecryptContractAddresses {
		return EIP712{}, fmt.Errorf("too many contract addresses: %d, maximum is %d", len(contracts), MaxUserDecryptContractAddresses)
	} else if err := checkDurationDays(durationDays); err != nil {
		return EIP712{}, err
	} else if startTimestamp < 0 {
		return EIP712{}, fmt.Errorf("invalid start timestamp %d", startTimestamp)
	}

	if extraData == nil {
		extraData = DefaultExtraData
	}

	addresses := make([]interface{}, len(contracts))
	for i, c := range contracts {
		addresses[i] = c.Hex()
	}

	return EIP712{
		TypedData: apitypes.TypedData{
			Types:       userDecryptTypes,
			PrimaryType: UserDecryptPrimaryType,
			Domain: apitypes.TypedDataDomain{
				Name:              "Decryption",
				Version:           "1",
				ChainId:           (*math.HexOrDecimal256)(new(big.Int).SetUint64(gatewayChainID)),
				VerifyingContract: verifyingContract.Hex(),
			},
			Message: apitypes.TypedDataMessage{
				"publicKey":         hexutil.Encode(publicKey),
				"contractAddresses": addresses,
				"startTimestamp":    strconv.FormatInt(startTimestamp, 10),
				"durationDays":      strconv.Itoa(durationDays),
				"extraData":         hexutil.Encode(extraData),
			},
		},
	}, nil
}

func (e EIP712) Hash() ([]byte, error) {
	hash, _, err := apitypes.TypedDataAndHash(e.TypedData)
	return hash, err
}

// RecoverSigner returns the address that produced signature over the typed
// data. Both 0/1 and 27/28 recovery ids are accepted.
func (e EIP712) RecoverSigner(signature []byte) (common.Address, error) {
	if len(signature) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("invalid signature length %d", len(signature))
	} else if hash, err := e.Hash(); err != nil {
		return common.Address{}, err
	} else {
		sig := make([]byte, len(signature))
		copy(sig, signature)
		if sig[64] >= 27 {
			sig[64] -= 27
		}

		if pub, err := crypto.SigToPub(hash, sig); err != nil {
			return common.Address{}, err
		} else {
			return crypto.PubkeyToAddress(*pub), nil
		}
	}
}

func checkDurationDays(durationDays int) error {
	if durationDays <= 0 {
		return fmt.Errorf("durationDays must be positive, got %d", durationDays)
	} else if durationDays > MaxUserDecryptDurationDays {
		return fmt.Errorf("durationDays %d exceeds the maximum of %d", durationDays, MaxUserDecryptDurationDays)
	}
	return nil
}

// CheckRequestValidity rejects windows that start in the future or have
// already ended at now.
func CheckRequestValidity(now int64, startTimestamp int64, durationDays int) error {
	if err := checkDurationDays(durationDays); err != nil {
		return err
	} else if startTimestamp > now {
		return fmt.Errorf("start timestamp %d is in the future", startTimestamp)
	} else if startTimestamp+int64(durationDays)*86400 <= now {
		return fmt.Errorf("user decrypt request has expired")
	}
	return nil
}
