package mock

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/grexie/confidential-defi/pkg/fhevm"
)

func respond[E any](c *fiber.Ctx, res E) error {
	return c.JSON(fhevm.RelayerResponse[E]{Response: &res, Status: "succeeded"})
}

func decodeHex(s string) ([]byte, error) {
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		return hexutil.Decode(s)
	}
	return hexutil.Decode("0x" + s)
}

func (r *relayer) KeyURL(c *fiber.Ctx) error {
	return respond(c, fhevm.KeyURLResponse{
		PublicKey:   hexutil.Encode(r.publicKey[:]),
		PublicKeyID: r.publicKeyID,
	})
}

func (r *relayer) InputProof(c *fiber.Ctx) error {
	var req fhevm.InputProofRequest

	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	} else if !common.IsHexAddress(req.ContractAddress) || !common.IsHexAddress(req.UserAddress) {
		return fiber.NewError(fiber.StatusBadRequest, "invalid contract or user address")
	}

	contract := common.HexToAddress(req.ContractAddress)
	user := common.HexToAddress(req.UserAddress)

	if chainID, err := hexutil.DecodeUint64(req.ContractChainID); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid contract chain id: %v", err))
	} else if chainID != r.config.ChainID {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("unsupported chain id %d", chainID))
	} else if ciphertext, err := decodeHex(req.CiphertextWithInputVerification); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid ciphertext: %v", err))
	} else if packed, err := (fhevm.Keypair{PublicKey: r.publicKey, PrivateKey: r.privateKey}).Open(ciphertext); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	} else if types, values, err := fhevm.UnpackValues(packed); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	} else {
		handles := fhevm.ComputeHandles(ciphertext, types, r.config.ACLContractAddress, chainID)

		res := fhevm.InputProofResponse{
			Handles:    make([]string, len(handles)),
			Signatures: make([]string, 1),
		}

		digest := [][]byte{}
		for i, h := range handles {
			r.Store(h, values[i])
			r.Allow(h, user, contract)
			res.Handles[i] = h.Hex()
			digest = append(digest, h[:])
		}
		digest = append(digest, user.Bytes(), contract.Bytes(), new(big.Int).SetUint64(chainID).Bytes())

		if sig, err := crypto.Sign(crypto.Keccak256(digest...), r.signer); err != nil {
			return err
		} else {
			sig[64] += 27
			res.Signatures[0] = hexutil.Encode(sig)
		}

		log.Debugf("mock relayer verified input of %d values for %s on %s", len(handles), user, contract)
		return respond(c, res)
	}
}

func (r *relayer) UserDecrypt(c *fiber.Ctx) error {
	var req fhevm.UserDecryptRequest

	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	} else if !common.IsHexAddress(req.UserAddress) {
		return fiber.NewError(fiber.StatusBadRequest, "invalid user address")
	}

	user := common.HexToAddress(req.UserAddress)
	contracts := make([]common.Address, len(req.ContractAddresses))
	allowedContracts := map[common.Address]bool{}
	for i, a := range req.ContractAddresses {
		if !common.IsHexAddress(a) {
			return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid contract address %s", a))
		}
		contracts[i] = common.HexToAddress(a)
		allowedContracts[contracts[i]] = true
	}

	startTimestamp, err := strconv.ParseInt(req.RequestValidity.StartTimestamp, 10, 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid start timestamp")
	}
	durationDays, err := strconv.Atoi(req.RequestValidity.DurationDays)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid duration days")
	}

	if err := fhevm.CheckRequestValidity(r.now().Unix(), startTimestamp, durationDays); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	} else if publicKey, err := decodeHex(req.PublicKey); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid public key: %v", err))
	} else if recipient, err := fhevm.ParsePublicKey(req.PublicKey); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	} else if signature, err := decodeHex(req.Signature); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid signature: %v", err))
	} else if extraData, err := decodeHex(req.ExtraData); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid extra data: %v", err))
	} else if typed, err := fhevm.NewUserDecryptEIP712(r.config.GatewayChainID, r.config.VerifyingContractAddressDecryption, publicKey, contracts, startTimestamp, durationDays, extraData); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	} else if signer, err := typed.RecoverSigner(signature); err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, fmt.Sprintf("invalid signature: %v", err))
	} else if signer != user {
		return fiber.NewError(fiber.StatusUnauthorized, fmt.Sprintf("signature was produced by %s, not %s", signer, user))
	} else {
		res := fhevm.UserDecryptResponse{Payload: make([]fhevm.UserDecryptShare, len(req.HandleContractPairs))}

		for i, p := range req.HandleContractPairs {
			contract := common.HexToAddress(p.ContractAddress)

			if h, err := fhevm.HandleFromHex(p.Handle); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			} else if !allowedContracts[contract] {
				return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("contract %s is not in the signed contract addresses", contract))
			} else if !r.IsAllowed(h, user) {
				return fiber.NewError(fiber.StatusForbidden, fmt.Sprintf("user %s is not authorized to user decrypt handle %s", user, h))
			} else if !r.IsAllowed(h, contract) {
				return fiber.NewError(fiber.StatusForbidden, fmt.Sprintf("contract %s is not authorized to user decrypt handle %s", contract, h))
			} else if v, ok := r.Plaintext(h); !ok {
				return fiber.NewError(fiber.StatusNotFound, fmt.Sprintf("handle %s not found", h))
			} else if sealed, err := fhevm.Seal(common.LeftPadBytes(v.Bytes(), 32), recipient); err != nil {
				return err
			} else {
				res.Payload[i] = fhevm.UserDecryptShare{Handle: h.Hex(), Ciphertext: hexutil.Encode(sealed)}
			}
		}

		return respond(c, res)
	}
}
