package fhevm

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gofiber/fiber/v2/log"
)

// Instance is the client side of the relayer: it encrypts inputs for
// contracts and reveals handles a user is allowed to decrypt.
type Instance interface {
	Config() Config
	NetworkPublicKey() [32]byte

	CreateEncryptedInput(contract common.Address, user common.Address) EncryptedInput
	GenerateKeypair() (Keypair, error)
	CreateEIP712(publicKey []byte, contracts []common.Address, startTimestamp int64, durationDays int) (EIP712, error)
	UserDecrypt(ctx context.Context, pairs []HandleContractPair, keypair Keypair, signature []byte, contracts []common.Address, user common.Address, startTimestamp int64, durationDays int) (DecryptedResults, error)
}

type instance struct {
	config           Config
	relayer          *relayer
	networkPublicKey [32]byte
	now              func() time.Time
}

var _ Instance = &instance{}

type Option func(*instance)

func WithHTTPClient(client HTTPDoer) Option {
	return func(i *instance) {
		i.relayer.client = client
	}
}

func WithClock(now func() time.Time) Option {
	return func(i *instance) {
		i.now = now
	}
}

func CreateInstance(ctx context.Context, config Config, opts ...Option) (Instance, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	i := instance{
		config:  config,
		relayer: newRelayer(config.RelayerURL, nil),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(&i)
	}

	if res, err := i.relayer.KeyURL(ctx); err != nil {
		return nil, fmt.Errorf("unable to fetch network public key: %w", err)
	} else if pk, err := ParsePublicKey(res.PublicKey); err != nil {
		return nil, err
	} else {
		i.networkPublicKey = pk
		log.Debugf("fhevm instance ready chain=%d relayer=%s key=%s", config.ChainID, config.RelayerURL, res.PublicKeyID)
		return &i, nil
	}
}

func (i *instance) Config() Config {
	return i.config
}

func (i *instance) NetworkPublicKey() [32]byte {
	return i.networkPublicKey
}

func (i *instance) CreateEncryptedInput(contract common.Address, user common.Address) EncryptedInput {
	return &encryptedInput{instance: i, contract: contract, user: user}
}

func (i *instance) GenerateKeypair() (Keypair, error) {
	return GenerateKeypair()
}

func (i *instance) CreateEIP712(publicKey []byte, contracts []common.Address, startTimestamp int64, durationDays int) (EIP712, error) {
	return NewUserDecryptEIP712(i.config.GatewayChainID, i.config.VerifyingContractAddressDecryption, publicKey, contracts, startTimestamp, durationDays, nil)
}

func (i *instance) UserDecrypt(ctx context.Context, pairs []HandleContractPair, keypair Keypair, signature []byte, contracts []common.Address, user common.Address, startTimestamp int64, durationDays int) (DecryptedResults, error) {
	if len(pairs) == 0 {
		return DecryptedResults{}, nil
	} else if len(signature) == 0 {
		return nil, fmt.Errorf("missing user decrypt signature")
	} else if len(contracts) > MaxUserDecryptContractAddresses {
		return nil, fmt.Errorf("too many contract addresses: %d, maximum is %d", len(contracts), MaxUserDecryptContractAddresses)
	} else if err := CheckRequestValidity(i.now().Unix(), startTimestamp, durationDays); err != nil {
		return nil, err
	}

	allowed := make(map[common.Address]bool, len(contracts))
	for _, c := range contracts {
		allowed[c] = true
	}

	bits := 0
	req := UserDecryptRequest{
		HandleContractPairs: make([]UserDecryptPair, len(pairs)),
		RequestValidity: RequestValidity{
			StartTimestamp: strconv.FormatInt(startTimestamp, 10),
			DurationDays:   strconv.Itoa(durationDays),
		},
		ContractsChainID:  strconv.FormatUint(i.config.ChainID, 10),
		ContractAddresses: make([]string, len(contracts)),
		UserAddress:       user.Hex(),
		Signature:         strip0x(hexutil.Encode(signature)),
		PublicKey:         strip0x(keypair.PublicKeyHex()),
		ExtraData:         strip0x(hexutil.Encode(DefaultExtraData)),
	}

	for j, p := range pairs {
		if !allowed[p.ContractAddress] {
			return nil, fmt.Errorf("contract address %s of handle %s is not in the contract addresses list", p.ContractAddress, p.Handle)
		} else if !p.Handle.Type().Valid() {
			return nil, fmt.Errorf("handle %s has an invalid fhe type", p.Handle)
		}
		bits += p.Handle.Type().Bits()
		req.HandleContractPairs[j] = UserDecryptPair{Handle: p.Handle.Hex(), ContractAddress: p.ContractAddress.Hex()}
	}
	if bits > MaxUserDecryptBits {
		return nil, fmt.Errorf("cannot decrypt more than %d encrypted bits in a single request", MaxUserDecryptBits)
	}
	for j, c := range contracts {
		req.ContractAddresses[j] = c.Hex()
	}

	if res, err := i.relayer.UserDecrypt(ctx, &req); err != nil {
		return nil, err
	} else {
		out := make(DecryptedResults, len(res.Payload))
		for _, share := range res.Payload {
			if h, err := HandleFromHex(share.Handle); err != nil {
				return nil, err
			} else if sealed, err := hexutil.Decode(ensure0x(share.Ciphertext)); err != nil {
				return nil, fmt.Errorf("invalid sealed cleartext for handle %s: %v", h, err)
			} else if cleartext, err := keypair.Open(sealed); err != nil {
				return nil, fmt.Errorf("handle %s: %w", h, err)
			} else {
				out[h] = new(big.Int).SetBytes(cleartext)
			}
		}

		for _, p := range pairs {
			if _, ok := out[p.Handle]; !ok {
				return nil, fmt.Errorf("relayer did not return a cleartext for handle %s", p.Handle)
			}
		}

		return out, nil
	}
}
