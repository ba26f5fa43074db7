// Package mock runs an in-process relayer backed by a cleartext database,
// the same way the hardhat fhevm plugin does in mock mode.
package mock

import (
	"crypto/ecdsa"
	"crypto/rand"
	"errors"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/grexie/confidential-defi/pkg/fhevm"
	"golang.org/x/crypto/nacl/box"
)

type Relayer interface {
	App() *fiber.App
	Config() fhevm.Config
	Transport() http.RoundTripper
	HTTPClient() *http.Client

	Store(handle fhevm.Handle, value *big.Int)
	Allow(handle fhevm.Handle, accounts ...common.Address)
	Plaintext(handle fhevm.Handle) (*big.Int, bool)
	IsAllowed(handle fhevm.Handle, account common.Address) bool
	NewHandle(t fhevm.FheType, value *big.Int, accounts ...common.Address) fhevm.Handle
}

type relayer struct {
	app    *fiber.App
	config fhevm.Config
	now    func() time.Time

	publicKey   [32]byte
	privateKey  [32]byte
	publicKeyID string
	signer      *ecdsa.PrivateKey

	mu         sync.RWMutex
	plaintexts map[fhevm.Handle]*big.Int
	acl        map[fhevm.Handle]map[common.Address]bool
	counter    uint64
}

var _ Relayer = &relayer{}

type Option func(*relayer)

func WithClock(now func() time.Time) Option {
	return func(r *relayer) {
		r.now = now
	}
}

func NewRelayer(config fhevm.Config, opts ...Option) (Relayer, error) {
	r := relayer{
		config:      config,
		now:         time.Now,
		publicKeyID: "mock-" + uuid.NewString(),
		plaintexts:  map[fhevm.Handle]*big.Int{},
		acl:         map[fhevm.Handle]map[common.Address]bool{},
	}
	for _, opt := range opts {
		opt(&r)
	}

	if pub, priv, err := box.GenerateKey(rand.Reader); err != nil {
		return nil, err
	} else if signer, err := crypto.GenerateKey(); err != nil {
		return nil, err
	} else {
		r.publicKey = *pub
		r.privateKey = *priv
		r.signer = signer
	}

	r.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError

			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}

			return c.Status(code).JSON(fhevm.RelayerResponse[any]{Status: "failed", Message: err.Error()})
		},
	})

	r.app.Get("/v1/keyurl", r.KeyURL)
	r.app.Post("/v1/input-proof", r.InputProof)
	r.app.Post("/v1/user-decrypt", r.UserDecrypt)

	return &r, nil
}

func (r *relayer) App() *fiber.App {
	return r.app
}

func (r *relayer) Config() fhevm.Config {
	return r.config
}

func (r *relayer) Store(handle fhevm.Handle, value *big.Int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plaintexts[handle] = new(big.Int).Set(value)
}

func (r *relayer) Allow(handle fhevm.Handle, accounts ...common.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.acl[handle]; !ok {
		r.acl[handle] = map[common.Address]bool{}
	}
	for _, a := range accounts {
		r.acl[handle][a] = true
	}
}

func (r *relayer) Plaintext(handle fhevm.Handle) (*big.Int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if v, ok := r.plaintexts[handle]; ok {
		return new(big.Int).Set(v), true
	}
	return nil, false
}

func (r *relayer) IsAllowed(handle fhevm.Handle, account common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.acl[handle][account]
}

// NewHandle mints a handle for a value computed on chain, as the coprocessor
// would after a homomorphic operation.
func (r *relayer) NewHandle(t fhevm.FheType, value *big.Int, accounts ...common.Address) fhevm.Handle {
	r.mu.Lock()
	r.counter++
	n := r.counter
	r.mu.Unlock()

	seed := new(big.Int).SetUint64(n).Bytes()
	handle := fhevm.ComputeHandles(crypto.Keccak256([]byte("mock-computation"), seed), []fhevm.FheType{t}, r.config.ACLContractAddress, r.config.ChainID)[0]

	r.Store(handle, value)
	r.Allow(handle, accounts...)
	return handle
}
