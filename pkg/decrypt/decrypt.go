// Package decrypt reveals encrypted handles for a signer: generate an
// ephemeral keypair, sign the user decrypt typed data and ask the relayer.
package decrypt

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2/log"
	"github.com/grexie/confidential-defi/pkg/fhevm"
	"github.com/grexie/confidential-defi/pkg/signer"
)

const DefaultDurationDays = 10

type Decryptor interface {
	Decrypt(ctx context.Context, signer signer.Signer, pairs []fhevm.HandleContractPair) (fhevm.DecryptedResults, error)
	DecryptUint(ctx context.Context, signer signer.Signer, handle fhevm.Handle, contract common.Address) (*big.Int, error)
}

type decryptor struct {
	instance     fhevm.Instance
	durationDays int
	now          func() time.Time
}

var _ Decryptor = &decryptor{}

type Option func(*decryptor)

func WithDurationDays(days int) Option {
	return func(d *decryptor) {
		d.durationDays = days
	}
}

func WithClock(now func() time.Time) Option {
	return func(d *decryptor) {
		d.now = now
	}
}

func NewDecryptor(instance fhevm.Instance, opts ...Option) Decryptor {
	d := decryptor{
		instance:     instance,
		durationDays: DefaultDurationDays,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(&d)
	}
	return &d
}

// Decrypt reveals every pair in a single relayer request. Zero handles are
// never initialized on chain and resolve to 0 locally.
func (d *decryptor) Decrypt(ctx context.Context, s signer.Signer, pairs []fhevm.HandleContractPair) (fhevm.DecryptedResults, error) {
	results := fhevm.DecryptedResults{}

	pending := make([]fhevm.HandleContractPair, 0, len(pairs))
	contracts := []common.Address{}
	seen := map[common.Address]bool{}
	for _, p := range pairs {
		if p.Handle.IsZero() {
			results[p.Handle] = new(big.Int)
			continue
		}
		pending = append(pending, p)
		if !seen[p.ContractAddress] {
			seen[p.ContractAddress] = true
			contracts = append(contracts, p.ContractAddress)
		}
	}

	if len(pending) == 0 {
		return results, nil
	}

	keypair, err := d.instance.GenerateKeypair()
	if err != nil {
		return nil, err
	}

	startTimestamp := d.now().Unix()

	eip712, err := d.instance.CreateEIP712(keypair.PublicKey[:], contracts, startTimestamp, d.durationDays)
	if err != nil {
		return nil, err
	}

	signature, err := s.SignTypedData(ctx, eip712.TypedData)
	if err != nil {
		return nil, fmt.Errorf("failed to sign user decrypt request: %w", err)
	}

	revealed, err := d.instance.UserDecrypt(ctx, pending, keypair, signature, contracts, s.Address(), startTimestamp, d.durationDays)
	if err != nil {
		return nil, err
	}

	for h, v := range revealed {
		results[h] = v
	}

	log.Debugf("decrypted %d handles for %s", len(pending), s.Address().Hex())

	return results, nil
}

func (d *decryptor) DecryptUint(ctx context.Context, s signer.Signer, handle fhevm.Handle, contract common.Address) (*big.Int, error) {
	if handle.IsZero() {
		return new(big.Int), nil
	}

	if results, err := d.Decrypt(ctx, s, []fhevm.HandleContractPair{{Handle: handle, ContractAddress: contract}}); err != nil {
		return nil, err
	} else if v, ok := results[handle]; !ok {
		return nil, fmt.Errorf("relayer did not return a value for handle %s", handle)
	} else {
		return v, nil
	}
}
