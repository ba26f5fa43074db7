package simulated

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/grexie/confidential-defi/pkg/contracts"
	"github.com/grexie/confidential-defi/pkg/fhevm"
	"github.com/grexie/confidential-defi/pkg/fhevm/mock"
)

// FaucetAmount is what one faucet call mints: 1 cETH.
const FaucetAmount = 1_000_000

const (
	ErrorNone                = 0
	ErrorInsufficientBalance = 1
	ErrorInvalidAmount       = 2
)

type ledger struct {
	relayer  mock.Relayer
	contract common.Address

	mu       sync.Mutex
	balances map[common.Address]*big.Int
	handles  map[common.Address]fhevm.Handle
}

func newLedger(relayer mock.Relayer, contract common.Address) *ledger {
	return &ledger{
		relayer:  relayer,
		contract: contract,
		balances: map[common.Address]*big.Int{},
		handles:  map[common.Address]fhevm.Handle{},
	}
}

func (l *ledger) balance(account common.Address) *big.Int {
	if b, ok := l.balances[account]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// set stores a new balance under a fresh handle readable by the account and
// the contract. Callers hold l.mu.
func (l *ledger) set(account common.Address, value *big.Int) {
	l.balances[account] = value
	l.handles[account] = l.relayer.NewHandle(fhevm.TypeUint64, value, account, l.contract)
}

func (l *ledger) handle(account common.Address) fhevm.Handle {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.handles[account]
}

// verifyInput checks that handle was produced by an input proof for
// (contract, user) and returns its cleartext.
func verifyInput(relayer mock.Relayer, contract common.Address, opts *bind.TransactOpts, handle fhevm.Handle, inputProof []byte) (*big.Int, error) {
	if opts == nil {
		return nil, fmt.Errorf("missing transact opts")
	}
	user := opts.From

	handles, _, _, err := fhevm.ParseInputProof(inputProof)
	if err != nil {
		return nil, err
	}

	found := false
	for _, h := range handles {
		if h == handle {
			found = true
			break
		}
	}

	if !found {
		return nil, fmt.Errorf("handle %s not covered by input proof", handle)
	} else if !relayer.IsAllowed(handle, contract) || !relayer.IsAllowed(handle, user) {
		return nil, fmt.Errorf("input proof was not issued for contract %s and user %s", contract.Hex(), user.Hex())
	} else if v, ok := relayer.Plaintext(handle); !ok {
		return nil, fmt.Errorf("unknown handle %s", handle)
	} else if handle.Type() != fhevm.TypeUint64 {
		return nil, fmt.Errorf("expected euint64 input, got %s", handle.Type())
	} else {
		return v, nil
	}
}

type ConfidentialETH struct {
	chain *Chain
	*ledger
	now func() time.Time

	operators map[common.Address]map[common.Address]uint64
}

var _ contracts.ConfidentialETH = &ConfidentialETH{}

func (c *ConfidentialETH) Address() common.Address {
	return c.contract
}

func (c *ConfidentialETH) Faucet(opts *bind.TransactOpts) (*types.Transaction, error) {
	return c.chain.send(opts, c.contract, "faucet", func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.set(opts.From, new(big.Int).Add(c.balance(opts.From), big.NewInt(FaucetAmount)))
		return true
	})
}

func (c *ConfidentialETH) ConfidentialBalanceOf(ctx context.Context, account common.Address) (fhevm.Handle, error) {
	return c.handle(account), nil
}

func (c *ConfidentialETH) SetOperator(opts *bind.TransactOpts, operator common.Address, until uint64) (*types.Transaction, error) {
	return c.chain.send(opts, c.contract, "setOperator", func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.operators[opts.From] == nil {
			c.operators[opts.From] = map[common.Address]uint64{}
		}
		c.operators[opts.From][operator] = until
		return true
	})
}

func (c *ConfidentialETH) IsOperator(ctx context.Context, holder common.Address, spender common.Address) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isOperator(holder, spender), nil
}

func (c *ConfidentialETH) isOperator(holder common.Address, spender common.Address) bool {
	return holder == spender || c.operators[holder][spender] >= uint64(c.now().Unix())
}

// transfer moves amount, or nothing when the sender cannot cover it, and
// returns what was moved. Spender must be an operator of from.
func (c *ConfidentialETH) transfer(spender common.Address, from common.Address, to common.Address, amount *big.Int) (*big.Int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isOperator(from, spender) {
		return nil, false
	}

	moved := new(big.Int)
	if c.balance(from).Cmp(amount) >= 0 {
		moved.Set(amount)
	}

	c.set(from, new(big.Int).Sub(c.balance(from), moved))
	c.set(to, new(big.Int).Add(c.balance(to), moved))
	return moved, true
}

type ConfidentialVault struct {
	chain *Chain
	ceth  *ConfidentialETH
	*ledger
}

var _ contracts.ConfidentialVault = &ConfidentialVault{}

func (v *ConfidentialVault) Address() common.Address {
	return v.contract
}

func (v *ConfidentialVault) Deposit(opts *bind.TransactOpts, amount fhevm.Handle, inputProof []byte) (*types.Transaction, error) {
	value, err := verifyInput(v.relayer, v.contract, opts, amount, inputProof)
	if err != nil {
		return nil, fmt.Errorf("deposit: %w", err)
	}

	return v.chain.send(opts, v.contract, "deposit", func() bool {
		if moved, ok := v.ceth.transfer(v.contract, opts.From, v.contract, value); !ok {
			return false
		} else {
			v.mu.Lock()
			defer v.mu.Unlock()
			v.set(opts.From, new(big.Int).Add(v.balance(opts.From), moved))
			return true
		}
	})
}

func (v *ConfidentialVault) Withdraw(opts *bind.TransactOpts, amount fhevm.Handle, inputProof []byte) (*types.Transaction, error) {
	value, err := verifyInput(v.relayer, v.contract, opts, amount, inputProof)
	if err != nil {
		return nil, fmt.Errorf("withdraw: %w", err)
	}

	return v.chain.send(opts, v.contract, "withdraw", func() bool {
		v.mu.Lock()
		moved := new(big.Int)
		if v.balance(opts.From).Cmp(value) >= 0 {
			moved.Set(value)
		}
		v.set(opts.From, new(big.Int).Sub(v.balance(opts.From), moved))
		v.mu.Unlock()

		_, ok := v.ceth.transfer(v.contract, v.contract, opts.From, moved)
		return ok
	})
}

func (v *ConfidentialVault) BalanceOf(ctx context.Context, account common.Address) (fhevm.Handle, error) {
	return v.handle(account), nil
}

type lastError struct {
	handle    fhevm.Handle
	timestamp *big.Int
}

type ConfidentialAAVE struct {
	chain *Chain
	token common.Address
	now   func() time.Time
	*ledger

	totalSupply       *big.Int
	totalSupplyHandle fhevm.Handle
	viewers           map[common.Address]bool
	errors            map[common.Address]lastError
}

var _ contracts.ConfidentialAAVE = &ConfidentialAAVE{}

func (a *ConfidentialAAVE) Address() common.Address {
	return a.contract
}

func (a *ConfidentialAAVE) setTotalSupply(value *big.Int) {
	viewers := []common.Address{a.contract}
	for v := range a.viewers {
		viewers = append(viewers, v)
	}
	a.totalSupply = value
	a.totalSupplyHandle = a.relayer.NewHandle(fhevm.TypeUint64, value, viewers...)
}

func (a *ConfidentialAAVE) setError(user common.Address, code int64) {
	a.errors[user] = lastError{
		handle:    a.relayer.NewHandle(fhevm.TypeUint64, big.NewInt(code), user, a.contract),
		timestamp: big.NewInt(a.now().Unix()),
	}
}

func (a *ConfidentialAAVE) Deposit(opts *bind.TransactOpts, amount fhevm.Handle, inputProof []byte) (*types.Transaction, error) {
	value, err := verifyInput(a.relayer, a.contract, opts, amount, inputProof)
	if err != nil {
		return nil, fmt.Errorf("deposit: %w", err)
	}

	return a.chain.send(opts, a.contract, "deposit", func() bool {
		a.mu.Lock()
		defer a.mu.Unlock()

		a.viewers[opts.From] = true
		if value.Sign() == 0 {
			a.setError(opts.From, ErrorInvalidAmount)
			return true
		}

		a.set(opts.From, new(big.Int).Add(a.balance(opts.From), value))
		a.setTotalSupply(new(big.Int).Add(a.totalSupply, value))
		a.setError(opts.From, ErrorNone)
		return true
	})
}

func (a *ConfidentialAAVE) Withdraw(opts *bind.TransactOpts, amount fhevm.Handle, inputProof []byte) (*types.Transaction, error) {
	value, err := verifyInput(a.relayer, a.contract, opts, amount, inputProof)
	if err != nil {
		return nil, fmt.Errorf("withdraw: %w", err)
	}

	return a.chain.send(opts, a.contract, "withdraw", func() bool {
		a.mu.Lock()
		defer a.mu.Unlock()

		a.viewers[opts.From] = true
		if value.Sign() == 0 {
			a.setError(opts.From, ErrorInvalidAmount)
			return true
		} else if a.balance(opts.From).Cmp(value) < 0 {
			a.setError(opts.From, ErrorInsufficientBalance)
			return true
		}

		a.set(opts.From, new(big.Int).Sub(a.balance(opts.From), value))
		a.setTotalSupply(new(big.Int).Sub(a.totalSupply, value))
		a.setError(opts.From, ErrorNone)
		return true
	})
}

func (a *ConfidentialAAVE) BalanceOf(ctx context.Context, account common.Address) (fhevm.Handle, error) {
	return a.handle(account), nil
}

func (a *ConfidentialAAVE) TotalSupply(ctx context.Context) (fhevm.Handle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.totalSupplyHandle, nil
}

func (a *ConfidentialAAVE) GetLastError(ctx context.Context, account common.Address) (fhevm.Handle, *big.Int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if e, ok := a.errors[account]; ok {
		return e.handle, new(big.Int).Set(e.timestamp), nil
	}
	return fhevm.ZeroHandle, new(big.Int), nil
}

func (a *ConfidentialAAVE) Token(ctx context.Context) (common.Address, error) {
	return a.token, nil
}

// Network is a full deployment of the confidential contracts.
type Network struct {
	Chain                *Chain
	Relayer              mock.Relayer
	ConfidentialETH      *ConfidentialETH
	ConfidentialVault    *ConfidentialVault
	ConfidentialTestCoin common.Address
	ConfidentialAAVE     *ConfidentialAAVE
}

type Option func(*options)

type options struct {
	now func() time.Time
}

func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// NewNetwork deploys every contract from owner, assigning addresses the way
// sequential CREATE transactions would.
func NewNetwork(relayer mock.Relayer, owner common.Address, opts ...Option) *Network {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	c := NewChain()
	address := func(nonce uint64) common.Address {
		return crypto.CreateAddress(owner, nonce)
	}

	ceth := &ConfidentialETH{
		chain:     c,
		ledger:    newLedger(relayer, address(1)),
		now:       o.now,
		operators: map[common.Address]map[common.Address]uint64{},
	}

	vault := &ConfidentialVault{
		chain:  c,
		ceth:   ceth,
		ledger: newLedger(relayer, address(2)),
	}

	aave := &ConfidentialAAVE{
		chain:   c,
		token:   address(3),
		now:     o.now,
		ledger:  newLedger(relayer, address(4)),
		viewers: map[common.Address]bool{owner: true},
		errors:  map[common.Address]lastError{},
	}
	aave.setTotalSupply(new(big.Int))

	return &Network{
		Chain:                c,
		Relayer:              relayer,
		ConfidentialETH:      ceth,
		ConfidentialVault:    vault,
		ConfidentialTestCoin: address(3),
		ConfidentialAAVE:     aave,
	}
}
