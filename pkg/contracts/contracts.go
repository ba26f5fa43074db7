// Package contracts binds the confidential token contracts. Balances and
// amounts travel as fhevm handles; cleartexts never reach the chain.
package contracts

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/grexie/confidential-defi/pkg/fhevm"
)

type ConfidentialETH interface {
	Address() common.Address
	Faucet(opts *bind.TransactOpts) (*types.Transaction, error)
	ConfidentialBalanceOf(ctx context.Context, account common.Address) (fhevm.Handle, error)
	SetOperator(opts *bind.TransactOpts, operator common.Address, until uint64) (*types.Transaction, error)
	IsOperator(ctx context.Context, holder common.Address, spender common.Address) (bool, error)
}

// EncryptedPool is a contract accepting encrypted deposits and withdrawals
// and tracking an encrypted balance per account.
type EncryptedPool interface {
	Address() common.Address
	Deposit(opts *bind.TransactOpts, amount fhevm.Handle, inputProof []byte) (*types.Transaction, error)
	Withdraw(opts *bind.TransactOpts, amount fhevm.Handle, inputProof []byte) (*types.Transaction, error)
	BalanceOf(ctx context.Context, account common.Address) (fhevm.Handle, error)
}

type ConfidentialVault interface {
	EncryptedPool
}

type ConfidentialAAVE interface {
	EncryptedPool
	TotalSupply(ctx context.Context) (fhevm.Handle, error)
	GetLastError(ctx context.Context, account common.Address) (fhevm.Handle, *big.Int, error)
	Token(ctx context.Context) (common.Address, error)
}

type contract struct {
	address common.Address
	bound   *bind.BoundContract
}

func newContract(address common.Address, abiJSON string, backend bind.ContractBackend) (*contract, error) {
	if parsed, err := abi.JSON(strings.NewReader(abiJSON)); err != nil {
		return nil, err
	} else {
		return &contract{
			address: address,
			bound:   bind.NewBoundContract(address, parsed, backend, backend, backend),
		}, nil
	}
}

func (c *contract) Address() common.Address {
	return c.address
}

func (c *contract) call(ctx context.Context, method string, params ...any) ([]any, error) {
	var out []any
	if err := c.bound.Call(&bind.CallOpts{Context: ctx}, &out, method, params...); err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return out, nil
}

func (c *contract) callHandle(ctx context.Context, method string, params ...any) (fhevm.Handle, error) {
	if out, err := c.call(ctx, method, params...); err != nil {
		return fhevm.Handle{}, err
	} else {
		return toHandle(out[0]), nil
	}
}

func (c *contract) transact(opts *bind.TransactOpts, method string, params ...any) (*types.Transaction, error) {
	if tx, err := c.bound.Transact(opts, method, params...); err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	} else {
		return tx, nil
	}
}

func toHandle(v any) fhevm.Handle {
	return fhevm.Handle(*abi.ConvertType(v, new([32]byte)).(*[32]byte))
}

type confidentialETH struct {
	*contract
}

var _ ConfidentialETH = &confidentialETH{}

func NewConfidentialETH(address common.Address, backend bind.ContractBackend) (ConfidentialETH, error) {
	if c, err := newContract(address, ConfidentialETHABI, backend); err != nil {
		return nil, err
	} else {
		return &confidentialETH{c}, nil
	}
}

func (c *confidentialETH) Faucet(opts *bind.TransactOpts) (*types.Transaction, error) {
	return c.transact(opts, "faucet")
}

func (c *confidentialETH) ConfidentialBalanceOf(ctx context.Context, account common.Address) (fhevm.Handle, error) {
	return c.callHandle(ctx, "confidentialBalanceOf", account)
}

func (c *confidentialETH) SetOperator(opts *bind.TransactOpts, operator common.Address, until uint64) (*types.Transaction, error) {
	return c.transact(opts, "setOperator", operator, new(big.Int).SetUint64(until))
}

func (c *confidentialETH) IsOperator(ctx context.Context, holder common.Address, spender common.Address) (bool, error) {
	if out, err := c.call(ctx, "isOperator", holder, spender); err != nil {
		return false, err
	} else {
		return *abi.ConvertType(out[0], new(bool)).(*bool), nil
	}
}

type encryptedPool struct {
	*contract
}

func (p *encryptedPool) Deposit(opts *bind.TransactOpts, amount fhevm.Handle, inputProof []byte) (*types.Transaction, error) {
	return p.transact(opts, "deposit", [32]byte(amount), inputProof)
}

func (p *encryptedPool) Withdraw(opts *bind.TransactOpts, amount fhevm.Handle, inputProof []byte) (*types.Transaction, error) {
	return p.transact(opts, "withdraw", [32]byte(amount), inputProof)
}

func (p *encryptedPool) BalanceOf(ctx context.Context, account common.Address) (fhevm.Handle, error) {
	return p.callHandle(ctx, "balanceOf", account)
}

type confidentialVault struct {
	encryptedPool
}

var _ ConfidentialVault = &confidentialVault{}

func NewConfidentialVault(address common.Address, backend bind.ContractBackend) (ConfidentialVault, error) {
	if c, err := newContract(address, ConfidentialVaultABI, backend); err != nil {
		return nil, err
	} else {
		return &confidentialVault{encryptedPool{c}}, nil
	}
}

type confidentialAAVE struct {
	encryptedPool
}

var _ ConfidentialAAVE = &confidentialAAVE{}

func NewConfidentialAAVE(address common.Address, backend bind.ContractBackend) (ConfidentialAAVE, error) {
	if c, err := newContract(address, ConfidentialAAVEABI, backend); err != nil {
		return nil, err
	} else {
		return &confidentialAAVE{encryptedPool{c}}, nil
	}
}

func (c *confidentialAAVE) TotalSupply(ctx context.Context) (fhevm.Handle, error) {
	return c.callHandle(ctx, "totalSupply")
}

func (c *confidentialAAVE) GetLastError(ctx context.Context, account common.Address) (fhevm.Handle, *big.Int, error) {
	if out, err := c.call(ctx, "getLastError", account); err != nil {
		return fhevm.Handle{}, nil, err
	} else {
		return toHandle(out[0]), *abi.ConvertType(out[1], new(*big.Int)).(**big.Int), nil
	}
}

func (c *confidentialAAVE) Token(ctx context.Context) (common.Address, error) {
	if out, err := c.call(ctx, "token"); err != nil {
		return common.Address{}, err
	} else {
		return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
	}
}
