// Package confidential implements the user flows of the dapp on top of the
// contract bindings: faucet, operator approval, the cETH vault and the
// confidential lending pool.
package confidential

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/gofiber/fiber/v2/log"
	"github.com/grexie/confidential-defi/pkg/chain"
	"github.com/grexie/confidential-defi/pkg/contracts"
	"github.com/grexie/confidential-defi/pkg/decrypt"
	"github.com/grexie/confidential-defi/pkg/fhevm"
	"github.com/grexie/confidential-defi/pkg/signer"
)

var (
	ErrTransactionReverted   = chain.ErrTransactionReverted
	ErrContractNotConfigured = errors.New("contract not configured")
)

// OperatorDuration is how long AuthorizeVault lets the vault move cETH.
const OperatorDuration = 365 * 24 * time.Hour

type Service interface {
	Faucet(ctx context.Context, s signer.Signer) (*Balance, error)
	CETHBalance(ctx context.Context, s signer.Signer) (*Balance, error)

	IsOperator(ctx context.Context, holder common.Address) (bool, error)
	AuthorizeVault(ctx context.Context, s signer.Signer) (*Transaction, error)

	VaultDeposit(ctx context.Context, s signer.Signer, amount uint64) (*Balance, error)
	VaultWithdraw(ctx context.Context, s signer.Signer, amount uint64) (*Balance, error)
	VaultBalance(ctx context.Context, s signer.Signer) (*Balance, error)

	AAVEDeposit(ctx context.Context, s signer.Signer, amount uint64) (*Transaction, error)
	AAVEWithdraw(ctx context.Context, s signer.Signer, amount uint64) (*Transaction, error)
	AAVEBalance(ctx context.Context, s signer.Signer) (*Balance, error)
	AAVETotalSupply(ctx context.Context, s signer.Signer) (*Balance, error)
	AAVELastError(ctx context.Context, s signer.Signer) (*LastError, error)
	AAVEInfo(ctx context.Context) (*AAVEInfo, error)
}

type Options struct {
	Instance  fhevm.Instance
	Decryptor decrypt.Decryptor
	Waiter    chain.Waiter
	ChainID   *big.Int

	ConfidentialETH   contracts.ConfidentialETH
	ConfidentialVault contracts.ConfidentialVault
	ConfidentialAAVE  contracts.ConfidentialAAVE

	Now func() time.Time
}

type service struct {
	Options
}

var _ Service = &service{}

func NewService(opts Options) (Service, error) {
	if opts.Instance == nil {
		return nil, fmt.Errorf("fhevm instance is required")
	} else if opts.Waiter == nil {
		return nil, fmt.Errorf("transaction waiter is required")
	}

	if opts.Decryptor == nil {
		opts.Decryptor = decrypt.NewDecryptor(opts.Instance)
	}
	if opts.ChainID == nil {
		opts.ChainID = new(big.Int).SetUint64(opts.Instance.Config().ChainID)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &service{opts}, nil
}

type Balance struct {
	Contract  common.Address `json:"contract"`
	Account   common.Address `json:"account"`
	Handle    fhevm.Handle   `json:"handle"`
	Value     *big.Int       `json:"value"`
	Formatted string         `json:"formatted"`
}

type Transaction struct {
	Hash        common.Hash `json:"hash"`
	BlockNumber *big.Int    `json:"blockNumber,omitempty"`
}

type LastError struct {
	Code      uint64    `json:"code"`
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
}

type AAVEInfo struct {
	Contract common.Address `json:"contract"`
	Token    common.Address `json:"token"`
}

const UnknownError = "UNKNOWN_ERROR"

var errorNames = map[uint64]string{
	0: "NO_ERROR",
	1: "INSUFFICIENT_BALANCE",
	2: "INVALID_AMOUNT",
}

// ErrorName maps a ConfidentialAAVE error code to its name.
func ErrorName(code uint64) string {
	if name, ok := errorNames[code]; ok {
		return name
	}
	return UnknownError
}

func requireContract(c any, name string) error {
	if c == nil {
		return fmt.Errorf("%w: %s", ErrContractNotConfigured, name)
	}
	return nil
}

func (s *service) transactOpts(ctx context.Context, sg signer.Signer) (*bind.TransactOpts, error) {
	return sg.TransactOpts(ctx, s.ChainID)
}

func (s *service) wait(ctx context.Context, tx *types.Transaction) (*Transaction, error) {
	Progress(ctx, "Transaction submitted. Waiting for confirmation...")

	if receipt, err := s.Waiter.WaitMined(ctx, tx); err != nil {
		return nil, err
	} else {
		log.Infof("transaction %s mined in block %s", tx.Hash().Hex(), receipt.BlockNumber)
		return &Transaction{Hash: tx.Hash(), BlockNumber: receipt.BlockNumber}, nil
	}
}

func (s *service) reveal(ctx context.Context, sg signer.Signer, contract common.Address, account common.Address, handle fhevm.Handle, decimals int) (*Balance, error) {
	if value, err := s.Decryptor.DecryptUint(ctx, sg, handle, contract); err != nil {
		return nil, err
	} else {
		return &Balance{
			Contract:  contract,
			Account:   account,
			Handle:    handle,
			Value:     value,
			Formatted: decrypt.FormatUnits(value, decimals),
		}, nil
	}
}

// encryptAmount encrypts amount for contract on behalf of the signer.
func (s *service) encryptAmount(ctx context.Context, sg signer.Signer, contract common.Address, amount uint64) (fhevm.Encrypted, error) {
	Progress(ctx, "Encrypting amount...")
	return s.Instance.CreateEncryptedInput(contract, sg.Address()).Add64(amount).Encrypt(ctx)
}

func (s *service) Faucet(ctx context.Context, sg signer.Signer) (*Balance, error) {
	if err := requireContract(s.ConfidentialETH, contracts.ConfidentialETHName); err != nil {
		return nil, err
	}

	opts, err := s.transactOpts(ctx, sg)
	if err != nil {
		return nil, err
	}

	Progress(ctx, "Minting...")
	if tx, err := s.ConfidentialETH.Faucet(opts); err != nil {
		return nil, err
	} else if _, err := s.wait(ctx, tx); err != nil {
		return nil, err
	}

	Progress(ctx, "Revealing...")
	return s.CETHBalance(ctx, sg)
}

func (s *service) CETHBalance(ctx context.Context, sg signer.Signer) (*Balance, error) {
	if err := requireContract(s.ConfidentialETH, contracts.ConfidentialETHName); err != nil {
		return nil, err
	}

	if handle, err := s.ConfidentialETH.ConfidentialBalanceOf(ctx, sg.Address()); err != nil {
		return nil, err
	} else {
		return s.reveal(ctx, sg, s.ConfidentialETH.Address(), sg.Address(), handle, decrypt.CETHDecimals)
	}
}

func (s *service) IsOperator(ctx context.Context, holder common.Address) (bool, error) {
	if err := requireContract(s.ConfidentialETH, contracts.ConfidentialETHName); err != nil {
		return false, err
	} else if err := requireContract(s.ConfidentialVault, contracts.ConfidentialVaultName); err != nil {
		return false, err
	}

	return s.ConfidentialETH.IsOperator(ctx, holder, s.ConfidentialVault.Address())
}

func (s *service) AuthorizeVault(ctx context.Context, sg signer.Signer) (*Transaction, error) {
	if err := requireContract(s.ConfidentialETH, contracts.ConfidentialETHName); err != nil {
		return nil, err
	} else if err := requireContract(s.ConfidentialVault, contracts.ConfidentialVaultName); err != nil {
		return nil, err
	}

	opts, err := s.transactOpts(ctx, sg)
	if err != nil {
		return nil, err
	}

	until := uint64(s.Now().Add(OperatorDuration).Unix())

	Progress(ctx, "Authorizing...")
	if tx, err := s.ConfidentialETH.SetOperator(opts, s.ConfidentialVault.Address(), until); err != nil {
		return nil, err
	} else {
		return s.wait(ctx, tx)
	}
}

func (s *service) poolTransaction(ctx context.Context, sg signer.Signer, pool contracts.EncryptedPool, kind string, amount uint64) (*Transaction, error) {
	encrypted, err := s.encryptAmount(ctx, sg, pool.Address(), amount)
	if err != nil {
		return nil, err
	}

	opts, err := s.transactOpts(ctx, sg)
	if err != nil {
		return nil, err
	}

	Progress(ctx, "Sending transaction...")

	var tx *types.Transaction
	if kind == "deposit" {
		tx, err = pool.Deposit(opts, encrypted.Handles[0], encrypted.InputProof)
	} else {
		tx, err = pool.Withdraw(opts, encrypted.Handles[0], encrypted.InputProof)
	}
	if err != nil {
		return nil, err
	}

	return s.wait(ctx, tx)
}

func (s *service) VaultDeposit(ctx context.Context, sg signer.Signer, amount uint64) (*Balance, error) {
	if err := requireContract(s.ConfidentialVault, contracts.ConfidentialVaultName); err != nil {
		return nil, err
	} else if _, err := s.poolTransaction(ctx, sg, s.ConfidentialVault, "deposit", amount); err != nil {
		return nil, err
	}

	Progress(ctx, "Deposit successful!")
	return s.VaultBalance(ctx, sg)
}

func (s *service) VaultWithdraw(ctx context.Context, sg signer.Signer, amount uint64) (*Balance, error) {
	if err := requireContract(s.ConfidentialVault, contracts.ConfidentialVaultName); err != nil {
		return nil, err
	} else if _, err := s.poolTransaction(ctx, sg, s.ConfidentialVault, "withdraw", amount); err != nil {
		return nil, err
	}

	Progress(ctx, "Withdrawal successful!")
	return s.VaultBalance(ctx, sg)
}

func (s *service) VaultBalance(ctx context.Context, sg signer.Signer) (*Balance, error) {
	if err := requireContract(s.ConfidentialVault, contracts.ConfidentialVaultName); err != nil {
		return nil, err
	}

	if handle, err := s.ConfidentialVault.BalanceOf(ctx, sg.Address()); err != nil {
		return nil, err
	} else {
		return s.reveal(ctx, sg, s.ConfidentialVault.Address(), sg.Address(), handle, decrypt.CETHDecimals)
	}
}

func (s *service) AAVEDeposit(ctx context.Context, sg signer.Signer, amount uint64) (*Transaction, error) {
	if err := requireContract(s.ConfidentialAAVE, contracts.ConfidentialAAVEName); err != nil {
		return nil, err
	} else if tx, err := s.poolTransaction(ctx, sg, s.ConfidentialAAVE, "deposit", amount); err != nil {
		return nil, err
	} else {
		Progress(ctx, "Deposit successful!")
		return tx, nil
	}
}

func (s *service) AAVEWithdraw(ctx context.Context, sg signer.Signer, amount uint64) (*Transaction, error) {
	if err := requireContract(s.ConfidentialAAVE, contracts.ConfidentialAAVEName); err != nil {
		return nil, err
	} else if tx, err := s.poolTransaction(ctx, sg, s.ConfidentialAAVE, "withdraw", amount); err != nil {
		return nil, err
	} else {
		Progress(ctx, "Withdrawal successful!")
		return tx, nil
	}
}

func (s *service) AAVEBalance(ctx context.Context, sg signer.Signer) (*Balance, error) {
	if err := requireContract(s.ConfidentialAAVE, contracts.ConfidentialAAVEName); err != nil {
		return nil, err
	}

	if handle, err := s.ConfidentialAAVE.BalanceOf(ctx, sg.Address()); err != nil {
		return nil, err
	} else {
		return s.reveal(ctx, sg, s.ConfidentialAAVE.Address(), sg.Address(), handle, 0)
	}
}

func (s *service) AAVETotalSupply(ctx context.Context, sg signer.Signer) (*Balance, error) {
	if err := requireContract(s.ConfidentialAAVE, contracts.ConfidentialAAVEName); err != nil {
		return nil, err
	}

	if handle, err := s.ConfidentialAAVE.TotalSupply(ctx); err != nil {
		return nil, err
	} else {
		return s.reveal(ctx, sg, s.ConfidentialAAVE.Address(), common.Address{}, handle, 0)
	}
}

func (s *service) AAVELastError(ctx context.Context, sg signer.Signer) (*LastError, error) {
	if err := requireContract(s.ConfidentialAAVE, contracts.ConfidentialAAVEName); err != nil {
		return nil, err
	}

	handle, timestamp, err := s.ConfidentialAAVE.GetLastError(ctx, sg.Address())
	if err != nil {
		return nil, err
	}

	code, err := s.Decryptor.DecryptUint(ctx, sg, handle, s.ConfidentialAAVE.Address())
	if err != nil {
		return nil, err
	}

	e := LastError{Name: UnknownError, Timestamp: time.Unix(timestamp.Int64(), 0).UTC()}
	if code.IsUint64() {
		e.Code = code.Uint64()
		e.Name = ErrorName(e.Code)
	}
	return &e, nil
}

func (s *service) AAVEInfo(ctx context.Context) (*AAVEInfo, error) {
	if err := requireContract(s.ConfidentialAAVE, contracts.ConfidentialAAVEName); err != nil {
		return nil, err
	}

	if token, err := s.ConfidentialAAVE.Token(ctx); err != nil {
		return nil, err
	} else {
		return &AAVEInfo{Contract: s.ConfidentialAAVE.Address(), Token: token}, nil
	}
}
