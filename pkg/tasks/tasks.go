// Package tasks implements the command line tasks for the confidential
// contracts.
package tasks

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/grexie/confidential-defi/pkg/app"
	"github.com/grexie/confidential-defi/pkg/confidential"
	"github.com/grexie/confidential-defi/pkg/contracts"
	"github.com/grexie/confidential-defi/pkg/decrypt"
	"github.com/grexie/confidential-defi/pkg/signer"
)

var ErrContractRequired = errors.New("Please provide the contract address with --contract")

const accessHint = "Make sure the account has access permissions."

type Args struct {
	Account  string
	Amount   string
	Contract string
}

type Task struct {
	Name        string
	Description string
	Contract    string
	Account     bool
	Amount      bool
	Run         func(ctx context.Context, e *Env) error
}

// Env is what a running task sees: the parsed flags, the bound service and
// the resolved signer.
type Env struct {
	Args     Args
	App      *app.App
	Service  confidential.Service
	Signer   signer.Signer
	Out      io.Writer
	Err      io.Writer
	Decimals int
}

func (e *Env) Printf(format string, args ...any) {
	fmt.Fprintf(e.Out, format+"\n", args...)
}

func (e *Env) Errorf(format string, args ...any) {
	fmt.Fprintf(e.Err, format+"\n", args...)
}

func (e *Env) amount() (uint64, error) {
	return decrypt.ParseUint64Units(e.Args.Amount, e.Decimals)
}

type Runner struct {
	app   *app.App
	out   io.Writer
	err   io.Writer
	tasks map[string]Task
}

func NewRunner(a *app.App, out io.Writer, err io.Writer) *Runner {
	r := Runner{app: a, out: out, err: err, tasks: map[string]Task{}}
	for _, t := range DefaultTasks() {
		r.tasks[t.Name] = t
	}
	return &r
}

func (r *Runner) Names() []string {
	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Runner) Usage() {
	fmt.Fprintln(r.err, "usage: tasks <task> [--account N] [--amount X] [--contract 0x...]")
	fmt.Fprintln(r.err)
	for _, name := range r.Names() {
		fmt.Fprintf(r.err, "  %-32s %s\n", name, r.tasks[name].Description)
	}
}

// Run parses args as a task name followed by its flags and runs the task.
func (r *Runner) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		r.Usage()
		return fmt.Errorf("no task given")
	}

	t, ok := r.tasks[args[0]]
	if !ok {
		r.Usage()
		return fmt.Errorf("unknown task %q", args[0])
	}

	var a Args
	fs := flag.NewFlagSet(t.Name, flag.ContinueOnError)
	fs.SetOutput(r.err)
	fs.StringVar(&a.Account, "account", "", "Specify which account [0, 1, 2, etc] or its address")
	fs.StringVar(&a.Amount, "amount", "", "Amount for the transaction")
	fs.StringVar(&a.Contract, "contract", "", "Address of the "+t.Contract+" contract")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	if t.Account && strings.TrimSpace(a.Account) == "" {
		return fmt.Errorf("missing required flag --account")
	} else if t.Amount && strings.TrimSpace(a.Amount) == "" {
		return fmt.Errorf("missing required flag --amount")
	}

	e := Env{Args: a, App: r.app, Out: r.out, Err: r.err}

	if address, err := r.app.ContractAddress(ctx, t.Contract, a.Contract); errors.Is(err, app.ErrContractNotDeployed) {
		return ErrContractRequired
	} else if err != nil {
		return err
	} else if service, err := r.app.Service(ctx, map[string]string{t.Contract: address.Hex()}); err != nil {
		return err
	} else {
		e.Service = service
	}

	ref := a.Account
	if !t.Account {
		ref = "0"
	}
	if s, err := r.app.Signers.Signer(ctx, ref); err != nil {
		return err
	} else {
		e.Signer = s
	}

	return t.Run(ctx, &e)
}

func DefaultTasks() []Task {
	tasks := []Task{}
	tasks = append(tasks, aaveTasks()...)
	tasks = append(tasks, vaultTasks()...)
	tasks = append(tasks, cethTasks()...)
	return tasks
}

func isoTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

func aaveTasks() []Task {
	return []Task{
		{
			Name:        "confidential-aave:deposit",
			Description: "Deposit an encrypted amount into ConfidentialAAVE",
			Contract:    contracts.ConfidentialAAVEName,
			Account:     true,
			Amount:      true,
			Run: func(ctx context.Context, e *Env) error {
				amount, err := e.amount()
				if err != nil {
					return err
				}

				e.Printf("Depositing %d units for account %s (%s)", amount, e.Args.Account, e.Signer.Address().Hex())
				if tx, err := e.Service.AAVEDeposit(ctx, e.Signer, amount); err != nil {
					return err
				} else {
					e.Printf("Transaction hash: %s", tx.Hash.Hex())
					e.Printf("Deposit completed successfully!")
					return nil
				}
			},
		},
		{
			Name:        "confidential-aave:withdraw",
			Description: "Withdraw an encrypted amount from ConfidentialAAVE",
			Contract:    contracts.ConfidentialAAVEName,
			Account:     true,
			Amount:      true,
			Run: func(ctx context.Context, e *Env) error {
				amount, err := e.amount()
				if err != nil {
					return err
				}

				e.Printf("Withdrawing %d units for account %s (%s)", amount, e.Args.Account, e.Signer.Address().Hex())
				if tx, err := e.Service.AAVEWithdraw(ctx, e.Signer, amount); err != nil {
					return err
				} else {
					e.Printf("Transaction hash: %s", tx.Hash.Hex())
					e.Printf("Withdrawal completed successfully!")
					return nil
				}
			},
		},
		{
			Name:        "confidential-aave:balance",
			Description: "Decrypt the ConfidentialAAVE balance of an account",
			Contract:    contracts.ConfidentialAAVEName,
			Account:     true,
			Run: func(ctx context.Context, e *Env) error {
				e.Printf("Getting balance for account %s (%s)", e.Args.Account, e.Signer.Address().Hex())
				if b, err := e.Service.AAVEBalance(ctx, e.Signer); err != nil {
					e.Errorf("Failed to decrypt balance. %s", accessHint)
					e.Errorf("Error: %v", err)
				} else {
					e.Printf("Balance: %s units", b.Formatted)
				}
				return nil
			},
		},
		{
			Name:        "confidential-aave:total-supply",
			Description: "Decrypt the ConfidentialAAVE total supply as the first account",
			Contract:    contracts.ConfidentialAAVEName,
			Run: func(ctx context.Context, e *Env) error {
				e.Printf("Getting total supply...")
				if b, err := e.Service.AAVETotalSupply(ctx, e.Signer); err != nil {
					e.Errorf("Failed to decrypt total supply.")
					e.Errorf("Error: %v", err)
				} else {
					e.Printf("Total Supply: %s units", b.Formatted)
				}
				return nil
			},
		},
		{
			Name:        "confidential-aave:error",
			Description: "Decrypt the last ConfidentialAAVE error of an account",
			Contract:    contracts.ConfidentialAAVEName,
			Account:     true,
			Run: func(ctx context.Context, e *Env) error {
				e.Printf("Getting last error for account %s (%s)", e.Args.Account, e.Signer.Address().Hex())
				if le, err := e.Service.AAVELastError(ctx, e.Signer); err != nil {
					e.Errorf("Failed to decrypt error code.")
					e.Errorf("Error: %v", err)
				} else {
					e.Printf("Error Code: %d (%s)", le.Code, le.Name)
					e.Printf("Timestamp: %d (%s)", le.Timestamp.Unix(), isoTime(le.Timestamp))
				}
				return nil
			},
		},
		{
			Name:        "confidential-aave:info",
			Description: "Show the ConfidentialAAVE contract and its token",
			Contract:    contracts.ConfidentialAAVEName,
			Run: func(ctx context.Context, e *Env) error {
				info, err := e.Service.AAVEInfo(ctx)
				if err != nil {
					return err
				}

				e.Printf("ConfidentialAAVE Contract Info:")
				e.Printf("Contract Address: %s", info.Contract.Hex())
				e.Printf("Token Address: %s", info.Token.Hex())
				e.Printf("\nAvailable commands:")
				e.Printf("- tasks confidential-aave:deposit --account 0 --amount 1000 --contract <address>")
				e.Printf("- tasks confidential-aave:withdraw --account 0 --amount 500 --contract <address>")
				e.Printf("- tasks confidential-aave:balance --account 0 --contract <address>")
				e.Printf("- tasks confidential-aave:total-supply --contract <address>")
				e.Printf("- tasks confidential-aave:error --account 0 --contract <address>")
				return nil
			},
		},
	}
}

func vaultTasks() []Task {
	reveal := func(e *Env, b *confidential.Balance, err error) error {
		if err != nil {
			e.Errorf("Failed to decrypt vault balance. %s", accessHint)
			e.Errorf("Error: %v", err)
			return nil
		}
		e.Printf("Vault balance: %s cETH", b.Formatted)
		return nil
	}

	return []Task{
		{
			Name:        "vault:deposit",
			Description: "Deposit cETH into ConfidentialVault (amount in cETH)",
			Contract:    contracts.ConfidentialVaultName,
			Account:     true,
			Amount:      true,
			Run: func(ctx context.Context, e *Env) error {
				e.Decimals = decrypt.CETHDecimals
				amount, err := e.amount()
				if err != nil {
					return err
				}

				e.Printf("Depositing %s cETH for account %s (%s)", decrypt.FormatUnits(new(big.Int).SetUint64(amount), decrypt.CETHDecimals), e.Args.Account, e.Signer.Address().Hex())
				b, err := e.Service.VaultDeposit(ctx, e.Signer, amount)
				if errors.Is(err, confidential.ErrTransactionReverted) {
					return fmt.Errorf("%w, has the vault been authorized with ceth:authorize?", err)
				} else if err != nil {
					return err
				}
				e.Printf("Deposit completed successfully!")
				return reveal(e, b, nil)
			},
		},
		{
			Name:        "vault:withdraw",
			Description: "Withdraw cETH from ConfidentialVault (amount in cETH)",
			Contract:    contracts.ConfidentialVaultName,
			Account:     true,
			Amount:      true,
			Run: func(ctx context.Context, e *Env) error {
				e.Decimals = decrypt.CETHDecimals
				amount, err := e.amount()
				if err != nil {
					return err
				}

				e.Printf("Withdrawing %s cETH for account %s (%s)", decrypt.FormatUnits(new(big.Int).SetUint64(amount), decrypt.CETHDecimals), e.Args.Account, e.Signer.Address().Hex())
				b, err := e.Service.VaultWithdraw(ctx, e.Signer, amount)
				if err != nil {
					return err
				}
				e.Printf("Withdrawal completed successfully!")
				return reveal(e, b, nil)
			},
		},
		{
			Name:        "vault:balance",
			Description: "Decrypt the ConfidentialVault balance of an account",
			Contract:    contracts.ConfidentialVaultName,
			Account:     true,
			Run: func(ctx context.Context, e *Env) error {
				e.Printf("Getting vault balance for account %s (%s)", e.Args.Account, e.Signer.Address().Hex())
				b, err := e.Service.VaultBalance(ctx, e.Signer)
				return reveal(e, b, err)
			},
		},
	}
}

func cethTasks() []Task {
	return []Task{
		{
			Name:        "ceth:faucet",
			Description: "Mint 1 cETH to an account",
			Contract:    contracts.ConfidentialETHName,
			Account:     true,
			Run: func(ctx context.Context, e *Env) error {
				e.Printf("Minting cETH for account %s (%s)", e.Args.Account, e.Signer.Address().Hex())
				if b, err := e.Service.Faucet(ctx, e.Signer); err != nil {
					return err
				} else {
					e.Printf("cETH balance: %s cETH", b.Formatted)
					return nil
				}
			},
		},
		{
			Name:        "ceth:balance",
			Description: "Decrypt the cETH balance of an account",
			Contract:    contracts.ConfidentialETHName,
			Account:     true,
			Run: func(ctx context.Context, e *Env) error {
				e.Printf("Getting cETH balance for account %s (%s)", e.Args.Account, e.Signer.Address().Hex())
				if b, err := e.Service.CETHBalance(ctx, e.Signer); err != nil {
					e.Errorf("Failed to decrypt balance. %s", accessHint)
					e.Errorf("Error: %v", err)
				} else {
					e.Printf("cETH balance: %s cETH", b.Formatted)
				}
				return nil
			},
		},
		{
			Name:        "ceth:authorize",
			Description: "Approve ConfidentialVault as cETH operator for one year",
			Contract:    contracts.ConfidentialETHName,
			Account:     true,
			Run: func(ctx context.Context, e *Env) error {
				if ok, err := e.Service.IsOperator(ctx, e.Signer.Address()); err != nil {
					return err
				} else if ok {
					e.Printf("Vault already authorized for account %s (%s)", e.Args.Account, e.Signer.Address().Hex())
					return nil
				}

				e.Printf("Authorizing vault for account %s (%s)", e.Args.Account, e.Signer.Address().Hex())
				if tx, err := e.Service.AuthorizeVault(ctx, e.Signer); err != nil {
					return err
				} else {
					e.Printf("Transaction hash: %s", tx.Hash.Hex())
					e.Printf("Vault authorized until %s", isoTime(time.Now().Add(confidential.OperatorDuration)))
					return nil
				}
			},
		},
	}
}
