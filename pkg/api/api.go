package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/grexie/confidential-defi/pkg/api/interop"
	"github.com/grexie/confidential-defi/pkg/auth"
	"github.com/grexie/confidential-defi/pkg/chain"
	"github.com/grexie/confidential-defi/pkg/confidential"
	"github.com/grexie/confidential-defi/pkg/fhevm"
	"github.com/grexie/confidential-defi/pkg/signer"
	"github.com/grexie/confidential-defi/pkg/vault"
)

type API interface {
	App() *fiber.App
}

type Options struct {
	Auth    auth.Auth
	Vault   vault.Vault
	Signers signer.Signers
	Service confidential.Service
	Network string

	SuccessTTL time.Duration
	ErrorTTL   time.Duration
	Now        func() time.Time
}

type api struct {
	app        *fiber.App
	auth       auth.Auth
	vault      vault.Vault
	signers    signer.Signers
	service    confidential.Service
	network    string
	activities *activities
}

var _ API = &api{}

// statusCode maps domain errors onto HTTP status codes.
func statusCode(err error) int {
	var e *fiber.Error
	var relayerErr *fhevm.RelayerError

	if errors.As(err, &e) {
		return e.Code
	} else if errors.Is(err, vault.ErrWalletNotFound) {
		return fiber.StatusNotFound
	} else if errors.Is(err, vault.ErrInvalidPrivateKey) {
		return fiber.StatusBadRequest
	} else if errors.Is(err, ErrBusy) || errors.Is(err, vault.ErrWalletExists) {
		return fiber.StatusConflict
	} else if errors.Is(err, confidential.ErrContractNotConfigured) || errors.Is(err, vault.ErrImportUnavailable) {
		return fiber.StatusServiceUnavailable
	} else if errors.Is(err, chain.ErrTransactionReverted) {
		return fiber.StatusUnprocessableEntity
	} else if errors.As(err, &relayerErr) {
		if relayerErr.Status >= 400 && relayerErr.Status < 500 {
			return relayerErr.Status
		}
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}

func NewAPI(opts Options) (API, error) {
	if opts.Auth == nil {
		return nil, fmt.Errorf("auth is required")
	} else if opts.Vault == nil || opts.Signers == nil {
		return nil, fmt.Errorf("vault and signers are required")
	} else if opts.Service == nil {
		return nil, fmt.Errorf("confidential service is required")
	}

	if opts.SuccessTTL <= 0 {
		opts.SuccessTTL = DefaultSuccessTTL
	}
	if opts.ErrorTTL <= 0 {
		opts.ErrorTTL = DefaultErrorTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	a := api{
		auth:       opts.Auth,
		vault:      opts.Vault,
		signers:    opts.Signers,
		service:    opts.Service,
		network:    opts.Network,
		activities: newActivities(opts.SuccessTTL, opts.ErrorTTL, opts.Now),
	}

	a.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := statusCode(err)

			err = c.Status(code).JSON(interop.NewErrorResponse(err))
			if err != nil {
				return c.Status(code).JSON(interop.NewErrorResponse(fmt.Errorf("internal server error")))
			}

			return nil
		},
	})

	a.app.Use(a.auth.RequireKey)

	a.app.Get("/status", a.Status)
	a.app.Get("/accounts", a.ListAccounts)
	a.app.Post("/accounts", a.ImportAccount)
	a.app.Get("/accounts/:account", a.GetAccount)
	a.app.Get("/accounts/:account/activity", a.GetActivity)

	a.app.Post("/accounts/:account/ceth/faucet", a.Faucet)
	a.app.Get("/accounts/:account/ceth/balance", a.CETHBalance)
	a.app.Get("/accounts/:account/operator", a.IsOperator)
	a.app.Post("/accounts/:account/operator", a.AuthorizeVault)

	a.app.Post("/accounts/:account/vault/deposit", a.VaultDeposit)
	a.app.Post("/accounts/:account/vault/withdraw", a.VaultWithdraw)
	a.app.Get("/accounts/:account/vault/balance", a.VaultBalance)

	a.app.Post("/accounts/:account/aave/deposit", a.AAVEDeposit)
	a.app.Post("/accounts/:account/aave/withdraw", a.AAVEWithdraw)
	a.app.Get("/accounts/:account/aave/balance", a.AAVEBalance)
	a.app.Get("/accounts/:account/aave/error", a.AAVELastError)
	a.app.Get("/aave/total-supply", a.AAVETotalSupply)
	a.app.Get("/aave/info", a.AAVEInfo)

	return &a, nil
}

func (a *api) App() *fiber.App {
	return a.app
}
