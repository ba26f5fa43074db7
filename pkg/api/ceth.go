package api

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/grexie/confidential-defi/pkg/api/interop"
)

func (a *api) Faucet(c *fiber.Ctx) error {
	if s, err := a.signer(c); err != nil {
		return err
	} else {
		return a.write(c, s, "faucet", "Minted 1 cETH", func(ctx context.Context) (any, error) {
			return a.service.Faucet(ctx, s)
		})
	}
}

func (a *api) CETHBalance(c *fiber.Ctx) error {
	if s, err := a.signer(c); err != nil {
		return err
	} else if b, err := a.service.CETHBalance(c.UserContext(), s); err != nil {
		return err
	} else {
		return c.JSON(interop.NewResponse(b))
	}
}

func (a *api) IsOperator(c *fiber.Ctx) error {
	if w, err := a.vault.GetWallet(c.UserContext(), c.Params("account")); err != nil {
		return err
	} else if approved, err := a.service.IsOperator(c.UserContext(), w.Address()); err != nil {
		return err
	} else {
		return c.JSON(interop.NewResponse(interop.OperatorResponse{Holder: w.Address(), Approved: approved}))
	}
}

func (a *api) AuthorizeVault(c *fiber.Ctx) error {
	if s, err := a.signer(c); err != nil {
		return err
	} else {
		return a.write(c, s, "authorize", "Vault authorized", func(ctx context.Context) (any, error) {
			return a.service.AuthorizeVault(ctx, s)
		})
	}
}
