package api

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/grexie/confidential-defi/pkg/api/interop"
	"github.com/grexie/confidential-defi/pkg/decrypt"
)

func (a *api) VaultDeposit(c *fiber.Ctx) error {
	if s, err := a.signer(c); err != nil {
		return err
	} else if amount, err := parseAmount(c, decrypt.CETHDecimals); err != nil {
		return err
	} else {
		return a.write(c, s, "vault-deposit", "Deposit successful!", func(ctx context.Context) (any, error) {
			return a.service.VaultDeposit(ctx, s, amount)
		})
	}
}

func (a *api) VaultWithdraw(c *fiber.Ctx) error {
	if s, err := a.signer(c); err != nil {
		return err
	} else if amount, err := parseAmount(c, decrypt.CETHDecimals); err != nil {
		return err
	} else {
		return a.write(c, s, "vault-withdraw", "Withdrawal successful!", func(ctx context.Context) (any, error) {
			return a.service.VaultWithdraw(ctx, s, amount)
		})
	}
}

func (a *api) VaultBalance(c *fiber.Ctx) error {
	if s, err := a.signer(c); err != nil {
		return err
	} else if b, err := a.service.VaultBalance(c.UserContext(), s); err != nil {
		return err
	} else {
		return c.JSON(interop.NewResponse(b))
	}
}
