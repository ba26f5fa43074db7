package api

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/grexie/confidential-defi/pkg/api/interop"
	"github.com/grexie/confidential-defi/pkg/confidential"
	"github.com/grexie/confidential-defi/pkg/decrypt"
	"github.com/grexie/confidential-defi/pkg/signer"
)

func (a *api) signer(c *fiber.Ctx) (signer.Signer, error) {
	return a.signers.Signer(c.UserContext(), c.Params("account"))
}

func parseAmount(c *fiber.Ctx, decimals int) (uint64, error) {
	var req interop.AmountRequest

	if err := c.BodyParser(&req); err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, err.Error())
	} else if amount, err := decrypt.ParseUint64Units(req.Amount, decimals); err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, err.Error())
	} else {
		return amount, nil
	}
}

// write runs fn while holding the per account write guard, publishing its
// progress as the account's activity.
func (a *api) write(c *fiber.Ctx, s signer.Signer, name string, success string, fn func(ctx context.Context) (any, error)) error {
	op, err := a.activities.Begin(s.Address(), name)
	if err != nil {
		return err
	}

	res, err := fn(confidential.WithProgress(c.UserContext(), op.Update))
	op.Finish(success, err)
	if err != nil {
		return err
	}

	return c.JSON(interop.NewResponse(res))
}

func (a *api) ListAccounts(c *fiber.Ctx) error {
	if wallets, err := a.vault.Wallets(c.UserContext()); err != nil {
		return err
	} else {
		return c.JSON(interop.NewResponse(wallets))
	}
}

func (a *api) ImportAccount(c *fiber.Ctx) error {
	var req interop.ImportAccountRequest

	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	} else if req.PrivateKey == "" {
		return fiber.NewError(fiber.StatusBadRequest, "privateKey is required")
	} else if w, err := a.vault.ImportWallet(c.UserContext(), req.Name, req.PrivateKey); err != nil {
		return err
	} else {
		return c.Status(fiber.StatusCreated).JSON(interop.NewResponse(w))
	}
}

func (a *api) GetAccount(c *fiber.Ctx) error {
	if w, err := a.vault.GetWallet(c.UserContext(), c.Params("account")); err != nil {
		return err
	} else {
		return c.JSON(interop.NewResponse(w))
	}
}

func (a *api) GetActivity(c *fiber.Ctx) error {
	if w, err := a.vault.GetWallet(c.UserContext(), c.Params("account")); err != nil {
		return err
	} else if activity, ok := a.activities.Get(w.Address()); !ok {
		return c.JSON(interop.NewResponse[*interop.Activity](nil))
	} else {
		return c.JSON(interop.NewResponse(&activity))
	}
}
