package api

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/grexie/confidential-defi/pkg/api/interop"
)

func (a *api) AAVEDeposit(c *fiber.Ctx) error {
	if s, err := a.signer(c); err != nil {
		return err
	} else if amount, err := parseAmount(c, 0); err != nil {
		return err
	} else {
		return a.write(c, s, "aave-deposit", "Deposit successful!", func(ctx context.Context) (any, error) {
			return a.service.AAVEDeposit(ctx, s, amount)
		})
	}
}

func (a *api) AAVEWithdraw(c *fiber.Ctx) error {
	if s, err := a.signer(c); err != nil {
		return err
	} else if amount, err := parseAmount(c, 0); err != nil {
		return err
	} else {
		return a.write(c, s, "aave-withdraw", "Withdrawal successful!", func(ctx context.Context) (any, error) {
			return a.service.AAVEWithdraw(ctx, s, amount)
		})
	}
}

func (a *api) AAVEBalance(c *fiber.Ctx) error {
	if s, err := a.signer(c); err != nil {
		return err
	} else if b, err := a.service.AAVEBalance(c.UserContext(), s); err != nil {
		return err
	} else {
		return c.JSON(interop.NewResponse(b))
	}
}

func (a *api) AAVELastError(c *fiber.Ctx) error {
	if s, err := a.signer(c); err != nil {
		return err
	} else if e, err := a.service.AAVELastError(c.UserContext(), s); err != nil {
		return err
	} else {
		return c.JSON(interop.NewResponse(e))
	}
}

// AAVETotalSupply decrypts as the account given by ?account=, defaulting to
// the deployer.
func (a *api) AAVETotalSupply(c *fiber.Ctx) error {
	if s, err := a.signers.Signer(c.UserContext(), c.Query("account", "0")); err != nil {
		return err
	} else if b, err := a.service.AAVETotalSupply(c.UserContext(), s); err != nil {
		return err
	} else {
		return c.JSON(interop.NewResponse(b))
	}
}

func (a *api) AAVEInfo(c *fiber.Ctx) error {
	if info, err := a.service.AAVEInfo(c.UserContext()); err != nil {
		return err
	} else {
		return c.JSON(interop.NewResponse(info))
	}
}
