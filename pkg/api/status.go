package api

import (
	"github.com/carlmjohnson/versioninfo"
	"github.com/gofiber/fiber/v2"
	"github.com/grexie/confidential-defi/pkg/api/interop"
)

type StatusResponse struct {
	APIKeys  int    `json:"apiKeys"`
	Accounts int    `json:"accounts"`
	Network  string `json:"network"`
	Version  string `json:"version"`
}

func (a *api) Status(c *fiber.Ctx) error {
	if wallets, err := a.vault.Wallets(c.UserContext()); err != nil {
		return err
	} else {
		return c.JSON(interop.NewResponse(StatusResponse{
			APIKeys:  len(a.auth.Keys()),
			Accounts: len(wallets),
			Network:  a.network,
			Version:  versioninfo.Short(),
		}))
	}
}
