package main

import (
	"context"
	"fmt"
	"log"

	"github.com/carlmjohnson/versioninfo"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/grexie/confidential-defi/pkg/api"
	"github.com/grexie/confidential-defi/pkg/app"
	"github.com/grexie/confidential-defi/pkg/auth"
	"github.com/grexie/confidential-defi/pkg/config"
	"github.com/grexie/confidential-defi/pkg/tls"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	var authOptions []auth.Option
	if cfg.AllowAnonymous {
		authOptions = append(authOptions, auth.AllowAnonymous())
	}

	a, err := app.Open(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()

	if auth, err := auth.NewAuth(cfg.APIKeys, authOptions...); err != nil {
		log.Fatal(err)
	} else if service, err := a.Service(ctx, nil); err != nil {
		log.Fatal(err)
	} else if api, err := api.NewAPI(api.Options{Auth: auth, Vault: a.Vault, Signers: a.Signers, Service: service, Network: a.Network.Name}); err != nil {
		log.Fatal(err)
	} else {
		server := fiber.New(fiber.Config{
			DisableStartupMessage: true,
		})

		server.Use(logger.New())

		server.Mount("/api/v1", api.App())
		if a.Relayer != nil {
			server.Mount("/relayer", a.Relayer.App())
		}

		if cfg.InsecureHTTP {
			log.Printf("🚀 started confidential defi %s on network %s port %s", versioninfo.Short(), a.Network.Name, cfg.Port)
			log.Fatal(server.Listen(fmt.Sprintf(":%s", cfg.Port)))
		} else if cert, err := tls.LoadServerCert(cfg.TLSCertFile, cfg.TLSKeyFile, cfg.TLSHosts...); err != nil {
			log.Fatal(fmt.Errorf("error creating tls certificate: %v", err))
		} else {
			log.Printf("🚀 started confidential defi %s on network %s port %s", versioninfo.Short(), a.Network.Name, cfg.Port)
			log.Fatal(server.ListenTLSWithCertificate(fmt.Sprintf(":%s", cfg.Port), cert))
		}
	}
}
