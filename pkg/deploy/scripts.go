package deploy

import (
	"context"

	"github.com/gofiber/fiber/v2/log"
	"github.com/grexie/confidential-defi/pkg/contracts"
)

var DeployAll = Script{
	ID:   "deploy_all",
	Tags: []string{contracts.FHECounterName, contracts.ConfidentialETHName, contracts.ConfidentialVaultName},
	Run: func(ctx context.Context, env *Env) error {
		counter, err := env.Deployments.Deploy(ctx, contracts.FHECounterName, Options{From: env.Deployer})
		if err != nil {
			return err
		}
		log.Infof("FHECounter contract: %s", counter.Address.Hex())

		ceth, err := env.Deployments.Deploy(ctx, contracts.ConfidentialETHName, Options{From: env.Deployer})
		if err != nil {
			return err
		}
		log.Infof("ConfidentialETH contract: %s", ceth.Address.Hex())

		vault, err := env.Deployments.Deploy(ctx, contracts.ConfidentialVaultName, Options{
			From: env.Deployer,
			Args: []any{ceth.Address},
		})
		if err != nil {
			return err
		}
		log.Infof("ConfidentialVault contract: %s", vault.Address.Hex())

		return nil
	},
}

var DeployConfidentialTestCoin = Script{
	ID:   "deploy_confidential_test_coin",
	Tags: []string{contracts.ConfidentialTestCoinName},
	Run: func(ctx context.Context, env *Env) error {
		coin, err := env.Deployments.Deploy(ctx, contracts.ConfidentialTestCoinName, Options{
			From:                  env.Deployer,
			SkipIfAlreadyDeployed: true,
		})
		if err != nil {
			return err
		}
		log.Infof("ConfidentialTestCoin contract deployed to: %s", coin.Address.Hex())
		return nil
	},
}

var DeployConfidentialAAVE = Script{
	ID:           "deploy_confidential_aave",
	Tags:         []string{contracts.ConfidentialAAVEName},
	Dependencies: []string{contracts.ConfidentialTestCoinName},
	Run: func(ctx context.Context, env *Env) error {
		coin, err := env.Deployments.Get(ctx, contracts.ConfidentialTestCoinName)
		if err != nil {
			return err
		}

		aave, err := env.Deployments.Deploy(ctx, contracts.ConfidentialAAVEName, Options{
			From:                  env.Deployer,
			Args:                  []any{coin.Address()},
			SkipIfAlreadyDeployed: true,
		})
		if err != nil {
			return err
		}
		log.Infof("ConfidentialAAVE contract deployed to: %s", aave.Address.Hex())
		log.Infof("Using ConfidentialTestCoin at: %s", coin.Address().Hex())
		return nil
	},
}

// DefaultScripts are the deployment scripts of the project in file order.
func DefaultScripts() []Script {
	return []Script{DeployAll, DeployConfidentialTestCoin, DeployConfidentialAAVE}
}
