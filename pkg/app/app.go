// Package app wires storage, accounts, the relayer client and the contract
// bindings of one network together for the server and the command line tools.
package app

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2/log"
	"github.com/grexie/confidential-defi/pkg/artifacts"
	"github.com/grexie/confidential-defi/pkg/chain"
	"github.com/grexie/confidential-defi/pkg/config"
	"github.com/grexie/confidential-defi/pkg/confidential"
	"github.com/grexie/confidential-defi/pkg/contracts"
	"github.com/grexie/confidential-defi/pkg/contracts/simulated"
	"github.com/grexie/confidential-defi/pkg/decrypt"
	"github.com/grexie/confidential-defi/pkg/deploy"
	"github.com/grexie/confidential-defi/pkg/fhevm"
	"github.com/grexie/confidential-defi/pkg/fhevm/mock"
	"github.com/grexie/confidential-defi/pkg/signer"
	"github.com/grexie/confidential-defi/pkg/storage"
	"github.com/grexie/confidential-defi/pkg/storage/interfaces"
	"github.com/grexie/confidential-defi/pkg/vault"
)

var (
	ErrContractNotDeployed = errors.New("contract address unknown")
	ErrForeignContract     = errors.New("contract is not part of the in-process network")
)

type App struct {
	Config  *config.Config
	Network *config.Network

	Storage   interfaces.IStorageBackend
	Vault     vault.Vault
	Signers   signer.Signers
	Instance  fhevm.Instance
	Decryptor decrypt.Decryptor
	Waiter    chain.Waiter
	ChainID   *big.Int

	// Chain is nil on mock networks, Relayer and Simulated are nil otherwise.
	Chain     chain.Chain
	Relayer   mock.Relayer
	Simulated *simulated.Network
}

func usesDevAccounts(n *config.Network) bool {
	return n.Mock || n.Name == "localhost"
}

func Open(ctx context.Context, c *config.Config) (*App, error) {
	a := App{Config: c}

	if n, err := c.ResolveNetwork(); err != nil {
		return nil, err
	} else {
		a.Network = n
	}

	mnemonic := c.Mnemonic
	if mnemonic == "" && len(c.PrivateKeys) == 0 && usesDevAccounts(a.Network) {
		mnemonic = vault.DefaultMnemonic
	}

	if s, err := storage.NewStorage(ctx, storage.Options{Backend: c.StorageBackend, MongoURL: c.MongoURL, DeploymentsDir: c.DeploymentsDir}); err != nil {
		return nil, err
	} else if v, err := vault.NewVault(vault.Options{Mnemonic: mnemonic, Count: c.AccountCount, PrivateKeys: c.PrivateKeys, Names: c.AccountNames, MasterKey: c.MasterKey}); err != nil {
		return nil, err
	} else if err := v.SetStorageBackend(s); err != nil {
		return nil, err
	} else if signers, err := signer.NewSigners(v); err != nil {
		return nil, err
	} else {
		a.Storage, a.Vault, a.Signers = s, v, signers
	}

	if a.Network.Mock {
		if err := a.openMock(ctx); err != nil {
			return nil, err
		}
	} else if err := a.openChain(ctx); err != nil {
		return nil, err
	}

	a.Decryptor = decrypt.NewDecryptor(a.Instance, decrypt.WithDurationDays(c.DecryptDurationDays))
	return &a, nil
}

func (a *App) openMock(ctx context.Context) error {
	wallets, err := a.Vault.Wallets(ctx)
	if err != nil {
		return err
	} else if len(wallets) == 0 {
		return fmt.Errorf("network %s needs at least one account to deploy from", a.Network.Name)
	}

	if relayer, err := mock.NewRelayer(a.Network.FHEVM); err != nil {
		return err
	} else if instance, err := fhevm.CreateInstance(ctx, a.Network.FHEVM, fhevm.WithHTTPClient(relayer.HTTPClient())); err != nil {
		return err
	} else {
		a.Relayer = relayer
		a.Instance = instance
		a.Simulated = simulated.NewNetwork(relayer, wallets[0].Address())
		a.Waiter = a.Simulated.Chain
		a.ChainID = new(big.Int).SetUint64(a.Network.FHEVM.ChainID)
	}

	log.Infof("running contracts in-process on network %s, deployer %s", a.Network.Name, wallets[0].Address().Hex())
	return nil
}

func (a *App) openChain(ctx context.Context) error {
	if ch, err := chain.Dial(ctx, a.Network.FHEVM.NetworkURL, a.Config.ReceiptTimeout); err != nil {
		return err
	} else if instance, err := fhevm.CreateInstance(ctx, a.Network.FHEVM); err != nil {
		ch.Close()
		return err
	} else {
		if ch.ChainID().Uint64() != a.Network.FHEVM.ChainID {
			log.Warnf("rpc reports chain %s but network %s is configured for %d", ch.ChainID(), a.Network.Name, a.Network.FHEVM.ChainID)
		}
		a.Chain, a.Waiter, a.ChainID, a.Instance = ch, ch, ch.ChainID(), instance
		return nil
	}
}

func (a *App) Close() {
	if a.Chain != nil {
		a.Chain.Close()
	}
}

func (a *App) simulatedAddress(name string) (common.Address, bool) {
	if a.Simulated == nil {
		return common.Address{}, false
	}

	switch name {
	case contracts.ConfidentialETHName:
		return a.Simulated.ConfidentialETH.Address(), true
	case contracts.ConfidentialVaultName:
		return a.Simulated.ConfidentialVault.Address(), true
	case contracts.ConfidentialAAVEName:
		return a.Simulated.ConfidentialAAVE.Address(), true
	case contracts.ConfidentialTestCoinName:
		return a.Simulated.ConfidentialTestCoin, true
	}
	return common.Address{}, false
}

// ContractAddress resolves name from, in order, an explicit override, the
// in-process network, the recorded deployments and networks.yaml.
func (a *App) ContractAddress(ctx context.Context, name string, override string) (common.Address, error) {
	if override != "" {
		if !common.IsHexAddress(override) {
			return common.Address{}, fmt.Errorf("invalid contract address %q", override)
		}
		return common.HexToAddress(override), nil
	}

	if address, ok := a.simulatedAddress(name); ok {
		return address, nil
	}

	if d, err := a.Storage.GetDeployment(ctx, a.Network.Name, name); err == nil {
		return d.Address(), nil
	} else if !errors.Is(err, interfaces.ErrNotFound) {
		return common.Address{}, err
	}

	if address, ok := a.Network.Contract(name); ok {
		return address, nil
	}

	return common.Address{}, fmt.Errorf("%w: %s on %s", ErrContractNotDeployed, name, a.Network.Name)
}

// Service binds every contract whose address can be resolved. Flows on an
// unbound contract fail with confidential.ErrContractNotConfigured.
func (a *App) Service(ctx context.Context, overrides map[string]string) (confidential.Service, error) {
	opts := confidential.Options{
		Instance:  a.Instance,
		Decryptor: a.Decryptor,
		Waiter:    a.Waiter,
		ChainID:   a.ChainID,
	}

	if a.Simulated != nil {
		for name, override := range overrides {
			if override == "" {
				continue
			} else if address, ok := a.simulatedAddress(name); !ok || !common.IsHexAddress(override) || common.HexToAddress(override) != address {
				return nil, fmt.Errorf("%w: %s at %s, the %s network only serves %s", ErrForeignContract, name, override, a.Network.Name, address.Hex())
			}
		}

		opts.ConfidentialETH = a.Simulated.ConfidentialETH
		opts.ConfidentialVault = a.Simulated.ConfidentialVault
		opts.ConfidentialAAVE = a.Simulated.ConfidentialAAVE
		return confidential.NewService(opts)
	}

	resolve := func(name string) (common.Address, bool, error) {
		if address, err := a.ContractAddress(ctx, name, overrides[name]); errors.Is(err, ErrContractNotDeployed) {
			log.Debugf("%s not bound: %v", name, err)
			return common.Address{}, false, nil
		} else if err != nil {
			return common.Address{}, false, err
		} else {
			return address, true, nil
		}
	}

	if address, ok, err := resolve(contracts.ConfidentialETHName); err != nil {
		return nil, err
	} else if ok {
		if opts.ConfidentialETH, err = contracts.NewConfidentialETH(address, a.Chain); err != nil {
			return nil, err
		}
	}

	if address, ok, err := resolve(contracts.ConfidentialVaultName); err != nil {
		return nil, err
	} else if ok {
		if opts.ConfidentialVault, err = contracts.NewConfidentialVault(address, a.Chain); err != nil {
			return nil, err
		}
	}

	if address, ok, err := resolve(contracts.ConfidentialAAVEName); err != nil {
		return nil, err
	} else if ok {
		if opts.ConfidentialAAVE, err = contracts.NewConfidentialAAVE(address, a.Chain); err != nil {
			return nil, err
		}
	}

	return confidential.NewService(opts)
}

// DeployEnv prepares a deployment run from the first account. Deployments
// need a real chain.
func (a *App) DeployEnv(ctx context.Context) (*deploy.Env, error) {
	if a.Chain == nil {
		return nil, fmt.Errorf("network %s runs contracts in-process and cannot be deployed to", a.Network.Name)
	}

	deployer, err := a.Signers.Signer(ctx, "0")
	if err != nil {
		return nil, err
	}

	artifactDeployer := deploy.NewArtifactDeployer(artifacts.NewLoader(a.Config.ArtifactsDir), a.Chain, a.ChainID)

	return &deploy.Env{
		Network:     a.Network.Name,
		Deployer:    deployer,
		Deployments: deploy.NewDeployments(a.Network.Name, a.Storage, artifactDeployer, a.Chain),
	}, nil
}
