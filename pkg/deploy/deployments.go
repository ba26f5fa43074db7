package deploy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"slices"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/gofiber/fiber/v2/log"
	"github.com/grexie/confidential-defi/pkg/artifacts"
	"github.com/grexie/confidential-defi/pkg/chain"
	"github.com/grexie/confidential-defi/pkg/signer"
	"github.com/grexie/confidential-defi/pkg/storage/interfaces"
)

// Deployer sends a contract creation transaction.
type Deployer interface {
	DeployContract(ctx context.Context, name string, from signer.Signer, args ...any) (*Pending, error)
}

type Pending struct {
	Address     common.Address
	Transaction *types.Transaction
	ABI         json.RawMessage
}

type artifactDeployer struct {
	loader  artifacts.Loader
	backend bind.ContractBackend
	chainID *big.Int
}

var _ Deployer = &artifactDeployer{}

func NewArtifactDeployer(loader artifacts.Loader, backend bind.ContractBackend, chainID *big.Int) Deployer {
	return &artifactDeployer{loader: loader, backend: backend, chainID: chainID}
}

func (d *artifactDeployer) DeployContract(ctx context.Context, name string, from signer.Signer, args ...any) (*Pending, error) {
	artifact, err := d.loader.Load(name)
	if err != nil {
		return nil, err
	}

	parsed, err := artifact.ParsedABI()
	if err != nil {
		return nil, err
	}

	code, err := artifact.Code()
	if err != nil {
		return nil, err
	}

	opts, err := from.TransactOpts(ctx, d.chainID)
	if err != nil {
		return nil, err
	}

	address, tx, _, err := bind.DeployContract(opts, parsed, code, d.backend, args...)
	if err != nil {
		return nil, fmt.Errorf("deploy %s: %w", name, err)
	}
	return &Pending{Address: address, Transaction: tx, ABI: artifact.ABI}, nil
}

type Options struct {
	From                  signer.Signer
	Args                  []any
	SkipIfAlreadyDeployed bool
}

type Result struct {
	Name            string
	Address         common.Address
	TransactionHash common.Hash
	NewlyDeployed   bool
}

type Deployments interface {
	Deploy(ctx context.Context, name string, opts Options) (*Result, error)
	Get(ctx context.Context, name string) (interfaces.Deployment, error)
}

type deployments struct {
	network  string
	storage  interfaces.IStorageBackend
	deployer Deployer
	waiter   chain.Waiter
}

var _ Deployments = &deployments{}

func NewDeployments(network string, storage interfaces.IStorageBackend, deployer Deployer, waiter chain.Waiter) Deployments {
	return &deployments{network: network, storage: storage, deployer: deployer, waiter: waiter}
}

func stringArgs(args []any) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = fmt.Sprint(a)
	}
	return out
}

// Deploy reuses an existing deployment when SkipIfAlreadyDeployed is set or
// when it was made with the same constructor arguments.
func (d *deployments) Deploy(ctx context.Context, name string, opts Options) (*Result, error) {
	if opts.From == nil {
		return nil, fmt.Errorf("deploy %s: missing from account", name)
	}

	args := stringArgs(opts.Args)

	if existing, err := d.storage.GetDeployment(ctx, d.network, name); err != nil && !errors.Is(err, interfaces.ErrNotFound) {
		return nil, err
	} else if err == nil && (opts.SkipIfAlreadyDeployed || slices.Equal(existing.Args(), args)) {
		log.Infof("reusing %q at %s", name, existing.Address().Hex())
		return &Result{
			Name:            name,
			Address:         existing.Address(),
			TransactionHash: existing.TransactionHash(),
		}, nil
	}

	pending, err := d.deployer.DeployContract(ctx, name, opts.From, opts.Args...)
	if err != nil {
		return nil, err
	}
	address, tx := pending.Address, pending.Transaction

	log.Infof("deploying %q (tx: %s)...", name, tx.Hash().Hex())

	receipt, err := d.waiter.WaitMined(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("deploy %s: %w", name, err)
	}

	if _, err := d.storage.SaveDeployment(ctx, d.network, name, address, tx.Hash(), args, pending.ABI); err != nil {
		return nil, err
	}

	log.Infof("deployed %q at %s with %d gas", name, address.Hex(), receipt.GasUsed)

	return &Result{
		Name:            name,
		Address:         address,
		TransactionHash: tx.Hash(),
		NewlyDeployed:   true,
	}, nil
}

func (d *deployments) Get(ctx context.Context, name string) (interfaces.Deployment, error) {
	if dep, err := d.storage.GetDeployment(ctx, d.network, name); err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, fmt.Errorf("no deployment found for %s on %s: %w", name, d.network, err)
		}
		return nil, err
	} else {
		return dep, nil
	}
}
