// Package chain wraps the JSON-RPC client with receipt waiting.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gofiber/fiber/v2/log"
)

var ErrTransactionReverted = errors.New("transaction reverted")

const DefaultReceiptTimeout = 2 * time.Minute

// Waiter blocks until a transaction is mined and fails on reverted receipts.
type Waiter interface {
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

type Chain interface {
	Waiter
	bind.ContractBackend
	bind.DeployBackend

	ChainID() *big.Int
	Close()
}

type chain struct {
	*ethclient.Client
	chainID *big.Int
	timeout time.Duration
}

var _ Chain = &chain{}

func Dial(ctx context.Context, url string, timeout time.Duration) (Chain, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to get chain id: %w", err)
	}

	if timeout <= 0 {
		timeout = DefaultReceiptTimeout
	}

	log.Infof("connected to %s chain=%s", url, chainID)

	return &chain{Client: client, chainID: chainID, timeout: timeout}, nil
}

func (c *chain) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

func (c *chain) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	return CheckReceipt(bind.WaitMined(ctx, c.Client, tx))
}

// CheckReceipt turns a failed receipt into ErrTransactionReverted.
func CheckReceipt(receipt *types.Receipt, err error) (*types.Receipt, error) {
	if err != nil {
		return nil, err
	} else if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%w: %s", ErrTransactionReverted, receipt.TxHash.Hex())
	}
	return receipt, nil
}
