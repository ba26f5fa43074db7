// Package simulated runs the confidential contracts in memory on top of the
// mock relayer, for tests and for the offline demo network.
package simulated

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/grexie/confidential-defi/pkg/chain"
)

// Chain records a receipt for every simulated transaction.
type Chain struct {
	mu       sync.Mutex
	nonce    uint64
	receipts map[common.Hash]*types.Receipt
	failNext bool
	block    int64
}

var _ chain.Waiter = &Chain{}

func NewChain() *Chain {
	return &Chain{receipts: map[common.Hash]*types.Receipt{}}
}

// FailNext makes the next transaction revert.
func (c *Chain) FailNext() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failNext = true
}

func (c *Chain) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	c.mu.Lock()
	receipt, ok := c.receipts[tx.Hash()]
	c.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("unknown transaction %s", tx.Hash().Hex())
	}
	return chain.CheckReceipt(receipt, nil)
}

// send signs a transaction for opts.From and mines it immediately. apply
// runs only when the transaction does not revert.
func (c *Chain) send(opts *bind.TransactOpts, to common.Address, method string, apply func() bool) (*types.Transaction, error) {
	if opts == nil || opts.Signer == nil {
		return nil, fmt.Errorf("%s: missing transact opts", method)
	}

	c.mu.Lock()
	nonce := c.nonce
	c.nonce++
	c.block++
	block := c.block
	fail := c.failNext
	c.failNext = false
	c.mu.Unlock()

	tx, err := opts.Signer(opts.From, types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Gas:      300000,
		GasPrice: big.NewInt(1),
		Data:     []byte(method),
	}))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}

	status := types.ReceiptStatusSuccessful
	if fail || (apply != nil && !apply()) {
		status = types.ReceiptStatusFailed
	}

	c.mu.Lock()
	c.receipts[tx.Hash()] = &types.Receipt{
		Status:      status,
		TxHash:      tx.Hash(),
		BlockNumber: big.NewInt(block),
		GasUsed:     21000,
	}
	c.mu.Unlock()

	return tx, nil
}
