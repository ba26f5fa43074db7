package interop

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type APIResponse[E any] struct {
	Success bool    `json:"success"`
	Data    E       `json:"data,omitempty"`
	Error   *string `json:"error,omitempty"`
}

func NewResponse[E any](data E) *APIResponse[E] {
	return &APIResponse[E]{Success: true, Data: data}
}

func NewErrorResponse(err any) *APIResponse[any] {
	message := fmt.Sprintf("%s", err)
	return &APIResponse[any]{Success: false, Error: &message}
}

// AmountRequest carries a decimal amount. Vault amounts are in cETH, pool
// amounts in whole units.
type AmountRequest struct {
	Amount string `json:"amount"`
}

type ImportAccountRequest struct {
	Name       string `json:"name"`
	PrivateKey string `json:"privateKey"`
}

type OperatorResponse struct {
	Holder   common.Address `json:"holder"`
	Approved bool           `json:"approved"`
}

type Activity struct {
	ID        string         `json:"id"`
	Account   common.Address `json:"account"`
	Operation string         `json:"operation"`
	Status    string         `json:"status"`
	Pending   bool           `json:"pending"`
	Error     *string        `json:"error,omitempty"`
	Updated   time.Time      `json:"updated"`
}
