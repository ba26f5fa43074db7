package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type ID = string

var ErrNotFound = errors.New("not found")

type IStorageBackend interface {
	SaveDeployment(ctx context.Context, network string, name string, address common.Address, transactionHash common.Hash, args []string, abi json.RawMessage) (Deployment, error)
	GetDeployment(ctx context.Context, network string, name string) (Deployment, error)
	ListDeployments(ctx context.Context, network string, offset int64, count int64) (ListDeploymentsResult, error)

	MarkScriptExecuted(ctx context.Context, network string, id ID) error
	IsScriptExecuted(ctx context.Context, network string, id ID) (bool, error)

	CreateAccount(ctx context.Context, name string, address common.Address, encryptedPrivateKey []byte) (Account, error)
	GetAccount(ctx context.Context, address common.Address) (Account, error)
	ListAccounts(ctx context.Context, offset int64, count int64) (ListAccountsResult, error)
}

type ListDeploymentsResult interface {
	Count() int64
	Page() []Deployment
}

type ListAccountsResult interface {
	Count() int64
	Page() []Account
}

type Deployment interface {
	ID() ID
	Network() string
	Name() string
	Address() common.Address
	TransactionHash() common.Hash
	Args() []string
	ABI() json.RawMessage
	Deployed() time.Time
}

type Account interface {
	ID() ID
	Name() string
	Address() common.Address
	EncryptedPrivateKey() []byte
	Created() time.Time
}
