package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/grexie/confidential-defi/pkg/storage/interfaces"
)

type Deployment struct {
	ID_              interfaces.ID   `json:"id"`
	Network_         string          `json:"network"`
	Name_            string          `json:"name"`
	Address_         common.Address  `json:"address"`
	TransactionHash_ common.Hash     `json:"transactionHash"`
	Args_            []string        `json:"args"`
	ABI_             json.RawMessage `json:"abi,omitempty"`
	Deployed_        time.Time       `json:"deployedAt"`
}

var _ interfaces.Deployment = &Deployment{}

func (d *Deployment) ID() interfaces.ID            { return d.ID_ }
func (d *Deployment) Network() string              { return d.Network_ }
func (d *Deployment) Name() string                 { return d.Name_ }
func (d *Deployment) Address() common.Address      { return d.Address_ }
func (d *Deployment) TransactionHash() common.Hash { return d.TransactionHash_ }
func (d *Deployment) Args() []string               { return d.Args_ }
func (d *Deployment) ABI() json.RawMessage         { return d.ABI_ }
func (d *Deployment) Deployed() time.Time          { return d.Deployed_ }

type Account struct {
	ID_                  interfaces.ID  `json:"id"`
	Name_                string         `json:"name"`
	Address_             common.Address `json:"address"`
	EncryptedPrivateKey_ []byte         `json:"encryptedPrivateKey"`
	Created_             time.Time      `json:"created"`
}

var _ interfaces.Account = &Account{}

func (a *Account) ID() interfaces.ID            { return a.ID_ }
func (a *Account) Name() string                 { return a.Name_ }
func (a *Account) Address() common.Address      { return a.Address_ }
func (a *Account) EncryptedPrivateKey() []byte  { return a.EncryptedPrivateKey_ }
func (a *Account) Created() time.Time           { return a.Created_ }

type listDeploymentsResult struct {
	Count_ int64
	Page_  []*Deployment
}

func (r *listDeploymentsResult) Count() int64 {
	return r.Count_
}

func (r *listDeploymentsResult) Page() []interfaces.Deployment {
	out := make([]interfaces.Deployment, len(r.Page_))
	for i, d := range r.Page_ {
		out[i] = d
	}
	return out
}

type listAccountsResult struct {
	Count_ int64
	Page_  []*Account
}

func (r *listAccountsResult) Count() int64 {
	return r.Count_
}

func (r *listAccountsResult) Page() []interfaces.Account {
	out := make([]interfaces.Account, len(r.Page_))
	for i, a := range r.Page_ {
		out[i] = a
	}
	return out
}

// Backend keeps everything in process memory. It is the default for tests and
// the base of the file backend.
type Backend struct {
	mu          sync.RWMutex
	deployments map[string]map[string]*Deployment
	scripts     map[string]map[interfaces.ID]bool
	accounts    []*Account
}

var _ interfaces.IStorageBackend = &Backend{}

func NewMemoryStorageBackend() *Backend {
	return &Backend{
		deployments: map[string]map[string]*Deployment{},
		scripts:     map[string]map[interfaces.ID]bool{},
	}
}

func (b *Backend) PutDeployment(d *Deployment) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.deployments[d.Network_]; !ok {
		b.deployments[d.Network_] = map[string]*Deployment{}
	}
	b.deployments[d.Network_][d.Name_] = d
}

func (b *Backend) PutAccount(a *Account) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, existing := range b.accounts {
		if existing.Address_ == a.Address_ {
			b.accounts[i] = a
			return
		}
	}
	b.accounts = append(b.accounts, a)
	sort.SliceStable(b.accounts, func(i, j int) bool {
		return b.accounts[i].Created_.Before(b.accounts[j].Created_)
	})
}

func (b *Backend) PutScript(network string, id interfaces.ID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.scripts[network]; !ok {
		b.scripts[network] = map[interfaces.ID]bool{}
	}
	b.scripts[network][id] = true
}

func (b *Backend) Scripts(network string) []interfaces.ID {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := []interfaces.ID{}
	for id := range b.scripts[network] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (b *Backend) SaveDeployment(ctx context.Context, network string, name string, address common.Address, transactionHash common.Hash, args []string, abi json.RawMessage) (interfaces.Deployment, error) {
	d := Deployment{
		ID_:              "dep-" + uuid.NewString(),
		Network_:         network,
		Name_:            name,
		Address_:         address,
		TransactionHash_: transactionHash,
		Args_:            args,
		ABI_:             abi,
		Deployed_:        time.Now(),
	}
	b.PutDeployment(&d)
	return &d, nil
}

func (b *Backend) GetDeployment(ctx context.Context, network string, name string) (interfaces.Deployment, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if d, ok := b.deployments[network][name]; !ok {
		return nil, fmt.Errorf("deployment %s on %s: %w", name, network, interfaces.ErrNotFound)
	} else {
		return d, nil
	}
}

func (b *Backend) ListDeployments(ctx context.Context, network string, offset int64, count int64) (interfaces.ListDeploymentsResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	all := make([]*Deployment, 0, len(b.deployments[network]))
	for _, d := range b.deployments[network] {
		all = append(all, d)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].Deployed_.Before(all[j].Deployed_)
	})

	return &listDeploymentsResult{Count_: int64(len(all)), Page_: paginate(all, offset, count)}, nil
}

func (b *Backend) MarkScriptExecuted(ctx context.Context, network string, id interfaces.ID) error {
	b.PutScript(network, id)
	return nil
}

func (b *Backend) IsScriptExecuted(ctx context.Context, network string, id interfaces.ID) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.scripts[network][id], nil
}

func (b *Backend) CreateAccount(ctx context.Context, name string, address common.Address, encryptedPrivateKey []byte) (interfaces.Account, error) {
	if _, err := b.GetAccount(ctx, address); err == nil {
		return nil, fmt.Errorf("account %s already exists", address)
	}

	a := Account{
		ID_:                  "acc-" + uuid.NewString(),
		Name_:                name,
		Address_:             address,
		EncryptedPrivateKey_: encryptedPrivateKey,
		Created_:             time.Now(),
	}
	b.PutAccount(&a)
	return &a, nil
}

func (b *Backend) GetAccount(ctx context.Context, address common.Address) (interfaces.Account, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, a := range b.accounts {
		if a.Address_ == address {
			return a, nil
		}
	}
	return nil, fmt.Errorf("account %s: %w", address, interfaces.ErrNotFound)
}

func (b *Backend) ListAccounts(ctx context.Context, offset int64, count int64) (interfaces.ListAccountsResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return &listAccountsResult{Count_: int64(len(b.accounts)), Page_: paginate(b.accounts, offset, count)}, nil
}

// paginate returns the page starting at offset. count <= 0 means no limit.
func paginate[E any](all []E, offset int64, count int64) []E {
	if offset >= int64(len(all)) {
		return []E{}
	}
	end := int64(len(all))
	if count > 0 && offset+count < end {
		end = offset + count
	}
	out := make([]E, end-offset)
	copy(out, all[offset:end])
	return out
}
