package api

import (
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/grexie/confidential-defi/pkg/api/interop"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

var ErrBusy = errors.New("a transaction is already pending for this account")

const (
	DefaultSuccessTTL = 3 * time.Second
	DefaultErrorTTL   = 5 * time.Second

	maxActivities = 4096
)

// activities tracks the one in-flight write allowed per account and keeps
// the outcome of finished writes around for a short while.
type activities struct {
	now func() time.Time

	mu      sync.Mutex
	pending map[common.Address]*operation

	succeeded *expirable.LRU[common.Address, interop.Activity]
	failed    *expirable.LRU[common.Address, interop.Activity]
}

func newActivities(successTTL time.Duration, errorTTL time.Duration, now func() time.Time) *activities {
	return &activities{
		now:       now,
		pending:   map[common.Address]*operation{},
		succeeded: expirable.NewLRU[common.Address, interop.Activity](maxActivities, nil, successTTL),
		failed:    expirable.NewLRU[common.Address, interop.Activity](maxActivities, nil, errorTTL),
	}
}

type operation struct {
	store    *activities
	activity interop.Activity
}

func (s *activities) Begin(account common.Address, name string) (*operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pending[account]; ok {
		return nil, ErrBusy
	}

	op := &operation{
		store: s,
		activity: interop.Activity{
			ID:        uuid.NewString(),
			Account:   account,
			Operation: name,
			Pending:   true,
			Updated:   s.now(),
		},
	}
	s.pending[account] = op
	s.succeeded.Remove(account)
	s.failed.Remove(account)

	log.Debugf("%s %s started for %s", name, op.activity.ID, account.Hex())
	return op, nil
}

func (s *activities) Get(account common.Address) (interop.Activity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if op, ok := s.pending[account]; ok {
		return op.activity, true
	} else if a, ok := s.failed.Get(account); ok {
		return a, true
	} else {
		return s.succeeded.Get(account)
	}
}

func (op *operation) Update(status string) {
	op.store.mu.Lock()
	defer op.store.mu.Unlock()

	op.activity.Status = status
	op.activity.Updated = op.store.now()
}

// Finish releases the account. On success the activity shows status, on
// failure the error message.
func (op *operation) Finish(status string, err error) {
	s := op.store
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pending, op.activity.Account)

	a := op.activity
	a.Pending = false
	a.Updated = s.now()

	if err != nil {
		message := err.Error()
		a.Status = "Error: " + message
		a.Error = &message
		s.failed.Add(a.Account, a)
		log.Infof("%s %s failed for %s: %v", a.Operation, a.ID, a.Account.Hex(), err)
	} else {
		a.Status = status
		s.succeeded.Add(a.Account, a)
		log.Infof("%s %s finished for %s", a.Operation, a.ID, a.Account.Hex())
	}
}
