package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/hecu-bank-go/internal/domain"
	"github.com/boddenberg/hecu-bank-go/internal/infra/cache"
	"github.com/boddenberg/hecu-bank-go/internal/infra/memstore"
	"github.com/boddenberg/hecu-bank-go/internal/infra/observability"
	"github.com/boddenberg/hecu-bank-go/internal/ledger"
	"github.com/boddenberg/hecu-bank-go/internal/port"
	"github.com/boddenberg/hecu-bank-go/internal/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// --- Fixtures ---

// tickingClock advances one second per reading so every mutation gets a
// distinct timestamp.
type tickingClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *tickingClock {
	return &tickingClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type fixture struct {
	store   *memstore.Store
	metrics *observability.Metrics
	bank    *service.BankingService
	clock   *tickingClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithStore(t, memstore.New())
}

func newFixtureWithStore(t *testing.T, store *memstore.Store) *fixture {
	t.Helper()
	return newFixtureOver(t, store, store)
}

// newFixtureOver lets a test wrap the memstore with a store that injects faults.
func newFixtureOver(t *testing.T, mem *memstore.Store, store port.UserStore) *fixture {
	t.Helper()
	feeds := cache.New[[]domain.TransactionRecord](time.Minute)
	t.Cleanup(feeds.Close)

	clock := newClock()
	metrics := observability.NewMetrics()
	bank := service.NewBankingService(store, feeds, service.Config{
		BTCPriceUSD:    decimal.NewFromInt(50000),
		MaxConcurrency: 8,
		Now:            clock.Now,
	}, metrics, zap.NewNop())

	return &fixture{store: mem, metrics: metrics, bank: bank, clock: clock}
}

// newUser stores a provisioned user and funds checking when amount is non-empty.
func (f *fixture) newUser(t *testing.T, name, checking string) *domain.User {
	t.Helper()
	u := f.bank.Provisioner().NewUser(name, name+"@example.com", name, "hash")
	if err := f.store.Create(context.Background(), u); err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	if checking != "" {
		if _, err := f.bank.AdminUpdateBalance(context.Background(), u.ID, &domain.AdminBalanceRequest{
			Account: "checking", Amount: domain.RawAmount(checking),
		}); err != nil {
			t.Fatalf("fund %s: %v", name, err)
		}
	}
	return u
}

func (f *fixture) load(t *testing.T, userID string) *domain.User {
	t.Helper()
	u, err := f.store.Load(context.Background(), userID)
	if err != nil {
		t.Fatalf("load %s: %v", userID, err)
	}
	return u
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertBalance(t *testing.T, acct *domain.Account, want string) {
	t.Helper()
	if acct == nil {
		t.Fatalf("account missing, want balance %s", want)
	}
	if !acct.Balance.Equal(dec(want)) {
		t.Errorf("expected balance %s, got %s", want, acct.Balance)
	}
	if err := ledger.Replay(acct); err != nil {
		t.Errorf("history does not replay: %v", err)
	}
}
