// Package service provides the business logic layer (use cases).
// BankingService owns every ledger mutation: transfers, deposits, admin
// adjustments, pending external transfers and the bookkeeping around them.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/boddenberg/hecu-bank-go/internal/domain"
	"github.com/boddenberg/hecu-bank-go/internal/infra/observability"
	"github.com/boddenberg/hecu-bank-go/internal/infra/resilience"
	"github.com/boddenberg/hecu-bank-go/internal/ledger"
	"github.com/boddenberg/hecu-bank-go/internal/port"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var bankTracer = otel.Tracer("service/banking")

// feedCache is the cache label used on the hit/miss counters.
const feedCache = "feed"

// accountNumberKey is the ErrDuplicate key stores report for a taken
// account number.
const accountNumberKey = "account_number"

// Config tunes a BankingService.
type Config struct {
	RoutingNumber  string
	BTCPriceUSD    decimal.Decimal
	MaxConcurrency int

	// Now overrides the clock. Nil means time.Now.
	Now func() time.Time
}

// BankingService orchestrates all ledger operations over the user store.
type BankingService struct {
	store       port.UserStore
	feeds       port.Cache[[]domain.TransactionRecord]
	provisioner *ledger.Provisioner
	locks       *resilience.KeyedMutex
	bulkhead    *resilience.Bulkhead
	btcPrice    decimal.Decimal
	concurrency int
	now         func() time.Time
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// NewBankingService creates a new banking service.
func NewBankingService(
	store port.UserStore,
	feeds port.Cache[[]domain.TransactionRecord],
	cfg Config,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *BankingService {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	concurrency := cfg.MaxConcurrency
	if concurrency < 1 {
		concurrency = 10
	}
	return &BankingService{
		store:       store,
		feeds:       feeds,
		provisioner: ledger.NewProvisioner(cfg.RoutingNumber).WithClock(now),
		locks:       resilience.NewKeyedMutex(),
		bulkhead:    resilience.NewBulkhead(concurrency),
		btcPrice:    cfg.BTCPriceUSD,
		concurrency: concurrency,
		now:         now,
		metrics:     metrics,
		logger:      logger,
	}
}

// Provisioner exposes the provisioner so registration stamps the same
// routing number and clock as the mutation path.
func (s *BankingService) Provisioner() *ledger.Provisioner {
	return s.provisioner
}

// ============================================================
// Users
// ============================================================

// GetUser returns the sanitized aggregate.
func (s *BankingService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	ctx, span := bankTracer.Start(ctx, "BankingService.GetUser")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	u, err := s.store.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.provisioner.EnsureShape(u)
	return u.Sanitized(), nil
}

// ListUsers returns every user, sanitized, for the admin console.
func (s *BankingService) ListUsers(ctx context.Context) ([]*domain.User, error) {
	ctx, span := bankTracer.Start(ctx, "BankingService.ListUsers")
	defer span.End()

	users, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := make([]*domain.User, 0, len(users))
	for _, u := range users {
		out = append(out, u.Sanitized())
	}
	return out, nil
}

// Ping reports whether the user store is reachable.
func (s *BankingService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// ============================================================
// Mutation pipeline
// ============================================================

// txn is the unit of work handed to a mutation. Entries applied through it
// share one timestamp unless they carry their own.
type txn struct {
	user    *domain.User
	at      time.Time
	records []domain.TransactionRecord
}

func (t *txn) apply(e ledger.Entry) (decimal.Decimal, domain.TransactionRecord, error) {
	if e.At.IsZero() {
		e.At = t.at
	}
	bal, rec, err := ledger.Apply(t.user, e)
	if err != nil {
		return bal, rec, err
	}
	t.records = append(t.records, rec)
	return bal, rec, nil
}

// mutate runs fn against a freshly loaded, self-healed aggregate and saves
// it. Mutations of one user are serialized in-process; across processes the
// store's version check turns a lost update into ErrConflict. If fn fails
// nothing is saved. When healing drew a fresh account number that another
// user already holds, the whole mutation runs once more from a new load.
func (s *BankingService) mutate(ctx context.Context, op, userID string, admin bool, fn func(*txn) error) (*domain.User, error) {
	start := time.Now()
	defer func() {
		s.metrics.RecordOperationDuration(op, time.Since(start))
	}()

	if err := s.bulkhead.Acquire(ctx); err != nil {
		return nil, s.fail(op, userID, err)
	}
	defer s.bulkhead.Release()

	unlock, err := s.locks.Lock(ctx, userID)
	if err != nil {
		return nil, s.fail(op, userID, err)
	}
	defer unlock()

	for attempt := 0; ; attempt++ {
		t, healed, err := s.runOnce(ctx, userID, admin, fn)
		if err == nil {
			s.feeds.Delete(userID)
			for _, rec := range t.records {
				s.metrics.IncrLedgerEntry(rec.Kind)
			}
			s.logger.Info("user saved",
				zap.String("operation", op),
				zap.String("user_id", userID),
				zap.Int("entries", len(t.records)),
				zap.Int64("version", t.user.Version),
			)
			return t.user, nil
		}

		var dup *domain.ErrDuplicate
		if healed && attempt == 0 && errors.As(err, &dup) && dup.Key == accountNumberKey {
			s.logger.Warn("healed account number taken, retrying",
				zap.String("operation", op),
				zap.String("user_id", userID),
			)
			continue
		}
		return nil, s.fail(op, userID, err)
	}
}

// runOnce is one load, heal, apply, save pass. healed reports whether
// EnsureShape changed the loaded aggregate.
func (s *BankingService) runOnce(ctx context.Context, userID string, admin bool, fn func(*txn) error) (t *txn, healed bool, err error) {
	u, err := s.store.Load(ctx, userID)
	if err != nil {
		return nil, false, fmt.Errorf("load user: %w", err)
	}
	healed = s.provisioner.EnsureShape(u)

	if !admin && u.Status != domain.UserActive {
		return nil, healed, &domain.ErrAccountBlocked{Status: u.Status}
	}

	t = &txn{user: u, at: s.now().UTC()}
	t.rollBudgetMonth()

	if err := fn(t); err != nil {
		return nil, healed, err
	}
	if err := s.store.Save(ctx, u); err != nil {
		return nil, healed, fmt.Errorf("save user: %w", err)
	}
	return t, healed, nil
}

// fail counts and logs a failed operation and hands err back unchanged.
func (s *BankingService) fail(op, userID string, err error) error {
	reason := failureReason(err)
	s.metrics.IncrFailure(op, reason)
	var storage *domain.ErrStorageUnavailable
	if errors.As(err, &storage) {
		s.metrics.IncrStoreError(storage.Store)
	}

	fields := []zap.Field{
		zap.String("operation", op),
		zap.String("user_id", userID),
		zap.String("reason", reason),
		zap.Error(err),
	}
	switch reason {
	case observability.ReasonStorage, observability.ReasonInternal, observability.ReasonConflict:
		s.logger.Error("ledger mutation failed", fields...)
	default:
		s.logger.Warn("ledger mutation rejected", fields...)
	}
	return err
}

func failureReason(err error) string {
	var (
		insufficient *domain.ErrInsufficientFunds
		invalidAmt   *domain.ErrInvalidAmount
		invalidType  *domain.ErrInvalidAccountType
		validation   *domain.ErrValidation
		notFound     *domain.ErrNotFound
		conflict     *domain.ErrConflict
		duplicate    *domain.ErrDuplicate
		blocked      *domain.ErrAccountBlocked
		storage      *domain.ErrStorageUnavailable
	)
	switch {
	case errors.As(err, &insufficient):
		return observability.ReasonInsufficientFunds
	case errors.As(err, &invalidAmt), errors.As(err, &invalidType), errors.As(err, &validation):
		return observability.ReasonInvalidInput
	case errors.As(err, &notFound):
		return observability.ReasonNotFound
	case errors.As(err, &conflict), errors.As(err, &duplicate):
		return observability.ReasonConflict
	case errors.As(err, &blocked):
		return observability.ReasonBlocked
	case errors.As(err, &storage),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return observability.ReasonStorage
	}
	return observability.ReasonInternal
}

// usdAccount resolves a slot name that must hold dollars.
func usdAccount(name string) (domain.AccountType, error) {
	t, err := domain.ParseAccountType(name)
	if err != nil {
		return "", err
	}
	if t == domain.AccountBitcoin {
		return "", &domain.ErrInvalidAccountType{Name: name}
	}
	return t, nil
}

// required rejects blank free-text fields.
func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &domain.ErrValidation{Field: field, Message: field + " is required"}
	}
	return nil
}
