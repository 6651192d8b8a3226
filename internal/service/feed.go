package service

import (
	"context"
	"fmt"
	"slices"

	"github.com/boddenberg/hecu-bank-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Feeds: read side, never mutates
// ============================================================

// ListTransactions returns every record on the user's checking, savings and
// bitcoin accounts, newest first. Records with equal timestamps keep
// account order (checking, savings, bitcoin) and history order within an
// account.
func (s *BankingService) ListTransactions(ctx context.Context, userID string) ([]domain.TransactionRecord, error) {
	ctx, span := bankTracer.Start(ctx, "BankingService.ListTransactions")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	if cached, ok := s.feeds.Get(userID); ok {
		s.metrics.IncrCacheHit(feedCache)
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return slices.Clone(cached), nil
	}
	s.metrics.IncrCacheMiss(feedCache)

	u, err := s.store.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.provisioner.EnsureShape(u)

	feed := userFeed(u)
	s.feeds.Set(userID, feed)
	return slices.Clone(feed), nil
}

// ListAllTransactions is the admin feed: every record of every user, tagged
// with its owner and account number, newest first.
func (s *BankingService) ListAllTransactions(ctx context.Context) ([]domain.FeedEntry, error) {
	ctx, span := bankTracer.Start(ctx, "BankingService.ListAllTransactions")
	defer span.End()

	users, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	var out []domain.FeedEntry
	for _, u := range users {
		s.provisioner.EnsureShape(u)
		status := pendingStatus(u)
		for _, t := range domain.AccountTypes {
			acct := u.Slot(t)
			number := acct.AccountNumber
			if t == domain.AccountBitcoin {
				number = acct.WalletAddress
			}
			for _, rec := range acct.Transactions {
				rec.Account = t
				overlayStatus(&rec, status)
				out = append(out, domain.FeedEntry{
					TransactionRecord: rec,
					UserID:            u.ID,
					UserName:          u.Name,
					AccountNumber:     number,
				})
			}
		}
	}
	slices.SortStableFunc(out, func(a, b domain.FeedEntry) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	span.SetAttributes(attribute.Int("feed.size", len(out)))
	return out, nil
}

func userFeed(u *domain.User) []domain.TransactionRecord {
	status := pendingStatus(u)
	feed := make([]domain.TransactionRecord, 0, recordCount(u))
	for _, t := range domain.AccountTypes {
		for _, rec := range u.Slot(t).Transactions {
			rec.Account = t
			overlayStatus(&rec, status)
			feed = append(feed, rec)
		}
	}
	slices.SortStableFunc(feed, func(a, b domain.TransactionRecord) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	return feed
}

func recordCount(u *domain.User) int {
	n := 0
	for _, t := range domain.AccountTypes {
		if acct := u.Slot(t); acct != nil {
			n += len(acct.Transactions)
		}
	}
	return n
}

// pendingStatus maps pending-transfer ids to their current state.
func pendingStatus(u *domain.User) map[string]string {
	m := make(map[string]string, len(u.PendingTransfers))
	for _, pt := range u.PendingTransfers {
		m[pt.ID] = pt.Status
	}
	return m
}

// overlayStatus shows the current state of a staged transfer on the copy of
// the debit record that staged it. Stored records are never rewritten.
func overlayStatus(rec *domain.TransactionRecord, status map[string]string) {
	if rec.Kind != domain.KindExternalTransferPending || rec.Reference == "" {
		return
	}
	if st, ok := status[rec.Reference]; ok {
		rec.Status = st
	}
}
