package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/boddenberg/hecu-bank-go/internal/domain"
	"github.com/boddenberg/hecu-bank-go/internal/ledger"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	opRepair = "repair_all"
	opExport = "export_users"
)

// ============================================================
// Batch repair: POST /v1/admin/repair, cmd/repair
// ============================================================

// RepairAll heals every stored user and saves only those that changed, so a
// second run over the same population repairs nothing. Per-user failures
// are collected in the report and do not stop the run.
func (s *BankingService) RepairAll(ctx context.Context) (*domain.RepairReport, error) {
	ctx, span := bankTracer.Start(ctx, "BankingService.RepairAll")
	defer span.End()

	start := time.Now()
	defer func() {
		s.metrics.RecordOperationDuration(opRepair, time.Since(start))
	}()

	users, err := s.store.List(ctx)
	if err != nil {
		return nil, s.fail(opRepair, "", fmt.Errorf("list users: %w", err))
	}

	var (
		mu     sync.Mutex
		report = &domain.RepairReport{Scanned: len(users), Errors: []string{}}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, u := range users {
		userID := u.ID
		g.Go(func() error {
			changed, err := s.repairUser(gctx, userID)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", userID, err))
				return nil
			}
			if changed {
				report.Repaired++
			}
			return nil
		})
	}
	_ = g.Wait()
	slices.Sort(report.Errors)

	s.metrics.AddRepaired(report.Repaired)
	span.SetAttributes(
		attribute.Int("repair.scanned", report.Scanned),
		attribute.Int("repair.repaired", report.Repaired),
	)
	s.logger.Info("repair completed",
		zap.Int("scanned", report.Scanned),
		zap.Int("repaired", report.Repaired),
		zap.Int("errors", len(report.Errors)),
	)
	return report, nil
}

func (s *BankingService) repairUser(ctx context.Context, userID string) (bool, error) {
	unlock, err := s.locks.Lock(ctx, userID)
	if err != nil {
		return false, err
	}
	defer unlock()

	u, err := s.store.Load(ctx, userID)
	if err != nil {
		return false, err
	}

	for _, t := range domain.AccountTypes {
		if err := ledger.Replay(u.Slot(t)); err != nil {
			s.logger.Warn("repair: history does not replay",
				zap.String("user_id", userID),
				zap.String("account", string(t)),
				zap.Error(err),
			)
		}
	}

	if !s.provisioner.EnsureShape(u) {
		return false, nil
	}
	if err := s.store.Save(ctx, u); err != nil {
		s.metrics.IncrFailure(opRepair, failureReason(err))
		return false, err
	}
	s.feeds.Delete(userID)
	return true, nil
}

// ExportUsers returns every stored document as-is, sorted by id. Nothing is
// healed or sanitized: the backup must restore exactly what was stored.
func (s *BankingService) ExportUsers(ctx context.Context) (*domain.UserBackup, error) {
	ctx, span := bankTracer.Start(ctx, "BankingService.ExportUsers")
	defer span.End()

	users, err := s.store.List(ctx)
	if err != nil {
		return nil, s.fail(opExport, "", fmt.Errorf("list users: %w", err))
	}
	slices.SortFunc(users, func(a, b *domain.User) int { return strings.Compare(a.ID, b.ID) })

	span.SetAttributes(attribute.Int("export.users", len(users)))
	s.logger.Info("users exported", zap.Int("users", len(users)))
	return &domain.UserBackup{Timestamp: s.now().UTC(), Users: users}, nil
}
