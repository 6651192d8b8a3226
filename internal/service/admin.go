package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/boddenberg/hecu-bank-go/internal/domain"
	"github.com/boddenberg/hecu-bank-go/internal/ledger"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const opToggleSuspend = "toggle_suspend"

// ============================================================
// Admin balance update: POST /v1/admin/users/{userId}/update-balance
// ============================================================

// AdminUpdateBalance adjusts checking or savings by a signed amount. The
// adjustment has no floor and may leave the account negative.
func (s *BankingService) AdminUpdateBalance(ctx context.Context, userID string, req *domain.AdminBalanceRequest) (*domain.MutationResult, error) {
	ctx, span := bankTracer.Start(ctx, "BankingService.AdminUpdateBalance")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID), attribute.String("account", req.Account))

	var res *domain.MutationResult
	_, err := s.mutate(ctx, opAdminBalance, userID, true, func(t *txn) error {
		acct, err := usdAccount(req.Account)
		if err != nil {
			return err
		}
		amount, err := ledger.ParseAmount(req.Amount, "amount")
		if err != nil {
			return err
		}
		bal, rec, err := t.apply(ledger.Entry{
			Account:        acct,
			Kind:           domain.SignedKind(amount),
			Amount:         amount,
			Description:    "Admin adjustment",
			Memo:           req.Memo,
			AllowOverdraft: true,
		})
		if err != nil {
			return err
		}
		res = &domain.MutationResult{
			Message:    "Balance updated successfully",
			Account:    acct,
			NewBalance: bal,
			Record:     rec,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("admin balance adjustment",
		zap.String("user_id", userID),
		zap.String("account", string(res.Account)),
		zap.String("amount", res.Record.Amount.String()),
		zap.String("new_balance", res.NewBalance.String()),
	)
	return res, nil
}

// ============================================================
// Admin transfer: POST /v1/admin/transfer
// ============================================================

// AdminTransfer credits or debits an account located by its number. Unlike
// AdminUpdateBalance it refuses to overdraw.
func (s *BankingService) AdminTransfer(ctx context.Context, req *domain.AdminTransferRequest) (*domain.AdminTransferResult, error) {
	ctx, span := bankTracer.Start(ctx, "BankingService.AdminTransfer")
	defer span.End()
	span.SetAttributes(attribute.String("account.type", req.AccountType))

	acct, err := usdAccount(req.AccountType)
	if err != nil {
		return nil, s.fail(opAdminTransfer, "", err)
	}
	number := strings.TrimSpace(req.AccountNumber)
	if err := required("accountNumber", number); err != nil {
		return nil, s.fail(opAdminTransfer, "", err)
	}

	owner, err := s.store.LoadByAccountNumber(ctx, number)
	if err != nil {
		return nil, s.fail(opAdminTransfer, "", fmt.Errorf("find account %s: %w", number, err))
	}

	var res *domain.AdminTransferResult
	_, err = s.mutate(ctx, opAdminTransfer, owner.ID, true, func(t *txn) error {
		slot := t.user.Slot(acct)
		if slot == nil || slot.AccountNumber != number {
			return &domain.ErrNotFound{Resource: string(acct) + " account", ID: number}
		}
		amount, err := ledger.ParseAmount(req.Amount, "amount")
		if err != nil {
			return err
		}
		old := slot.Balance
		bal, rec, err := t.apply(ledger.Entry{
			Account:     acct,
			Kind:        domain.SignedKind(amount),
			Amount:      amount,
			Description: "Admin transfer",
			Memo:        req.Memo,
		})
		if err != nil {
			return err
		}
		if amount.IsPositive() {
			t.notify(domain.NotifySuccess, "Funds Received",
				fmt.Sprintf("%s was credited to your %s account", usd(amount), acct))
		}
		res = &domain.AdminTransferResult{
			Message:     "Transfer completed successfully",
			Recipient:   t.user.Name,
			Account:     number,
			AccountType: acct,
			Amount:      amount,
			OldBalance:  old,
			NewBalance:  bal,
			Record:      rec,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ============================================================
// Account administration
// ============================================================

// ToggleSuspend flips a user between active and suspended.
func (s *BankingService) ToggleSuspend(ctx context.Context, userID string) (*domain.User, error) {
	ctx, span := bankTracer.Start(ctx, "BankingService.ToggleSuspend")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	u, err := s.mutate(ctx, opToggleSuspend, userID, true, func(t *txn) error {
		if t.user.Status == domain.UserSuspended {
			t.user.Status = domain.UserActive
		} else {
			t.user.Status = domain.UserSuspended
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user status changed", zap.String("user_id", userID), zap.String("status", u.Status))
	return u.Sanitized(), nil
}
