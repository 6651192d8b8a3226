package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/boddenberg/hecu-bank-go/internal/domain"
	"github.com/boddenberg/hecu-bank-go/internal/ledger"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// External accounts: POST /v1/users/{userId}/external-accounts
// ============================================================

// LinkExternalAccount links an account held at another institution.
func (s *BankingService) LinkExternalAccount(ctx context.Context, userID string, req *domain.LinkExternalAccountRequest) (*domain.ExternalAccount, error) {
	ctx, span := bankTracer.Start(ctx, "BankingService.LinkExternalAccount")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID), attribute.String("external.bank", req.BankName))

	var linked domain.ExternalAccount
	_, err := s.mutate(ctx, opLinkExternal, userID, false, func(t *txn) error {
		if err := required("bankName", req.BankName); err != nil {
			return err
		}
		number := strings.TrimSpace(req.AccountNumber)
		if len(number) < 4 || !isDigits(number) {
			return &domain.ErrValidation{Field: "accountNumber", Message: "account number must be at least 4 digits"}
		}
		routing := strings.TrimSpace(req.RoutingNumber)
		if len(routing) != 9 || !isDigits(routing) {
			return &domain.ErrValidation{Field: "routingNumber", Message: "routing number must be 9 digits"}
		}
		for _, ext := range t.user.ExternalAccounts {
			if ext.FullAccountNumber == number && ext.RoutingNumber == routing {
				return &domain.ErrConflict{Message: "external account already linked"}
			}
		}

		accountType := req.AccountType
		if accountType == "" {
			accountType = string(domain.AccountChecking)
		}
		nickname := req.Nickname
		if nickname == "" {
			nickname = fmt.Sprintf("%s %s", req.BankName, accountType)
		}
		linked = domain.ExternalAccount{
			ID:                uuid.New().String(),
			BankName:          req.BankName,
			AccountType:       accountType,
			AccountNumber:     number[len(number)-4:],
			FullAccountNumber: number,
			RoutingNumber:     routing,
			Nickname:          nickname,
			LinkedAt:          t.at,
			Status:            domain.UserActive,
		}
		t.user.ExternalAccounts = append(t.user.ExternalAccounts, linked)
		t.notify(domain.NotifyInfo, "External Account Linked",
			fmt.Sprintf("%s ending in %s is now linked", req.BankName, linked.AccountNumber))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &linked, nil
}

// ============================================================
// Linked transfer: POST /v1/users/{userId}/external-transfer
// ============================================================

// ExternalTransferToLinked debits checking now and stages a pending transfer
// to a linked account. The funds stay earmarked until an admin settles or
// reverses it.
func (s *BankingService) ExternalTransferToLinked(ctx context.Context, userID string, req *domain.LinkedTransferRequest) (*domain.PendingTransferResult, error) {
	ctx, span := bankTracer.Start(ctx, "BankingService.ExternalTransferToLinked")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID), attribute.String("external.id", req.ExternalAccountID))

	var res *domain.PendingTransferResult
	_, err := s.mutate(ctx, opLinkedTransfer, userID, false, func(t *txn) error {
		ext := t.user.ExternalAccount(req.ExternalAccountID)
		if ext == nil {
			return &domain.ErrNotFound{Resource: "external account", ID: req.ExternalAccountID}
		}
		amount, err := ledger.ParsePositiveAmount(req.Amount, "amount")
		if err != nil {
			return err
		}

		transferID := uuid.New().String()
		bal, rec, err := t.apply(ledger.Entry{
			Account:     domain.AccountChecking,
			Kind:        domain.KindExternalTransferPending,
			Amount:      amount.Neg(),
			Description: fmt.Sprintf("Transfer to %s (%s)", ext.BankName, ext.AccountNumber),
			Memo:        req.Memo,
			Category:    categoryTransfer,
			Status:      domain.TransferPending,
			Reference:   transferID,
		})
		if err != nil {
			return err
		}

		pending := domain.PendingTransfer{
			ID:           transferID,
			Timestamp:    rec.Timestamp,
			Kind:         rec.Kind,
			Amount:       rec.Amount,
			Description:  rec.Description,
			Memo:         rec.Memo,
			BalanceAfter: rec.BalanceAfter,
			Category:     rec.Category,
			Status:       domain.TransferPending,
			ExternalAccount: domain.ExternalAccountRef{
				BankName:          ext.BankName,
				AccountNumber:     ext.AccountNumber,
				FullAccountNumber: ext.FullAccountNumber,
				RoutingNumber:     ext.RoutingNumber,
			},
		}
		t.user.PendingTransfers = append(t.user.PendingTransfers, pending)
		t.spend(rec.Category, amount)
		t.notify(domain.NotifyInfo, "Transfer Pending",
			fmt.Sprintf("%s to %s is being processed", usd(amount), ext.BankName))

		res = &domain.PendingTransferResult{
			Message:    "External transfer initiated",
			NewBalance: bal,
			Record:     rec,
			Transfer:   pending,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ============================================================
// Settlement (admin)
// ============================================================

// SettlePendingTransfer marks a pending transfer as sent. The debit was
// taken when it was staged, so balances do not move.
func (s *BankingService) SettlePendingTransfer(ctx context.Context, userID, transferID string) (*domain.PendingTransfer, error) {
	ctx, span := bankTracer.Start(ctx, "BankingService.SettlePendingTransfer")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID), attribute.String("transfer.id", transferID))

	var settled domain.PendingTransfer
	_, err := s.mutate(ctx, opSettlePending, userID, true, func(t *txn) error {
		pt, err := pendingFor(t.user, transferID)
		if err != nil {
			return err
		}
		at := t.at
		pt.Status = domain.TransferCompleted
		pt.SettledAt = &at
		t.notify(domain.NotifySuccess, "Transfer Completed",
			fmt.Sprintf("%s to %s has been sent", usd(pt.Amount.Abs()), pt.ExternalAccount.BankName))
		settled = *pt
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &settled, nil
}

// ReversePendingTransfer cancels a pending transfer and credits the debit
// back to checking.
func (s *BankingService) ReversePendingTransfer(ctx context.Context, userID, transferID string) (*domain.MutationResult, error) {
	ctx, span := bankTracer.Start(ctx, "BankingService.ReversePendingTransfer")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID), attribute.String("transfer.id", transferID))

	var res *domain.MutationResult
	_, err := s.mutate(ctx, opReversePending, userID, true, func(t *txn) error {
		pt, err := pendingFor(t.user, transferID)
		if err != nil {
			return err
		}
		refund := pt.Amount.Abs()
		bal, rec, err := t.apply(ledger.Entry{
			Account:     domain.AccountChecking,
			Kind:        domain.KindCredit,
			Amount:      refund,
			Description: "Reversal: " + pt.Description,
			Category:    categoryTransfer,
			Reference:   pt.ID,
		})
		if err != nil {
			return err
		}
		at := t.at
		pt.Status = domain.TransferReversed
		pt.SettledAt = &at
		t.notify(domain.NotifyWarning, "Transfer Reversed",
			fmt.Sprintf("%s to %s was returned to checking", usd(refund), pt.ExternalAccount.BankName))

		res = &domain.MutationResult{
			Message:    "Pending transfer reversed",
			Account:    domain.AccountChecking,
			NewBalance: bal,
			Record:     rec,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// pendingFor returns the transfer only while it can still change state.
func pendingFor(u *domain.User, transferID string) (*domain.PendingTransfer, error) {
	pt := u.PendingTransfer(transferID)
	if pt == nil {
		return nil, &domain.ErrNotFound{Resource: "pending transfer", ID: transferID}
	}
	if pt.Status != domain.TransferPending {
		return nil, &domain.ErrConflict{Message: fmt.Sprintf("transfer %s is already %s", transferID, pt.Status)}
	}
	return pt, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
