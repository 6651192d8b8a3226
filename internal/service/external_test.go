package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/boddenberg/hecu-bank-go/internal/domain"
)

func linkAccount(t *testing.T, f *fixture, userID string) *domain.ExternalAccount {
	t.Helper()
	ext, err := f.bank.LinkExternalAccount(context.Background(), userID, &domain.LinkExternalAccountRequest{
		BankName: "Chase", AccountType: "checking", AccountNumber: "000123456789", RoutingNumber: "021000021",
	})
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	return ext
}

func TestLinkExternalAccount(t *testing.T) {
	f := newFixture(t)
	u := f.newUser(t, "ada", "")

	ext := linkAccount(t, f, u.ID)
	if ext.AccountNumber != "6789" || ext.FullAccountNumber != "000123456789" {
		t.Errorf("unexpected numbers: %+v", ext)
	}
	if ext.Nickname != "Chase checking" {
		t.Errorf("unexpected default nickname %q", ext.Nickname)
	}

	_, err := f.bank.LinkExternalAccount(context.Background(), u.ID, &domain.LinkExternalAccountRequest{
		BankName: "Chase", AccountNumber: "000123456789", RoutingNumber: "021000021",
	})
	var conflict *domain.ErrConflict
	if !errors.As(err, &conflict) {
		t.Errorf("expected ErrConflict on relink, got %v", err)
	}

	_, err = f.bank.LinkExternalAccount(context.Background(), u.ID, &domain.LinkExternalAccountRequest{
		BankName: "Chase", AccountNumber: "12", RoutingNumber: "021000021",
	})
	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Errorf("expected ErrValidation on short account number, got %v", err)
	}
}

func TestExternalTransferToLinked_StagesPendingTransfer(t *testing.T) {
	f := newFixture(t)
	u := f.newUser(t, "ada", "300")
	ext := linkAccount(t, f, u.ID)

	res, err := f.bank.ExternalTransferToLinked(context.Background(), u.ID, &domain.LinkedTransferRequest{
		ExternalAccountID: ext.ID, Amount: "120",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.NewBalance.Equal(dec("180")) {
		t.Errorf("expected 180, got %s", res.NewBalance)
	}
	if res.Record.Kind != domain.KindExternalTransferPending || res.Record.Status != domain.TransferPending {
		t.Errorf("unexpected record: %+v", res.Record)
	}
	if res.Record.Description != "Transfer to Chase (6789)" {
		t.Errorf("unexpected description %q", res.Record.Description)
	}
	if res.Record.Reference != res.Transfer.ID {
		t.Error("record must reference the pending transfer")
	}

	got := f.load(t, u.ID)
	assertBalance(t, got.Accounts.Checking, "180")
	if len(got.PendingTransfers) != 1 || got.PendingTransfers[0].Status != domain.TransferPending {
		t.Fatalf("expected one pending transfer, got %+v", got.PendingTransfers)
	}
	if got.PendingTransfers[0].ExternalAccount.AccountNumber != "6789" {
		t.Errorf("unexpected destination snapshot: %+v", got.PendingTransfers[0].ExternalAccount)
	}
}

func TestExternalTransferToLinked_UnknownAccount(t *testing.T) {
	f := newFixture(t)
	u := f.newUser(t, "ada", "300")

	_, err := f.bank.ExternalTransferToLinked(context.Background(), u.ID, &domain.LinkedTransferRequest{
		ExternalAccountID: "missing", Amount: "10",
	})

	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	assertBalance(t, f.load(t, u.ID).Accounts.Checking, "300")
}

func TestSettlePendingTransfer(t *testing.T) {
	f := newFixture(t)
	u := f.newUser(t, "ada", "300")
	ext := linkAccount(t, f, u.ID)
	ctx := context.Background()

	staged, err := f.bank.ExternalTransferToLinked(ctx, u.ID, &domain.LinkedTransferRequest{ExternalAccountID: ext.ID, Amount: "100"})
	if err != nil {
		t.Fatalf("stage: %v", err)
	}

	settled, err := f.bank.SettlePendingTransfer(ctx, u.ID, staged.Transfer.ID)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if settled.Status != domain.TransferCompleted || settled.SettledAt == nil {
		t.Errorf("unexpected transfer: %+v", settled)
	}
	assertBalance(t, f.load(t, u.ID).Accounts.Checking, "200")

	feed, err := f.bank.ListTransactions(ctx, u.ID)
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if feed[0].Reference != staged.Transfer.ID || feed[0].Status != domain.TransferCompleted {
		t.Errorf("feed should show the settled state, got %+v", feed[0])
	}
	stored := f.load(t, u.ID).Accounts.Checking.Transactions
	if stored[len(stored)-1].Status != domain.TransferPending {
		t.Error("stored record must not be rewritten")
	}

	_, err = f.bank.SettlePendingTransfer(ctx, u.ID, staged.Transfer.ID)
	var conflict *domain.ErrConflict
	if !errors.As(err, &conflict) {
		t.Errorf("expected ErrConflict on second settle, got %v", err)
	}
}

func TestReversePendingTransfer(t *testing.T) {
	f := newFixture(t)
	u := f.newUser(t, "ada", "300")
	ext := linkAccount(t, f, u.ID)
	ctx := context.Background()

	staged, err := f.bank.ExternalTransferToLinked(ctx, u.ID, &domain.LinkedTransferRequest{ExternalAccountID: ext.ID, Amount: "100"})
	if err != nil {
		t.Fatalf("stage: %v", err)
	}

	res, err := f.bank.ReversePendingTransfer(ctx, u.ID, staged.Transfer.ID)
	if err != nil {
		t.Fatalf("reverse: %v", err)
	}
	if res.Record.Kind != domain.KindCredit || res.Record.Reference != staged.Transfer.ID {
		t.Errorf("unexpected reversal record: %+v", res.Record)
	}

	got := f.load(t, u.ID)
	assertBalance(t, got.Accounts.Checking, "300")
	if got.PendingTransfers[0].Status != domain.TransferReversed {
		t.Errorf("expected reversed, got %s", got.PendingTransfers[0].Status)
	}

	_, err = f.bank.ReversePendingTransfer(ctx, u.ID, staged.Transfer.ID)
	var conflict *domain.ErrConflict
	if !errors.As(err, &conflict) {
		t.Errorf("expected ErrConflict on second reverse, got %v", err)
	}
	_, err = f.bank.ReversePendingTransfer(ctx, u.ID, "unknown")
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
