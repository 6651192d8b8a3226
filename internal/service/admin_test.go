package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/boddenberg/hecu-bank-go/internal/domain"
)

func TestAdminUpdateBalance_NoFloor(t *testing.T) {
	f := newFixture(t)
	u := f.newUser(t, "ada", "100")

	res, err := f.bank.AdminUpdateBalance(context.Background(), u.ID, &domain.AdminBalanceRequest{
		Account: "checking", Amount: "-150",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.NewBalance.Equal(dec("-50")) {
		t.Errorf("expected -50, got %s", res.NewBalance)
	}
	if res.Record.Kind != domain.KindDebit || res.Record.Description != "Admin adjustment" {
		t.Errorf("unexpected record: %+v", res.Record)
	}
	assertBalance(t, f.load(t, u.ID).Accounts.Checking, "-50")
}

func TestAdminUpdateBalance_RejectsBitcoin(t *testing.T) {
	f := newFixture(t)
	u := f.newUser(t, "ada", "")

	_, err := f.bank.AdminUpdateBalance(context.Background(), u.ID, &domain.AdminBalanceRequest{Account: "bitcoin", Amount: "1"})

	var invalid *domain.ErrInvalidAccountType
	if !errors.As(err, &invalid) {
		t.Fatalf("expected ErrInvalidAccountType, got %v", err)
	}
}

func TestAdminUpdateBalance_ProvisionsMissingSavings(t *testing.T) {
	f := newFixture(t)
	f.store.Seed(&domain.User{ID: "legacy", Name: "Legacy", Status: domain.UserActive})

	res, err := f.bank.AdminUpdateBalance(context.Background(), "legacy", &domain.AdminBalanceRequest{Account: "savings", Amount: "25"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Record.Kind != domain.KindCredit {
		t.Errorf("expected Credit, got %s", res.Record.Kind)
	}
	assertBalance(t, f.load(t, "legacy").Accounts.Savings, "25")
}

func TestAdminTransfer_RejectsOverdraw(t *testing.T) {
	f := newFixture(t)
	u := f.newUser(t, "ada", "100")
	number := u.Accounts.Checking.AccountNumber

	_, err := f.bank.AdminTransfer(context.Background(), &domain.AdminTransferRequest{
		AccountNumber: number, AccountType: "checking", Amount: "-150",
	})

	var insufficient *domain.ErrInsufficientFunds
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	assertBalance(t, f.load(t, u.ID).Accounts.Checking, "100")
}

func TestAdminTransfer_CreditsByAccountNumber(t *testing.T) {
	f := newFixture(t)
	u := f.newUser(t, "ada", "100")
	f.newUser(t, "bob", "10")

	res, err := f.bank.AdminTransfer(context.Background(), &domain.AdminTransferRequest{
		AccountNumber: u.Accounts.Savings.AccountNumber, AccountType: "savings", Amount: "75.25",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Recipient != "ada" || !res.OldBalance.IsZero() || !res.NewBalance.Equal(dec("75.25")) {
		t.Errorf("unexpected result: %+v", res)
	}
	if res.Record.Description != "Admin transfer" || res.Record.Kind != domain.KindCredit {
		t.Errorf("unexpected record: %+v", res.Record)
	}
	assertBalance(t, f.load(t, u.ID).Accounts.Savings, "75.25")
}

func TestAdminTransfer_TypeMustMatchNumber(t *testing.T) {
	f := newFixture(t)
	u := f.newUser(t, "ada", "100")

	_, err := f.bank.AdminTransfer(context.Background(), &domain.AdminTransferRequest{
		AccountNumber: u.Accounts.Checking.AccountNumber, AccountType: "savings", Amount: "5",
	})
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	_, err = f.bank.AdminTransfer(context.Background(), &domain.AdminTransferRequest{
		AccountNumber: "0000000000", AccountType: "checking", Amount: "5",
	})
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound for unknown number, got %v", err)
	}
}

func TestListUsers_Sanitized(t *testing.T) {
	f := newFixture(t)
	f.newUser(t, "ada", "")
	f.newUser(t, "bob", "")

	users, err := f.bank.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
	for _, u := range users {
		if u.PasswordHash != "" {
			t.Errorf("password hash leaked for %s", u.Name)
		}
	}
}
