package memstore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/boddenberg/hecu-bank-go/internal/domain"
	"github.com/boddenberg/hecu-bank-go/internal/infra/memstore"
	"github.com/boddenberg/hecu-bank-go/internal/ledger"

	"github.com/shopspring/decimal"
)

func newUser(email, username string) *domain.User {
	return ledger.NewProvisioner("").NewUser("Test", email, username, "hash")
}

func TestStore_CreateAndLoad(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	u := newUser("a@example.com", "a")

	if err := s.Create(ctx, u); err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.Version != 1 {
		t.Errorf("expected version 1, got %d", u.Version)
	}

	got, err := s.Load(ctx, u.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Email != "a@example.com" {
		t.Errorf("unexpected email %q", got.Email)
	}
}

func TestStore_LoadReturnsCopy(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	u := newUser("a@example.com", "a")
	s.Create(ctx, u)

	got, _ := s.Load(ctx, u.ID)
	got.Accounts.Checking.Balance = decimal.NewFromInt(1_000_000)

	again, _ := s.Load(ctx, u.ID)
	if !again.Accounts.Checking.Balance.IsZero() {
		t.Fatal("mutating a loaded user leaked into the store")
	}
}

func TestStore_LoadNotFound(t *testing.T) {
	s := memstore.New()

	_, err := s.Load(context.Background(), "missing")
	var nf *domain.ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_SaveVersionCheck(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	u := newUser("a@example.com", "a")
	s.Create(ctx, u)

	first, _ := s.Load(ctx, u.ID)
	second, _ := s.Load(ctx, u.ID)

	first.Name = "First"
	if err := s.Save(ctx, first); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if first.Version != 2 {
		t.Errorf("expected version 2, got %d", first.Version)
	}

	second.Name = "Second"
	err := s.Save(ctx, second)
	var conflict *domain.ErrConflict
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ErrConflict on stale save, got %v", err)
	}

	got, _ := s.Load(ctx, u.ID)
	if got.Name != "First" {
		t.Errorf("stale save overwrote the document: %q", got.Name)
	}
}

func TestStore_Uniqueness(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	a := newUser("a@example.com", "a")
	s.Create(ctx, a)

	tests := []struct {
		name string
		user func() *domain.User
		key  string
	}{
		{"email", func() *domain.User { return newUser("a@example.com", "other") }, "email"},
		{"username", func() *domain.User { return newUser("b@example.com", "a") }, "username"},
		{"account number", func() *domain.User {
			u := newUser("c@example.com", "c")
			u.Accounts.Savings.AccountNumber = a.Accounts.Checking.AccountNumber
			return u
		}, "account_number"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Create(ctx, tt.user())
			var dup *domain.ErrDuplicate
			if !errors.As(err, &dup) {
				t.Fatalf("expected ErrDuplicate, got %v", err)
			}
			if dup.Key != tt.key {
				t.Errorf("expected key %q, got %q", tt.key, dup.Key)
			}
		})
	}
}

func TestStore_LoadByAccountNumber(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	u := newUser("a@example.com", "a")
	s.Create(ctx, u)

	got, err := s.LoadByAccountNumber(ctx, u.Accounts.Savings.AccountNumber)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("expected %s, got %s", u.ID, got.ID)
	}

	if _, err := s.LoadByAccountNumber(ctx, "0000000000"); err == nil {
		t.Error("expected not found for unknown number")
	}
}

func TestStore_FindByLogin(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	u := newUser("a@example.com", "alice")
	s.Create(ctx, u)

	if got, err := s.FindByLogin(ctx, "A@Example.com", ""); err != nil || got.ID != u.ID {
		t.Errorf("lookup by email failed: %v", err)
	}
	if got, err := s.FindByLogin(ctx, "", "alice"); err != nil || got.ID != u.ID {
		t.Errorf("lookup by username failed: %v", err)
	}
	if _, err := s.FindByLogin(ctx, "", "bob"); err == nil {
		t.Error("expected not found")
	}
}

func TestStore_SeedKeepsLegacyShape(t *testing.T) {
	s := memstore.New()
	s.Seed(&domain.User{ID: "legacy", Email: "old@example.com"})

	got, err := s.Load(context.Background(), "legacy")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Accounts.Checking != nil {
		t.Error("seed should not provision accounts")
	}
}
