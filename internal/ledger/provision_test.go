package ledger_test

import (
	"testing"
	"time"

	"github.com/boddenberg/hecu-bank-go/internal/domain"
	"github.com/boddenberg/hecu-bank-go/internal/ledger"
)

func TestRandomAccountNumber_TenDigits(t *testing.T) {
	for i := 0; i < 500; i++ {
		n := ledger.RandomAccountNumber()
		if len(n) != 10 {
			t.Fatalf("expected 10 digits, got %q", n)
		}
		if n[0] == '0' {
			t.Fatalf("unexpected leading zero: %q", n)
		}
	}
}

func TestNewUser_ProvisionsCheckingAndSavings(t *testing.T) {
	p := ledger.NewProvisioner("111000025")
	u := p.NewUser("Ada", " Ada@Example.com ", "ada", "hash")

	if u.Accounts.Checking == nil || u.Accounts.Savings == nil {
		t.Fatal("expected checking and savings")
	}
	if u.Accounts.Bitcoin != nil {
		t.Error("bitcoin should be provisioned lazily")
	}
	if u.Accounts.Checking.AccountNumber == u.Accounts.Savings.AccountNumber {
		t.Error("checking and savings share a number")
	}
	if u.Accounts.Checking.RoutingNumber != "111000025" {
		t.Errorf("unexpected routing number %q", u.Accounts.Checking.RoutingNumber)
	}
	if !u.Accounts.Checking.Balance.IsZero() || len(u.Accounts.Checking.Transactions) != 0 {
		t.Error("expected empty checking account")
	}
	if u.Email != "ada@example.com" {
		t.Errorf("expected normalized email, got %q", u.Email)
	}
	if u.Status != domain.UserActive {
		t.Errorf("expected active status, got %q", u.Status)
	}
	if len(u.SpendingCategories) != len(domain.DefaultSpendingCategories) {
		t.Errorf("expected default spending categories, got %v", u.SpendingCategories)
	}
	if !u.Budget.MonthlyLimit.Equal(domain.DefaultMonthlyLimit) {
		t.Errorf("expected default monthly limit, got %s", u.Budget.MonthlyLimit)
	}
}

func TestNewUser_RerollsCollidingSavingsNumber(t *testing.T) {
	seq := []string{"1000000001", "1000000001", "1000000002"}
	i := 0
	p := ledger.NewProvisioner("").WithNumbers(func() string {
		n := seq[i]
		i++
		return n
	})

	u := p.NewUser("Ada", "ada@example.com", "ada", "hash")
	if u.Accounts.Checking.AccountNumber != "1000000001" || u.Accounts.Savings.AccountNumber != "1000000002" {
		t.Errorf("unexpected numbers: %s / %s", u.Accounts.Checking.AccountNumber, u.Accounts.Savings.AccountNumber)
	}
}

func TestEnsureShape_HealsLegacyDocument(t *testing.T) {
	p := ledger.NewProvisioner("")
	u := &domain.User{
		ID:   "legacy",
		Name: "Legacy",
		Accounts: domain.Accounts{
			Checking: &domain.Account{AccountNumber: "1234567890"},
		},
	}

	if !p.EnsureShape(u) {
		t.Fatal("expected EnsureShape to report a change")
	}
	if u.Accounts.Checking.Transactions == nil {
		t.Error("expected checking history to be initialized")
	}
	if u.Accounts.Checking.RoutingNumber != domain.DefaultRoutingNumber {
		t.Errorf("expected routing number, got %q", u.Accounts.Checking.RoutingNumber)
	}
	if u.Accounts.Checking.AccountNumber != "1234567890" {
		t.Error("existing account number must be kept")
	}
	if u.Accounts.Savings == nil || u.Accounts.Savings.AccountNumber == "" {
		t.Error("expected savings to be provisioned with a number")
	}
	if u.Accounts.Bitcoin == nil || !u.Accounts.Bitcoin.Balance.IsZero() {
		t.Error("expected a zero-balance bitcoin account")
	}
	if u.Status != domain.UserActive {
		t.Errorf("expected active status, got %q", u.Status)
	}
	if u.PendingTransfers == nil || u.Notifications == nil || u.SpendingCategories == nil {
		t.Error("expected collections to be initialized")
	}
}

func TestEnsureShape_Idempotent(t *testing.T) {
	p := ledger.NewProvisioner("").WithClock(func() time.Time {
		return time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	})
	u := &domain.User{ID: "x"}

	p.EnsureShape(u)
	before := u.Clone()

	if p.EnsureShape(u) {
		t.Fatal("second EnsureShape should report no change")
	}
	if u.Accounts.Checking.AccountNumber != before.Accounts.Checking.AccountNumber ||
		u.Accounts.Savings.AccountNumber != before.Accounts.Savings.AccountNumber {
		t.Error("second EnsureShape changed account numbers")
	}
	if u.Budget.CurrentMonth.Month != 3 || u.Budget.CurrentMonth.Year != 2026 {
		t.Errorf("unexpected budget month: %+v", u.Budget.CurrentMonth)
	}
}

func TestEnsureShape_CompleteUserUnchanged(t *testing.T) {
	p := ledger.NewProvisioner("")
	u := p.NewUser("Ada", "ada@example.com", "ada", "hash")
	p.EnsureShape(u) // adds bitcoin

	if p.EnsureShape(u) {
		t.Error("fully provisioned user should not change")
	}
}

func TestRenumberAccounts(t *testing.T) {
	n := 0
	p := ledger.NewProvisioner("").WithNumbers(func() string {
		n++
		return "10000000" + string(rune('0'+n/10)) + string(rune('0'+n%10))
	})
	u := p.NewUser("Ada", "ada@example.com", "ada", "hash")
	oldChecking := u.Accounts.Checking.AccountNumber

	p.RenumberAccounts(u)
	if u.Accounts.Checking.AccountNumber == oldChecking {
		t.Error("expected a new checking number")
	}
	if u.Accounts.Checking.AccountNumber == u.Accounts.Savings.AccountNumber {
		t.Error("renumbered accounts collide")
	}
}
