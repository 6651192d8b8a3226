package ledger

import (
	"crypto/rand"
	"math/big"
	"strings"
	"time"

	"github.com/boddenberg/hecu-bank-go/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account numbers are 10 digits drawn uniformly from [minAccountNumber, maxAccountNumber].
const (
	minAccountNumber = 1_000_000_000
	maxAccountNumber = 9_999_999_999
)

// Provisioner creates accounts and repairs partially-initialized aggregates.
type Provisioner struct {
	routing string
	numbers func() string
	now     func() time.Time
}

// Default is used when Apply meets a missing slot on an aggregate that was
// never passed through a service-level provisioner.
var Default = NewProvisioner(domain.DefaultRoutingNumber)

// NewProvisioner returns a provisioner that stamps routing on every account.
func NewProvisioner(routing string) *Provisioner {
	if routing == "" {
		routing = domain.DefaultRoutingNumber
	}
	return &Provisioner{routing: routing, numbers: RandomAccountNumber, now: time.Now}
}

// WithNumbers swaps the account-number source. Tests use it to force collisions.
func (p *Provisioner) WithNumbers(fn func() string) *Provisioner {
	c := *p
	c.numbers = fn
	return &c
}

// WithClock swaps the clock used for budget months and creation times.
func (p *Provisioner) WithClock(fn func() time.Time) *Provisioner {
	c := *p
	c.now = fn
	return &c
}

// RandomAccountNumber draws a 10-digit account number. Uniqueness is not
// coordinated; stores reject collisions and callers retry.
func RandomAccountNumber() string {
	span := big.NewInt(maxAccountNumber - minAccountNumber + 1)
	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		panic("ledger: crypto/rand failed: " + err.Error())
	}
	return n.Add(n, big.NewInt(minAccountNumber)).String()
}

// NewUser builds a fresh aggregate with checking and savings accounts.
// The bitcoin account is created lazily by the first operation that needs it.
func (p *Provisioner) NewUser(name, email, username, passwordHash string) *domain.User {
	now := p.now().UTC()
	u := &domain.User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        strings.ToLower(strings.TrimSpace(email)),
		Username:     strings.TrimSpace(username),
		PasswordHash: passwordHash,
		Status:       domain.UserActive,
		CreatedAt:    now,
		UpdatedAt:    now,
		LastLogin:    now,
	}
	u.Accounts.Checking = p.newBankAccount()
	u.Accounts.Savings = p.newBankAccount()
	p.ensureDistinct(u)
	p.ensureCollections(u)
	return u
}

// RenumberAccounts gives checking and savings fresh numbers. Used after the
// store reports an account-number collision on create.
func (p *Provisioner) RenumberAccounts(u *domain.User) {
	if u.Accounts.Checking != nil {
		u.Accounts.Checking.AccountNumber = p.numbers()
	}
	if u.Accounts.Savings != nil {
		u.Accounts.Savings.AccountNumber = p.numbers()
	}
	p.ensureDistinct(u)
}

// EnsureShape heals missing slots, nil histories, missing identifiers and
// nil collections. It reports whether anything changed and is idempotent.
func (p *Provisioner) EnsureShape(u *domain.User) bool {
	changed := false
	for _, t := range domain.AccountTypes {
		if p.ensureAccount(u, t) {
			changed = true
		}
	}
	if p.ensureDistinct(u) {
		changed = true
	}
	if p.ensureCollections(u) {
		changed = true
	}
	return changed
}

// EnsureAccount returns the slot named t, provisioning it with the default
// provisioner when missing.
func EnsureAccount(u *domain.User, t domain.AccountType) (*domain.Account, error) {
	if _, err := domain.ParseAccountType(string(t)); err != nil {
		return nil, err
	}
	Default.ensureAccount(u, t)
	return u.Slot(t), nil
}

func (p *Provisioner) newBankAccount() *domain.Account {
	return &domain.Account{
		AccountNumber: p.numbers(),
		RoutingNumber: p.routing,
		Balance:       decimal.Zero,
		Transactions:  []domain.TransactionRecord{},
	}
}

func (p *Provisioner) ensureAccount(u *domain.User, t domain.AccountType) bool {
	acct := u.Slot(t)
	if acct == nil {
		if t == domain.AccountBitcoin {
			u.SetSlot(t, &domain.Account{Balance: decimal.Zero, Transactions: []domain.TransactionRecord{}})
		} else {
			u.SetSlot(t, p.newBankAccount())
		}
		return true
	}

	changed := false
	if acct.Transactions == nil {
		acct.Transactions = []domain.TransactionRecord{}
		changed = true
	}
	if t == domain.AccountBitcoin {
		return changed
	}
	if acct.AccountNumber == "" {
		acct.AccountNumber = p.numbers()
		changed = true
	}
	if acct.RoutingNumber == "" {
		acct.RoutingNumber = p.routing
		changed = true
	}
	return changed
}

// ensureDistinct keeps checking and savings from sharing a number.
func (p *Provisioner) ensureDistinct(u *domain.User) bool {
	c, s := u.Accounts.Checking, u.Accounts.Savings
	if c == nil || s == nil {
		return false
	}
	changed := false
	for c.AccountNumber == s.AccountNumber {
		s.AccountNumber = p.numbers()
		changed = true
	}
	return changed
}

func (p *Provisioner) ensureCollections(u *domain.User) bool {
	changed := false
	if u.Status == "" {
		u.Status = domain.UserActive
		changed = true
	}
	if u.ExternalAccounts == nil {
		u.ExternalAccounts = []domain.ExternalAccount{}
		changed = true
	}
	if u.PendingTransfers == nil {
		u.PendingTransfers = []domain.PendingTransfer{}
		changed = true
	}
	if u.SavingsGoals == nil {
		u.SavingsGoals = []domain.SavingsGoal{}
		changed = true
	}
	if u.Notifications == nil {
		u.Notifications = []domain.Notification{}
		changed = true
	}
	if u.SpendingCategories == nil {
		u.SpendingCategories = make(map[string]decimal.Decimal, len(domain.DefaultSpendingCategories))
		for _, c := range domain.DefaultSpendingCategories {
			u.SpendingCategories[c] = decimal.Zero
		}
		changed = true
	}
	if u.Budget.Categories == nil {
		u.Budget.Categories = []domain.BudgetCategory{}
		changed = true
	}
	if u.Budget.CurrentMonth.Month == 0 {
		now := p.now()
		u.Budget.MonthlyLimit = domain.DefaultMonthlyLimit
		u.Budget.CurrentMonth = domain.BudgetMonth{Month: int(now.Month()), Year: now.Year(), TotalSpent: decimal.Zero}
		changed = true
	}
	return changed
}
