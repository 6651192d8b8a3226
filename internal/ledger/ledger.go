// Package ledger is the only code allowed to change an account balance or
// append to its history. Callers compose Apply calls and persist the
// aggregate themselves; nothing here touches storage.
package ledger

import (
	"fmt"
	"time"

	"github.com/boddenberg/hecu-bank-go/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Entry describes one balance change.
type Entry struct {
	Account     domain.AccountType
	Kind        domain.Kind
	Amount      decimal.Decimal // signed; negative debits
	Description string
	Memo        string
	Category    string
	Status      string
	Reference   string
	At          time.Time

	// AllowOverdraft skips the funds check. Only the single-user admin
	// adjustment sets it.
	AllowOverdraft bool
}

// Apply debits or credits the slot named by e.Account and appends the
// matching record. A missing slot is provisioned first and stays
// provisioned even when the entry is then rejected; on error the balance
// and history are untouched.
func Apply(u *domain.User, e Entry) (decimal.Decimal, domain.TransactionRecord, error) {
	if !e.Kind.Valid() {
		return decimal.Zero, domain.TransactionRecord{}, fmt.Errorf("ledger: unknown entry kind %q", e.Kind)
	}
	acct, err := EnsureAccount(u, e.Account)
	if err != nil {
		return decimal.Zero, domain.TransactionRecord{}, err
	}

	if e.Amount.IsNegative() && !e.AllowOverdraft && e.Amount.Abs().GreaterThan(acct.Balance) {
		return acct.Balance, domain.TransactionRecord{}, &domain.ErrInsufficientFunds{
			Account:   e.Account,
			Available: acct.Balance,
			Required:  e.Amount.Abs(),
		}
	}

	at := e.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	memo := e.Memo
	if memo == "" {
		memo = e.Description
	}
	category := e.Category
	if category == "" {
		category = domain.DefaultCategory
	}

	newBalance := acct.Balance.Add(e.Amount)
	rec := domain.TransactionRecord{
		ID:           uuid.New().String(),
		Timestamp:    at,
		Kind:         e.Kind,
		Amount:       e.Amount,
		Description:  e.Description,
		Memo:         memo,
		BalanceAfter: newBalance,
		Category:     category,
		Account:      e.Account,
		Status:       e.Status,
		Reference:    e.Reference,
	}

	acct.Transactions = append(acct.Transactions, rec)
	acct.Balance = newBalance
	return newBalance, rec, nil
}

// Replay checks that the history reproduces every BalanceAfter and the
// stored balance, starting from zero.
func Replay(acct *domain.Account) error {
	if acct == nil {
		return nil
	}
	running := decimal.Zero
	for i, rec := range acct.Transactions {
		running = running.Add(rec.Amount)
		if !running.Equal(rec.BalanceAfter) {
			return fmt.Errorf("record %d (%s): balanceAfter %s, replay gives %s", i, rec.ID, rec.BalanceAfter, running)
		}
	}
	if !running.Equal(acct.Balance) {
		return fmt.Errorf("balance %s, replay gives %s", acct.Balance, running)
	}
	return nil
}
