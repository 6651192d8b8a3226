package service

import (
	"time"

	"github.com/boddenberg/hecu-bank-go/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Bookkeeping that rides along with a ledger mutation. None of it touches
// balances; it feeds the dashboard's analytics, budget and notification panels.

// rollBudgetMonth starts a new budget period when the calendar month changed
// since the last mutation.
func (t *txn) rollBudgetMonth() {
	cur := &t.user.Budget.CurrentMonth
	if cur.Month == int(t.at.Month()) && cur.Year == t.at.Year() {
		return
	}
	cur.Month = int(t.at.Month())
	cur.Year = t.at.Year()
	cur.TotalSpent = decimal.Zero
	for i := range t.user.Budget.Categories {
		t.user.Budget.Categories[i].Spent = decimal.Zero
	}
}

// spend records an outgoing payment against the spending analytics and the
// current budget month.
func (t *txn) spend(category string, amount decimal.Decimal) {
	t.spendAt(category, amount, t.at)
}

// spendAt is spend for a payment dated at. Only payments inside the current
// budget month count against the budget; the all-time analytics always do.
func (t *txn) spendAt(category string, amount decimal.Decimal, at time.Time) {
	u := t.user
	amount = amount.Abs()
	if category == "" {
		category = domain.DefaultCategory
	}
	u.SpendingCategories[category] = u.SpendingCategories[category].Add(amount)
	u.TotalWithdrawals = u.TotalWithdrawals.Add(amount)

	cur := &u.Budget.CurrentMonth
	if cur.Month != int(at.Month()) || cur.Year != at.Year() {
		return
	}
	u.Budget.CurrentMonth.TotalSpent = u.Budget.CurrentMonth.TotalSpent.Add(amount)
	for i := range u.Budget.Categories {
		if u.Budget.Categories[i].Name == category {
			u.Budget.Categories[i].Spent = u.Budget.Categories[i].Spent.Add(amount)
		}
	}
}

// deposit records money coming in from outside the bank.
func (t *txn) deposit(amount decimal.Decimal) {
	t.user.TotalDeposits = t.user.TotalDeposits.Add(amount.Abs())
}

// notify appends a notification, keeping only the newest MaxNotifications.
func (t *txn) notify(kind, title, message string) {
	u := t.user
	u.Notifications = append(u.Notifications, domain.Notification{
		ID:        uuid.New().String(),
		Title:     title,
		Message:   message,
		Type:      kind,
		Timestamp: t.at,
	})
	if n := len(u.Notifications); n > domain.MaxNotifications {
		u.Notifications = append([]domain.Notification(nil), u.Notifications[n-domain.MaxNotifications:]...)
	}
}

func usd(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}
