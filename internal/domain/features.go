package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Savings goals
// ============================================================

// Savings goal states.
const (
	GoalActive    = "active"
	GoalCompleted = "completed"
	GoalCancelled = "cancelled"
)

// SavingsGoal tracks progress toward a target amount. It is bookkeeping only;
// it never moves money between accounts.
type SavingsGoal struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	TargetAmount  decimal.Decimal `json:"targetAmount"`
	CurrentAmount decimal.Decimal `json:"currentAmount"`
	TargetDate    time.Time       `json:"targetDate"`
	CreatedAt     time.Time       `json:"createdDate"`
	Status        string          `json:"status"`
	Color         string          `json:"color"`
	Icon          string          `json:"icon"`
}

// ============================================================
// Budget & spending
// ============================================================

// DefaultMonthlyLimit is the budget limit given to new users.
var DefaultMonthlyLimit = decimal.NewFromInt(3000)

// DefaultSpendingCategories seeds the per-user analytics map.
var DefaultSpendingCategories = []string{
	"Shopping", "Bills", "Food & Dining", "Entertainment",
	"Transportation", "Healthcare", "Education", "Other",
}

// BudgetCategory is one line of a monthly budget.
type BudgetCategory struct {
	Name      string          `json:"name"`
	Allocated decimal.Decimal `json:"allocated"`
	Spent     decimal.Decimal `json:"spent"`
	Color     string          `json:"color,omitempty"`
}

// BudgetMonth accumulates spending for the current calendar month.
type BudgetMonth struct {
	Month      int             `json:"month"`
	Year       int             `json:"year"`
	TotalSpent decimal.Decimal `json:"totalSpent"`
}

// Budget is the user's monthly spending plan.
type Budget struct {
	MonthlyLimit decimal.Decimal  `json:"monthlyLimit"`
	Categories   []BudgetCategory `json:"categories"`
	CurrentMonth BudgetMonth      `json:"currentMonth"`
}

// ============================================================
// Notifications
// ============================================================

// MaxNotifications caps the notifications kept on a user; older ones are dropped.
const MaxNotifications = 50

// Notification levels.
const (
	NotifyInfo    = "info"
	NotifySuccess = "success"
	NotifyWarning = "warning"
	NotifyError   = "error"
)

// Notification is an in-app message shown on the dashboard.
type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	Read      bool      `json:"read"`
	Timestamp time.Time `json:"timestamp"`
	ActionURL string    `json:"actionUrl,omitempty"`
}

// ============================================================
// Analytics
// ============================================================

// Analytics is returned by GET /v1/users/{userId}/analytics.
type Analytics struct {
	TotalBalance       decimal.Decimal            `json:"totalBalance"`
	AccountAgeDays     int                        `json:"accountAge"`
	SpendingByCategory map[string]decimal.Decimal `json:"spendingByCategory"`
	MonthlySpending    decimal.Decimal            `json:"monthlySpending"`
	MonthlyLimit       decimal.Decimal            `json:"monthlyLimit"`
	SavingsProgress    decimal.Decimal            `json:"savingsProgress"`
	BitcoinValue       decimal.Decimal            `json:"bitcoinValue"`
}

// LedgerMetrics is returned by GET /v1/metrics/ledger.
type LedgerMetrics struct {
	EntriesByKind    map[string]float64 `json:"entriesByKind"`
	FailuresByReason map[string]float64 `json:"failuresByReason"`
	FeedCacheHitRate float64            `json:"feedCacheHitRate"`
	StoreErrors      float64            `json:"storeErrors"`
	Period           string             `json:"period"`
}
