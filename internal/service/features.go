package service

import (
	"context"
	"strings"
	"time"

	"github.com/boddenberg/hecu-bank-go/internal/domain"
	"github.com/boddenberg/hecu-bank-go/internal/ledger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

const (
	opCreateGoal       = "create_savings_goal"
	opUpdateGoal       = "update_savings_goal"
	opUpdateBudget     = "update_budget"
	opMarkNotification = "mark_notification_read"
)

const (
	defaultGoalColor = "#3b82f6"
	defaultGoalIcon  = "piggy-bank"
)

var hundred = decimal.NewFromInt(100)

// ============================================================
// Savings goals
// ============================================================

// CreateSavingsGoal adds a goal with zero progress.
func (s *BankingService) CreateSavingsGoal(ctx context.Context, userID string, req *domain.SavingsGoalRequest) (*domain.SavingsGoal, error) {
	ctx, span := bankTracer.Start(ctx, "BankingService.CreateSavingsGoal")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	var goal domain.SavingsGoal
	_, err := s.mutate(ctx, opCreateGoal, userID, false, func(t *txn) error {
		if err := required("name", req.Name); err != nil {
			return err
		}
		target, err := ledger.ParsePositiveAmount(req.TargetAmount, "targetAmount")
		if err != nil {
			return err
		}
		due, err := parseDate(req.TargetDate)
		if err != nil {
			return &domain.ErrValidation{Field: "targetDate", Message: "expected YYYY-MM-DD"}
		}

		goal = domain.SavingsGoal{
			ID:            uuid.New().String(),
			Name:          strings.TrimSpace(req.Name),
			TargetAmount:  target,
			CurrentAmount: decimal.Zero,
			TargetDate:    due,
			CreatedAt:     t.at,
			Status:        domain.GoalActive,
			Color:         orDefault(req.Color, defaultGoalColor),
			Icon:          orDefault(req.Icon, defaultGoalIcon),
		}
		t.user.SavingsGoals = append(t.user.SavingsGoals, goal)
		t.notify(domain.NotifyInfo, "Savings Goal Created", "You started saving for "+goal.Name)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &goal, nil
}

// UpdateSavingsGoal sets a goal's progress. Reaching the target completes it.
func (s *BankingService) UpdateSavingsGoal(ctx context.Context, userID, goalID string, req *domain.SavingsGoalUpdate) (*domain.SavingsGoal, error) {
	ctx, span := bankTracer.Start(ctx, "BankingService.UpdateSavingsGoal")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID), attribute.String("goal.id", goalID))

	var goal domain.SavingsGoal
	_, err := s.mutate(ctx, opUpdateGoal, userID, false, func(t *txn) error {
		var g *domain.SavingsGoal
		for i := range t.user.SavingsGoals {
			if t.user.SavingsGoals[i].ID == goalID {
				g = &t.user.SavingsGoals[i]
				break
			}
		}
		if g == nil {
			return &domain.ErrNotFound{Resource: "savings goal", ID: goalID}
		}
		current, err := ledger.ParseAmount(req.CurrentAmount, "currentAmount")
		if err != nil {
			return err
		}
		if current.IsNegative() {
			return &domain.ErrInvalidAmount{Field: "currentAmount", Reason: "must not be negative"}
		}

		wasComplete := g.Status == domain.GoalCompleted
		g.CurrentAmount = current
		if current.GreaterThanOrEqual(g.TargetAmount) {
			g.Status = domain.GoalCompleted
		} else {
			g.Status = domain.GoalActive
		}
		if g.Status == domain.GoalCompleted && !wasComplete {
			t.notify(domain.NotifySuccess, "Goal Reached", "You reached your savings goal: "+g.Name)
		}
		goal = *g
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &goal, nil
}

// ============================================================
// Budget
// ============================================================

// GetBudget returns the budget and spending analytics. A budget month that
// has ended reads as empty until the next mutation rolls it over.
func (s *BankingService) GetBudget(ctx context.Context, userID string) (*domain.BudgetView, error) {
	ctx, span := bankTracer.Start(ctx, "BankingService.GetBudget")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	u, err := s.loadView(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &domain.BudgetView{Budget: u.Budget, SpendingCategories: u.SpendingCategories}, nil
}

// UpdateBudget replaces the monthly limit and/or the category plan. Spending
// already booked against a category of the same name is kept.
func (s *BankingService) UpdateBudget(ctx context.Context, userID string, req *domain.BudgetUpdate) (*domain.BudgetView, error) {
	ctx, span := bankTracer.Start(ctx, "BankingService.UpdateBudget")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	u, err := s.mutate(ctx, opUpdateBudget, userID, false, func(t *txn) error {
		if req.MonthlyLimit == "" && req.Categories == nil {
			return &domain.ErrValidation{Field: "body", Message: "nothing to update"}
		}
		b := &t.user.Budget
		if req.MonthlyLimit != "" {
			limit, err := ledger.ParsePositiveAmount(req.MonthlyLimit, "monthlyLimit")
			if err != nil {
				return err
			}
			b.MonthlyLimit = limit
		}
		if req.Categories != nil {
			spent := make(map[string]decimal.Decimal, len(b.Categories))
			for _, c := range b.Categories {
				spent[c.Name] = c.Spent
			}
			cats := make([]domain.BudgetCategory, 0, len(req.Categories))
			for _, c := range req.Categories {
				if err := required("categories.name", c.Name); err != nil {
					return err
				}
				if err := ledger.CheckRange(c.Allocated, "categories.allocated"); err != nil {
					return err
				}
				if c.Allocated.IsNegative() {
					return &domain.ErrInvalidAmount{Field: "categories.allocated", Reason: "must not be negative"}
				}
				c.Spent = spent[c.Name]
				cats = append(cats, c)
			}
			b.Categories = cats
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &domain.BudgetView{Budget: u.Budget, SpendingCategories: u.SpendingCategories}, nil
}

// ============================================================
// Analytics: GET /v1/users/{userId}/analytics
// ============================================================

// GetAnalytics summarizes balances and spending. Bitcoin is valued at the
// configured price; there is no live quote.
func (s *BankingService) GetAnalytics(ctx context.Context, userID string) (*domain.Analytics, error) {
	ctx, span := bankTracer.Start(ctx, "BankingService.GetAnalytics")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	u, err := s.loadView(ctx, userID)
	if err != nil {
		return nil, err
	}

	btcValue := u.Accounts.Bitcoin.Balance.Mul(s.btcPrice).Round(2)
	total := u.Accounts.Checking.Balance.Add(u.Accounts.Savings.Balance).Add(btcValue)

	progress := decimal.Zero
	counted := 0
	for _, g := range u.SavingsGoals {
		if g.Status == domain.GoalCancelled || !g.TargetAmount.IsPositive() {
			continue
		}
		pct := g.CurrentAmount.Div(g.TargetAmount).Mul(hundred)
		if pct.GreaterThan(hundred) {
			pct = hundred
		}
		progress = progress.Add(pct)
		counted++
	}
	if counted > 0 {
		progress = progress.Div(decimal.NewFromInt(int64(counted))).Round(2)
	}

	age := 0
	if !u.CreatedAt.IsZero() {
		age = int(s.now().Sub(u.CreatedAt) / (24 * time.Hour))
	}

	return &domain.Analytics{
		TotalBalance:       total,
		AccountAgeDays:     age,
		SpendingByCategory: u.SpendingCategories,
		MonthlySpending:    u.Budget.CurrentMonth.TotalSpent,
		MonthlyLimit:       u.Budget.MonthlyLimit,
		SavingsProgress:    progress,
		BitcoinValue:       btcValue,
	}, nil
}

// ============================================================
// Notifications
// ============================================================

// ListNotifications returns the user's notifications, newest first.
func (s *BankingService) ListNotifications(ctx context.Context, userID string) ([]domain.Notification, error) {
	ctx, span := bankTracer.Start(ctx, "BankingService.ListNotifications")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	u, err := s.store.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Notification, 0, len(u.Notifications))
	for i := len(u.Notifications) - 1; i >= 0; i-- {
		out = append(out, u.Notifications[i])
	}
	return out, nil
}

// MarkNotificationRead flags one notification as read.
func (s *BankingService) MarkNotificationRead(ctx context.Context, userID, notificationID string) (*domain.Notification, error) {
	ctx, span := bankTracer.Start(ctx, "BankingService.MarkNotificationRead")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID), attribute.String("notification.id", notificationID))

	var n domain.Notification
	_, err := s.mutate(ctx, opMarkNotification, userID, false, func(t *txn) error {
		for i := range t.user.Notifications {
			if t.user.Notifications[i].ID == notificationID {
				t.user.Notifications[i].Read = true
				n = t.user.Notifications[i]
				return nil
			}
		}
		return &domain.ErrNotFound{Resource: "notification", ID: notificationID}
	})
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// ============================================================
// Helpers
// ============================================================

// loadView loads a user for display: healed and with the budget month
// rolled forward, but not saved.
func (s *BankingService) loadView(ctx context.Context, userID string) (*domain.User, error) {
	u, err := s.store.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.provisioner.EnsureShape(u)
	(&txn{user: u, at: s.now().UTC()}).rollBudgetMonth()
	return u, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
