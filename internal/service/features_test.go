package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/hecu-bank-go/internal/domain"
	"github.com/boddenberg/hecu-bank-go/internal/ledger"

	"github.com/shopspring/decimal"
)

func TestSavingsGoals(t *testing.T) {
	f := newFixture(t)
	u := f.newUser(t, "ada", "")
	ctx := context.Background()

	goal, err := f.bank.CreateSavingsGoal(ctx, u.ID, &domain.SavingsGoalRequest{
		Name: "Vacation", TargetAmount: "2000", TargetDate: "2026-12-01",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if goal.Status != domain.GoalActive || !goal.CurrentAmount.IsZero() || goal.Icon == "" {
		t.Errorf("unexpected goal: %+v", goal)
	}

	half, err := f.bank.UpdateSavingsGoal(ctx, u.ID, goal.ID, &domain.SavingsGoalUpdate{CurrentAmount: "1000"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if half.Status != domain.GoalActive {
		t.Errorf("expected active, got %s", half.Status)
	}

	analytics, err := f.bank.GetAnalytics(ctx, u.ID)
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	if !analytics.SavingsProgress.Equal(dec("50")) {
		t.Errorf("expected 50%% progress, got %s", analytics.SavingsProgress)
	}

	done, err := f.bank.UpdateSavingsGoal(ctx, u.ID, goal.ID, &domain.SavingsGoalUpdate{CurrentAmount: "2500"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if done.Status != domain.GoalCompleted {
		t.Errorf("expected completed, got %s", done.Status)
	}

	_, err = f.bank.UpdateSavingsGoal(ctx, u.ID, "missing", &domain.SavingsGoalUpdate{CurrentAmount: "1"})
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	// goals are bookkeeping only
	got := f.load(t, u.ID)
	assertBalance(t, got.Accounts.Savings, "0")
}

func TestCreateSavingsGoal_Validation(t *testing.T) {
	f := newFixture(t)
	u := f.newUser(t, "ada", "")
	ctx := context.Background()

	_, err := f.bank.CreateSavingsGoal(ctx, u.ID, &domain.SavingsGoalRequest{Name: "Car", TargetAmount: "0", TargetDate: "2027-01-01"})
	var invalid *domain.ErrInvalidAmount
	if !errors.As(err, &invalid) {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}

	_, err = f.bank.CreateSavingsGoal(ctx, u.ID, &domain.SavingsGoalRequest{Name: "Car", TargetAmount: "10", TargetDate: "soon"})
	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestBudget_UpdateAndGet(t *testing.T) {
	f := newFixture(t)
	u := f.newUser(t, "ada", "500")
	ctx := context.Background()

	view, err := f.bank.UpdateBudget(ctx, u.ID, &domain.BudgetUpdate{
		MonthlyLimit: "2500",
		Categories:   []domain.BudgetCategory{{Name: "Bills", Allocated: dec("800")}},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !view.Budget.MonthlyLimit.Equal(dec("2500")) || len(view.Budget.Categories) != 1 {
		t.Errorf("unexpected budget: %+v", view.Budget)
	}

	if _, err := f.bank.BillPay(ctx, u.ID, &domain.BillPayRequest{Payee: "Verizon", Amount: "80"}); err != nil {
		t.Fatalf("bill pay: %v", err)
	}
	// replacing categories keeps spending already booked under the same name
	if _, err := f.bank.UpdateBudget(ctx, u.ID, &domain.BudgetUpdate{
		Categories: []domain.BudgetCategory{{Name: "Bills", Allocated: dec("900")}, {Name: "Food & Dining", Allocated: dec("400")}},
	}); err != nil {
		t.Fatalf("second update: %v", err)
	}

	got, err := f.bank.GetBudget(ctx, u.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Budget.Categories[0].Spent.Equal(dec("80")) {
		t.Errorf("expected Bills spent 80, got %s", got.Budget.Categories[0].Spent)
	}
	if !got.SpendingCategories["Bills"].Equal(dec("80")) {
		t.Errorf("expected Bills spending 80, got %s", got.SpendingCategories["Bills"])
	}

	_, err = f.bank.UpdateBudget(ctx, u.ID, &domain.BudgetUpdate{})
	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Errorf("expected ErrValidation on empty update, got %v", err)
	}
}

func TestGetAnalytics_ValuesBitcoinAtConfiguredPrice(t *testing.T) {
	f := newFixture(t)
	u := f.newUser(t, "ada", "1000")
	ctx := context.Background()

	if _, err := f.bank.BuyBitcoin(ctx, u.ID, &domain.BitcoinBuyRequest{USDAmount: "100", BTCAmount: "0.01"}); err != nil {
		t.Fatalf("buy: %v", err)
	}

	a, err := f.bank.GetAnalytics(ctx, u.ID)
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	// 900 checking + 0.01 BTC at 50000
	if !a.BitcoinValue.Equal(dec("500")) || !a.TotalBalance.Equal(dec("1400")) {
		t.Errorf("unexpected analytics: total=%s btc=%s", a.TotalBalance, a.BitcoinValue)
	}
	if !a.SavingsProgress.IsZero() {
		t.Errorf("expected zero progress without goals, got %s", a.SavingsProgress)
	}
}

func TestGenerateActivity_KeepsLedgerConsistent(t *testing.T) {
	f := newFixture(t)
	u := f.newUser(t, "ada", "200")

	res, err := f.bank.GenerateActivity(context.Background(), u.ID, &domain.GenerateActivityRequest{Count: 40, Months: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Generated+res.Skipped != 40 {
		t.Errorf("expected 40 attempts, got %d generated + %d skipped", res.Generated, res.Skipped)
	}

	got := f.load(t, u.ID)
	if err := ledger.Replay(got.Accounts.Checking); err != nil {
		t.Fatalf("history does not replay: %v", err)
	}
	if got.Accounts.Checking.Balance.IsNegative() {
		t.Errorf("generated activity overdrew checking: %s", got.Accounts.Checking.Balance)
	}
	if !got.Accounts.Checking.Balance.Equal(res.NewBalance) {
		t.Errorf("reported balance %s, stored %s", res.NewBalance, got.Accounts.Checking.Balance)
	}

	_, err = f.bank.GenerateActivity(context.Background(), u.ID, &domain.GenerateActivityRequest{Count: 0})
	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestUpdateBudget_RejectsOutOfRangeAllocation(t *testing.T) {
	f := newFixture(t)
	u := f.newUser(t, "ada", "")

	for _, allocated := range []decimal.Decimal{decimal.New(1, -400000000), decimal.New(1, 400000000)} {
		_, err := f.bank.UpdateBudget(context.Background(), u.ID, &domain.BudgetUpdate{
			Categories: []domain.BudgetCategory{{Name: "Bills", Allocated: allocated}},
		})
		var invalid *domain.ErrInvalidAmount
		if !errors.As(err, &invalid) {
			t.Errorf("allocated exponent %d: expected ErrInvalidAmount, got %v", allocated.Exponent(), err)
		}
	}
}

func TestGenerateActivity_StaysAfterExistingHistory(t *testing.T) {
	f := newFixture(t)
	u := f.bank.Provisioner().NewUser("ada", "ada@example.com", "ada", "hash")
	funded := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	if _, _, err := ledger.Apply(u, ledger.Entry{
		Account: domain.AccountChecking, Kind: domain.KindCredit, Amount: dec("5000"), Description: "Payroll", At: funded,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := f.store.Create(context.Background(), u); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := f.bank.GenerateActivity(context.Background(), u.ID, &domain.GenerateActivityRequest{Count: 40, Months: 3}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := f.load(t, u.ID)
	history := got.Accounts.Checking.Transactions
	for i := 1; i < len(history); i++ {
		if history[i].Timestamp.Before(history[i-1].Timestamp) {
			t.Fatalf("record %d (%s) stamped before record %d (%s)", i, history[i].Timestamp, i-1, history[i-1].Timestamp)
		}
	}

	// only debits dated in the current budget month count against it
	month := got.Budget.CurrentMonth
	spentThisMonth, spentTotal := decimal.Zero, decimal.Zero
	for _, rec := range history[1:] {
		if !rec.Amount.IsNegative() {
			continue
		}
		spentTotal = spentTotal.Add(rec.Amount.Abs())
		if int(rec.Timestamp.Month()) == month.Month && rec.Timestamp.Year() == month.Year {
			spentThisMonth = spentThisMonth.Add(rec.Amount.Abs())
		}
	}
	if month.Month != 3 || month.Year != 2026 {
		t.Fatalf("unexpected budget month %d/%d", month.Month, month.Year)
	}
	if !month.TotalSpent.Equal(spentThisMonth) {
		t.Errorf("budget month spent %s, debits dated this month %s", month.TotalSpent, spentThisMonth)
	}
	if !got.TotalWithdrawals.Equal(spentTotal) {
		t.Errorf("total withdrawals %s, generated debits %s", got.TotalWithdrawals, spentTotal)
	}
}
