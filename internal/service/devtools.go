package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"time"

	"github.com/boddenberg/hecu-bank-go/internal/domain"
	"github.com/boddenberg/hecu-bank-go/internal/ledger"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const opGenerateActivity = "generate_activity"

// ============================================================
// Dev Tools
// ============================================================

type activityTemplate struct {
	kind     domain.Kind
	debit    bool
	descs    []string
	category string
}

var activityTemplates = []activityTemplate{
	{domain.KindCredit, false, []string{"Payroll deposit - Acme Corp", "Refund - Online order", "Interest payment"}, "Income"},
	{domain.KindMobileDeposit, false, []string{"Mobile check deposit"}, categoryDeposit},
	{domain.KindDebit, true, []string{"Whole Foods Market", "Trader Joe's", "Corner Deli"}, "Food & Dining"},
	{domain.KindDebit, true, []string{"Shell Gas Station", "Metro Transit", "Uber"}, "Transportation"},
	{domain.KindDebit, true, []string{"Amazon.com", "Target", "Best Buy"}, "Shopping"},
	{domain.KindDebit, true, []string{"Netflix", "AMC Theatres", "Spotify"}, "Entertainment"},
	{domain.KindBillPay, true, []string{"Payment to Con Edison", "Payment to Verizon", "Payment to Comcast"}, categoryBills},
	{domain.KindDebit, true, []string{"CVS Pharmacy", "City Dental"}, "Healthcare"},
}

// GenerateActivity books Count random entries on the user's checking
// account, back-dated across the last Months months but never before the
// account's newest record, so the history stays in time order. Every entry
// goes through the ledger, so debits that would overdraw are skipped.
func (s *BankingService) GenerateActivity(ctx context.Context, userID string, req *domain.GenerateActivityRequest) (*domain.GenerateActivityResult, error) {
	ctx, span := bankTracer.Start(ctx, "BankingService.GenerateActivity")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID), attribute.Int("count", req.Count))

	res := &domain.GenerateActivityResult{Income: decimal.Zero, Expenses: decimal.Zero}
	_, err := s.mutate(ctx, opGenerateActivity, userID, true, func(t *txn) error {
		if req.Count <= 0 || req.Count > 100 {
			return &domain.ErrValidation{Field: "count", Message: "must be between 1 and 100"}
		}
		months := min(max(req.Months, 1), 12)
		from := t.at.Add(-time.Duration(months*30*24) * time.Hour)
		if history := t.user.Accounts.Checking.Transactions; len(history) > 0 {
			if last := history[len(history)-1].Timestamp; last.After(from) {
				from = last
			}
		}
		if from.After(t.at) {
			from = t.at
		}
		spread := int64(t.at.Sub(from))

		dates := make([]time.Time, req.Count)
		for i := range dates {
			dates[i] = from.Add(time.Duration(rand.Int63n(spread + 1)))
		}
		slices.SortFunc(dates, func(a, b time.Time) int { return a.Compare(b) })

		for _, at := range dates {
			tpl := activityTemplates[rand.Intn(len(activityTemplates))]
			amount := decimal.New(int64(rand.Intn(49000)+1000), -2) // 10.00 to 499.99
			if tpl.debit {
				amount = amount.Neg()
			}
			bal, rec, err := t.apply(ledger.Entry{
				Account:     domain.AccountChecking,
				Kind:        tpl.kind,
				Amount:      amount,
				Description: tpl.descs[rand.Intn(len(tpl.descs))],
				Category:    tpl.category,
				At:          at,
			})
			var insufficient *domain.ErrInsufficientFunds
			if errors.As(err, &insufficient) {
				res.Skipped++
				continue
			}
			if err != nil {
				return err
			}
			res.Generated++
			res.NewBalance = bal
			if tpl.debit {
				res.Expenses = res.Expenses.Add(amount.Abs())
				t.spendAt(rec.Category, amount, rec.Timestamp)
			} else {
				res.Income = res.Income.Add(amount)
				t.deposit(amount)
			}
		}
		if res.Generated == 0 {
			res.NewBalance = t.user.Accounts.Checking.Balance
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	res.Message = fmt.Sprintf("%d transactions generated", res.Generated)
	s.logger.Info("DEV: activity generated",
		zap.String("user_id", userID),
		zap.Int("generated", res.Generated),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}
