package service

import (
	"context"
	"fmt"

	"github.com/boddenberg/hecu-bank-go/internal/domain"
	"github.com/boddenberg/hecu-bank-go/internal/ledger"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

// Operation names, used as metric labels and log fields.
const (
	opInternalTransfer = "internal_transfer"
	opZelle            = "zelle"
	opWire             = "wire"
	opBillPay          = "bill_pay"
	opExternalTransfer = "external_transfer"
	opLinkedTransfer   = "linked_transfer"
	opLinkExternal     = "link_external_account"
	opSettlePending    = "settle_pending_transfer"
	opReversePending   = "reverse_pending_transfer"
	opMobileDeposit    = "mobile_deposit"
	opBuyBitcoin       = "buy_bitcoin"
	opAdminBalance     = "admin_update_balance"
	opAdminTransfer    = "admin_transfer"
)

// Categories stamped on transfer records.
const (
	categoryTransfer   = "Transfer"
	categoryBills      = "Bills"
	categoryDeposit    = "Deposit"
	categoryInvestment = "Investment"
)

// ============================================================
// Internal transfer: POST /v1/users/{userId}/transfer
// ============================================================

// InternalTransfer moves money between two of the user's own dollar accounts.
func (s *BankingService) InternalTransfer(ctx context.Context, userID string, req *domain.InternalTransferRequest) (*domain.TransferResult, error) {
	ctx, span := bankTracer.Start(ctx, "BankingService.InternalTransfer")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.String("transfer.from", req.From),
		attribute.String("transfer.to", req.To),
	)

	var res *domain.TransferResult
	_, err := s.mutate(ctx, opInternalTransfer, userID, false, func(t *txn) error {
		if req.From == req.To {
			return &domain.ErrInvalidAmount{Field: "to", Reason: "source and destination accounts must differ"}
		}
		from, err := usdAccount(req.From)
		if err != nil {
			return err
		}
		to, err := usdAccount(req.To)
		if err != nil {
			return err
		}
		amount, err := ledger.ParsePositiveAmount(req.Amount, "amount")
		if err != nil {
			return err
		}

		memo := req.Memo
		if memo == "" {
			memo = fmt.Sprintf("Transfer from %s to %s", from, to)
		}
		fromBal, out, err := t.apply(ledger.Entry{
			Account:     from,
			Kind:        domain.KindInternalTransferOut,
			Amount:      amount.Neg(),
			Description: fmt.Sprintf("Transfer to %s account", to),
			Memo:        memo,
			Category:    categoryTransfer,
		})
		if err != nil {
			return err
		}
		toBal, in, err := t.apply(ledger.Entry{
			Account:     to,
			Kind:        domain.KindInternalTransferIn,
			Amount:      amount,
			Description: fmt.Sprintf("Transfer from %s account", from),
			Memo:        memo,
			Category:    categoryTransfer,
		})
		if err != nil {
			return err
		}

		t.notify(domain.NotifySuccess, "Transfer Complete",
			fmt.Sprintf("%s moved from %s to %s", usd(amount), from, to))
		res = &domain.TransferResult{
			Message:     "Transfer completed successfully",
			FromBalance: fromBal,
			ToBalance:   toBal,
			Records:     []domain.TransactionRecord{out, in},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ============================================================
// Single-account debits: Zelle, wire, bill pay, external
// ============================================================

// outgoing describes one debit leaving the bank.
type outgoing struct {
	from        domain.AccountType
	amount      decimal.Decimal
	kind        domain.Kind
	description string
	memo        string
	category    string
	title       string
	notice      string
	message     string
}

// sendOut validates with prepare, debits, and books the spend. prepare runs
// after the user is loaded so a missing user wins over bad input.
func (s *BankingService) sendOut(ctx context.Context, op, userID string, prepare func() (outgoing, error)) (*domain.MutationResult, error) {
	var res *domain.MutationResult
	_, err := s.mutate(ctx, op, userID, false, func(t *txn) error {
		o, err := prepare()
		if err != nil {
			return err
		}
		bal, rec, err := t.apply(ledger.Entry{
			Account:     o.from,
			Kind:        o.kind,
			Amount:      o.amount.Neg(),
			Description: o.description,
			Memo:        o.memo,
			Category:    o.category,
		})
		if err != nil {
			return err
		}
		t.spend(rec.Category, o.amount)
		t.notify(domain.NotifySuccess, o.title, o.notice)
		res = &domain.MutationResult{Message: o.message, Account: o.from, NewBalance: bal, Record: rec}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Zelle sends money from checking or savings to a Zelle recipient.
func (s *BankingService) Zelle(ctx context.Context, userID string, req *domain.ZelleRequest) (*domain.MutationResult, error) {
	ctx, span := bankTracer.Start(ctx, "BankingService.Zelle")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID), attribute.String("zelle.from", req.From))

	return s.sendOut(ctx, opZelle, userID, func() (outgoing, error) {
		from, err := usdAccount(req.From)
		if err != nil {
			return outgoing{}, err
		}
		if err := required("recipient", req.Recipient); err != nil {
			return outgoing{}, err
		}
		amount, err := ledger.ParsePositiveAmount(req.Amount, "amount")
		if err != nil {
			return outgoing{}, err
		}
		return outgoing{
			from:        from,
			amount:      amount,
			kind:        domain.KindZelle,
			description: "Zelle to " + req.Recipient,
			memo:        req.Memo,
			category:    categoryTransfer,
			title:       "Zelle Sent",
			notice:      fmt.Sprintf("You sent %s to %s with Zelle", usd(amount), req.Recipient),
			message:     "Zelle transfer completed successfully",
		}, nil
	})
}

// Wire sends a wire from checking.
func (s *BankingService) Wire(ctx context.Context, userID string, req *domain.WireRequest) (*domain.MutationResult, error) {
	ctx, span := bankTracer.Start(ctx, "BankingService.Wire")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID), attribute.String("wire.bank", req.BankName))

	return s.sendOut(ctx, opWire, userID, func() (outgoing, error) {
		if err := required("recipientName", req.RecipientName); err != nil {
			return outgoing{}, err
		}
		if err := required("bankName", req.BankName); err != nil {
			return outgoing{}, err
		}
		amount, err := ledger.ParsePositiveAmount(req.Amount, "amount")
		if err != nil {
			return outgoing{}, err
		}
		return outgoing{
			from:        domain.AccountChecking,
			amount:      amount,
			kind:        domain.KindWire,
			description: fmt.Sprintf("Wire to %s at %s", req.RecipientName, req.BankName),
			memo:        req.Memo,
			category:    categoryTransfer,
			title:       "Wire Transfer Sent",
			notice:      fmt.Sprintf("Wire of %s sent to %s", usd(amount), req.RecipientName),
			message:     "Wire transfer completed successfully",
		}, nil
	})
}

// BillPay pays a biller from checking.
func (s *BankingService) BillPay(ctx context.Context, userID string, req *domain.BillPayRequest) (*domain.MutationResult, error) {
	ctx, span := bankTracer.Start(ctx, "BankingService.BillPay")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID), attribute.String("bill.payee", req.Payee))

	return s.sendOut(ctx, opBillPay, userID, func() (outgoing, error) {
		if err := required("payee", req.Payee); err != nil {
			return outgoing{}, err
		}
		amount, err := ledger.ParsePositiveAmount(req.Amount, "amount")
		if err != nil {
			return outgoing{}, err
		}
		description := "Payment to " + req.Payee
		if req.AccountNumber != "" {
			description = fmt.Sprintf("Payment to %s (Acct: %s)", req.Payee, req.AccountNumber)
		}
		return outgoing{
			from:        domain.AccountChecking,
			amount:      amount,
			kind:        domain.KindBillPay,
			description: description,
			memo:        req.Memo,
			category:    categoryBills,
			title:       "Bill Paid",
			notice:      fmt.Sprintf("%s paid to %s", usd(amount), req.Payee),
			message:     "Bill payment completed successfully",
		}, nil
	})
}

// ExternalTransfer sends money from checking to another bank. Unlike the
// linked-account path it settles immediately.
func (s *BankingService) ExternalTransfer(ctx context.Context, userID string, req *domain.WireRequest) (*domain.MutationResult, error) {
	ctx, span := bankTracer.Start(ctx, "BankingService.ExternalTransfer")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID), attribute.String("external.bank", req.BankName))

	return s.sendOut(ctx, opExternalTransfer, userID, func() (outgoing, error) {
		if err := required("recipientName", req.RecipientName); err != nil {
			return outgoing{}, err
		}
		if err := required("bankName", req.BankName); err != nil {
			return outgoing{}, err
		}
		amount, err := ledger.ParsePositiveAmount(req.Amount, "amount")
		if err != nil {
			return outgoing{}, err
		}
		return outgoing{
			from:        domain.AccountChecking,
			amount:      amount,
			kind:        domain.KindExternalTransfer,
			description: fmt.Sprintf("Transfer to %s at %s", req.RecipientName, req.BankName),
			memo:        req.Memo,
			category:    categoryTransfer,
			title:       "External Transfer Sent",
			notice:      fmt.Sprintf("%s sent to %s at %s", usd(amount), req.RecipientName, req.BankName),
			message:     "External transfer completed successfully",
		}, nil
	})
}

// ============================================================
// Deposits & bitcoin
// ============================================================

// MobileDeposit credits a check deposit to checking.
func (s *BankingService) MobileDeposit(ctx context.Context, userID string, req *domain.DepositRequest) (*domain.MutationResult, error) {
	ctx, span := bankTracer.Start(ctx, "BankingService.MobileDeposit")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	var res *domain.MutationResult
	_, err := s.mutate(ctx, opMobileDeposit, userID, false, func(t *txn) error {
		amount, err := ledger.ParsePositiveAmount(req.Amount, "amount")
		if err != nil {
			return err
		}
		bal, rec, err := t.apply(ledger.Entry{
			Account:     domain.AccountChecking,
			Kind:        domain.KindMobileDeposit,
			Amount:      amount,
			Description: "Mobile check deposit",
			Memo:        req.Memo,
			Category:    categoryDeposit,
		})
		if err != nil {
			return err
		}
		t.deposit(amount)
		t.notify(domain.NotifySuccess, "Deposit Received",
			fmt.Sprintf("Your mobile deposit of %s is available", usd(amount)))
		res = &domain.MutationResult{
			Message:    "Deposit completed successfully",
			Account:    domain.AccountChecking,
			NewBalance: bal,
			Record:     rec,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// BuyBitcoin debits USD from checking and credits the client-quoted BTC
// amount to the bitcoin account.
func (s *BankingService) BuyBitcoin(ctx context.Context, userID string, req *domain.BitcoinBuyRequest) (*domain.TransferResult, error) {
	ctx, span := bankTracer.Start(ctx, "BankingService.BuyBitcoin")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	var res *domain.TransferResult
	_, err := s.mutate(ctx, opBuyBitcoin, userID, false, func(t *txn) error {
		usdAmount, err := ledger.ParsePositiveAmount(req.USDAmount, "usdAmount")
		if err != nil {
			return err
		}
		btcAmount, err := ledger.ParsePositiveAmount(req.BTCAmount, "btcAmount")
		if err != nil {
			return err
		}

		cashBal, debit, err := t.apply(ledger.Entry{
			Account:     domain.AccountChecking,
			Kind:        domain.KindBitcoinPurchase,
			Amount:      usdAmount.Neg(),
			Description: fmt.Sprintf("Bitcoin purchase: %s BTC", btcAmount),
			Category:    categoryInvestment,
		})
		if err != nil {
			return err
		}
		btcBal, credit, err := t.apply(ledger.Entry{
			Account:     domain.AccountBitcoin,
			Kind:        domain.KindPurchase,
			Amount:      btcAmount,
			Description: fmt.Sprintf("Bought %s BTC for %s", btcAmount, usd(usdAmount)),
			Category:    categoryInvestment,
		})
		if err != nil {
			return err
		}

		t.notify(domain.NotifySuccess, "Bitcoin Purchased",
			fmt.Sprintf("You bought %s BTC for %s", btcAmount, usd(usdAmount)))
		res = &domain.TransferResult{
			Message:     "Bitcoin purchased successfully",
			FromBalance: cashBal,
			ToBalance:   btcBal,
			Records:     []domain.TransactionRecord{debit, credit},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
