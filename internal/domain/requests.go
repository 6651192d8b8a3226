package domain

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// RawAmount carries an amount exactly as the client sent it. Forms post
// strings, scripts post numbers; both decode here and are parsed by the
// ledger so a bad value becomes ErrInvalidAmount rather than a decode error.
type RawAmount string

// UnmarshalJSON accepts a JSON string, number or null.
func (r *RawAmount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*r = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*r = RawAmount(s)
		return nil
	}
	*r = RawAmount(b)
	return nil
}

// ============================================================
// Transfers: request types
// ============================================================

// InternalTransferRequest moves money between two of the user's own accounts.
type InternalTransferRequest struct {
	From   string    `json:"from"`
	To     string    `json:"to"`
	Amount RawAmount `json:"amount"`
	Memo   string    `json:"memo,omitempty"`
}

// ZelleRequest sends money from one account to a Zelle recipient.
type ZelleRequest struct {
	From      string    `json:"from"`
	Recipient string    `json:"recipient"`
	Amount    RawAmount `json:"amount"`
	Memo      string    `json:"memo,omitempty"`
}

// WireRequest sends a wire from checking. Also used for the instant external transfer.
type WireRequest struct {
	RecipientName string    `json:"recipientName"`
	BankName      string    `json:"bankName"`
	Amount        RawAmount `json:"amount"`
	Memo          string    `json:"memo,omitempty"`
}

// BillPayRequest pays a biller from checking.
type BillPayRequest struct {
	Payee         string    `json:"payee"`
	AccountNumber string    `json:"accountNumber"`
	Amount        RawAmount `json:"amount"`
	Memo          string    `json:"memo,omitempty"`
}

// LinkedTransferRequest stages a transfer to a linked external account.
type LinkedTransferRequest struct {
	ExternalAccountID string    `json:"externalAccountId"`
	Amount            RawAmount `json:"amount"`
	Memo              string    `json:"memo,omitempty"`
}

// DepositRequest is a mobile check deposit into checking.
type DepositRequest struct {
	Amount RawAmount `json:"amount"`
	Memo   string    `json:"memo,omitempty"`
}

// BitcoinBuyRequest converts USD from checking into BTC. The BTC amount is
// quoted by the client; there is no pricing here.
type BitcoinBuyRequest struct {
	USDAmount RawAmount `json:"usdAmount"`
	BTCAmount RawAmount `json:"btcAmount"`
}

// AdminBalanceRequest adjusts one of a user's accounts by a signed amount.
type AdminBalanceRequest struct {
	Account string    `json:"account"`
	Amount  RawAmount `json:"amount"`
	Memo    string    `json:"memo,omitempty"`
}

// AdminTransferRequest credits or debits an account found by its number.
type AdminTransferRequest struct {
	AccountNumber string    `json:"accountNumber"`
	AccountType   string    `json:"accountType"`
	Amount        RawAmount `json:"amount"`
	Memo          string    `json:"memo,omitempty"`
}

// LinkExternalAccountRequest links an account at another bank.
type LinkExternalAccountRequest struct {
	BankName      string `json:"bankName"`
	AccountType   string `json:"accountType"`
	AccountNumber string `json:"accountNumber"`
	RoutingNumber string `json:"routingNumber"`
	Nickname      string `json:"nickname,omitempty"`
}

// ============================================================
// Transfers: results
// ============================================================

// MutationResult is returned by single-account operations.
type MutationResult struct {
	Message    string            `json:"message"`
	Account    AccountType       `json:"account"`
	NewBalance decimal.Decimal   `json:"newBalance"`
	Record     TransactionRecord `json:"transaction"`
}

// TransferResult is returned by two-account operations (internal transfer, bitcoin buy).
type TransferResult struct {
	Message     string              `json:"message"`
	FromBalance decimal.Decimal     `json:"fromBalance"`
	ToBalance   decimal.Decimal     `json:"toBalance"`
	Records     []TransactionRecord `json:"transactions"`
}

// PendingTransferResult is returned when a linked-account transfer is staged.
type PendingTransferResult struct {
	Message    string            `json:"message"`
	NewBalance decimal.Decimal   `json:"newBalance"`
	Record     TransactionRecord `json:"transaction"`
	Transfer   PendingTransfer   `json:"transfer"`
}

// AdminTransferResult is returned by POST /v1/admin/transfer.
type AdminTransferResult struct {
	Message     string            `json:"message"`
	Recipient   string            `json:"recipient"`
	Account     string            `json:"account"`
	AccountType AccountType       `json:"accountType"`
	Amount      decimal.Decimal   `json:"amount"`
	OldBalance  decimal.Decimal   `json:"oldBalance"`
	NewBalance  decimal.Decimal   `json:"newBalance"`
	Record      TransactionRecord `json:"transaction"`
}

// UserBackup is a point-in-time export of every stored user, password
// hashes included, for restoring a store.
type UserBackup struct {
	Timestamp time.Time `json:"timestamp"`
	Users     []*User   `json:"users"`
}

// RepairReport summarizes a batch repair run.
type RepairReport struct {
	Scanned  int      `json:"scanned"`
	Repaired int      `json:"repaired"`
	Errors   []string `json:"errors"`
}

// ============================================================
// Identity
// ============================================================

// RegisterRequest is the body for POST /v1/auth/register.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginRequest is the body for POST /v1/auth/login. Either Email or Username is required.
type LoginRequest struct {
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Message   string    `json:"message"`
	User      *User     `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// AdminPINRequest is the body for POST /v1/auth/admin-pin.
type AdminPINRequest struct {
	PIN string `json:"pin"`
}

// AdminPINResponse reports whether the PIN matched and, if so, carries an admin token.
type AdminPINResponse struct {
	Valid bool   `json:"valid"`
	Token string `json:"token,omitempty"`
}

// ChangePasswordRequest is the body for the admin password reset.
type ChangePasswordRequest struct {
	NewPassword string `json:"newPassword"`
}

// ============================================================
// Ancillary features: requests
// ============================================================

// SavingsGoalRequest creates a savings goal.
type SavingsGoalRequest struct {
	Name         string    `json:"name"`
	TargetAmount RawAmount `json:"targetAmount"`
	TargetDate   string    `json:"targetDate"`
	Color        string    `json:"color,omitempty"`
	Icon         string    `json:"icon,omitempty"`
}

// SavingsGoalUpdate sets a goal's progress.
type SavingsGoalUpdate struct {
	CurrentAmount RawAmount `json:"currentAmount"`
}

// BudgetUpdate replaces the monthly limit and/or categories.
type BudgetUpdate struct {
	MonthlyLimit RawAmount        `json:"monthlyLimit,omitempty"`
	Categories   []BudgetCategory `json:"categories,omitempty"`
}

// BudgetView is returned by GET /v1/users/{userId}/budget.
type BudgetView struct {
	Budget             Budget                     `json:"budget"`
	SpendingCategories map[string]decimal.Decimal `json:"spendingCategories"`
}

// ============================================================
// Dev tools
// ============================================================

// GenerateActivityRequest asks for Count random checking entries spread
// over the last Months months.
type GenerateActivityRequest struct {
	Count  int `json:"count"`
	Months int `json:"months,omitempty"`
}

// GenerateActivityResult summarizes the generated entries.
type GenerateActivityResult struct {
	Message    string          `json:"message"`
	Generated  int             `json:"generated"`
	Skipped    int             `json:"skipped"`
	Income     decimal.Decimal `json:"income"`
	Expenses   decimal.Decimal `json:"expenses"`
	NewBalance decimal.Decimal `json:"newBalance"`
}
