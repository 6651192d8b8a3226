package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Balances and amounts go over the wire as JSON numbers, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// DefaultRoutingNumber is the institution's routing number, shared by every account.
const DefaultRoutingNumber = "836284645"

// DefaultCategory is used when a ledger entry carries no category.
const DefaultCategory = "Other"

// ============================================================
// Account types
// ============================================================

// AccountType names one of the account slots on a User.
type AccountType string

const (
	AccountChecking AccountType = "checking"
	AccountSavings  AccountType = "savings"
	AccountBitcoin  AccountType = "bitcoin"
)

// AccountTypes lists every slot in the order feeds concatenate them.
var AccountTypes = []AccountType{AccountChecking, AccountSavings, AccountBitcoin}

// ParseAccountType validates a slot name coming from a request.
func ParseAccountType(s string) (AccountType, error) {
	switch t := AccountType(s); t {
	case AccountChecking, AccountSavings, AccountBitcoin:
		return t, nil
	}
	return "", &ErrInvalidAccountType{Name: s}
}

// ============================================================
// Transaction records
// ============================================================

// Kind classifies a ledger entry.
type Kind string

const (
	KindCredit                  Kind = "Credit"
	KindDebit                   Kind = "Debit"
	KindZelle                   Kind = "Zelle"
	KindWire                    Kind = "Wire"
	KindBillPay                 Kind = "Bill Pay"
	KindInternalTransferIn      Kind = "Transfer In"
	KindInternalTransferOut     Kind = "Transfer Out"
	KindExternalTransfer        Kind = "External Transfer"
	KindExternalTransferPending Kind = "External Transfer - Pending"
	KindAdminAdjustment         Kind = "Admin Adjustment"
	KindMobileDeposit           Kind = "Mobile Deposit"
	KindBitcoinPurchase         Kind = "Bitcoin Purchase"
	KindBitcoinDeposit          Kind = "Bitcoin Deposit"
	KindBitcoinTransfer         Kind = "Bitcoin Transfer"
	KindPurchase                Kind = "Purchase"
)

// Valid reports whether k is a known entry kind.
func (k Kind) Valid() bool {
	switch k {
	case KindCredit, KindDebit, KindZelle, KindWire, KindBillPay,
		KindInternalTransferIn, KindInternalTransferOut,
		KindExternalTransfer, KindExternalTransferPending, KindAdminAdjustment,
		KindMobileDeposit, KindBitcoinPurchase, KindBitcoinDeposit, KindBitcoinTransfer,
		KindPurchase:
		return true
	}
	return false
}

// SignedKind picks Credit or Debit from the sign of an admin amount.
func SignedKind(amount decimal.Decimal) Kind {
	if amount.IsNegative() {
		return KindDebit
	}
	return KindCredit
}

// TransactionRecord is one immutable ledger entry. Amount is signed
// (negative = debit) and expressed in the owning account's unit, so
// bitcoin records are in BTC.
type TransactionRecord struct {
	ID           string          `json:"id"`
	Timestamp    time.Time       `json:"date"`
	Kind         Kind            `json:"type"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description"`
	Memo         string          `json:"memo"`
	BalanceAfter decimal.Decimal `json:"balanceAfter"`
	Category     string          `json:"category"`
	Account      AccountType     `json:"account"`
	Status       string          `json:"status,omitempty"`
	Reference    string          `json:"reference,omitempty"`
}

// Account is one balance plus its append-only history.
type Account struct {
	AccountNumber string              `json:"accountNumber,omitempty"`
	RoutingNumber string              `json:"routingNumber,omitempty"`
	WalletAddress string              `json:"walletAddress,omitempty"`
	Balance       decimal.Decimal     `json:"balance"`
	Transactions  []TransactionRecord `json:"transactions"`
}

// Accounts holds the named slots. A nil slot is a missing account that
// provisioning heals on the next mutation.
type Accounts struct {
	Checking *Account `json:"checking,omitempty"`
	Savings  *Account `json:"savings,omitempty"`
	Bitcoin  *Account `json:"bitcoin,omitempty"`
}

// ============================================================
// External accounts & pending transfers
// ============================================================

// ExternalAccount references an account held at another institution.
type ExternalAccount struct {
	ID                string    `json:"id"`
	BankName          string    `json:"bankName"`
	AccountType       string    `json:"accountType"`
	AccountNumber     string    `json:"accountNumber"` // last 4 digits
	FullAccountNumber string    `json:"fullAccountNumber,omitempty"`
	RoutingNumber     string    `json:"routingNumber"`
	Nickname          string    `json:"nickname"`
	LinkedAt          time.Time `json:"linkedDate"`
	Status            string    `json:"status"`
}

// Pending transfer states.
const (
	TransferPending   = "pending"
	TransferCompleted = "completed"
	TransferReversed  = "reversed"
)

// ExternalAccountRef is the snapshot of the destination kept on a pending transfer.
type ExternalAccountRef struct {
	BankName          string `json:"bankName"`
	AccountNumber     string `json:"accountNumber"`
	FullAccountNumber string `json:"fullAccountNumber,omitempty"`
	RoutingNumber     string `json:"routingNumber"`
}

// PendingTransfer is an external transfer whose funds were debited but not yet sent.
type PendingTransfer struct {
	ID              string             `json:"id"`
	Timestamp       time.Time          `json:"date"`
	Kind            Kind               `json:"type"`
	Amount          decimal.Decimal    `json:"amount"`
	Description     string             `json:"description"`
	Memo            string             `json:"memo"`
	BalanceAfter    decimal.Decimal    `json:"balanceAfter"`
	Category        string             `json:"category"`
	Status          string             `json:"status"`
	ExternalAccount ExternalAccountRef `json:"externalAccount"`
	SettledAt       *time.Time         `json:"settledAt,omitempty"`
}

// ============================================================
// User aggregate
// ============================================================

// User statuses.
const (
	UserActive    = "active"
	UserSuspended = "suspended"
	UserInactive  = "inactive"
)

// User is the aggregate root: everything under it is loaded, mutated and
// saved as one document.
type User struct {
	ID                 string                     `json:"id"`
	Name               string                     `json:"name"`
	Email              string                     `json:"email"`
	Username           string                     `json:"username"`
	PasswordHash       string                     `json:"passwordHash,omitempty"`
	Status             string                     `json:"status"`
	Accounts           Accounts                   `json:"accounts"`
	ExternalAccounts   []ExternalAccount          `json:"externalAccounts"`
	PendingTransfers   []PendingTransfer          `json:"pendingTransfers"`
	SavingsGoals       []SavingsGoal              `json:"savingsGoals"`
	Budget             Budget                     `json:"budget"`
	SpendingCategories map[string]decimal.Decimal `json:"spendingCategories"`
	Notifications      []Notification             `json:"notifications"`
	TotalDeposits      decimal.Decimal            `json:"totalDeposits"`
	TotalWithdrawals   decimal.Decimal            `json:"totalWithdrawals"`
	LoginAttempts      int                        `json:"loginAttempts,omitempty"`
	LockUntil          *time.Time                 `json:"lockUntil,omitempty"`
	LastLogin          time.Time                  `json:"lastLogin"`
	CreatedAt          time.Time                  `json:"createdAt"`
	UpdatedAt          time.Time                  `json:"updatedAt"`
	Version            int64                      `json:"version"`
}

// Slot returns the account stored under t, or nil when the slot is missing.
func (u *User) Slot(t AccountType) *Account {
	switch t {
	case AccountChecking:
		return u.Accounts.Checking
	case AccountSavings:
		return u.Accounts.Savings
	case AccountBitcoin:
		return u.Accounts.Bitcoin
	}
	return nil
}

// SetSlot stores a into slot t.
func (u *User) SetSlot(t AccountType, a *Account) {
	switch t {
	case AccountChecking:
		u.Accounts.Checking = a
	case AccountSavings:
		u.Accounts.Savings = a
	case AccountBitcoin:
		u.Accounts.Bitcoin = a
	}
}

// ExternalAccount finds a linked account by id.
func (u *User) ExternalAccount(id string) *ExternalAccount {
	for i := range u.ExternalAccounts {
		if u.ExternalAccounts[i].ID == id {
			return &u.ExternalAccounts[i]
		}
	}
	return nil
}

// PendingTransfer finds a pending transfer by id.
func (u *User) PendingTransfer(id string) *PendingTransfer {
	for i := range u.PendingTransfers {
		if u.PendingTransfers[i].ID == id {
			return &u.PendingTransfers[i]
		}
	}
	return nil
}

// Sanitized returns a copy safe to send to clients.
func (u *User) Sanitized() *User {
	c := *u
	c.PasswordHash = ""
	c.LoginAttempts = 0
	c.LockUntil = nil
	return &c
}

// ============================================================
// Feeds
// ============================================================

// FeedEntry is a transaction record tagged with its owner, for the admin feed.
type FeedEntry struct {
	TransactionRecord
	UserID        string `json:"userId"`
	UserName      string `json:"user"`
	AccountNumber string `json:"accountNumber,omitempty"`
}
