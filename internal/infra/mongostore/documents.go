package mongostore

import (
	"fmt"
	"time"

	"github.com/boddenberg/hecu-bank-go/internal/domain"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ============================================================
// BSON documents
//
// Money is stored as Decimal128. Fields added after the first
// release are omitempty so legacy documents decode with zero
// values that EnsureShape heals on the next mutation.
// ============================================================

type userDoc struct {
	ID                 string                          `bson:"_id"`
	Name               string                          `bson:"name"`
	Email              string                          `bson:"email"`
	Username           string                          `bson:"username"`
	PasswordHash       string                          `bson:"password_hash"`
	Status             string                          `bson:"status,omitempty"`
	Accounts           accountsDoc                     `bson:"accounts"`
	ExternalAccounts   []externalAccountDoc            `bson:"external_accounts,omitempty"`
	PendingTransfers   []pendingTransferDoc            `bson:"pending_transfers,omitempty"`
	SavingsGoals       []savingsGoalDoc                `bson:"savings_goals,omitempty"`
	Budget             *budgetDoc                      `bson:"budget,omitempty"`
	SpendingCategories map[string]primitive.Decimal128 `bson:"spending_categories,omitempty"`
	Notifications      []notificationDoc               `bson:"notifications,omitempty"`
	TotalDeposits      primitive.Decimal128            `bson:"total_deposits"`
	TotalWithdrawals   primitive.Decimal128            `bson:"total_withdrawals"`
	LoginAttempts      int                             `bson:"login_attempts,omitempty"`
	LockUntil          *time.Time                      `bson:"lock_until,omitempty"`
	LastLogin          time.Time                       `bson:"last_login"`
	CreatedAt          time.Time                       `bson:"created_at"`
	UpdatedAt          time.Time                       `bson:"updated_at"`
	Version            int64                           `bson:"version"`
}

type accountsDoc struct {
	Checking *accountDoc `bson:"checking,omitempty"`
	Savings  *accountDoc `bson:"savings,omitempty"`
	Bitcoin  *accountDoc `bson:"bitcoin,omitempty"`
}

type accountDoc struct {
	AccountNumber string               `bson:"account_number,omitempty"`
	RoutingNumber string               `bson:"routing_number,omitempty"`
	WalletAddress string               `bson:"wallet_address,omitempty"`
	Balance       primitive.Decimal128 `bson:"balance"`
	Transactions  []transactionDoc     `bson:"transactions"`
}

type transactionDoc struct {
	ID           string               `bson:"id"`
	Date         time.Time            `bson:"date"`
	Type         string               `bson:"type"`
	Amount       primitive.Decimal128 `bson:"amount"`
	Description  string               `bson:"description"`
	Memo         string               `bson:"memo,omitempty"`
	BalanceAfter primitive.Decimal128 `bson:"balance_after"`
	Category     string               `bson:"category,omitempty"`
	Account      string               `bson:"account,omitempty"`
	Status       string               `bson:"status,omitempty"`
	Reference    string               `bson:"reference,omitempty"`
}

type externalAccountDoc struct {
	ID                string    `bson:"id"`
	BankName          string    `bson:"bank_name"`
	AccountType       string    `bson:"account_type"`
	AccountNumber     string    `bson:"account_number"`
	FullAccountNumber string    `bson:"full_account_number,omitempty"`
	RoutingNumber     string    `bson:"routing_number"`
	Nickname          string    `bson:"nickname"`
	LinkedAt          time.Time `bson:"linked_date"`
	Status            string    `bson:"status"`
}

type pendingTransferDoc struct {
	ID                string               `bson:"id"`
	Date              time.Time            `bson:"date"`
	Type              string               `bson:"type"`
	Amount            primitive.Decimal128 `bson:"amount"`
	Description       string               `bson:"description"`
	Memo              string               `bson:"memo,omitempty"`
	BalanceAfter      primitive.Decimal128 `bson:"balance_after"`
	Category          string               `bson:"category,omitempty"`
	Status            string               `bson:"status"`
	BankName          string               `bson:"bank_name"`
	AccountNumber     string               `bson:"account_number"`
	FullAccountNumber string               `bson:"full_account_number,omitempty"`
	RoutingNumber     string               `bson:"routing_number"`
	SettledAt         *time.Time           `bson:"settled_at,omitempty"`
}

type savingsGoalDoc struct {
	ID            string               `bson:"id"`
	Name          string               `bson:"name"`
	TargetAmount  primitive.Decimal128 `bson:"target_amount"`
	CurrentAmount primitive.Decimal128 `bson:"current_amount"`
	TargetDate    time.Time            `bson:"target_date"`
	CreatedAt     time.Time            `bson:"created_date"`
	Status        string               `bson:"status"`
	Color         string               `bson:"color,omitempty"`
	Icon          string               `bson:"icon,omitempty"`
}

type budgetDoc struct {
	MonthlyLimit primitive.Decimal128 `bson:"monthly_limit"`
	Categories   []budgetCategoryDoc  `bson:"categories"`
	Month        int                  `bson:"month"`
	Year         int                  `bson:"year"`
	TotalSpent   primitive.Decimal128 `bson:"total_spent"`
}

type budgetCategoryDoc struct {
	Name      string               `bson:"name"`
	Allocated primitive.Decimal128 `bson:"allocated"`
	Spent     primitive.Decimal128 `bson:"spent"`
	Color     string               `bson:"color,omitempty"`
}

type notificationDoc struct {
	ID        string    `bson:"id"`
	Title     string    `bson:"title"`
	Message   string    `bson:"message"`
	Type      string    `bson:"type"`
	Read      bool      `bson:"read"`
	Timestamp time.Time `bson:"timestamp"`
	ActionURL string    `bson:"action_url,omitempty"`
}

// ============================================================
// Decimal conversion
// ============================================================

// encoder converts decimals and keeps the first failure so mapping code
// stays linear.
type encoder struct {
	err error
}

func (e *encoder) dec(d decimal.Decimal) primitive.Decimal128 {
	v, ok := primitive.ParseDecimal128FromBigInt(d.Coefficient(), int(d.Exponent()))
	if !ok && e.err == nil {
		e.err = fmt.Errorf("amount %s does not fit in decimal128", d)
	}
	return v
}

type decoder struct {
	err error
}

func (dc *decoder) dec(v primitive.Decimal128) decimal.Decimal {
	bi, exp, err := v.BigInt()
	if err != nil {
		if dc.err == nil {
			dc.err = fmt.Errorf("decoding decimal128 %s: %w", v, err)
		}
		return decimal.Zero
	}
	return decimal.NewFromBigInt(bi, int32(exp))
}

// ============================================================
// domain → document
// ============================================================

func toDoc(u *domain.User) (*userDoc, error) {
	var e encoder
	d := &userDoc{
		ID:               u.ID,
		Name:             u.Name,
		Email:            u.Email,
		Username:         u.Username,
		PasswordHash:     u.PasswordHash,
		Status:           u.Status,
		TotalDeposits:    e.dec(u.TotalDeposits),
		TotalWithdrawals: e.dec(u.TotalWithdrawals),
		LoginAttempts:    u.LoginAttempts,
		LockUntil:        u.LockUntil,
		LastLogin:        u.LastLogin,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
		Version:          u.Version,
	}
	d.Accounts = accountsDoc{
		Checking: e.account(u.Accounts.Checking),
		Savings:  e.account(u.Accounts.Savings),
		Bitcoin:  e.account(u.Accounts.Bitcoin),
	}

	for _, x := range u.ExternalAccounts {
		d.ExternalAccounts = append(d.ExternalAccounts, externalAccountDoc{
			ID: x.ID, BankName: x.BankName, AccountType: x.AccountType,
			AccountNumber: x.AccountNumber, FullAccountNumber: x.FullAccountNumber,
			RoutingNumber: x.RoutingNumber, Nickname: x.Nickname, LinkedAt: x.LinkedAt, Status: x.Status,
		})
	}
	for _, p := range u.PendingTransfers {
		d.PendingTransfers = append(d.PendingTransfers, pendingTransferDoc{
			ID: p.ID, Date: p.Timestamp, Type: string(p.Kind), Amount: e.dec(p.Amount),
			Description: p.Description, Memo: p.Memo, BalanceAfter: e.dec(p.BalanceAfter),
			Category: p.Category, Status: p.Status,
			BankName: p.ExternalAccount.BankName, AccountNumber: p.ExternalAccount.AccountNumber,
			FullAccountNumber: p.ExternalAccount.FullAccountNumber, RoutingNumber: p.ExternalAccount.RoutingNumber,
			SettledAt: p.SettledAt,
		})
	}
	for _, g := range u.SavingsGoals {
		d.SavingsGoals = append(d.SavingsGoals, savingsGoalDoc{
			ID: g.ID, Name: g.Name, TargetAmount: e.dec(g.TargetAmount), CurrentAmount: e.dec(g.CurrentAmount),
			TargetDate: g.TargetDate, CreatedAt: g.CreatedAt, Status: g.Status, Color: g.Color, Icon: g.Icon,
		})
	}
	if u.Budget.CurrentMonth.Month != 0 {
		b := &budgetDoc{
			MonthlyLimit: e.dec(u.Budget.MonthlyLimit),
			Categories:   []budgetCategoryDoc{},
			Month:        u.Budget.CurrentMonth.Month,
			Year:         u.Budget.CurrentMonth.Year,
			TotalSpent:   e.dec(u.Budget.CurrentMonth.TotalSpent),
		}
		for _, c := range u.Budget.Categories {
			b.Categories = append(b.Categories, budgetCategoryDoc{
				Name: c.Name, Allocated: e.dec(c.Allocated), Spent: e.dec(c.Spent), Color: c.Color,
			})
		}
		d.Budget = b
	}
	if u.SpendingCategories != nil {
		d.SpendingCategories = make(map[string]primitive.Decimal128, len(u.SpendingCategories))
		for k, v := range u.SpendingCategories {
			d.SpendingCategories[k] = e.dec(v)
		}
	}
	for _, n := range u.Notifications {
		d.Notifications = append(d.Notifications, notificationDoc{
			ID: n.ID, Title: n.Title, Message: n.Message, Type: n.Type,
			Read: n.Read, Timestamp: n.Timestamp, ActionURL: n.ActionURL,
		})
	}

	if e.err != nil {
		return nil, fmt.Errorf("encoding user %s: %w", u.ID, e.err)
	}
	return d, nil
}

func (e *encoder) account(a *domain.Account) *accountDoc {
	if a == nil {
		return nil
	}
	d := &accountDoc{
		AccountNumber: a.AccountNumber,
		RoutingNumber: a.RoutingNumber,
		WalletAddress: a.WalletAddress,
		Balance:       e.dec(a.Balance),
		Transactions:  make([]transactionDoc, 0, len(a.Transactions)),
	}
	for _, r := range a.Transactions {
		d.Transactions = append(d.Transactions, transactionDoc{
			ID: r.ID, Date: r.Timestamp, Type: string(r.Kind), Amount: e.dec(r.Amount),
			Description: r.Description, Memo: r.Memo, BalanceAfter: e.dec(r.BalanceAfter),
			Category: r.Category, Account: string(r.Account), Status: r.Status, Reference: r.Reference,
		})
	}
	return d
}

// ============================================================
// document → domain
// ============================================================

// fromDoc maps a stored document back to the aggregate. Missing
// collections stay nil so the caller can tell a legacy document apart.
func fromDoc(d *userDoc) (*domain.User, error) {
	var dc decoder
	u := &domain.User{
		ID:               d.ID,
		Name:             d.Name,
		Email:            d.Email,
		Username:         d.Username,
		PasswordHash:     d.PasswordHash,
		Status:           d.Status,
		TotalDeposits:    dc.dec(d.TotalDeposits),
		TotalWithdrawals: dc.dec(d.TotalWithdrawals),
		LoginAttempts:    d.LoginAttempts,
		LockUntil:        d.LockUntil,
		LastLogin:        d.LastLogin,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
		Version:          d.Version,
	}
	u.Accounts = domain.Accounts{
		Checking: dc.account(d.Accounts.Checking, domain.AccountChecking),
		Savings:  dc.account(d.Accounts.Savings, domain.AccountSavings),
		Bitcoin:  dc.account(d.Accounts.Bitcoin, domain.AccountBitcoin),
	}

	if d.ExternalAccounts != nil {
		u.ExternalAccounts = make([]domain.ExternalAccount, 0, len(d.ExternalAccounts))
		for _, x := range d.ExternalAccounts {
			u.ExternalAccounts = append(u.ExternalAccounts, domain.ExternalAccount{
				ID: x.ID, BankName: x.BankName, AccountType: x.AccountType,
				AccountNumber: x.AccountNumber, FullAccountNumber: x.FullAccountNumber,
				RoutingNumber: x.RoutingNumber, Nickname: x.Nickname, LinkedAt: x.LinkedAt, Status: x.Status,
			})
		}
	}
	if d.PendingTransfers != nil {
		u.PendingTransfers = make([]domain.PendingTransfer, 0, len(d.PendingTransfers))
		for _, p := range d.PendingTransfers {
			u.PendingTransfers = append(u.PendingTransfers, domain.PendingTransfer{
				ID: p.ID, Timestamp: p.Date, Kind: domain.Kind(p.Type), Amount: dc.dec(p.Amount),
				Description: p.Description, Memo: p.Memo, BalanceAfter: dc.dec(p.BalanceAfter),
				Category: p.Category, Status: p.Status,
				ExternalAccount: domain.ExternalAccountRef{
					BankName: p.BankName, AccountNumber: p.AccountNumber,
					FullAccountNumber: p.FullAccountNumber, RoutingNumber: p.RoutingNumber,
				},
				SettledAt: p.SettledAt,
			})
		}
	}
	if d.SavingsGoals != nil {
		u.SavingsGoals = make([]domain.SavingsGoal, 0, len(d.SavingsGoals))
		for _, g := range d.SavingsGoals {
			u.SavingsGoals = append(u.SavingsGoals, domain.SavingsGoal{
				ID: g.ID, Name: g.Name, TargetAmount: dc.dec(g.TargetAmount), CurrentAmount: dc.dec(g.CurrentAmount),
				TargetDate: g.TargetDate, CreatedAt: g.CreatedAt, Status: g.Status, Color: g.Color, Icon: g.Icon,
			})
		}
	}
	if d.Budget != nil {
		u.Budget = domain.Budget{
			MonthlyLimit: dc.dec(d.Budget.MonthlyLimit),
			Categories:   make([]domain.BudgetCategory, 0, len(d.Budget.Categories)),
			CurrentMonth: domain.BudgetMonth{
				Month:      d.Budget.Month,
				Year:       d.Budget.Year,
				TotalSpent: dc.dec(d.Budget.TotalSpent),
			},
		}
		for _, c := range d.Budget.Categories {
			u.Budget.Categories = append(u.Budget.Categories, domain.BudgetCategory{
				Name: c.Name, Allocated: dc.dec(c.Allocated), Spent: dc.dec(c.Spent), Color: c.Color,
			})
		}
	}
	if d.SpendingCategories != nil {
		u.SpendingCategories = make(map[string]decimal.Decimal, len(d.SpendingCategories))
		for k, v := range d.SpendingCategories {
			u.SpendingCategories[k] = dc.dec(v)
		}
	}
	if d.Notifications != nil {
		u.Notifications = make([]domain.Notification, 0, len(d.Notifications))
		for _, n := range d.Notifications {
			u.Notifications = append(u.Notifications, domain.Notification{
				ID: n.ID, Title: n.Title, Message: n.Message, Type: n.Type,
				Read: n.Read, Timestamp: n.Timestamp, ActionURL: n.ActionURL,
			})
		}
	}

	if dc.err != nil {
		return nil, fmt.Errorf("decoding user %s: %w", d.ID, dc.err)
	}
	return u, nil
}

func (dc *decoder) account(d *accountDoc, slot domain.AccountType) *domain.Account {
	if d == nil {
		return nil
	}
	a := &domain.Account{
		AccountNumber: d.AccountNumber,
		RoutingNumber: d.RoutingNumber,
		WalletAddress: d.WalletAddress,
		Balance:       dc.dec(d.Balance),
	}
	if d.Transactions != nil {
		a.Transactions = make([]domain.TransactionRecord, 0, len(d.Transactions))
	}
	for _, r := range d.Transactions {
		acct := domain.AccountType(r.Account)
		if acct == "" {
			acct = slot
		}
		a.Transactions = append(a.Transactions, domain.TransactionRecord{
			ID: r.ID, Timestamp: r.Date, Kind: domain.Kind(r.Type), Amount: dc.dec(r.Amount),
			Description: r.Description, Memo: r.Memo, BalanceAfter: dc.dec(r.BalanceAfter),
			Category: r.Category, Account: acct, Status: r.Status, Reference: r.Reference,
		})
	}
	return a
}
