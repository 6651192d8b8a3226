package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/hecu-bank-go/internal/bootstrap"
	"github.com/boddenberg/hecu-bank-go/internal/config"
	"github.com/boddenberg/hecu-bank-go/internal/domain"
	"github.com/boddenberg/hecu-bank-go/internal/handler"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type client struct {
	t    *testing.T
	base string
	http *http.Client
}

func (c *client) call(method, path, token string, body, out any) int {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			c.t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.base+path, &buf)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.t.Errorf("%s %s: %v", method, path, err)
		return 0
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			c.t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func (c *client) mustCall(method, path, token string, body, out any) {
	c.t.Helper()
	if code := c.call(method, path, token, body, out); code >= 300 {
		c.t.Fatalf("%s %s: unexpected status %d", method, path, code)
	}
}

func startServer(t *testing.T) *client {
	t.Helper()
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("ADMIN_PIN", "9999")
	t.Setenv("JWT_SECRET", "integration-secret")
	t.Setenv("BTC_PRICE_USD", "50000")

	ctx := context.Background()
	logger := zap.NewNop()
	cfg := config.Load()
	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	t.Cleanup(func() { app.Close(ctx) })

	srv := httptest.NewServer(handler.NewRouter(app.Bank, app.Auth, app.Metrics, nil, logger))
	t.Cleanup(srv.Close)

	return &client{t: t, base: srv.URL, http: &http.Client{Timeout: 10 * time.Second}}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// TestIntegration_FullFlow drives the bank end to end over HTTP.
func TestIntegration_FullFlow(t *testing.T) {
	c := startServer(t)

	// --- Register & log in ---
	var ada domain.AuthResponse
	c.mustCall(http.MethodPost, "/v1/auth/register", "", domain.RegisterRequest{
		Name: "Ada Lovelace", Email: "ada@example.com", Username: "ada", Password: "analytical",
	}, &ada)
	var login domain.AuthResponse
	c.mustCall(http.MethodPost, "/v1/auth/login", "", domain.LoginRequest{Username: "ada", Password: "analytical"}, &login)
	if login.User.ID != ada.User.ID {
		t.Fatalf("login returned another user: %s", login.User.ID)
	}
	token := login.Token
	userPath := "/v1/users/" + ada.User.ID

	var pin domain.AdminPINResponse
	c.mustCall(http.MethodPost, "/v1/auth/admin-pin", "", domain.AdminPINRequest{PIN: "9999"}, &pin)
	admin := pin.Token

	// --- Fund & move money ---
	c.mustCall(http.MethodPost, "/v1/admin/users/"+ada.User.ID+"/update-balance", admin,
		map[string]string{"account": "checking", "amount": "1000"}, nil)
	c.mustCall(http.MethodPost, userPath+"/deposit", token, map[string]string{"amount": "250.25"}, nil)
	c.mustCall(http.MethodPost, userPath+"/transfer", token,
		map[string]any{"from": "checking", "to": "savings", "amount": "200"}, nil)
	c.mustCall(http.MethodPost, userPath+"/zelle", token,
		map[string]any{"from": "savings", "recipient": "grace@example.com", "amount": 50}, nil)
	c.mustCall(http.MethodPost, userPath+"/billpay", token,
		map[string]any{"payee": "City Water", "accountNumber": "77-1", "amount": "60.25"}, nil)
	c.mustCall(http.MethodPost, userPath+"/bitcoin/buy", token,
		map[string]any{"usdAmount": "100", "btcAmount": "0.002"}, nil)

	if code := c.call(http.MethodPost, userPath+"/wire", token,
		map[string]any{"recipientName": "Grace", "bankName": "Navy FCU", "amount": "5000"}, nil); code != http.StatusUnprocessableEntity {
		t.Errorf("overdrawn wire: expected 422, got %d", code)
	}

	// --- Linked external transfer, reversed by admin ---
	var ext domain.ExternalAccount
	c.mustCall(http.MethodPost, userPath+"/external-accounts", token, domain.LinkExternalAccountRequest{
		BankName: "Chase", AccountType: "savings", AccountNumber: "9876543210", RoutingNumber: "021000021",
	}, &ext)
	var staged domain.PendingTransferResult
	c.mustCall(http.MethodPost, userPath+"/external-transfer", token,
		map[string]any{"externalAccountId": ext.ID, "amount": "90"}, &staged)
	c.mustCall(http.MethodPost, "/v1/admin/users/"+ada.User.ID+"/pending-transfers/"+staged.Transfer.ID+"/reverse", admin, nil, nil)

	// --- Final state ---
	// checking: 1000 + 250.25 - 200 - 60.25 - 100 - 90 + 90 = 890
	// savings: 200 - 50 = 150
	var user domain.User
	c.mustCall(http.MethodGet, userPath, token, nil, &user)
	if !user.Accounts.Checking.Balance.Equal(dec("890")) {
		t.Errorf("checking: expected 890, got %s", user.Accounts.Checking.Balance)
	}
	if !user.Accounts.Savings.Balance.Equal(dec("150")) {
		t.Errorf("savings: expected 150, got %s", user.Accounts.Savings.Balance)
	}
	if !user.Accounts.Bitcoin.Balance.Equal(dec("0.002")) {
		t.Errorf("bitcoin: expected 0.002, got %s", user.Accounts.Bitcoin.Balance)
	}

	var feed []domain.TransactionRecord
	c.mustCall(http.MethodGet, userPath+"/transactions", token, nil, &feed)
	if len(feed) != 10 {
		t.Fatalf("expected 10 records, got %d", len(feed))
	}
	for i := 1; i < len(feed); i++ {
		if feed[i].Timestamp.After(feed[i-1].Timestamp) {
			t.Fatalf("feed out of order at %d", i)
		}
	}
	if feed[0].Kind != domain.KindCredit || feed[0].Reference != staged.Transfer.ID {
		t.Errorf("expected the reversal credit first, got %+v", feed[0])
	}

	var analytics domain.Analytics
	c.mustCall(http.MethodGet, userPath+"/analytics", token, nil, &analytics)
	// 890 + 150 + 0.002 * 50000
	if !analytics.TotalBalance.Equal(dec("1140")) {
		t.Errorf("analytics total: expected 1140, got %s", analytics.TotalBalance)
	}

	// --- Repair is a no-op on healthy data ---
	var report domain.RepairReport
	c.mustCall(http.MethodPost, "/v1/admin/repair", admin, nil, &report)
	if report.Scanned != 1 || report.Repaired != 0 {
		t.Errorf("unexpected repair report: %+v", report)
	}

	var snapshot domain.LedgerMetrics
	c.mustCall(http.MethodGet, "/v1/metrics/ledger", "", nil, &snapshot)
	if snapshot.FailuresByReason["insufficient_funds"] != 1 {
		t.Errorf("expected one insufficient funds failure, got %v", snapshot.FailuresByReason)
	}
}

// TestIntegration_ConcurrentTransfers checks that parallel requests for one
// user never lose an update.
func TestIntegration_ConcurrentTransfers(t *testing.T) {
	c := startServer(t)

	var reg domain.AuthResponse
	c.mustCall(http.MethodPost, "/v1/auth/register", "", domain.RegisterRequest{
		Name: "Grace", Email: "grace@example.com", Username: "grace", Password: "compiler",
	}, &reg)
	var pin domain.AdminPINResponse
	c.mustCall(http.MethodPost, "/v1/auth/admin-pin", "", domain.AdminPINRequest{PIN: "9999"}, &pin)
	c.mustCall(http.MethodPost, "/v1/admin/users/"+reg.User.ID+"/update-balance", pin.Token,
		map[string]string{"account": "checking", "amount": "100"}, nil)

	const workers = 20
	path := "/v1/users/" + reg.User.ID + "/transfer"
	codes := make([]int, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = c.call(http.MethodPost, path, reg.Token,
				map[string]any{"from": "checking", "to": "savings", "amount": "10"}, nil)
		}(i)
	}
	wg.Wait()

	ok := 0
	for i, code := range codes {
		switch code {
		case http.StatusOK:
			ok++
		case http.StatusUnprocessableEntity:
		default:
			t.Errorf("worker %d: unexpected status %d", i, code)
		}
	}
	if ok != 10 {
		t.Errorf("expected exactly 10 transfers to succeed, got %d", ok)
	}

	var user domain.User
	c.mustCall(http.MethodGet, "/v1/users/"+reg.User.ID, reg.Token, nil, &user)
	if !user.Accounts.Checking.Balance.IsZero() || !user.Accounts.Savings.Balance.Equal(dec("100")) {
		t.Errorf("balances drifted: checking=%s savings=%s",
			user.Accounts.Checking.Balance, user.Accounts.Savings.Balance)
	}
	if got := len(user.Accounts.Savings.Transactions); got != ok {
		t.Errorf("expected %d savings records, got %d", ok, got)
	}
	t.Logf("concurrent transfers: %d ok, %d rejected", ok, workers-ok)
}
