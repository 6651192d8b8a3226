package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/boddenberg/hecu-bank-go/internal/domain"
	"github.com/boddenberg/hecu-bank-go/internal/infra/observability"
	"github.com/boddenberg/hecu-bank-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

const readinessTimeout = 2 * time.Second

// NewRouter creates the HTTP router with all routes and middleware.
// allowedOrigins enables CORS for the companion front end; empty disables it.
func NewRouter(bankSvc *service.BankingService, authSvc *service.AuthService, metrics *observability.Metrics, allowedOrigins []string, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.TracingMiddleware)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   allowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-Id"},
			ExposedHeaders:   []string{"X-Request-Id"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(bankSvc))
	r.Get("/readyz", readyzHandler(bankSvc, logger))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Get("/metrics/ledger", ledgerMetricsHandler(metrics))

		// =============================================
		// Authentication (public)
		// =============================================
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authRegisterHandler(authSvc, logger))
			r.Post("/login", authLoginHandler(authSvc, logger))
			r.Post("/admin-pin", adminPINHandler(authSvc, logger))
		})

		// =============================================
		// User routes: token subject must own {userId}
		// =============================================
		r.Route("/users/{userId}", func(r chi.Router) {
			r.Use(UserAuthMiddleware(authSvc, logger))

			r.Get("/", getUserHandler(bankSvc, logger))
			r.Get("/transactions", listTransactionsHandler(bankSvc, logger))

			// Money movement
			r.Post("/transfer", mutationHandler("POST /v1/users/{userId}/transfer", bankSvc.InternalTransfer, logger))
			r.Post("/zelle", mutationHandler("POST /v1/users/{userId}/zelle", bankSvc.Zelle, logger))
			r.Post("/wire", mutationHandler("POST /v1/users/{userId}/wire", bankSvc.Wire, logger))
			r.Post("/billpay", mutationHandler("POST /v1/users/{userId}/billpay", bankSvc.BillPay, logger))
			r.Post("/external", mutationHandler("POST /v1/users/{userId}/external", bankSvc.ExternalTransfer, logger))
			r.Post("/external-transfer", mutationHandler("POST /v1/users/{userId}/external-transfer", bankSvc.ExternalTransferToLinked, logger))
			r.Post("/deposit", mutationHandler("POST /v1/users/{userId}/deposit", bankSvc.MobileDeposit, logger))
			r.Post("/bitcoin/buy", mutationHandler("POST /v1/users/{userId}/bitcoin/buy", bankSvc.BuyBitcoin, logger))
			r.Post("/external-accounts", linkExternalAccountHandler(bankSvc, logger))

			// Savings goals, budget, analytics, notifications
			r.Post("/savings-goals", createSavingsGoalHandler(bankSvc, logger))
			r.Post("/savings-goals/{goalId}", updateSavingsGoalHandler(bankSvc, logger))
			r.Get("/budget", getBudgetHandler(bankSvc, logger))
			r.Post("/budget", mutationHandler("POST /v1/users/{userId}/budget", bankSvc.UpdateBudget, logger))
			r.Get("/analytics", getAnalyticsHandler(bankSvc, logger))
			r.Get("/notifications", listNotificationsHandler(bankSvc, logger))
			r.Post("/notifications/{notificationId}/read", markNotificationReadHandler(bankSvc, logger))
		})

		// =============================================
		// Admin console: PIN-issued token required
		// =============================================
		r.Route("/admin", func(r chi.Router) {
			r.Use(AdminOnlyMiddleware(authSvc, logger))

			r.Get("/users", listUsersHandler(bankSvc, logger))
			r.Get("/transactions", listAllTransactionsHandler(bankSvc, logger))
			r.Post("/transfer", adminTransferHandler(bankSvc, logger))
			r.Post("/repair", repairHandler(bankSvc, logger))

			r.Route("/users/{userId}", func(r chi.Router) {
				r.Post("/toggle-suspend", toggleSuspendHandler(bankSvc, logger))
				r.Post("/change-password", changePasswordHandler(authSvc, logger))
				r.Post("/update-balance", mutationHandler("POST /v1/admin/users/{userId}/update-balance", bankSvc.AdminUpdateBalance, logger))
				r.Post("/generate-activity", mutationHandler("POST /v1/admin/users/{userId}/generate-activity", bankSvc.GenerateActivity, logger))
				r.Post("/pending-transfers/{transferId}/settle", settlePendingHandler(bankSvc, logger))
				r.Post("/pending-transfers/{transferId}/reverse", reversePendingHandler(bankSvc, logger))
			})
		})
	})

	return r
}

// ============================================================
// Health & Metrics
// ============================================================

func healthzHandler(bankSvc *service.BankingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().UTC().Format(time.RFC3339)

		start := time.Now()
		err := bankSvc.Ping(r.Context())
		storeStatus := "healthy"
		if err != nil {
			storeStatus = "degraded"
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status: storeStatus,
			Services: []domain.ServiceHealth{
				{Name: "bank-api", Status: "healthy", LastChecked: now},
				{Name: "user-store", Status: storeStatus, LatencyMs: time.Since(start).Milliseconds(), LastChecked: now},
			},
		})
	}
}

func readyzHandler(bankSvc *service.BankingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		if err := bankSvc.Ping(ctx); err != nil {
			logger.Warn("readiness check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func ledgerMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetLedgerSnapshot())
	}
}
