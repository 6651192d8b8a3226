package handler

import (
	"net/http"

	"github.com/boddenberg/hecu-bank-go/internal/domain"
	"github.com/boddenberg/hecu-bank-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Admin console
// ============================================================

func listUsersHandler(bankSvc *service.BankingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/users")
		defer span.End()

		users, err := bankSvc.ListUsers(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.Int("users.count", len(users)))
		writeJSON(w, http.StatusOK, users)
	}
}

func listAllTransactionsHandler(bankSvc *service.BankingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/transactions")
		defer span.End()

		feed, err := bankSvc.ListAllTransactions(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.Int("transactions.count", len(feed)))
		writeJSON(w, http.StatusOK, feed)
	}
}

func adminTransferHandler(bankSvc *service.BankingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/admin/transfer")
		defer span.End()

		var req domain.AdminTransferRequest
		if !decodeBody(w, r, &req) {
			return
		}

		resp, err := bankSvc.AdminTransfer(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func repairHandler(bankSvc *service.BankingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/admin/repair")
		defer span.End()

		report, err := bankSvc.RepairAll(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(
			attribute.Int("repair.scanned", report.Scanned),
			attribute.Int("repair.repaired", report.Repaired),
		)
		writeJSON(w, http.StatusOK, report)
	}
}

func toggleSuspendHandler(bankSvc *service.BankingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/admin/users/{userId}/toggle-suspend")
		defer span.End()

		userID := chi.URLParam(r, "userId")
		span.SetAttributes(attribute.String("user.id", userID))

		user, err := bankSvc.ToggleSuspend(ctx, userID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}

// ============================================================
// Pending external transfers
// ============================================================

func settlePendingHandler(bankSvc *service.BankingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/admin/users/{userId}/pending-transfers/{transferId}/settle")
		defer span.End()

		userID := chi.URLParam(r, "userId")
		transferID := chi.URLParam(r, "transferId")
		span.SetAttributes(
			attribute.String("user.id", userID),
			attribute.String("transfer.id", transferID),
		)

		pt, err := bankSvc.SettlePendingTransfer(ctx, userID, transferID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, pt)
	}
}

func reversePendingHandler(bankSvc *service.BankingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/admin/users/{userId}/pending-transfers/{transferId}/reverse")
		defer span.End()

		userID := chi.URLParam(r, "userId")
		transferID := chi.URLParam(r, "transferId")
		span.SetAttributes(
			attribute.String("user.id", userID),
			attribute.String("transfer.id", transferID),
		)

		resp, err := bankSvc.ReversePendingTransfer(ctx, userID, transferID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
