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
// Savings goals
// ============================================================

func createSavingsGoalHandler(bankSvc *service.BankingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/users/{userId}/savings-goals")
		defer span.End()

		userID := chi.URLParam(r, "userId")
		span.SetAttributes(attribute.String("user.id", userID))

		var req domain.SavingsGoalRequest
		if !decodeBody(w, r, &req) {
			return
		}

		goal, err := bankSvc.CreateSavingsGoal(ctx, userID, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, goal)
	}
}

func updateSavingsGoalHandler(bankSvc *service.BankingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/users/{userId}/savings-goals/{goalId}")
		defer span.End()

		userID := chi.URLParam(r, "userId")
		goalID := chi.URLParam(r, "goalId")
		span.SetAttributes(
			attribute.String("user.id", userID),
			attribute.String("goal.id", goalID),
		)

		var req domain.SavingsGoalUpdate
		if !decodeBody(w, r, &req) {
			return
		}

		goal, err := bankSvc.UpdateSavingsGoal(ctx, userID, goalID, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, goal)
	}
}

// ============================================================
// Budget & analytics
// ============================================================

func getBudgetHandler(bankSvc *service.BankingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/users/{userId}/budget")
		defer span.End()

		userID := chi.URLParam(r, "userId")
		span.SetAttributes(attribute.String("user.id", userID))

		view, err := bankSvc.GetBudget(ctx, userID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func getAnalyticsHandler(bankSvc *service.BankingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/users/{userId}/analytics")
		defer span.End()

		userID := chi.URLParam(r, "userId")
		span.SetAttributes(attribute.String("user.id", userID))

		analytics, err := bankSvc.GetAnalytics(ctx, userID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, analytics)
	}
}

// ============================================================
// Notifications
// ============================================================

func listNotificationsHandler(bankSvc *service.BankingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/users/{userId}/notifications")
		defer span.End()

		userID := chi.URLParam(r, "userId")
		span.SetAttributes(attribute.String("user.id", userID))

		notifications, err := bankSvc.ListNotifications(ctx, userID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, notifications)
	}
}

func markNotificationReadHandler(bankSvc *service.BankingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/users/{userId}/notifications/{notificationId}/read")
		defer span.End()

		userID := chi.URLParam(r, "userId")
		notificationID := chi.URLParam(r, "notificationId")
		span.SetAttributes(attribute.String("user.id", userID))

		n, err := bankSvc.MarkNotificationRead(ctx, userID, notificationID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, n)
	}
}
