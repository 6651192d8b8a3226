// AuthService handles registration, login, admin PIN
// verification, token validation and admin password resets.

package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/boddenberg/hecu-bank-go/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var authTracer = otel.Tracer("service/auth")

const (
	maxFailedAttempts = 5
	lockDuration      = 30 * time.Minute
	bcryptCost        = 12
	minPasswordLength = 6

	// maxProvisionAttempts bounds retries when generated account numbers collide.
	maxProvisionAttempts = 5
)

const (
	opRegister       = "register"
	opLogin          = "login"
	opChangePassword = "change_password"
)

// AuthConfig carries token and admin settings.
type AuthConfig struct {
	JWTSecret string
	UserTTL   time.Duration
	AdminTTL  time.Duration
	AdminPIN  string
}

// AuthService orchestrates authentication flows. Writes to the user go
// through the banking service's mutation pipeline.
type AuthService struct {
	bank      *BankingService
	jwtSecret []byte
	userTTL   time.Duration
	adminTTL  time.Duration
	adminPIN  string
	logger    *zap.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(bank *BankingService, cfg AuthConfig, logger *zap.Logger) *AuthService {
	userTTL := cfg.UserTTL
	if userTTL <= 0 {
		userTTL = 2 * time.Hour
	}
	adminTTL := cfg.AdminTTL
	if adminTTL <= 0 {
		adminTTL = time.Hour
	}
	return &AuthService{
		bank:      bank,
		jwtSecret: []byte(cfg.JWTSecret),
		userTTL:   userTTL,
		adminTTL:  adminTTL,
		adminPIN:  cfg.AdminPIN,
		logger:    logger,
	}
}

// ============================================================
// Register: POST /v1/auth/register
// ============================================================

func (s *AuthService) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.AuthResponse, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Register")
	defer span.End()

	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	username := strings.TrimSpace(req.Username)
	for _, f := range [][2]string{{"name", name}, {"email", email}, {"username", username}, {"password", req.Password}} {
		if err := required(f[0], f[1]); err != nil {
			return nil, err
		}
	}
	if !strings.Contains(email, "@") {
		return nil, &domain.ErrValidation{Field: "email", Message: "invalid email address"}
	}
	if len(req.Password) < minPasswordLength {
		return nil, &domain.ErrValidation{
			Field:   "password",
			Message: fmt.Sprintf("password must be at least %d characters", minPasswordLength),
		}
	}

	existing, err := s.bank.store.FindByLogin(ctx, email, username)
	if err == nil {
		if existing.Email == email {
			return nil, &domain.ErrConflict{Message: "email already registered"}
		}
		return nil, &domain.ErrConflict{Message: "username already taken"}
	}
	var nf *domain.ErrNotFound
	if !errors.As(err, &nf) {
		return nil, fmt.Errorf("check existing user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	provisioner := s.bank.Provisioner()
	u := provisioner.NewUser(name, email, username, string(hash))
	if err := s.createWithRetry(ctx, u); err != nil {
		s.bank.metrics.IncrFailure(opRegister, failureReason(err))
		return nil, err
	}

	token, expires, err := s.signUserToken(u.ID)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	span.SetAttributes(attribute.String("user.id", u.ID))
	s.logger.Info("user registered",
		zap.String("user_id", u.ID),
		zap.String("username", u.Username),
	)

	return &domain.AuthResponse{
		Message:   "Registration successful",
		User:      u.Sanitized(),
		Token:     token,
		ExpiresAt: expires,
	}, nil
}

// createWithRetry inserts u, drawing fresh account numbers when the store
// reports a collision. Email and username collisions are final.
func (s *AuthService) createWithRetry(ctx context.Context, u *domain.User) error {
	var err error
	for attempt := 1; attempt <= maxProvisionAttempts; attempt++ {
		err = s.bank.store.Create(ctx, u)
		if err == nil {
			return nil
		}
		var dup *domain.ErrDuplicate
		if !errors.As(err, &dup) {
			return fmt.Errorf("create user: %w", err)
		}
		switch dup.Key {
		case "email":
			return &domain.ErrConflict{Message: "email already registered"}
		case "username":
			return &domain.ErrConflict{Message: "username already taken"}
		case accountNumberKey:
			s.logger.Warn("register: account number collision, renumbering",
				zap.String("user_id", u.ID),
				zap.Int("attempt", attempt),
			)
			s.bank.Provisioner().RenumberAccounts(u)
		default:
			return &domain.ErrConflict{Message: "user already exists"}
		}
	}
	return &domain.ErrConflict{Message: fmt.Sprintf("could not allocate account numbers: %v", err)}
}

// ============================================================
// Login: POST /v1/auth/login
// ============================================================

func (s *AuthService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.AuthResponse, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Login")
	defer span.End()

	if strings.TrimSpace(req.Email) == "" && strings.TrimSpace(req.Username) == "" {
		return nil, &domain.ErrValidation{Field: "email", Message: "email or username is required"}
	}
	if err := required("password", req.Password); err != nil {
		return nil, err
	}

	u, err := s.bank.store.FindByLogin(ctx, req.Email, req.Username)
	if err != nil {
		var nf *domain.ErrNotFound
		if errors.As(err, &nf) {
			return nil, &domain.ErrUnauthorized{Message: "invalid credentials"}
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	span.SetAttributes(attribute.String("user.id", u.ID))

	if u.Status == domain.UserSuspended {
		s.logger.Warn("login: account suspended", zap.String("user_id", u.ID))
		return nil, &domain.ErrAccountBlocked{Status: u.Status}
	}

	now := s.bank.now()
	if u.LockUntil != nil && u.LockUntil.After(now) {
		remaining := u.LockUntil.Sub(now).Minutes()
		s.logger.Warn("login: account temporarily locked",
			zap.String("user_id", u.ID),
			zap.Float64("remaining_minutes", remaining),
		)
		return nil, &domain.ErrUnauthorized{
			Message: fmt.Sprintf("account locked, try again in %.0f minutes", remaining),
		}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return nil, s.recordFailedLogin(ctx, u.ID)
	}

	updated, err := s.bank.mutate(ctx, opLogin, u.ID, true, func(t *txn) error {
		t.user.LoginAttempts = 0
		t.user.LockUntil = nil
		t.user.LastLogin = t.at
		return nil
	})
	if err != nil {
		return nil, err
	}

	token, expires, err := s.signUserToken(u.ID)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	s.logger.Info("user logged in", zap.String("user_id", u.ID))
	return &domain.AuthResponse{
		Message:   "Login successful",
		User:      updated.Sanitized(),
		Token:     token,
		ExpiresAt: expires,
	}, nil
}

func (s *AuthService) recordFailedLogin(ctx context.Context, userID string) error {
	var attempts int
	_, err := s.bank.mutate(ctx, opLogin, userID, true, func(t *txn) error {
		t.user.LoginAttempts++
		attempts = t.user.LoginAttempts
		if attempts >= maxFailedAttempts {
			until := t.at.Add(lockDuration)
			t.user.LockUntil = &until
			t.user.LoginAttempts = 0
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("login: could not record failed attempt", zap.String("user_id", userID), zap.Error(err))
	}

	if attempts >= maxFailedAttempts {
		s.logger.Warn("login: account locked after max attempts",
			zap.String("user_id", userID),
			zap.Int("attempts", attempts),
			zap.Duration("lock_duration", lockDuration),
		)
		return &domain.ErrUnauthorized{
			Message: fmt.Sprintf("account locked for %d minutes after %d failed attempts", int(lockDuration.Minutes()), maxFailedAttempts),
		}
	}
	s.logger.Warn("login: failed password attempt",
		zap.String("user_id", userID),
		zap.Int("attempts", attempts),
		zap.Int("max", maxFailedAttempts),
	)
	return &domain.ErrUnauthorized{Message: "invalid credentials"}
}

// ============================================================
// Admin PIN: POST /v1/auth/admin-pin
// ============================================================

// VerifyAdminPIN checks the PIN and, when it matches, issues an admin token.
// A service started without a PIN never grants admin access.
func (s *AuthService) VerifyAdminPIN(ctx context.Context, req *domain.AdminPINRequest) (*domain.AdminPINResponse, error) {
	_, span := authTracer.Start(ctx, "AuthService.VerifyAdminPIN")
	defer span.End()

	if err := required("pin", req.PIN); err != nil {
		return nil, err
	}
	if s.adminPIN == "" || subtle.ConstantTimeCompare([]byte(req.PIN), []byte(s.adminPIN)) != 1 {
		s.logger.Warn("admin pin rejected")
		return &domain.AdminPINResponse{Valid: false}, nil
	}

	token, err := s.signAdminToken()
	if err != nil {
		return nil, fmt.Errorf("sign admin token: %w", err)
	}
	s.logger.Info("admin session started")
	return &domain.AdminPINResponse{Valid: true, Token: token}, nil
}

// ============================================================
// ChangePassword: POST /v1/admin/users/{userId}/change-password
// ============================================================

// ChangePassword resets a user's password and clears any login lock.
func (s *AuthService) ChangePassword(ctx context.Context, userID string, req *domain.ChangePasswordRequest) error {
	ctx, span := authTracer.Start(ctx, "AuthService.ChangePassword")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	if len(req.NewPassword) < minPasswordLength {
		return &domain.ErrValidation{
			Field:   "newPassword",
			Message: fmt.Sprintf("password must be at least %d characters", minPasswordLength),
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if _, err := s.bank.mutate(ctx, opChangePassword, userID, true, func(t *txn) error {
		t.user.PasswordHash = string(hash)
		t.user.LoginAttempts = 0
		t.user.LockUntil = nil
		t.notify(domain.NotifyWarning, "Password Changed", "Your password was reset by an administrator")
		return nil
	}); err != nil {
		return err
	}

	s.logger.Info("password changed", zap.String("user_id", userID))
	return nil
}
