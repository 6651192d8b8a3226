package service

import (
	"fmt"
	"time"

	"github.com/boddenberg/hecu-bank-go/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenIssuer  = "hecu-bank"
	adminSubject = "admin"
)

// ============================================================
// ValidateToken: used by middleware
// ============================================================

// Claims represents the custom claims in bank tokens. Subject is the user
// id for user tokens and "admin" for admin sessions.
type Claims struct {
	IsAdmin bool `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the user the token was issued to, empty for admin tokens.
func (c *Claims) UserID() string {
	if c.IsAdmin {
		return ""
	}
	return c.Subject
}

// ValidateToken verifies signature, expiry and issuer.
func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithTimeFunc(s.bank.now))
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "invalid or expired token"}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, &domain.ErrUnauthorized{Message: "invalid token"}
	}
	return claims, nil
}

// ============================================================
// Internal JWT helpers
// ============================================================

func (s *AuthService) signUserToken(userID string) (string, time.Time, error) {
	return s.sign(userID, false, s.userTTL)
}

func (s *AuthService) signAdminToken() (string, error) {
	tok, _, err := s.sign(adminSubject, true, s.adminTTL)
	return tok, err
}

func (s *AuthService) sign(subject string, admin bool, ttl time.Duration) (string, time.Time, error) {
	now := s.bank.now()
	expires := now.Add(ttl)
	claims := Claims{
		IsAdmin: admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			Issuer:    tokenIssuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires.UTC(), nil
}
