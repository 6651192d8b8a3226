// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the ledger and
// service layers from the concrete document stores.
package port

import (
	"context"

	"github.com/boddenberg/hecu-bank-go/internal/domain"
)

// UserStore persists User aggregates as whole documents.
//
// Save is a conditional write: it succeeds only when the stored version
// equals u.Version, bumps the version on success and returns
// *domain.ErrConflict otherwise. Create and Save return
// *domain.ErrDuplicate when email, username or an account number is
// already taken by another user.
type UserStore interface {
	Load(ctx context.Context, userID string) (*domain.User, error)
	LoadByAccountNumber(ctx context.Context, accountNumber string) (*domain.User, error)
	FindByLogin(ctx context.Context, email, username string) (*domain.User, error)
	List(ctx context.Context) ([]*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	Save(ctx context.Context, u *domain.User) error
	Ping(ctx context.Context) error
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
	Purge()
}
