package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/boddenberg/hecu-bank-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// bank_users: one row per User aggregate
// ============================================================

const usersTable = "bank_users"

// userRow maps the bank_users columns. The unique columns mirror fields of
// the document so PostgREST constraints can enforce them.
type userRow struct {
	ID             string          `json:"id"`
	Email          string          `json:"email"`
	Username       string          `json:"username"`
	CheckingNumber *string         `json:"checking_number"`
	SavingsNumber  *string         `json:"savings_number"`
	Version        int64           `json:"version"`
	Document       json.RawMessage `json:"document"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func toRow(u *domain.User) (*userRow, error) {
	doc, err := json.Marshal(u)
	if err != nil {
		return nil, fmt.Errorf("encode user %s: %w", u.ID, err)
	}
	row := &userRow{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		Version:   u.Version,
		Document:  doc,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
	if a := u.Accounts.Checking; a != nil && a.AccountNumber != "" {
		n := a.AccountNumber
		row.CheckingNumber = &n
	}
	if a := u.Accounts.Savings; a != nil && a.AccountNumber != "" {
		n := a.AccountNumber
		row.SavingsNumber = &n
	}
	return row, nil
}

// fromRow decodes the document. The row's version column wins over the
// one embedded in the document.
func fromRow(r *userRow) (*domain.User, error) {
	var u domain.User
	if len(r.Document) > 0 && string(r.Document) != "null" {
		if err := json.Unmarshal(r.Document, &u); err != nil {
			return nil, fmt.Errorf("decode user %s: %w", r.ID, err)
		}
	}
	u.ID = r.ID
	u.Version = r.Version
	if u.Email == "" {
		u.Email = r.Email
	}
	if u.Username == "" {
		u.Username = r.Username
	}
	return &u, nil
}

func (c *Client) Load(ctx context.Context, userID string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Supabase.Load")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	path := fmt.Sprintf("%s?id=eq.%s&limit=1", usersTable, url.QueryEscape(userID))
	return c.findOne(ctx, path, &domain.ErrNotFound{Resource: "user", ID: userID})
}

func (c *Client) LoadByAccountNumber(ctx context.Context, accountNumber string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Supabase.LoadByAccountNumber")
	defer span.End()

	or := fmt.Sprintf("(checking_number.eq.%s,savings_number.eq.%s)", quote(accountNumber), quote(accountNumber))
	path := fmt.Sprintf("%s?or=%s&limit=1", usersTable, url.QueryEscape(or))
	return c.findOne(ctx, path, &domain.ErrNotFound{Resource: "account", ID: accountNumber})
}

func (c *Client) FindByLogin(ctx context.Context, email, username string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Supabase.FindByLogin")
	defer span.End()

	var terms []string
	if email = strings.ToLower(strings.TrimSpace(email)); email != "" {
		terms = append(terms, "email.eq."+quote(email))
	}
	if username = strings.TrimSpace(username); username != "" {
		terms = append(terms, "username.eq."+quote(username))
	}
	if len(terms) == 0 {
		return nil, &domain.ErrNotFound{Resource: "user", ID: ""}
	}
	or := "(" + strings.Join(terms, ",") + ")"
	path := fmt.Sprintf("%s?or=%s&limit=1", usersTable, url.QueryEscape(or))
	return c.findOne(ctx, path, &domain.ErrNotFound{Resource: "user", ID: email + username})
}

// List returns every user ordered by creation time.
func (c *Client) List(ctx context.Context) ([]*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Supabase.List")
	defer span.End()

	var users []*domain.User
	err := c.read(ctx, func() error {
		body, err := c.doRequest(ctx, http.MethodGet, usersTable+"?order=created_at.asc,id.asc")
		if err != nil {
			return err
		}
		var rows []userRow
		if len(body) > 0 {
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("decode users: %w", err)
			}
		}
		users = make([]*domain.User, 0, len(rows))
		for i := range rows {
			u, err := fromRow(&rows[i])
			if err != nil {
				return err
			}
			users = append(users, u)
		}
		return nil
	})
	if err != nil {
		return nil, c.translate(err)
	}
	span.SetAttributes(attribute.Int("users.count", len(users)))
	return users, nil
}

// Create inserts the aggregate at version 1.
func (c *Client) Create(ctx context.Context, u *domain.User) error {
	ctx, span := tracer.Start(ctx, "Supabase.Create")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", u.ID))

	stamped := *u
	stamped.Version = 1
	stamped.UpdatedAt = time.Now().UTC()
	row, err := toRow(&stamped)
	if err != nil {
		return err
	}

	err = c.write(func() error {
		_, err := c.doPost(ctx, usersTable, row)
		return err
	})
	if err != nil {
		return c.translate(err)
	}
	u.Version = stamped.Version
	u.UpdatedAt = stamped.UpdatedAt
	return nil
}

// Save patches the row only when its version still equals u.Version.
func (c *Client) Save(ctx context.Context, u *domain.User) error {
	ctx, span := tracer.Start(ctx, "Supabase.Save")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", u.ID), attribute.Int64("user.version", u.Version))

	next := *u
	next.Version = u.Version + 1
	next.UpdatedAt = time.Now().UTC()
	row, err := toRow(&next)
	if err != nil {
		return err
	}

	path := fmt.Sprintf("%s?id=eq.%s&version=eq.%d", usersTable, url.QueryEscape(u.ID), u.Version)
	var body []byte
	err = c.write(func() error {
		var err error
		body, err = c.doPatch(ctx, path, map[string]any{
			"email":           row.Email,
			"username":        row.Username,
			"checking_number": row.CheckingNumber,
			"savings_number":  row.SavingsNumber,
			"version":         row.Version,
			"document":        row.Document,
			"updated_at":      row.UpdatedAt,
		})
		return err
	})
	if err != nil {
		return c.translate(err)
	}

	var updated []userRow
	if len(body) > 0 {
		if err := json.Unmarshal(body, &updated); err != nil {
			return fmt.Errorf("decode patched user: %w", err)
		}
	}
	if len(updated) == 0 {
		if _, err := c.Load(ctx, u.ID); err != nil {
			return err
		}
		return &domain.ErrConflict{Message: "user " + u.ID + " was modified concurrently"}
	}

	u.Version = next.Version
	u.UpdatedAt = next.UpdatedAt
	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	_, err := c.doRequest(ctx, http.MethodGet, usersTable+"?select=id&limit=1")
	if err != nil {
		return c.translate(err)
	}
	return nil
}

func (c *Client) findOne(ctx context.Context, path string, notFound error) (*domain.User, error) {
	var user *domain.User
	err := c.read(ctx, func() error {
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}
		if body == nil || string(body) == "[]" {
			return notFound
		}

		var rows []userRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("decode user: %w", err)
		}
		if len(rows) == 0 {
			return notFound
		}
		user, err = fromRow(&rows[0])
		return err
	})
	if err != nil {
		return nil, c.translate(err)
	}
	return user, nil
}
