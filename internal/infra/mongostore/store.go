// Package mongostore persists User aggregates as one MongoDB document each.
// Saves are conditional on the stored version so two writers never clobber
// each other.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/boddenberg/hecu-bank-go/internal/domain"
	"github.com/boddenberg/hecu-bank-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("mongostore")

const (
	storeName      = "mongo"
	collectionName = "users"
)

// Store implements port.UserStore on a MongoDB collection.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
	cb     *gobreaker.CircuitBreaker
	cfg    resilience.Config
	logger *zap.Logger
	now    func() time.Time
}

// Connect dials uri, ensures indexes on database.users and returns the store.
func Connect(ctx context.Context, uri, database string, cfg resilience.Config, logger *zap.Logger) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(5*time.Second).
		SetRetryWrites(false))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}

	s := New(client.Database(database).Collection(collectionName), cfg, logger)
	s.client = client
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// New wraps an existing collection.
func New(coll *mongo.Collection, cfg resilience.Config, logger *zap.Logger) *Store {
	return &Store{
		coll:   coll,
		cb:     resilience.NewCircuitBreaker("mongo-users", isBenign),
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Close disconnects the client when the store owns it.
func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

// Index names double as the key reported in ErrDuplicate.
var indexKeys = map[string]string{
	"uniq_email":           "email",
	"uniq_username":        "username",
	"uniq_checking_number": "account_number",
	"uniq_savings_number":  "account_number",
}

// EnsureIndexes creates the unique indexes backing email, username and
// account-number uniqueness. Partial filters skip legacy documents that
// lack the field.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	partial := func(field string) *options.IndexOptions {
		return options.Index().
			SetUnique(true).
			SetPartialFilterExpression(bson.D{{Key: field, Value: bson.D{{Key: "$type", Value: "string"}}}})
	}
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: partial("email").SetName("uniq_email")},
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: partial("username").SetName("uniq_username")},
		{
			Keys:    bson.D{{Key: "accounts.checking.account_number", Value: 1}},
			Options: partial("accounts.checking.account_number").SetName("uniq_checking_number"),
		},
		{
			Keys:    bson.D{{Key: "accounts.savings.account_number", Value: 1}},
			Options: partial("accounts.savings.account_number").SetName("uniq_savings_number"),
		},
	}
	if _, err := s.coll.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("creating indexes: %w", err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, userID string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Mongo.Load")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	return s.findOne(ctx, bson.D{{Key: "_id", Value: userID}}, &domain.ErrNotFound{Resource: "user", ID: userID})
}

func (s *Store) LoadByAccountNumber(ctx context.Context, accountNumber string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Mongo.LoadByAccountNumber")
	defer span.End()

	filter := bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "accounts.checking.account_number", Value: accountNumber}},
		bson.D{{Key: "accounts.savings.account_number", Value: accountNumber}},
	}}}
	return s.findOne(ctx, filter, &domain.ErrNotFound{Resource: "account", ID: accountNumber})
}

func (s *Store) FindByLogin(ctx context.Context, email, username string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Mongo.FindByLogin")
	defer span.End()

	var or bson.A
	if email = strings.ToLower(strings.TrimSpace(email)); email != "" {
		or = append(or, bson.D{{Key: "email", Value: email}})
	}
	if username = strings.TrimSpace(username); username != "" {
		or = append(or, bson.D{{Key: "username", Value: username}})
	}
	if len(or) == 0 {
		return nil, &domain.ErrNotFound{Resource: "user", ID: ""}
	}
	return s.findOne(ctx, bson.D{{Key: "$or", Value: or}}, &domain.ErrNotFound{Resource: "user", ID: email + username})
}

// List returns every user ordered by creation time.
func (s *Store) List(ctx context.Context) ([]*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Mongo.List")
	defer span.End()

	var users []*domain.User
	_, err := s.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, s.cfg, func() error {
			cur, err := s.coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
			if err != nil {
				return err
			}
			defer cur.Close(ctx)

			var docs []userDoc
			if err := cur.All(ctx, &docs); err != nil {
				return err
			}
			users = make([]*domain.User, 0, len(docs))
			for i := range docs {
				u, err := fromDoc(&docs[i])
				if err != nil {
					return resilience.Permanent(err)
				}
				users = append(users, u)
			}
			return nil
		})
	})
	if err != nil {
		return nil, s.translate(err)
	}
	span.SetAttributes(attribute.Int("users.count", len(users)))
	return users, nil
}

// Create inserts a new document at version 1. Account numbers are checked
// across both slots before inserting since the unique indexes are per slot.
func (s *Store) Create(ctx context.Context, u *domain.User) error {
	ctx, span := tracer.Start(ctx, "Mongo.Create")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", u.ID))

	for _, t := range []domain.AccountType{domain.AccountChecking, domain.AccountSavings} {
		if a := u.Slot(t); a != nil && a.AccountNumber != "" {
			_, err := s.LoadByAccountNumber(ctx, a.AccountNumber)
			if err == nil {
				return &domain.ErrDuplicate{Key: "account_number"}
			}
			var nf *domain.ErrNotFound
			if !errors.As(err, &nf) {
				return err
			}
		}
	}

	stamped := *u
	stamped.Version = 1
	stamped.UpdatedAt = s.now().UTC()
	doc, err := toDoc(&stamped)
	if err != nil {
		return err
	}

	_, err = s.cb.Execute(func() (any, error) {
		return s.coll.InsertOne(ctx, doc)
	})
	if err != nil {
		return s.translate(err)
	}
	u.Version = stamped.Version
	u.UpdatedAt = stamped.UpdatedAt
	return nil
}

// Save replaces the document when the stored version equals u.Version.
// Writes are never retried: a timeout may have landed.
func (s *Store) Save(ctx context.Context, u *domain.User) error {
	ctx, span := tracer.Start(ctx, "Mongo.Save")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", u.ID), attribute.Int64("user.version", u.Version))

	next := *u
	next.Version = u.Version + 1
	next.UpdatedAt = s.now().UTC()
	doc, err := toDoc(&next)
	if err != nil {
		return err
	}

	res, err := s.cb.Execute(func() (any, error) {
		return s.coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: u.ID}, {Key: "version", Value: u.Version}}, doc)
	})
	if err != nil {
		return s.translate(err)
	}
	if res.(*mongo.UpdateResult).MatchedCount == 0 {
		if _, err := s.Load(ctx, u.ID); err != nil {
			return err
		}
		return &domain.ErrConflict{Message: "user " + u.ID + " was modified concurrently"}
	}

	u.Version = next.Version
	u.UpdatedAt = next.UpdatedAt
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if s.client == nil {
		return s.coll.Database().Client().Ping(ctx, nil)
	}
	return s.client.Ping(ctx, nil)
}

// findOne runs a retried, breaker-guarded read. notFound is returned as-is
// and never retried.
func (s *Store) findOne(ctx context.Context, filter bson.D, notFound error) (*domain.User, error) {
	var user *domain.User
	_, err := s.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, s.cfg, func() error {
			var doc userDoc
			err := s.coll.FindOne(ctx, filter).Decode(&doc)
			if errors.Is(err, mongo.ErrNoDocuments) {
				return resilience.Permanent(notFound)
			}
			if err != nil {
				return err
			}
			u, err := fromDoc(&doc)
			if err != nil {
				return resilience.Permanent(err)
			}
			user = u
			return nil
		})
	})
	if err != nil {
		return nil, s.translate(err)
	}
	return user, nil
}

// translate maps driver errors onto domain errors.
func (s *Store) translate(err error) error {
	var (
		nf       *domain.ErrNotFound
		conflict *domain.ErrConflict
	)
	switch {
	case errors.As(err, &nf), errors.As(err, &conflict):
		return err
	case mongo.IsDuplicateKeyError(err):
		return &domain.ErrDuplicate{Key: duplicateKey(err)}
	case mongo.IsNetworkError(err), mongo.IsTimeout(err),
		errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests),
		errors.Is(err, context.DeadlineExceeded):
		s.logger.Warn("mongo: store unavailable", zap.Error(err))
		return &domain.ErrStorageUnavailable{Store: storeName, Err: err}
	}
	s.logger.Error("mongo: unexpected error", zap.Error(err))
	return fmt.Errorf("mongo: %w", err)
}

func duplicateKey(err error) string {
	msg := err.Error()
	for index, key := range indexKeys {
		if strings.Contains(msg, index) {
			return key
		}
	}
	return "id"
}

func isBenign(err error) bool {
	if err == nil {
		return true
	}
	var nf *domain.ErrNotFound
	return errors.As(err, &nf) || mongo.IsDuplicateKeyError(err)
}
