// Package identity authenticates API keys into actors.
//
// A key has the form "<actor id>.<secret>". Only a bcrypt hash of the
// secret is stored, next to the actor's role and linked students.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/alem-hub/school-results/internal/domain/shared"
)

// secretBytes is the entropy of a generated key secret.
const secretBytes = 32

// ActorRecord is a stored actor with its credential.
type ActorRecord struct {
	Actor      shared.Actor
	SecretHash []byte
	Active     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Store persists actor records.
type Store interface {
	// GetActor returns the record or an error matching shared.ErrNotFound.
	GetActor(ctx context.Context, id string) (*ActorRecord, error)

	// SaveActor inserts or replaces a record.
	SaveActor(ctx context.Context, rec *ActorRecord) error

	// CountActors returns the number of stored actors.
	CountActors(ctx context.Context) (int, error)
}

// Authenticator resolves API keys to actors.
type Authenticator struct {
	store Store
	cost  int
	now   func() time.Time
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithCost sets the bcrypt cost used for new keys.
func WithCost(cost int) Option {
	return func(a *Authenticator) {
		a.cost = cost
	}
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(store Store, opts ...Option) *Authenticator {
	a := &Authenticator{
		store: store,
		cost:  bcrypt.DefaultCost,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Authenticate verifies key and returns its actor. Every failure is
// reported as shared.ErrInvalidAPIKey so callers cannot enumerate actor IDs.
func (a *Authenticator) Authenticate(ctx context.Context, key string) (shared.Actor, error) {
	id, secret, ok := SplitKey(key)
	if !ok {
		return shared.Actor{}, shared.ErrInvalidAPIKey
	}

	rec, err := a.store.GetActor(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.Actor{}, shared.ErrInvalidAPIKey
		}
		return shared.Actor{}, fmt.Errorf("failed to load actor: %w", err)
	}
	if !rec.Active {
		return shared.Actor{}, shared.ErrInvalidAPIKey
	}

	if err := bcrypt.CompareHashAndPassword(rec.SecretHash, []byte(secret)); err != nil {
		return shared.Actor{}, shared.ErrInvalidAPIKey
	}

	return rec.Actor, nil
}

// IssueKey creates a new actor and returns it with its one-time API key.
func (a *Authenticator) IssueKey(ctx context.Context, name string, role shared.Role, studentIDs []string) (shared.Actor, string, error) {
	if !role.IsValid() {
		return shared.Actor{}, "", shared.ErrInvalidActorRole
	}
	if strings.TrimSpace(name) == "" {
		return shared.Actor{}, "", shared.NewValidationError("identity", "IssueKey", "name", "is required")
	}

	secret, err := generateSecret()
	if err != nil {
		return shared.Actor{}, "", err
	}

	actor := shared.Actor{
		ID:   uuid.NewString(),
		Name: strings.TrimSpace(name),
		Role: role,
	}
	if role == shared.RoleParent {
		actor.StudentIDs = studentIDs
	}

	if err := a.save(ctx, actor, secret); err != nil {
		return shared.Actor{}, "", err
	}

	return actor, JoinKey(actor.ID, secret), nil
}

// Bootstrap makes sure the admin encoded in key exists. It is a no-op when
// the actor is already stored, so restarts never rotate its secret.
func (a *Authenticator) Bootstrap(ctx context.Context, key string) (bool, error) {
	id, secret, ok := SplitKey(key)
	if !ok {
		return false, fmt.Errorf("bootstrap admin key: %w", shared.ErrInvalidAPIKey)
	}

	_, err := a.store.GetActor(ctx, id)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return false, fmt.Errorf("failed to load bootstrap admin: %w", err)
	}

	admin := shared.Actor{ID: id, Name: "Bootstrap Admin", Role: shared.RoleAdmin}
	if err := a.save(ctx, admin, secret); err != nil {
		return false, err
	}
	return true, nil
}

func (a *Authenticator) save(ctx context.Context, actor shared.Actor, secret string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), a.cost)
	if err != nil {
		return fmt.Errorf("failed to hash key: %w", err)
	}

	now := a.now()
	rec := &ActorRecord{
		Actor:      actor,
		SecretHash: hash,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := a.store.SaveActor(ctx, rec); err != nil {
		return fmt.Errorf("failed to save actor %s: %w", actor.ID, err)
	}
	return nil
}

// SplitKey splits "<id>.<secret>" at the last dot.
func SplitKey(key string) (id, secret string, ok bool) {
	key = strings.TrimSpace(key)
	i := strings.LastIndexByte(key, '.')
	if i <= 0 || i == len(key)-1 {
		return "", "", false
	}
	return key[:i], key[i+1:], true
}

// JoinKey builds an API key.
func JoinKey(id, secret string) string {
	return id + "." + secret
}

func generateSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate key secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
