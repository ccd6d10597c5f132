package identity

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/alem-hub/school-results/internal/domain/shared"
)

type memoryStore struct {
	mu      sync.Mutex
	records map[string]*ActorRecord
	err     error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: make(map[string]*ActorRecord)}
}

func (s *memoryStore) GetActor(_ context.Context, id string) (*ActorRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	rec, ok := s.records[id]
	if !ok {
		return nil, shared.ErrActorNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *memoryStore) SaveActor(_ context.Context, rec *ActorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.records[rec.Actor.ID] = &cp
	return nil
}

func (s *memoryStore) CountActors(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records), nil
}

func newTestAuthenticator() (*Authenticator, *memoryStore) {
	store := newMemoryStore()
	return NewAuthenticator(store, WithCost(bcrypt.MinCost)), store
}

func TestIssueKeyAndAuthenticate(t *testing.T) {
	auth, store := newTestAuthenticator()
	ctx := context.Background()

	actor, key, err := auth.IssueKey(ctx, " Mrs. Okafor ", shared.RoleTeacher, []string{"ignored"})
	require.NoError(t, err)
	assert.Equal(t, "Mrs. Okafor", actor.Name)
	assert.Empty(t, actor.StudentIDs, "only parents carry linked students")

	got, err := auth.Authenticate(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, actor.ID, got.ID)
	assert.Equal(t, shared.RoleTeacher, got.Role)

	rec := store.records[actor.ID]
	id, secret, ok := SplitKey(key)
	require.True(t, ok)
	assert.Equal(t, actor.ID, id)
	assert.NotContains(t, string(rec.SecretHash), secret)
}

func TestIssueKey_ParentKeepsStudents(t *testing.T) {
	auth, _ := newTestAuthenticator()

	actor, key, err := auth.IssueKey(context.Background(), "Mr. Bello", shared.RoleParent, []string{"s1", "s2"})
	require.NoError(t, err)

	got, err := auth.Authenticate(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, got.StudentIDs)
	assert.Equal(t, actor.StudentIDs, got.StudentIDs)
}

func TestIssueKey_Validation(t *testing.T) {
	auth, _ := newTestAuthenticator()

	_, _, err := auth.IssueKey(context.Background(), "x", shared.Role("janitor"), nil)
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, _, err = auth.IssueKey(context.Background(), "  ", shared.RoleAdmin, nil)
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestAuthenticate_Rejections(t *testing.T) {
	auth, store := newTestAuthenticator()
	ctx := context.Background()

	actor, key, err := auth.IssueKey(ctx, "Admin", shared.RoleAdmin, nil)
	require.NoError(t, err)

	tests := []struct {
		name string
		key  string
	}{
		{"empty", ""},
		{"no separator", "abc"},
		{"empty secret", actor.ID + "."},
		{"unknown actor", "nobody.secret"},
		{"wrong secret", JoinKey(actor.ID, "wrong")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.Authenticate(ctx, tt.key)
			assert.ErrorIs(t, err, shared.ErrUnauthenticated)
		})
	}

	store.records[actor.ID].Active = false
	_, err = auth.Authenticate(ctx, key)
	assert.ErrorIs(t, err, shared.ErrUnauthenticated, "inactive actor")
}

func TestAuthenticate_StoreFailure(t *testing.T) {
	auth, store := newTestAuthenticator()
	store.err = errors.New("connection reset")

	_, err := auth.Authenticate(context.Background(), "a.b")
	require.Error(t, err)
	assert.NotErrorIs(t, err, shared.ErrUnauthenticated)
}

func TestBootstrap(t *testing.T) {
	auth, store := newTestAuthenticator()
	ctx := context.Background()

	created, err := auth.Bootstrap(ctx, "root.s3cret")
	require.NoError(t, err)
	assert.True(t, created)

	actor, err := auth.Authenticate(ctx, "root.s3cret")
	require.NoError(t, err)
	assert.True(t, actor.IsAdmin())

	created, err = auth.Bootstrap(ctx, "root.other")
	require.NoError(t, err)
	assert.False(t, created, "existing admin is left alone")

	_, err = auth.Authenticate(ctx, "root.s3cret")
	assert.NoError(t, err)

	n, _ := store.CountActors(ctx)
	assert.Equal(t, 1, n)

	_, err = auth.Bootstrap(ctx, "malformed")
	assert.Error(t, err)
}
