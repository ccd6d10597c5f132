// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"context"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// Role Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Role is the capability an actor holds.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleParent  Role = "parent"
)

// IsValid checks if the role is one of the known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleParent:
		return true
	}
	return false
}

// String returns the string representation.
func (r Role) String() string {
	return string(r)
}

// ParseRole parses a role name case-insensitively.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", ErrInvalidActorRole
	}
	return r, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Actor Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Actor is the identity on whose behalf an operation runs.
type Actor struct {
	ID   string
	Name string
	Role Role

	// StudentIDs lists the children a parent may see. Empty for staff.
	StudentIDs []string
}

// IsAdmin reports whether the actor holds the admin capability.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// IsTeacher reports whether the actor holds the teacher capability.
func (a Actor) IsTeacher() bool { return a.Role == RoleTeacher }

// IsParent reports whether the actor holds the parent capability.
func (a Actor) IsParent() bool { return a.Role == RoleParent }

// IsStaff reports whether the actor may author results.
func (a Actor) IsStaff() bool { return a.IsAdmin() || a.IsTeacher() }

// CanMutate reports whether the actor may edit or publish a result
// created by ownerID: the creating teacher or any admin.
func (a Actor) CanMutate(ownerID string) bool {
	if a.IsAdmin() {
		return true
	}
	return a.IsTeacher() && a.ID == ownerID
}

// IsLinkedTo reports whether the actor is a parent of the given student.
func (a Actor) IsLinkedTo(studentID string) bool {
	for _, id := range a.StudentIDs {
		if id == studentID {
			return true
		}
	}
	return false
}

type actorKey struct{}

// ContextWithActor returns a context carrying the actor.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext extracts the actor set by ContextWithActor.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}

// ActorProvider resolves the current actor for an operation.
type ActorProvider interface {
	CurrentActor(ctx context.Context) (Actor, error)
}

// ContextActorProvider reads the actor placed in the context by the
// transport layer.
type ContextActorProvider struct{}

// CurrentActor implements ActorProvider.
func (ContextActorProvider) CurrentActor(ctx context.Context) (Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.ID == "" {
		return Actor{}, ErrMissingActor
	}
	return actor, nil
}
