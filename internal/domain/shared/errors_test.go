package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	validation := NewValidationError("result", "Create", "subjects[0].score", "score out of range")
	state := NewStateError("result", "Publish", "result is already published")
	write := NewWriteError("result", "Create", errors.New("connection reset"))

	assert.True(t, IsValidation(validation))
	assert.False(t, IsStateError(validation))
	assert.Equal(t, "subjects[0].score", FieldOf(fmt.Errorf("handler: %w", validation)))

	assert.True(t, IsStateError(state))
	assert.True(t, IsStateError(ErrAlreadyPublished))
	assert.False(t, IsValidation(state))

	assert.True(t, IsWriteError(write))
	assert.Contains(t, write.Error(), "connection reset")

	assert.True(t, IsValidation(ErrInvalidBandTable))
	assert.True(t, IsAlreadyExists(ErrIdempotencyKeyReused))
	assert.False(t, errors.Is(ErrIdempotencyKeyReused, ErrDuplicateIdempotent))
}
