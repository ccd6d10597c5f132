package http

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidator_RegistersSession(t *testing.T) {
	var v *validator.Validate
	require.NotPanics(t, func() { v = newValidator() })

	type sessionForm struct {
		Session string `json:"session" validate:"session"`
	}
	assert.NoError(t, v.Struct(sessionForm{Session: "2024/2025"}))
	assert.Error(t, v.Struct(sessionForm{Session: "2024/2026"}))
}

func TestRegisterValidations_ReportsFailures(t *testing.T) {
	err := registerValidations(validator.New(), map[string]validator.Func{"session": nil})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"session"`)

	err = registerValidations(validator.New(), map[string]validator.Func{"": customValidations["session"]})
	assert.Error(t, err)
}
