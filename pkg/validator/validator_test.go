package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signup struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"oneof=patient doctor"`
	Day   string `json:"day" validate:"datetime=2006-01-02"`
}

func TestDescribe(t *testing.T) {
	err := New().Struct(signup{Email: "nope", Role: "admin", Day: "2024-01-10"})
	require.Error(t, err)

	assert.Equal(t, "email must be a valid email; role must be one of: patient doctor", Describe(err))
	assert.Equal(t, "boom", Describe(errors.New("boom")))
}

func TestDescribe_Valid(t *testing.T) {
	assert.NoError(t, New().Struct(signup{Email: "jane@clinic.test", Role: "doctor", Day: "2024-01-10"}))
}
