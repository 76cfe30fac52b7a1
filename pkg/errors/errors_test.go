package errors

import (
	"database/sql"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCode(t *testing.T) {
	cases := []struct {
		err  *AppError
		want int
	}{
		{NotFound("doctor", nil), http.StatusNotFound},
		{Validation("bad date", nil), http.StatusBadRequest},
		{InvalidCredentials(), http.StatusUnauthorized},
		{Forbidden("patients only"), http.StatusForbidden},
		{AlreadyBooked(nil), http.StatusConflict},
		{AlreadyPaid(), http.StatusConflict},
		{Internal(fmt.Errorf("boom")), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.err.StatusCode(), tc.err.Message)
	}
}

func TestIsFollowsWrapping(t *testing.T) {
	err := fmt.Errorf("booking: %w", AlreadyBooked(nil))

	assert.True(t, Is(err, ErrAlreadyBooked))
	assert.False(t, Is(err, ErrNotFound))
	assert.False(t, Is(sql.ErrNoRows, ErrNotFound))
}

func TestErrorIncludesCause(t *testing.T) {
	err := NotFound("patient", sql.ErrNoRows)

	assert.Equal(t, "patient not found: sql: no rows in result set", err.Error())
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
