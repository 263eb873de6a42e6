package utils

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestIsErrorCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewNotFoundError("Conversation", uuid.Nil))
	assert.True(t, IsErrorCode(err, ErrNotFound))
	assert.False(t, IsErrorCode(err, ErrValidation))
	assert.False(t, IsErrorCode(errors.New("plain"), ErrNotFound))
	assert.False(t, IsErrorCode(nil, ErrNotFound))
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewAppError(ErrDatabase, "Failed to load user", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "Failed to load user: connection refused", err.Error())
	assert.Equal(t, "Not authenticated", NewUnauthenticatedError().Error())
}

func TestAppErrorToHTTPStatus(t *testing.T) {
	tests := map[string]int{
		ErrNotFound:         http.StatusNotFound,
		ErrValidation:       http.StatusBadRequest,
		ErrUnauthenticated:  http.StatusUnauthorized,
		ErrPermissionDenied: http.StatusForbidden,
		ErrDatabase:         http.StatusInternalServerError,
		ErrActorTimeout:     http.StatusInternalServerError,
		"SOMETHING_ELSE":    http.StatusInternalServerError,
	}
	for code, want := range tests {
		assert.Equal(t, want, AppErrorToHTTPStatus(code), code)
	}
}
