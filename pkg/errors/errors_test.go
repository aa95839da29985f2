package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_ErrorAndUnwrap(t *testing.T) {
	inner := errors.New("boom")
	e := &AppError{Code: "INTERNAL_ERROR", Message: "an internal error occurred", Status: 500, Err: inner}

	assert.Contains(t, e.Error(), "INTERNAL_ERROR")
	assert.Contains(t, e.Error(), "boom")
	assert.True(t, errors.Is(e, inner))
}

func TestConstructors_StatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		status   int
		sentinel error
	}{
		{"not found", NotFound("session", "s-1"), http.StatusNotFound, ErrNotFound},
		{"already exists", AlreadyExists("user", "email", "a@b.c"), http.StatusConflict, ErrAlreadyExists},
		{"invalid input", InvalidInput("bad"), http.StatusBadRequest, ErrInvalidInput},
		{"unauthorized", Unauthorized("invalid credentials"), http.StatusUnauthorized, ErrUnauthorized},
		{"forbidden", Forbidden("nope"), http.StatusForbidden, ErrForbidden},
		{"locked", Locked("account temporarily locked"), http.StatusLocked, ErrLocked},
		{"rate limited", RateLimited("slow down"), http.StatusTooManyRequests, ErrRateLimited},
		{"unavailable", Unavailable("not configured"), http.StatusServiceUnavailable, ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.Status)
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
			assert.True(t, errors.Is(tt.err, tt.sentinel))
		})
	}
}

func TestHTTPStatus_WrappedSentinels(t *testing.T) {
	wrapped := fmt.Errorf("load session: %w", ErrNotFound)
	assert.Equal(t, http.StatusNotFound, HTTPStatus(wrapped))

	assert.Equal(t, http.StatusLocked, HTTPStatus(fmt.Errorf("login: %w", ErrLocked)))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("unknown")))
}

func TestWrap(t *testing.T) {
	err := Wrap(ErrUnauthorized, "verify token")
	assert.True(t, errors.Is(err, ErrUnauthorized))
	assert.Contains(t, err.Error(), "verify token")
}
