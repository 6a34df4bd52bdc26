package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	wrapped := fmt.Errorf("refresh: %w", ErrSessionInactive)

	got := FromError(wrapped)
	assert.Equal(t, "SESSION_INACTIVE", got.Code)
	assert.Equal(t, http.StatusUnauthorized, got.Status)
}

func TestFromErrorHidesUnknownErrors(t *testing.T) {
	got := FromError(errors.New("dial tcp 10.0.0.1:5432: connection refused"))

	assert.Equal(t, ErrInternal.Code, got.Code)
	assert.Equal(t, ErrInternal.Message, got.Message)
	assert.True(t, IsInternal(got))
}

func TestCloneMatchesOriginal(t *testing.T) {
	clone := Clone(ErrNotFound, "partner profile not found")

	assert.Equal(t, "partner profile not found", clone.Message)
	assert.True(t, errors.Is(clone, ErrNotFound))
	assert.False(t, errors.Is(clone, ErrConflict))
	assert.Equal(t, "resource not found", ErrNotFound.Message)
}

func TestWrapUnwraps(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(cause, ErrInternal.Code, ErrInternal.Status, "failed to create session")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to create session: boom", err.Error())
}
