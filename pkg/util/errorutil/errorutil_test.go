package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainErrorMatchesByCode(t *testing.T) {
	err := NewConflict("work item is resolved", map[string]any{"id": "1"})

	assert.ErrorIs(t, err, ErrConflict)
	assert.NotErrorIs(t, err, ErrNotFound)

	wrapped := fmt.Errorf("resolve: %w", err)
	assert.ErrorIs(t, wrapped, ErrConflict)
	assert.Equal(t, http.StatusConflict, ToDomainError(wrapped).HTTPStatus)
}

func TestMapError(t *testing.T) {
	assert.NoError(t, MapError(nil))

	domainErr := NewNoOpTransfer("already holds", nil)
	assert.Same(t, domainErr, MapError(domainErr))

	mapped := ToDomainError(MapError(errors.New("connection reset")))
	assert.Equal(t, CodeInternal, mapped.Code)
	assert.Equal(t, http.StatusInternalServerError, mapped.HTTPStatus)
	assert.EqualError(t, mapped.Unwrap(), "connection reset")
}

func TestNotFoundDetails(t *testing.T) {
	err := ToDomainError(NewNotFound("work unit", nil))
	assert.Equal(t, "work unit not found", err.Message)
	assert.NotNil(t, err.Details)
}
