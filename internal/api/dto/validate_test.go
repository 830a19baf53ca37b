package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/spec-kit/assignment-engine/pkg/util/errorutil"
)

func TestValidateReportsJSONFieldNames(t *testing.T) {
	err := Validate(&TransferRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	de := apperrors.ToDomainError(err)
	assert.Equal(t, "required", de.Details["target_user_id"])
	assert.NotContains(t, de.Details, "notes")
}

func TestValidateStatusValues(t *testing.T) {
	assert.NoError(t, Validate(&SetStatusRequest{Status: "on_hold"}))

	err := Validate(&SetStatusRequest{Status: "archived"})
	require.Error(t, err)
	assert.Equal(t, "oneof", apperrors.ToDomainError(err).Details["status"])
}

func TestValidateOptionalBodies(t *testing.T) {
	assert.NoError(t, Validate(&ResolveRequest{}))
	assert.NoError(t, Validate(&NextOwnerRequest{}))
	assert.NoError(t, Validate(&EscalateRequest{Reason: "customer waiting"}))
}
