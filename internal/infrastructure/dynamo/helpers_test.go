package dynamo

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-auth-sessions/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildUpdateExpr_SingleField(t *testing.T) {
	ue, err := buildUpdateExpr(map[string]interface{}{"name": "alice"})
	require.NoError(t, err)
	assert.Equal(t, "SET #f0 = :v0", ue.Expr)
	assert.Equal(t, map[string]string{"#f0": "name"}, ue.Names)
	_, ok := ue.Values[":v0"]
	assert.True(t, ok)
}

func TestBuildUpdateExpr_MultipleFields_Deterministic(t *testing.T) {
	updates := map[string]interface{}{
		"email":         "a@b.com",
		"name":          "Alice",
		"password_hash": "h",
	}
	// Call twice to verify determinism.
	ue1, err := buildUpdateExpr(updates)
	require.NoError(t, err)
	ue2, err := buildUpdateExpr(updates)
	require.NoError(t, err)

	assert.Equal(t, ue1.Expr, ue2.Expr)

	// Keys must be sorted: email < name < password_hash
	assert.Equal(t, "email", ue1.Names["#f0"])
	assert.Equal(t, "name", ue1.Names["#f1"])
	assert.Equal(t, "password_hash", ue1.Names["#f2"])
	assert.Equal(t, "SET #f0 = :v0, #f1 = :v1, #f2 = :v2", ue1.Expr)
}

func TestBuildUpdateExpr_NilRemoves(t *testing.T) {
	ue, err := buildUpdateExpr(map[string]interface{}{
		fieldFailedLoginAttempts: 0,
		fieldLockedUntil:         nil,
	})
	require.NoError(t, err)
	assert.Equal(t, "SET #f0 = :v0 REMOVE #f1", ue.Expr)
	assert.Equal(t, fieldLockedUntil, ue.Names["#f1"])
	_, hasV1 := ue.Values[":v1"]
	assert.False(t, hasV1)
}

func TestBuildUpdateExpr_OnlyRemoves(t *testing.T) {
	ue, err := buildUpdateExpr(map[string]interface{}{
		fieldResetToken:        nil,
		fieldResetTokenExpires: nil,
	})
	require.NoError(t, err)
	assert.Equal(t, "REMOVE #f0, #f1", ue.Expr)
	assert.Nil(t, ue.Values)
}

func TestBuildUpdateExpr_ValuesMarshalledCorrectly(t *testing.T) {
	ue, err := buildUpdateExpr(map[string]interface{}{"two_factor_enabled": true})
	require.NoError(t, err)
	av, ok := ue.Values[":v0"]
	require.True(t, ok)
	boolVal, isBool := av.(*types.AttributeValueMemberBOOL)
	require.True(t, isBool)
	assert.True(t, boolVal.Value)
}

func TestBuildUpdateExpr_EmptyMap_ReturnsError(t *testing.T) {
	_, err := buildUpdateExpr(map[string]interface{}{})
	assert.ErrorContains(t, err, "no fields to update")
}

func TestNotFoundOnConditionFailure(t *testing.T) {
	err := notFoundOnConditionFailure(fmt.Errorf("op: %w", &types.ConditionalCheckFailedException{}), "session")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	other := errors.New("throttled")
	assert.Equal(t, other, notFoundOnConditionFailure(other, "session"))
}
