package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscriptionReferenceFormat(t *testing.T) {
	id := uuid.MustParse("3f1c2a9b-0000-4000-8000-000000000000")
	now := time.Date(2026, 3, 10, 23, 30, 0, 0, time.FixedZone("COT", -5*3600))
	ref := SubscriptionReference(id, now)

	assert.True(t, strings.HasPrefix(ref, "SUB-3F1C2A9B_20260311_"), ref)
	assert.NotEqual(t, ref, SubscriptionReference(id, now))
}

func TestSHA256Hex(t *testing.T) {
	assert.Equal(t,
		"b7c5d8ee3a04ba8a6541975d54a61777870a985dddb7b9d5ae92ad1d1ca7f9b4",
		SHA256Hex("123APPROVED999s3cret"))
	assert.True(t, EqualFoldConstantTime("abc", "ABC"))
	assert.False(t, EqualFoldConstantTime("abc", "abd"))
}

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken("secret", "ops@bizflow.app", RoleAdmin, time.Minute)
	require.NoError(t, err)

	claims, err := ValidateToken("secret", token)
	require.NoError(t, err)
	assert.True(t, claims.IsAdmin())
	assert.Equal(t, "ops@bizflow.app", claims.Email)

	_, err = ValidateToken("other", token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = GenerateToken("", "x", RoleAdmin, time.Minute)
	assert.ErrorIs(t, err, ErrMissingJWTSecret)
}

func TestExpiredTokenRejected(t *testing.T) {
	token, err := GenerateToken("secret", "ops@bizflow.app", RoleAdmin, -time.Minute)
	require.NoError(t, err)

	_, err = ValidateToken("secret", token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
