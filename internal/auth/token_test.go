package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndValidate(t *testing.T) {
	ts := NewTokenService("test-secret", 30*time.Minute)
	now := time.Now()

	token, err := ts.Issue("alice", now)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	subject, ok := ts.Validate(token, now.Add(29*time.Minute))
	assert.True(t, ok)
	assert.Equal(t, "alice", subject)
}

func TestValidateExpiredToken(t *testing.T) {
	ts := NewTokenService("test-secret", 30*time.Minute)
	now := time.Now()

	token, err := ts.Issue("alice", now)
	require.NoError(t, err)

	_, ok := ts.Validate(token, now.Add(31*time.Minute))
	assert.False(t, ok)
}

func TestValidateWrongSecret(t *testing.T) {
	now := time.Now()
	token, err := NewTokenService("secret-one", 30*time.Minute).Issue("alice", now)
	require.NoError(t, err)

	_, ok := NewTokenService("secret-two", 30*time.Minute).Validate(token, now)
	assert.False(t, ok)
}

func TestValidateMalformedToken(t *testing.T) {
	ts := NewTokenService("test-secret", 30*time.Minute)
	now := time.Now()

	for _, token := range []string{"", "garbage", "a.b.c"} {
		_, ok := ts.Validate(token, now)
		assert.False(t, ok, "token %q should be invalid", token)
	}
}
