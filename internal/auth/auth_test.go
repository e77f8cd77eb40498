package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	svc := NewService("test-secret")
	svc.RegisterAPICredentials("alice", "alice-secret")

	token, err := svc.GenerateToken(Credentials{APIKey: "alice", APISecret: "alice-secret"})
	require.NoError(t, err)
	assert.NotEmpty(t, token.Token)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), token.Expiration, time.Minute)

	claims, err := svc.ValidateToken(token.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.ClientID)
	assert.Contains(t, claims.Permissions, "market")
}

func TestGenerateToken_InvalidCredentials(t *testing.T) {
	svc := NewService("test-secret")
	svc.RegisterAPICredentials("alice", "alice-secret")

	_, err := svc.GenerateToken(Credentials{APIKey: "alice", APISecret: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.GenerateToken(Credentials{APIKey: "unknown", APISecret: "whatever"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	svc := NewService("test-secret")
	svc.RegisterAPICredentials("alice", "alice-secret")

	token, err := svc.GenerateToken(Credentials{APIKey: "alice", APISecret: "alice-secret"})
	require.NoError(t, err)

	other := NewService("different-secret")
	_, err = other.ValidateToken(token.Token)
	assert.Error(t, err)
}

func TestValidateToken_Garbage(t *testing.T) {
	svc := NewService("test-secret")

	_, err := svc.ValidateToken("not-a-token")
	assert.Error(t, err)
}
