package jwt

import (
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndValidate(t *testing.T) {
	m, err := NewManager(time.Hour, "chat")
	require.NoError(t, err)

	token, exp, err := m.GenerateAccessToken("u1", "a@example.com", "alice", []string{"member"})
	require.NoError(t, err)
	assert.Greater(t, exp, time.Now().Unix())

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, []string{"member"}, claims.Roles)

	_, err = m.ValidateToken(token + "x")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExpiredToken(t *testing.T) {
	m, err := NewManager(-time.Minute, "chat")
	require.NoError(t, err)
	token, _, err := m.GenerateAccessToken("u1", "", "alice", nil)
	require.NoError(t, err)

	_, err = m.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestIssuerMismatch(t *testing.T) {
	m, err := NewManager(time.Hour, "someone-else")
	require.NoError(t, err)
	token, _, err := m.GenerateAccessToken("u1", "", "alice", nil)
	require.NoError(t, err)

	v := &Manager{publicKey: m.publicKey, issuer: "chat"}
	_, err = v.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifierFromFile(t *testing.T) {
	m, err := NewManager(time.Hour, "chat")
	require.NoError(t, err)

	der, err := x509.MarshalPKIXPublicKey(m.publicKey)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "public.pem")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), 0o600))

	v, err := NewVerifierFromFile(path, "chat")
	require.NoError(t, err)

	token, _, err := m.GenerateAccessToken("u1", "", "alice", nil)
	require.NoError(t, err)
	claims, err := v.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)

	_, _, err = v.GenerateAccessToken("u1", "", "alice", nil)
	assert.ErrorIs(t, err, ErrCannotSign)

	_, err = NewVerifierFromFile(filepath.Join(t.TempDir(), "missing.pem"), "chat")
	assert.Error(t, err)
}
