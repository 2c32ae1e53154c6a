package auth

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unsignedToken(payload string) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none"}`))
	body := base64.RawURLEncoding.EncodeToString([]byte(payload))
	return header + "." + body + ".sig"
}

func TestMockValidator_ParsesSubject(t *testing.T) {
	v := &MockValidator{}

	claims, err := v.ValidateToken(unsignedToken(`{"sub": "user-42", "name": "Ada", "email": "ada@example.com"}`))
	require.NoError(t, err)

	assert.Equal(t, "user-42", claims.Subject)
	assert.Equal(t, "Ada", claims.Name)
	assert.Equal(t, "ada@example.com", claims.Email)
}

func TestMockValidator_FallsBackOnGarbage(t *testing.T) {
	v := &MockValidator{}

	claims, err := v.ValidateToken("not-a-jwt")
	require.NoError(t, err)

	assert.Equal(t, "dev-user-123", claims.Subject)
	assert.Equal(t, "Dev User", claims.Name)
}

func TestGetAllowedOriginsFromEnv(t *testing.T) {
	t.Setenv("TEST_ALLOWED_ORIGINS", "http://a.example,https://b.example")
	got := GetAllowedOriginsFromEnv("TEST_ALLOWED_ORIGINS", []string{"http://localhost:3000"})
	assert.Equal(t, []string{"http://a.example", "https://b.example"}, got)
}

func TestGetAllowedOriginsFromEnv_Default(t *testing.T) {
	t.Setenv("TEST_ALLOWED_ORIGINS", "")
	got := GetAllowedOriginsFromEnv("TEST_ALLOWED_ORIGINS", []string{"http://localhost:3000"})
	assert.Equal(t, []string{"http://localhost:3000"}, got)
}
