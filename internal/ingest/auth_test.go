package ingest

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBearerTokenExtractsToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set("Authorization", "Bearer vnk_abc123")

	token, err := bearerToken(r)
	require.NoError(t, err)
	assert.Equal(t, "vnk_abc123", token)
}

func TestBearerTokenMissingHeader(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", nil)

	_, err := bearerToken(r)
	assert.ErrorIs(t, err, errNoBearerToken)
}

func TestBearerTokenWrongScheme(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")

	_, err := bearerToken(r)
	assert.ErrorIs(t, err, errNoBearerToken)
}

func TestBearerTokenEmptyAfterPrefix(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set("Authorization", "Bearer ")

	_, err := bearerToken(r)
	assert.ErrorIs(t, err, errNoBearerToken)
}
