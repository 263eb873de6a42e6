package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gator-chat/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	v := NewTokenValidator("secret", "gator-chat")
	token, err := v.GenerateToken(models.Identity{Subject: "alice", Name: "Alice", PictureURL: "https://img.example.com/a.png"}, time.Hour)
	require.NoError(t, err)

	identity, err := v.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", identity.Subject)
	assert.Equal(t, "Alice", identity.Name)
	assert.Equal(t, "https://img.example.com/a.png", identity.PictureURL)
}

func TestValidateRejects(t *testing.T) {
	v := NewTokenValidator("secret", "gator-chat")

	expired, err := v.GenerateToken(models.Identity{Subject: "alice"}, -time.Minute)
	require.NoError(t, err)
	_, err = v.Validate(expired)
	assert.Error(t, err)

	foreign, err := NewTokenValidator("other-secret", "gator-chat").GenerateToken(models.Identity{Subject: "alice"}, time.Hour)
	require.NoError(t, err)
	_, err = v.Validate(foreign)
	assert.Error(t, err)

	otherIssuer, err := NewTokenValidator("secret", "someone-else").GenerateToken(models.Identity{Subject: "alice"}, time.Hour)
	require.NoError(t, err)
	_, err = v.Validate(otherIssuer)
	assert.Error(t, err)

	noSubject, err := v.GenerateToken(models.Identity{}, time.Hour)
	require.NoError(t, err)
	_, err = v.Validate(noSubject)
	assert.Error(t, err)
}

func TestAuthenticate(t *testing.T) {
	v := NewTokenValidator("secret", "")
	var seen *models.Identity
	handler := v.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, seen, "no token means anonymous")

	token, err := v.GenerateToken(models.Identity{Subject: "bob"}, time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "bob", seen.Subject)

	req = httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "UNAUTHENTICATED")
}

func TestCORSPreflight(t *testing.T) {
	handler := CORSMiddleware(DefaultCORSConfig([]string{"https://chat.example.com"}))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/users", nil)
	req.Header.Set("Origin", "https://chat.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://chat.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
