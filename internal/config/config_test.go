package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every key LoadConfig reads so a developer's shell does not
// leak into the test.
func clearEnv(t *testing.T) {
	for _, key := range []string{
		"PORT", "HOST", "METRICS_ENABLED", "DB_TYPE", "DATABASE_URL", "DB_HOST", "DB_PORT",
		"DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSL_MODE", "MONGO_URI", "MONGO_DATABASE",
		"JWT_SECRET", "JWT_ISSUER", "ALLOWED_ORIGINS", "DEBUG", "REQUEST_TIMEOUT",
		"TYPING_WINDOW", "TYPING_REAP_INTERVAL", "USER_CACHE_SIZE", "AVATAR_STYLE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/chat?sslmode=disable")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.True(t, cfg.Server.MetricsEnabled)
	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, 2*time.Second, cfg.Presence.TypingWindow)
	assert.Equal(t, 30*time.Second, cfg.Presence.ReapInterval)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, "gator-chat", cfg.Auth.Issuer)
}

func TestLoadConfigRequiresSecret(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_TYPE", "memory")

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestLoadConfigPostgresFromParts(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_USER", "chat")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "6543")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "postgresql://chat:pw@db:6543/postgres?sslmode=require", cfg.Database.URI)

	t.Setenv("DB_PASSWORD", "")
	_, err = LoadConfig()
	assert.ErrorContains(t, err, "DB_PASSWORD")
}

func TestLoadConfigOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_TYPE", "mongo")
	t.Setenv("TYPING_WINDOW", "500ms")
	t.Setenv("TYPING_REAP_INTERVAL", "0s")
	t.Setenv("USER_CACHE_SIZE", "0")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test,http://b.test")
	t.Setenv("DEBUG", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Database.URI)
	assert.Equal(t, "gator_chat", cfg.Database.Name)
	assert.Equal(t, 500*time.Millisecond, cfg.Presence.TypingWindow)
	assert.Zero(t, cfg.Presence.ReapInterval)
	assert.Zero(t, cfg.UserCacheSize)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins)
	assert.True(t, cfg.Debug)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_TYPE", "sqlite")
	_, err := LoadConfig()
	assert.ErrorContains(t, err, "DB_TYPE")

	t.Setenv("DB_TYPE", "memory")
	t.Setenv("TYPING_WINDOW", "soon")
	_, err = LoadConfig()
	assert.ErrorContains(t, err, "TYPING_WINDOW")

	t.Setenv("TYPING_WINDOW", "")
	t.Setenv("USER_CACHE_SIZE", "-1")
	_, err = LoadConfig()
	assert.ErrorContains(t, err, "USER_CACHE_SIZE")
}
