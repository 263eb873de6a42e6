package main

import (
	"testing"
	"time"

	"gator-chat/simulator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOptionsDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-env")

	opts, err := parseOptions(nil)
	require.NoError(t, err)

	config := opts.simConfig()
	defaults := simulator.DefaultSimConfig()
	defaults.JWTSecret = "from-env"
	assert.Equal(t, defaults, config)
}

func TestParseOptionsOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-env")

	opts, err := parseOptions([]string{
		"--url", "http://chat:9000",
		"--users", "5",
		"-d", "30s",
		"--rate", "120",
		"--jwt-secret", "from-flag",
		"--debug",
	})
	require.NoError(t, err)

	config := opts.simConfig()
	assert.Equal(t, "http://chat:9000", config.EngineURL)
	assert.Equal(t, 5, config.NumUsers)
	assert.Equal(t, 30*time.Second, config.SimulationTime)
	assert.Equal(t, 120.0, config.MessageFrequency)
	assert.Equal(t, "from-flag", config.JWTSecret)
	assert.True(t, opts.Debug)
}

func TestParseOptionsRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := parseOptions(nil)
	assert.ErrorContains(t, err, "JWT secret is required")
}
