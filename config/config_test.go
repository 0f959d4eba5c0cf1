package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ENV", "test")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 24*time.Hour, cfg.JWT.AccessTTL)
	assert.Equal(t, "none", cfg.MQ.Backend)
	assert.False(t, cfg.Authz.ManagerSeesUnassigned)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("ENV", "prod")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("FRONTEND_URL", "https://dash.example.com/")
	t.Setenv("JWT_ACCESS_TTL", "15m")
	t.Setenv("AUTHZ_MANAGER_SEES_UNASSIGNED", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, "https://dash.example.com", cfg.FrontendURL)
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessTTL)
	assert.True(t, cfg.Authz.ManagerSeesUnassigned)
	assert.True(t, cfg.IsProduction())
}
