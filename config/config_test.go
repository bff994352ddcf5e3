package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"newbusiness/models"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "integrations.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadIntegrationsFile(t *testing.T) {
	path := writeFile(t, `
integrations:
  agency-crm:
    base_url: http://crm.local/api
    api_key: crm-key
    webhook_secret: crm-secret
    require_signature: true
    webhook_url: http://crm.local/api/webhooks/incoming
  tv-planner:
    base_url: http://planner.local/api
`)

	got, err := LoadIntegrationsFile(path)
	require.NoError(t, err)
	require.Len(t, got, 2)

	crm := got[models.SourceAgencyCRM]
	assert.Equal(t, "http://crm.local/api", crm.BaseURL)
	assert.Equal(t, "crm-key", crm.APIKey)
	assert.Equal(t, "crm-secret", crm.WebhookSecret)
	assert.True(t, crm.RequireSignature)
	assert.Equal(t, "http://crm.local/api/webhooks/incoming", crm.WebhookURL)

	assert.Equal(t, "http://planner.local/api", got[models.SourceTVPlanner].BaseURL)
	assert.False(t, got[models.SourceTVPlanner].RequireSignature)
}

func TestLoadIntegrationsFileRejectsUnknownSource(t *testing.T) {
	path := writeFile(t, "integrations:\n  billing:\n    base_url: http://x\n")
	_, err := LoadIntegrationsFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown integration "billing"`)

	_, err = LoadIntegrationsFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigFromEnv(t *testing.T) {
	path := writeFile(t, "integrations:\n  agency-crm:\n    base_url: http://from-file\n    api_key: file-key\n")

	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("JWT_SECRET", "jwt")
	t.Setenv("SYNC_INTERVAL", "15m")
	t.Setenv("WEBHOOK_TIMEOUT", "bogus")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, ,http://b.test")
	t.Setenv("INTEGRATIONS_FILE", path)
	t.Setenv("AGENCY_CRM_API_KEY", "env-key")
	t.Setenv("TV_PLANNER_REQUIRE_SIGNATURE", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, cfg.SyncInterval)
	assert.Equal(t, 10*time.Second, cfg.WebhookTimeout)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins)

	crm := cfg.Source(models.SourceAgencyCRM)
	assert.Equal(t, "http://from-file", crm.BaseURL)
	assert.Equal(t, "env-key", crm.APIKey)
	assert.True(t, cfg.Source(models.SourceTVPlanner).RequireSignature)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Environment:  "development",
			DB:           DBConfig{Driver: "sqlite"},
			JWTSecret:    "jwt",
			Integrations: map[models.Source]SourceConfig{},
		}
	}

	cfg := base()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10*time.Second, cfg.WebhookTimeout)
	assert.Equal(t, 30*time.Second, cfg.UpstreamTimeout)

	cfg = base()
	cfg.DB.Driver = "mysql"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.DB.Driver = "postgres"
	assert.EqualError(t, cfg.Validate(), "DB_PASSWORD is required")

	cfg = base()
	cfg.JWTSecret = ""
	assert.EqualError(t, cfg.Validate(), "JWT_SECRET is required")

	cfg = base()
	cfg.Environment = "production"
	cfg.Integrations[models.SourceTVPlanner] = SourceConfig{BaseURL: "http://planner"}
	assert.EqualError(t, cfg.Validate(), "tv-planner webhook secret is required in production")
}
