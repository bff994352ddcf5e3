package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"newbusiness/webhook"
)

func sqliteEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_SQLITE_PATH", filepath.Join(t.TempDir(), "admin.db"))
	t.Setenv("JWT_SECRET", "jwt")
	t.Setenv("SENTRY_DSN", "")
	t.Setenv("AGENCY_CRM_WEBHOOK_URL", "")
}

func TestRunUnknownCommand(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), "migrate-everything", nil, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown command "migrate-everything"`)

	err = run(context.Background(), "sweep", []string{"-bogus"}, &out)
	assert.Error(t, err)
}

func TestRunSweepAndCleanupOnEmptyDatabase(t *testing.T) {
	sqliteEnv(t)
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, run(ctx, "sweep", nil, &out))
	assert.Equal(t, "updated 0 lead statuses\n", out.String())

	out.Reset()
	require.NoError(t, run(ctx, "cleanup-duplicates", []string{"-dry-run"}, &out))
	assert.Contains(t, out.String(), "{")
}

func TestRunSetupWebhookWithoutURL(t *testing.T) {
	sqliteEnv(t)

	var out bytes.Buffer
	err := run(context.Background(), "setup-webhook", nil, &out)
	assert.ErrorIs(t, err, webhook.ErrNoTargetURL)
}
