package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
database:
  postgres:
    host: localhost
    database: veripass
    user: ${TEST_DB_USER}
  redis:
    address: localhost:6379
auth:
  jwt_secret: secret
app:
  site_url: https://veripass.example.edu/
workers:
  process-email-queue:
    enabled: false
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_DefaultsAndExpansion(t *testing.T) {
	t.Setenv("TEST_DB_USER", "gso")

	cfg, err := LoadFromFile(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "gso", cfg.Database.Postgres.User)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "https://veripass.example.edu", cfg.App.SiteURL)
	assert.Equal(t, EmailProviderLog, cfg.Notifications.Email.Provider)
	assert.Equal(t, 3, cfg.Notifications.Queue.MaxAttempts)
	assert.Equal(t, 30*time.Minute, cfg.Notifications.Queue.RetryBackoff())
	assert.Equal(t, 10, cfg.Notifications.Queue.BatchSize)
	assert.Equal(t, 24*time.Hour, cfg.Registration.DraftTTL())

	wc := cfg.Workers["process-email-queue"]
	assert.Equal(t, 5, wc.MaxJobsActive)
	assert.Equal(t, 3, wc.MaxRetries)
	assert.False(t, IsWorkerEnabled(cfg, "process-email-queue"))
	assert.True(t, IsWorkerEnabled(cfg, "dispatch-status-notification"))
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "missing postgres host",
			body:    "database:\n  redis:\n    address: x\nauth:\n  jwt_secret: s\n",
			wantErr: "database.postgres.host",
		},
		{
			name:    "unknown email provider",
			body:    minimalYAML + "notifications:\n  email:\n    provider: pigeon\n",
			wantErr: "notifications.email.provider",
		},
		{
			name:    "smtp without host",
			body:    minimalYAML + "notifications:\n  email:\n    provider: smtp\n",
			wantErr: "integrations.smtp.host",
		},
		{
			name:    "camunda without broker",
			body:    minimalYAML + "camunda:\n  enabled: true\n",
			wantErr: "camunda.broker_address",
		},
	}

	t.Setenv("TEST_DB_USER", "gso")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetWorkerConfig_Fallback(t *testing.T) {
	cfg := &Config{}
	wc := GetWorkerConfig(cfg, "unknown")
	assert.True(t, wc.Enabled)
	assert.Equal(t, 30*time.Second, GetDuration(wc.Timeout))
}

func TestPostgresConfig_GetDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "veripass", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=veripass sslmode=disable", p.GetDSN())
}
