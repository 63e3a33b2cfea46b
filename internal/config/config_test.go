package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	// Create a temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  port: 9090
  host: "127.0.0.1"

provider:
  name: mailgun
  from_email: "hello@mg.example.com"
  from_name: "Sales"
  reply_to: "sales@example.com"
  tracking: true

mailgun:
  api_key: "test-api-key"
  domain: "mg.example.com"
  timeout_seconds: 45

dispatch:
  max_emails_per_day: 500
  batch_size: 100
  delay_between_batches_seconds: 5
  timezone: "America/Sao_Paulo"

templates:
  default_name: "Cliente"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Addr())

	assert.Equal(t, "test-api-key", cfg.Mailgun.APIKey)
	assert.Equal(t, "mg.example.com", cfg.Mailgun.Domain)
	assert.Equal(t, 45*time.Second, cfg.Mailgun.Timeout())
	assert.True(t, cfg.Provider.Tracking)

	assert.Equal(t, 500, cfg.Dispatch.MaxEmailsPerDay)
	assert.Equal(t, 100, cfg.Dispatch.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.Dispatch.Delay())
	assert.Equal(t, "America/Sao_Paulo", cfg.Dispatch.Location().String())
	assert.Equal(t, "Cliente", cfg.Templates.DefaultName)

	require.NoError(t, cfg.Validate())
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, "mailgun", cfg.Provider.Name)
	assert.Equal(t, "https://api.mailgun.net", cfg.Mailgun.BaseURL)
	assert.Equal(t, 10000, cfg.Dispatch.MaxEmailsPerDay)
	assert.Equal(t, 1000, cfg.Dispatch.BatchSize)
	assert.Equal(t, 60*time.Second, cfg.Dispatch.Delay())
	assert.Equal(t, 5, cfg.Dispatch.TestModeLimit)
	assert.Equal(t, time.UTC, cfg.Dispatch.Location())
	assert.Equal(t, "there", cfg.Templates.DefaultName)
	assert.True(t, cfg.Provider.Tracking)
	assert.True(t, cfg.Logging.Redact())
}

func TestLoadFromEnv(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
mailgun:
  api_key: "file-key"
  domain: "file.example.com"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	t.Setenv("MAILGUN_API_KEY", "env-key")
	t.Setenv("MAILGUN_DOMAIN", "mg.env.example.com")
	t.Setenv("MAX_EMAILS_PER_DAY", "250")
	t.Setenv("DELAY_BETWEEN_BATCHES", "2")

	cfg, err := LoadFromEnv(configPath)
	require.NoError(t, err)

	// Environment variables should override file values
	assert.Equal(t, "env-key", cfg.Mailgun.APIKey)
	assert.Equal(t, "mg.env.example.com", cfg.Mailgun.Domain)
	assert.Equal(t, 250, cfg.Dispatch.MaxEmailsPerDay)
	assert.Equal(t, 2*time.Second, cfg.Dispatch.Delay())
	assert.Equal(t, "no-reply@mg.env.example.com", cfg.Provider.FromEmail)
}

func TestLoadFromEnvRejectsBadInt(t *testing.T) {
	t.Setenv("BATCH_SIZE", "lots")
	_, err := LoadFromEnv("")
	assert.Error(t, err)
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAILGUN_API_KEY")
	assert.Contains(t, err.Error(), "MAILGUN_DOMAIN")

	cfg.Provider.Name = "resend"
	cfg.Resend.APIKey = "re_123"
	cfg.Provider.FromEmail = "hi@example.com"
	assert.NoError(t, cfg.Validate())

	cfg.Provider.Name = "carrier-pigeon"
	assert.Error(t, cfg.Validate())
}
