package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the whole service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Provider  ProviderConfig  `yaml:"provider"`
	Mailgun   MailgunConfig   `yaml:"mailgun"`
	SES       SESConfig       `yaml:"ses"`
	SMTP      SMTPConfig      `yaml:"smtp"`
	Resend    ResendConfig    `yaml:"resend"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Templates TemplateConfig  `yaml:"templates"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Import    ImportConfig    `yaml:"import"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Port                int    `yaml:"port"`
	Host                string `yaml:"host"`
	ReadTimeoutSeconds  int    `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `yaml:"write_timeout_seconds"`
	// CORSOrigins defaults to any origin when empty.
	CORSOrigins []string `yaml:"cors_origins"`
}

func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type DatabaseConfig struct {
	URL             string `yaml:"url"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_seconds"`
	AutoMigrate     bool   `yaml:"auto_migrate"`
}

// RedisConfig is optional. When URL is set the daily quota counter is kept
// in Redis so every dispatching process shares one limit, and sends are
// serialized across processes with a Redis lock.
type RedisConfig struct {
	URL string `yaml:"url"`
}

type ProviderConfig struct {
	Name      string `yaml:"name"`
	FromEmail string `yaml:"from_email"`
	FromName  string `yaml:"from_name"`
	ReplyTo   string `yaml:"reply_to"`
	Tracking  bool   `yaml:"tracking"`
	TagPrefix string `yaml:"tag_prefix"`
}

type MailgunConfig struct {
	APIKey            string `yaml:"api_key"`
	Domain            string `yaml:"domain"`
	BaseURL           string `yaml:"base_url"`
	TimeoutSeconds    int    `yaml:"timeout_seconds"`
	WebhookSigningKey string `yaml:"webhook_signing_key"`
}

func (c MailgunConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type SESConfig struct {
	Region           string `yaml:"region"`
	AccessKey        string `yaml:"access_key"`
	SecretKey        string `yaml:"secret_key"`
	ConfigurationSet string `yaml:"configuration_set"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	TLS      bool   `yaml:"tls"`
}

type ResendConfig struct {
	APIKey string `yaml:"api_key"`
}

type DispatchConfig struct {
	MaxEmailsPerDay     int     `yaml:"max_emails_per_day"`
	BatchSize           int     `yaml:"batch_size"`
	DelayBetweenBatches int     `yaml:"delay_between_batches_seconds"`
	TestModeLimit       int     `yaml:"test_mode_limit"`
	Timezone            string  `yaml:"timezone"`
	AsyncWorkers        int     `yaml:"async_workers"`
	AsyncQueueSize      int     `yaml:"async_queue_size"`
	MessagesPerSecond   float64 `yaml:"messages_per_second"`
}

func (c DispatchConfig) Delay() time.Duration {
	return time.Duration(c.DelayBetweenBatches) * time.Second
}

// Location resolves Timezone, falling back to UTC when it is unknown.
func (c DispatchConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type TemplateConfig struct {
	DefaultName  string `yaml:"default_name"`
	MarkdownHTML bool   `yaml:"markdown_html"`
}

type ReconcileConfig struct {
	MarkContactBounced bool   `yaml:"mark_contact_bounced"`
	BounceSyncCron     string `yaml:"bounce_sync_cron"`
}

type ImportConfig struct {
	BaseDir  string `yaml:"base_dir"`
	S3Region string `yaml:"s3_region"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	RedactPII  *bool  `yaml:"redact_pii"`
	SentryDSN  string `yaml:"sentry_dsn"`
	Env        string `yaml:"env"`
}

// Redact reports whether PII redaction is on. It defaults to true.
func (c LoggingConfig) Redact() bool {
	return c.RedactPII == nil || *c.RedactPII
}

// Load reads and parses the configuration file. An empty path yields the
// defaults only.
func Load(path string) (*Config, error) {
	// Boolean defaults are set before unmarshalling; keys absent from the
	// file leave them untouched.
	cfg := Config{
		Provider:  ProviderConfig{Tracking: true},
		Templates: TemplateConfig{MarkdownHTML: true},
		Reconcile: ReconcileConfig{MarkContactBounced: true},
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5000
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.ReadTimeoutSeconds == 0 {
		cfg.Server.ReadTimeoutSeconds = 30
	}
	// sync sends hold the request open across batch delays
	if cfg.Server.WriteTimeoutSeconds == 0 {
		cfg.Server.WriteTimeoutSeconds = 3600
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 300
	}
	if cfg.Provider.Name == "" {
		cfg.Provider.Name = "mailgun"
	}
	if cfg.Provider.FromName == "" {
		cfg.Provider.FromName = "Cold Email Service"
	}
	if cfg.Provider.TagPrefix == "" {
		cfg.Provider.TagPrefix = "cold-email-campaign"
	}
	if cfg.Mailgun.BaseURL == "" {
		cfg.Mailgun.BaseURL = "https://api.mailgun.net"
	}
	if cfg.Mailgun.TimeoutSeconds == 0 {
		cfg.Mailgun.TimeoutSeconds = 30
	}
	if cfg.SES.Region == "" {
		cfg.SES.Region = "us-east-1"
	}
	if cfg.SMTP.Port == 0 {
		cfg.SMTP.Port = 587
	}
	if cfg.Dispatch.MaxEmailsPerDay == 0 {
		cfg.Dispatch.MaxEmailsPerDay = 10000
	}
	if cfg.Dispatch.BatchSize == 0 {
		cfg.Dispatch.BatchSize = 1000
	}
	if cfg.Dispatch.DelayBetweenBatches == 0 {
		cfg.Dispatch.DelayBetweenBatches = 60
	}
	if cfg.Dispatch.TestModeLimit == 0 {
		cfg.Dispatch.TestModeLimit = 5
	}
	if cfg.Dispatch.Timezone == "" {
		cfg.Dispatch.Timezone = "UTC"
	}
	if cfg.Dispatch.AsyncWorkers == 0 {
		cfg.Dispatch.AsyncWorkers = 1
	}
	if cfg.Dispatch.AsyncQueueSize == 0 {
		cfg.Dispatch.AsyncQueueSize = 32
	}
	if cfg.Dispatch.MessagesPerSecond == 0 {
		cfg.Dispatch.MessagesPerSecond = 10
	}
	if cfg.Templates.DefaultName == "" {
		cfg.Templates.DefaultName = "there"
	}
	if cfg.Import.BaseDir == "" {
		cfg.Import.BaseDir = "."
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.MaxSizeMB == 0 {
		cfg.Logging.MaxSizeMB = 100
	}
	if cfg.Logging.MaxBackups == 0 {
		cfg.Logging.MaxBackups = 5
	}
	if cfg.Logging.MaxAgeDays == 0 {
		cfg.Logging.MaxAgeDays = 28
	}
	if cfg.Logging.Env == "" {
		cfg.Logging.Env = "development"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars in production.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	setString(&cfg.Mailgun.APIKey, "MAILGUN_API_KEY")
	setString(&cfg.Mailgun.Domain, "MAILGUN_DOMAIN")
	setString(&cfg.Mailgun.BaseURL, "MAILGUN_BASE_URL")
	setString(&cfg.Mailgun.WebhookSigningKey, "MAILGUN_WEBHOOK_SIGNING_KEY")
	setString(&cfg.Provider.Name, "MAIL_PROVIDER")
	setString(&cfg.Provider.FromEmail, "FROM_EMAIL")
	setString(&cfg.Provider.FromName, "FROM_NAME")
	setString(&cfg.Provider.ReplyTo, "REPLY_TO")
	setString(&cfg.Database.URL, "DATABASE_URL")
	setString(&cfg.Redis.URL, "REDIS_URL")
	setString(&cfg.SES.Region, "AWS_REGION")
	setString(&cfg.SMTP.Host, "SMTP_HOST")
	setString(&cfg.SMTP.Username, "SMTP_USERNAME")
	setString(&cfg.SMTP.Password, "SMTP_PASSWORD")
	setString(&cfg.Resend.APIKey, "RESEND_API_KEY")
	setString(&cfg.Logging.SentryDSN, "SENTRY_DSN")
	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.File, "LOG_FILE")

	for _, o := range []struct {
		dst *int
		key string
	}{
		{&cfg.Server.Port, "PORT"},
		{&cfg.SMTP.Port, "SMTP_PORT"},
		{&cfg.Dispatch.MaxEmailsPerDay, "MAX_EMAILS_PER_DAY"},
		{&cfg.Dispatch.BatchSize, "BATCH_SIZE"},
		{&cfg.Dispatch.DelayBetweenBatches, "DELAY_BETWEEN_BATCHES"},
	} {
		if err := setInt(o.dst, o.key); err != nil {
			return nil, err
		}
	}

	// Mailgun has historically sent from the sending domain itself.
	if cfg.Provider.FromEmail == "" && cfg.Mailgun.Domain != "" {
		cfg.Provider.FromEmail = "no-reply@" + cfg.Mailgun.Domain
	}

	return cfg, nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("config: %s must be an integer: %w", key, err)
	}
	*dst = n
	return nil
}

// Validate checks that the selected provider has the credentials it needs.
func (c *Config) Validate() error {
	var errs []error
	switch c.Provider.Name {
	case "mailgun":
		if c.Mailgun.APIKey == "" {
			errs = append(errs, errors.New("MAILGUN_API_KEY is required"))
		}
		if c.Mailgun.Domain == "" {
			errs = append(errs, errors.New("MAILGUN_DOMAIN is required"))
		}
	case "ses":
		if c.SES.Region == "" {
			errs = append(errs, errors.New("ses.region is required"))
		}
	case "smtp":
		if c.SMTP.Host == "" {
			errs = append(errs, errors.New("SMTP_HOST is required"))
		}
	case "resend":
		if c.Resend.APIKey == "" {
			errs = append(errs, errors.New("RESEND_API_KEY is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown mail provider %q", c.Provider.Name))
	}
	if c.Provider.FromEmail == "" {
		errs = append(errs, errors.New("FROM_EMAIL is required"))
	}
	if c.Dispatch.BatchSize < 1 {
		errs = append(errs, errors.New("dispatch.batch_size must be positive"))
	}
	if c.Dispatch.MaxEmailsPerDay < 1 {
		errs = append(errs, errors.New("dispatch.max_emails_per_day must be positive"))
	}
	return errors.Join(errs...)
}
