// Package app assembles the services shared by the server and the CLI from
// a Config.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/campaign-dispatch/internal/config"
	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/importer"
	"github.com/ignite/campaign-dispatch/internal/personalize"
	"github.com/ignite/campaign-dispatch/internal/pkg/distlock"
	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
	"github.com/ignite/campaign-dispatch/internal/provider"
	"github.com/ignite/campaign-dispatch/internal/provider/mailgun"
	"github.com/ignite/campaign-dispatch/internal/provider/resend"
	"github.com/ignite/campaign-dispatch/internal/provider/ses"
	"github.com/ignite/campaign-dispatch/internal/provider/smtp"
	"github.com/ignite/campaign-dispatch/internal/repository/memory"
	"github.com/ignite/campaign-dispatch/internal/repository/postgres"
	"github.com/ignite/campaign-dispatch/internal/service/campaign"
	"github.com/ignite/campaign-dispatch/internal/service/contact"
	"github.com/ignite/campaign-dispatch/internal/service/dispatch"
	"github.com/ignite/campaign-dispatch/internal/service/quota"
	"github.com/ignite/campaign-dispatch/internal/service/reconcile"
)

// emailLogs is everything the services need from the email log store.
type emailLogs interface {
	dispatch.LogWriter
	campaign.LogStats
	reconcile.LogStore
}

type stores struct {
	contacts  contact.Repository
	campaigns campaign.Repository
	logs      emailLogs
}

// App holds the wired services.
type App struct {
	Config     *config.Config
	Provider   provider.MailProvider
	Quota      *quota.Tracker
	Contacts   *contact.Service
	Campaigns  *campaign.Service
	Engine     *dispatch.Engine
	Reconciler *reconcile.Reconciler
	// Bounces is nil when the provider exposes no bounce list.
	Bounces *reconcile.BounceSync
	Opener  *importer.Opener

	db    *sql.DB
	redis *redis.Client
}

// New connects the stores and builds every service. Without a database URL
// the in-memory store is used and nothing survives a restart.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}
	st, err := a.openStores(ctx)
	if err != nil {
		return nil, err
	}

	counter, err := a.quotaCounter(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Quota = quota.NewTracker(cfg.Dispatch.MaxEmailsPerDay, cfg.Dispatch.Location(), counter, nil)

	mp, err := NewProvider(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Provider = mp

	p := personalize.New(cfg.Templates.DefaultName)
	client := provider.NewClient(mp, p, provider.ClientConfig{
		FromEmail:         cfg.Provider.FromEmail,
		FromName:          cfg.Provider.FromName,
		ReplyTo:           cfg.Provider.ReplyTo,
		TagPrefix:         cfg.Provider.TagPrefix,
		Tracking:          cfg.Provider.Tracking,
		BatchSize:         cfg.Dispatch.BatchSize,
		BatchDelay:        cfg.Dispatch.Delay(),
		MessagesPerSecond: cfg.Dispatch.MessagesPerSecond,
		MarkdownHTML:      cfg.Templates.MarkdownHTML,
	})

	a.Contacts = contact.NewService(st.contacts)
	a.Campaigns = campaign.NewService(st.campaigns, st.logs, st.contacts, a.Quota, p)
	a.Engine = dispatch.NewEngine(st.campaigns, a.Contacts, st.logs, a.Quota, client,
		dispatch.Config{TestModeLimit: cfg.Dispatch.TestModeLimit})
	if a.redis != nil {
		a.Engine.WithLocker(distlock.New(a.redis, "dispatch:send", 0, 0))
	}

	var marker reconcile.BounceMarker
	if cfg.Reconcile.MarkContactBounced {
		marker = a.Contacts
	}
	a.Reconciler = reconcile.NewReconciler(st.logs, marker)
	if lister, ok := mp.(provider.BounceLister); ok {
		a.Bounces = reconcile.NewBounceSync(lister, a.Contacts)
	}

	s3c, err := s3Client(ctx, cfg.Import)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Opener = importer.NewOpener(cfg.Import.BaseDir, s3c)

	logger.Info("[app] services ready",
		"provider", mp.Name(), "persistent", a.db != nil, "shared_quota", a.redis != nil,
		"daily_limit", cfg.Dispatch.MaxEmailsPerDay, "batch_size", client.BatchSize())
	return a, nil
}

func (a *App) openStores(ctx context.Context) (*stores, error) {
	cfg := a.Config.Database
	if cfg.URL == "" {
		logger.Warn("[app] DATABASE_URL not set, using in-memory store")
		m := memory.New()
		return &stores{contacts: m.Contacts(), campaigns: m.Campaigns(), logs: m.EmailLogs()}, nil
	}

	if cfg.AutoMigrate {
		if _, err := postgres.Migrate(cfg.URL, "up"); err != nil {
			return nil, err
		}
	}
	db, err := postgres.Open(ctx, cfg.URL, postgres.PoolConfig{
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.ConnMaxLifetime) * time.Second,
	})
	if err != nil {
		return nil, err
	}
	a.db = db
	return &stores{
		contacts:  postgres.NewContactRepo(db),
		campaigns: postgres.NewCampaignRepo(db),
		logs:      postgres.NewEmailLogRepo(db),
	}, nil
}

func (a *App) quotaCounter(ctx context.Context) (quota.Counter, error) {
	if a.Config.Redis.URL == "" {
		return quota.NewMemoryCounter(), nil
	}
	opts, err := redis.ParseURL(a.Config.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	a.redis = client
	return quota.NewRedisCounter(client, ""), nil
}

// NewProvider builds the MailProvider named by cfg.Provider.Name.
func NewProvider(ctx context.Context, cfg *config.Config) (provider.MailProvider, error) {
	switch domain.ProviderType(cfg.Provider.Name) {
	case domain.ProviderMailgun:
		return mailgun.New(mailgun.Config{
			APIKey:  cfg.Mailgun.APIKey,
			Domain:  cfg.Mailgun.Domain,
			BaseURL: cfg.Mailgun.BaseURL,
			Timeout: cfg.Mailgun.Timeout(),
		}, nil), nil
	case domain.ProviderSES:
		return ses.New(ctx, ses.Config{
			Region:           cfg.SES.Region,
			AccessKey:        cfg.SES.AccessKey,
			SecretKey:        cfg.SES.SecretKey,
			ConfigurationSet: cfg.SES.ConfigurationSet,
		})
	case domain.ProviderSMTP:
		return smtp.New(smtp.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			TLS:      cfg.SMTP.TLS,
		})
	case domain.ProviderResend:
		return resend.New(cfg.Resend.APIKey), nil
	}
	return nil, fmt.Errorf("unknown mail provider %q", cfg.Provider.Name)
}

func s3Client(ctx context.Context, cfg config.ImportConfig) (importer.ObjectGetter, error) {
	if cfg.S3Region == "" {
		return nil, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.S3Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg), nil
}

// Close releases the database and Redis connections.
func (a *App) Close() error {
	var firstErr error
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			firstErr = err
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
