package app

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/campaign-dispatch/internal/config"
	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/service/campaign"
)

func testConfig(t *testing.T, providerName string) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Provider.Name = providerName
	cfg.Provider.FromEmail = "no-reply@example.com"
	cfg.Mailgun.APIKey = "key"
	cfg.Mailgun.Domain = "mg.example.com"
	cfg.Resend.APIKey = "re_key"
	cfg.SMTP.Host = "localhost"
	cfg.Import.BaseDir = t.TempDir()
	return cfg
}

func TestNewInMemoryMailgun(t *testing.T) {
	a, err := New(context.Background(), testConfig(t, "mailgun"))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	assert.Equal(t, domain.ProviderMailgun, a.Provider.Name())
	assert.NotNil(t, a.Bounces, "mailgun lists bounces")
	assert.Equal(t, 10000, a.Quota.Limit())

	c, err := a.Campaigns.Create(context.Background(), campaignInput())
	require.NoError(t, err)
	got, err := a.Campaigns.Get(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.Name, got.Name)
}

func TestNewWithoutBounceList(t *testing.T) {
	for _, name := range []string{"resend", "smtp"} {
		a, err := New(context.Background(), testConfig(t, name))
		require.NoError(t, err, name)
		assert.Nil(t, a.Bounces, name)
		assert.Equal(t, domain.ProviderType(name), a.Provider.Name())
		a.Close()
	}
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New(context.Background(), testConfig(t, "pigeon"))
	assert.Error(t, err)
}

func TestNewSharesQuotaThroughRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t, "resend")
	cfg.Redis.URL = "redis://" + mr.Addr()

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	require.NoError(t, a.Quota.RecordSent(context.Background(), 3))
	keys := mr.Keys()
	require.Len(t, keys, 1)
	v, err := mr.Get(keys[0])
	require.NoError(t, err)
	assert.Equal(t, "3", v)
}

func TestNewBadRedisURL(t *testing.T) {
	cfg := testConfig(t, "resend")
	cfg.Redis.URL = "not-a-url"
	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}

func campaignInput() campaign.CreateInput {
	return campaign.CreateInput{Name: "Launch", Subject: "Hi {name}", Body: "Hello {name}"}
}
