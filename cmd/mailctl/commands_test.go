package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/campaign-dispatch/internal/app"
	"github.com/ignite/campaign-dispatch/internal/config"
	"github.com/ignite/campaign-dispatch/internal/domain"
)

func newTestCLI(t *testing.T) (*cli, string) {
	t.Helper()
	dir := t.TempDir()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Provider.Name = "resend"
	cfg.Provider.FromEmail = "no-reply@example.com"
	cfg.Resend.APIKey = "re_test"
	cfg.Import.BaseDir = dir

	a, err := app.New(context.Background(), cfg)
	require.NoError(t, err)
	return &cli{app: a}, dir
}

func execute(t *testing.T, c *cli, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(c)
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestImportAndBatches(t *testing.T) {
	c, dir := newTestCLI(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "leads.csv"),
		[]byte("email,name\na@x.com,Ana\nb@x.com,Bo\n"), 0o600))

	out, err := execute(t, c, "import", "leads.csv", "--source", "fair")
	require.NoError(t, err)
	var res domain.ImportResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 2, res.Imported)
	assert.Equal(t, "fair", res.Source)
	assert.True(t, res.Activated)

	out, err = execute(t, c, "batches", "list")
	require.NoError(t, err)
	var batches []domain.Batch
	require.NoError(t, json.Unmarshal([]byte(out), &batches))
	require.Len(t, batches, 1)
	assert.Equal(t, res.BatchID, batches[0].ID)

	_, err = execute(t, c, "batches", "deactivate", res.BatchID)
	require.NoError(t, err)
	_, err = execute(t, c, "batches", "activate", "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestImportNoActivate(t *testing.T) {
	c, dir := newTestCLI(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "leads.csv"), []byte("email\na@x.com\n"), 0o600))

	out, err := execute(t, c, "import", "leads.csv", "--no-activate")
	require.NoError(t, err)
	var res domain.ImportResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.False(t, res.Activated)
}

func TestCampaignCommands(t *testing.T) {
	c, dir := newTestCLI(t)
	body := filepath.Join(dir, "body.txt")
	require.NoError(t, os.WriteFile(body, []byte("Hello {name}"), 0o600))

	out, err := execute(t, c, "campaign", "create", "--name", "Launch", "--subject", "Hi", "--body-file", body)
	require.NoError(t, err)
	var created domain.Campaign
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	assert.Equal(t, domain.CampaignDraft, created.Status)

	out, err = execute(t, c, "campaign", "list")
	require.NoError(t, err)
	var list []domain.Campaign
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	assert.Len(t, list, 1)

	out, err = execute(t, c, "campaign", "stats", "1")
	require.NoError(t, err)
	var stats domain.CampaignStats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Zero(t, stats.TotalSent)

	_, err = execute(t, c, "campaign", "stats", "abc")
	assert.Error(t, err)
	_, err = execute(t, c, "campaign", "create", "--name", "x")
	assert.Error(t, err)
}

func TestSendWithoutContacts(t *testing.T) {
	c, dir := newTestCLI(t)
	body := filepath.Join(dir, "body.txt")
	require.NoError(t, os.WriteFile(body, []byte("Hello"), 0o600))
	_, err := execute(t, c, "campaign", "create", "--name", "L", "--subject", "S", "--body-file", body)
	require.NoError(t, err)

	_, err = execute(t, c, "send", "1", "--test")
	assert.ErrorIs(t, err, domain.ErrNoEligibleContacts)
}

func TestStatsAndBounces(t *testing.T) {
	c, _ := newTestCLI(t)

	out, err := execute(t, c, "stats", "daily")
	require.NoError(t, err)
	var daily domain.DailyStats
	require.NoError(t, json.Unmarshal([]byte(out), &daily))
	assert.Equal(t, 10000, daily.DailyLimit)

	_, err = execute(t, c, "bounces", "sync")
	assert.ErrorContains(t, err, "no bounce list")
}
