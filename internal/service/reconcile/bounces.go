package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ignite/campaign-dispatch/internal/metrics"
	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
	"github.com/ignite/campaign-dispatch/internal/provider"
)

// SyncResult summarises one bounce sync run.
type SyncResult struct {
	Pages    int           `json:"pages"`
	Bounces  int           `json:"bounces"`
	Marked   int           `json:"marked"`
	Duration time.Duration `json:"duration"`
}

// BounceSync copies the provider's bounce list onto contact status.
type BounceSync struct {
	lister   provider.BounceLister
	contacts BounceMarker

	// serializes manual and scheduled runs
	mu   sync.Mutex
	cron *cron.Cron
}

func NewBounceSync(lister provider.BounceLister, contacts BounceMarker) *BounceSync {
	return &BounceSync{lister: lister, contacts: contacts}
}

// Run pages through the bounce list and marks every listed address that
// is a known contact as bounced.
func (b *BounceSync) Run(ctx context.Context) (*SyncResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	start := time.Now()
	res := &SyncResult{}
	err := b.lister.ListBounces(ctx, func(page []provider.Bounce) error {
		res.Pages++
		res.Bounces += len(page)
		emails := make([]string, 0, len(page))
		for _, bounce := range page {
			if bounce.Address != "" {
				emails = append(emails, bounce.Address)
			}
		}
		n, err := b.contacts.MarkBounced(ctx, emails)
		if err != nil {
			return fmt.Errorf("mark bounced: %w", err)
		}
		res.Marked += n
		return nil
	})
	res.Duration = time.Since(start)
	metrics.BouncesSynced.Add(float64(res.Marked))
	if err != nil {
		return res, fmt.Errorf("bounce sync: %w", err)
	}
	logger.Info("[reconcile.BounceSync] bounce sync complete",
		"pages", res.Pages, "bounces", res.Bounces, "marked", res.Marked, "duration", res.Duration)
	return res, nil
}

// Start schedules Run on spec (standard five-field cron syntax or a
// descriptor such as @daily). Overlapping runs are skipped.
func (b *BounceSync) Start(spec string) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(spec, func() {
		if _, err := b.Run(context.Background()); err != nil {
			logger.Error("[reconcile.BounceSync] scheduled sync failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule bounce sync %q: %w", spec, err)
	}
	b.cron = c
	c.Start()
	logger.Info("[reconcile.BounceSync] bounce sync scheduled", "spec", spec)
	return nil
}

// Stop halts the schedule and waits for a running sync, or for ctx.
func (b *BounceSync) Stop(ctx context.Context) error {
	if b.cron == nil {
		return nil
	}
	select {
	case <-b.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
