package quota

import (
	"context"
	"fmt"
	"time"
)

// Counter stores the per-day sent count.
type Counter interface {
	// Count returns the number recorded for day.
	Count(ctx context.Context, day string) (int, error)
	// Add increments day by n and returns the new total.
	Add(ctx context.Context, day string, n int) (int, error)
}

// Clock returns the current time.
type Clock func() time.Time

// Tracker enforces the daily send limit.
type Tracker struct {
	limit   int
	loc     *time.Location
	counter Counter
	now     Clock
}

// NewTracker builds a Tracker. A nil location means UTC, a nil counter an
// in-memory one and a nil clock time.Now.
func NewTracker(limit int, loc *time.Location, counter Counter, now Clock) *Tracker {
	if loc == nil {
		loc = time.UTC
	}
	if counter == nil {
		counter = NewMemoryCounter()
	}
	if now == nil {
		now = time.Now
	}
	return &Tracker{limit: limit, loc: loc, counter: counter, now: now}
}

// Today is the current day key in the tracker's location.
func (t *Tracker) Today() string {
	return t.now().In(t.loc).Format("2006-01-02")
}

// DayBounds returns the start and end of the current day.
func (t *Tracker) DayBounds() (time.Time, time.Time) {
	n := t.now().In(t.loc)
	start := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, t.loc)
	return start, start.AddDate(0, 0, 1)
}

// Limit is the configured daily maximum.
func (t *Tracker) Limit() int { return t.limit }

// SentToday returns the count recorded for the current day.
func (t *Tracker) SentToday(ctx context.Context) (int, error) {
	n, err := t.counter.Count(ctx, t.Today())
	if err != nil {
		return 0, fmt.Errorf("quota: count: %w", err)
	}
	return n, nil
}

// CanSendMore reports whether at least one more message fits today.
func (t *Tracker) CanSendMore(ctx context.Context) (bool, error) {
	n, err := t.SentToday(ctx)
	if err != nil {
		return false, err
	}
	return n < t.limit, nil
}

// Remaining is the number of messages still allowed today, never negative.
func (t *Tracker) Remaining(ctx context.Context) (int, error) {
	n, err := t.SentToday(ctx)
	if err != nil {
		return 0, err
	}
	if n >= t.limit {
		return 0, nil
	}
	return t.limit - n, nil
}

// RecordSent adds n successful sends to today's count. n <= 0 is a no-op.
func (t *Tracker) RecordSent(ctx context.Context, n int) error {
	if n <= 0 {
		return nil
	}
	if _, err := t.counter.Add(ctx, t.Today(), n); err != nil {
		return fmt.Errorf("quota: record: %w", err)
	}
	return nil
}
