package reconcile

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/metrics"
	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
)

// LogStore locates and updates email log rows.
type LogStore interface {
	// FindByMessage returns the row sent to email under the provider
	// message id.
	FindByMessage(ctx context.Context, messageID, email string) (int64, bool, error)
	// FindLatest returns the most recently sent row for email.
	FindLatest(ctx context.Context, email string) (int64, bool, error)
	// ApplyUpdate sets the row's status and, if still unset, the
	// timestamp named by u.Stamp.
	ApplyUpdate(ctx context.Context, id int64, u domain.LogUpdate) error
}

// BounceMarker flags contacts as bounced.
type BounceMarker interface {
	MarkBounced(ctx context.Context, emails []string) (int, error)
}

// Match says how an event found its log row.
type Match string

const (
	MatchNone      Match = ""
	MatchMessageID Match = "message_id"
	MatchLatest    Match = "latest"
)

// Outcome describes what ApplyEvent did.
type Outcome struct {
	Applied bool  `json:"applied"`
	LogID   int64 `json:"log_id,omitempty"`
	Match   Match `json:"match,omitempty"`
}

// Reconciler applies delivery events. Events are independent of each other
// and of sends; concurrent calls are safe if the stores are.
type Reconciler struct {
	logs     LogStore
	contacts BounceMarker
	now      func() time.Time
}

// NewReconciler builds a reconciler. contacts may be nil to leave contact
// status untouched by bounce events.
func NewReconciler(logs LogStore, contacts BounceMarker) *Reconciler {
	return &Reconciler{logs: logs, contacts: contacts, now: time.Now}
}

// ApplyEvent updates the log row the event refers to. Unknown kinds and
// events with no matching row are ignored without error; a row is never
// created.
func (r *Reconciler) ApplyEvent(ctx context.Context, ev domain.DeliveryEvent) (Outcome, error) {
	out, err := r.apply(ctx, ev)
	metrics.WebhookEvents.WithLabelValues(string(ev.Provider), ev.Kind.String(), strconv.FormatBool(out.Applied)).Inc()
	return out, err
}

func (r *Reconciler) apply(ctx context.Context, ev domain.DeliveryEvent) (Outcome, error) {
	recipient := strings.TrimSpace(ev.Recipient)
	at := ev.OccurredAt
	if at.IsZero() {
		at = r.now()
	}
	u, ok := ev.Kind.Update(at)
	if !ok || recipient == "" {
		logger.Debug("[reconcile.Reconciler] ignoring event", "event", ev.RawEvent, "recipient", recipient)
		return Outcome{}, nil
	}

	id, match, err := r.locate(ctx, ev.MessageID, recipient)
	if err != nil {
		return Outcome{}, err
	}
	if match == MatchNone {
		logger.Info("[reconcile.Reconciler] no log row for event",
			"event", ev.Kind, "recipient", recipient, "message_id", ev.MessageID)
	} else if err := r.logs.ApplyUpdate(ctx, id, u); err != nil {
		return Outcome{}, fmt.Errorf("apply %s to log %d: %w", ev.Kind, id, err)
	}

	if ev.Kind == domain.EventBounced && r.contacts != nil {
		if _, err := r.contacts.MarkBounced(ctx, []string{recipient}); err != nil {
			return Outcome{}, fmt.Errorf("mark contact bounced: %w", err)
		}
	}

	if match == MatchNone {
		return Outcome{}, nil
	}
	logger.Debug("[reconcile.Reconciler] event applied",
		"event", ev.Kind, "recipient", recipient, "log_id", id, "match", match)
	return Outcome{Applied: true, LogID: id, Match: match}, nil
}

func (r *Reconciler) locate(ctx context.Context, messageID, recipient string) (int64, Match, error) {
	if messageID != "" {
		id, ok, err := r.logs.FindByMessage(ctx, messageID, recipient)
		if err != nil {
			return 0, MatchNone, fmt.Errorf("find log by message: %w", err)
		}
		if ok {
			return id, MatchMessageID, nil
		}
	}
	id, ok, err := r.logs.FindLatest(ctx, recipient)
	if err != nil {
		return 0, MatchNone, fmt.Errorf("find latest log: %w", err)
	}
	if !ok {
		return 0, MatchNone, nil
	}
	return id, MatchLatest, nil
}
