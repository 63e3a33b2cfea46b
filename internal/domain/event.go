package domain

import (
	"strings"
	"time"
)

// EventKind is the closed set of delivery events the reconciler applies.
type EventKind int

const (
	EventDelivered EventKind = iota + 1
	EventOpened
	EventClicked
	EventBounced
	EventComplained
	EventUnsubscribed
)

// ParseEventKind maps a provider event name to a kind. Mailgun's legacy and
// v3 names are both accepted. ok is false for events the reconciler ignores.
func ParseEventKind(name, severity string) (EventKind, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "delivered", "delivery":
		return EventDelivered, true
	case "opened", "open":
		return EventOpened, true
	case "clicked", "click":
		return EventClicked, true
	case "bounced", "bounce", "dropped":
		return EventBounced, true
	case "failed":
		// temporary failures are retried by the provider
		if strings.EqualFold(severity, "temporary") {
			return 0, false
		}
		return EventBounced, true
	case "complained", "complaint", "spamreport":
		return EventComplained, true
	case "unsubscribed", "unsubscribe":
		return EventUnsubscribed, true
	}
	return 0, false
}

func (k EventKind) String() string {
	if s, ok := k.status(); ok {
		return string(s)
	}
	return "unknown"
}

func (k EventKind) status() (EmailLogStatus, bool) {
	switch k {
	case EventDelivered:
		return LogDelivered, true
	case EventOpened:
		return LogOpened, true
	case EventClicked:
		return LogClicked, true
	case EventBounced:
		return LogBounced, true
	case EventComplained:
		return LogComplained, true
	case EventUnsubscribed:
		return LogUnsubscribed, true
	}
	return "", false
}

// LogStamp names the timestamp column an event sets, if any.
type LogStamp int

const (
	StampNone LogStamp = iota
	StampOpened
	StampClicked
	StampBounced
)

// LogUpdate is the write a delivery event produces on its email log row.
type LogUpdate struct {
	Status EmailLogStatus
	Stamp  LogStamp
	At     time.Time
}

// Update returns the log write for an event of kind k observed at at.
// ok is false for a zero or unknown kind.
func (k EventKind) Update(at time.Time) (LogUpdate, bool) {
	status, ok := k.status()
	if !ok {
		return LogUpdate{}, false
	}
	u := LogUpdate{Status: status, At: at}
	switch k {
	case EventOpened:
		u.Stamp = StampOpened
	case EventClicked:
		u.Stamp = StampClicked
	case EventBounced:
		u.Stamp = StampBounced
	case EventDelivered, EventComplained, EventUnsubscribed:
		u.Stamp = StampNone
	}
	return u, true
}

// DeliveryEvent is a provider callback normalised for reconciliation.
type DeliveryEvent struct {
	Provider   ProviderType `json:"provider"`
	Recipient  string       `json:"recipient"`
	Kind       EventKind    `json:"kind"`
	RawEvent   string       `json:"event"`
	MessageID  string       `json:"message_id,omitempty"`
	Domain     string       `json:"domain,omitempty"`
	OccurredAt time.Time    `json:"occurred_at"`
}
