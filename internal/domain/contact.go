package domain

import (
	"net/mail"
	"strings"
	"time"
)

// ContactStatus enumerates whether a contact may receive campaign sends.
type ContactStatus string

const (
	ContactActive   ContactStatus = "active"
	ContactInactive ContactStatus = "inactive"
	ContactBounced  ContactStatus = "bounced"
)

// Valid reports whether s is one of the known contact statuses.
func (s ContactStatus) Valid() bool {
	switch s {
	case ContactActive, ContactInactive, ContactBounced:
		return true
	}
	return false
}

// Contact is a recipient. Email is the identity: one row per address.
type Contact struct {
	ID        int64         `json:"id" db:"id"`
	Email     string        `json:"email" db:"email"`
	Name      string        `json:"name" db:"name"`
	Company   string        `json:"company" db:"company"`
	Position  string        `json:"position" db:"position"`
	Source    string        `json:"source" db:"source"`
	Status    ContactStatus `json:"status" db:"status"`
	BatchID   *string       `json:"batch_id" db:"batch_id"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" db:"updated_at"`
}

// ValidEmail reports whether addr parses as a bare RFC 5322 address.
func ValidEmail(addr string) bool {
	addr = strings.TrimSpace(addr)
	if addr == "" || strings.ContainsAny(addr, " <>") {
		return false
	}
	parsed, err := mail.ParseAddress(addr)
	return err == nil && parsed.Address == addr
}

// Batch is a derived view over contacts sharing a batch identifier.
type Batch struct {
	ID              string        `json:"batch_id" db:"batch_id"`
	Count           int           `json:"count" db:"count"`
	ActiveCount     int           `json:"active_count" db:"active_count"`
	FirstImportedAt time.Time     `json:"first_imported_at" db:"first_imported_at"`
	LastImportedAt  time.Time     `json:"last_imported_at" db:"last_imported_at"`
	Status          ContactStatus `json:"status" db:"status"`
}

// AggregateStatus is active when any member is active, else inactive.
func AggregateStatus(activeCount int) ContactStatus {
	if activeCount > 0 {
		return ContactActive
	}
	return ContactInactive
}

// ContactFilter narrows contact listings. Zero values mean "no filter".
type ContactFilter struct {
	Status  ContactStatus
	BatchID string
	Limit   int
	Offset  int
}

// ImportResult summarises a contact import.
type ImportResult struct {
	BatchID   string   `json:"batch_id"`
	Source    string   `json:"source"`
	Total     int      `json:"total"`
	Imported  int      `json:"imported"`
	Skipped   int      `json:"skipped"`
	Activated bool     `json:"activated"`
	Errors    []string `json:"errors,omitempty"`
}
