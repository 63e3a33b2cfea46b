// Package quota tracks how many messages the service has dispatched on the
// current calendar day and gates sends against the configured daily limit.
//
// The Tracker owns the day boundary: it derives a YYYY-MM-DD key from an
// injected clock in a fixed location, so a rollover is observed before any
// threshold comparison. Counts live behind a Counter, either in process
// memory or in Redis when several processes share one limit.
package quota
