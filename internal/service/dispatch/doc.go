// Package dispatch runs campaign sends.
//
// Engine serializes every send in the process behind one lock so the daily
// quota check and its increment never race. Pool runs the same sends in
// the background for callers that only want an acknowledgment.
package dispatch
