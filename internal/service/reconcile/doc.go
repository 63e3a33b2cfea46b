// Package reconcile applies provider delivery events to the email log and
// keeps contact bounce status in step with the provider's bounce list.
package reconcile
