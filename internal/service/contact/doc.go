// Package contact manages the recipient list: imports, batch activation and
// per-contact status.
//
// An import tags every row with a fresh batch id. Activating a batch makes
// its members the only active contacts, which is how operators swap one
// prospect list for the next. Bounced contacts keep their status through
// activation and deactivation.
package contact
