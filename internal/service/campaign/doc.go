// Package campaign implements campaign definitions and their statistics.
//
// The service layer validates templates at creation time and derives
// engagement rates from the email log. It depends on repository interfaces
// defined in this package and never imports net/http.
//
// Repository implementations live in repository/postgres/ and repository/memory/.
package campaign
