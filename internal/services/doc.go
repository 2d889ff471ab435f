// Package services holds the shared plumbing used by every external
// capability client: sentinel error markers that drive retry
// classification, and context helpers that carry run/stage identity
// into logs and HTTP requests.
package services
