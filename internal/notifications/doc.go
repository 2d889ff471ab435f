// Package notifications delivers run lifecycle events to a webhook.
//
// The service publishes completion and failure events to the endpoint
// configured in config.toml and degrades to a no-op when no webhook is
// set. Delivery is best-effort: failures are logged, never returned to
// the pipeline.
package notifications
