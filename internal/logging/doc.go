// Package logging configures slog for the pipeline: console and JSON
// handlers, standardized field names, and helpers that derive logger
// attributes from context (run, stage, capability).
package logging
