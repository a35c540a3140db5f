// Package observability provides the focus event log, local focus metrics,
// deadline alerting and Slack notification. Events are persisted as JSON
// Lines and metrics are derived from them on demand.
package observability
