// Package evidence persists an audit trail of guardrail interventions.
//
// A Recorder plugs into the middleware's blocked hooks and writes one record
// per triggered verdict. Storage is pluggable (in-memory or SQLite), and a
// cron-scheduled retention job prunes records past their retention period.
package evidence
