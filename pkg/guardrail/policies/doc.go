// Package policies provides ready-made guardrail policies: keyword and
// regular-expression matching, content length limits, and per-user rate
// limiting backed by a pluggable counter store.
//
// All policies in this package are stateless except the rate limiter, which
// delegates its counting to a CounterStore so deployments can choose between
// in-memory and SQLite-backed windows.
package policies
