// Package requestlog persists a per-request audit trail for the bridge
// in a local sqlite database. Records are written by an async worker so
// request handling never waits on storage, and a cron-scheduled pruner
// enforces the retention window. The log is observational only and is
// disabled by default.
package requestlog
