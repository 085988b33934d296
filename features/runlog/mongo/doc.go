// Package mongo provides MongoDB-backed call event log storage.
//
// Use clients/mongo to build the low-level client and pass it to NewStore to
// obtain a runlog.Store that persists append-only call events.
package mongo
