// Package state persists the daily commit counter that enforces the quota.
//
// The Tracker is write-through: every mutation overwrites the record on disk
// through a temporary file and rename, so readers never observe a partial
// write and a crash loses at most the in-flight commit.
package state
