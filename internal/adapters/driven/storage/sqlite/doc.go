// Package sqlite implements the document store on modernc.org/sqlite.
// The store is the source of truth: both retrieval indexes are derived
// from it and can always be rebuilt.
package sqlite
