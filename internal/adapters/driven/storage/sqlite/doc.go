// Package sqlite implements the raw, observation and metadata stores on a
// single SQLite database.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that
// requires no CGO. The store exposes one wrapper per driven port:
//
//   - RawStore: raw upstream documents, deduplicated on insert
//   - ObservationStore: the clean and incomplete collections
//   - MetadataStore: loaded metadata documents and dataset year ranges
//
// # Schema
//
// The schema is managed by golang-migrate from the numbered .up.sql and
// .down.sql files embedded from migrations/.
//
// # Data Location
//
// By default, the database is stored at ~/.sspi/data/sspi.db
package sqlite
