// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - Collector: fetches raw payloads for one dataset from an upstream API
//   - Cleaner: turns raw documents into canonical observations
//   - RawStore: append-only raw document persistence with deduplication
//   - ObservationStore: clean and incomplete observation persistence
//   - MetadataSource: loads metadata definitions
//   - ConfigStore: application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - MetadataStore: persists loaded metadata and dataset year ranges
//   - PageCache: caches scraped pages between collections
//   - JobQueue: asynchronous rebuild jobs
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, collector, or cleaner package
package driven
