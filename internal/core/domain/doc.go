// Package domain defines the core business entities of the SSPI engine.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Observation: a canonical per-country-per-year value
//   - IncompleteObservation: a composite that could not be computed
//   - RawDocument: an upstream payload with its provenance envelope
//   - MetadataSet: the pillar/category/indicator/intermediate/dataset hierarchy
//   - QueryFilters: validated query parameters
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
