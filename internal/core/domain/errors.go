package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// Configuration Errors.

	// ErrUnknownDataset indicates a dataset code with no registered adapter.
	ErrUnknownDataset = errors.New("unknown dataset")

	// ErrMissingSourceBinding indicates a registered dataset whose metadata
	// carries no (OrganizationCode, QueryCode) binding.
	ErrMissingSourceBinding = errors.New("missing source binding")

	// ErrUnknownIndicator indicates an indicator code absent from metadata.
	ErrUnknownIndicator = errors.New("unknown indicator")

	// ErrInvalidGoalposts indicates equal or non-finite goalposts.
	ErrInvalidGoalposts = errors.New("invalid goalposts")

	// ErrInvalidMetadata indicates metadata that fails referential checks.
	ErrInvalidMetadata = errors.New("invalid metadata")

	// ErrMetadataCycle indicates a cycle in the metadata hierarchy.
	ErrMetadataCycle = errors.New("metadata hierarchy contains a cycle")

	// ErrAlreadyRegistered indicates a dataset code registered twice.
	ErrAlreadyRegistered = errors.New("already registered")

	// Integrity Errors.

	// ErrClassifier indicates an observation without exactly one classifier.
	ErrClassifier = errors.New("observation must carry exactly one classifier")

	// ErrScoreRange indicates a score outside [0, 1].
	ErrScoreRange = errors.New("score out of range")

	// Query Errors.

	// ErrUnsafeFilter indicates a filter key or value outside the allowed alphabet.
	ErrUnsafeFilter = errors.New("unsafe filter")

	// ErrUnknownCollection indicates a collection other than clean or incomplete.
	ErrUnknownCollection = errors.New("unknown collection")

	// ErrUnknownCountryGroup indicates a country group absent from metadata.
	ErrUnknownCountryGroup = errors.New("unknown country group")

	// Authorization Errors.

	// ErrUnauthenticated indicates a mutating request without a principal.
	ErrUnauthenticated = errors.New("authentication required")

	// ErrInvalidToken indicates a bearer token that failed validation.
	ErrInvalidToken = errors.New("invalid token")
)
