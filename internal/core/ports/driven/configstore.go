package driven

// ConfigStore provides access to flattened configuration keys such as
// "server.addr" or "collectors.worldbank.min_delay_ms". Values keep the
// type they were stored with; file.LoadSettings coerces them.
type ConfigStore interface {
	// Get retrieves a value and whether the key exists.
	Get(key string) (any, bool)

	// Set stores a value and persists it immediately.
	Set(key string, value any) error

	// Delete removes a key. Missing keys are not an error.
	Delete(key string) error

	// Path returns the configuration file path.
	Path() string
}
