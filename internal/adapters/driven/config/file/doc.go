// Package file provides file-based configuration adapters.
//
// Adapters:
//   - ConfigStore: TOML-based configuration storage at ~/.sspi/config.toml
//   - Settings: typed settings resolved from the environment, the
//     ConfigStore and built-in defaults, with optional .env loading
package file
