// Package file provides the TOML-backed settings store. A partial config
// file is merged over the compiled-in defaults.
package file
