// Package env reads process environment variables for bootstrap code that
// runs before the typed configuration is loaded.
package env

import "os"

// Prefix namespaces every GatherGrid environment variable.
const Prefix = "GATHERGRID_"

// Get returns the value of the prefixed environment variable or a fallback.
// Get("LOG_FORMAT", "json") reads GATHERGRID_LOG_FORMAT.
func Get(key, fallback string) string {
	if val := os.Getenv(Prefix + key); val != "" {
		return val
	}
	return fallback
}
