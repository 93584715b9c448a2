// Package config handles configuration loading, parsing, and validation
// from various sources (environment variables, files). It provides type-safe
// access to the settings needed by the HTTP server, the task queue, the
// calendar integration and the natural language parser.
package config
