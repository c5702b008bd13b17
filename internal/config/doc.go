// Package config loads the telemetryd YAML configuration.
//
// Values may reference environment variables as ${VAR}. Missing optional
// fields are filled from the Default* constants before validation.
package config
