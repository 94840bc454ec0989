// Package config loads, normalizes, and validates kiln configuration data.
package config
