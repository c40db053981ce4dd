// Package config provides application configuration loaded from
// environment variables (RENTROLL_ prefix) with an optional YAML file,
// plus centralized filesystem path resolution.
package config
