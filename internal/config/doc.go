// Package config loads server settings from an optional config file and
// TASKFLOW_* environment variables through viper, applies defaults, and
// validates the result with struct tags before the server starts.
package config
