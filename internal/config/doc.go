// Package config defines the settings used by doorwatch-server and doorctl and
// provides helpers to load, validate and save them in YAML format.
//
// Validate fills zero values with defaults, so a file holding only secret_key
// is a working configuration backed by a local sqlite store.
package config
