// Package integration holds end-to-end tests that run a real doorwatch-server.
package integration
