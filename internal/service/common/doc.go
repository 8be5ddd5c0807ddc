// Package common holds helpers shared by doorctl commands.
//
// It provides a gRPC client wrapper for the door service with call timeouts,
// the shared secret and an actor label (user@host) for the server's audit log.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
