// Package dto defines the JSON documents served by the HTTP API and mirrored
// by the gRPC control API.
package dto
