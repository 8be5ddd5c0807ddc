// Package client implements the doorctl commands.
//
// State changes and queries go to doorwatch-server over gRPC; results are
// printed as JSON so scripts and sensors can consume them.
package client
