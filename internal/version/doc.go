// Package version holds the build metadata injected with -ldflags.
package version
