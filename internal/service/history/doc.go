// Package history keeps the bounded event history of door transitions.
package history
