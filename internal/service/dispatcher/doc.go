// Package dispatcher fans an alarm notification out to every push subscriber.
//
// Each subscriber gets its own goroutine and its own result slot; one failed
// delivery never delays or cancels the others and nothing is retried.
package dispatcher
