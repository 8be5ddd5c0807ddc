// Package broadcast keeps the set of live websocket observers and tells them
// to refresh whenever the door state changes.
//
// Delivery is best effort: a client whose outbound queue is full, or whose
// socket fails, is dropped without affecting the others.
package broadcast
