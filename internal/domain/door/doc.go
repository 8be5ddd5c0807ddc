// Package door contains the core domain types of the door monitor.
//
// It defines State (the open/closed status and its counters), HistoryEntry
// (one recorded transition), Subscription (a registered push endpoint) and
// Notification (the alarm payload), with Clone helpers that keep callers from
// sharing the state machine's timestamps.
package door
