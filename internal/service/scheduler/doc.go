// Package scheduler implements the alarm timer of the door monitor.
//
// A Scheduler holds at most one live deadline. Arm starts it, Disarm cancels
// it, and an expiry that was not cancelled calls the fire callback exactly once.
package scheduler
