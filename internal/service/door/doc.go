// Package door implements the door state machine.
//
// Every accepted "open" or "closed" signal increments the update counter,
// records a history entry and tells the live observers to refresh. Opening a
// closed door arms the alarm timer, closing disarms it, and when the timer
// expires the alarm notification is handed to the dispatcher.
package door
