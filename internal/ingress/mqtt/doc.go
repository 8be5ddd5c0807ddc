// Package mqtt feeds door signals published on an MQTT topic into the door
// state machine. Payloads are validated here; anything unrecognized is logged
// and dropped.
package mqtt
