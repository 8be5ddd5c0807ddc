// Package server runs doorwatch-server: it loads the config, opens the
// subscription store and serves the HTTP, websocket and gRPC front ends
// around one door state machine, plus the optional MQTT ingress.
package server
