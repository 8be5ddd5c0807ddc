// Package httpapi serves the door REST API, the refresher websocket and the
// optional static dashboard.
package httpapi
