// Package api serves the monitor's status over HTTP: a JSON snapshot of the
// status store, Prometheus metrics and a websocket stream of changes.
package api
