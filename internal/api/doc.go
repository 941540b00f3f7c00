// Package api defines the transport contract between the scribeq daemon and
// its clients: the JSON payload types served under /api and an HTTP client
// the CLI uses to drive a running daemon.
package api
