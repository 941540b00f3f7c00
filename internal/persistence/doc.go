// Package persistence keeps queued audio payloads and the pending-recording
// snapshot on local disk so in-flight work survives a crash or restart. The
// queue database remains the source of truth; the snapshot here is only a
// recovery cache that startup reconciles against it.
package persistence
