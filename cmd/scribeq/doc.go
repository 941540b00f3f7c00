// Command scribeq is the command line interface for the medical scribe
// transcription queue. Queue commands talk to a running daemon over its
// HTTP API; the run command hosts the daemon itself.
package main
