// Package transcription provides the speech-to-text collaborator contract
// and its HTTP client: submit an audio payload, then poll the returned job
// id until the engine reports a terminal status.
package transcription
