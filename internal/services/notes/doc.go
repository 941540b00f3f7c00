// Package notes provides the note-creation collaborator contract and its
// HTTP client. The recent-notes listing exists only for reconciliation.
package notes
