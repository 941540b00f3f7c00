// Package services defines the shared error taxonomy for external
// collaborators and the wrapping helper that tags failures for
// classification by the orchestrator.
package services
