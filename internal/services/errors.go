package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidPayload marks empty or undersized audio payloads rejected
	// before enqueue.
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrInvalidTransition marks a status change outside the transition table.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrRetryExhausted marks a failed item whose retry budget is spent.
	ErrRetryExhausted = errors.New("retry exhausted")
	// ErrUnknownJob marks a job identity the transcription collaborator does
	// not recognize. Fatal; there is nothing to reconcile.
	ErrUnknownJob = errors.New("unknown transcription job")
	// ErrTransient marks network or 5xx-class faults absorbed by continued
	// polling.
	ErrTransient = errors.New("transient failure")
	// ErrValidation marks malformed caller input.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks missing or inconsistent configuration.
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsFatal reports whether an error should stop polling immediately rather
// than being absorbed as transient.
func IsFatal(err error) bool {
	return errors.Is(err, ErrUnknownJob) || errors.Is(err, ErrInvalidPayload) || errors.Is(err, ErrConfiguration)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
