package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a queue item.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// transitions is the only legal set of status edges. The failed -> pending
// edge is reserved for Retry and is not accepted by Transition.
var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusCompleted, StatusFailed},
	StatusFailed:     {StatusPending},
}

// CanTransition reports whether the edge from -> to is in the transition table.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further automatic transitions occur.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Priority orders queue items ahead of their enqueue position.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

var priorityRanks = map[Priority]int{
	PriorityUrgent: 0,
	PriorityHigh:   1,
	PriorityNormal: 2,
	PriorityLow:    3,
}

// Rank returns the numeric ordering of a priority; lower sorts first.
// Unknown values rank alongside normal.
func (p Priority) Rank() int {
	if rank, ok := priorityRanks[p]; ok {
		return rank
	}
	return priorityRanks[PriorityNormal]
}

// ParsePriority converts a string into a known Priority.
func ParsePriority(value string) (Priority, bool) {
	normalized := Priority(strings.ToLower(strings.TrimSpace(value)))
	_, ok := priorityRanks[normalized]
	return normalized, ok
}

// Item represents a queued transcription job persisted in SQLite.
type Item struct {
	ID            int64
	OwnerID       string
	OrgID         string
	PayloadPath   string
	PayloadSize   int64
	PayloadMime   string
	Priority      Priority
	Status        Status
	Position      int64
	RetryCount    int
	MaxRetries    int
	LastError     string
	ErrorDetails  string
	ResultRef     string
	CreatedNoteID string
	StartedAt     *time.Time
	CompletedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ExpiresAt     time.Time
}

// Expired reports whether the item's hard TTL has elapsed.
func (i *Item) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !i.ExpiresAt.After(now)
}

// Scope restricts queries to an owner and optionally an organization.
type Scope struct {
	OwnerID string
	OrgID   string
}

// EnqueueRequest describes a recording handed to the queue.
type EnqueueRequest struct {
	OwnerID     string
	OrgID       string
	PayloadPath string
	PayloadSize int64
	PayloadMime string
	// Priority overrides the default when set; escalation flags below win.
	Priority Priority
	// ImmediateUrgency escalates to urgent (medical context signals).
	ImmediateUrgency bool
	// EmergencyVisit escalates to high (flagged visit type).
	EmergencyVisit bool
}

// EffectivePriority applies the escalation rule to an enqueue request.
func (r EnqueueRequest) EffectivePriority() Priority {
	if r.ImmediateUrgency {
		return PriorityUrgent
	}
	if r.EmergencyVisit {
		return PriorityHigh
	}
	if _, ok := priorityRanks[r.Priority]; ok && r.Priority != "" {
		return r.Priority
	}
	return PriorityNormal
}

// TransitionData carries optional fields persisted alongside a status change.
type TransitionData struct {
	LastError     string
	ErrorDetails  string
	ResultRef     string
	CreatedNoteID string
}

// Stats aggregates queue activity for an owner scope.
type Stats struct {
	Total             int
	ByStatus          map[Status]int
	AvgProcessingTime time.Duration
	AvgQueueTime      time.Duration
}

// HealthSummary describes aggregated queue counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Failed     int
	Completed  int
	Cancelled  int
}

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	IntegrityCheck   bool
	TotalItems       int
	Error            string
}
