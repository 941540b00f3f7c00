package api

// QueueItem describes a queue entry in a transport-friendly format.
type QueueItem struct {
	ID            int64  `json:"id"`
	OwnerID       string `json:"ownerId"`
	OrgID         string `json:"orgId,omitempty"`
	PayloadPath   string `json:"payloadPath"`
	PayloadSize   int64  `json:"payloadSize"`
	PayloadMime   string `json:"payloadMime,omitempty"`
	Priority      string `json:"priority"`
	Status        string `json:"status"`
	Position      int64  `json:"position"`
	RetryCount    int    `json:"retryCount"`
	MaxRetries    int    `json:"maxRetries"`
	LastError     string `json:"lastError,omitempty"`
	ErrorDetails  string `json:"errorDetails,omitempty"`
	ResultRef     string `json:"resultRef,omitempty"`
	CreatedNoteID string `json:"createdNoteId,omitempty"`
	StartedAt     string `json:"startedAt,omitempty"`
	CompletedAt   string `json:"completedAt,omitempty"`
	CreatedAt     string `json:"createdAt,omitempty"`
	UpdatedAt     string `json:"updatedAt,omitempty"`
	ExpiresAt     string `json:"expiresAt,omitempty"`
}

// QueueListResponse wraps a queue listing.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
}

// QueueItemResponse wraps a single queue entry.
type QueueItemResponse struct {
	Item QueueItem `json:"item"`
}

// ProcessRequest carries the submission context captured when processing is
// triggered.
type ProcessRequest struct {
	PatientName     string `json:"patient_name,omitempty"`
	ClinicalContext string `json:"clinical_context,omitempty"`
}

// ProcessResponse acknowledges a background processing start.
type ProcessResponse struct {
	ItemID int64  `json:"item_id"`
	Status string `json:"status"`
}

// Stats mirrors queue aggregate statistics. Durations travel as
// milliseconds.
type Stats struct {
	Total               int            `json:"total"`
	ByStatus            map[string]int `json:"byStatus"`
	AvgProcessingMillis int64          `json:"avgProcessingMillis"`
	AvgQueueMillis      int64          `json:"avgQueueMillis"`
}

// CleanupResponse reports how many items a retention sweep removed.
type CleanupResponse struct {
	Removed int64 `json:"removed"`
}

// DaemonStatus reports daemon runtime information.
type DaemonStatus struct {
	Running      bool   `json:"running"`
	PID          int    `json:"pid"`
	Busy         bool   `json:"busy"`
	ActiveItemID int64  `json:"active_item_id,omitempty"`
	QueueDBPath  string `json:"queue_db_path"`
	LockFilePath string `json:"lock_file_path"`
}

// DatabaseHealth mirrors queue database diagnostics.
type DatabaseHealth struct {
	DBPath           string   `json:"dbPath"`
	DatabaseExists   bool     `json:"databaseExists"`
	DatabaseReadable bool     `json:"databaseReadable"`
	TableExists      bool     `json:"tableExists"`
	ColumnsPresent   []string `json:"columnsPresent,omitempty"`
	MissingColumns   []string `json:"missingColumns,omitempty"`
	IntegrityCheck   bool     `json:"integrityCheck"`
	TotalItems       int      `json:"totalItems"`
	Error            string   `json:"error,omitempty"`
}

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
