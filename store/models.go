package store

import "time"

// Definition statuses.
const (
	StatusActive   = "active"
	StatusDisabled = "disabled"
	StatusError    = "error"
)

// Execution statuses.
const (
	ExecSuccess = "success"
	ExecError   = "error"
	ExecTimeout = "timeout"
)

// FunctionDefinition is a named, user-registered unit of logic. Versions
// and executions are owned by identifier; the definition carries no
// back-references to avoid reference cycles.
type FunctionDefinition struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Name        string         `gorm:"size:100;index;not null" json:"name"`
	Description string         `json:"description"`
	Schema      map[string]any `gorm:"serializer:json" json:"parameters"`
	Status      string         `gorm:"size:20;not null;default:active" json:"status"`
	// ActiveName mirrors Name while the definition is active and is NULL
	// otherwise. The unique index makes the one-active-holder-per-name rule
	// hold at the database level, even for concurrent registrations; NULLs
	// do not collide, so retired names accumulate freely.
	ActiveName *string   `gorm:"size:100;uniqueIndex" json:"-"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// FunctionVersion is an immutable snapshot of a function's source code.
// Never mutated after creation; edits append new rows.
type FunctionVersion struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	DefinitionID  uint      `gorm:"uniqueIndex:idx_def_version;not null" json:"definition_id"`
	VersionNumber int       `gorm:"uniqueIndex:idx_def_version;not null" json:"version_number"`
	Code          string    `gorm:"type:text;not null" json:"code"`
	CreatedAt     time.Time `json:"created_at"`
}

// FunctionExecution is one invocation record. Append-only: rows are never
// updated or deleted. Result and the error fields are mutually exclusive.
type FunctionExecution struct {
	ID            string         `gorm:"primaryKey;size:36" json:"id"`
	DefinitionID  uint           `gorm:"index;not null" json:"definition_id"`
	VersionNumber int            `gorm:"not null" json:"version_number"`
	Parameters    map[string]any `gorm:"serializer:json" json:"parameters"`
	Result        *string        `gorm:"type:text" json:"result,omitempty"`
	ErrorKind     string         `gorm:"size:40" json:"error_kind,omitempty"`
	ErrorMessage  string         `json:"error_message,omitempty"`
	Status        string         `gorm:"size:20;not null" json:"status"`
	DurationMs    int64          `json:"duration_ms"`
	PeakMemory    int64          `json:"peak_memory"`
	StartedAt     time.Time      `json:"started_at"`
	FinishedAt    time.Time      `json:"finished_at"`
}

// Item is the generic data-store resource.
type Item struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"size:100;not null" json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// MediaFile is an uploaded file with an expiry deadline; the purge loop
// removes file and row once DeletionTime passes.
type MediaFile struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SenderName   string    `gorm:"size:100;not null" json:"sender_name"`
	DataType     string    `gorm:"size:50;index;not null" json:"data_type"`
	Timestamp    time.Time `gorm:"index" json:"timestamp"`
	FilePath     string    `gorm:"size:255;not null" json:"file_path"`
	DeletionTime time.Time `gorm:"index;not null" json:"deletion_time"`
	ContentType  string    `gorm:"size:100;not null" json:"content_type"`
}
