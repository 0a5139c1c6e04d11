package models

import (
	"time"
)

// DocumentStatus tracks a document through the processing pipeline.
// Transitions are monotonic: pending -> processing -> completed | failed.
type DocumentStatus string

const (
	DocumentStatusPending    DocumentStatus = "pending"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusCompleted  DocumentStatus = "completed"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// rank orders statuses so storage can reject backwards transitions
func (s DocumentStatus) rank() int {
	switch s {
	case DocumentStatusPending:
		return 0
	case DocumentStatusProcessing:
		return 1
	case DocumentStatusCompleted, DocumentStatusFailed:
		return 2
	default:
		return -1
	}
}

// CanTransitionTo reports whether moving from s to next is a forward transition
func (s DocumentStatus) CanTransitionTo(next DocumentStatus) bool {
	if s == next {
		return true
	}
	return next.rank() > s.rank()
}

// IsTerminal reports whether the status admits no further transitions
func (s DocumentStatus) IsTerminal() bool {
	return s == DocumentStatusCompleted || s == DocumentStatusFailed
}

// Document is the persistent record for one uploaded PDF
type Document struct {
	ID          string         `json:"id" badgerhold:"key"`
	Filename    string         `json:"filename"`
	Status      DocumentStatus `json:"status" badgerhold:"index"`
	SizeBytes   int64          `json:"size_bytes"`
	PageCount   int            `json:"page_count"`
	StoragePath string         `json:"storage_path"`
	Error       string         `json:"error,omitempty"`
	ErrorKind   string         `json:"error_kind,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// DocumentStats aggregates counts across the document store.
// RecentUploads counts documents created within the last 24 hours.
type DocumentStats struct {
	Total         int   `json:"total"`
	Pending       int   `json:"pending"`
	Processing    int   `json:"processing"`
	Completed     int   `json:"completed"`
	Failed        int   `json:"failed"`
	TotalSize     int64 `json:"total_size"`
	RecentUploads int   `json:"recent_uploads"`
}

// ListOptions controls paging and filtering of document listings
type ListOptions struct {
	Status DocumentStatus `json:"status,omitempty"`
	Limit  int            `json:"limit,omitempty"`
	Offset int            `json:"offset,omitempty"`
}

// ListResult carries one page of documents plus the unfiltered total
type ListResult struct {
	Documents []Document `json:"documents"`
	Total     int        `json:"total"`
}
