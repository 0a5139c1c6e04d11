package models

import (
	"time"
)

// TaskPurpose hints what a request is for so the quota manager can
// route it to an appropriately sized model
type TaskPurpose string

const (
	PurposeBulkProcessing   TaskPurpose = "bulk-processing"
	PurposeQuickSummary     TaskPurpose = "quick-summary"
	PurposeStandardAnalysis TaskPurpose = "standard-analysis"
	PurposeDetailedAnalysis TaskPurpose = "detailed-analysis"
	PurposeVisionAnalysis   TaskPurpose = "vision-analysis"
	PurposeCriticalTask     TaskPurpose = "critical-task"
)

// ModelLimits are the per-day and per-minute caps for one model
type ModelLimits struct {
	RequestsPerMinute int `json:"requests_per_minute"`
	TokensPerMinute   int `json:"tokens_per_minute"`
	RequestsPerDay    int `json:"requests_per_day"`
}

// ModelUsage is the running consumption against a model's limits.
// Counters reset at local midnight in the configured timezone.
type ModelUsage struct {
	RequestsToday int       `json:"requests_today"`
	TokensToday   int       `json:"tokens_today"`
	LastRequest   time.Time `json:"last_request"`
}

// ModelQuota pairs a model with its limits and current usage
type ModelQuota struct {
	Model  string      `json:"model"`
	Limits ModelLimits `json:"limits"`
	Usage  ModelUsage  `json:"usage"`
}

// QuotaSnapshot is a point-in-time view of all tracked models,
// safe to serialize for diagnostics
type QuotaSnapshot struct {
	Models    []ModelQuota `json:"models"`
	DayKey    string       `json:"day_key"`
	NextReset time.Time    `json:"next_reset"`
}
