package models

import (
	"time"
)

// Stage identifies a phase of the document processing pipeline
type Stage string

const (
	StageUploading       Stage = "UPLOADING"
	StageParsing         Stage = "PARSING"
	StageImageExtraction Stage = "IMAGE_EXTRACTION"
	StageGraphBuild      Stage = "GRAPH_BUILD"
	StageEmbedding       Stage = "EMBEDDING"
	StageSummarization   Stage = "SUMMARIZATION"
	StageEvaluation      Stage = "EVALUATION"
	StageCompleted       Stage = "COMPLETED"
	StageFailed          Stage = "FAILED"
)

// stageRange maps each stage onto its slice of the overall 0-100 scale
type stageRange struct {
	Start int
	End   int
}

var stageRanges = map[Stage]stageRange{
	StageUploading:       {0, 10},
	StageParsing:         {10, 30},
	StageImageExtraction: {30, 40},
	StageGraphBuild:      {40, 60},
	StageEmbedding:       {60, 75},
	StageSummarization:   {75, 90},
	StageEvaluation:      {90, 95},
	StageCompleted:       {100, 100},
	StageFailed:          {0, 0},
}

// GlobalPercent maps a within-stage percentage (0-100) to the overall
// pipeline percentage for this stage
func (s Stage) GlobalPercent(stagePercent int) int {
	r, ok := stageRanges[s]
	if !ok {
		return 0
	}
	if stagePercent < 0 {
		stagePercent = 0
	}
	if stagePercent > 100 {
		stagePercent = 100
	}
	return r.Start + (r.End-r.Start)*stagePercent/100
}

// ProgressEventType distinguishes the messages sent to progress subscribers
type ProgressEventType string

const (
	EventTypeProgress        ProgressEventType = "progress"
	EventTypeSummaryComplete ProgressEventType = "summary_complete"
	EventTypeError           ProgressEventType = "error"
	EventTypeConnection      ProgressEventType = "connection_established"
	EventTypeHeartbeat       ProgressEventType = "heartbeat"
)

// ProgressEvent is one update published for a document in flight
type ProgressEvent struct {
	Type       ProgressEventType `json:"type"`
	DocumentID string            `json:"document_id"`
	Stage      Stage             `json:"stage,omitempty"`
	Percent    int               `json:"percent"`
	Message    string            `json:"message,omitempty"`
	Error      string            `json:"error,omitempty"`
	ErrorKind  string            `json:"error_kind,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}
