package model

import "time"

// RunMetrics represents overall run performance metrics
type RunMetrics struct {
	TotalRecords    int64                   `json:"total_records"`
	ValidRecords    int64                   `json:"valid_records"`
	ExcludedRecords int64                   `json:"excluded_records"`
	ProcessingTime  time.Duration           `json:"processing_time"`
	StageMetrics    map[string]StageMetrics `json:"stage_metrics"`
}

// StageMetrics represents metrics for a specific run stage
type StageMetrics struct {
	StageName        string        `json:"stage_name"`
	Status           string        `json:"status"` // "running", "completed", "failed"
	StartTime        time.Time     `json:"start_time"`
	EndTime          time.Time     `json:"end_time"`
	Duration         time.Duration `json:"duration"`
	RecordsProcessed int64         `json:"records_processed"`
	Error            string        `json:"error,omitempty"`
}

// ErrorDetail represents a detailed error with context
type ErrorDetail struct {
	Stage     string    `json:"stage"`
	ErrorType string    `json:"error_type"` // "data", "fit", "io", "cancelled"
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
