package model

import "time"

// Fixed constants of this analysis; they are not run parameters.
var (
	// SplitDate is the first day of the Post-Decline partition.
	SplitDate = time.Date(2026, time.February, 4, 0, 0, 0, 0, time.UTC)
)

// ExcludedPhoneNumber is dropped from the dataset before any computation.
const ExcludedPhoneNumber = "20407"

// Known segment values of the delivery report.
var KnownSegments = []string{"Clicker", "New Data", "TriggeredSend"}

// Stage names used for logging, tracking and persisted progress.
const (
	StageIngest    = "ingestion"
	StageValidate  = "validation"
	StageTransform = "transformation"
	StageAggregate = "aggregation"
	StageCompare   = "comparison"
	StageDecompose = "decomposition"
	StageRegress   = "regression"
	StageExport    = "export"
)

// Run statuses
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Validation defines the accepted categorical vocabularies for a run
type Validation struct {
	Carriers []string `json:"carriers,omitempty" yaml:"carriers"` // empty accepts any non-empty carrier
	Segments []string `json:"segments,omitempty" yaml:"segments"` // empty falls back to KnownSegments
}

// Export defines export targets
type Export struct {
	Dir    string `json:"dir" yaml:"dir"`       // base output directory, one subdirectory per run
	Charts bool   `json:"charts" yaml:"charts"` // render PNG charts
}

// RunSpec defines one analysis run
type RunSpec struct {
	Input      string     `json:"input"`                // CSV path
	Validation Validation `json:"validation,omitempty"` // categorical vocabularies
	Export     Export     `json:"export"`               // output rules
	Timeout    string     `json:"timeout,omitempty"`    // e.g., "2m"
}
