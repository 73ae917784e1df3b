package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"sms-decline-analysis/internal/logger"
	"sms-decline-analysis/internal/model"
)

// Recorder persists run progress. A nil Recorder disables persistence.
type Recorder interface {
	UpdateRunStatus(runID, status string) error
	SaveStageProgress(runID string, stage model.StageMetrics) error
	SaveRunError(runID string, detail model.ErrorDetail) error
}

// RunTracker manages run execution tracking and stage metrics
type RunTracker struct {
	RunID    string
	recorder Recorder
	log      *logrus.Entry

	mu      sync.Mutex
	start   time.Time
	metrics model.RunMetrics
	order   []string
	errors  []model.ErrorDetail
}

// NewRunTracker creates a new run tracker
func NewRunTracker(runID string, recorder Recorder) *RunTracker {
	return &RunTracker{
		RunID:    runID,
		recorder: recorder,
		log:      logger.Log.WithField("run_id", runID),
		start:    time.Now(),
		metrics: model.RunMetrics{
			StageMetrics: make(map[string]model.StageMetrics),
		},
	}
}

// Stage runs fn as the named stage. fn reports how many records it processed.
// Start, completion and failure are logged and persisted.
func (t *RunTracker) Stage(ctx context.Context, name string, fn func() (int64, error)) error {
	if t == nil {
		_, err := fn()
		return err
	}
	if err := ctx.Err(); err != nil {
		t.fail(name, err)
		return err
	}

	sm := model.StageMetrics{StageName: name, Status: model.StatusRunning, StartTime: time.Now()}
	t.setStage(sm)
	t.log.WithField("stage", name).Debug("stage started")

	n, err := fn()

	sm.EndTime = time.Now()
	sm.Duration = sm.EndTime.Sub(sm.StartTime)
	sm.RecordsProcessed = n
	if err != nil {
		sm.Status = model.StatusFailed
		sm.Error = err.Error()
		t.setStage(sm)
		t.fail(name, err)
		return err
	}
	sm.Status = model.StatusCompleted
	t.setStage(sm)

	t.log.WithFields(logrus.Fields{
		"stage":    name,
		"records":  n,
		"duration": sm.Duration.String(),
	}).Debug("stage completed")
	return nil
}

// Count records run-level counters.
func (t *RunTracker) Count(total, valid, excluded int) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.metrics.TotalRecords = int64(total)
	t.metrics.ValidRecords = int64(valid)
	t.metrics.ExcludedRecords = int64(excluded)
}

// Metrics returns a snapshot of the run metrics.
func (t *RunTracker) Metrics() model.RunMetrics {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := t.metrics
	out.ProcessingTime = time.Since(t.start)
	out.StageMetrics = make(map[string]model.StageMetrics, len(t.metrics.StageMetrics))
	for k, v := range t.metrics.StageMetrics {
		out.StageMetrics[k] = v
	}
	return out
}

// Stages returns stage metrics in execution order.
func (t *RunTracker) Stages() []model.StageMetrics {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]model.StageMetrics, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, t.metrics.StageMetrics[name])
	}
	return out
}

// Errors returns recorded error details.
func (t *RunTracker) Errors() []model.ErrorDetail {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]model.ErrorDetail(nil), t.errors...)
}

func (t *RunTracker) setStage(sm model.StageMetrics) {
	t.mu.Lock()
	if _, seen := t.metrics.StageMetrics[sm.StageName]; !seen {
		t.order = append(t.order, sm.StageName)
	}
	t.metrics.StageMetrics[sm.StageName] = sm
	t.mu.Unlock()

	if t.recorder != nil {
		if err := t.recorder.SaveStageProgress(t.RunID, sm); err != nil {
			t.log.WithError(err).Warn("failed to persist stage progress")
		}
	}
}

func (t *RunTracker) fail(stage string, err error) {
	detail := model.ErrorDetail{
		Stage:     stage,
		ErrorType: ClassifyError(err),
		Message:   err.Error(),
		Timestamp: time.Now().UTC(),
	}

	t.mu.Lock()
	t.errors = append(t.errors, detail)
	t.mu.Unlock()

	t.log.WithFields(logrus.Fields{
		"stage":      stage,
		"error_type": detail.ErrorType,
	}).Error("❌ " + detail.Message)

	if t.recorder != nil {
		if rerr := t.recorder.SaveRunError(t.RunID, detail); rerr != nil {
			t.log.WithError(rerr).Warn("failed to persist run error")
		}
	}
}

// ClassifyError maps an error to the ErrorDetail type vocabulary.
func ClassifyError(err error) string {
	var de *model.DataError
	var fe *model.FitError
	switch {
	case errors.As(err, &de):
		return "data"
	case errors.As(err, &fe):
		return "fit"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "io"
	}
}
