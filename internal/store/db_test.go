package store

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sms-decline-analysis/internal/model"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleReport() *model.Report {
	return &model.Report{
		Rows: 3,
		Comparison: []model.ComparisonRow{
			{Metric: "revenue_per_day", Pre: 600, Post: 350, PctChange: -41.67},
			{Metric: "sends_per_day", Pre: 1000, Post: 800, PctChange: -20},
		},
		Models: []model.RegressionResult{
			{Model: "daily_trend", Coefficients: []model.Coefficient{
				{Factor: "const", Estimate: 700, StdError: 10, TStat: 70, PValue: 1e-20, Sig: "***"},
				{Factor: "day_num", Estimate: -42, StdError: 2, TStat: -21, PValue: 1e-10, Sig: "***"},
			}},
			{Model: "row_level", Coefficients: []model.Coefficient{
				{Factor: "const", Estimate: 1, StdError: 1, TStat: 1, PValue: 0.3},
			}},
		},
	}
}

func TestRunLifecycle(t *testing.T) {
	s := openTest(t)
	spec := model.RunSpec{Input: "report.csv", Timeout: "5m"}

	require.NoError(t, s.SaveRun("run-1", spec))
	require.NoError(t, s.UpdateRunStatus("run-1", model.StatusRunning))

	run, err := s.GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusRunning, run.Status)
	require.NotNil(t, run.Spec)
	assert.Equal(t, "report.csv", run.Spec.Input)

	runs, err := s.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
}

func TestGetRunUnknown(t *testing.T) {
	s := openTest(t)
	_, err := s.GetRun("missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSaveResultsKeepsOrderAndReplaces(t *testing.T) {
	s := openTest(t)
	require.NoError(t, s.SaveRun("run-1", model.RunSpec{}))
	rep := sampleReport()

	require.NoError(t, s.SaveResults("run-1", rep, nil))
	require.NoError(t, s.SaveResults("run-1", rep, nil))

	cmp, err := s.GetComparison("run-1")
	require.NoError(t, err)
	assert.Equal(t, rep.Comparison, cmp)

	coefs, err := s.GetCoefficients("run-1", "")
	require.NoError(t, err)
	assert.Len(t, coefs, 2)
	assert.Equal(t, rep.Models[0].Coefficients, coefs["daily_trend"])

	only, err := s.GetCoefficients("run-1", "row_level")
	require.NoError(t, err)
	assert.Len(t, only, 1)
	assert.Len(t, only["row_level"], 1)

	got, err := s.GetReport("run-1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Rows)
}

func TestSaveResultsIsAtomic(t *testing.T) {
	s := openTest(t)
	require.NoError(t, s.SaveRun("run-1", model.RunSpec{}))
	require.NoError(t, s.SaveRun("run-2", model.RunSpec{}))
	require.NoError(t, s.SaveResults("run-1", sampleReport(), nil))

	_, err := s.db.Exec(`DROP TABLE output_files`)
	require.NoError(t, err)
	files := []model.ExportResult{{Type: "csv", Name: "summary_table.csv", Path: "/tmp/x/summary_table.csv"}}

	// a fresh run keeps no partial results
	require.Error(t, s.SaveResults("run-2", sampleReport(), files))
	cmp, err := s.GetComparison("run-2")
	require.NoError(t, err)
	assert.Empty(t, cmp)
	coefs, err := s.GetCoefficients("run-2", "")
	require.NoError(t, err)
	assert.Empty(t, coefs)
	_, err = s.GetReport("run-2")
	assert.ErrorIs(t, err, ErrNotFound)

	// a failed resave leaves the earlier results in place
	changed := sampleReport()
	changed.Rows = 99
	require.Error(t, s.SaveResults("run-1", changed, files))
	got, err := s.GetReport("run-1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Rows)
	cmp, err = s.GetComparison("run-1")
	require.NoError(t, err)
	assert.Len(t, cmp, 2)
}

func TestProgressErrorsAndFiles(t *testing.T) {
	s := openTest(t)
	require.NoError(t, s.SaveRun("run-1", model.RunSpec{}))

	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sm := model.StageMetrics{StageName: model.StageIngest, Status: model.StatusRunning, StartTime: start}
	require.NoError(t, s.SaveStageProgress("run-1", sm))
	sm.Status = model.StatusCompleted
	sm.EndTime = start.Add(1500 * time.Millisecond)
	sm.Duration = 1500 * time.Millisecond
	sm.RecordsProcessed = 42
	require.NoError(t, s.SaveStageProgress("run-1", sm))

	progress, err := s.GetStageProgress("run-1")
	require.NoError(t, err)
	require.Len(t, progress, 1)
	assert.Equal(t, model.StatusCompleted, progress[0].Status)
	assert.EqualValues(t, 42, progress[0].RecordsProcessed)
	assert.Equal(t, 1500*time.Millisecond, progress[0].Duration)

	require.NoError(t, s.SaveRunError("run-1", model.ErrorDetail{Stage: model.StageValidate, ErrorType: "data", Message: "row 3: bad"}))
	errs, err := s.GetRunErrors("run-1")
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "data", errs[0].ErrorType)

	files := []model.ExportResult{
		{Type: "json", Name: "report.json", Path: "/tmp/x/report.json", Rows: 1, Size: 10, Timestamp: start},
		{Type: "csv", Name: "summary_table.csv", Path: "/tmp/x/summary_table.csv", Rows: 9, Size: 200, Timestamp: start},
	}
	require.NoError(t, s.SaveResults("run-1", sampleReport(), files))
	out, err := s.GetOutputFiles("run-1")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "report.json", out[0].Name)
	assert.EqualValues(t, 200, out[1].Size)
}

func TestDeleteRun(t *testing.T) {
	s := openTest(t)
	require.NoError(t, s.SaveRun("run-1", model.RunSpec{}))
	require.NoError(t, s.SaveResults("run-1", sampleReport(), nil))

	require.NoError(t, s.DeleteRun("run-1"))
	_, err := s.GetRun("run-1")
	assert.ErrorIs(t, err, ErrNotFound)
	cmp, err := s.GetComparison("run-1")
	require.NoError(t, err)
	assert.Empty(t, cmp)

	assert.ErrorIs(t, s.DeleteRun("run-1"), ErrNotFound)
}
