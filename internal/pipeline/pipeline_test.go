package pipeline

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sms-decline-analysis/internal/model"
)

func synthSpec(t *testing.T, charts bool) model.RunSpec {
	t.Helper()
	return model.RunSpec{
		Input:   writeSynth(t),
		Export:  model.Export{Dir: filepath.Join(t.TempDir(), "outputs"), Charts: charts},
		Timeout: "1m",
	}
}

func TestRunEndToEnd(t *testing.T) {
	spec := synthSpec(t, true)
	rec := &memRecorder{}

	rep, files, err := Run(context.Background(), "run-1", spec, rec)
	require.NoError(t, err)

	assert.Equal(t, 15, rep.ExcludedRows)
	assert.Equal(t, synthStart, rep.StartDate)
	assert.Equal(t, day(synthDays-1), rep.EndDate)
	assert.Len(t, rep.Daily, synthDays)
	assert.Len(t, rep.Models, 3)
	assert.Less(t, rep.Decomposition.TotalDelta, 0.0)

	assert.Equal(t, []string{model.StatusRunning, model.StatusCompleted}, rec.statuses)
	assert.Same(t, rep, rec.report)
	assert.Equal(t, files, rec.files)
	assert.Empty(t, rec.errors)

	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name)
		info, err := os.Stat(f.Path)
		require.NoError(t, err, f.Name)
		assert.Equal(t, info.Size(), f.Size)
		assert.Equal(t, filepath.Join(spec.Export.Dir, "run-1", f.Name), f.Path)
	}
	assert.Equal(t, []string{FileSummary, FileDecompose, FilePhones, FileCoefficients, FileModels, FileReport,
		FileOverview, FileBreakdown}, names)

	completed := 0
	for _, s := range rec.stages {
		if s.Status == model.StatusCompleted {
			completed++
		}
	}
	assert.Equal(t, 8, completed, "every stage completes once")
}

func TestExportedSummaryTable(t *testing.T) {
	spec := synthSpec(t, false)
	rep, files, err := Run(context.Background(), "run-csv", spec, nil)
	require.NoError(t, err)
	assert.Len(t, files, 6)

	f, err := os.Open(files[0].Path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	assert.Equal(t, []string{"metric", "pre", "post", "pct_change"}, records[0])
	require.Len(t, records, len(rep.Comparison)+1)
	assert.Equal(t, MetricRevenuePerDay, records[1][0])
	assert.Equal(t, formatFloat(rep.Comparison[0].Pre), records[1][1])
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	ing, err := IngestFile(context.Background(), writeSynth(t))
	require.NoError(t, err)

	first, err := Analyze(context.Background(), ing, model.Validation{}, nil)
	require.NoError(t, err)
	second, err := Analyze(context.Background(), ing, model.Validation{}, nil)
	require.NoError(t, err)

	assert.Empty(t, cmp.Diff(first, second))
}

func TestRunFailureLeavesNoArtifacts(t *testing.T) {
	spec := synthSpec(t, false)
	spec.Validation.Carriers = []string{"AT&T"}
	rec := &memRecorder{}

	_, _, err := Run(context.Background(), "run-bad", spec, rec)
	var de *model.DataError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, colCarrier, de.Field)

	assert.Equal(t, model.StatusFailed, rec.statuses[len(rec.statuses)-1])
	require.Len(t, rec.errors, 1)
	assert.Equal(t, model.StageValidate, rec.errors[0].Stage)
	assert.Equal(t, "data", rec.errors[0].ErrorType)
	_, statErr := os.Stat(filepath.Join(spec.Export.Dir, "run-bad"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunSaveFailureLeavesNoArtifacts(t *testing.T) {
	spec := synthSpec(t, false)
	rec := &memRecorder{saveErr: errors.New("disk full")}

	_, _, err := Run(context.Background(), "run-save", spec, rec)
	require.Error(t, err)

	assert.Equal(t, model.StatusFailed, rec.statuses[len(rec.statuses)-1])
	assert.Nil(t, rec.report)
	assert.Nil(t, rec.files)
	require.Len(t, rec.errors, 1)
	assert.Equal(t, model.StageExport, rec.errors[0].Stage)
	_, statErr := os.Stat(filepath.Join(spec.Export.Dir, "run-save"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunCancelled(t *testing.T) {
	spec := synthSpec(t, false)
	rec := &memRecorder{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := Run(ctx, "run-cancel", spec, rec)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, model.StatusCancelled, rec.statuses[len(rec.statuses)-1])
	assert.Equal(t, "cancelled", rec.errors[0].ErrorType)
}

func TestRenderTables(t *testing.T) {
	spec := synthSpec(t, false)
	rep, _, err := Run(context.Background(), "run-render", spec, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	Render(&buf, rep)
	out := buf.String()
	assert.Contains(t, out, MetricRevenuePerDay)
	assert.Contains(t, out, "Volume (fewer sends)")
	assert.Contains(t, out, "Phone_1")
	assert.Contains(t, out, ModelRowLevel)
}

func TestClassifyError(t *testing.T) {
	assert.Equal(t, "data", ClassifyError(&model.DataError{Reason: "x"}))
	assert.Equal(t, "fit", ClassifyError(&model.FitError{Model: "m"}))
	assert.Equal(t, "cancelled", ClassifyError(context.DeadlineExceeded))
	assert.Equal(t, "io", ClassifyError(os.ErrNotExist))
}

// TestDeliveryReportDataset checks the headline numbers on the real export
// when it is available locally.
func TestDeliveryReportDataset(t *testing.T) {
	path := filepath.Join("testdata", "SmsDeliveryReport.csv")
	if _, err := os.Stat(path); err != nil {
		t.Skip("testdata/SmsDeliveryReport.csv not present")
	}

	ing, err := IngestFile(context.Background(), path)
	require.NoError(t, err)
	rep, err := Analyze(context.Background(), ing, model.Validation{}, nil)
	require.NoError(t, err)

	rpd := rep.Comparison[0]
	require.Equal(t, MetricRevenuePerDay, rpd.Metric)
	assert.InDelta(t, 608.68, rpd.Pre, 0.01)
	assert.InDelta(t, 346.63, rpd.Post, 0.01)
	assert.InDelta(t, -43.1, rpd.PctChange, 0.05)

	trend, ok := rep.Model(ModelDailyTrend)
	require.True(t, ok)
	slope, ok := trend.Coefficient("day_num")
	require.True(t, ok)
	assert.InDelta(t, -42, slope.Estimate, 1)
	assert.Less(t, slope.PValue, 0.001)
	assert.InDelta(t, 0.79, trend.RSquared, 0.01)

	d := rep.Decomposition
	assert.InDelta(t, d.TotalDelta, d.VolumeEffect+d.EfficiencyEffect, 1e-6)
}
