package pipeline

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"sms-decline-analysis/internal/logger"
	"sms-decline-analysis/internal/model"
	"sms-decline-analysis/pkg/utils"
)

// Store is the persistence a run reports into.
type Store interface {
	Recorder
	SaveResults(runID string, rep *model.Report, files []model.ExportResult) error
}

// ------------------- Run -------------------

// Run executes one analysis run: ingest, analyze, export, persist. st may be nil.
// A failed run leaves no artifacts behind.
func Run(ctx context.Context, runID string, spec model.RunSpec, st Store) (rep *model.Report, files []model.ExportResult, err error) {
	log := logger.Log.WithFields(logrus.Fields{"run_id": runID, "input": spec.Input})
	log.Info("🚀 Starting analysis run")

	var rec Recorder
	if st != nil {
		rec = st
	}
	setStatus := func(status string) {
		if st == nil {
			return
		}
		if serr := st.UpdateRunStatus(runID, status); serr != nil {
			log.WithError(serr).Warn("failed to update run status")
		}
	}
	setStatus(model.StatusRunning)

	var outDir string
	defer func() {
		if err == nil {
			return
		}
		if outDir != "" {
			os.RemoveAll(outDir)
		}
		setStatus(failureStatus(err))
	}()

	ctx, cancel := context.WithTimeout(ctx, utils.ParseDuration(spec.Timeout))
	defer cancel()

	tracker := NewRunTracker(runID, rec)

	var ing *IngestResult
	err = tracker.Stage(ctx, model.StageIngest, func() (int64, error) {
		var ierr error
		ing, ierr = IngestFile(ctx, spec.Input)
		if ierr != nil {
			return 0, ierr
		}
		return int64(ing.TotalRows), nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("ingest %s: %w", spec.Input, err)
	}
	tracker.Count(ing.TotalRows, len(ing.Observations), ing.Excluded)

	rep, err = Analyze(ctx, ing, spec.Validation, tracker)
	if err != nil {
		return nil, nil, fmt.Errorf("analyze: %w", err)
	}

	err = tracker.Stage(ctx, model.StageExport, func() (int64, error) {
		var eerr error
		outDir, eerr = utils.NewOutputManager(spec.Export.Dir).CreateRunOutputDir(runID)
		if eerr != nil {
			return 0, eerr
		}
		files, eerr = Export(ctx, rep, outDir, spec.Export.Charts)
		if eerr != nil {
			return 0, eerr
		}
		if st != nil {
			if eerr = st.SaveResults(runID, rep, files); eerr != nil {
				return 0, eerr
			}
		}
		return int64(len(files)), nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("export: %w", err)
	}

	setStatus(model.StatusCompleted)
	metrics := tracker.Metrics()
	log.WithFields(logrus.Fields{
		"rows":     metrics.ValidRecords,
		"excluded": metrics.ExcludedRecords,
		"files":    len(files),
		"duration": metrics.ProcessingTime.String(),
	}).Info("🏁 Analysis run completed")
	return rep, files, nil
}

// Analyze runs the computation stages on ingested rows and assembles the report.
// It is a pure function of ing and rules; tracker may be nil.
func Analyze(ctx context.Context, ing *IngestResult, rules model.Validation, tracker *RunTracker) (*model.Report, error) {
	rep := &model.Report{
		ExcludedRows: ing.Excluded,
		SplitDate:    model.SplitDate,
	}

	err := tracker.Stage(ctx, model.StageValidate, func() (int64, error) {
		return int64(len(ing.Observations)), ValidateObservations(ing.Observations, rules)
	})
	if err != nil {
		return nil, err
	}

	var obs []model.Observation
	err = tracker.Stage(ctx, model.StageTransform, func() (int64, error) {
		obs = TransformObservations(ing.Observations)
		return int64(len(obs)), nil
	})
	if err != nil {
		return nil, err
	}
	rep.Rows = len(obs)
	rep.StartDate = obs[0].Date
	rep.EndDate = obs[len(obs)-1].Date

	err = tracker.Stage(ctx, model.StageAggregate, func() (int64, error) {
		var aerr error
		if rep.Daily, aerr = AggregateDaily(obs); aerr != nil {
			return 0, aerr
		}
		rep.Pre, rep.Post, aerr = SplitTotals(obs)
		return int64(len(rep.Daily)), aerr
	})
	if err != nil {
		return nil, err
	}

	err = tracker.Stage(ctx, model.StageCompare, func() (int64, error) {
		var cerr error
		rep.Comparison, cerr = Compare(rep.Pre, rep.Post)
		return int64(len(rep.Comparison)), cerr
	})
	if err != nil {
		return nil, err
	}

	err = tracker.Stage(ctx, model.StageDecompose, func() (int64, error) {
		var derr error
		if rep.Decomposition, derr = Decompose(rep.Pre, rep.Post); derr != nil {
			return 0, derr
		}
		rep.Phones, rep.StatusRollup, derr = PhoneBreakdown(obs, rep.Pre, rep.Post)
		return int64(len(rep.Phones)), derr
	})
	if err != nil {
		return nil, err
	}

	err = tracker.Stage(ctx, model.StageRegress, func() (int64, error) {
		var rerr error
		rep.Models, rerr = FitModels(obs, rep.Daily)
		return int64(len(rep.Models)), rerr
	})
	if err != nil {
		return nil, err
	}

	return rep, nil
}

func failureStatus(err error) string {
	if ClassifyError(err) == "cancelled" {
		return model.StatusCancelled
	}
	return model.StatusFailed
}
