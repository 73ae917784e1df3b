package pipeline

import (
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"sms-decline-analysis/internal/logger"
	"sms-decline-analysis/internal/model"
)

// TransformObservations returns a date-ordered copy of obs with the day number
// (days since the earliest date) and partition filled in. The input is not modified.
func TransformObservations(obs []model.Observation) []model.Observation {
	out := make([]model.Observation, len(obs))
	copy(out, obs)

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	if len(out) == 0 {
		return out
	}

	start := out[0].Date
	for i := range out {
		out[i].DayNum = daysBetween(start, out[i].Date)
		out[i].Partition = model.PartitionOf(out[i].Date)
	}

	logger.Log.WithFields(logrus.Fields{
		"stage":   model.StageTransform,
		"records": len(out),
		"start":   start.Format("2006-01-02"),
		"end":     out[len(out)-1].Date.Format("2006-01-02"),
	}).Info("🔄 Transformation complete")
	return out
}

// daysBetween counts whole calendar days; dates are UTC midnights.
func daysBetween(from, to time.Time) int {
	return int((to.Unix() - from.Unix()) / 86400)
}
