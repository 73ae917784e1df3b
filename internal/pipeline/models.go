package pipeline

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"sms-decline-analysis/internal/logger"
	"sms-decline-analysis/internal/model"
	"sms-decline-analysis/internal/regression"
)

// Fitted model names.
const (
	ModelDailyTrend      = "daily_trend"
	ModelDailyTrendBreak = "daily_trend_break"
	ModelRowLevel        = "row_level"
)

// FitModels fits the daily time-trend model, the trend model with a
// post-decline shift, and the row-level model, in that order.
func FitModels(obs []model.Observation, daily []model.DailyAggregate) ([]model.RegressionResult, error) {
	n := len(daily)
	revenue := make([]float64, n)
	dayNum := make([]float64, n)
	post := make([]float64, n)
	for i, d := range daily {
		revenue[i] = d.Revenue
		dayNum[i] = float64(d.DayNum)
		if d.Partition == model.PostDecline {
			post[i] = 1
		}
	}

	specs := []struct {
		spec    regression.Spec
		formula string
	}{
		{
			spec: regression.Spec{
				Model:    ModelDailyTrend,
				Response: revenue,
				Numeric:  []regression.Numeric{{Name: "day_num", Values: dayNum}},
			},
			formula: "daily_revenue ~ 1 + day_num",
		},
		{
			spec: regression.Spec{
				Model:    ModelDailyTrendBreak,
				Response: revenue,
				Numeric: []regression.Numeric{
					{Name: "day_num", Values: dayNum},
					{Name: "post_decline", Values: post},
				},
			},
			formula: "daily_revenue ~ 1 + day_num + post_decline",
		},
		{
			spec:    RowLevelSpec(obs, nil),
			formula: "revenue ~ 1 + day_num + clicked + sent + C(carrier) + C(segment)",
		},
	}

	results := make([]model.RegressionResult, 0, len(specs))
	for _, s := range specs {
		d, err := regression.Build(s.spec)
		if err != nil {
			return nil, err
		}
		fit, err := regression.OLS(d, s.formula)
		if err != nil {
			return nil, err
		}
		logger.Log.WithFields(logrus.Fields{
			"stage":     model.StageRegress,
			"model":     s.spec.Model,
			"n":         fit.Result.N,
			"r_squared": fmt.Sprintf("%.3f", fit.Result.RSquared),
		}).Info("📈 Model fitted")
		results = append(results, fit.Result)
	}
	return results, nil
}

// RowLevelSpec is the row-level model: revenue on day number, clicks, sends
// and dummy-encoded carrier and segment. refs overrides reference levels.
func RowLevelSpec(obs []model.Observation, refs map[string]string) regression.Spec {
	n := len(obs)
	y := make([]float64, n)
	day := make([]float64, n)
	clicked := make([]float64, n)
	sent := make([]float64, n)
	carrier := make([]string, n)
	segment := make([]string, n)
	for i, o := range obs {
		y[i] = o.Revenue
		day[i] = float64(o.DayNum)
		clicked[i] = o.Clicked
		sent[i] = o.Sent
		carrier[i] = o.Carrier
		segment[i] = o.Segment
	}
	return regression.Spec{
		Model:    ModelRowLevel,
		Response: y,
		Numeric: []regression.Numeric{
			{Name: "day_num", Values: day},
			{Name: "clicked", Values: clicked},
			{Name: "sent", Values: sent},
		},
		Categorical: []regression.Categorical{
			{Name: "carrier", Values: carrier},
			{Name: "segment", Values: segment},
		},
		References: refs,
	}
}
