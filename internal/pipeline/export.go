package pipeline

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"sms-decline-analysis/internal/logger"
	"sms-decline-analysis/internal/model"
)

// Artifact file names.
const (
	FileSummary      = "summary_table.csv"
	FileDecompose    = "decomposition.csv"
	FilePhones       = "phone_breakdown.csv"
	FileCoefficients = "regression_coefficients.csv"
	FileModels       = "regression_models.csv"
	FileReport       = "report.json"
	FileOverview     = "fig1_revenue_overview.png"
	FileBreakdown    = "fig2_breakdowns.png"
)

type artifact struct {
	name  string
	kind  string
	write func(path string) (int, error)
}

// Export writes every artifact of rep into dir. Artifacts are independent, so
// they are written concurrently; results come back in a fixed order.
func Export(ctx context.Context, rep *model.Report, dir string, charts bool) ([]model.ExportResult, error) {
	artifacts := []artifact{
		{FileSummary, "csv", func(p string) (int, error) { return writeSummary(p, rep) }},
		{FileDecompose, "csv", func(p string) (int, error) { return writeDecomposition(p, rep) }},
		{FilePhones, "csv", func(p string) (int, error) { return writePhones(p, rep) }},
		{FileCoefficients, "csv", func(p string) (int, error) { return writeCoefficients(p, rep) }},
		{FileModels, "csv", func(p string) (int, error) { return writeModels(p, rep) }},
		{FileReport, "json", func(p string) (int, error) { return 1, writeJSON(p, rep) }},
	}
	if charts {
		artifacts = append(artifacts,
			artifact{FileOverview, "png", func(p string) (int, error) { return len(rep.Daily), RenderOverview(p, rep) }},
			artifact{FileBreakdown, "png", func(p string) (int, error) { return len(rep.Phones), RenderBreakdown(p, rep) }},
		)
	}

	results := make([]model.ExportResult, len(artifacts))
	g, gctx := errgroup.WithContext(ctx)
	for i, a := range artifacts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			path := filepath.Join(dir, a.name)
			n, err := a.write(path)
			if err != nil {
				return fmt.Errorf("write %s: %w", a.name, err)
			}
			var size int64
			if info, err := os.Stat(path); err == nil {
				size = info.Size()
			}
			results[i] = model.ExportResult{
				Type:      a.kind,
				Name:      a.name,
				Path:      path,
				Rows:      n,
				Size:      size,
				Timestamp: time.Now().UTC(),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.Log.WithFields(logrus.Fields{
		"stage": model.StageExport,
		"dir":   dir,
		"files": len(results),
	}).Info("💾 Export complete")
	return results, nil
}

func writeSummary(path string, rep *model.Report) (int, error) {
	rows := make([][]string, 0, len(rep.Comparison))
	for _, r := range rep.Comparison {
		rows = append(rows, []string{r.Metric, formatFloat(r.Pre), formatFloat(r.Post), formatFloat(r.PctChange)})
	}
	return writeCSV(path, []string{"metric", "pre", "post", "pct_change"}, rows)
}

func writeDecomposition(path string, rep *model.Report) (int, error) {
	d := rep.Decomposition
	rows := [][]string{
		{"pre_revenue_per_day", formatFloat(d.PreRevenuePerDay), ""},
		{"post_revenue_per_day", formatFloat(d.PostRevenuePerDay), ""},
		{"total_delta", formatFloat(d.TotalDelta), "100"},
		{"volume_effect", formatFloat(d.VolumeEffect), formatFloat(d.VolumeSharePct)},
		{"efficiency_effect", formatFloat(d.EfficiencyEffect), formatFloat(d.EfficiencySharePct)},
	}
	for _, r := range rep.StatusRollup {
		rows = append(rows, []string{"phones_" + string(r.Status), formatFloat(r.Delta), formatFloat(r.SharePct)})
	}
	return writeCSV(path, []string{"component", "value_per_day", "share_pct"}, rows)
}

func writePhones(path string, rep *model.Report) (int, error) {
	rows := make([][]string, 0, len(rep.Phones))
	for _, p := range rep.Phones {
		rows = append(rows, []string{
			p.Label,
			p.PhoneNumber,
			string(p.Status),
			p.FirstSeen.Format("2006-01-02"),
			p.LastSeen.Format("2006-01-02"),
			strconv.Itoa(p.PreActiveDays),
			strconv.Itoa(p.PostActiveDays),
			formatFloat(p.PreRevenuePerDay),
			formatFloat(p.PostRevenuePerDay),
			formatFloat(p.Delta),
			formatFloat(p.SharePct),
		})
	}
	header := []string{"label", "phone_number", "status", "first_seen", "last_seen", "pre_active_days",
		"post_active_days", "pre_revenue_per_day", "post_revenue_per_day", "delta", "share_pct"}
	return writeCSV(path, header, rows)
}

func writeCoefficients(path string, rep *model.Report) (int, error) {
	var rows [][]string
	for _, m := range rep.Models {
		for _, c := range m.Coefficients {
			rows = append(rows, []string{
				m.Model,
				c.Factor,
				formatFloat(c.Estimate),
				formatFloat(c.StdError),
				formatFloat(c.TStat),
				formatFloat(c.PValue),
				c.Sig,
			})
		}
	}
	return writeCSV(path, []string{"model", "factor", "coefficient", "std_error", "t_stat", "p_value", "sig"}, rows)
}

func writeModels(path string, rep *model.Report) (int, error) {
	rows := make([][]string, 0, len(rep.Models))
	for _, m := range rep.Models {
		rows = append(rows, []string{
			m.Model,
			m.Formula,
			strconv.Itoa(m.N),
			strconv.Itoa(m.DF),
			formatFloat(m.RSquared),
			formatFloat(m.AdjRSquared),
		})
	}
	return writeCSV(path, []string{"model", "formula", "n", "df", "r_squared", "adj_r_squared"}, rows)
}

func writeCSV(path string, header []string, rows [][]string) (int, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(header); err != nil {
		return 0, err
	}
	if err := w.WriteAll(rows); err != nil {
		return 0, err
	}
	return len(rows), file.Close()
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// formatFloat is the shortest representation that round-trips.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
