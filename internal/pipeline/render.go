package pipeline

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"sms-decline-analysis/internal/model"
)

// Render prints the report tables to w.
func Render(w io.Writer, rep *model.Report) {
	fmt.Fprintf(w, "\nRows analysed: %d (excluded %d), %s to %s, split %s\n",
		rep.Rows, rep.ExcludedRows,
		rep.StartDate.Format("2006-01-02"), rep.EndDate.Format("2006-01-02"), rep.SplitDate.Format("2006-01-02"))

	fmt.Fprintln(w, "\nPre vs post decline")
	t := newTable(w, "Metric", "Pre", "Post", "Change %")
	for _, r := range rep.Comparison {
		t.Append([]string{r.Metric, fixed(r.Pre, 4), fixed(r.Post, 4), fixed(r.PctChange, 1)})
	}
	t.Render()

	d := rep.Decomposition
	fmt.Fprintln(w, "\nRevenue/day decomposition")
	t = newTable(w, "Component", "Per day", "Share %")
	t.Append([]string{"Total change", fixed(d.TotalDelta, 2), "100.0"})
	t.Append([]string{"Volume (fewer sends)", fixed(d.VolumeEffect, 2), fixed(d.VolumeSharePct, 1)})
	t.Append([]string{"Efficiency (revenue/send)", fixed(d.EfficiencyEffect, 2), fixed(d.EfficiencySharePct, 1)})
	t.Render()

	fmt.Fprintln(w, "\nPhone numbers")
	t = newTable(w, "Phone", "Status", "Pre/day", "Post/day", "Delta", "Share %")
	for _, p := range rep.Phones {
		t.Append([]string{p.Label, string(p.Status), fixed(p.PreRevenuePerDay, 2), fixed(p.PostRevenuePerDay, 2),
			fixed(p.Delta, 2), fixed(p.SharePct, 1)})
	}
	for _, r := range rep.StatusRollup {
		t.Append([]string{"all " + string(r.Status), strconv.Itoa(r.Phones), fixed(r.PreRevenuePerDay, 2),
			fixed(r.PostRevenuePerDay, 2), fixed(r.Delta, 2), fixed(r.SharePct, 1)})
	}
	t.Render()

	for _, m := range rep.Models {
		fmt.Fprintf(w, "\n%s: %s (n=%d, R²=%.3f, adj R²=%.3f)\n", m.Model, m.Formula, m.N, m.RSquared, m.AdjRSquared)
		t = newTable(w, "Factor", "Coefficient", "Std error", "t", "p", "")
		for _, c := range m.Coefficients {
			t.Append([]string{c.Factor, fixed(c.Estimate, 4), fixed(c.StdError, 4), fixed(c.TStat, 2),
				strconv.FormatFloat(c.PValue, 'g', 3, 64), c.Sig})
		}
		t.Render()
	}
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.SetHeader(header)
	t.SetAutoFormatHeaders(false)
	t.SetAlignment(tablewriter.ALIGN_RIGHT)
	return t
}

func fixed(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}
