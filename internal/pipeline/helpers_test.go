package pipeline

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sms-decline-analysis/internal/model"
)

var (
	synthStart    = time.Date(2026, time.January, 20, 0, 0, 0, 0, time.UTC)
	synthDays     = 29 // 15 pre-decline days, 14 post-decline days
	synthCarriers = []string{"AT&T", "T-Mobile", "Verizon"}
	synthPhones   = []string{"5551001", "5551002", "5551003"}
)

// synthCSV renders a delivery report with export-style headers. Phone 5551003
// stops at the split date, 5551002 stops four days before the end, and the
// excluded number appears on every pre-decline day.
func synthCSV() string {
	var b strings.Builder
	b.WriteString("\ufeffDate,Carrier Group,Segment,SMS Phone Number,Sent,Delivered,Clicks,Unique Clicks,Revenue\n")
	for d := 0; d < synthDays; d++ {
		date := synthStart.AddDate(0, 0, d)
		post := !date.Before(model.SplitDate)
		for p, phone := range synthPhones {
			if phone == "5551003" && post {
				continue
			}
			if phone == "5551002" && d >= synthDays-4 {
				continue
			}
			for s, segment := range model.KnownSegments {
				sent := 100 + float64((d*7+p*13+s*5)%17)*10
				if post {
					sent = math.Round(sent * 0.7)
				}
				clicked := math.Round(sent*(0.05+0.01*float64(s))) + float64((d+p)%3)
				revenue := clicked * 0.8
				if post {
					revenue *= 0.75
				}
				revenue += 0.5 * math.Sin(float64(d+p+s))
				fmt.Fprintf(&b, "%s,%s,%s,%s,%.0f,%.0f,%.0f,%.0f,%.2f\n",
					date.Format("2006-01-02"), synthCarriers[(d+p)%3], segment, phone,
					sent, sent-3, clicked, clicked-1, revenue)
			}
		}
		if !post {
			fmt.Fprintf(&b, "%s,AT&T,Clicker,%s,9999,9999,999,999,9999.00\n", date.Format("2006-01-02"), model.ExcludedPhoneNumber)
		}
	}
	return b.String()
}

func writeSynth(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "report.csv")
	require.NoError(t, os.WriteFile(path, []byte(synthCSV()), 0644))
	return path
}

func synthObservations(t *testing.T) []model.Observation {
	t.Helper()
	ing, err := Ingest(context.Background(), strings.NewReader(synthCSV()), "synthetic")
	require.NoError(t, err)
	return TransformObservations(ing.Observations)
}

func day(offset int) time.Time {
	return synthStart.AddDate(0, 0, offset)
}

// obsOn builds a transformed observation without going through ingestion.
func obsOn(date time.Time, phone string, sent, clicked, revenue float64) model.Observation {
	return model.Observation{
		Date:        date,
		Carrier:     "AT&T",
		Segment:     "Clicker",
		PhoneNumber: phone,
		Sent:        sent,
		Delivered:   sent,
		Clicked:     clicked,
		Revenue:     revenue,
		DayNum:      int(date.Sub(synthStart).Hours() / 24),
		Partition:   model.PartitionOf(date),
	}
}

// memRecorder collects what a run reports.
type memRecorder struct {
	statuses []string
	stages   []model.StageMetrics
	errors   []model.ErrorDetail
	report   *model.Report
	files    []model.ExportResult
	saveErr  error
}

func (m *memRecorder) UpdateRunStatus(runID, status string) error {
	m.statuses = append(m.statuses, status)
	return nil
}

func (m *memRecorder) SaveStageProgress(runID string, sm model.StageMetrics) error {
	m.stages = append(m.stages, sm)
	return nil
}

func (m *memRecorder) SaveRunError(runID string, detail model.ErrorDetail) error {
	m.errors = append(m.errors, detail)
	return nil
}

func (m *memRecorder) SaveResults(runID string, rep *model.Report, files []model.ExportResult) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.report = rep
	m.files = files
	return nil
}
