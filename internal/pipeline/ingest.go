package pipeline

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"sms-decline-analysis/internal/logger"
	"sms-decline-analysis/internal/model"
	"sms-decline-analysis/pkg/utils"
)

// Canonical column names of the delivery report.
const (
	colDate         = "date"
	colCarrier      = "carrier"
	colSegment      = "segment"
	colPhone        = "phone_number"
	colSent         = "sent"
	colDelivered    = "delivered"
	colClicked      = "clicked"
	colUniqueClicks = "unique_clicks"
	colBounces      = "bounces"
	colRefusals     = "refusals"
	colRevenue      = "revenue"
)

var requiredColumns = []string{colDate, colCarrier, colSegment, colPhone, colSent, colDelivered, colClicked, colRevenue}

// headerAliases maps normalized export headers onto canonical names.
var headerAliases = map[string]string{
	"carrier_group":    colCarrier,
	"sms_phone_number": colPhone,
	"clicks":           colClicked,
}

// IngestResult is the output of the ingestion stage
type IngestResult struct {
	Observations []model.Observation
	TotalRows    int
	Excluded     int
}

// IngestFile reads the delivery report at path.
func IngestFile(ctx context.Context, path string) (*IngestResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	return Ingest(ctx, file, path)
}

// Ingest parses delivery report rows from r. Rows for the excluded phone number
// are dropped before their other fields are interpreted. Any malformed row fails
// the whole read with a *model.DataError.
func Ingest(ctx context.Context, r io.Reader, source string) (*IngestResult, error) {
	log := logger.Log.WithFields(logrus.Fields{"stage": model.StageIngest, "source": source})
	log.Info("➡️ Starting ingestion")

	csvReader := csv.NewReader(r)
	csvReader.LazyQuotes = true
	csvReader.FieldsPerRecord = -1
	headers, err := csvReader.Read()
	if err == io.EOF {
		return nil, &model.DataError{Reason: "empty input: no header row"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	index := make(map[string]int, len(headers))
	for i, h := range headers {
		name := utils.NormalizeHeader(h)
		if canonical, ok := headerAliases[name]; ok {
			name = canonical
		}
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, &model.DataError{Field: col, Reason: "missing column"}
		}
	}

	res := &IngestResult{}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		res.TotalRows++
		if err != nil {
			return nil, &model.DataError{Row: res.TotalRows, Reason: fmt.Sprintf("CSV read error: %v", err)}
		}

		p := rowParser{row: res.TotalRows, record: record, index: index}
		phone := utils.NormalizeID(p.text(colPhone))
		if phone == model.ExcludedPhoneNumber {
			res.Excluded++
			continue
		}

		obs := model.Observation{
			Row:          res.TotalRows,
			Date:         p.date(colDate),
			Carrier:      p.text(colCarrier),
			Segment:      p.text(colSegment),
			PhoneNumber:  phone,
			Sent:         p.number(colSent),
			Delivered:    p.number(colDelivered),
			Clicked:      p.number(colClicked),
			UniqueClicks: p.optional(colUniqueClicks),
			Bounces:      p.optional(colBounces),
			Refusals:     p.optional(colRefusals),
			Revenue:      p.number(colRevenue),
		}
		if p.err != nil {
			return nil, p.err
		}
		if phone == "" {
			return nil, &model.DataError{Row: res.TotalRows, Field: colPhone, Reason: "missing value"}
		}
		res.Observations = append(res.Observations, obs)
	}

	log.WithFields(logrus.Fields{
		"rows":     res.TotalRows,
		"kept":     len(res.Observations),
		"excluded": res.Excluded,
	}).Info("📄 CSV ingestion done")

	return res, nil
}

// rowParser extracts typed fields from one record, keeping the first error.
type rowParser struct {
	row    int
	record []string
	index  map[string]int
	err    error
}

func (p *rowParser) cell(col string) (string, bool) {
	i, ok := p.index[col]
	if !ok || i >= len(p.record) {
		return "", false
	}
	return p.record[i], true
}

func (p *rowParser) fail(col, reason string) {
	if p.err == nil {
		p.err = &model.DataError{Row: p.row, Field: col, Reason: reason}
	}
}

func (p *rowParser) text(col string) string {
	v, ok := p.cell(col)
	if !ok {
		p.fail(col, "missing field")
	}
	return trimCell(v)
}

func (p *rowParser) number(col string) float64 {
	v, ok := p.cell(col)
	if !ok {
		p.fail(col, "missing field")
		return 0
	}
	f, err := utils.ParseNumber(v)
	if err != nil {
		p.fail(col, err.Error())
	}
	return f
}

// optional columns default to zero when absent or blank
func (p *rowParser) optional(col string) float64 {
	v, ok := p.cell(col)
	if !ok || trimCell(v) == "" {
		return 0
	}
	f, err := utils.ParseNumber(v)
	if err != nil {
		p.fail(col, err.Error())
	}
	return f
}

func (p *rowParser) date(col string) (t time.Time) {
	v, ok := p.cell(col)
	if !ok {
		p.fail(col, "missing field")
		return t
	}
	d, err := utils.ParseDate(v)
	if err != nil {
		p.fail(col, err.Error())
	}
	return d
}

func trimCell(s string) string {
	return strings.TrimSpace(s)
}
