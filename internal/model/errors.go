package model

import (
	"fmt"
	"strings"
)

// DataError reports input the analysis cannot be computed from: a malformed row,
// a zero denominator in a ratio metric, or an empty partition.
type DataError struct {
	Row    int    // 1-based data row, 0 when the error is not tied to a row
	Field  string // column or metric name
	Reason string
}

func (e *DataError) Error() string {
	switch {
	case e.Row > 0 && e.Field != "":
		return fmt.Sprintf("data error: row %d: %s: %s", e.Row, e.Field, e.Reason)
	case e.Row > 0:
		return fmt.Sprintf("data error: row %d: %s", e.Row, e.Reason)
	case e.Field != "":
		return fmt.Sprintf("data error: %s: %s", e.Field, e.Reason)
	default:
		return "data error: " + e.Reason
	}
}

// FitError reports a regression that cannot be solved: too few observations
// or a rank-deficient design matrix.
type FitError struct {
	Model   string
	Columns []string // columns involved in the collinearity, if known
	Reason  string
}

func (e *FitError) Error() string {
	msg := fmt.Sprintf("fit error: model %s: %s", e.Model, e.Reason)
	if len(e.Columns) > 0 {
		msg += " (columns: " + strings.Join(e.Columns, ", ") + ")"
	}
	return msg
}
