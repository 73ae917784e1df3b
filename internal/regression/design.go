// Package regression builds dummy-encoded design matrices and fits ordinary
// least squares models with classical (homoskedastic) standard errors.
package regression

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"sms-decline-analysis/internal/model"
)

// InterceptName is the factor name of the constant column.
const InterceptName = "const"

// Numeric is a continuous covariate.
type Numeric struct {
	Name   string
	Values []float64
}

// Categorical is a factor encoded as k-1 indicator columns.
type Categorical struct {
	Name   string
	Values []string
}

// Spec describes a model before encoding.
type Spec struct {
	Model       string
	Response    []float64
	Numeric     []Numeric
	Categorical []Categorical
	// References overrides the held-out level per categorical column.
	// Columns not listed use their alphabetically first level.
	References map[string]string
}

// Design is an encoded model ready to fit.
type Design struct {
	Model      string
	Columns    []string
	X          *mat.Dense
	Y          []float64
	References map[string]string
}

// Build encodes spec into a design matrix with a leading intercept column.
func Build(spec Spec) (*Design, error) {
	n := len(spec.Response)
	if n == 0 {
		return nil, &model.FitError{Model: spec.Model, Reason: "no observations"}
	}

	columns := []string{InterceptName}
	values := [][]float64{constant(n)}

	for _, num := range spec.Numeric {
		if len(num.Values) != n {
			return nil, &model.FitError{Model: spec.Model, Columns: []string{num.Name},
				Reason: fmt.Sprintf("column has %d values, response has %d", len(num.Values), n)}
		}
		columns = append(columns, num.Name)
		values = append(values, num.Values)
	}

	refs := make(map[string]string, len(spec.Categorical))
	for _, cat := range spec.Categorical {
		if len(cat.Values) != n {
			return nil, &model.FitError{Model: spec.Model, Columns: []string{cat.Name},
				Reason: fmt.Sprintf("column has %d values, response has %d", len(cat.Values), n)}
		}
		levels := Levels(cat.Values)
		ref := levels[0]
		if want, ok := spec.References[cat.Name]; ok {
			if !contains(levels, want) {
				return nil, &model.FitError{Model: spec.Model, Columns: []string{cat.Name},
					Reason: fmt.Sprintf("reference level %q not present", want)}
			}
			ref = want
		}
		refs[cat.Name] = ref

		for _, level := range levels {
			if level == ref {
				continue
			}
			col := make([]float64, n)
			for i, v := range cat.Values {
				if v == level {
					col[i] = 1
				}
			}
			columns = append(columns, DummyName(cat.Name, level))
			values = append(values, col)
		}
	}

	x := mat.NewDense(n, len(columns), nil)
	for j, col := range values {
		x.SetCol(j, col)
	}

	y := make([]float64, n)
	copy(y, spec.Response)

	return &Design{
		Model:      spec.Model,
		Columns:    columns,
		X:          x,
		Y:          y,
		References: refs,
	}, nil
}

// DummyName is the factor name of the indicator for level of column.
func DummyName(column, level string) string {
	return column + "_" + level
}

// Levels returns the distinct values in sorted order.
func Levels(values []string) []string {
	seen := make(map[string]bool)
	var levels []string
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			levels = append(levels, v)
		}
	}
	sort.Strings(levels)
	return levels
}

func constant(n int) []float64 {
	c := make([]float64, n)
	for i := range c {
		c[i] = 1
	}
	return c
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
