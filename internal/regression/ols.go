package regression

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"sms-decline-analysis/internal/model"
)

// rankTol is the relative size below which a QR pivot marks a column as
// linearly dependent on the columns before it.
const rankTol = 1e-9

// Fit is a solved OLS model
type Fit struct {
	Result model.RegressionResult
	Beta   []float64
	Fitted []float64
}

// Predict evaluates the fitted model on one design row (intercept included).
func (f *Fit) Predict(row []float64) float64 {
	var y float64
	for j, b := range f.Beta {
		y += b * row[j]
	}
	return y
}

// OLS fits d by Householder QR and computes two-sided t-test p-values with
// N - p degrees of freedom.
func OLS(d *Design, formula string) (*Fit, error) {
	n, p := d.X.Dims()
	if n <= p {
		return nil, &model.FitError{Model: d.Model,
			Reason: fmt.Sprintf("under-determined: %d observations for %d parameters", n, p)}
	}

	meanY := stat.Mean(d.Y, nil)
	var sst float64
	for _, y := range d.Y {
		sst += (y - meanY) * (y - meanY)
	}
	if sst == 0 {
		return nil, &model.FitError{Model: d.Model, Reason: "response has zero variance"}
	}

	var qr mat.QR
	qr.Factorize(d.X)
	var r mat.Dense
	qr.RTo(&r)

	if err := checkRank(d, &r); err != nil {
		return nil, err
	}

	var beta mat.VecDense
	if err := qr.SolveVecTo(&beta, false, mat.NewVecDense(n, d.Y)); err != nil {
		return nil, &model.FitError{Model: d.Model, Columns: d.Columns, Reason: fmt.Sprintf("solve failed: %v", err)}
	}

	var fitted mat.VecDense
	fitted.MulVec(d.X, &beta)

	var ssr float64
	for i, y := range d.Y {
		e := y - fitted.AtVec(i)
		ssr += e * e
	}

	df := n - p
	sigma2 := ssr / float64(df)

	// (X'X)^-1 = R^-1 R^-T, so its diagonal is the squared row norms of R^-1.
	upper := mat.NewTriDense(p, mat.Upper, nil)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			upper.SetTri(i, j, r.At(i, j))
		}
	}
	var rinv mat.TriDense
	if err := rinv.InverseTri(upper); err != nil {
		return nil, &model.FitError{Model: d.Model, Columns: d.Columns, Reason: fmt.Sprintf("inverse failed: %v", err)}
	}

	tdist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(df)}
	coefs := make([]model.Coefficient, p)
	b := make([]float64, p)
	for j := 0; j < p; j++ {
		var v float64
		for k := j; k < p; k++ {
			v += rinv.At(j, k) * rinv.At(j, k)
		}
		est := beta.AtVec(j)
		se := math.Sqrt(sigma2 * v)
		t, pv := tTest(est, se, tdist)
		b[j] = est
		coefs[j] = model.Coefficient{
			Factor:   d.Columns[j],
			Estimate: est,
			StdError: se,
			TStat:    t,
			PValue:   pv,
			Sig:      Stars(pv),
		}
	}

	r2 := clamp01(1 - ssr/sst)
	adj := 1 - (1-r2)*float64(n-1)/float64(df)

	out := make([]float64, n)
	for i := range out {
		out[i] = fitted.AtVec(i)
	}

	return &Fit{
		Result: model.RegressionResult{
			Model:        d.Model,
			Formula:      formula,
			N:            n,
			DF:           df,
			Coefficients: coefs,
			RSquared:     r2,
			AdjRSquared:  adj,
			References:   d.References,
		},
		Beta:   b,
		Fitted: out,
	}, nil
}

// checkRank walks the R diagonal and fails on the first column that is a
// linear combination of earlier ones, naming the columns it depends on.
func checkRank(d *Design, r *mat.Dense) error {
	_, p := d.X.Dims()
	for j := 0; j < p; j++ {
		norm := mat.Norm(d.X.ColView(j), 2)
		if norm == 0 {
			return &model.FitError{Model: d.Model, Columns: []string{d.Columns[j]},
				Reason: "rank-deficient design: column is identically zero"}
		}
		if math.Abs(r.At(j, j)) > rankTol*norm {
			continue
		}

		involved := []string{d.Columns[j]}
		if j > 0 {
			// x_j = X[:, :j] w with R11 w = R[:j, j]
			w := make([]float64, j)
			for i := j - 1; i >= 0; i-- {
				s := r.At(i, j)
				for k := i + 1; k < j; k++ {
					s -= r.At(i, k) * w[k]
				}
				w[i] = s / r.At(i, i)
			}
			for k, wk := range w {
				if math.Abs(wk)*mat.Norm(d.X.ColView(k), 2) > rankTol*norm {
					involved = append(involved, d.Columns[k])
				}
			}
		}
		return &model.FitError{Model: d.Model, Columns: involved,
			Reason: "rank-deficient design: perfectly collinear columns"}
	}
	return nil
}

// tTest returns the t statistic and two-sided p-value. An exact fit has a zero
// standard error; t is then capped at ±MaxFloat64 so results stay encodable.
func tTest(est, se float64, dist distuv.StudentsT) (float64, float64) {
	if se == 0 {
		if est == 0 {
			return 0, 1
		}
		return math.Copysign(math.MaxFloat64, est), 0
	}
	t := est / se
	return t, 2 * dist.Survival(math.Abs(t))
}

// Stars returns the conventional significance marker for a p-value.
func Stars(p float64) string {
	switch {
	case p < 0.001:
		return "***"
	case p < 0.01:
		return "**"
	case p < 0.05:
		return "*"
	default:
		return ""
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
