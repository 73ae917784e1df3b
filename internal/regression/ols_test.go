package regression

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"

	"sms-decline-analysis/internal/model"
)

// noisyLine returns y = a + b*x plus a fixed, zero-mean wobble.
func noisyLine(n int, a, b float64) ([]float64, []float64) {
	x := make([]float64, n)
	y := make([]float64, n)
	wobble := []float64{0.7, -1.1, 0.4, -0.2, 0.9, -0.7}
	for i := 0; i < n; i++ {
		x[i] = float64(i)
		y[i] = a + b*x[i] + wobble[i%len(wobble)]
	}
	return x, y
}

func TestOLS_SimpleRegressionMatchesClosedForm(t *testing.T) {
	x, y := noisyLine(21, 600, -42)

	d, err := Build(Spec{Model: "trend", Response: y, Numeric: []Numeric{{Name: "day_num", Values: x}}})
	require.NoError(t, err)
	fit, err := OLS(d, "y ~ day_num")
	require.NoError(t, err)

	// closed form
	n := float64(len(x))
	var mx, my float64
	for i := range x {
		mx += x[i]
		my += y[i]
	}
	mx /= n
	my /= n
	var sxx, sxy float64
	for i := range x {
		sxx += (x[i] - mx) * (x[i] - mx)
		sxy += (x[i] - mx) * (y[i] - my)
	}
	slope := sxy / sxx
	intercept := my - slope*mx
	var ssr float64
	for i := range x {
		e := y[i] - intercept - slope*x[i]
		ssr += e * e
	}
	seSlope := math.Sqrt(ssr / (n - 2) / sxx)

	res := fit.Result
	assert.Equal(t, 21, res.N)
	assert.Equal(t, 19, res.DF)
	require.Len(t, res.Coefficients, 2)

	c, ok := res.Coefficient("day_num")
	require.True(t, ok)
	assert.InDelta(t, slope, c.Estimate, 1e-9)
	assert.InDelta(t, seSlope, c.StdError, 1e-9)
	assert.InDelta(t, slope/seSlope, c.TStat, 1e-6)
	assert.Less(t, c.PValue, 0.001)
	assert.Equal(t, "***", c.Sig)

	k, ok := res.Coefficient(InterceptName)
	require.True(t, ok)
	assert.InDelta(t, intercept, k.Estimate, 1e-8)

	assert.GreaterOrEqual(t, res.RSquared, 0.0)
	assert.LessOrEqual(t, res.RSquared, 1.0)
	assert.Greater(t, res.RSquared, 0.99)
	assert.Less(t, res.AdjRSquared, res.RSquared)
}

func TestOLS_NoRelationshipHasLargePValue(t *testing.T) {
	x := []float64{0, 1, 2, 3, 4, 5, 6, 7}
	y := []float64{5, 3, 5, 3, 3, 5, 3, 5}

	d, err := Build(Spec{Model: "flat", Response: y, Numeric: []Numeric{{Name: "x", Values: x}}})
	require.NoError(t, err)
	fit, err := OLS(d, "y ~ x")
	require.NoError(t, err)

	c, _ := fit.Result.Coefficient("x")
	assert.Greater(t, c.PValue, 0.5)
	assert.Equal(t, "", c.Sig)
	assert.Less(t, fit.Result.RSquared, 0.1)
}

func TestBuild_DummyEncodingDropsAlphabeticalFirstLevel(t *testing.T) {
	carriers := []string{"Verizon", "AT&T", "T-Mobile", "AT&T", "Verizon", "T-Mobile"}
	d, err := Build(Spec{
		Model:       "cat",
		Response:    []float64{1, 2, 3, 4, 5, 6},
		Categorical: []Categorical{{Name: "carrier", Values: carriers}},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{InterceptName, "carrier_T-Mobile", "carrier_Verizon"}, d.Columns)
	assert.Equal(t, "AT&T", d.References["carrier"])

	// row 0 is Verizon
	assert.Equal(t, []float64{1, 0, 1}, mat64Row(d, 0))
	// row 1 is the reference
	assert.Equal(t, []float64{1, 0, 0}, mat64Row(d, 1))
}

func TestBuild_SingleLevelCategoryProducesNoColumns(t *testing.T) {
	d, err := Build(Spec{
		Model:       "cat",
		Response:    []float64{1, 2, 3},
		Categorical: []Categorical{{Name: "segment", Values: []string{"Clicker", "Clicker", "Clicker"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{InterceptName}, d.Columns)
}

func TestBuild_UnknownReferenceLevel(t *testing.T) {
	_, err := Build(Spec{
		Model:       "cat",
		Response:    []float64{1, 2},
		Categorical: []Categorical{{Name: "segment", Values: []string{"a", "b"}}},
		References:  map[string]string{"segment": "zzz"},
	})
	var fe *model.FitError
	require.True(t, errors.As(err, &fe))
}

func TestOLS_PredictionsInvariantToReferenceLevel(t *testing.T) {
	seg := []string{"Clicker", "New Data", "TriggeredSend"}
	car := []string{"A", "B", "C", "D"}
	var y, sent []float64
	var segs, cars []string
	for i := 0; i < 48; i++ {
		s := seg[i%3]
		c := car[(i/3)%4]
		v := float64(100 + (i*37)%91)
		segs = append(segs, s)
		cars = append(cars, c)
		sent = append(sent, v)
		y = append(y, 0.02*v+float64(i%3)*1.5-float64((i/3)%4)*0.8+float64((i*7)%5)*0.1)
	}
	spec := Spec{
		Model:    "row",
		Response: y,
		Numeric:  []Numeric{{Name: "sent", Values: sent}},
		Categorical: []Categorical{
			{Name: "carrier", Values: cars},
			{Name: "segment", Values: segs},
		},
	}

	d1, err := Build(spec)
	require.NoError(t, err)
	f1, err := OLS(d1, "")
	require.NoError(t, err)

	spec.References = map[string]string{"carrier": "C", "segment": "TriggeredSend"}
	d2, err := Build(spec)
	require.NoError(t, err)
	f2, err := OLS(d2, "")
	require.NoError(t, err)

	// k-1 indicators per factor either way
	assert.Len(t, d1.Columns, 1+1+3+2)
	assert.Len(t, d2.Columns, len(d1.Columns))
	assert.Contains(t, d2.Columns, "carrier_A")
	assert.NotContains(t, d2.Columns, "carrier_C")

	require.Len(t, f2.Fitted, len(f1.Fitted))
	for i := range f1.Fitted {
		assert.InDelta(t, f1.Fitted[i], f2.Fitted[i], 1e-8)
	}
	assert.InDelta(t, f1.Result.RSquared, f2.Result.RSquared, 1e-12)

	// non-categorical slopes do not move
	s1, _ := f1.Result.Coefficient("sent")
	s2, _ := f2.Result.Coefficient("sent")
	assert.InDelta(t, s1.Estimate, s2.Estimate, 1e-9)

	// Predict agrees with the stored fitted values
	assert.InDelta(t, f1.Fitted[5], f1.Predict(mat64Row(d1, 5)), 1e-9)
}

func TestOLS_RankDeficientNamesColumns(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5, 6}
	twice := []float64{2, 4, 6, 8, 10, 12}
	y := []float64{1, 3, 2, 5, 4, 6}

	d, err := Build(Spec{Model: "dup", Response: y, Numeric: []Numeric{
		{Name: "sent", Values: x},
		{Name: "sent_x2", Values: twice},
	}})
	require.NoError(t, err)
	_, err = OLS(d, "")

	var fe *model.FitError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "dup", fe.Model)
	assert.Contains(t, fe.Columns, "sent_x2")
	assert.Contains(t, fe.Columns, "sent")
	assert.NotContains(t, fe.Columns, InterceptName)
}

func TestOLS_ConstantCovariateCollidesWithIntercept(t *testing.T) {
	d, err := Build(Spec{Model: "const", Response: []float64{1, 2, 4, 3}, Numeric: []Numeric{
		{Name: "flat", Values: []float64{7, 7, 7, 7}},
	}})
	require.NoError(t, err)
	_, err = OLS(d, "")

	var fe *model.FitError
	require.True(t, errors.As(err, &fe))
	assert.ElementsMatch(t, []string{"flat", InterceptName}, fe.Columns)
}

func TestOLS_ZeroColumn(t *testing.T) {
	d, err := Build(Spec{Model: "zero", Response: []float64{1, 2, 4, 3}, Numeric: []Numeric{
		{Name: "bounces", Values: []float64{0, 0, 0, 0}},
	}})
	require.NoError(t, err)
	_, err = OLS(d, "")

	var fe *model.FitError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, []string{"bounces"}, fe.Columns)
}

func TestOLS_UnderDetermined(t *testing.T) {
	d, err := Build(Spec{Model: "tiny", Response: []float64{1, 2}, Numeric: []Numeric{
		{Name: "x", Values: []float64{1, 5}},
	}})
	require.NoError(t, err)
	_, err = OLS(d, "")

	var fe *model.FitError
	require.True(t, errors.As(err, &fe))
	assert.Contains(t, fe.Error(), "under-determined")
}

func TestOLS_ZeroVarianceResponse(t *testing.T) {
	d, err := Build(Spec{Model: "flat", Response: []float64{3, 3, 3, 3}, Numeric: []Numeric{
		{Name: "x", Values: []float64{1, 2, 3, 4}},
	}})
	require.NoError(t, err)
	_, err = OLS(d, "")

	var fe *model.FitError
	require.True(t, errors.As(err, &fe))
}

func TestBuild_LengthMismatch(t *testing.T) {
	_, err := Build(Spec{Model: "m", Response: []float64{1, 2, 3}, Numeric: []Numeric{{Name: "x", Values: []float64{1}}}})
	var fe *model.FitError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, []string{"x"}, fe.Columns)
}

func TestStars(t *testing.T) {
	assert.Equal(t, "***", Stars(0.0001))
	assert.Equal(t, "**", Stars(0.005))
	assert.Equal(t, "*", Stars(0.03))
	assert.Equal(t, "", Stars(0.2))
}

func mat64Row(d *Design, i int) []float64 {
	_, p := d.X.Dims()
	row := make([]float64, p)
	for j := 0; j < p; j++ {
		row[j] = d.X.At(i, j)
	}
	return row
}

func TestTTestExactFit(t *testing.T) {
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: 5}
	tv, p := tTest(2, 0, dist)
	assert.Equal(t, math.MaxFloat64, tv)
	assert.Zero(t, p)

	tv, p = tTest(0, 0, dist)
	assert.Zero(t, tv)
	assert.Equal(t, 1.0, p)
}
