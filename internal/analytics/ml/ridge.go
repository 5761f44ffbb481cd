package ml

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// DefaultRidgeAlpha is the L2 penalty applied to standardised coefficients.
const DefaultRidgeAlpha = 1.0

// RidgeRegressor is a linear model fitted in closed form with an L2 penalty.
// Features are standardised internally so the penalty treats them evenly; the
// intercept is not penalised.
type RidgeRegressor struct {
	alpha     float64
	means     []float64
	scales    []float64
	coef      []float64
	intercept float64
	fitted    bool
}

// NewRidgeRegressor creates an unfitted regressor with the given penalty.
func NewRidgeRegressor(alpha float64) *RidgeRegressor {
	if alpha < 0 {
		alpha = DefaultRidgeAlpha
	}
	return &RidgeRegressor{alpha: alpha}
}

// Fit solves (XᵀX + αI)β = Xᵀy on the standardised design matrix.
func (r *RidgeRegressor) Fit(x [][]float64, y []float64) error {
	n := len(x)
	if n == 0 {
		return errors.New("ridge: empty training set")
	}
	if len(y) != n {
		return fmt.Errorf("ridge: %d rows but %d targets", n, len(y))
	}
	p := len(x[0])

	r.means = make([]float64, p)
	r.scales = make([]float64, p)
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		for i := 0; i < n; i++ {
			col[i] = x[i][j]
		}
		mean, std := stat.MeanStdDev(col, nil)
		if std < 1e-12 || n < 2 {
			std = 1
		}
		r.means[j] = mean
		r.scales[j] = std
	}
	yMean := stat.Mean(y, nil)

	design := mat.NewDense(n, p, nil)
	for i := 0; i < n; i++ {
		if len(x[i]) != p {
			return fmt.Errorf("ridge: row %d has %d features, want %d", i, len(x[i]), p)
		}
		for j := 0; j < p; j++ {
			design.Set(i, j, (x[i][j]-r.means[j])/r.scales[j])
		}
	}
	target := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		target.SetVec(i, y[i]-yMean)
	}

	var gram mat.Dense
	gram.Mul(design.T(), design)
	for j := 0; j < p; j++ {
		gram.Set(j, j, gram.At(j, j)+r.alpha)
	}
	var rhs mat.VecDense
	rhs.MulVec(design.T(), target)

	var beta mat.VecDense
	if err := beta.SolveVec(&gram, &rhs); err != nil {
		return fmt.Errorf("ridge: solve normal equations: %w", err)
	}

	r.coef = make([]float64, p)
	for j := 0; j < p; j++ {
		r.coef[j] = beta.AtVec(j)
	}
	r.intercept = yMean
	r.fitted = true
	return nil
}

// Predict returns the model output for one feature vector.
func (r *RidgeRegressor) Predict(features []float64) (float64, error) {
	if !r.fitted {
		return 0, errors.New("ridge: model not fitted")
	}
	if len(features) != len(r.coef) {
		return 0, fmt.Errorf("ridge: got %d features, want %d", len(features), len(r.coef))
	}
	out := r.intercept
	for j, v := range features {
		out += r.coef[j] * (v - r.means[j]) / r.scales[j]
	}
	return out, nil
}
