package replay

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// MAPE returns the mean absolute percentage error of yPred against yTrue.
// Denominators are floored at 1e-6. Only the common prefix of the two slices
// is compared; empty input gives 0.
func MAPE(yTrue, yPred []float64) float64 {
	n := min(len(yTrue), len(yPred))
	if n == 0 {
		return 0
	}
	ratios := make([]float64, n)
	for i := 0; i < n; i++ {
		ratios[i] = math.Abs(yTrue[i]-yPred[i]) / math.Max(math.Abs(yTrue[i]), mapeDenominatorFloor)
	}
	return stat.Mean(ratios, nil)
}

// RMSE returns the root mean squared error of yPred against yTrue over the
// common prefix of the two slices; empty input gives 0.
func RMSE(yTrue, yPred []float64) float64 {
	n := min(len(yTrue), len(yPred))
	if n == 0 {
		return 0
	}
	return floats.Distance(yTrue[:n], yPred[:n], 2) / math.Sqrt(float64(n))
}

// EstimateImpact converts replay counts into business KPIs. The formulas
// are fixed linear heuristics:
//
//	prevention = min(1, detected / baseline)
//	acceptance = acknowledged / generated (0 when nothing was generated)
//	mttr       = 12 + 38 * acceptance
//	ops hours  = 0.35 * detected + 0.22 * acknowledged
func EstimateImpact(detected, generated, acknowledged, baseline int) BusinessImpact {
	if baseline <= 0 {
		baseline = 1
	}
	prevention := math.Min(1, float64(detected)/float64(baseline))
	acceptance := 0.0
	if generated > 0 {
		acceptance = math.Min(1, float64(acknowledged)/float64(generated))
	}
	return BusinessImpact{
		IncidentPreventionRate:        roundTo(prevention, 4),
		EstimatedMTTRReductionMinutes: roundTo(12+38*acceptance, 2),
		ActionAcceptanceRate:          roundTo(acceptance, 4),
		EstimatedOpsHoursSaved:        roundTo(float64(detected)*0.35+float64(acknowledged)*0.22, 2),
	}
}

// roundTo rounds half to even at the given number of decimals.
func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.RoundToEven(v*scale) / scale
}
