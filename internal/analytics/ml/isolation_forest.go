package ml

import (
	"math"
	"math/rand"
	"sort"
)

// IsolationTree represents a single tree in the Isolation Forest
type IsolationTree struct {
	splitFeature int
	splitValue   float64
	left         *IsolationTree
	right        *IsolationTree
	size         int
	isLeaf       bool
}

// IsolationForest implements the Isolation Forest algorithm for anomaly detection.
// A forest built with the same seed over the same data is identical, so scores
// are reproducible across runs.
type IsolationForest struct {
	trees         []*IsolationTree
	numTrees      int
	subSampleSize int
	maxDepth      int
	sampleSize    int
	seed          int64
	rng           *rand.Rand
}

// DataPoint represents a multi-dimensional data point
type DataPoint struct {
	Features []float64
}

// AnomalyResult contains the anomaly score and details
type AnomalyResult struct {
	Score      float64 // 0.0 to 1.0, higher = more anomalous
	PathLength float64
}

// Default forest parameters.
const (
	DefaultNumTrees      = 200
	DefaultSubSampleSize = 256
	DefaultSeed          = 42
)

// NewIsolationForest creates a forest with numTrees trees, each grown on at most
// subSampleSize points drawn with a generator seeded by seed.
func NewIsolationForest(numTrees, subSampleSize int, seed int64) *IsolationForest {
	if numTrees <= 0 {
		numTrees = DefaultNumTrees
	}
	if subSampleSize <= 0 {
		subSampleSize = DefaultSubSampleSize
	}
	return &IsolationForest{
		numTrees:      numTrees,
		subSampleSize: subSampleSize,
		seed:          seed,
	}
}

// Fit trains the Isolation Forest on the given data. Any previously grown
// trees are discarded and the generator is reseeded.
func (f *IsolationForest) Fit(data []DataPoint) error {
	f.trees = make([]*IsolationTree, 0, f.numTrees)
	f.rng = rand.New(rand.NewSource(f.seed))
	if len(data) == 0 {
		return nil
	}

	f.sampleSize = f.subSampleSize
	if f.sampleSize > len(data) {
		f.sampleSize = len(data)
	}
	// Height limit as in the original paper: ceil(log2(psi)).
	f.maxDepth = int(math.Ceil(math.Log2(math.Max(float64(f.sampleSize), 2))))

	for i := 0; i < f.numTrees; i++ {
		sample := f.sampleData(data)
		f.trees = append(f.trees, f.buildTree(sample, 0))
	}
	return nil
}

// Predict calculates the anomaly score for a single data point
func (f *IsolationForest) Predict(point DataPoint) AnomalyResult {
	if len(f.trees) == 0 {
		return AnomalyResult{Score: 0.5}
	}

	totalPathLength := 0.0
	for _, tree := range f.trees {
		totalPathLength += f.pathLength(tree, point, 0)
	}
	avgPathLength := totalPathLength / float64(len(f.trees))

	// score = 2^(-avgPathLength / c(n))
	c := averagePathLength(f.sampleSize)
	score := 1.0
	if c > 0 {
		score = math.Pow(2, -avgPathLength/c)
	}

	return AnomalyResult{
		Score:      score,
		PathLength: avgPathLength,
	}
}

// BatchPredict predicts anomaly scores for multiple data points
func (f *IsolationForest) BatchPredict(points []DataPoint) []AnomalyResult {
	results := make([]AnomalyResult, len(points))
	for i, point := range points {
		results[i] = f.Predict(point)
	}
	return results
}

// ContaminationThreshold returns the score above which a point is treated as an
// outlier when roughly the given fraction of scores should be flagged.
//
// The cut is the (1-contamination) quantile interpolated linearly between
// closest ranks at position p*(n-1), the same rule numpy's default
// percentile applies.
func ContaminationThreshold(scores []float64, contamination float64) float64 {
	if len(scores) == 0 {
		return math.Inf(1)
	}
	sorted := make([]float64, len(scores))
	copy(sorted, scores)
	sort.Float64s(sorted)
	p := 1 - contamination
	if p <= 0 {
		return math.Inf(-1)
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := min(lo+1, len(sorted)-1)
	return sorted[lo] + (pos-float64(lo))*(sorted[hi]-sorted[lo])
}

// sampleData draws a subset of data without replacement
func (f *IsolationForest) sampleData(data []DataPoint) []DataPoint {
	// Fisher-Yates shuffle and take first sampleSize elements
	shuffled := make([]DataPoint, len(data))
	copy(shuffled, data)

	for i := len(shuffled) - 1; i > 0; i-- {
		j := f.rng.Intn(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}

	return shuffled[:f.sampleSize]
}

// buildTree recursively builds an isolation tree
func (f *IsolationForest) buildTree(data []DataPoint, depth int) *IsolationTree {
	if len(data) <= 1 || depth >= f.maxDepth || allIdentical(data) {
		return &IsolationTree{size: len(data), isLeaf: true}
	}

	numFeatures := len(data[0].Features)
	splitFeature := f.rng.Intn(numFeatures)

	minVal, maxVal := featureRange(data, splitFeature)
	if maxVal-minVal < 1e-12 {
		// Constant along the chosen feature; a later draw may pick another one.
		return f.buildTree(data, depth+1)
	}
	splitValue := minVal + f.rng.Float64()*(maxVal-minVal)

	left, right := splitData(data, splitFeature, splitValue)
	if len(left) == 0 || len(right) == 0 {
		return &IsolationTree{size: len(data), isLeaf: true}
	}

	return &IsolationTree{
		splitFeature: splitFeature,
		splitValue:   splitValue,
		left:         f.buildTree(left, depth+1),
		right:        f.buildTree(right, depth+1),
		size:         len(data),
	}
}

// pathLength calculates the path length for a data point in a tree
func (f *IsolationForest) pathLength(tree *IsolationTree, point DataPoint, currentDepth int) float64 {
	if tree.isLeaf {
		return float64(currentDepth) + averagePathLength(tree.size)
	}

	if point.Features[tree.splitFeature] < tree.splitValue {
		return f.pathLength(tree.left, point, currentDepth+1)
	}
	return f.pathLength(tree.right, point, currentDepth+1)
}

// averagePathLength is c(n), the average path length of an unsuccessful BST search.
func averagePathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	if n == 2 {
		return 1
	}
	// c(n) = 2H(n-1) - (2(n-1)/n), H(i) ≈ ln(i) + Euler-Mascheroni
	harmonic := math.Log(float64(n-1)) + 0.5772156649
	return 2*harmonic - (2 * float64(n-1) / float64(n))
}

func allIdentical(data []DataPoint) bool {
	if len(data) <= 1 {
		return true
	}
	first := data[0].Features
	for i := 1; i < len(data); i++ {
		for j := range first {
			if math.Abs(data[i].Features[j]-first[j]) > 1e-10 {
				return false
			}
		}
	}
	return true
}

func featureRange(data []DataPoint, feature int) (float64, float64) {
	minVal := data[0].Features[feature]
	maxVal := data[0].Features[feature]
	for _, point := range data {
		val := point.Features[feature]
		if val < minVal {
			minVal = val
		}
		if val > maxVal {
			maxVal = val
		}
	}
	return minVal, maxVal
}

func splitData(data []DataPoint, feature int, splitValue float64) ([]DataPoint, []DataPoint) {
	left := make([]DataPoint, 0, len(data))
	right := make([]DataPoint, 0, len(data))
	for _, point := range data {
		if point.Features[feature] < splitValue {
			left = append(left, point)
		} else {
			right = append(right, point)
		}
	}
	return left, right
}
