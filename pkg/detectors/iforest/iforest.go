// Package iforest implements the Isolation Forest algorithm for novelty detection.
package iforest

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/hed1ad/synguard/pkg/detectors"
)

// IsolationForest scores samples by how quickly random axis-aligned splits
// isolate them.
type IsolationForest struct {
	mu sync.RWMutex

	// Configuration
	nTrees        int
	sampleSize    int
	contamination float64
	seed          int64

	// Trained model
	trees     []*iTree
	nFeatures int
	threshold float64
	trained   bool

	// Statistics from training
	avgPathLength float64
}

// iTree represents a single isolation tree.
type iTree struct {
	root *node
}

// node is a node in the isolation tree.
type node struct {
	// Split parameters (for internal nodes)
	splitFeature int
	splitValue   float64

	// Children
	left  *node
	right *node

	// Leaf information
	size int // number of samples that reached this leaf
}

// Option configures an IsolationForest.
type Option func(*IsolationForest)

// WithTrees sets the number of isolation trees.
func WithTrees(n int) Option {
	return func(f *IsolationForest) {
		f.nTrees = n
	}
}

// WithSampleSize sets the subsample size for each tree.
func WithSampleSize(n int) Option {
	return func(f *IsolationForest) {
		f.sampleSize = n
	}
}

// WithContamination sets the expected proportion of anomalous windows.
func WithContamination(c float64) Option {
	return func(f *IsolationForest) {
		f.contamination = c
	}
}

// WithSeed sets the random seed. Every Fit restarts from this seed, so
// refitting the same data yields the same forest.
func WithSeed(seed int64) Option {
	return func(f *IsolationForest) {
		f.seed = seed
	}
}

// New creates a new IsolationForest with the given options.
func New(opts ...Option) *IsolationForest {
	f := &IsolationForest{
		nTrees:        100,
		sampleSize:    256,
		contamination: 0.0026,
		seed:          42,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Name identifies the algorithm.
func (f *IsolationForest) Name() string {
	return "iforest"
}

// Fit grows the forest over data and places the threshold at the
// (1 - contamination) quantile of the training scores.
func (f *IsolationForest) Fit(data [][]float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := detectors.Validate(data); err != nil {
		return err
	}
	if f.contamination <= 0 || f.contamination >= 1 {
		return fmt.Errorf("contamination must be in (0, 1), got %g", f.contamination)
	}
	if f.nTrees <= 0 || f.sampleSize <= 1 {
		return fmt.Errorf("invalid forest size: %d trees of %d samples", f.nTrees, f.sampleSize)
	}

	nSamples := len(data)
	f.nFeatures = len(data[0])

	sampleSize := f.sampleSize
	if sampleSize > nSamples {
		sampleSize = nSamples
	}
	maxDepth := int(math.Ceil(math.Log2(float64(sampleSize))))

	rng := rand.New(rand.NewSource(f.seed))
	f.trees = make([]*iTree, f.nTrees)
	for i := 0; i < f.nTrees; i++ {
		// Sample without replacement
		indices := rng.Perm(nSamples)[:sampleSize]
		sample := make([][]float64, sampleSize)
		for j, idx := range indices {
			sample[j] = data[idx]
		}

		f.trees[i] = &iTree{root: buildNode(rng, sample, f.nFeatures, 0, maxDepth)}
	}

	f.avgPathLength = averagePathLength(float64(sampleSize))
	f.trained = true

	scores, err := f.predict(data)
	if err != nil {
		return err
	}
	f.threshold = percentile(scores, 100*(1-f.contamination))

	return nil
}

func buildNode(rng *rand.Rand, data [][]float64, nFeatures, depth, maxDepth int) *node {
	n := len(data)

	// Terminal conditions
	if depth >= maxDepth || n <= 1 {
		return &node{size: n}
	}

	feature := rng.Intn(nFeatures)

	minVal, maxVal := data[0][feature], data[0][feature]
	for _, row := range data[1:] {
		minVal = math.Min(minVal, row[feature])
		maxVal = math.Max(maxVal, row[feature])
	}

	if minVal == maxVal {
		return &node{size: n}
	}

	splitValue := minVal + rng.Float64()*(maxVal-minVal)

	var leftData, rightData [][]float64
	for _, row := range data {
		if row[feature] < splitValue {
			leftData = append(leftData, row)
		} else {
			rightData = append(rightData, row)
		}
	}

	return &node{
		splitFeature: feature,
		splitValue:   splitValue,
		left:         buildNode(rng, leftData, nFeatures, depth+1, maxDepth),
		right:        buildNode(rng, rightData, nFeatures, depth+1, maxDepth),
	}
}

// Predict returns anomaly scores in [0, 1]; higher is more anomalous.
func (f *IsolationForest) Predict(data [][]float64) ([]float64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.trained {
		return nil, detectors.ErrNotTrained
	}

	return f.predict(data)
}

func (f *IsolationForest) predict(data [][]float64) ([]float64, error) {
	scores := make([]float64, len(data))

	for i, sample := range data {
		if len(sample) != f.nFeatures {
			return nil, fmt.Errorf("sample %d: feature count mismatch: expected %d, got %d", i, f.nFeatures, len(sample))
		}

		var totalPath float64
		for _, tree := range f.trees {
			totalPath += pathLength(sample, tree.root, 0)
		}
		avgPath := totalPath / float64(len(f.trees))

		// s(x) = 2^(-E[h(x)] / c(n))
		scores[i] = math.Pow(2, -avgPath/f.avgPathLength)
	}

	return scores, nil
}

// Classify labels samples scoring strictly above the threshold as outliers.
// The threshold is the interpolated (1 - contamination) quantile of the
// training scores, so at most ceil(contamination*l) training samples are
// flagged; the single highest score is flagged unless it is tied.
func (f *IsolationForest) Classify(data [][]float64) ([]detectors.Label, error) {
	scores, err := f.Predict(data)
	if err != nil {
		return nil, err
	}

	threshold := f.Threshold()
	labels := make([]detectors.Label, len(scores))
	for i, s := range scores {
		if s > threshold {
			labels[i] = detectors.Outlier
		} else {
			labels[i] = detectors.Inlier
		}
	}
	return labels, nil
}

// pathLength calculates the path length for a sample in a tree.
func pathLength(sample []float64, n *node, currentDepth int) float64 {
	if n.left == nil && n.right == nil {
		// Leaf node: add expected path length for remaining isolation
		return float64(currentDepth) + averagePathLength(float64(n.size))
	}

	if sample[n.splitFeature] < n.splitValue {
		return pathLength(sample, n.left, currentDepth+1)
	}
	return pathLength(sample, n.right, currentDepth+1)
}

// averagePathLength returns the average path length of unsuccessful search in BST.
func averagePathLength(n float64) float64 {
	if n <= 1 {
		return 0
	}
	// c(n) = 2*H(n-1) - 2*(n-1)/n, H(n) ~ ln(n) + Euler-Mascheroni
	return 2*(math.Log(n-1)+0.5772156649) - 2*(n-1)/n
}

// Threshold returns the current anomaly threshold.
func (f *IsolationForest) Threshold() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.threshold
}

// SetThreshold updates the anomaly threshold.
func (f *IsolationForest) SetThreshold(t float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.threshold = t
}

// percentile returns the p-th percentile of data, interpolating linearly
// between the closest ranks.
func percentile(data []float64, p float64) float64 {
	if len(data) == 0 {
		return 0
	}

	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	pos := float64(len(sorted)-1) * p / 100
	lo := int(math.Floor(pos))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	return sorted[lo] + (pos-float64(lo))*(sorted[lo+1]-sorted[lo])
}

var _ detectors.Detector = (*IsolationForest)(nil)
