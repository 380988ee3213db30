// Package detectors provides unsupervised novelty detection over window
// feature vectors.
//
// Detectors are fitted and queried over the same set of samples: they score
// how far each window sits from the bulk of the data, they are not
// classifiers validated on held-out windows.
package detectors

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInsufficientData is returned when the training set has fewer than two
// distinct feature vectors, which leaves any boundary undefined.
var ErrInsufficientData = errors.New("insufficient data: need at least 2 distinct feature vectors")

// ErrNotTrained is returned when a detector is queried before Fit.
var ErrNotTrained = errors.New("model not trained")

// Label is the side of the learned boundary a sample falls on.
type Label int

const (
	// Outlier marks samples outside the boundary.
	Outlier Label = -1
	// Inlier marks samples inside the boundary.
	Inlier Label = 1
)

func (l Label) String() string {
	switch l {
	case Outlier:
		return "outlier"
	case Inlier:
		return "inlier"
	default:
		return "Label(" + strconv.Itoa(int(l)) + ")"
	}
}

// Detector is the common interface for all novelty detection algorithms.
type Detector interface {
	// Name identifies the algorithm.
	Name() string

	// Fit learns the boundary of normal data.
	// data is a 2D slice where each row is a sample and each column is a feature.
	Fit(data [][]float64) error

	// Predict returns anomaly scores for the given samples.
	// Higher values indicate anomalies.
	Predict(data [][]float64) ([]float64, error)

	// Classify labels each sample as Inlier or Outlier.
	Classify(data [][]float64) ([]Label, error)
}

// Config holds common configuration for detectors.
type Config struct {
	// Nu bounds the fraction of training samples allowed outside the boundary.
	Nu float64
	// RandomSeed for reproducibility of randomized detectors.
	RandomSeed int64
}

// DefaultConfig returns sensible defaults for detector configuration.
func DefaultConfig() Config {
	return Config{
		Nu:         0.0026,
		RandomSeed: 42,
	}
}

// Validate checks data shape and returns ErrInsufficientData when fewer than
// two distinct rows exist.
func Validate(data [][]float64) error {
	if len(data) == 0 {
		return fmt.Errorf("empty training data: %w", ErrInsufficientData)
	}

	dim := len(data[0])
	if dim == 0 {
		return errors.New("samples have no features")
	}

	distinct := make(map[string]struct{})
	var key strings.Builder
	for i, row := range data {
		if len(row) != dim {
			return fmt.Errorf("sample %d: feature count mismatch: expected %d, got %d", i, dim, len(row))
		}

		key.Reset()
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("sample %d: non-finite feature value", i)
			}
			key.WriteString(strconv.FormatUint(math.Float64bits(v), 16))
			key.WriteByte(',')
		}
		distinct[key.String()] = struct{}{}
	}

	if len(distinct) < 2 {
		return ErrInsufficientData
	}
	return nil
}

// FitClassify fits d on data and labels the same samples.
func FitClassify(d Detector, data [][]float64) ([]Label, error) {
	if err := d.Fit(data); err != nil {
		return nil, err
	}
	return d.Classify(data)
}
