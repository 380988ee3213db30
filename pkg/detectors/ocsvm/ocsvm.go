// Package ocsvm implements the one-class nu-SVM for novelty detection.
package ocsvm

import (
	"fmt"
	"math"
	"sync"

	"github.com/hed1ad/synguard/pkg/detectors"
)

// Kernel names.
const (
	KernelRBF    = "rbf"
	KernelLinear = "linear"
)

// Bandwidth heuristics for the RBF kernel.
const (
	// GammaScale uses 1 / (n_features * Var(X)), Var taken over all entries.
	GammaScale = "scale"
	// GammaAuto uses 1 / n_features.
	GammaAuto = "auto"
)

// tau replaces non-positive curvature in the working-set update.
const tau = 1e-12

// OneClassSVM learns the smallest region of kernel space that holds all but
// a nu fraction of the training samples. Training follows the libsvm
// formulation: 0 <= alpha_i <= 1, sum(alpha) = nu*l, solved by SMO with
// second-order working-set selection.
type OneClassSVM struct {
	mu sync.RWMutex

	// Configuration
	nu           float64
	kernel       string
	heuristic    string
	gamma        float64
	tolerance    float64
	supportFloor float64
	maxIter      int

	// Trained model
	supportVectors [][]float64
	coef           []float64
	rho            float64
	fittedGamma    float64
	trained        bool

	// Statistics from training
	iterations int
	converged  bool
}

// Option configures a OneClassSVM.
type Option func(*OneClassSVM)

// WithNu sets the target fraction of training outliers. The support mass is
// max(nu*l, min(supportFloor, l-1)), so on small window sets the effective
// bound is supportFloor/l rather than nu; see WithSupportFloor.
func WithNu(nu float64) Option {
	return func(m *OneClassSVM) {
		m.nu = nu
	}
}

// WithKernel selects the kernel function.
func WithKernel(name string) Option {
	return func(m *OneClassSVM) {
		m.kernel = name
	}
}

// WithGamma fixes the RBF bandwidth instead of deriving it from the data.
func WithGamma(gamma float64) Option {
	return func(m *OneClassSVM) {
		m.gamma = gamma
		m.heuristic = ""
	}
}

// WithGammaHeuristic derives the RBF bandwidth from the data at fit time.
func WithGammaHeuristic(name string) Option {
	return func(m *OneClassSVM) {
		m.heuristic = name
		m.gamma = 0
	}
}

// WithTolerance sets the solver stopping tolerance. Samples whose decision
// value lies within the tolerance of the boundary count as inliers.
func WithTolerance(eps float64) Option {
	return func(m *OneClassSVM) {
		m.tolerance = eps
	}
}

// WithSupportFloor sets the minimum total support mass. Below a mass of 1
// the box constraint cannot bind and no training sample can fall outside the
// boundary, so small window sets are trained with at least this mass
// (capped at l-1).
func WithSupportFloor(mass float64) Option {
	return func(m *OneClassSVM) {
		m.supportFloor = mass
	}
}

// WithMaxIter bounds the number of SMO iterations.
func WithMaxIter(n int) Option {
	return func(m *OneClassSVM) {
		m.maxIter = n
	}
}

// New creates a new OneClassSVM with the given options.
func New(opts ...Option) *OneClassSVM {
	m := &OneClassSVM{
		nu:           0.0026,
		kernel:       KernelRBF,
		heuristic:    GammaScale,
		tolerance:    1e-3,
		supportFloor: 3,
		maxIter:      10000000,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Name identifies the algorithm.
func (m *OneClassSVM) Name() string {
	return "ocsvm"
}

// Fit solves the one-class dual problem over data.
func (m *OneClassSVM) Fit(data [][]float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := detectors.Validate(data); err != nil {
		return err
	}
	if m.nu <= 0 || m.nu > 1 {
		return fmt.Errorf("nu must be in (0, 1], got %g", m.nu)
	}
	if m.kernel != KernelRBF && m.kernel != KernelLinear {
		return fmt.Errorf("unknown kernel %q", m.kernel)
	}

	gamma, err := m.resolveGamma(data)
	if err != nil {
		return err
	}
	m.fittedGamma = gamma

	alpha := m.solve(data)

	m.supportVectors = m.supportVectors[:0]
	m.coef = m.coef[:0]
	for i, a := range alpha {
		if a > 0 {
			sv := make([]float64, len(data[i]))
			copy(sv, data[i])
			m.supportVectors = append(m.supportVectors, sv)
			m.coef = append(m.coef, a)
		}
	}
	m.trained = true

	return nil
}

func (m *OneClassSVM) resolveGamma(data [][]float64) (float64, error) {
	if m.kernel == KernelLinear {
		return 0, nil
	}

	dim := float64(len(data[0]))
	switch m.heuristic {
	case GammaAuto:
		return 1 / dim, nil
	case GammaScale:
		v := variance(data)
		if v == 0 {
			return 1, nil
		}
		return 1 / (dim * v), nil
	case "":
		if m.gamma <= 0 {
			return 0, fmt.Errorf("gamma must be positive, got %g", m.gamma)
		}
		return m.gamma, nil
	default:
		return 0, fmt.Errorf("unknown gamma heuristic %q", m.heuristic)
	}
}

// solve runs SMO and records rho; it returns the dual coefficients.
func (m *OneClassSVM) solve(data [][]float64) []float64 {
	l := len(data)

	mass := m.nu * float64(l)
	if floor := math.Min(m.supportFloor, float64(l-1)); mass < floor {
		mass = floor
	}

	alpha := make([]float64, l)
	n := int(mass)
	for i := 0; i < n && i < l; i++ {
		alpha[i] = 1
	}
	if n < l {
		alpha[n] = mass - float64(n)
	}

	diag := make([]float64, l)
	for i := range data {
		diag[i] = m.kernelFunc(data[i], data[i])
	}

	grad := make([]float64, l)
	for i, a := range alpha {
		if a == 0 {
			continue
		}
		col := m.column(data, i)
		for k := range grad {
			grad[k] += a * col[k]
		}
	}

	m.converged = false
	m.iterations = 0
	for m.iterations < m.maxIter {
		i, j, colI := m.selectWorkingSet(data, alpha, grad, diag)
		if j < 0 {
			m.converged = true
			break
		}
		m.iterations++

		quad := diag[i] + diag[j] - 2*colI[j]
		if quad <= 0 {
			quad = tau
		}
		delta := (grad[i] - grad[j]) / quad

		oldI, oldJ := alpha[i], alpha[j]
		sum := oldI + oldJ
		alpha[i] -= delta
		alpha[j] += delta

		if sum > 1 {
			if alpha[i] > 1 {
				alpha[i] = 1
				alpha[j] = sum - 1
			}
		} else if alpha[j] < 0 {
			alpha[j] = 0
			alpha[i] = sum
		}
		if sum > 1 {
			if alpha[j] > 1 {
				alpha[j] = 1
				alpha[i] = sum - 1
			}
		} else if alpha[i] < 0 {
			alpha[i] = 0
			alpha[j] = sum
		}

		dI, dJ := alpha[i]-oldI, alpha[j]-oldJ
		colJ := m.column(data, j)
		for k := range grad {
			grad[k] += colI[k]*dI + colJ[k]*dJ
		}
	}

	m.rho = calculateRho(alpha, grad)
	return alpha
}

// selectWorkingSet picks the maximal violating pair using second-order
// information. j is -1 once the KKT gap is below tolerance.
func (m *OneClassSVM) selectWorkingSet(data [][]float64, alpha, grad, diag []float64) (int, int, []float64) {
	gmax := math.Inf(-1)
	i := -1
	for t, a := range alpha {
		if a < 1 && -grad[t] >= gmax {
			gmax = -grad[t]
			i = t
		}
	}
	if i < 0 {
		return -1, -1, nil
	}

	colI := m.column(data, i)

	gmax2 := math.Inf(-1)
	j := -1
	objMin := math.Inf(1)
	for t, a := range alpha {
		if a <= 0 {
			continue
		}
		if grad[t] >= gmax2 {
			gmax2 = grad[t]
		}
		b := gmax + grad[t]
		if b > 0 {
			quad := diag[i] + diag[t] - 2*colI[t]
			if quad <= 0 {
				quad = tau
			}
			if obj := -(b * b) / quad; obj <= objMin {
				objMin = obj
				j = t
			}
		}
	}

	if gmax+gmax2 < m.tolerance {
		return i, -1, colI
	}
	return i, j, colI
}

func calculateRho(alpha, grad []float64) float64 {
	ub, lb := math.Inf(1), math.Inf(-1)
	var sumFree float64
	var nFree int

	for t, a := range alpha {
		switch {
		case a >= 1:
			lb = math.Max(lb, grad[t])
		case a <= 0:
			ub = math.Min(ub, grad[t])
		default:
			nFree++
			sumFree += grad[t]
		}
	}

	switch {
	case nFree > 0:
		return sumFree / float64(nFree)
	case math.IsInf(ub, 1):
		return lb
	case math.IsInf(lb, -1):
		return ub
	default:
		return (ub + lb) / 2
	}
}

// column returns K(x_k, x_i) for every training sample k.
func (m *OneClassSVM) column(data [][]float64, i int) []float64 {
	col := make([]float64, len(data))
	for k := range data {
		col[k] = m.kernelFunc(data[k], data[i])
	}
	return col
}

func (m *OneClassSVM) kernelFunc(a, b []float64) float64 {
	if m.kernel == KernelLinear {
		var dot float64
		for i := range a {
			dot += a[i] * b[i]
		}
		return dot
	}

	var dist float64
	for i := range a {
		d := a[i] - b[i]
		dist += d * d
	}
	return math.Exp(-m.fittedGamma * dist)
}

// Decision returns the signed distance proxy sum(alpha_i K(sv_i, x)) - rho.
// Negative values lie outside the boundary.
func (m *OneClassSVM) Decision(data [][]float64) ([]float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.trained {
		return nil, detectors.ErrNotTrained
	}
	return m.decision(data)
}

func (m *OneClassSVM) decision(data [][]float64) ([]float64, error) {
	dim := len(m.supportVectors[0])
	values := make([]float64, len(data))

	for i, sample := range data {
		if len(sample) != dim {
			return nil, fmt.Errorf("sample %d: feature count mismatch: expected %d, got %d", i, dim, len(sample))
		}

		var sum float64
		for k, sv := range m.supportVectors {
			sum += m.coef[k] * m.kernelFunc(sv, sample)
		}
		values[i] = sum - m.rho
	}

	return values, nil
}

// Predict returns anomaly scores (the negated decision values).
func (m *OneClassSVM) Predict(data [][]float64) ([]float64, error) {
	values, err := m.Decision(data)
	if err != nil {
		return nil, err
	}

	for i := range values {
		values[i] = -values[i]
	}
	return values, nil
}

// Classify labels samples whose decision value is below -tolerance as outliers.
func (m *OneClassSVM) Classify(data [][]float64) ([]detectors.Label, error) {
	values, err := m.Decision(data)
	if err != nil {
		return nil, err
	}

	labels := make([]detectors.Label, len(values))
	for i, v := range values {
		if v < -m.tolerance {
			labels[i] = detectors.Outlier
		} else {
			labels[i] = detectors.Inlier
		}
	}
	return labels, nil
}

// Gamma returns the RBF bandwidth used by the last Fit.
func (m *OneClassSVM) Gamma() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fittedGamma
}

// Rho returns the fitted boundary offset.
func (m *OneClassSVM) Rho() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rho
}

// SupportVectors returns the number of support vectors.
func (m *OneClassSVM) SupportVectors() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.supportVectors)
}

// Converged reports whether the last Fit met the tolerance within maxIter.
func (m *OneClassSVM) Converged() (bool, int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.converged, m.iterations
}

// variance is the population variance over every entry of data.
func variance(data [][]float64) float64 {
	var n, mean, m2 float64
	for _, row := range data {
		for _, v := range row {
			n++
			delta := v - mean
			mean += delta / n
			m2 += delta * (v - mean)
		}
	}
	if n == 0 {
		return 0
	}
	return m2 / n
}

var _ detectors.Detector = (*OneClassSVM)(nil)
