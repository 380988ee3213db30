// Package pipeline runs the batch flood analysis: encode destinations,
// window and aggregate the records, detect novel windows and rank SYN
// concentrations.
package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/hed1ad/synguard/pkg/config"
	"github.com/hed1ad/synguard/pkg/detectors"
	"github.com/hed1ad/synguard/pkg/detectors/iforest"
	"github.com/hed1ad/synguard/pkg/detectors/ocsvm"
	"github.com/hed1ad/synguard/pkg/features"
	"github.com/hed1ad/synguard/pkg/flow"
	"github.com/hed1ad/synguard/pkg/logging"
	"github.com/hed1ad/synguard/pkg/synflood"
)

// Pipeline holds the immutable settings of an analysis run.
type Pipeline struct {
	windowSize time.Duration
	extractor  features.Extractor
	fillEmpty  bool
	detector   detectors.Detector
	topK       int
	logger     log.FieldLogger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithWindowSize sets the window duration.
func WithWindowSize(d time.Duration) Option {
	return func(p *Pipeline) {
		p.windowSize = d
	}
}

// WithExtractor sets the per-window feature set.
func WithExtractor(ex features.Extractor) Option {
	return func(p *Pipeline) {
		p.extractor = ex
	}
}

// WithFillEmpty feeds zero vectors for empty windows to the detector.
func WithFillEmpty(fill bool) Option {
	return func(p *Pipeline) {
		p.fillEmpty = fill
	}
}

// WithDetector sets the novelty detector.
func WithDetector(d detectors.Detector) Option {
	return func(p *Pipeline) {
		p.detector = d
	}
}

// WithTopK sets how many SYN groups are ranked for the report.
func WithTopK(k int) Option {
	return func(p *Pipeline) {
		p.topK = k
	}
}

// WithLogger sets the logger.
func WithLogger(l log.FieldLogger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// New creates a Pipeline with the given options.
func New(opts ...Option) *Pipeline {
	dc := detectors.DefaultConfig()
	p := &Pipeline{
		windowSize: features.DefaultWindowSize,
		extractor:  features.DestinationSumExtractor{},
		detector:   ocsvm.New(ocsvm.WithNu(dc.Nu)),
		topK:       synflood.DefaultTopK,
		logger:     logging.Discard(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// FromConfig builds a Pipeline from a validated configuration.
func FromConfig(cfg *config.Config, logger log.FieldLogger) (*Pipeline, error) {
	ex, err := features.NewExtractor(cfg.Window.Features)
	if err != nil {
		return nil, err
	}
	det, err := NewDetector(cfg.Detector)
	if err != nil {
		return nil, err
	}

	return New(
		WithWindowSize(cfg.Window.Size),
		WithExtractor(ex),
		WithFillEmpty(cfg.Window.FillEmpty),
		WithDetector(det),
		WithTopK(cfg.Syn.TopK),
		WithLogger(logger),
	), nil
}

// NewDetector instantiates the configured novelty detector.
func NewDetector(c config.DetectorConfig) (detectors.Detector, error) {
	dc := detectors.Config{Nu: c.Nu, RandomSeed: c.Seed}

	switch c.Algorithm {
	case config.DetectorOCSVM, "":
		heuristic, gamma, err := c.ParseGamma()
		if err != nil {
			return nil, err
		}
		opts := []ocsvm.Option{
			ocsvm.WithNu(dc.Nu),
			ocsvm.WithKernel(c.Kernel),
			ocsvm.WithTolerance(c.Tolerance),
			ocsvm.WithSupportFloor(c.SupportFloor),
		}
		if heuristic != "" {
			opts = append(opts, ocsvm.WithGammaHeuristic(heuristic))
		} else {
			opts = append(opts, ocsvm.WithGamma(gamma))
		}
		return ocsvm.New(opts...), nil
	case config.DetectorIForest:
		return iforest.New(
			iforest.WithContamination(dc.Nu),
			iforest.WithTrees(c.Trees),
			iforest.WithSeed(dc.RandomSeed),
		), nil
	default:
		return nil, fmt.Errorf("unknown detector %q", c.Algorithm)
	}
}

// Run analyses records. Any error aborts the whole run; a Result is only
// returned when every stage succeeded.
func (p *Pipeline) Run(records []flow.Record) (*Result, error) {
	runID := uuid.NewString()
	logger := p.logger.WithField("run_id", runID)
	started := time.Now()

	if len(records) == 0 {
		return nil, flow.ErrEmptyDataset
	}

	enc, err := features.NewEncoder(records)
	if err != nil {
		return nil, fmt.Errorf("encode destinations: %w", err)
	}
	logger.WithFields(log.Fields{
		"component":    "encoder",
		"records":      len(records),
		"destinations": enc.Len(),
	}).Debug("encoded destination addresses")

	windowed, err := features.Assign(records, p.windowSize)
	if err != nil {
		return nil, fmt.Errorf("assign windows: %w", err)
	}

	matrix := features.Aggregate(windowed, enc, p.extractor, features.WithFillEmpty(p.fillEmpty))
	logger.WithFields(log.Fields{
		"component": "aggregator",
		"features":  p.extractor.Name(),
		"windows":   len(matrix.Windows),
		"size":      p.windowSize,
	}).Info("aggregated windows")

	labels, err := detectors.FitClassify(p.detector, matrix.Rows)
	if err != nil {
		return nil, fmt.Errorf("%s novelty detection: %w", p.detector.Name(), err)
	}
	if m, ok := p.detector.(*ocsvm.OneClassSVM); ok {
		if converged, iter := m.Converged(); !converged {
			logger.WithField("iterations", iter).Warn("solver stopped before reaching tolerance")
		}
	}

	res := &Result{
		RunID:    runID,
		Detector: p.detector.Name(),
		Encoder:  enc,
		Windowed: windowed,
		Matrix:   matrix,
		Labels:   labels,
	}
	res.collectAnomalies()
	logger.WithFields(log.Fields{
		"component":       "detector",
		"detector":        res.Detector,
		"outlier_windows": len(res.AnomalousWindows),
		"outlier_records": len(res.Anomalies),
	}).Info("classified windows")

	res.SynGroups = synflood.Groups(windowed)
	res.TopGroups = synflood.Top(res.SynGroups, p.topK)
	res.PerMinute = synflood.Bin(windowed, 1)
	res.PerFiveMinutes = synflood.Bin(windowed, 5)
	logger.WithFields(log.Fields{
		"component":   "synflood",
		"groups":      len(res.SynGroups),
		"syn_packets": res.PerMinute.Total(),
	}).Info("ranked SYN groups")

	logger.WithField("elapsed", time.Since(started)).Debug("analysis complete")
	return res, nil
}
