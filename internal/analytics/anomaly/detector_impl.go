package anomaly

import (
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/zoneguard/zoneguard-ai/internal/analytics/ml"
	"github.com/zoneguard/zoneguard-ai/internal/models"
)

// detectorImpl is the concrete AnomalyDetector backed by an isolation forest.
// It holds no per-call state, so one instance may serve concurrent callers.
type detectorImpl struct {
	cfg    Config
	logger *zap.Logger
}

// NewAnomalyDetector creates a detector with the given configuration.
// Zero-valued fields fall back to DefaultConfig.
func NewAnomalyDetector(cfg Config, logger *zap.Logger) AnomalyDetector {
	def := DefaultConfig()
	if cfg.Contamination <= 0 || cfg.Contamination >= 0.5 {
		cfg.Contamination = def.Contamination
	}
	if cfg.NumTrees <= 0 {
		cfg.NumTrees = def.NumTrees
	}
	if cfg.SubSampleSize <= 0 {
		cfg.SubSampleSize = def.SubSampleSize
	}
	if cfg.MinRows <= 0 {
		cfg.MinRows = def.MinRows
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &detectorImpl{cfg: cfg, logger: logger}
}

// Detect analyzes the zone window and returns flagged events sorted by score.
func (d *detectorImpl) Detect(history []models.Observation, zone string, lookback int) (*Result, error) {
	window := models.ZoneHistory(history, zone)
	if lookback > 0 && len(window) > lookback {
		window = window[len(window)-lookback:]
	}
	if len(window) < d.cfg.MinRows {
		return nil, fmt.Errorf("anomaly detection for %s: %d rows, need %d: %w",
			zone, len(window), d.cfg.MinRows, models.ErrInsufficientData)
	}

	points := make([]ml.DataPoint, len(window))
	for i, o := range window {
		points[i] = ml.DataPoint{
			Features: []float64{o.Demand, o.Drivers, o.Inventory, o.Availability},
		}
	}

	forest := ml.NewIsolationForest(d.cfg.NumTrees, d.cfg.SubSampleSize, d.cfg.Seed)
	if err := forest.Fit(points); err != nil {
		return nil, fmt.Errorf("fit isolation forest: %w", err)
	}

	results := forest.BatchPredict(points)
	scores := make([]float64, len(results))
	for i, r := range results {
		scores[i] = r.Score
	}
	threshold := ml.ContaminationThreshold(scores, d.cfg.Contamination)

	events := make([]models.AnomalyEvent, 0)
	for i, o := range window {
		if scores[i] <= threshold {
			continue
		}
		events = append(events, models.AnomalyEvent{
			EventID:   models.EventID(o.ZoneID, o.Timestamp),
			Timestamp: o.Timestamp,
			ZoneID:    o.ZoneID,
			Score:     round4(scores[i]),
			Snapshot: models.Snapshot{
				Demand:       o.Demand,
				Drivers:      o.Drivers,
				Inventory:    o.Inventory,
				Availability: o.Availability,
				Weather:      o.Weather,
			},
		})
	}

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Score != events[j].Score {
			return events[i].Score > events[j].Score
		}
		return events[i].Timestamp.Before(events[j].Timestamp)
	})

	d.logger.Debug("anomaly detection complete",
		zap.String("zone_id", zone),
		zap.Int("window", len(window)),
		zap.Float64("threshold", threshold),
		zap.Int("events", len(events)),
	)

	return &Result{ZoneID: zone, Events: events}, nil
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
