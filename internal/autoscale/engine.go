package autoscale

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/minhtran2412/loadscope/internal/clock"
	"github.com/minhtran2412/loadscope/internal/metrics"
)

// Scaling actions, in decision precedence order.
const (
	ActionWarning  = "WARNING"
	ActionCooldown = "COOLDOWN"
	ActionScaleOut = "SCALE_OUT"
	ActionMaintain = "MAINTAIN"
)

// Config tunes the scaling engine.
type Config struct {
	// CapacityPerInstance is the request-per-bin load one instance absorbs.
	CapacityPerInstance float64 `json:"capacity_per_instance"`
	// UnitCost is the hourly cost of one instance.
	UnitCost float64 `json:"unit_cost"`
	// Cooldown suppresses repeat scale-outs after one fires.
	Cooldown time.Duration `json:"cooldown"`
	// ZScoreThreshold marks the latest observation anomalous when its
	// z-score against the history exceeds it.
	ZScoreThreshold float64 `json:"zscore_threshold"`
	// TargetUtilization is the fraction of fleet capacity the predicted
	// load may reach before a scale-out is recommended.
	TargetUtilization float64 `json:"target_utilization"`
}

// DefaultConfig returns the stock engine tuning.
func DefaultConfig() Config {
	return Config{
		CapacityPerInstance: 1000,
		UnitCost:            0.05,
		Cooldown:            5 * time.Minute,
		ZScoreThreshold:     3,
		TargetUtilization:   0.8,
	}
}

// Validate checks the config for values the engine cannot work with.
func (c Config) Validate() error {
	if c.CapacityPerInstance <= 0 {
		return fmt.Errorf("capacity_per_instance must be positive, got %v", c.CapacityPerInstance)
	}
	if c.UnitCost < 0 {
		return fmt.Errorf("unit_cost must be non-negative, got %v", c.UnitCost)
	}
	if c.Cooldown < 0 {
		return fmt.Errorf("cooldown must be non-negative, got %v", c.Cooldown)
	}
	if c.ZScoreThreshold <= 0 {
		return fmt.Errorf("zscore_threshold must be positive, got %v", c.ZScoreThreshold)
	}
	if c.TargetUtilization <= 0 || c.TargetUtilization > 1 {
		return fmt.Errorf("target_utilization must be in (0, 1], got %v", c.TargetUtilization)
	}
	return nil
}

// Decision is one scaling recommendation. It is advisory only; nothing
// here talks to an orchestrator. SuggestedInstances and the cost are
// always the fleet size the predicted load requires, whatever the
// action; CurrentInstances is informational and never drives the math.
type Decision struct {
	Action              string  `json:"action"`
	Reason              string  `json:"reason"`
	CurrentInstances    int     `json:"current_instances"`
	SuggestedInstances  int     `json:"suggested_instances"`
	PredictedLoadAvg    float64 `json:"predicted_load_avg"`
	IsAnomaly           bool    `json:"is_anomaly"`
	EstimatedHourlyCost float64 `json:"estimated_hourly_cost"`
}

// Engine turns metric history into scaling recommendations. It keeps one
// piece of state, the time of the last scale-out, which drives the
// cooldown. Safe for concurrent use.
type Engine struct {
	cfg Config
	clk clock.Clock

	mu        sync.Mutex
	lastScale time.Time
}

// NewEngine builds an engine. A nil clk falls back to the real clock.
func NewEngine(cfg Config, clk clock.Clock) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scaling config: %w", err)
	}
	if clk == nil {
		clk = clock.NewRealClock()
	}
	return &Engine{cfg: cfg, clk: clk}, nil
}

// Forecast projects the request-count history forward by the default
// horizon. Nil when the history is too short.
func (e *Engine) Forecast(history []metrics.MetricPoint) []float64 {
	return Forecast(requestCounts(history), DefaultHorizon)
}

// RecommendScaling evaluates the history and returns one decision.
// Checks run in strict first-match precedence: an anomalous latest
// observation yields WARNING, an active cooldown yields COOLDOWN
// regardless of load, predicted load beyond what one fewer than the
// required fleet could carry at the target utilization yields SCALE_OUT
// and arms the cooldown, otherwise MAINTAIN. The required fleet size is
// ceil(predicted / capacity), floored at one instance.
func (e *Engine) RecommendScaling(history []metrics.MetricPoint, currentInstances int) Decision {
	if currentInstances < 1 {
		currentInstances = 1
	}

	counts := requestCounts(history)

	// A history too short to forecast predicts zero load.
	var predicted float64
	if forecast := Forecast(counts, DefaultHorizon); forecast != nil {
		predicted = mean(forecast)
	}

	required := int(math.Ceil(predicted / e.cfg.CapacityPerInstance))
	if required < 1 {
		required = 1
	}

	decision := Decision{
		Action:              ActionMaintain,
		Reason:              "load stable",
		CurrentInstances:    currentInstances,
		SuggestedInstances:  required,
		PredictedLoadAvg:    predicted,
		EstimatedHourlyCost: float64(required) * e.cfg.UnitCost,
	}

	if z, anomalous := e.spikeZScore(counts); anomalous {
		decision.Action = ActionWarning
		decision.IsAnomaly = true
		decision.Reason = fmt.Sprintf("traffic spike detected (z-score %.2f); scaling paused to ride it out", z)
		return decision
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.lastScale.IsZero() && e.clk.Since(e.lastScale) < e.cfg.Cooldown {
		decision.Action = ActionCooldown
		remaining := e.cfg.Cooldown - e.clk.Since(e.lastScale)
		decision.Reason = fmt.Sprintf("in hysteresis period; wait %s", remaining.Round(time.Second))
		return decision
	}

	threshold := float64(required-1) * e.cfg.CapacityPerInstance * e.cfg.TargetUtilization
	if predicted > threshold {
		decision.Action = ActionScaleOut
		decision.Reason = fmt.Sprintf("forecast %.0f requests exceeds capacity", predicted)
		e.lastScale = e.clk.Now()
	}
	return decision
}

// spikeZScore returns the signed z-score of the newest observation
// against the history, and whether it crosses the threshold. Only
// upward spikes flag; a collapse in traffic is not an anomaly. A flat
// or near-empty history never flags.
func (e *Engine) spikeZScore(counts []float64) (float64, bool) {
	sd := stddev(counts)
	if sd == 0 {
		return 0, false
	}
	latest := counts[len(counts)-1]
	z := (latest - mean(counts)) / sd
	return z, z > e.cfg.ZScoreThreshold
}

func requestCounts(history []metrics.MetricPoint) []float64 {
	if len(history) == 0 {
		return nil
	}
	counts := make([]float64, len(history))
	for i, p := range history {
		counts[i] = float64(p.RequestCount)
	}
	return counts
}
