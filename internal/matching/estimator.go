// Package matching implements the match-scoring subsystem: win-probability
// estimation, reason generation, and batch orchestration with per-item
// timeouts and fallback substitution.
package matching

import (
	"context"

	"scholarswipe/internal/models"
)

// Probability bounds. An estimate never claims certainty in either direction.
const (
	MinProbability = 0.05
	MaxProbability = 0.95
)

// Estimator computes a win probability in [MinProbability, MaxProbability]
// for a (profile, scholarship) pair. Implementations are swappable; the
// orchestrator does not care which strategy is behind the interface.
type Estimator interface {
	Estimate(ctx context.Context, profile *models.StudentProfile, scholarship *models.Scholarship) (float64, error)
	Name() string
}

// ReasonGenerator produces 1-3 short justification strings consistent with
// the estimated probability. Implementations must never return an empty
// list; on failure the caller substitutes the generic fallback.
type ReasonGenerator interface {
	Reasons(ctx context.Context, profile *models.StudentProfile, scholarship *models.Scholarship, probability float64) ([]string, error)
}

// Strategy names accepted by config.
const (
	StrategyCascade = "cascade"
	StrategyLLM     = "llm"
)

func clampProbability(p float64) float64 {
	if p < MinProbability {
		return MinProbability
	}
	if p > MaxProbability {
		return MaxProbability
	}
	return p
}
