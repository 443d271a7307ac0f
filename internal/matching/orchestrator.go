package matching

import (
	"context"
	"math"
	"sync"
	"time"

	"scholarswipe/internal/common/logger"
	"scholarswipe/internal/common/metrics"
	"scholarswipe/internal/common/observability"
	"scholarswipe/internal/models"
)

const (
	fallbackBase    = 0.40
	fallbackCeiling = 0.80
)

// Orchestrator fans estimation and reason generation out across a batch of
// scholarships with a per-item timeout. A failed or slow item never fails
// the batch; its slot is filled with a locally computed fallback result.
type Orchestrator struct {
	estimator   Estimator
	reasoner    ReasonGenerator
	itemTimeout time.Duration
	logger      logger.Logger
	obs         *observability.Observability
	now         func() time.Time
}

func NewOrchestrator(estimator Estimator, reasoner ReasonGenerator, itemTimeout time.Duration, log logger.Logger) *Orchestrator {
	if itemTimeout <= 0 {
		itemTimeout = 3 * time.Second
	}
	return &Orchestrator{
		estimator:   estimator,
		reasoner:    reasoner,
		itemTimeout: itemTimeout,
		logger:      log.WithFields(map[string]interface{}{"component": "orchestrator"}),
		now:         time.Now,
	}
}

// WithObservability attaches an OpenTelemetry recorder. Optional; the
// orchestrator works without one.
func (o *Orchestrator) WithObservability(obs *observability.Observability) *Orchestrator {
	o.obs = obs
	return o
}

// ScoreBatch returns exactly one MatchResult per input scholarship, keyed
// by scholarship id. Per-item completion order is irrelevant; the returned
// slice preserves input order.
func (o *Orchestrator) ScoreBatch(ctx context.Context, profile *models.StudentProfile, scholarships []models.Scholarship) []models.MatchResult {
	results := make([]models.MatchResult, len(scholarships))

	var wg sync.WaitGroup
	for i := range scholarships {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = o.scoreOne(ctx, profile, &scholarships[i])
		}(i)
	}
	wg.Wait()

	fallbacks := 0
	for i := range results {
		if results[i].Source == models.SourceFallback {
			fallbacks++
		}
	}

	o.logger.Info("batch scored", map[string]interface{}{
		"userId":    profile.ID,
		"items":     len(scholarships),
		"fallbacks": fallbacks,
	})

	return results
}

type scoredPair struct {
	probability float64
	reasons     []string
	err         error
}

// scoreOne races the estimator+reasoner pair against the per-item timeout.
// A late result is abandoned, not awaited; the buffered channel lets the
// worker goroutine finish without a reader.
func (o *Orchestrator) scoreOne(ctx context.Context, profile *models.StudentProfile, scholarship *models.Scholarship) models.MatchResult {
	start := o.now()

	itemCtx, cancel := context.WithTimeout(ctx, o.itemTimeout)
	defer cancel()

	done := make(chan scoredPair, 1)
	go func() {
		var pair scoredPair
		var inner sync.WaitGroup

		inner.Add(2)
		go func() {
			defer inner.Done()
			pair.probability, pair.err = o.estimator.Estimate(itemCtx, profile, scholarship)
		}()
		go func() {
			defer inner.Done()
			reasons, err := o.reasoner.Reasons(itemCtx, profile, scholarship, 0)
			if err != nil || len(reasons) == 0 {
				reasons = []string{genericReason}
			}
			pair.reasons = reasons
		}()
		inner.Wait()

		done <- pair
	}()

	var result models.MatchResult
	select {
	case pair := <-done:
		if pair.err != nil {
			o.logger.Warn("scoring failed, substituting fallback", map[string]interface{}{
				"scholarshipId": scholarship.ID,
				"error":         pair.err.Error(),
			})
			result = o.fallbackResult(scholarship)
		} else {
			probability := math.Round(clampProbability(pair.probability)*100) / 100
			result = models.MatchResult{
				ScholarshipID:  scholarship.ID,
				WinProbability: probability,
				MatchReasons:   pair.reasons,
				Source:         models.SourceModel,
			}
		}
	case <-itemCtx.Done():
		o.logger.Warn("scoring timed out, substituting fallback", map[string]interface{}{
			"scholarshipId": scholarship.ID,
			"timeout":       o.itemTimeout.String(),
		})
		result = o.fallbackResult(scholarship)
	}

	result.Tags = DeriveTags(&result, scholarship, o.now())

	metrics.MatchItemsScored.WithLabelValues(string(result.Source)).Inc()
	metrics.MatchScoreDuration.WithLabelValues(o.estimator.Name()).Observe(o.now().Sub(start).Seconds())

	if o.obs != nil {
		o.obs.RecordMatchScored(ctx, string(result.Source))
		o.obs.RecordScoreDuration(ctx, o.now().Sub(start), string(result.Source))
	}

	return result
}

// fallbackResult is the cheap, dependency-free substitute: a baseline
// probability nudged by award amount and deadline distance.
func (o *Orchestrator) fallbackResult(scholarship *models.Scholarship) models.MatchResult {
	probability := fallbackBase

	switch {
	case scholarship.Amount >= 10000:
		probability += 0.10
	case scholarship.Amount >= 5000:
		probability += 0.05
	}

	if scholarship.DaysToDeadline(o.now()) > 30 {
		probability += 0.10
	}

	if probability > fallbackCeiling {
		probability = fallbackCeiling
	}

	return models.MatchResult{
		ScholarshipID:  scholarship.ID,
		WinProbability: math.Round(probability*100) / 100,
		MatchReasons:   fallbackReasons(),
		Source:         models.SourceFallback,
	}
}
