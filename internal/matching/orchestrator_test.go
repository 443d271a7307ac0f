package matching

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"scholarswipe/internal/common/logger"
	"scholarswipe/internal/models"
)

// stubEstimator lets tests script probability, error, and latency.
type stubEstimator struct {
	probability float64
	err         error
	delay       time.Duration
}

func (s *stubEstimator) Name() string { return "stub" }

func (s *stubEstimator) Estimate(ctx context.Context, _ *models.StudentProfile, _ *models.Scholarship) (float64, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	return s.probability, s.err
}

type stubReasoner struct {
	reasons []string
	delay   time.Duration
}

func (s *stubReasoner) Reasons(ctx context.Context, _ *models.StudentProfile, _ *models.Scholarship, _ float64) ([]string, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.reasons, nil
}

func testBatch(n int) []models.Scholarship {
	batch := make([]models.Scholarship, 0, n)
	for i := 0; i < n; i++ {
		batch = append(batch, testScholarship(fmt.Sprintf("Award %d", i), 5000, 45))
	}
	return batch
}

func TestScoreBatch_OneResultPerScholarship(t *testing.T) {
	o := NewOrchestrator(
		&stubEstimator{probability: 0.62},
		&stubReasoner{reasons: []string{"Good fit for your profile"}},
		time.Second, logger.NewTestLogger(t))

	profile := &models.StudentProfile{ID: "user-1"}
	batch := testBatch(5)

	results := o.ScoreBatch(context.Background(), profile, batch)

	assert.Len(t, results, 5)
	for i, r := range results {
		assert.Equal(t, batch[i].ID, r.ScholarshipID)
		assert.Equal(t, models.SourceModel, r.Source)
		assert.Equal(t, 0.62, r.WinProbability)
		assert.Equal(t, []string{"Good fit for your profile"}, r.MatchReasons)
		assert.NotEmpty(t, r.Tags)
	}
}

func TestScoreBatch_BackendDownSubstitutesFallbacks(t *testing.T) {
	o := NewOrchestrator(
		&stubEstimator{err: fmt.Errorf("connection refused")},
		&stubReasoner{reasons: []string{"unused"}},
		time.Second, logger.NewTestLogger(t))

	profile := &models.StudentProfile{ID: "user-2"}
	results := o.ScoreBatch(context.Background(), profile, testBatch(5))

	assert.Len(t, results, 5)
	for _, r := range results {
		assert.Equal(t, models.SourceFallback, r.Source)
		assert.GreaterOrEqual(t, r.WinProbability, 0.30)
		assert.LessOrEqual(t, r.WinProbability, 0.80)
		assert.Equal(t, fallbackReasons(), r.MatchReasons)
		assert.NotEmpty(t, r.Tags)
	}
}

func TestScoreBatch_SlowItemTimesOutToFallback(t *testing.T) {
	o := NewOrchestrator(
		&stubEstimator{probability: 0.9, delay: 500 * time.Millisecond},
		&stubReasoner{reasons: []string{"unused"}},
		50*time.Millisecond, logger.NewTestLogger(t))

	profile := &models.StudentProfile{ID: "user-3"}
	results := o.ScoreBatch(context.Background(), profile, testBatch(3))

	assert.Len(t, results, 3)
	for _, r := range results {
		assert.Equal(t, models.SourceFallback, r.Source)
	}
}

func TestScoreBatch_SlowReasonerAloneStillTimesOut(t *testing.T) {
	o := NewOrchestrator(
		&stubEstimator{probability: 0.7},
		&stubReasoner{reasons: []string{"late"}, delay: 500 * time.Millisecond},
		50*time.Millisecond, logger.NewTestLogger(t))

	results := o.ScoreBatch(context.Background(), &models.StudentProfile{ID: "u"}, testBatch(1))

	assert.Equal(t, models.SourceFallback, results[0].Source)
}

func TestScoreBatch_EmptyReasonsGetGenericReason(t *testing.T) {
	o := NewOrchestrator(
		&stubEstimator{probability: 0.55},
		&stubReasoner{reasons: nil},
		time.Second, logger.NewTestLogger(t))

	results := o.ScoreBatch(context.Background(), &models.StudentProfile{ID: "u"}, testBatch(1))

	assert.Equal(t, models.SourceModel, results[0].Source)
	assert.Equal(t, []string{genericReason}, results[0].MatchReasons)
}

func TestScoreBatch_EmptyBatch(t *testing.T) {
	o := NewOrchestrator(
		&stubEstimator{probability: 0.5},
		&stubReasoner{reasons: []string{"x"}},
		time.Second, logger.NewTestLogger(t))

	results := o.ScoreBatch(context.Background(), &models.StudentProfile{ID: "u"}, nil)
	assert.Empty(t, results)
}

func TestScoreBatch_ProbabilityClampedAndRounded(t *testing.T) {
	o := NewOrchestrator(
		&stubEstimator{probability: 1.7},
		&stubReasoner{reasons: []string{"x"}},
		time.Second, logger.NewTestLogger(t))

	results := o.ScoreBatch(context.Background(), &models.StudentProfile{ID: "u"}, testBatch(1))

	assert.Equal(t, MaxProbability, results[0].WinProbability)
}

// ==========================
// Fallback Scoring
// ==========================

func TestFallbackResult_AmountAndDeadlineBonuses(t *testing.T) {
	o := NewOrchestrator(&stubEstimator{}, &stubReasoner{}, time.Second, logger.NewTestLogger(t))

	tests := []struct {
		name     string
		amount   float64
		daysOut  int
		expected float64
	}{
		{"small award, near deadline", 1000, 10, 0.40},
		{"medium award", 6000, 10, 0.45},
		{"large award", 12000, 10, 0.50},
		{"far deadline", 1000, 90, 0.50},
		{"large award, far deadline", 12000, 90, 0.60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testScholarship(tt.name, tt.amount, tt.daysOut)
			r := o.fallbackResult(&s)
			assert.Equal(t, tt.expected, r.WinProbability)
			assert.Equal(t, models.SourceFallback, r.Source)
			assert.Len(t, r.MatchReasons, 3)
		})
	}
}
