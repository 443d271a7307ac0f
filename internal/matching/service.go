package matching

import (
	"context"

	"scholarswipe/internal/common/errors"
	"scholarswipe/internal/common/logger"
	"scholarswipe/internal/common/metrics"
	"scholarswipe/internal/models"
	"scholarswipe/internal/session"
)

// CatalogSource loads the profile and listings a batch needs.
type CatalogSource interface {
	GetProfile(ctx context.Context, userID string) (*models.StudentProfile, error)
	GetScholarships(ctx context.Context, ids []string) ([]models.Scholarship, error)
}

// SnapshotStore is the slice of the session store the match path uses.
type SnapshotStore interface {
	Get(ctx context.Context, userID string) (*models.SessionSnapshot, error)
	Save(ctx context.Context, snapshot *models.SessionSnapshot) error
}

// Service is the full match-scoring operation behind POST /api/matches:
// load, memoize against the session, score what is new, persist the
// snapshot. Scores for already-seen cards come from the snapshot so they
// never change within a session.
type Service struct {
	catalog      CatalogSource
	orchestrator *Orchestrator
	sessions     SnapshotStore
	logger       logger.Logger
}

func NewService(catalog CatalogSource, orchestrator *Orchestrator, sessions SnapshotStore, log logger.Logger) *Service {
	return &Service{
		catalog:      catalog,
		orchestrator: orchestrator,
		sessions:     sessions,
		logger:       log.WithFields(map[string]interface{}{"component": "match-service"}),
	}
}

// Score returns one result per active scholarship in scholarshipIDs.
func (s *Service) Score(ctx context.Context, userID string, scholarshipIDs []string) ([]models.MatchResult, error) {
	if userID == "" {
		return nil, errors.NewInvalidRequestError("userId is required")
	}
	if len(scholarshipIDs) == 0 {
		return nil, errors.NewInvalidRequestError("scholarshipIds must not be empty")
	}

	profile, err := s.catalog.GetProfile(ctx, userID)
	if err != nil {
		metrics.MatchBatchesTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	scholarships, err := s.catalog.GetScholarships(ctx, scholarshipIDs)
	if err != nil {
		metrics.MatchBatchesTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	// Session memoization is best effort; a broken session store must not
	// block scoring.
	snapshot, err := s.sessions.Get(ctx, userID)
	if err != nil {
		s.logger.Warn("session read failed, scoring without memoization", map[string]interface{}{
			"userId": userID,
			"error":  err.Error(),
		})
		snapshot = nil
	}

	byID := make(map[string]models.MatchResult, len(scholarships))
	var toScore []models.Scholarship
	for _, sch := range scholarships {
		if snapshot != nil {
			if cached, ok := session.Cached(snapshot, sch.ID); ok {
				byID[sch.ID] = cached
				continue
			}
		}
		toScore = append(toScore, sch)
	}

	if len(toScore) > 0 {
		scored := s.orchestrator.ScoreBatch(ctx, profile, toScore)
		for _, r := range scored {
			byID[r.ScholarshipID] = r
		}

		if snapshot != nil {
			session.Remember(snapshot, scored)
			if err := s.sessions.Save(ctx, snapshot); err != nil {
				s.logger.Warn("session save failed", map[string]interface{}{
					"userId": userID,
					"error":  err.Error(),
				})
			}
		}
	}

	results := make([]models.MatchResult, 0, len(scholarships))
	for _, sch := range scholarships {
		results = append(results, byID[sch.ID])
	}

	metrics.MatchBatchesTotal.WithLabelValues("ok").Inc()
	return results, nil
}
