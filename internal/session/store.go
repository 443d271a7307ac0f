// Package session persists swipe-session snapshots in Redis and exposes
// the restore state machine the frontend drives. A snapshot is the single
// source of truth for one user's deck: what was shown, what was swiped,
// and the cached score for every card already rendered.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"scholarswipe/internal/common/errors"
	"scholarswipe/internal/common/logger"
	"scholarswipe/internal/common/metrics"
	"scholarswipe/internal/models"
)

const keyPrefix = "session:swipe:"

type Store struct {
	redis  *redis.Client
	ttl    time.Duration
	logger logger.Logger
	now    func() time.Time
}

func NewStore(rdb *redis.Client, ttl time.Duration, log logger.Logger) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{
		redis:  rdb,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "session-store"}),
		now:    time.Now,
	}
}

func sessionKey(userID string) string { return keyPrefix + userID }

// Get loads the snapshot for userID. A missing snapshot is not an error;
// it returns a fresh empty session so first-time users need no special
// casing in the handler.
func (s *Store) Get(ctx context.Context, userID string) (*models.SessionSnapshot, error) {
	val, err := s.redis.Get(ctx, sessionKey(userID)).Result()
	if err == redis.Nil {
		metrics.SessionSnapshotOps.WithLabelValues("get", "miss").Inc()
		return newSnapshot(userID), nil
	}
	if err != nil {
		metrics.SessionSnapshotOps.WithLabelValues("get", "error").Inc()
		return nil, errors.NewQueryExecutionFailedError("session-get", err)
	}

	var snapshot models.SessionSnapshot
	if err := json.Unmarshal([]byte(val), &snapshot); err != nil {
		// A corrupt snapshot is unrecoverable; start over rather than
		// wedging the user's deck.
		s.logger.Warn("corrupt session snapshot, resetting", map[string]interface{}{
			"userId": userID,
			"error":  err.Error(),
		})
		metrics.SessionSnapshotOps.WithLabelValues("get", "corrupt").Inc()
		return newSnapshot(userID), nil
	}

	metrics.SessionSnapshotOps.WithLabelValues("get", "hit").Inc()
	return &snapshot, nil
}

// Save writes the snapshot back with the configured TTL.
func (s *Store) Save(ctx context.Context, snapshot *models.SessionSnapshot) error {
	snapshot.UpdatedAt = s.now()

	data, err := json.Marshal(snapshot)
	if err != nil {
		return errors.NewQueryExecutionFailedError("session-save", err)
	}

	if err := s.redis.Set(ctx, sessionKey(snapshot.UserID), data, s.ttl).Err(); err != nil {
		metrics.SessionSnapshotOps.WithLabelValues("save", "error").Inc()
		return errors.NewQueryExecutionFailedError("session-save", err)
	}

	metrics.SessionSnapshotOps.WithLabelValues("save", "ok").Inc()
	return nil
}

// Delete resets the session. Deleting an absent session is a no-op.
func (s *Store) Delete(ctx context.Context, userID string) error {
	if err := s.redis.Del(ctx, sessionKey(userID)).Err(); err != nil {
		metrics.SessionSnapshotOps.WithLabelValues("delete", "error").Inc()
		return errors.NewQueryExecutionFailedError("session-delete", err)
	}
	metrics.SessionSnapshotOps.WithLabelValues("delete", "ok").Inc()
	return nil
}

// Remember merges freshly scored results into the snapshot cache. Already
// cached ids keep their original result so a card never changes its score
// across re-renders within a session.
func Remember(snapshot *models.SessionSnapshot, results []models.MatchResult) {
	if snapshot.Results == nil {
		snapshot.Results = make(map[string]models.MatchResult, len(results))
	}
	for _, r := range results {
		if _, exists := snapshot.Results[r.ScholarshipID]; exists {
			continue
		}
		snapshot.Results[r.ScholarshipID] = r
	}
}

// Cached returns the memoized result for a scholarship, if any.
func Cached(snapshot *models.SessionSnapshot, scholarshipID string) (models.MatchResult, bool) {
	r, ok := snapshot.Results[scholarshipID]
	return r, ok
}

// RecordSwipe applies one swipe to the snapshot: appends to history,
// marks the card swiped, tracks likes/saves, and advances the index.
func RecordSwipe(snapshot *models.SessionSnapshot, scholarshipID string, action models.SwipeAction) error {
	if !models.ValidSwipeAction(string(action)) {
		return errors.NewInvalidRequestError(fmt.Sprintf("unknown swipe action %q", action))
	}

	snapshot.History = append(snapshot.History, scholarshipID)
	if !containsID(snapshot.SwipedIDs, scholarshipID) {
		snapshot.SwipedIDs = append(snapshot.SwipedIDs, scholarshipID)
	}
	if action == models.ActionLiked || action == models.ActionSaved {
		if !containsID(snapshot.LikedIDs, scholarshipID) {
			snapshot.LikedIDs = append(snapshot.LikedIDs, scholarshipID)
		}
	}
	snapshot.CurrentIndex++

	return nil
}

func newSnapshot(userID string) *models.SessionSnapshot {
	return &models.SessionSnapshot{
		UserID:    userID,
		Status:    models.SessionFresh,
		History:   []string{},
		LikedIDs:  []string{},
		SwipedIDs: []string{},
		Results:   map[string]models.MatchResult{},
	}
}

func containsID(ids []string, id string) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}
