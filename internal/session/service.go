package session

import (
	"context"

	"scholarswipe/internal/models"
)

// Service exposes the session operations the HTTP surface needs on top of
// the raw snapshot store.
type Service struct {
	store *Store
}

func NewService(store *Store) *Service {
	return &Service{store: store}
}

// Restore replays the persisted snapshot for userID, driving the status
// machine to restored. A user with no snapshot gets a fresh one back
// unchanged.
func (s *Service) Restore(ctx context.Context, userID string) (*models.SessionSnapshot, error) {
	snapshot, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if snapshot.Status == models.SessionRestored {
		return snapshot, nil
	}

	if snapshot.Status == models.SessionFresh && len(snapshot.History) == 0 {
		// Nothing to replay; stay fresh so the client starts a new deck.
		return snapshot, nil
	}

	if snapshot.Status == models.SessionFresh {
		if err := Transition(snapshot, models.SessionRestoring); err != nil {
			return nil, err
		}
	}
	if err := Transition(snapshot, models.SessionRestored); err != nil {
		return nil, err
	}

	if err := s.store.Save(ctx, snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
}

// Swipe records one action and persists the snapshot.
func (s *Service) Swipe(ctx context.Context, userID, scholarshipID string, action models.SwipeAction) (*models.SessionSnapshot, error) {
	snapshot, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := RecordSwipe(snapshot, scholarshipID, action); err != nil {
		return nil, err
	}

	if err := s.store.Save(ctx, snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
}

// Reset discards the snapshot entirely.
func (s *Service) Reset(ctx context.Context, userID string) error {
	return s.store.Delete(ctx, userID)
}
