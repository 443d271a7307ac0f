package models

import "time"

// SwipeAction is what a student can do to a card.
type SwipeAction string

const (
	ActionSaved  SwipeAction = "saved"
	ActionPassed SwipeAction = "passed"
	ActionLiked  SwipeAction = "liked"
)

// ValidSwipeAction reports whether s is one of the accepted actions.
func ValidSwipeAction(s string) bool {
	switch SwipeAction(s) {
	case ActionSaved, ActionPassed, ActionLiked:
		return true
	}
	return false
}

// SessionStatus is the explicit restore state machine for a swipe session.
// Transitions: fresh -> restoring -> restored. A missing snapshot stays fresh.
type SessionStatus string

const (
	SessionFresh     SessionStatus = "fresh"
	SessionRestoring SessionStatus = "restoring"
	SessionRestored  SessionStatus = "restored"
)

// SessionSnapshot is the caller-owned persisted state of a swipe session.
// Cached MatchResults make revisiting a previously scored card deterministic.
type SessionSnapshot struct {
	UserID       string                 `json:"userId"`
	Status       SessionStatus          `json:"status"`
	History      []string               `json:"history"`
	LikedIDs     []string               `json:"likedIds"`
	SwipedIDs    []string               `json:"swipedIds"`
	CurrentIndex int                    `json:"currentIndex"`
	Results      map[string]MatchResult `json:"results"`
	UpdatedAt    time.Time              `json:"updatedAt"`
}

// Feedback is a user-submitted feedback or contact-form record.
type Feedback struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	Email     string    `json:"email,omitempty"`
	Subject   string    `json:"subject,omitempty"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}
