package session

import (
	"fmt"

	"scholarswipe/internal/common/errors"
	"scholarswipe/internal/models"
)

// legalTransitions encodes the restore state machine. Restore happens at
// most once per session lifetime; a restored session can only go back to
// fresh by being deleted.
var legalTransitions = map[models.SessionStatus][]models.SessionStatus{
	models.SessionFresh:     {models.SessionRestoring},
	models.SessionRestoring: {models.SessionRestored, models.SessionFresh},
	models.SessionRestored:  {},
}

// Transition moves the snapshot to the target status, rejecting moves the
// state machine does not allow. restoring -> fresh covers a failed restore.
func Transition(snapshot *models.SessionSnapshot, target models.SessionStatus) error {
	for _, allowed := range legalTransitions[snapshot.Status] {
		if allowed == target {
			snapshot.Status = target
			return nil
		}
	}
	return errors.NewInvalidRequestError(
		fmt.Sprintf("illegal session transition %s -> %s", snapshot.Status, target))
}
