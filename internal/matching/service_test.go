package matching

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scholarswipe/internal/common/errors"
	"scholarswipe/internal/common/logger"
	"scholarswipe/internal/models"
)

type stubCatalog struct {
	profile      *models.StudentProfile
	profileErr   error
	scholarships []models.Scholarship
	listErr      error
}

func (s *stubCatalog) GetProfile(_ context.Context, userID string) (*models.StudentProfile, error) {
	return s.profile, s.profileErr
}

func (s *stubCatalog) GetScholarships(_ context.Context, ids []string) ([]models.Scholarship, error) {
	return s.scholarships, s.listErr
}

type stubSnapshots struct {
	snapshot *models.SessionSnapshot
	getErr   error
	saved    int
}

func (s *stubSnapshots) Get(_ context.Context, userID string) (*models.SessionSnapshot, error) {
	return s.snapshot, s.getErr
}

func (s *stubSnapshots) Save(_ context.Context, snapshot *models.SessionSnapshot) error {
	s.saved++
	return nil
}

func newMatchService(t *testing.T, catalog *stubCatalog, snapshots *stubSnapshots) *Service {
	t.Helper()
	log := logger.NewTestLogger(t)
	orchestrator := NewOrchestrator(NewCascadeEstimator(log), &stubReasoner{reasons: []string{"Solid fit"}}, time.Second, log)
	return NewService(catalog, orchestrator, snapshots, log)
}

func TestScore_ScoresAndPersistsSnapshot(t *testing.T) {
	catalog := &stubCatalog{
		profile: &models.StudentProfile{ID: "user-1", GPA: fptr(3.8)},
		scholarships: []models.Scholarship{
			testScholarship("Award A", 5000, 45),
			testScholarship("Award B", 2500, 90),
		},
	}
	snapshots := &stubSnapshots{snapshot: &models.SessionSnapshot{UserID: "user-1"}}
	s := newMatchService(t, catalog, snapshots)

	results, err := s.Score(context.Background(), "user-1", []string{"sch-Award A", "sch-Award B"})

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "sch-Award A", results[0].ScholarshipID)
	assert.Equal(t, "sch-Award B", results[1].ScholarshipID)
	assert.Equal(t, 1, snapshots.saved)
	assert.Len(t, snapshots.snapshot.Results, 2)
}

func TestScore_CachedCardsKeepTheirScore(t *testing.T) {
	sch := testScholarship("Award A", 5000, 45)
	catalog := &stubCatalog{
		profile:      &models.StudentProfile{ID: "user-1"},
		scholarships: []models.Scholarship{sch},
	}
	snapshots := &stubSnapshots{snapshot: &models.SessionSnapshot{
		UserID: "user-1",
		Results: map[string]models.MatchResult{
			sch.ID: {ScholarshipID: sch.ID, WinProbability: 0.42, Source: models.SourceModel},
		},
	}}
	s := newMatchService(t, catalog, snapshots)

	results, err := s.Score(context.Background(), "user-1", []string{sch.ID})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 0.42, results[0].WinProbability)
	assert.Equal(t, 0, snapshots.saved, "nothing new scored, nothing saved")
}

func TestScore_SessionFailureDoesNotBlockScoring(t *testing.T) {
	catalog := &stubCatalog{
		profile:      &models.StudentProfile{ID: "user-1"},
		scholarships: []models.Scholarship{testScholarship("Award A", 5000, 45)},
	}
	snapshots := &stubSnapshots{getErr: errors.NewQueryExecutionFailedError("session-get", context.DeadlineExceeded)}
	s := newMatchService(t, catalog, snapshots)

	results, err := s.Score(context.Background(), "user-1", []string{"sch-Award A"})

	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestScore_ValidationAndLoaderErrors(t *testing.T) {
	catalog := &stubCatalog{profileErr: errors.NewProfileNotFoundError("ghost")}
	s := newMatchService(t, catalog, &stubSnapshots{})

	_, err := s.Score(context.Background(), "", []string{"sch-1"})
	assert.Error(t, err)

	_, err = s.Score(context.Background(), "user-1", nil)
	assert.Error(t, err)

	_, err = s.Score(context.Background(), "ghost", []string{"sch-1"})
	var stdErr *errors.StandardError
	assert.ErrorAs(t, err, &stdErr)
	assert.Equal(t, errors.ErrCodeProfileNotFound, stdErr.Code)
}
