// Package loader fetches student profiles and candidate scholarships for
// scoring. Profiles are cached in Redis; scholarships are read straight
// from Postgres since the batch is different on every request.
package loader

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"scholarswipe/internal/common/errors"
	"scholarswipe/internal/common/logger"
	"scholarswipe/internal/models"
)

type Loader struct {
	db       *sql.DB
	redis    *redis.Client
	cacheTTL time.Duration
	logger   logger.Logger
}

func New(db *sql.DB, rdb *redis.Client, cacheTTL time.Duration, log logger.Logger) *Loader {
	return &Loader{
		db:       db,
		redis:    rdb,
		cacheTTL: cacheTTL,
		logger:   log.WithFields(map[string]interface{}{"component": "loader"}),
	}
}

// GetProfile loads a student profile, trying the Redis cache first.
// Returns PROFILE_NOT_FOUND for an unknown user id.
func (l *Loader) GetProfile(ctx context.Context, userID string) (*models.StudentProfile, error) {
	cacheKey := "user:profile:" + userID
	if val, err := l.redis.Get(ctx, cacheKey).Result(); err == nil {
		var profile models.StudentProfile
		if err := json.Unmarshal([]byte(val), &profile); err == nil {
			return &profile, nil
		}
	}

	row := l.db.QueryRowContext(ctx, `
		SELECT id, education_level, graduation_year, gpa, sat_score, act_score,
		       intended_major, gender, ethnicity, citizenship, income_range,
		       location_state, first_generation, military,
		       extracurriculars, honors_awards, special_talents,
		       target_scholarship_type, scholarship_amount_range
		FROM user_profiles WHERE id = $1`, userID)

	var profile models.StudentProfile
	var (
		gpa                             sql.NullFloat64
		satScore, actScore              sql.NullInt64
		gender, ethnicity, citizenship  sql.NullString
		incomeRange, locationState      sql.NullString
		amountRange                     sql.NullString
		extracurriculars, honorsAwards  []byte
		specialTalents, targetTypes     []byte
	)

	err := row.Scan(
		&profile.ID, &profile.EducationLevel, &profile.GraduationYear,
		&gpa, &satScore, &actScore,
		&profile.IntendedMajor, &gender, &ethnicity, &citizenship,
		&incomeRange, &locationState,
		&profile.FirstGeneration, &profile.Military,
		&extracurriculars, &honorsAwards, &specialTalents,
		&targetTypes, &amountRange,
	)
	if err == sql.ErrNoRows {
		return nil, errors.NewProfileNotFoundError(userID)
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("get-profile", err)
	}

	if gpa.Valid {
		v := gpa.Float64
		profile.GPA = &v
	}
	if satScore.Valid {
		v := int(satScore.Int64)
		profile.SATScore = &v
	}
	if actScore.Valid {
		v := int(actScore.Int64)
		profile.ACTScore = &v
	}
	profile.Gender = gender.String
	profile.Ethnicity = ethnicity.String
	profile.Citizenship = citizenship.String
	profile.IncomeRange = incomeRange.String
	profile.LocationState = locationState.String
	profile.AmountRange = amountRange.String

	profile.Extracurriculars = unmarshalStringList(extracurriculars)
	profile.HonorsAwards = unmarshalStringList(honorsAwards)
	profile.SpecialTalents = unmarshalStringList(specialTalents)
	profile.TargetScholarshipType = unmarshalStringList(targetTypes)

	data, _ := json.Marshal(&profile)
	if err := l.redis.Set(ctx, cacheKey, data, l.cacheTTL).Err(); err != nil {
		l.logger.Warn("failed to cache profile", map[string]interface{}{
			"userId": userID,
			"error":  err.Error(),
		})
	}

	return &profile, nil
}

// GetScholarships loads the active listings for the given ids. Order
// follows the database; callers correlate by id, not position. Returns
// SCHOLARSHIPS_NOT_FOUND when none of the ids resolve.
func (l *Loader) GetScholarships(ctx context.Context, ids []string) ([]models.Scholarship, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, title, organization, amount, deadline, description,
		       requirements, categories, is_active
		FROM scholarships
		WHERE id = ANY($1) AND is_active = true`, pq.Array(ids))
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("get-scholarships", err)
	}
	defer rows.Close()

	var scholarships []models.Scholarship
	for rows.Next() {
		var s models.Scholarship
		var organization, description sql.NullString
		var requirements, categories []byte

		if err := rows.Scan(&s.ID, &s.Title, &organization, &s.Amount, &s.Deadline,
			&description, &requirements, &categories, &s.IsActive); err != nil {
			return nil, errors.NewQueryExecutionFailedError("get-scholarships", err)
		}

		s.Organization = organization.String
		s.Description = description.String
		s.Requirements = unmarshalStringList(requirements)
		s.Categories = unmarshalStringList(categories)

		scholarships = append(scholarships, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("get-scholarships", err)
	}

	if len(scholarships) == 0 {
		return nil, errors.NewScholarshipsNotFoundError("no active listings for requested ids")
	}

	return scholarships, nil
}

// InvalidateProfile drops the cached profile, e.g. after the owner edits it.
func (l *Loader) InvalidateProfile(ctx context.Context, userID string) error {
	return l.redis.Del(ctx, "user:profile:"+userID).Err()
}

func unmarshalStringList(raw []byte) []string {
	if len(raw) == 0 {
		return []string{}
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return []string{}
	}
	return out
}
