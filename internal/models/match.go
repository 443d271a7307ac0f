package models

// ResultSource tells the caller whether a probability came from the real
// estimator or from the local fallback path.
type ResultSource string

const (
	SourceModel    ResultSource = "model"
	SourceFallback ResultSource = "fallback"
)

// MatchResult is the derived, ephemeral scoring entity for one
// (student, scholarship) pair. Not persisted as source of truth; callers
// may cache it per session to keep a swipe position stable.
type MatchResult struct {
	ScholarshipID  string       `json:"scholarship_id"`
	WinProbability float64      `json:"win_probability"`
	MatchReasons   []string     `json:"match_reasons"`
	Source         ResultSource `json:"source"`
	Tags           []string     `json:"tags"`
}
