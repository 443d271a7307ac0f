package matching

import "strings"

const (
	maxReasons      = 3
	maxReasonLength = 50

	genericReason = "This scholarship matches your profile"
)

// fallbackReasons is the generic non-empty list substituted when the whole
// scoring path for an item failed.
func fallbackReasons() []string {
	return []string{
		"This scholarship matches your profile",
		"Good opportunity based on your background",
		"Worth applying to increase your chances",
	}
}

// validReason rejects empty, overlong, and visibly truncated strings.
// Reasons must be complete clauses; a trailing ellipsis or dangling
// conjunction means the generator cut itself off mid-thought.
func validReason(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || len(s) >= maxReasonLength {
		return false
	}

	if strings.HasSuffix(s, "...") || strings.HasSuffix(s, "…") {
		return false
	}

	if strings.HasSuffix(s, ",") || strings.HasSuffix(s, "-") || strings.HasSuffix(s, ":") {
		return false
	}

	lower := strings.ToLower(s)
	for _, dangling := range []string{" and", " with", " or", " the", " to", " of"} {
		if strings.HasSuffix(lower, dangling) {
			return false
		}
	}

	return true
}

// sanitizeReasons filters a generated list down to valid entries, capped
// at maxReasons. Returns false when nothing usable survived.
func sanitizeReasons(raw []string) ([]string, bool) {
	out := make([]string, 0, maxReasons)
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if !validReason(r) {
			continue
		}
		out = append(out, r)
		if len(out) == maxReasons {
			break
		}
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}
