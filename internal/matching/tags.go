package matching

import (
	"time"

	"scholarswipe/internal/models"
)

const maxTags = 5

// DeriveTags computes display tags for a scored result: an amount tier, a
// match tier, an urgency tier, and up to two listing category tags, capped
// at five total. Pure function of its inputs.
func DeriveTags(result *models.MatchResult, scholarship *models.Scholarship, now time.Time) []string {
	tags := make([]string, 0, maxTags)

	switch {
	case scholarship.Amount >= 10000:
		tags = append(tags, "High Value")
	case scholarship.Amount >= 5000:
		tags = append(tags, "Medium Value")
	default:
		tags = append(tags, "Low Value")
	}

	switch {
	case result.WinProbability >= 0.7:
		tags = append(tags, "Strong Match")
	case result.WinProbability >= 0.5:
		tags = append(tags, "Good Match")
	case result.WinProbability >= 0.3:
		tags = append(tags, "Possible Match")
	default:
		tags = append(tags, "Long Shot")
	}

	days := scholarship.DaysToDeadline(now)
	switch {
	case days <= 30:
		tags = append(tags, "Urgent Deadline")
	case days <= 60:
		tags = append(tags, "Closing Soon")
	default:
		tags = append(tags, "Open Deadline")
	}

	for _, category := range scholarship.Categories {
		if category == "" {
			continue
		}
		tags = append(tags, category)
		if len(tags) >= maxTags {
			break
		}
	}

	return tags
}
