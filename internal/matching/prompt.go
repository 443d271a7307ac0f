package matching

import (
	"encoding/json"
	"fmt"
	"strings"

	"scholarswipe/internal/models"
)

const scoreSystemPrompt = "You are a realistic scholarship advisor who provides balanced, honest assessments. " +
	"Always respond with a single JSON object and nothing else."

const reasonSystemPrompt = "You are a scholarship advisor who crafts specific, personalized match reasons. " +
	"Always respond with a JSON array of exactly 3 short strings."

// buildScorePrompt encodes the same priority rules the cascade applies, so
// the two strategies agree on what matters even when their numbers differ.
func buildScorePrompt(profile *models.StudentProfile, scholarship *models.Scholarship) string {
	var parts []string

	parts = append(parts, "Estimate this student's probability of winning this scholarship.")
	parts = append(parts, "\nSTUDENT PROFILE:")
	parts = append(parts, marshalForPrompt(profile))
	parts = append(parts, "\nSCHOLARSHIP:")
	parts = append(parts, marshalForPrompt(scholarship))

	parts = append(parts, "\nSCORING RULES, in priority order:")
	parts = append(parts, "1. If the listing explicitly targets a demographic the student belongs to, the probability is at least 0.70; if it targets one they do not belong to, at most 0.25.")
	parts = append(parts, "2. If the student fails a stated hard requirement (GPA minimum, major, citizenship, residency, education level), cap between 0.20 and 0.35.")
	parts = append(parts, "3. Otherwise start at 0.55, rising to 0.65-0.75 when the student clearly exceeds the stated thresholds.")
	parts = append(parts, "4. Add 0.10-0.20 for each of: first-generation or military alignment with the award focus, major alignment, GPA of 3.8 or higher, matching extracurriculars, location match.")
	parts = append(parts, "5. Adjust for competitiveness: +0.05 for awards under $2,000, -0.10 for awards of $15,000 or more.")

	parts = append(parts, "\nIMPORTANT:")
	parts = append(parts, "- The final value must lie between 0.05 and 0.95")
	parts = append(parts, "- Use varied decimals; avoid clustering on round values like 0.50 or 0.75")

	parts = append(parts, "\nRespond in JSON format:")
	parts = append(parts, `{"win_probability": 0.62}`)

	return strings.Join(parts, "\n")
}

func buildReasonPrompt(profile *models.StudentProfile, scholarship *models.Scholarship, probability float64) string {
	var parts []string

	// The orchestrator launches estimation and reason generation
	// concurrently, so the probability may not be known yet.
	if probability > 0 {
		parts = append(parts, fmt.Sprintf("The student's estimated win probability for this scholarship is %.2f.", probability))
	}
	parts = append(parts, "Generate exactly 3 short reasons explaining the match.")
	parts = append(parts, "\nSTUDENT PROFILE:")
	parts = append(parts, marshalForPrompt(profile))
	parts = append(parts, "\nSCHOLARSHIP:")
	parts = append(parts, marshalForPrompt(scholarship))

	parts = append(parts, "\nRULES:")
	parts = append(parts, "- Each reason must be a complete clause under 50 characters")
	parts = append(parts, "- Reference concrete profile or listing attributes (numbers, named fields)")
	parts = append(parts, "- No ellipses, no incomplete thoughts, no generic filler")

	parts = append(parts, "\nGOOD EXAMPLES:")
	parts = append(parts, `- "GPA 3.9 exceeds 3.5 minimum"`)
	parts = append(parts, `- "First-generation student advantage"`)
	parts = append(parts, `- "Perfect major alignment"`)

	parts = append(parts, "\nRespond as a JSON array:")
	parts = append(parts, `["Reason 1", "Reason 2", "Reason 3"]`)

	return strings.Join(parts, "\n")
}

func marshalForPrompt(v interface{}) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}
