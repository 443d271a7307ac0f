package matching

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"regexp"
	"strconv"
	"strings"

	"scholarswipe/internal/common/logger"
	"scholarswipe/internal/models"
)

// CascadeEstimator is the deterministic rule-cascade strategy. Rules are
// evaluated in strict priority order: demographic targeting, hard
// requirements, base probability, bonuses, competitiveness. The same
// evaluation drives reason generation, so scores and reasons always agree.
type CascadeEstimator struct {
	logger logger.Logger
}

func NewCascadeEstimator(log logger.Logger) *CascadeEstimator {
	return &CascadeEstimator{
		logger: log.WithFields(map[string]interface{}{"strategy": StrategyCascade}),
	}
}

func (e *CascadeEstimator) Name() string { return StrategyCascade }

func (e *CascadeEstimator) Estimate(_ context.Context, profile *models.StudentProfile, scholarship *models.Scholarship) (float64, error) {
	ev := evaluate(profile, scholarship)

	e.logger.Debug("cascade evaluated", map[string]interface{}{
		"scholarshipId": scholarship.ID,
		"probability":   ev.probability,
		"branches":      len(ev.reasons),
	})

	return ev.probability, nil
}

// Reasons synthesizes justification strings from the rule branches that
// fired during evaluation. Always returns 1-3 strings.
func (e *CascadeEstimator) Reasons(_ context.Context, profile *models.StudentProfile, scholarship *models.Scholarship, _ float64) ([]string, error) {
	ev := evaluate(profile, scholarship)

	reasons := make([]string, 0, maxReasons)
	for _, r := range ev.reasons {
		if !validReason(r) {
			continue
		}
		reasons = append(reasons, r)
		if len(reasons) == maxReasons {
			break
		}
	}

	if len(reasons) == 0 {
		reasons = append(reasons, genericReason)
	}

	return reasons, nil
}

// ==========================
// Rule Cascade Evaluation
// ==========================

type evaluation struct {
	probability float64
	reasons     []string
}

// evaluate runs the full cascade for one pair. Pure: identical inputs
// always produce identical output, which is what makes caller-side
// session caching safe.
func evaluate(profile *models.StudentProfile, scholarship *models.Scholarship) *evaluation {
	ev := &evaluation{}
	text := listingText(scholarship)

	// Step 1: demographic targeting dominates everything below it.
	targeted, matched, label := demographicCheck(profile, text)

	// Step 2: hard requirements.
	hardCap, hardReason := hardRequirementCheck(profile, scholarship)

	// Step 3: base probability.
	base, baseReason := baseProbability(profile, scholarship)

	// Step 4: additive bonuses, applied independently and uncapped until
	// the final clamp.
	bonus, bonusReasons := bonuses(profile, scholarship, text)

	// Step 5: competitiveness adjustment.
	adj, adjReason := competitiveness(scholarship)

	score := base + bonus + adj

	if hardCap > 0 && score > hardCap {
		score = hardCap
	}

	floorCents, capCents := 5, 95
	switch {
	case targeted && matched:
		if score < demographicFloor {
			score = demographicFloor
		}
		floorCents = int(demographicFloor * 100)
		ev.reasons = append(ev.reasons, "Matches demographic target criteria")
	case targeted && !matched:
		if score > demographicCap {
			score = demographicCap
		}
		capCents = int(demographicCap * 100)
		ev.reasons = append(ev.reasons, fmt.Sprintf("Award targets %s applicants", label))
	}

	if hardReason != "" {
		if hardCapCents := int(hardCap * 100); hardCapCents < capCents && !(targeted && matched) {
			capCents = hardCapCents
		}
		ev.reasons = append(ev.reasons, hardReason)
	}

	if baseReason != "" {
		ev.reasons = append(ev.reasons, baseReason)
	}
	ev.reasons = append(ev.reasons, bonusReasons...)
	if adjReason != "" {
		ev.reasons = append(ev.reasons, adjReason)
	}

	score = clampProbability(score)
	ev.probability = finalize(score, profile.ID, scholarship.ID, floorCents, capCents)

	return ev
}

const (
	demographicFloor = 0.70
	demographicCap   = 0.25
)

// ==========================
// Step 1: Demographic Targeting
// ==========================

type demographicTarget struct {
	label    string
	keywords []string
	matches  func(*models.StudentProfile) bool
}

var demographicTargets = []demographicTarget{
	{
		label:    "female",
		keywords: []string{"women in", "women's", "for women", "female students", "woman"},
		matches: func(p *models.StudentProfile) bool {
			return strings.EqualFold(p.Gender, "female")
		},
	},
	{
		label:    "hispanic or latino",
		keywords: []string{"hispanic", "latino", "latina", "latinx"},
		matches: func(p *models.StudentProfile) bool {
			return containsFold(p.Ethnicity, "hispanic") || containsFold(p.Ethnicity, "latin")
		},
	},
	{
		label:    "black or african american",
		keywords: []string{"african american", "black students", "black college"},
		matches: func(p *models.StudentProfile) bool {
			return containsFold(p.Ethnicity, "black") || containsFold(p.Ethnicity, "african")
		},
	},
	{
		label:    "native american",
		keywords: []string{"native american", "american indian", "indigenous", "tribal"},
		matches: func(p *models.StudentProfile) bool {
			return containsFold(p.Ethnicity, "native") || containsFold(p.Ethnicity, "indigenous")
		},
	},
	{
		label:    "asian american",
		keywords: []string{"asian american", "asian pacific", "aapi"},
		matches: func(p *models.StudentProfile) bool {
			return containsFold(p.Ethnicity, "asian") || containsFold(p.Ethnicity, "pacific")
		},
	},
	{
		label:    "lgbtq",
		keywords: []string{"lgbtq", "lgbt", "pride scholarship"},
		matches: func(p *models.StudentProfile) bool {
			return containsFold(p.Gender, "non-binary") || containsFold(p.Gender, "nonbinary")
		},
	},
}

// demographicCheck reports whether the listing text explicitly targets a
// demographic group and whether the profile belongs to it. The first
// targeted group found wins.
func demographicCheck(profile *models.StudentProfile, text string) (targeted, matched bool, label string) {
	for _, target := range demographicTargets {
		for _, kw := range target.keywords {
			if strings.Contains(text, kw) {
				return true, target.matches(profile), target.label
			}
		}
	}
	return false, false, ""
}

// ==========================
// Step 2: Hard Requirements
// ==========================

var gpaPattern = regexp.MustCompile(`(\d\.\d{1,2})`)

// hardRequirementCheck returns the lowest applicable cap (0 when nothing
// failed) and a reason describing the first failed requirement.
func hardRequirementCheck(profile *models.StudentProfile, scholarship *models.Scholarship) (float64, string) {
	ceiling := 0.0
	reason := ""

	apply := func(c float64, r string) {
		if ceiling == 0 || c < ceiling {
			ceiling = c
		}
		if reason == "" {
			reason = r
		}
	}

	for _, req := range scholarship.Requirements {
		lower := strings.ToLower(req)

		// GPA floor
		if strings.Contains(lower, "gpa") {
			if floor, ok := gpaFloor(lower); ok && profile.HasGPA() && *profile.GPA < floor {
				apply(0.30, fmt.Sprintf("GPA %.1f below %.1f minimum", *profile.GPA, floor))
			}
		}

		// Education level restriction
		if level := requiredEducationLevel(lower); level != "" && profile.EducationLevel != "" {
			if !containsFold(profile.EducationLevel, level) {
				apply(0.20, fmt.Sprintf("Limited to %s students", level))
			}
		}

		// Citizenship restriction
		if strings.Contains(lower, "citizen") && profile.Citizenship != "" {
			if !containsFold(profile.Citizenship, "citizen") && !containsFold(profile.Citizenship, "us") {
				apply(0.25, "Citizenship requirement not met")
			}
		}

		// State residency restriction
		if strings.Contains(lower, "resident") && profile.LocationState != "" {
			if !containsFold(req, profile.LocationState) {
				apply(0.30, "Residency requirement not met")
			}
		}

		// Major restriction
		if strings.Contains(lower, "major") && profile.IntendedMajor != "" {
			if !containsFold(req, profile.IntendedMajor) {
				apply(0.35, "Major restriction may not apply")
			}
		}
	}

	return ceiling, reason
}

func gpaFloor(req string) (float64, bool) {
	m := gpaPattern.FindString(req)
	if m == "" {
		return 0, false
	}
	floor, err := strconv.ParseFloat(m, 64)
	if err != nil || floor <= 0 || floor > 4 {
		return 0, false
	}
	return floor, true
}

// requiredEducationLevel extracts a level keyword from a requirement.
// "undergraduate" is checked before "graduate" since one contains the other.
func requiredEducationLevel(req string) string {
	switch {
	case strings.Contains(req, "high school"):
		return "high school"
	case strings.Contains(req, "undergraduate"):
		return "undergraduate"
	case strings.Contains(req, "graduate"):
		return "graduate"
	}
	return ""
}

// ==========================
// Step 3: Base Probability
// ==========================

// baseProbability starts at 0.55 when requirements are met, stepping up to
// 0.65 / 0.75 as the profile exceeds stated thresholds.
func baseProbability(profile *models.StudentProfile, scholarship *models.Scholarship) (float64, string) {
	signals := 0

	floor := 0.0
	for _, req := range scholarship.Requirements {
		if f, ok := gpaFloor(strings.ToLower(req)); ok {
			floor = f
			break
		}
	}

	gpaReason := ""
	if profile.HasGPA() {
		switch {
		case floor > 0 && *profile.GPA >= floor+0.3:
			signals++
			gpaReason = fmt.Sprintf("GPA %.1f exceeds %.1f minimum", *profile.GPA, floor)
		case floor == 0 && *profile.GPA >= 3.5:
			signals++
		}
	}

	if (profile.SATScore != nil && *profile.SATScore >= 1200) ||
		(profile.ACTScore != nil && *profile.ACTScore >= 26) {
		signals++
	}

	if len(profile.HonorsAwards) > 0 {
		signals++
	}

	base := 0.55
	switch {
	case signals >= 2:
		base = 0.75
	case signals == 1:
		base = 0.65
	}

	return base, gpaReason
}

// ==========================
// Step 4: Bonuses
// ==========================

// bonuses are additive and independently applied; the sum is not capped
// before the final clamp.
func bonuses(profile *models.StudentProfile, scholarship *models.Scholarship, text string) (float64, []string) {
	total := 0.0
	var reasons []string

	add := func(b float64, r string) {
		total += b
		if r != "" {
			reasons = append(reasons, r)
		}
	}

	if profile.FirstGeneration && (strings.Contains(text, "first generation") || strings.Contains(text, "first-gen")) {
		add(0.15, "First-generation student advantage")
	}

	if profile.Military && (strings.Contains(text, "military") || strings.Contains(text, "veteran")) {
		add(0.15, "Military background matches focus")
	}

	if isMinority(profile) && (strings.Contains(text, "minority") || strings.Contains(text, "underrepresented") || strings.Contains(text, "diversity")) {
		add(0.10, "Diversity focus fits your background")
	}

	if profile.IntendedMajor != "" && strings.Contains(text, strings.ToLower(profile.IntendedMajor)) {
		add(0.15, fmt.Sprintf("%s aligns with this award", profile.IntendedMajor))
	}

	if profile.HasGPA() && *profile.GPA >= 3.8 {
		add(0.10, fmt.Sprintf("Strong %.1f GPA strengthens your case", *profile.GPA))
	}

	for _, activity := range profile.Extracurriculars {
		if activity != "" && strings.Contains(text, strings.ToLower(activity)) {
			add(0.10, "Activities align with award focus")
			break
		}
	}

	if profile.LocationState != "" && strings.Contains(text, strings.ToLower(profile.LocationState)) {
		add(0.10, fmt.Sprintf("%s residency matches this award", profile.LocationState))
	}

	return total, reasons
}

func isMinority(profile *models.StudentProfile) bool {
	if profile.Ethnicity == "" {
		return false
	}
	return !containsFold(profile.Ethnicity, "white") && !containsFold(profile.Ethnicity, "caucasian")
}

// ==========================
// Step 5: Competitiveness
// ==========================

func competitiveness(scholarship *models.Scholarship) (float64, string) {
	adj := 0.0
	reason := ""

	switch {
	case scholarship.Amount > 0 && scholarship.Amount < 2000:
		adj += 0.05
		reason = "Smaller award pool, better odds"
	case scholarship.Amount >= 15000:
		adj -= 0.10
		reason = "Large national award, high competition"
	}

	switch {
	case len(scholarship.Requirements) == 0:
		adj -= 0.05
	case len(scholarship.Requirements) >= 3:
		adj += 0.05
	}

	return adj, reason
}

// ==========================
// Step 6: Finalize
// ==========================

// Round values that make a batch of scores look fabricated when several
// items land on them.
var forbiddenCents = map[int]bool{50: true, 65: true, 70: true, 75: true, 80: true}

// finalize rounds to two decimals and, when the value lands on a forbidden
// round number, perturbs it deterministically using a hash of the stable
// ids so results stay reproducible. floorCents/capCents preserve the
// dominance invariants (demographic floor, hard caps) through perturbation.
func finalize(score float64, profileID, scholarshipID string, floorCents, capCents int) float64 {
	cents := int(math.Round(score * 100))

	if cents < floorCents {
		cents = floorCents
	}
	if cents > capCents {
		cents = capCents
	}

	if forbiddenCents[cents] {
		h := pairHash(profileID, scholarshipID)
		delta := 1 + int(h%5) // 0.01 .. 0.05
		if h&1 == 1 {
			delta = -delta
		}

		candidate := cents + delta
		if candidate < floorCents || candidate > capCents {
			candidate = cents - delta
		}
		cents = candidate

		for forbiddenCents[cents] {
			if cents-1 >= floorCents {
				cents--
			} else {
				cents++
			}
		}
		if cents < floorCents {
			cents = floorCents
		}
		if cents > capCents {
			cents = capCents
		}
	}

	return float64(cents) / 100
}

func pairHash(profileID, scholarshipID string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(profileID))
	h.Write([]byte(":"))
	h.Write([]byte(scholarshipID))
	return h.Sum32()
}

// ==========================
// Helpers
// ==========================

func listingText(scholarship *models.Scholarship) string {
	parts := []string{scholarship.Title, scholarship.Description}
	parts = append(parts, scholarship.Requirements...)
	parts = append(parts, scholarship.Categories...)
	return strings.ToLower(strings.Join(parts, " "))
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
