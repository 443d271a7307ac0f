package models

// StudentProfile is the student's self-reported record, created at signup
// and owned by the student. The scoring subsystem reads it, never writes it.
type StudentProfile struct {
	ID             string `json:"id"`
	EducationLevel string `json:"educationLevel"`
	GraduationYear int    `json:"graduationYear"`

	// GPA is nil when the student did not report one; when present it
	// lies in [0, 4].
	GPA      *float64 `json:"gpa,omitempty"`
	SATScore *int     `json:"satScore,omitempty"`
	ACTScore *int     `json:"actScore,omitempty"`

	IntendedMajor string `json:"intendedMajor"`

	Gender          string `json:"gender,omitempty"`
	Ethnicity       string `json:"ethnicity,omitempty"`
	Citizenship     string `json:"citizenship,omitempty"`
	IncomeRange     string `json:"incomeRange,omitempty"`
	LocationState   string `json:"locationState,omitempty"`
	FirstGeneration bool   `json:"firstGeneration"`
	Military        bool   `json:"military"`

	Extracurriculars []string `json:"extracurriculars"`
	HonorsAwards     []string `json:"honorsAwards"`
	SpecialTalents   []string `json:"specialTalents"`

	TargetScholarshipType []string `json:"targetScholarshipType"`
	AmountRange           string   `json:"scholarshipAmountRange,omitempty"`
}

// HasGPA reports whether a GPA was provided and is in the valid range.
func (p *StudentProfile) HasGPA() bool {
	return p.GPA != nil && *p.GPA >= 0 && *p.GPA <= 4
}
