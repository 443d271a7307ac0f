package models

import "time"

// Scholarship is a listing record. Immutable from the scoring subsystem's
// perspective; owned by the external ingestion process.
type Scholarship struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Organization string    `json:"organization,omitempty"`
	Amount       float64   `json:"amount"`
	Deadline     time.Time `json:"deadline"`
	Description  string    `json:"description,omitempty"`
	Requirements []string  `json:"requirements"`
	Categories   []string  `json:"categories"`
	IsActive     bool      `json:"isActive"`
}

// DaysToDeadline is the whole number of days until the deadline measured
// from now, negative for past deadlines.
func (s *Scholarship) DaysToDeadline(now time.Time) int {
	return int(s.Deadline.Sub(now).Hours() / 24)
}
