package models

import "time"

// AnnouncementPattern is a weighted regex used to score announcement
// likelihood, stored in the 'announcement_patterns' table. A negative weight
// is an exclusion signal that pushes the score down.
type AnnouncementPattern struct {
	ID               int64     `db:"id" json:"id"`
	Regex            string    `db:"regex" json:"regex"`
	ConfidenceWeight float64   `db:"confidence_weight" json:"confidence_weight"`
	Category         string    `db:"category" json:"category"`
	Priority         int       `db:"priority" json:"priority"`
	Active           bool      `db:"active" json:"active"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// ScoreResult is the outcome of scoring a message against the pattern library.
type ScoreResult struct {
	Detected        bool     `json:"detected"`
	Confidence      float64  `json:"confidence"`
	MatchedPatterns []string `json:"matched_patterns"`
	TimeFactor      float64  `json:"time_factor"`
}
