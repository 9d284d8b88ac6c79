package models

import "time"

// Detection types produced by the classifier and carried through the pipeline.
const (
	DetectionSpam          = "SPAM"
	DetectionAbuse         = "ABUSE"
	DetectionAdvertisement = "ADVERTISEMENT"
	DetectionAnnouncement  = "ANNOUNCEMENT"
	DetectionNormal        = "NORMAL"
)

// Alert severities, ordered from most to least urgent.
const (
	SeverityCritical = "CRITICAL"
	SeverityHigh     = "HIGH"
	SeverityMedium   = "MEDIUM"
	SeverityLow      = "LOW"
)

// severityRanks maps a severity to its rank; higher rank = more urgent.
var severityRanks = map[string]int{
	SeverityCritical: 4,
	SeverityHigh:     3,
	SeverityMedium:   2,
	SeverityLow:      1,
}

// SeverityRank returns the numeric rank of a severity, 0 for unknown values.
func SeverityRank(severity string) int {
	return severityRanks[severity]
}

// DetectionVerdict is the classification outcome for a message at one point in
// the pipeline. Stages return a new verdict instead of mutating the input.
type DetectionVerdict struct {
	Detected      bool      `json:"detected"`
	Confidence    float64   `json:"confidence"`
	Reason        string    `json:"reason"`
	DetectionType string    `json:"detection_type"`
	Timestamp     time.Time `json:"timestamp"`
}
