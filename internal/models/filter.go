package models

import "time"

// Word types for filter rules. The type decides which message field a rule is
// matched against; see FilterRule.SelectField.
const (
	WordTypeGeneral        = "GENERAL"
	WordTypeSender         = "SENDER"
	WordTypeContentPattern = "CONTENT_PATTERN"
)

// Filter rule kinds.
const (
	FilterTypeWhitelist = "WHITELIST"
	FilterTypeException = "EXCEPTION"
)

// ScopeAll marks an exception rule that applies to every detection type.
const ScopeAll = "ALL"

// FilterRule represents a curated allow/deny word rule stored in the
// 'filter_rules' table. Whitelist rules carry an empty scope; exception rules
// carry ScopeAll or a specific detection type.
type FilterRule struct {
	ID            int64     `db:"id" json:"id"`
	FilterType    string    `db:"filter_type" json:"filter_type"`
	Word          string    `db:"word" json:"word"`
	WordType      string    `db:"word_type" json:"word_type"`
	IsRegex       bool      `db:"is_regex" json:"is_regex"`
	CaseSensitive bool      `db:"case_sensitive" json:"case_sensitive"`
	Priority      int       `db:"priority" json:"priority"`
	Scope         string    `db:"scope" json:"scope"`
	Active        bool      `db:"active" json:"active"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// SelectField picks the message field this rule is matched against. SENDER
// rules look at the sender hash; everything else looks at the content.
func (r *FilterRule) SelectField(content, senderHash string) string {
	if r.WordType == WordTypeSender {
		return senderHash
	}
	return content
}

// AppliesTo reports whether an exception rule covers the given detection type.
func (r *FilterRule) AppliesTo(detectionType string) bool {
	return r.Scope == ScopeAll || r.Scope == detectionType
}

// FilterApplication is an immutable audit record of a single rule match,
// stored in the 'filter_applications' table. Created once, never updated.
type FilterApplication struct {
	ID              int64     `db:"id" json:"id"`
	MessageID       string    `db:"message_id" json:"message_id"`
	FilterType      string    `db:"filter_type" json:"filter_type"`
	MatchedRuleID   int64     `db:"matched_rule_id" json:"matched_rule_id"`
	MatchedWord     string    `db:"matched_word" json:"matched_word"`
	OriginalType    string    `db:"original_type" json:"original_type"`
	FinalType       string    `db:"final_type" json:"final_type"`
	ConfidenceDelta float64   `db:"confidence_delta" json:"confidence_delta"`
	AppliedAt       time.Time `db:"applied_at" json:"applied_at"`
}

// FilterResult is the outcome of running a verdict through the filter
// adjustment engine.
type FilterResult struct {
	OriginalType    string              `json:"original_type"`
	FinalType       string              `json:"final_type"`
	ConfidenceDelta float64             `json:"confidence_delta"`
	AppliedRules    []FilterApplication `json:"applied_rules"`
}

// Adjusted reports whether any rule rewrote the verdict.
func (r *FilterResult) Adjusted() bool {
	return len(r.AppliedRules) > 0
}
