package scoring

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"chatwatch/internal/models"
	"chatwatch/internal/repository"
)

// ErrBudgetExceeded is returned when the pattern lookup does not finish inside
// the per-message time budget. The caller gets a timeout failure instead of a
// blocked pipeline.
var ErrBudgetExceeded = errors.New("scoring: pattern lookup exceeded time budget")

// Keyword bonus: each distinct matched pattern adds a little confidence, up to
// a fixed cap.
const (
	keywordBonusStep = 0.05
	keywordBonusCap  = 0.2
)

// Config carries the scorer's tuning knobs.
type Config struct {
	Threshold          float64
	LookupBudget       time.Duration
	BusinessHoursStart int
	BusinessHoursEnd   int
	AllowedSenders     []string
	AllowedChatRooms   []string
	AllowedKeywords    []string
	OfficialKeywords   []string
}

// Scorer scores message text against the weighted, prioritized announcement
// pattern library. Stateless between calls; the pattern set is fetched fresh
// per message.
type Scorer struct {
	rules  repository.RuleRepository
	cfg    Config
	logger *zap.Logger
}

func NewScorer(rules repository.RuleRepository, cfg Config, logger *zap.Logger) *Scorer {
	if cfg.Threshold == 0 {
		cfg.Threshold = 0.7
	}
	if cfg.LookupBudget == 0 {
		cfg.LookupBudget = time.Second
	}
	return &Scorer{rules: rules, cfg: cfg, logger: logger}
}

// Score computes the announcement confidence for a message. The final score is
// the clamped sum of matched pattern weights plus the keyword bonus; exclusion
// patterns carry negative weight and can push the score below the threshold.
// A store failure degrades to "not detected"; only a budget overrun is an error.
func (s *Scorer) Score(ctx context.Context, msg *models.Message) (models.ScoreResult, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, s.cfg.LookupBudget)
	defer cancel()

	patterns, err := s.rules.ListActivePatterns(lookupCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(lookupCtx.Err(), context.DeadlineExceeded) {
			return models.ScoreResult{}, fmt.Errorf("%w: %v", ErrBudgetExceeded, err)
		}
		s.logger.Error("Failed to load announcement patterns, treating message as not detected",
			zap.String("message_id", msg.ID), zap.Error(err))
		return models.ScoreResult{TimeFactor: s.timeFactor(msg.Timestamp)}, nil
	}

	score := 0.0
	var matched []string
	for _, p := range patterns {
		re, compileErr := regexp.Compile(p.Regex)
		if compileErr != nil {
			s.logger.Warn("Skipping pattern with invalid regex",
				zap.Int64("pattern_id", p.ID), zap.Error(compileErr))
			continue
		}
		if re.MatchString(msg.Content) {
			score += p.ConfidenceWeight
			matched = append(matched, p.Regex)
		}
	}

	// Distinct matched patterns earn a small bonus on top of the weights.
	bonus := keywordBonusStep * float64(len(matched))
	if bonus > keywordBonusCap {
		bonus = keywordBonusCap
	}
	score += bonus

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	result := models.ScoreResult{
		Confidence:      score,
		MatchedPatterns: matched,
		TimeFactor:      s.timeFactor(msg.Timestamp),
	}
	result.Detected = score >= s.cfg.Threshold && !s.allowlisted(msg)
	return result, nil
}

// allowlisted reports whether the message is exempt from announcement
// flagging: known senders, chat rooms, and keywords pass, and so do messages
// that look like they come from an admin or official account.
func (s *Scorer) allowlisted(msg *models.Message) bool {
	for _, sender := range s.cfg.AllowedSenders {
		if sender != "" && msg.SenderHash == sender {
			return true
		}
	}
	for _, room := range s.cfg.AllowedChatRooms {
		if room != "" && msg.ChatRoomID == room {
			return true
		}
	}
	content := strings.ToLower(msg.Content)
	for _, kw := range s.cfg.AllowedKeywords {
		if kw != "" && strings.Contains(content, strings.ToLower(kw)) {
			return true
		}
	}

	// Official override matches the sender name only. Content markers belong
	// in AllowedKeywords; matching them here would let any message exempt
	// itself by quoting the keyword.
	senderName := strings.ToLower(msg.SenderName)
	for _, kw := range s.cfg.OfficialKeywords {
		if kw == "" {
			continue
		}
		if strings.Contains(senderName, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// timeFactor reports whether the message falls inside the configured business
// hours window: 1 inside, 0 outside. With no window configured every hour
// counts as business hours.
func (s *Scorer) timeFactor(ts time.Time) float64 {
	start, end := s.cfg.BusinessHoursStart, s.cfg.BusinessHoursEnd
	if start == end {
		return 1
	}
	hour := ts.Hour()
	if start < end {
		if hour >= start && hour < end {
			return 1
		}
		return 0
	}
	// Window wraps midnight.
	if hour >= start || hour < end {
		return 1
	}
	return 0
}
