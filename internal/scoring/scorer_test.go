package scoring_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"go.uber.org/zap"

	"chatwatch/internal/models"
	"chatwatch/internal/scoring"
)

type fakePatternRepo struct {
	patterns []models.AnnouncementPattern
	err      error
	delay    time.Duration
}

func (f *fakePatternRepo) ListActivePatterns(ctx context.Context) ([]models.AnnouncementPattern, error) {
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	return f.patterns, f.err
}

func (f *fakePatternRepo) ListActiveWhitelistRules(ctx context.Context) ([]models.FilterRule, error) {
	return nil, nil
}
func (f *fakePatternRepo) ListActiveExceptionRules(ctx context.Context, detectionType string) ([]models.FilterRule, error) {
	return nil, nil
}
func (f *fakePatternRepo) ListRules(ctx context.Context, filterType string) ([]models.FilterRule, error) {
	return nil, nil
}
func (f *fakePatternRepo) ListPatterns(ctx context.Context) ([]models.AnnouncementPattern, error) {
	return nil, nil
}
func (f *fakePatternRepo) GetRuleByID(ctx context.Context, id int64) (*models.FilterRule, error) {
	return nil, nil
}
func (f *fakePatternRepo) FindRule(ctx context.Context, filterType, word, wordType, scope string) (*models.FilterRule, error) {
	return nil, nil
}
func (f *fakePatternRepo) CreateRule(ctx context.Context, rule *models.FilterRule) error { return nil }
func (f *fakePatternRepo) UpdateRule(ctx context.Context, rule *models.FilterRule) error { return nil }
func (f *fakePatternRepo) DeactivateRule(ctx context.Context, id int64) error            { return nil }
func (f *fakePatternRepo) CreatePattern(ctx context.Context, p *models.AnnouncementPattern) error {
	return nil
}
func (f *fakePatternRepo) DeactivatePattern(ctx context.Context, id int64) error { return nil }

func pattern(regex string, weight float64) models.AnnouncementPattern {
	return models.AnnouncementPattern{Regex: regex, ConfidenceWeight: weight, Active: true}
}

func testMessage(content string) *models.Message {
	return &models.Message{
		ID:         "msg-1",
		ChatRoomID: "room-1",
		SenderHash: "sender-1",
		SenderName: "member",
		Content:    content,
		Timestamp:  time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC), // 14:00
	}
}

func TestScoreSumsWeightsWithKeywordBonus(t *testing.T) {
	t.Parallel()

	repo := &fakePatternRepo{patterns: []models.AnnouncementPattern{
		pattern("공지", 0.8),
		pattern("긴급", 0.9),
	}}
	scorer := scoring.NewScorer(repo, scoring.Config{Threshold: 0.7}, zap.NewNop())

	result, err := scorer.Score(context.Background(), testMessage("긴급 공지입니다"))
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if result.Confidence != 1.0 {
		t.Fatalf("Confidence = %v, want 1.0 (clamped)", result.Confidence)
	}
	if !result.Detected {
		t.Fatal("Detected = false, want true")
	}
	if len(result.MatchedPatterns) != 2 {
		t.Fatalf("MatchedPatterns = %v, want 2 entries", result.MatchedPatterns)
	}
}

func TestScoreKeywordBonus(t *testing.T) {
	t.Parallel()

	repo := &fakePatternRepo{patterns: []models.AnnouncementPattern{
		pattern("모집", 0.3),
		pattern("안내", 0.2),
	}}
	scorer := scoring.NewScorer(repo, scoring.Config{Threshold: 0.7}, zap.NewNop())

	result, err := scorer.Score(context.Background(), testMessage("모집 안내"))
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	// 0.3 + 0.2 + 2*0.05 bonus
	if math.Abs(result.Confidence-0.6) > 1e-9 {
		t.Fatalf("Confidence = %v, want 0.6", result.Confidence)
	}
	if result.Detected {
		t.Fatal("Detected = true, want false below threshold")
	}
}

func TestScoreExclusionPatternPushesBelowThreshold(t *testing.T) {
	t.Parallel()

	repo := &fakePatternRepo{patterns: []models.AnnouncementPattern{
		pattern("공지", 0.8),
		pattern("답장", -0.9), // exclusion signal
	}}
	scorer := scoring.NewScorer(repo, scoring.Config{Threshold: 0.7}, zap.NewNop())

	result, err := scorer.Score(context.Background(), testMessage("공지에 대한 답장입니다"))
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if result.Detected {
		t.Fatalf("Detected = true with confidence %v, want false", result.Confidence)
	}
	if result.Confidence >= 0.7 {
		t.Fatalf("Confidence = %v, want below threshold", result.Confidence)
	}
}

func TestScoreClampsNegativeToZero(t *testing.T) {
	t.Parallel()

	repo := &fakePatternRepo{patterns: []models.AnnouncementPattern{
		pattern("답장", -0.9),
	}}
	scorer := scoring.NewScorer(repo, scoring.Config{Threshold: 0.7}, zap.NewNop())

	result, err := scorer.Score(context.Background(), testMessage("답장"))
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if result.Confidence != 0 {
		t.Fatalf("Confidence = %v, want 0", result.Confidence)
	}
}

func TestScoreAllowlistSuppressesDetection(t *testing.T) {
	t.Parallel()

	patterns := []models.AnnouncementPattern{pattern("공지", 0.9)}

	cases := []struct {
		name string
		cfg  scoring.Config
		msg  *models.Message
	}{
		{
			name: "allowedSender",
			cfg:  scoring.Config{AllowedSenders: []string{"sender-1"}},
			msg:  testMessage("공지입니다"),
		},
		{
			name: "allowedChatRoom",
			cfg:  scoring.Config{AllowedChatRooms: []string{"room-1"}},
			msg:  testMessage("공지입니다"),
		},
		{
			name: "allowedKeyword",
			cfg:  scoring.Config{AllowedKeywords: []string{"정기모임"}},
			msg:  testMessage("정기모임 공지입니다"),
		},
		{
			name: "officialSenderName",
			cfg:  scoring.Config{OfficialKeywords: []string{"관리자"}},
			msg: &models.Message{
				ID: "m", ChatRoomID: "r", SenderHash: "s",
				SenderName: "방 관리자", Content: "공지입니다",
				Timestamp: time.Now(),
			},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			scorer := scoring.NewScorer(&fakePatternRepo{patterns: patterns}, tc.cfg, zap.NewNop())
			result, err := scorer.Score(context.Background(), tc.msg)
			if err != nil {
				t.Fatalf("Score() error = %v", err)
			}
			if result.Detected {
				t.Fatalf("Detected = true for allowlisted message, confidence %v", result.Confidence)
			}
			if result.Confidence < 0.7 {
				t.Fatalf("Confidence = %v, expected the score itself to stay high", result.Confidence)
			}
		})
	}
}

func TestScoreOfficialKeywordInContentDoesNotExempt(t *testing.T) {
	t.Parallel()

	patterns := []models.AnnouncementPattern{pattern("공지", 0.9)}
	cfg := scoring.Config{OfficialKeywords: []string{"관리자"}}
	scorer := scoring.NewScorer(&fakePatternRepo{patterns: patterns}, cfg, zap.NewNop())

	// The keyword appears in the message body but the sender is an ordinary
	// member; quoting an official marker must not bypass detection.
	msg := testMessage("관리자 공지입니다")
	result, err := scorer.Score(context.Background(), msg)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if !result.Detected {
		t.Fatalf("Detected = false, confidence %v; content-only official keyword exempted the message", result.Confidence)
	}
}

func TestScoreTimeFactor(t *testing.T) {
	t.Parallel()

	repo := &fakePatternRepo{patterns: []models.AnnouncementPattern{pattern("공지", 0.9)}}
	cfg := scoring.Config{BusinessHoursStart: 9, BusinessHoursEnd: 18}
	scorer := scoring.NewScorer(repo, cfg, zap.NewNop())

	inside := testMessage("공지") // 14:00
	result, err := scorer.Score(context.Background(), inside)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if result.TimeFactor != 1 {
		t.Fatalf("TimeFactor = %v inside business hours, want 1", result.TimeFactor)
	}

	outside := testMessage("공지")
	outside.Timestamp = time.Date(2026, 3, 2, 23, 0, 0, 0, time.UTC)
	result, err = scorer.Score(context.Background(), outside)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if result.TimeFactor != 0 {
		t.Fatalf("TimeFactor = %v outside business hours, want 0", result.TimeFactor)
	}
}

func TestScoreDegradesOnLookupFailure(t *testing.T) {
	t.Parallel()

	repo := &fakePatternRepo{err: errors.New("store unreachable")}
	scorer := scoring.NewScorer(repo, scoring.Config{}, zap.NewNop())

	result, err := scorer.Score(context.Background(), testMessage("긴급 공지"))
	if err != nil {
		t.Fatalf("Score() error = %v, want degraded nil", err)
	}
	if result.Detected || result.Confidence != 0 {
		t.Fatalf("result = %#v, want not detected with zero confidence", result)
	}
}

func TestScoreBudgetOverrunReturnsTimeoutFailure(t *testing.T) {
	t.Parallel()

	repo := &fakePatternRepo{delay: 200 * time.Millisecond}
	scorer := scoring.NewScorer(repo, scoring.Config{LookupBudget: 20 * time.Millisecond}, zap.NewNop())

	_, err := scorer.Score(context.Background(), testMessage("공지"))
	if !errors.Is(err, scoring.ErrBudgetExceeded) {
		t.Fatalf("Score() error = %v, want ErrBudgetExceeded", err)
	}
}
