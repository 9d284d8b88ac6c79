package service_test

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"chatwatch/internal/models"
	"chatwatch/internal/service"
)

type fakeRuleRepo struct {
	byKey    map[string]*models.FilterRule
	byID     map[int64]*models.FilterRule
	nextID   int64
	created  []*models.FilterRule
	patterns []models.AnnouncementPattern
	listErr  error
}

func newFakeRuleRepo() *fakeRuleRepo {
	return &fakeRuleRepo{
		byKey:  make(map[string]*models.FilterRule),
		byID:   make(map[int64]*models.FilterRule),
		nextID: 1,
	}
}

func key(filterType, word, wordType, scope string) string {
	return filterType + "|" + word + "|" + wordType + "|" + scope
}

func (f *fakeRuleRepo) ListActiveWhitelistRules(ctx context.Context) ([]models.FilterRule, error) {
	return nil, nil
}
func (f *fakeRuleRepo) ListActiveExceptionRules(ctx context.Context, detectionType string) ([]models.FilterRule, error) {
	return nil, nil
}
func (f *fakeRuleRepo) ListActivePatterns(ctx context.Context) ([]models.AnnouncementPattern, error) {
	return nil, nil
}
func (f *fakeRuleRepo) ListRules(ctx context.Context, filterType string) ([]models.FilterRule, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var rules []models.FilterRule
	for _, r := range f.created {
		if filterType == "" || r.FilterType == filterType {
			rules = append(rules, *r)
		}
	}
	return rules, nil
}
func (f *fakeRuleRepo) ListPatterns(ctx context.Context) ([]models.AnnouncementPattern, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.patterns, nil
}
func (f *fakeRuleRepo) GetRuleByID(ctx context.Context, id int64) (*models.FilterRule, error) {
	return f.byID[id], nil
}
func (f *fakeRuleRepo) FindRule(ctx context.Context, filterType, word, wordType, scope string) (*models.FilterRule, error) {
	return f.byKey[key(filterType, word, wordType, scope)], nil
}
func (f *fakeRuleRepo) CreateRule(ctx context.Context, rule *models.FilterRule) error {
	rule.ID = f.nextID
	f.nextID++
	f.byKey[key(rule.FilterType, rule.Word, rule.WordType, rule.Scope)] = rule
	f.byID[rule.ID] = rule
	f.created = append(f.created, rule)
	return nil
}
func (f *fakeRuleRepo) UpdateRule(ctx context.Context, rule *models.FilterRule) error {
	f.byID[rule.ID] = rule
	return nil
}
func (f *fakeRuleRepo) DeactivateRule(ctx context.Context, id int64) error { return nil }
func (f *fakeRuleRepo) CreatePattern(ctx context.Context, pattern *models.AnnouncementPattern) error {
	return nil
}
func (f *fakeRuleRepo) DeactivatePattern(ctx context.Context, id int64) error { return nil }

func whitelistRule(word string) *models.FilterRule {
	return &models.FilterRule{
		FilterType: models.FilterTypeWhitelist,
		Word:       word,
		WordType:   models.WordTypeGeneral,
	}
}

func TestCreateRuleEnforcesUniqueness(t *testing.T) {
	t.Parallel()

	repo := newFakeRuleRepo()
	svc := service.NewRuleService(repo, zap.NewNop())
	ctx := context.Background()

	if err := svc.CreateRule(ctx, whitelistRule("안녕하세요")); err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}
	if err := svc.CreateRule(ctx, whitelistRule("안녕하세요")); !errors.Is(err, service.ErrRuleExists) {
		t.Fatalf("duplicate key error = %v, want ErrRuleExists", err)
	}

	// Same word under a different word type is a different key.
	other := whitelistRule("안녕하세요")
	other.WordType = models.WordTypeSender
	if err := svc.CreateRule(ctx, other); err != nil {
		t.Fatalf("CreateRule() with distinct word type error = %v", err)
	}
}

func TestListRulesReturnsStoredRules(t *testing.T) {
	t.Parallel()

	repo := newFakeRuleRepo()
	svc := service.NewRuleService(repo, zap.NewNop())
	ctx := context.Background()

	if err := svc.CreateRule(ctx, whitelistRule("안녕하세요")); err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}
	exception := &models.FilterRule{
		FilterType: models.FilterTypeException,
		Word:       "무료체험",
		WordType:   models.WordTypeGeneral,
		Scope:      models.DetectionAdvertisement,
	}
	if err := svc.CreateRule(ctx, exception); err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}

	rules, err := svc.ListRules(ctx, "")
	if err != nil {
		t.Fatalf("ListRules() error = %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("ListRules() returned %d rules, want 2", len(rules))
	}

	whitelists, err := svc.ListRules(ctx, models.FilterTypeWhitelist)
	if err != nil {
		t.Fatalf("ListRules() error = %v", err)
	}
	if len(whitelists) != 1 || whitelists[0].Word != "안녕하세요" {
		t.Fatalf("ListRules(whitelist) = %+v", whitelists)
	}
}

func TestListRulesPropagatesRepoError(t *testing.T) {
	t.Parallel()

	repo := newFakeRuleRepo()
	repo.listErr = errors.New("store unreachable")
	svc := service.NewRuleService(repo, zap.NewNop())

	if _, err := svc.ListRules(context.Background(), ""); err == nil {
		t.Fatal("ListRules() returned no error with the store down")
	}
	if _, err := svc.ListPatterns(context.Background()); err == nil {
		t.Fatal("ListPatterns() returned no error with the store down")
	}
}

func TestCreateRuleValidation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		rule *models.FilterRule
	}{
		{"emptyWord", &models.FilterRule{FilterType: models.FilterTypeWhitelist, WordType: models.WordTypeGeneral}},
		{"unknownWordType", &models.FilterRule{FilterType: models.FilterTypeWhitelist, Word: "x", WordType: "BOGUS"}},
		{"whitelistWithScope", &models.FilterRule{FilterType: models.FilterTypeWhitelist, Word: "x", WordType: models.WordTypeGeneral, Scope: models.ScopeAll}},
		{"exceptionWithoutScope", &models.FilterRule{FilterType: models.FilterTypeException, Word: "x", WordType: models.WordTypeGeneral}},
		{"badRegex", &models.FilterRule{FilterType: models.FilterTypeWhitelist, Word: "([", WordType: models.WordTypeGeneral, IsRegex: true}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			svc := service.NewRuleService(newFakeRuleRepo(), zap.NewNop())
			if err := svc.CreateRule(context.Background(), tc.rule); !errors.Is(err, service.ErrInvalidRule) {
				t.Fatalf("error = %v, want ErrInvalidRule", err)
			}
		})
	}
}

func TestUpdateRuleRejectsKeyCollision(t *testing.T) {
	t.Parallel()

	repo := newFakeRuleRepo()
	svc := service.NewRuleService(repo, zap.NewNop())
	ctx := context.Background()

	first := whitelistRule("첫번째")
	second := whitelistRule("두번째")
	if err := svc.CreateRule(ctx, first); err != nil {
		t.Fatal(err)
	}
	if err := svc.CreateRule(ctx, second); err != nil {
		t.Fatal(err)
	}

	moved := *second
	moved.Word = "첫번째"
	if err := svc.UpdateRule(ctx, &moved); !errors.Is(err, service.ErrRuleExists) {
		t.Fatalf("error = %v, want ErrRuleExists", err)
	}
}

func TestUpdateRuleNotFound(t *testing.T) {
	t.Parallel()

	svc := service.NewRuleService(newFakeRuleRepo(), zap.NewNop())
	ghost := whitelistRule("유령")
	ghost.ID = 404
	if err := svc.UpdateRule(context.Background(), ghost); !errors.Is(err, service.ErrRuleNotFound) {
		t.Fatalf("error = %v, want ErrRuleNotFound", err)
	}
}

func TestCreatePatternValidation(t *testing.T) {
	t.Parallel()

	svc := service.NewRuleService(newFakeRuleRepo(), zap.NewNop())
	ctx := context.Background()

	bad := &models.AnnouncementPattern{Regex: "([", ConfidenceWeight: 0.5}
	if err := svc.CreatePattern(ctx, bad); !errors.Is(err, service.ErrInvalidRule) {
		t.Fatalf("error = %v, want ErrInvalidRule", err)
	}

	heavy := &models.AnnouncementPattern{Regex: "공지", ConfidenceWeight: 1.5}
	if err := svc.CreatePattern(ctx, heavy); !errors.Is(err, service.ErrInvalidRule) {
		t.Fatalf("error = %v, want ErrInvalidRule", err)
	}

	ok := &models.AnnouncementPattern{Regex: "공지", ConfidenceWeight: 0.8}
	if err := svc.CreatePattern(ctx, ok); err != nil {
		t.Fatalf("CreatePattern() error = %v", err)
	}
}
