package service

import (
	"context"
	"errors"
	"fmt"
	"levelup_backend/internal/config"
	"levelup_backend/internal/model"
	"levelup_backend/internal/util"
	"levelup_backend/pkg/logger"
	"sort"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	m.Run()
}

// ---- 内存实现，引擎接口的测试替身 ----

type fakeLedger struct {
	mu      sync.Mutex
	records []model.CompletionRecord
	nextID  uint
}

func (f *fakeLedger) CreateIfAbsent(record *model.CompletionRecord) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.records {
		if existing.UserID == record.UserID && existing.ProcessID == record.ProcessID {
			return false, nil
		}
	}
	f.nextID++
	record.ID = f.nextID
	f.records = append(f.records, *record)
	return true, nil
}

func (f *fakeLedger) FindByUser(userID string) ([]model.CompletionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.CompletionRecord
	for _, rec := range f.records {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CompletedAt.Equal(out[j].CompletedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CompletedAt.Before(out[j].CompletedAt)
	})
	return out, nil
}

func (f *fakeLedger) FindUserIDs() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := make(map[string]bool)
	var ids []string
	for _, rec := range f.records {
		if !seen[rec.UserID] {
			seen[rec.UserID] = true
			ids = append(ids, rec.UserID)
		}
	}
	return ids, nil
}

type fakeStreaks struct {
	mu     sync.Mutex
	states map[string]model.StreakState
}

func newFakeStreaks() *fakeStreaks {
	return &fakeStreaks{states: make(map[string]model.StreakState)}
}

func (f *fakeStreaks) Update(userID string, fn func(state *model.StreakState) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	state, ok := f.states[userID]
	if !ok {
		state = model.StreakState{UserID: userID}
	}
	if err := fn(&state); err != nil {
		return err
	}
	f.states[userID] = state
	return nil
}

func (f *fakeStreaks) FindByUser(userID string) (*model.StreakState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	state, ok := f.states[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &state, nil
}

type fakeBadges struct {
	mu     sync.Mutex
	badges map[string]model.UserBadge
}

func newFakeBadges() *fakeBadges {
	return &fakeBadges{badges: make(map[string]model.UserBadge)}
}

func (f *fakeBadges) AwardIfAbsent(badge *model.UserBadge) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := badge.UserID + "|" + badge.CategoryID
	if _, ok := f.badges[key]; ok {
		return false, nil
	}
	f.badges[key] = *badge
	return true, nil
}

func (f *fakeBadges) FindByUser(userID string) ([]model.UserBadge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.UserBadge
	for _, b := range f.badges {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CategoryID < out[j].CategoryID })
	return out, nil
}

type failingBadges struct{ err error }

func (f *failingBadges) AwardIfAbsent(*model.UserBadge) (bool, error) { return false, f.err }
func (f *failingBadges) FindByUser(string) ([]model.UserBadge, error) { return nil, f.err }

type fakeProcesses struct {
	procs map[string]model.Process
}

func (f *fakeProcesses) FindByID(id string) (*model.Process, error) {
	p, ok := f.procs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

func (f *fakeProcesses) FindPublished() ([]model.Process, error) {
	var out []model.Process
	for _, p := range f.procs {
		if p.Published {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeProcesses) FindPublishedIDsByCategory(categoryID string) ([]string, error) {
	var ids []string
	for _, p := range f.procs {
		if p.Published && p.CategoryID == categoryID {
			ids = append(ids, p.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

type fakeQuestions struct {
	byProcess map[string][]model.Question
}

func (f *fakeQuestions) FindByProcessID(processID string) ([]model.Question, error) {
	return f.byProcess[processID], nil
}

type fakeResults struct {
	mu      sync.Mutex
	entries []model.ExamResult
	err     error
}

func (f *fakeResults) Create(result *model.ExamResult) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, *result)
	return nil
}

type fakeProfiles struct {
	mu       sync.Mutex
	profiles map[string]*model.Profile
}

func (f *fakeProfiles) FindByID(id string) (*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *p
	return &copied, nil
}

func (f *fakeProfiles) AddPoints(userID string, delta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.profiles[userID]; ok {
		p.Points += delta
	}
	return nil
}

type fakeCategories struct {
	categories []model.Category
}

func (f *fakeCategories) FindAll() ([]model.Category, error) {
	return f.categories, nil
}

type fakeCache struct {
	mu            sync.Mutex
	invalidations int
}

func (f *fakeCache) Invalidate(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidations++
}

// ---- 测试装配 ----

type engineFixture struct {
	engine    *EngineService
	ledger    *fakeLedger
	streaks   *fakeStreaks
	badges    *fakeBadges
	processes *fakeProcesses
	questions *fakeQuestions
	results   *fakeResults
	profiles  *fakeProfiles
	cache     *fakeCache
	now       time.Time
}

func newEngineFixture() *engineFixture {
	f := &engineFixture{
		ledger:    &fakeLedger{},
		streaks:   newFakeStreaks(),
		badges:    newFakeBadges(),
		processes: &fakeProcesses{procs: make(map[string]model.Process)},
		questions: &fakeQuestions{byProcess: make(map[string][]model.Question)},
		results:   &fakeResults{},
		profiles:  &fakeProfiles{profiles: make(map[string]*model.Profile)},
		cache:     &fakeCache{},
		now:       time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	}

	f.engine = NewEngineService(
		f.ledger,
		f.streaks,
		f.badges,
		f.processes,
		f.questions,
		f.results,
		f.profiles,
		&fakeCategories{categories: []model.Category{
			{UUIDBase: model.UUIDBase{ID: "c1"}, Name: "Onboarding", Icon: "🚀"},
		}},
		f.cache,
		config.EngineConfig{PassThreshold: 60, CompletionPoints: 10},
	)
	f.engine.Now = func() time.Time { return f.now }

	f.profiles.profiles["u1"] = &model.Profile{UUIDBase: model.UUIDBase{ID: "u1"}, Nickname: "Ana"}

	return f
}

func (f *engineFixture) addProcess(id, categoryID string, published bool, questionCount int) {
	f.processes.procs[id] = model.Process{
		UUIDBase:   model.UUIDBase{ID: id},
		CategoryID: categoryID,
		Published:  published,
	}
	questions := make([]model.Question, questionCount)
	for i := range questions {
		questions[i] = model.Question{
			UUIDBase:      model.UUIDBase{ID: fmt.Sprintf("%s-q%d", id, i+1)},
			ProcessID:     id,
			CorrectOption: model.OptionA,
		}
	}
	f.questions.byProcess[id] = questions
}

// correctAnswers 答对前 n 题，其余答错
func (f *engineFixture) answers(processID string, correct int) AnswerSheet {
	sheet := AnswerSheet{}
	for i, q := range f.questions.byProcess[processID] {
		if i < correct {
			sheet[q.ID] = model.OptionA
		} else {
			sheet[q.ID] = model.OptionB
		}
	}
	return sheet
}

// ---- 用例 ----

func TestSubmitExam_FirstPassCreatesEverything(t *testing.T) {
	f := newEngineFixture()
	f.addProcess("p1", "c1", true, 4)

	result, err := f.engine.SubmitExam(context.Background(), "u1", "p1", f.answers("p1", 4))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Passed || !result.NewCompletion || result.AlreadyCompleted {
		t.Fatalf("expected fresh passing completion, got %+v", result)
	}

	if len(f.ledger.records) != 1 {
		t.Fatalf("expected exactly one completion record, got %d", len(f.ledger.records))
	}
	if f.profiles.profiles["u1"].Points != 10 {
		t.Fatalf("expected 10 points, got %d", f.profiles.profiles["u1"].Points)
	}
	if state, _ := f.streaks.FindByUser("u1"); state.StreakCount != 1 {
		t.Fatalf("expected streak 1, got %d", state.StreakCount)
	}
	if f.cache.invalidations != 1 {
		t.Fatalf("leaderboard cache must be invalidated once, got %d", f.cache.invalidations)
	}
}

func TestSubmitExam_FailedScoreWritesNothing(t *testing.T) {
	f := newEngineFixture()
	f.addProcess("p1", "c1", true, 5)

	result, err := f.engine.SubmitExam(context.Background(), "u1", "p1", f.answers("p1", 2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Passed || result.Score != 40 {
		t.Fatalf("expected fail at 40, got %+v", result)
	}

	if len(f.ledger.records) != 0 {
		t.Fatal("failed submission must not create a completion record")
	}
	if f.profiles.profiles["u1"].Points != 0 {
		t.Fatal("failed submission must not grant points")
	}
	// 提交流水照记，通过与否都保留
	if len(f.results.entries) != 1 || f.results.entries[0].Passed {
		t.Fatalf("expected one failed result entry, got %+v", f.results.entries)
	}
}

func TestSubmitExam_DuplicateSubmissionsIdempotent(t *testing.T) {
	f := newEngineFixture()
	f.addProcess("p1", "c1", true, 2)

	for i := 0; i < 3; i++ {
		result, err := f.engine.SubmitExam(context.Background(), "u1", "p1", f.answers("p1", 2))
		if err != nil {
			t.Fatalf("attempt %d: unexpected error: %v", i, err)
		}
		if i == 0 && !result.NewCompletion {
			t.Fatal("first attempt must create the completion")
		}
		if i > 0 && (!result.AlreadyCompleted || result.NewCompletion) {
			t.Fatalf("attempt %d must be a replay, got %+v", i, result)
		}
	}

	if len(f.ledger.records) != 1 {
		t.Fatalf("N submissions must leave exactly one record, got %d", len(f.ledger.records))
	}
	if f.profiles.profiles["u1"].Points != 10 {
		t.Fatalf("points must be granted once, got %d", f.profiles.profiles["u1"].Points)
	}
	if state, _ := f.streaks.FindByUser("u1"); state.StreakCount != 1 {
		t.Fatalf("streak must be touched only on first creation, got %d", state.StreakCount)
	}
	if len(f.results.entries) != 3 {
		t.Fatalf("every submission goes to the result log, got %d", len(f.results.entries))
	}
}

func TestSubmitExam_ValidationErrors(t *testing.T) {
	f := newEngineFixture()
	f.addProcess("p1", "c1", true, 0)
	f.addProcess("p2", "c1", false, 3)

	if _, err := f.engine.SubmitExam(context.Background(), "u1", "ghost", AnswerSheet{}); !errors.Is(err, util.ErrProcessNotFound) {
		t.Fatalf("expected ErrProcessNotFound, got %v", err)
	}
	if _, err := f.engine.SubmitExam(context.Background(), "u1", "p2", AnswerSheet{}); !errors.Is(err, util.ErrProcessNotPublished) {
		t.Fatalf("expected ErrProcessNotPublished, got %v", err)
	}
	if _, err := f.engine.SubmitExam(context.Background(), "u1", "p1", AnswerSheet{}); !errors.Is(err, util.ErrNoQuestions) {
		t.Fatalf("expected ErrNoQuestions, got %v", err)
	}

	if len(f.ledger.records) != 0 || len(f.results.entries) != 0 {
		t.Fatal("validation failures must not mutate any state")
	}
}

func TestSubmitExam_CategoryBadgeCompleteness(t *testing.T) {
	f := newEngineFixture()
	f.addProcess("p1", "c1", true, 1)
	f.addProcess("p2", "c1", true, 1)
	f.addProcess("p3", "c1", true, 1)

	for _, pid := range []string{"p1", "p2"} {
		if _, err := f.engine.SubmitExam(context.Background(), "u1", pid, f.answers(pid, 1)); err != nil {
			t.Fatalf("submit %s: %v", pid, err)
		}
	}
	if badges, _ := f.badges.FindByUser("u1"); len(badges) != 0 {
		t.Fatalf("badge must not be granted before the category is complete, got %d", len(badges))
	}

	if _, err := f.engine.SubmitExam(context.Background(), "u1", "p3", f.answers("p3", 1)); err != nil {
		t.Fatalf("submit p3: %v", err)
	}
	badges, _ := f.badges.FindByUser("u1")
	if len(badges) != 1 || badges[0].CategoryID != "c1" {
		t.Fatalf("completing the category must grant exactly one badge, got %+v", badges)
	}

	// 重复提交不会重复发徽章
	if _, err := f.engine.SubmitExam(context.Background(), "u1", "p3", f.answers("p3", 1)); err != nil {
		t.Fatalf("resubmit p3: %v", err)
	}
	if badges, _ := f.badges.FindByUser("u1"); len(badges) != 1 {
		t.Fatalf("resubmission duplicated the badge: %d", len(badges))
	}
}

func TestSubmitExam_DownstreamFailureKeepsLedger(t *testing.T) {
	f := newEngineFixture()
	f.addProcess("p1", "c1", true, 1)
	f.engine.Badges = &failingBadges{err: errors.New("store unavailable")}

	result, err := f.engine.SubmitExam(context.Background(), "u1", "p1", f.answers("p1", 1))
	if err != nil {
		t.Fatalf("downstream failure must not surface: %v", err)
	}
	if !result.NewCompletion {
		t.Fatalf("ledger write is authoritative, got %+v", result)
	}
	if len(f.ledger.records) != 1 {
		t.Fatal("ledger record must be retained despite badge failure")
	}

	// 对账重放补回徽章
	f.engine.Badges = f.badges
	reconcile := NewReconcileService(f.ledger, f.streaks, f.badges, f.processes)
	if err := reconcile.RebuildUser(context.Background(), "u1"); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if badges, _ := f.badges.FindByUser("u1"); len(badges) != 1 {
		t.Fatalf("reconciliation must backfill the missing badge, got %d", len(badges))
	}
}

func TestGetUserProgress_PartialCompletion(t *testing.T) {
	f := newEngineFixture()
	f.addProcess("p1", "c1", true, 4)
	f.addProcess("p2", "c1", true, 5)

	// P1 通过(75)，P2 挂掉(40)：完成率 50，分类未完成没有徽章
	if _, err := f.engine.SubmitExam(context.Background(), "u1", "p1", f.answers("p1", 3)); err != nil {
		t.Fatalf("submit p1: %v", err)
	}
	if _, err := f.engine.SubmitExam(context.Background(), "u1", "p2", f.answers("p2", 2)); err != nil {
		t.Fatalf("submit p2: %v", err)
	}

	progress, err := f.engine.GetUserProgress(context.Background(), "u1")
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if progress.Percentage != 50 || progress.Completed != 1 || progress.Published != 2 {
		t.Fatalf("expected 50%% (1/2), got %+v", progress)
	}
	if len(progress.Badges) != 0 {
		t.Fatalf("incomplete category must have no badge, got %+v", progress.Badges)
	}
	if progress.Points != 10 {
		t.Fatalf("expected 10 points, got %d", progress.Points)
	}
}

func TestReconcile_ReproducesLiveDerivedState(t *testing.T) {
	f := newEngineFixture()
	f.addProcess("p1", "c1", true, 1)
	f.addProcess("p2", "c1", true, 1)
	f.addProcess("p3", "c1", true, 1)

	// D, D+1, D+3 的三次完成：live 路径得到 streak 1, 2, 1
	schedule := []struct {
		pid    string
		offset int
	}{
		{"p1", 0},
		{"p2", 1},
		{"p3", 3},
	}
	base := f.now
	for _, step := range schedule {
		f.now = base.AddDate(0, 0, step.offset)
		if _, err := f.engine.SubmitExam(context.Background(), "u1", step.pid, f.answers(step.pid, 1)); err != nil {
			t.Fatalf("submit %s: %v", step.pid, err)
		}
	}

	liveStreak, err := f.streaks.FindByUser("u1")
	if err != nil {
		t.Fatalf("live streak: %v", err)
	}
	if liveStreak.StreakCount != 1 {
		t.Fatalf("expected live streak 1 after D,D+1,D+3, got %d", liveStreak.StreakCount)
	}
	liveBadges, _ := f.badges.FindByUser("u1")

	// 清空派生状态，从台账整体重放
	rebuiltStreaks := newFakeStreaks()
	rebuiltBadges := newFakeBadges()
	reconcile := NewReconcileService(f.ledger, rebuiltStreaks, rebuiltBadges, f.processes)
	if err := reconcile.RebuildAll(context.Background()); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	rebuiltStreak, err := rebuiltStreaks.FindByUser("u1")
	if err != nil {
		t.Fatalf("rebuilt streak: %v", err)
	}
	if rebuiltStreak.StreakCount != liveStreak.StreakCount {
		t.Fatalf("replay streak %d != live streak %d", rebuiltStreak.StreakCount, liveStreak.StreakCount)
	}
	if !rebuiltStreak.LastActivityDate.Equal(liveStreak.LastActivityDate) {
		t.Fatalf("replay lastActivityDate %v != live %v", rebuiltStreak.LastActivityDate, liveStreak.LastActivityDate)
	}

	rebuilt, _ := rebuiltBadges.FindByUser("u1")
	if len(rebuilt) != len(liveBadges) {
		t.Fatalf("replay badge set size %d != live %d", len(rebuilt), len(liveBadges))
	}
	for i := range rebuilt {
		if rebuilt[i].CategoryID != liveBadges[i].CategoryID {
			t.Fatalf("replay badge %q != live badge %q", rebuilt[i].CategoryID, liveBadges[i].CategoryID)
		}
	}
}

func TestSubmitExam_ResultLogFailureDoesNotBlock(t *testing.T) {
	f := newEngineFixture()
	f.addProcess("p1", "c1", true, 1)
	f.results.err = errors.New("log store down")

	result, err := f.engine.SubmitExam(context.Background(), "u1", "p1", f.answers("p1", 1))
	if err != nil {
		t.Fatalf("result log failure must not block grading: %v", err)
	}
	if !result.NewCompletion {
		t.Fatalf("expected completion despite result log failure, got %+v", result)
	}
}
