package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/prepdesk/examsim-backend/internal/config"
	"github.com/prepdesk/examsim-backend/internal/export"
	"github.com/prepdesk/examsim-backend/internal/model"
	"github.com/prepdesk/examsim-backend/internal/repository"
	"github.com/prepdesk/examsim-backend/internal/session"
	"github.com/prepdesk/examsim-backend/internal/submission"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ─── Fakes ──────────────────────────────────────────────────────────

type fakeSessionStore struct {
	mu        sync.Mutex
	rows      map[uuid.UUID]*model.ExamSession
	createErr error
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{rows: make(map[uuid.UUID]*model.ExamSession)}
}

func (f *fakeSessionStore) Create(_ context.Context, s *model.ExamSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	cp := *s
	f.rows[s.ID] = &cp
	return nil
}

func (f *fakeSessionStore) MarkSubmitted(_ context.Context, id uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return errors.New("no row")
	}
	if row.Status == model.SessionStatusInProgress {
		row.Status = model.SessionStatusSubmitted
		row.SubmittedAt = &at
	}
	return nil
}

func (f *fakeSessionStore) GetByID(_ context.Context, id uuid.UUID) (*model.ExamSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return nil, errors.New("no row")
	}
	cp := *row
	return &cp, nil
}

func (f *fakeSessionStore) ListByUser(_ context.Context, userID string) ([]model.ExamSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.ExamSession
	for _, row := range f.rows {
		if row.UserID == userID {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (f *fakeSessionStore) status(id uuid.UUID) model.SessionStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	if row, ok := f.rows[id]; ok {
		return row.Status
	}
	return ""
}

type fakeResultStore struct {
	mu      sync.Mutex
	results map[uuid.UUID]*model.SessionResult
	saveErr error
}

func newFakeResultStore() *fakeResultStore {
	return &fakeResultStore{results: make(map[uuid.UUID]*model.SessionResult)}
}

func (f *fakeResultStore) SaveResult(_ context.Context, res *model.SessionResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.results[res.SessionID] = res
	return nil
}

func (f *fakeResultStore) GetBySession(_ context.Context, sessionID uuid.UUID) (*model.SessionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res, ok := f.results[sessionID]
	if !ok {
		return nil, errors.New("no result")
	}
	return res, nil
}

func (f *fakeResultStore) ListByUser(_ context.Context, userID string) ([]repository.ResultSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.ResultSummary
	for _, res := range f.results {
		if res.UserID == userID {
			out = append(out, repository.ResultSummary{
				SessionID:        res.SessionID,
				ExamType:         res.ExamType,
				TimeTakenSeconds: res.TimeTakenSeconds,
				SubmittedAt:      res.SubmittedAt,
			})
		}
	}
	return out, nil
}

func (f *fakeResultStore) saved(id uuid.UUID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.results[id]
	return ok
}

type fakeAssets struct{ paths map[string]bool }

func (f *fakeAssets) Exists(relPath string) bool { return f.paths[relPath] }

// ─── Harness ────────────────────────────────────────────────────────

type harness struct {
	svc      *SessionService
	sessions *fakeSessionStore
	results  *fakeResultStore
	rdb      *redis.Client
	mr       *miniredis.Miniredis
	ticker   *session.ManualTicker
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	h := &harness{
		sessions: newFakeSessionStore(),
		results:  newFakeResultStore(),
		rdb:      rdb,
		mr:       mr,
	}

	log := zerolog.Nop()
	pipeline := submission.New(h.results, repository.NewResultQueue(rdb), log)
	assets := &fakeAssets{paths: map[string]bool{
		"/uploads/doc.pdf":   true,
		"/uploads/audio.mp3": true,
	}}
	ticks := func() session.TickSource {
		h.ticker = session.NewManualTicker()
		return h.ticker
	}

	h.svc = NewSessionService(
		session.NewRegistry(),
		h.sessions,
		h.results,
		assets,
		pipeline,
		export.NewExporter(""),
		rdb,
		ticks,
		log,
	)
	return h
}

func (h *harness) launchReading(t *testing.T, userID string) session.StateSnapshot {
	t.Helper()
	snap, err := h.svc.Launch(context.Background(), userID, model.LaunchRequest{
		ExamType:     model.ExamTypeReading,
		DocumentPath: "/uploads/doc.pdf",
	})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	return snap
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

// ─── Tests ──────────────────────────────────────────────────────────

func TestLaunchCreatesSession(t *testing.T) {
	h := newHarness(t)
	snap := h.launchReading(t, "user-1")

	if snap.Phase != session.PhaseInProgress {
		t.Errorf("phase = %v, want IN_PROGRESS", snap.Phase)
	}
	if snap.Shape.SlotCount != 40 || snap.RemainingSeconds != 3600 {
		t.Errorf("shape = %+v remaining = %d", snap.Shape, snap.RemainingSeconds)
	}

	row, err := h.sessions.GetByID(context.Background(), snap.SessionID)
	if err != nil {
		t.Fatalf("session row not created: %v", err)
	}
	if row.Status != model.SessionStatusInProgress {
		t.Errorf("row status = %v", row.Status)
	}

	if _, err := h.mr.Get(config.CacheKey.SessionStartKey(snap.SessionID.String())); err != nil {
		t.Errorf("start time not cached: %v", err)
	}
}

func TestLaunchRejectsMissingAssets(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Launch(ctx, "user-1", model.LaunchRequest{
		ExamType:     model.ExamTypeReading,
		DocumentPath: "/uploads/ghost.pdf",
	})
	if !errors.Is(err, session.ErrMissingRequiredAsset) {
		t.Errorf("missing document: err = %v", err)
	}

	// Listening cannot start without its audio.
	_, err = h.svc.Launch(ctx, "user-1", model.LaunchRequest{
		ExamType:     model.ExamTypeListening,
		DocumentPath: "/uploads/doc.pdf",
	})
	if !errors.Is(err, session.ErrMissingRequiredAsset) {
		t.Errorf("missing audio: err = %v", err)
	}

	_, err = h.svc.Launch(ctx, "user-1", model.LaunchRequest{
		ExamType:     model.ExamTypeListening,
		DocumentPath: "/uploads/doc.pdf",
		AudioPath:    "/uploads/audio.mp3",
	})
	if err != nil {
		t.Errorf("listening with audio should launch: %v", err)
	}
}

func TestUpdateAnswerMirrorsToRedis(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	snap := h.launchReading(t, "user-1")
	id := snap.SessionID

	if err := h.svc.UpdateAnswer(ctx, id, "user-1", 3, "harbour"); err != nil {
		t.Fatalf("UpdateAnswer: %v", err)
	}

	got := h.mr.HGet(config.CacheKey.SessionAnswersKey(id.String()), "3")
	if got != "harbour" {
		t.Errorf("cached answer = %q, want harbour", got)
	}

	jobs, err := h.mr.List(config.WorkerKey.PersistAnswersQueue)
	if err != nil || len(jobs) != 1 {
		t.Fatalf("persist queue = %v (err %v), want 1 job", jobs, err)
	}
	var job model.AnswerAutosave
	if err := json.Unmarshal([]byte(jobs[0]), &job); err != nil {
		t.Fatalf("unmarshal job: %v", err)
	}
	if job.SessionID != id || job.Index != 3 || job.Text != "harbour" {
		t.Errorf("job = %+v", job)
	}
}

func TestToggleMarkMirrorsToRedis(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	snap := h.launchReading(t, "user-1")
	id := snap.SessionID

	marked, err := h.svc.ToggleMark(ctx, id, "user-1", 7)
	if err != nil || !marked {
		t.Fatalf("ToggleMark = %v, %v", marked, err)
	}
	if got := h.mr.HGet(config.CacheKey.SessionMarksKey(id.String()), "7"); got != "1" {
		t.Errorf("cached mark = %q, want 1", got)
	}

	marked, err = h.svc.ToggleMark(ctx, id, "user-1", 7)
	if err != nil || marked {
		t.Fatalf("second ToggleMark = %v, %v", marked, err)
	}
	if got := h.mr.HGet(config.CacheKey.SessionMarksKey(id.String()), "7"); got != "0" {
		t.Errorf("cached mark after untoggle = %q, want 0", got)
	}
}

func TestSaveScrollMirrorsToRedis(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	snap := h.launchReading(t, "user-1")
	id := snap.SessionID

	if err := h.svc.SaveScroll(ctx, id, "user-1", "p2:material", 812.5); err != nil {
		t.Fatalf("SaveScroll: %v", err)
	}
	if got := h.mr.HGet(config.CacheKey.SessionScrollKey(id.String()), "p2:material"); got != "812.5" {
		t.Errorf("cached scroll = %q", got)
	}
}

func TestOwnershipEnforced(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	snap := h.launchReading(t, "user-1")

	if err := h.svc.UpdateAnswer(ctx, snap.SessionID, "intruder", 1, "x"); !errors.Is(err, ErrNotOwner) {
		t.Errorf("UpdateAnswer err = %v, want ErrNotOwner", err)
	}
	if _, err := h.svc.GetState(ctx, snap.SessionID, "intruder"); !errors.Is(err, ErrNotOwner) {
		t.Errorf("GetState err = %v, want ErrNotOwner", err)
	}
	if _, err := h.svc.Submit(ctx, snap.SessionID, "intruder", true); !errors.Is(err, ErrNotOwner) {
		t.Errorf("Submit err = %v, want ErrNotOwner", err)
	}
}

func TestIntentsOnUnknownSession(t *testing.T) {
	h := newHarness(t)
	if err := h.svc.StartTimer(context.Background(), uuid.New(), "user-1"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestSubmitFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	snap := h.launchReading(t, "user-1")
	id := snap.SessionID

	if err := h.svc.UpdateAnswer(ctx, id, "user-1", 1, "cat"); err != nil {
		t.Fatalf("UpdateAnswer: %v", err)
	}

	outcome, err := h.svc.Submit(ctx, id, "user-1", false)
	if err != nil || outcome != session.SubmitConfirmRequired {
		t.Fatalf("unconfirmed submit = %v, %v", outcome, err)
	}

	outcome, err = h.svc.Submit(ctx, id, "user-1", true)
	if err != nil || outcome != session.SubmitAccepted {
		t.Fatalf("confirmed submit = %v, %v", outcome, err)
	}

	waitFor(t, func() bool { return h.results.saved(id) }, "result never persisted")
	waitFor(t, func() bool {
		return h.sessions.status(id) == model.SessionStatusSubmitted
	}, "session row never marked submitted")

	// The live caches are dropped once the submission is recorded.
	waitFor(t, func() bool {
		return !h.mr.Exists(config.CacheKey.SessionStartKey(id.String()))
	}, "start key never dropped")

	res, err := h.svc.Result(ctx, id, "user-1")
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if res.Answers[0].Text != "cat" || !res.Answers[0].Answered {
		t.Errorf("answers[0] = %+v", res.Answers[0])
	}

	// A second confirmed submit is ignored, not re-persisted.
	outcome, err = h.svc.Submit(ctx, id, "user-1", true)
	if err != nil || outcome != session.SubmitIgnored {
		t.Errorf("repeat submit = %v, %v", outcome, err)
	}
}

func TestExpiryForcesSubmission(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	snap, err := h.svc.Launch(ctx, "user-1", model.LaunchRequest{
		ExamType:     model.ExamTypeListening,
		DocumentPath: "/uploads/doc.pdf",
		AudioPath:    "/uploads/audio.mp3",
	})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	id := snap.SessionID

	if err := h.svc.StartTimer(ctx, id, "user-1"); err != nil {
		t.Fatalf("StartTimer: %v", err)
	}
	for i := 0; i < snap.Shape.BudgetSeconds; i++ {
		h.ticker.Tick()
	}

	waitFor(t, func() bool { return h.results.saved(id) }, "expiry never persisted a result")

	res, err := h.svc.Result(ctx, id, "user-1")
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if res.TimeTakenSeconds != snap.Shape.BudgetSeconds {
		t.Errorf("time taken = %d, want %d", res.TimeTakenSeconds, snap.Shape.BudgetSeconds)
	}
}

func TestGetStateReconstructsFromCache(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// A session that survives only in Redis and the DB, e.g. after a restart.
	id := uuid.New()
	started := time.Now().Add(-10 * time.Minute)
	h.sessions.Create(ctx, &model.ExamSession{
		ID:            id,
		UserID:        "user-1",
		ExamType:      model.ExamTypeReading,
		BudgetSeconds: 3600,
		StartedAt:     started,
		Status:        model.SessionStatusInProgress,
	})
	h.mr.Set(config.CacheKey.SessionStartKey(id.String()), strconv.FormatInt(started.Unix(), 10))
	h.mr.HSet(config.CacheKey.SessionAnswersKey(id.String()), "5", "harbour")
	h.mr.HSet(config.CacheKey.SessionMarksKey(id.String()), "5", "1")
	h.mr.HSet(config.CacheKey.SessionScrollKey(id.String()), "p1:material", "420")

	snap, err := h.svc.GetState(ctx, id, "user-1")
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if snap.Phase != session.PhaseInProgress {
		t.Errorf("phase = %v", snap.Phase)
	}
	if len(snap.Answers) != 40 {
		t.Fatalf("len(answers) = %d", len(snap.Answers))
	}
	a := snap.Answers[4]
	if a.Text != "harbour" || !a.Answered || !a.Marked {
		t.Errorf("answers[4] = %+v", a)
	}
	if snap.Answers[0].Answered {
		t.Error("slot 1 should be untouched")
	}
	if snap.ScrollPositions["p1:material"] != 420 {
		t.Errorf("scroll = %v", snap.ScrollPositions)
	}
	// Roughly 50 minutes left of the hour.
	if snap.RemainingSeconds < 2990 || snap.RemainingSeconds > 3000 {
		t.Errorf("remaining = %d", snap.RemainingSeconds)
	}
}

func TestGetStateSelfHealsStartTime(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	id := uuid.New()
	started := time.Now().Add(-5 * time.Minute)
	h.sessions.Create(ctx, &model.ExamSession{
		ID:            id,
		UserID:        "user-1",
		ExamType:      model.ExamTypeReading,
		BudgetSeconds: 3600,
		StartedAt:     started,
		Status:        model.SessionStatusInProgress,
	})
	// No cached start time: the DB value is used and re-cached.

	snap, err := h.svc.GetState(ctx, id, "user-1")
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if snap.RemainingSeconds < 3290 || snap.RemainingSeconds > 3300 {
		t.Errorf("remaining = %d", snap.RemainingSeconds)
	}
	if _, err := h.mr.Get(config.CacheKey.SessionStartKey(id.String())); err != nil {
		t.Errorf("start time not self-healed: %v", err)
	}
}

func TestGetStateSubmittedSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	id := uuid.New()
	at := time.Now()
	h.sessions.Create(ctx, &model.ExamSession{
		ID:            id,
		UserID:        "user-1",
		ExamType:      model.ExamTypeWriting,
		BudgetSeconds: 3600,
		StartedAt:     at.Add(-time.Hour),
		Status:        model.SessionStatusInProgress,
	})
	h.sessions.MarkSubmitted(ctx, id, at)

	snap, err := h.svc.GetState(ctx, id, "user-1")
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if snap.Phase != session.PhaseSubmitted {
		t.Errorf("phase = %v", snap.Phase)
	}
	if snap.RemainingSeconds != 0 {
		t.Errorf("remaining = %d", snap.RemainingSeconds)
	}
}

func TestResultFromStoreWhenLoopGone(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res := &model.SessionResult{
		SessionID:        uuid.New(),
		UserID:           "user-1",
		ExamType:         model.ExamTypeReading,
		TimeTakenSeconds: 1200,
		SubmittedAt:      time.Now(),
	}
	h.results.SaveResult(ctx, res)

	got, err := h.svc.Result(ctx, res.SessionID, "user-1")
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if got.TimeTakenSeconds != 1200 {
		t.Errorf("time taken = %d", got.TimeTakenSeconds)
	}

	if _, err := h.svc.Result(ctx, res.SessionID, "intruder"); !errors.Is(err, ErrNotOwner) {
		t.Errorf("err = %v, want ErrNotOwner", err)
	}
}

func TestResultBeforeSubmission(t *testing.T) {
	h := newHarness(t)
	snap := h.launchReading(t, "user-1")

	if _, err := h.svc.Result(context.Background(), snap.SessionID, "user-1"); !errors.Is(err, ErrNotSubmitted) {
		t.Errorf("err = %v, want ErrNotSubmitted", err)
	}
}

func TestExportSubmittedSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	snap := h.launchReading(t, "user-1")
	id := snap.SessionID

	h.svc.UpdateAnswer(ctx, id, "user-1", 1, "cat")
	if _, err := h.svc.Submit(ctx, id, "user-1", true); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	art, err := h.svc.Export(ctx, id, "user-1", export.FormatTXT)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(art.Data) == 0 {
		t.Error("empty export artifact")
	}
}
