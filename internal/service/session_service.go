package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

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

// Common session service errors.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNotOwner        = errors.New("session belongs to another user")
	ErrNotSubmitted    = errors.New("session has not been submitted")
)

// SessionStore persists exam session bookkeeping rows.
type SessionStore interface {
	Create(ctx context.Context, s *model.ExamSession) error
	MarkSubmitted(ctx context.Context, id uuid.UUID, at time.Time) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error)
	ListByUser(ctx context.Context, userID string) ([]model.ExamSession, error)
}

// ResultStore persists and retrieves finished results.
type ResultStore interface {
	GetBySession(ctx context.Context, sessionID uuid.UUID) (*model.SessionResult, error)
	ListByUser(ctx context.Context, userID string) ([]repository.ResultSummary, error)
}

// AssetChecker verifies that an uploaded exam material exists.
type AssetChecker interface {
	Exists(relPath string) bool
}

// TickFactory builds the tick source for a new session. Production uses
// wall-clock tickers; tests inject manual ones.
type TickFactory func() session.TickSource

// SessionService orchestrates live exam sessions: it owns the loop registry,
// mirrors in-memory state to Redis for reconnects, and bridges finished
// sessions into the submission pipeline.
type SessionService struct {
	registry *session.Registry
	sessions SessionStore
	results  ResultStore
	assets   AssetChecker
	pipeline *submission.Pipeline
	exporter *export.Exporter
	rdb      *redis.Client
	ticks    TickFactory
	log      zerolog.Logger
}

// NewSessionService creates a new SessionService. ticks may be nil, in which
// case wall-clock tickers are used.
func NewSessionService(
	registry *session.Registry,
	sessions SessionStore,
	results ResultStore,
	assets AssetChecker,
	pipeline *submission.Pipeline,
	exporter *export.Exporter,
	rdb *redis.Client,
	ticks TickFactory,
	log zerolog.Logger,
) *SessionService {
	if ticks == nil {
		ticks = func() session.TickSource { return session.NewWallTicker() }
	}
	return &SessionService{
		registry: registry,
		sessions: sessions,
		results:  results,
		assets:   assets,
		pipeline: pipeline,
		exporter: exporter,
		rdb:      rdb,
		ticks:    ticks,
		log:      log.With().Str("component", "session_service").Logger(),
	}
}

// submitFunc adapts a closure to session.Submitter.
type submitFunc func(result *model.SessionResult)

func (f submitFunc) Submit(result *model.SessionResult) { f(result) }

// Launch creates and starts a new exam session for a user. The session only
// leaves Setup when every required material is present on disk.
func (s *SessionService) Launch(ctx context.Context, userID string, req model.LaunchRequest) (session.StateSnapshot, error) {
	shape, err := model.ShapeFor(req.ExamType)
	if err != nil {
		return session.StateSnapshot{}, err
	}

	if !s.assets.Exists(req.DocumentPath) {
		return session.StateSnapshot{}, fmt.Errorf("document %q: %w", req.DocumentPath, session.ErrMissingRequiredAsset)
	}
	if shape.RequiresAudio && !s.assets.Exists(req.AudioPath) {
		return session.StateSnapshot{}, fmt.Errorf("audio %q: %w", req.AudioPath, session.ErrMissingRequiredAsset)
	}

	id := uuid.New()
	loop := session.NewLoop(id, userID, s.ticks(), s.log)

	// The submitter both feeds the persistence pipeline and records the
	// bookkeeping transition. Neither blocks the loop.
	pipelined := s.pipeline.Bind(loop.NotifySaveOutcome)
	loop.BindSubmitter(submitFunc(func(res *model.SessionResult) {
		go s.recordSubmission(res)
		pipelined.Submit(res)
	}))
	loop.Start()

	if err := loop.Launch(session.LaunchInput{
		Shape:        shape,
		DocumentPath: req.DocumentPath,
		AudioPath:    req.AudioPath,
	}); err != nil {
		loop.Close()
		return session.StateSnapshot{}, err
	}

	row := &model.ExamSession{
		ID:            id,
		UserID:        userID,
		ExamType:      shape.Type,
		BudgetSeconds: shape.BudgetSeconds,
		StartedAt:     time.Now().UTC(),
		Status:        model.SessionStatusInProgress,
	}
	if err := s.sessions.Create(ctx, row); err != nil {
		loop.Close()
		return session.StateSnapshot{}, fmt.Errorf("create session row: %w", err)
	}

	s.registry.Add(loop)

	// Cache the start time so reconnect state can be served without a DB hit.
	startKey := config.CacheKey.SessionStartKey(id.String())
	if err := s.rdb.Set(ctx, startKey, row.StartedAt.Unix(), 0).Err(); err != nil {
		s.log.Warn().Err(err).Str("session_id", id.String()).Msg("Failed to cache session start time")
	}

	snap, err := loop.State()
	if err != nil {
		return session.StateSnapshot{}, err
	}

	s.log.Info().
		Str("session_id", id.String()).
		Str("user_id", userID).
		Str("exam_type", string(shape.Type)).
		Int("budget_seconds", shape.BudgetSeconds).
		Msg("Session launched")
	return snap, nil
}

// ownedLoop returns the live loop for a session, enforcing ownership.
func (s *SessionService) ownedLoop(id uuid.UUID, userID string) (*session.Loop, error) {
	loop, ok := s.registry.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	if loop.UserID() != userID {
		return nil, ErrNotOwner
	}
	return loop, nil
}

// Lookup returns the live loop for a session, enforcing ownership. Used by
// the stream handler to attach to the event channel.
func (s *SessionService) Lookup(id uuid.UUID, userID string) (*session.Loop, error) {
	return s.ownedLoop(id, userID)
}

// StartTimer resumes the session countdown.
func (s *SessionService) StartTimer(ctx context.Context, id uuid.UUID, userID string) error {
	loop, err := s.ownedLoop(id, userID)
	if err != nil {
		return err
	}
	return loop.StartTimer()
}

// PauseTimer suspends the session countdown.
func (s *SessionService) PauseTimer(ctx context.Context, id uuid.UUID, userID string) error {
	loop, err := s.ownedLoop(id, userID)
	if err != nil {
		return err
	}
	return loop.PauseTimer()
}

// UpdateAnswer sets the text of an answer slot and mirrors it out.
func (s *SessionService) UpdateAnswer(ctx context.Context, id uuid.UUID, userID string, index int, text string) error {
	loop, err := s.ownedLoop(id, userID)
	if err != nil {
		return err
	}
	if err := loop.UpdateAnswer(index, text); err != nil {
		return err
	}
	s.mirrorAnswer(ctx, loop, index)
	return nil
}

// ToggleMark flips a slot's marked-for-review flag and mirrors it out.
func (s *SessionService) ToggleMark(ctx context.Context, id uuid.UUID, userID string, index int) (bool, error) {
	loop, err := s.ownedLoop(id, userID)
	if err != nil {
		return false, err
	}
	marked, err := loop.ToggleMark(index)
	if err != nil {
		return false, err
	}
	s.mirrorAnswer(ctx, loop, index)
	return marked, nil
}

// NavigateTo changes the session's focused view.
func (s *SessionService) NavigateTo(ctx context.Context, id uuid.UUID, userID string, viewKey string) error {
	loop, err := s.ownedLoop(id, userID)
	if err != nil {
		return err
	}
	return loop.NavigateTo(viewKey)
}

// SaveScroll stores a scroll offset for a view key and mirrors it to Redis.
func (s *SessionService) SaveScroll(ctx context.Context, id uuid.UUID, userID string, key string, position float64) error {
	loop, err := s.ownedLoop(id, userID)
	if err != nil {
		return err
	}
	if err := loop.SaveScroll(key, position); err != nil {
		return err
	}
	scrollKey := config.CacheKey.SessionScrollKey(id.String())
	if position < 0 {
		position = 0
	}
	if err := s.rdb.HSet(ctx, scrollKey, key, position).Err(); err != nil {
		s.log.Warn().Err(err).Str("session_id", id.String()).Msg("Failed to mirror scroll position")
	}
	return nil
}

// Submit drives the confirmation-gated submission flow.
func (s *SessionService) Submit(ctx context.Context, id uuid.UUID, userID string, confirmed bool) (session.SubmitOutcome, error) {
	loop, err := s.ownedLoop(id, userID)
	if err != nil {
		return session.SubmitIgnored, err
	}
	return loop.RequestSubmit(confirmed)
}

// GetState returns the observable state of a session. Live sessions answer
// from memory; otherwise the state is reconstructed from Redis with a
// Postgres fallback, so a server restart degrades to read-only state rather
// than a hard error.
func (s *SessionService) GetState(ctx context.Context, id uuid.UUID, userID string) (session.StateSnapshot, error) {
	if loop, ok := s.registry.Get(id); ok {
		if loop.UserID() != userID {
			return session.StateSnapshot{}, ErrNotOwner
		}
		return loop.State()
	}
	return s.reconstructState(ctx, id, userID)
}

func (s *SessionService) reconstructState(ctx context.Context, id uuid.UUID, userID string) (session.StateSnapshot, error) {
	row, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return session.StateSnapshot{}, fmt.Errorf("%w: %v", ErrSessionNotFound, err)
	}
	if row.UserID != userID {
		return session.StateSnapshot{}, ErrNotOwner
	}

	shape, err := model.ShapeFor(row.ExamType)
	if err != nil {
		return session.StateSnapshot{}, err
	}

	snap := session.StateSnapshot{
		SessionID: id,
		Shape:     shape,
	}
	switch row.Status {
	case model.SessionStatusSubmitted:
		snap.Phase = session.PhaseSubmitted
	default:
		snap.Phase = session.PhaseInProgress
		snap.RemainingSeconds = s.remainingSeconds(ctx, row)
	}

	snap.Answers, err = s.cachedAnswers(ctx, id, shape.SlotCount)
	if err != nil {
		return session.StateSnapshot{}, err
	}
	snap.ScrollPositions, err = s.cachedScrollPositions(ctx, id)
	if err != nil {
		return session.StateSnapshot{}, err
	}
	return snap, nil
}

// remainingSeconds computes time left from the cached start time, falling
// back to the session row and self-healing the cache on a miss.
func (s *SessionService) remainingSeconds(ctx context.Context, row *model.ExamSession) int {
	startKey := config.CacheKey.SessionStartKey(row.ID.String())
	startUnix := row.StartedAt.Unix()

	val, err := s.rdb.Get(ctx, startKey).Result()
	switch {
	case errors.Is(err, redis.Nil):
		_ = s.rdb.Set(ctx, startKey, startUnix, 0)
	case err != nil:
		s.log.Warn().Err(err).Str("session_id", row.ID.String()).Msg("Redis error reading start time, using DB value")
	default:
		if parsed, perr := strconv.ParseInt(val, 10, 64); perr == nil {
			startUnix = parsed
		}
	}

	deadline := time.Unix(startUnix, 0).Add(time.Duration(row.BudgetSeconds) * time.Second)
	remaining := int(time.Until(deadline).Seconds())
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

func (s *SessionService) cachedAnswers(ctx context.Context, id uuid.UUID, slotCount int) ([]model.QuestionAnswer, error) {
	texts, err := s.rdb.HGetAll(ctx, config.CacheKey.SessionAnswersKey(id.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("get cached answers: %w", err)
	}
	marks, err := s.rdb.HGetAll(ctx, config.CacheKey.SessionMarksKey(id.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("get cached marks: %w", err)
	}

	answers := make([]model.QuestionAnswer, slotCount)
	for i := range answers {
		idx := i + 1
		answers[i] = model.QuestionAnswer{Index: idx}
		field := strconv.Itoa(idx)
		if text, ok := texts[field]; ok {
			answers[i].SetText(text)
		}
		answers[i].Marked = marks[field] == "1"
	}
	return answers, nil
}

func (s *SessionService) cachedScrollPositions(ctx context.Context, id uuid.UUID) (map[string]float64, error) {
	raw, err := s.rdb.HGetAll(ctx, config.CacheKey.SessionScrollKey(id.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("get cached scroll positions: %w", err)
	}
	positions := make(map[string]float64, len(raw))
	for k, v := range raw {
		if pos, perr := strconv.ParseFloat(v, 64); perr == nil {
			positions[k] = pos
		}
	}
	return positions, nil
}

// Result returns the final snapshot of a submitted session, from the live
// loop if present, otherwise from storage.
func (s *SessionService) Result(ctx context.Context, id uuid.UUID, userID string) (*model.SessionResult, error) {
	if loop, ok := s.registry.Get(id); ok {
		if loop.UserID() != userID {
			return nil, ErrNotOwner
		}
		res, err := loop.Result()
		if err != nil {
			return nil, err
		}
		if res == nil {
			return nil, ErrNotSubmitted
		}
		return res, nil
	}

	res, err := s.results.GetBySession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionNotFound, err)
	}
	if res.UserID != userID {
		return nil, ErrNotOwner
	}
	return res, nil
}

// Sessions returns a user's session rows, newest first.
func (s *SessionService) Sessions(ctx context.Context, userID string) ([]model.ExamSession, error) {
	return s.sessions.ListByUser(ctx, userID)
}

// History returns a user's submitted results, newest first.
func (s *SessionService) History(ctx context.Context, userID string) ([]repository.ResultSummary, error) {
	return s.results.ListByUser(ctx, userID)
}

// Export renders a submitted session's answer sheet in the given format.
func (s *SessionService) Export(ctx context.Context, id uuid.UUID, userID string, format export.Format) (*export.Artifact, error) {
	res, err := s.Result(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	return s.exporter.Generate(format, res)
}

// mirrorAnswer copies one answer slot to the Redis cache and enqueues its
// persistence job. Best-effort: the in-memory sheet is the source of truth
// while the session lives, so cache faults are warnings.
func (s *SessionService) mirrorAnswer(ctx context.Context, loop *session.Loop, index int) {
	snap, err := loop.State()
	if err != nil {
		return
	}
	if index < 1 || index > len(snap.Answers) {
		return
	}
	a := snap.Answers[index-1]
	id := loop.ID().String()
	field := strconv.Itoa(index)

	if err := s.rdb.HSet(ctx, config.CacheKey.SessionAnswersKey(id), field, a.Text).Err(); err != nil {
		s.log.Warn().Err(err).Str("session_id", id).Msg("Failed to mirror answer text")
	}
	mark := "0"
	if a.Marked {
		mark = "1"
	}
	if err := s.rdb.HSet(ctx, config.CacheKey.SessionMarksKey(id), field, mark).Err(); err != nil {
		s.log.Warn().Err(err).Str("session_id", id).Msg("Failed to mirror mark flag")
	}

	job := model.AnswerAutosave{
		SessionID: loop.ID(),
		Index:     index,
		Text:      a.Text,
		Marked:    a.Marked,
		SavedAt:   time.Now().UTC(),
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, payload).Err(); err != nil {
		s.log.Warn().Err(err).Str("session_id", id).Msg("Failed to enqueue answer autosave")
	}
}

// recordSubmission runs off the session loop after the one-way transition:
// it flips the bookkeeping row and drops the now-stale live caches. Failures
// are warnings; the submission itself is already final.
func (s *SessionService) recordSubmission(res *model.SessionResult) {
	ctx := context.Background()
	id := res.SessionID.String()

	if err := s.sessions.MarkSubmitted(ctx, res.SessionID, res.SubmittedAt); err != nil {
		s.log.Warn().Err(err).Str("session_id", id).Msg("Failed to mark session row submitted")
	}

	if err := s.rdb.Del(ctx,
		config.CacheKey.SessionStartKey(id),
		config.CacheKey.SessionAnswersKey(id),
		config.CacheKey.SessionMarksKey(id),
		config.CacheKey.SessionScrollKey(id),
	).Err(); err != nil {
		s.log.Warn().Err(err).Str("session_id", id).Msg("Failed to drop session caches")
	}
}
