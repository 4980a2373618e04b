package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/prepdesk/examsim-backend/internal/model"
)

// Phase enumerates the session lifecycle states.
type Phase string

const (
	PhaseSetup      Phase = "SETUP"
	PhaseInProgress Phase = "IN_PROGRESS"
	PhaseSubmitted  Phase = "SUBMITTED"
)

// Submitter receives the finished result snapshot. Implementations must not
// block: the transition to Submitted happens before persistence resolves,
// and the outcome is surfaced later as a best-effort notification.
type Submitter interface {
	Submit(result *model.SessionResult)
}

// SubmitOutcome is the result of a submit request.
type SubmitOutcome int

const (
	// SubmitConfirmRequired means the caller must confirm before the
	// irreversible submission proceeds.
	SubmitConfirmRequired SubmitOutcome = iota
	// SubmitAccepted means the session transitioned to Submitted.
	SubmitAccepted
	// SubmitIgnored means the session was already submitted; the request
	// had no effect.
	SubmitIgnored
)

// LaunchInput carries everything needed to move a session out of Setup.
type LaunchInput struct {
	Shape        model.Shape
	DocumentPath string
	AudioPath    string
}

// StateSnapshot is a copy of the observable session state, safe to hand
// across goroutines.
type StateSnapshot struct {
	SessionID        uuid.UUID                `json:"session_id"`
	Phase            Phase                    `json:"phase"`
	Shape            model.Shape              `json:"shape"`
	RemainingSeconds int                      `json:"remaining_seconds"`
	TimerRunning     bool                     `json:"timer_running"`
	CurrentView      string                   `json:"current_view"`
	Answers          []model.QuestionAnswer   `json:"answers"`
	ScrollPositions  map[string]float64       `json:"scroll_positions"`
}

// Machine orchestrates one exam session: it owns the answer sheet, the
// countdown and the scroll cache, and enforces the one-way
// Setup → InProgress → Submitted lifecycle. It is not goroutine-safe; the
// Loop is its single caller.
type Machine struct {
	id        uuid.UUID
	userID    string
	shape     model.Shape
	phase     Phase
	sheet     *Sheet
	timer     *Countdown
	views     *PositionCache
	ticks     TickSource
	submitter Submitter

	currentView string
	result      *model.SessionResult
	expired     bool
}

// NewMachine creates a session machine in Setup.
func NewMachine(id uuid.UUID, userID string, ticks TickSource) *Machine {
	return &Machine{
		id:     id,
		userID: userID,
		phase:  PhaseSetup,
		ticks:  ticks,
	}
}

// BindSubmitter attaches the submission pipeline. Must be called before
// the session can be submitted.
func (m *Machine) BindSubmitter(s Submitter) {
	m.submitter = s
}

// Launch moves Setup → InProgress, allocating the answer sheet, countdown
// and scroll cache for the given shape. A session without its mandatory
// document (and audio, where the shape demands one) must not start.
func (m *Machine) Launch(in LaunchInput) error {
	if m.phase != PhaseSetup {
		return ErrNotInSetup
	}
	if in.DocumentPath == "" {
		return ErrMissingRequiredAsset
	}
	if in.Shape.RequiresAudio && in.AudioPath == "" {
		return ErrMissingRequiredAsset
	}

	m.shape = in.Shape
	m.sheet = NewSheet(in.Shape.SlotCount)
	m.timer = NewCountdown(in.Shape.BudgetSeconds, m.expire)
	m.views = NewPositionCache()
	if len(in.Shape.ViewKeys) > 0 {
		m.currentView = in.Shape.ViewKeys[0]
	}
	m.phase = PhaseInProgress
	return nil
}

// StartTimer resumes the countdown and its tick source.
func (m *Machine) StartTimer() error {
	if m.phase != PhaseInProgress {
		return ErrNotInProgress
	}
	if m.timer.Start() {
		m.ticks.Resume()
	}
	return nil
}

// PauseTimer suspends the countdown and its tick source. Elapsed wall-clock
// time while paused does not count against the budget.
func (m *Machine) PauseTimer() error {
	if m.phase != PhaseInProgress {
		return ErrNotInProgress
	}
	if m.timer.Pause() {
		m.ticks.Suspend()
	}
	return nil
}

// HandleTick consumes one logical second. Expiry inside the countdown
// forces submission with no confirmation step.
func (m *Machine) HandleTick() {
	if m.phase != PhaseInProgress {
		return
	}
	m.timer.Tick()
}

// expire is the countdown's expiry callback: the deadline is authoritative,
// so it finalizes immediately.
func (m *Machine) expire() {
	m.expired = true
	m.finalize()
}

// UpdateAnswer sets the text of an answer slot.
func (m *Machine) UpdateAnswer(index int, text string) error {
	if m.phase != PhaseInProgress {
		return ErrNotInProgress
	}
	return m.sheet.UpdateAnswer(index, text)
}

// ToggleMark flips the marked-for-review flag of a slot and returns the
// new value.
func (m *Machine) ToggleMark(index int) (bool, error) {
	if m.phase != PhaseInProgress {
		return false, ErrNotInProgress
	}
	return m.sheet.ToggleMark(index)
}

// NavigateTo changes the focused view. Navigation never touches the timer
// or the answer sheet.
func (m *Machine) NavigateTo(viewKey string) error {
	if m.phase != PhaseInProgress {
		return ErrNotInProgress
	}
	if !m.shape.HasView(viewKey) {
		return ErrUnknownView
	}
	m.currentView = viewKey
	return nil
}

// SaveScroll stores the last-known scroll offset for a view key.
func (m *Machine) SaveScroll(key string, position float64) {
	if m.views == nil {
		return
	}
	m.views.Save(key, position)
}

// ScrollPosition returns the saved offset for a view key, or 0.
func (m *Machine) ScrollPosition(key string) float64 {
	if m.views == nil {
		return 0
	}
	return m.views.Get(key)
}

// RequestSubmit drives the user-initiated submission flow. Submission is
// irreversible, so an unconfirmed request only demands confirmation and
// leaves the state untouched. A confirmed request finalizes the session.
// Requests after Submitted are ignored — no second persistence call.
func (m *Machine) RequestSubmit(confirmed bool) (SubmitOutcome, error) {
	switch m.phase {
	case PhaseSubmitted:
		return SubmitIgnored, nil
	case PhaseSetup:
		return SubmitIgnored, ErrNotInProgress
	}
	if !confirmed {
		return SubmitConfirmRequired, nil
	}
	m.finalize()
	return SubmitAccepted, nil
}

// finalize performs the one-way transition to Submitted: it freezes the
// clock, snapshots the sheet into an immutable SessionResult and hands it
// to the submission pipeline. Guarded so it runs at most once.
func (m *Machine) finalize() {
	if m.phase != PhaseInProgress {
		return
	}
	m.timer.Pause()
	m.ticks.Suspend()
	m.phase = PhaseSubmitted

	m.result = &model.SessionResult{
		SessionID:        m.id,
		UserID:           m.userID,
		ExamType:         m.shape.Type,
		TimeTakenSeconds: m.timer.Elapsed(),
		Answers:          m.sheet.Snapshot(),
		SubmittedAt:      time.Now().UTC(),
	}
	if m.submitter != nil {
		m.submitter.Submit(m.result)
	}
}

// ID returns the session identifier.
func (m *Machine) ID() uuid.UUID { return m.id }

// UserID returns the owning user's identifier.
func (m *Machine) UserID() string { return m.userID }

// Phase returns the current lifecycle phase.
func (m *Machine) Phase() Phase { return m.phase }

// Shape returns the launched shape. Zero value before Launch.
func (m *Machine) Shape() model.Shape { return m.shape }

// Expired reports whether the countdown forced the submission.
func (m *Machine) Expired() bool { return m.expired }

// Remaining returns the remaining seconds, or 0 before Launch.
func (m *Machine) Remaining() int {
	if m.timer == nil {
		return 0
	}
	return m.timer.Remaining()
}

// TimerRunning reports whether the countdown is consuming ticks.
func (m *Machine) TimerRunning() bool {
	return m.timer != nil && m.timer.Running()
}

// Result returns the submission snapshot, or nil before Submitted.
func (m *Machine) Result() *model.SessionResult { return m.result }

// Snapshot copies the observable state for transport to clients.
func (m *Machine) Snapshot() StateSnapshot {
	snap := StateSnapshot{
		SessionID:        m.id,
		Phase:            m.phase,
		Shape:            m.shape,
		RemainingSeconds: m.Remaining(),
		TimerRunning:     m.TimerRunning(),
		CurrentView:      m.currentView,
	}
	if m.sheet != nil {
		snap.Answers = m.sheet.Snapshot()
	}
	if m.views != nil {
		snap.ScrollPositions = m.views.Snapshot()
	}
	return snap
}
