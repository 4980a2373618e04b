package session

import (
	"sync"

	"github.com/google/uuid"
	"github.com/prepdesk/examsim-backend/internal/model"
	"github.com/rs/zerolog"
)

// EventType enumerates events pushed from the session loop to its client.
type EventType string

const (
	EventTick             EventType = "tick"
	EventExpired          EventType = "expired"
	EventSubmitted        EventType = "submitted"
	EventResultSaved      EventType = "result_saved"
	EventResultSaveFailed EventType = "result_save_failed"
)

// Event is one outbound notification from the session loop.
type Event struct {
	Type             EventType            `json:"event"`
	RemainingSeconds int                  `json:"remaining_seconds,omitempty"`
	Result           *model.SessionResult `json:"result,omitempty"`
	Error            string               `json:"error,omitempty"`
}

type cmdResult struct {
	v   any
	err error
}

type command struct {
	fn    func(m *Machine) (any, error)
	reply chan cmdResult
}

// Loop is the single event-processing goroutine for one session. All
// machine mutation funnels through it, which removes the need for locks and
// makes intent ordering deterministic: pending ticks are always drained
// before user intents, so a tick racing a submit click wins — the exam's
// hard deadline takes precedence over a simultaneous confirm dialog.
type Loop struct {
	machine *Machine
	ticks   TickSource
	cmds    chan command
	events  chan Event
	done    chan struct{}
	once    sync.Once
	log     zerolog.Logger
}

// NewLoop creates a session loop around a fresh machine in Setup. Call
// BindSubmitter and then Start before dispatching intents.
func NewLoop(id uuid.UUID, userID string, ticks TickSource, log zerolog.Logger) *Loop {
	return &Loop{
		machine: NewMachine(id, userID, ticks),
		ticks:   ticks,
		cmds:    make(chan command),
		events:  make(chan Event, 64),
		done:    make(chan struct{}),
		log:     log.With().Str("component", "session_loop").Str("session_id", id.String()).Logger(),
	}
}

// BindSubmitter attaches the submission pipeline to the machine.
func (l *Loop) BindSubmitter(s Submitter) {
	l.machine.BindSubmitter(s)
}

// Start launches the loop goroutine.
func (l *Loop) Start() {
	go l.run()
}

// Close stops the loop and its tick source. Idempotent.
func (l *Loop) Close() {
	l.once.Do(func() {
		close(l.done)
		l.ticks.Stop()
	})
}

// Events is the stream of loop notifications (ticks, expiry, submission,
// persistence outcome). Slow consumers lose events rather than stalling
// the session.
func (l *Loop) Events() <-chan Event {
	return l.events
}

// ID returns the session identifier.
func (l *Loop) ID() uuid.UUID {
	return l.machine.id
}

// UserID returns the owning user's identifier.
func (l *Loop) UserID() string {
	return l.machine.userID
}

// NotifySaveOutcome reports the persistence outcome back into the event
// stream. Safe to call from the pipeline goroutine: it only emits, it does
// not touch the machine.
func (l *Loop) NotifySaveOutcome(err error) {
	if err != nil {
		l.emit(Event{Type: EventResultSaveFailed, Error: err.Error()})
		return
	}
	l.emit(Event{Type: EventResultSaved})
}

func (l *Loop) run() {
	for {
		l.drainTicks()

		select {
		case <-l.done:
			return
		case <-l.ticks.C():
			l.handleTick()
		case cmd := <-l.cmds:
			// A tick that arrived in the same processing turn outranks the
			// intent: the hard deadline wins a race with a submit click.
			l.drainTicks()
			v, err := cmd.fn(l.machine)
			cmd.reply <- cmdResult{v: v, err: err}
		}
	}
}

func (l *Loop) drainTicks() {
	for {
		select {
		case <-l.ticks.C():
			l.handleTick()
		default:
			return
		}
	}
}

func (l *Loop) handleTick() {
	before := l.machine.Phase()
	l.machine.HandleTick()

	if before == PhaseInProgress && l.machine.Phase() == PhaseSubmitted {
		l.log.Info().Msg("Time budget exhausted, session force-submitted")
		l.emit(Event{Type: EventExpired})
		l.emit(Event{Type: EventSubmitted, Result: l.machine.Result()})
		return
	}
	if l.machine.TimerRunning() {
		l.emit(Event{Type: EventTick, RemainingSeconds: l.machine.Remaining()})
	}
}

func (l *Loop) emit(ev Event) {
	select {
	case l.events <- ev:
	default:
		l.log.Warn().Str("event", string(ev.Type)).Msg("Event dropped, consumer too slow")
	}
}

func (l *Loop) do(fn func(m *Machine) (any, error)) (any, error) {
	cmd := command{fn: fn, reply: make(chan cmdResult, 1)}
	select {
	case l.cmds <- cmd:
	case <-l.done:
		return nil, ErrLoopClosed
	}
	select {
	case res := <-cmd.reply:
		return res.v, res.err
	case <-l.done:
		return nil, ErrLoopClosed
	}
}

// ─── Typed intents ──────────────────────────────────────────────────

// Launch moves the session into InProgress.
func (l *Loop) Launch(in LaunchInput) error {
	_, err := l.do(func(m *Machine) (any, error) {
		return nil, m.Launch(in)
	})
	return err
}

// StartTimer resumes the countdown.
func (l *Loop) StartTimer() error {
	_, err := l.do(func(m *Machine) (any, error) {
		return nil, m.StartTimer()
	})
	return err
}

// PauseTimer suspends the countdown.
func (l *Loop) PauseTimer() error {
	_, err := l.do(func(m *Machine) (any, error) {
		return nil, m.PauseTimer()
	})
	return err
}

// UpdateAnswer sets the text of an answer slot.
func (l *Loop) UpdateAnswer(index int, text string) error {
	_, err := l.do(func(m *Machine) (any, error) {
		return nil, m.UpdateAnswer(index, text)
	})
	return err
}

// ToggleMark flips a slot's marked flag and returns the new value.
func (l *Loop) ToggleMark(index int) (bool, error) {
	v, err := l.do(func(m *Machine) (any, error) {
		return m.ToggleMark(index)
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// NavigateTo changes the focused view.
func (l *Loop) NavigateTo(viewKey string) error {
	_, err := l.do(func(m *Machine) (any, error) {
		return nil, m.NavigateTo(viewKey)
	})
	return err
}

// SaveScroll stores a scroll offset. Fire-and-forget and idempotent.
func (l *Loop) SaveScroll(key string, position float64) error {
	_, err := l.do(func(m *Machine) (any, error) {
		m.SaveScroll(key, position)
		return nil, nil
	})
	return err
}

// RequestSubmit drives the confirmation-gated submission flow.
func (l *Loop) RequestSubmit(confirmed bool) (SubmitOutcome, error) {
	v, err := l.do(func(m *Machine) (any, error) {
		return m.RequestSubmit(confirmed)
	})
	if err != nil {
		return SubmitIgnored, err
	}
	return v.(SubmitOutcome), nil
}

// State returns a copy of the observable session state.
func (l *Loop) State() (StateSnapshot, error) {
	v, err := l.do(func(m *Machine) (any, error) {
		return m.Snapshot(), nil
	})
	if err != nil {
		return StateSnapshot{}, err
	}
	return v.(StateSnapshot), nil
}

// Result returns the submission snapshot, or nil before Submitted.
func (l *Loop) Result() (*model.SessionResult, error) {
	v, err := l.do(func(m *Machine) (any, error) {
		return m.Result(), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.SessionResult), nil
}
