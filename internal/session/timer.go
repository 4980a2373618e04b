package session

// TimerState enumerates the countdown states.
type TimerState string

const (
	TimerIdle    TimerState = "IDLE"
	TimerRunning TimerState = "RUNNING"
	TimerExpired TimerState = "EXPIRED"
)

// Countdown is the single authoritative clock for a session's time budget.
// It is a pure state machine: it never reads the wall clock and only moves
// when Tick is called, which makes it deterministic under test. Expired is
// terminal; a fresh session gets a fresh Countdown.
type Countdown struct {
	budget    int
	remaining int
	state     TimerState
	onExpire  func()
	fired     bool
}

// NewCountdown creates an idle countdown with the given budget in seconds.
// onExpire is invoked synchronously on the single tick that reaches zero.
func NewCountdown(budgetSeconds int, onExpire func()) *Countdown {
	return &Countdown{
		budget:    budgetSeconds,
		remaining: budgetSeconds,
		state:     TimerIdle,
		onExpire:  onExpire,
	}
}

// Start moves Idle → Running. Returns false if the transition is illegal.
func (c *Countdown) Start() bool {
	if c.state != TimerIdle {
		return false
	}
	c.state = TimerRunning
	return true
}

// Pause moves Running → Idle, retaining the remaining seconds. Wall-clock
// time spent paused never counts against the budget.
func (c *Countdown) Pause() bool {
	if c.state != TimerRunning {
		return false
	}
	c.state = TimerIdle
	return true
}

// Tick consumes one logical second. Ticks outside Running are ignored, so
// spurious ticks after expiry are harmless. The tick that reaches zero
// transitions to Expired and fires the expiry callback exactly once.
func (c *Countdown) Tick() {
	if c.state != TimerRunning {
		return
	}
	c.remaining--
	if c.remaining > 0 {
		return
	}
	c.remaining = 0
	c.state = TimerExpired
	if c.onExpire != nil && !c.fired {
		c.fired = true
		c.onExpire()
	}
}

// Reset restores the full budget. Only legal while Idle; it is an explicit
// user action, never automatic, and there is no way out of Expired.
func (c *Countdown) Reset() bool {
	if c.state != TimerIdle {
		return false
	}
	c.remaining = c.budget
	return true
}

// Remaining returns the remaining seconds.
func (c *Countdown) Remaining() int {
	return c.remaining
}

// Elapsed returns the seconds consumed so far.
func (c *Countdown) Elapsed() int {
	return c.budget - c.remaining
}

// Budget returns the total budget in seconds.
func (c *Countdown) Budget() int {
	return c.budget
}

// State returns the current timer state.
func (c *Countdown) State() TimerState {
	return c.state
}

// Running reports whether the countdown is consuming ticks.
func (c *Countdown) Running() bool {
	return c.state == TimerRunning
}
