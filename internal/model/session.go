package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates exam session states. SETUP sessions exist only
// in memory; a row is written when the session reaches IN_PROGRESS.
type SessionStatus string

const (
	SessionStatusSetup      SessionStatus = "SETUP"
	SessionStatusInProgress SessionStatus = "IN_PROGRESS"
	SessionStatusSubmitted  SessionStatus = "SUBMITTED"
)

// ExamSession is the bookkeeping row for one timed exam attempt.
type ExamSession struct {
	ID            uuid.UUID     `json:"id"`
	UserID        string        `json:"user_id"`
	ExamType      ExamType      `json:"exam_type"`
	BudgetSeconds int           `json:"budget_seconds"`
	StartedAt     time.Time     `json:"started_at"`
	SubmittedAt   *time.Time    `json:"submitted_at,omitempty"`
	Status        SessionStatus `json:"status"`
}
