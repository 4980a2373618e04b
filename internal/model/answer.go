package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// QuestionAnswer is the state of one numbered answerable slot.
// Answered is derived from Text and must never be set independently.
type QuestionAnswer struct {
	Index    int    `json:"index"`
	Text     string `json:"text"`
	Answered bool   `json:"answered"`
	Marked   bool   `json:"marked"`
}

// SetText updates the answer text and recomputes the derived Answered flag.
func (q *QuestionAnswer) SetText(text string) {
	q.Text = text
	q.Answered = strings.TrimSpace(text) != ""
}

// AnswerAutosave is one queued answer-persistence job. Every answer edit and
// mark toggle produces one; the autosave worker drains them into Postgres.
type AnswerAutosave struct {
	SessionID uuid.UUID `json:"session_id"`
	Index     int       `json:"index"`
	Text      string    `json:"text"`
	Marked    bool      `json:"marked"`
	SavedAt   time.Time `json:"saved_at"`
}
