package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SessionResult is the immutable snapshot built at submission time.
// It is handed to the persistence layer and to the export generators;
// nothing mutates it after construction.
type SessionResult struct {
	SessionID        uuid.UUID        `json:"session_id"`
	UserID           string           `json:"user_id"`
	ExamType         ExamType         `json:"exam_type"`
	TimeTakenSeconds int              `json:"time_taken_seconds"`
	Answers          []QuestionAnswer `json:"answers"`
	SubmittedAt      time.Time        `json:"submitted_at"`
}

// resultAnswer is the persisted per-question shape for reading/listening.
type resultAnswer struct {
	Question int    `json:"question"`
	Answer   string `json:"answer"`
	Marked   bool   `json:"marked"`
}

// writingAnswers is the persisted shape for the two writing tasks.
type writingAnswers struct {
	Task1 string `json:"task1"`
	Task2 string `json:"task2"`
}

// AnswersJSON serializes the answers into the shape the results table
// expects: an array of {question, answer, marked} for reading/listening,
// or {task1, task2} for writing.
func (r *SessionResult) AnswersJSON() (json.RawMessage, error) {
	if r.ExamType == ExamTypeWriting {
		w := writingAnswers{}
		for _, a := range r.Answers {
			switch a.Index {
			case 1:
				w.Task1 = a.Text
			case 2:
				w.Task2 = a.Text
			}
		}
		return json.Marshal(w)
	}

	out := make([]resultAnswer, 0, len(r.Answers))
	for _, a := range r.Answers {
		out = append(out, resultAnswer{
			Question: a.Index,
			Answer:   a.Text,
			Marked:   a.Marked,
		})
	}
	return json.Marshal(out)
}

// AnsweredCount returns how many slots have a non-empty answer.
func (r *SessionResult) AnsweredCount() int {
	n := 0
	for _, a := range r.Answers {
		if a.Answered {
			n++
		}
	}
	return n
}
