package session

import (
	"github.com/prepdesk/examsim-backend/internal/model"
)

// Sheet holds the ordered set of per-question answer records for one
// session. The slot count is fixed at creation; operations only mutate
// existing records, never insert or remove them.
type Sheet struct {
	slots []model.QuestionAnswer
}

// NewSheet creates a sheet with n empty slots indexed 1..n.
func NewSheet(n int) *Sheet {
	s := &Sheet{slots: make([]model.QuestionAnswer, n)}
	for i := range s.slots {
		s.slots[i] = model.QuestionAnswer{Index: i + 1}
	}
	return s
}

// Len returns the fixed slot count.
func (s *Sheet) Len() int {
	return len(s.slots)
}

// UpdateAnswer sets the text of slot index and recomputes its answered flag.
func (s *Sheet) UpdateAnswer(index int, text string) error {
	if index < 1 || index > len(s.slots) {
		return ErrIndexOutOfRange
	}
	s.slots[index-1].SetText(text)
	return nil
}

// ToggleMark flips the marked-for-review flag of slot index and returns
// the new value.
func (s *Sheet) ToggleMark(index int) (bool, error) {
	if index < 1 || index > len(s.slots) {
		return false, ErrIndexOutOfRange
	}
	s.slots[index-1].Marked = !s.slots[index-1].Marked
	return s.slots[index-1].Marked, nil
}

// Answer returns a copy of the record at slot index.
func (s *Sheet) Answer(index int) (model.QuestionAnswer, error) {
	if index < 1 || index > len(s.slots) {
		return model.QuestionAnswer{}, ErrIndexOutOfRange
	}
	return s.slots[index-1], nil
}

// Snapshot returns an independent copy of all records. Mutating the
// returned slice does not affect the sheet.
func (s *Sheet) Snapshot() []model.QuestionAnswer {
	out := make([]model.QuestionAnswer, len(s.slots))
	copy(out, s.slots)
	return out
}

// AnsweredCount returns how many slots currently hold a non-empty answer.
func (s *Sheet) AnsweredCount() int {
	n := 0
	for i := range s.slots {
		if s.slots[i].Answered {
			n++
		}
	}
	return n
}

// Reset reinitializes every slot to its empty default.
func (s *Sheet) Reset() {
	for i := range s.slots {
		s.slots[i] = model.QuestionAnswer{Index: i + 1}
	}
}
