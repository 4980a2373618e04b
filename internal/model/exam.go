package model

import "fmt"

// ExamType enumerates the supported exam modules.
type ExamType string

const (
	ExamTypeReading   ExamType = "reading"
	ExamTypeListening ExamType = "listening"
	ExamTypeWriting   ExamType = "writing"
)

// Shape parametrizes the session engine for one exam module: how many
// answer slots exist, how much time is budgeted, and which view keys are
// legal navigation targets. The three exam pages of the UI share a single
// engine configured by one of these.
type Shape struct {
	Type          ExamType `json:"type"`
	SlotCount     int      `json:"slot_count"`
	BudgetSeconds int      `json:"budget_seconds"`
	ViewKeys      []string `json:"view_keys"`
	// RequiresAudio marks modules that cannot launch without an audio asset.
	RequiresAudio bool `json:"requires_audio"`
}

// ShapeFor returns the canonical Shape for an exam type.
func ShapeFor(t ExamType) (Shape, error) {
	switch t {
	case ExamTypeReading:
		return Shape{
			Type:          ExamTypeReading,
			SlotCount:     40,
			BudgetSeconds: 3600,
			ViewKeys:      crossViews([]string{"p1", "p2", "p3"}, []string{"material", "questions"}),
		}, nil
	case ExamTypeListening:
		return Shape{
			Type:          ExamTypeListening,
			SlotCount:     40,
			BudgetSeconds: 1800,
			ViewKeys:      crossViews([]string{"s1", "s2", "s3", "s4"}, []string{"audio", "pdf"}),
			RequiresAudio: true,
		}, nil
	case ExamTypeWriting:
		return Shape{
			Type:          ExamTypeWriting,
			SlotCount:     2,
			BudgetSeconds: 3600,
			ViewKeys:      []string{"task1", "task2"},
		}, nil
	default:
		return Shape{}, fmt.Errorf("unknown exam type: %q", t)
	}
}

// HasView reports whether key is a legal navigation target for this shape.
func (s Shape) HasView(key string) bool {
	for _, k := range s.ViewKeys {
		if k == key {
			return true
		}
	}
	return false
}

func crossViews(ranges, views []string) []string {
	keys := make([]string, 0, len(ranges)*len(views))
	for _, r := range ranges {
		for _, v := range views {
			keys = append(keys, r+":"+v)
		}
	}
	return keys
}

// LaunchRequest is the payload for launching a new exam session.
type LaunchRequest struct {
	ExamType     ExamType `json:"exam_type" binding:"required,oneof=reading listening writing"`
	DocumentPath string   `json:"document_path" binding:"required"`
	AudioPath    string   `json:"audio_path" binding:"omitempty"`
}
