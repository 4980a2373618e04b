package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prepdesk/examsim-backend/internal/model"
)

// ResultSummary is one row of a user's exam history.
type ResultSummary struct {
	SessionID        uuid.UUID      `json:"session_id"`
	ExamType         model.ExamType `json:"exam_type"`
	TimeTakenSeconds int            `json:"time_taken_seconds"`
	SubmittedAt      time.Time      `json:"submitted_at"`
}

// ExamResultRepository handles persisted exam results.
type ExamResultRepository struct {
	pool *pgxpool.Pool
}

// NewExamResultRepository creates a new ExamResultRepository.
func NewExamResultRepository(pool *pgxpool.Pool) *ExamResultRepository {
	return &ExamResultRepository{pool: pool}
}

// SaveResult inserts a finished session result. Idempotent on session_id so
// the retry worker can safely re-deliver.
func (r *ExamResultRepository) SaveResult(ctx context.Context, res *model.SessionResult) error {
	answers, err := res.AnswersJSON()
	if err != nil {
		return fmt.Errorf("serialize answers: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO exam_results (session_id, user_id, exam_type, time_taken_seconds, answers, submitted_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (session_id) DO NOTHING`,
		res.SessionID, res.UserID, res.ExamType, res.TimeTakenSeconds, answers, res.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

// GetBySession retrieves one persisted result, reconstructing the answer
// records from their stored shape.
func (r *ExamResultRepository) GetBySession(ctx context.Context, sessionID uuid.UUID) (*model.SessionResult, error) {
	res := &model.SessionResult{}
	var raw []byte

	err := r.pool.QueryRow(ctx,
		`SELECT session_id, user_id, exam_type, time_taken_seconds, answers, submitted_at
		 FROM exam_results
		 WHERE session_id = $1`, sessionID,
	).Scan(&res.SessionID, &res.UserID, &res.ExamType, &res.TimeTakenSeconds, &raw, &res.SubmittedAt)
	if err != nil {
		return nil, err
	}

	res.Answers, err = decodeAnswers(res.ExamType, raw)
	if err != nil {
		return nil, fmt.Errorf("decode answers: %w", err)
	}
	return res, nil
}

// ListByUser returns a user's submitted results, newest first.
func (r *ExamResultRepository) ListByUser(ctx context.Context, userID string) ([]ResultSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT session_id, exam_type, time_taken_seconds, submitted_at
		 FROM exam_results
		 WHERE user_id = $1
		 ORDER BY submitted_at DESC`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ResultSummary
	for rows.Next() {
		var s ResultSummary
		if err := rows.Scan(&s.SessionID, &s.ExamType, &s.TimeTakenSeconds, &s.SubmittedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func decodeAnswers(t model.ExamType, raw []byte) ([]model.QuestionAnswer, error) {
	if t == model.ExamTypeWriting {
		var w struct {
			Task1 string `json:"task1"`
			Task2 string `json:"task2"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		answers := make([]model.QuestionAnswer, 2)
		answers[0] = model.QuestionAnswer{Index: 1}
		answers[0].SetText(w.Task1)
		answers[1] = model.QuestionAnswer{Index: 2}
		answers[1].SetText(w.Task2)
		return answers, nil
	}

	var rows []struct {
		Question int    `json:"question"`
		Answer   string `json:"answer"`
		Marked   bool   `json:"marked"`
	}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, err
	}
	answers := make([]model.QuestionAnswer, 0, len(rows))
	for _, row := range rows {
		a := model.QuestionAnswer{Index: row.Question, Marked: row.Marked}
		a.SetText(row.Answer)
		answers = append(answers, a)
	}
	return answers, nil
}
