package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prepdesk/examsim-backend/internal/model"
)

// ExamSessionRepository handles exam session bookkeeping rows.
type ExamSessionRepository struct {
	pool *pgxpool.Pool
}

// NewExamSessionRepository creates a new ExamSessionRepository.
func NewExamSessionRepository(pool *pgxpool.Pool) *ExamSessionRepository {
	return &ExamSessionRepository{pool: pool}
}

// Create inserts a session row at launch time.
func (r *ExamSessionRepository) Create(ctx context.Context, s *model.ExamSession) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO exam_sessions (id, user_id, exam_type, budget_seconds, started_at, status)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID, s.UserID, s.ExamType, s.BudgetSeconds, s.StartedAt, s.Status,
	)
	return err
}

// MarkSubmitted records the one-way transition to SUBMITTED.
func (r *ExamSessionRepository) MarkSubmitted(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exam_sessions
		 SET status = $1, submitted_at = $2
		 WHERE id = $3 AND status = $4`,
		model.SessionStatusSubmitted, at, id, model.SessionStatusInProgress,
	)
	return err
}

// GetByID retrieves one session row.
func (r *ExamSessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error) {
	s := &model.ExamSession{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, exam_type, budget_seconds, started_at, submitted_at, status
		 FROM exam_sessions
		 WHERE id = $1`, id,
	).Scan(&s.ID, &s.UserID, &s.ExamType, &s.BudgetSeconds, &s.StartedAt, &s.SubmittedAt, &s.Status)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ListByUser retrieves all sessions for a user, newest first.
func (r *ExamSessionRepository) ListByUser(ctx context.Context, userID string) ([]model.ExamSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, exam_type, budget_seconds, started_at, submitted_at, status
		 FROM exam_sessions
		 WHERE user_id = $1
		 ORDER BY started_at DESC`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.ExamSession
	for rows.Next() {
		var s model.ExamSession
		if err := rows.Scan(&s.ID, &s.UserID, &s.ExamType, &s.BudgetSeconds, &s.StartedAt, &s.SubmittedAt, &s.Status); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
