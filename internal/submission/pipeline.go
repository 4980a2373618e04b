package submission

import (
	"context"
	"fmt"

	"github.com/prepdesk/examsim-backend/internal/model"
	"github.com/prepdesk/examsim-backend/internal/session"
	"github.com/rs/zerolog"
)

// ResultWriter persists a finished session result.
type ResultWriter interface {
	SaveResult(ctx context.Context, result *model.SessionResult) error
}

// RetryEnqueuer queues a result for background persistence after a direct
// write fails, so a transient backend fault never loses a completed exam.
type RetryEnqueuer interface {
	EnqueueResult(ctx context.Context, result *model.SessionResult) error
}

// Notifier receives the outcome of the persistence attempt. A nil error
// means the result was written; a non-nil error is a non-fatal warning —
// the session is Submitted either way and the in-memory result remains
// available for display and export.
type Notifier func(err error)

// Pipeline validates, serializes and commits finished sessions. Persistence
// runs off the session loop: the state transition to Submitted is never
// gated on the backend, and no timeout is imposed here — any timeout is the
// writer's concern.
type Pipeline struct {
	writer ResultWriter
	retry  RetryEnqueuer
	log    zerolog.Logger
}

// New creates a submission pipeline. retry may be nil to disable the
// background retry path.
func New(writer ResultWriter, retry RetryEnqueuer, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		writer: writer,
		retry:  retry,
		log:    log.With().Str("component", "submission").Logger(),
	}
}

// Bind returns a session.Submitter that reports its persistence outcome
// through notify. Each session gets its own binding.
func (p *Pipeline) Bind(notify Notifier) session.Submitter {
	return &bound{pipeline: p, notify: notify}
}

type bound struct {
	pipeline *Pipeline
	notify   Notifier
}

// Submit hands the snapshot to the writer in a fresh goroutine and returns
// immediately. Exactly-once is the state machine's guarantee; this method
// trusts it and never deduplicates.
func (b *bound) Submit(result *model.SessionResult) {
	go b.pipeline.persist(result, b.notify)
}

func (p *Pipeline) persist(result *model.SessionResult, notify Notifier) {
	ctx := context.Background()

	err := p.writer.SaveResult(ctx, result)
	if err != nil {
		p.log.Warn().
			Err(err).
			Str("session_id", result.SessionID.String()).
			Str("user_id", result.UserID).
			Msg("Result write failed, queueing for retry")

		if p.retry != nil {
			if qErr := p.retry.EnqueueResult(ctx, result); qErr != nil {
				p.log.Error().Err(qErr).
					Str("session_id", result.SessionID.String()).
					Msg("Retry enqueue failed, result only available in memory")
			}
		}
		if notify != nil {
			notify(fmt.Errorf("save result: %w", err))
		}
		return
	}

	p.log.Info().
		Str("session_id", result.SessionID.String()).
		Int("time_taken_seconds", result.TimeTakenSeconds).
		Msg("Result persisted")

	if notify != nil {
		notify(nil)
	}
}
