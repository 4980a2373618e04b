package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/prepdesk/examsim-backend/internal/config"
	"github.com/prepdesk/examsim-backend/internal/model"
	"github.com/prepdesk/examsim-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ResultWorker is the retry lane for finished sessions: when the submission
// pipeline's direct write fails, the result lands on persist_results_queue
// and this worker re-delivers it. SaveResult is idempotent on session_id, so
// a replay after a half-failed attempt is harmless.
type ResultWorker struct {
	results *repository.ExamResultRepository
	rdb     *redis.Client
	log     zerolog.Logger
}

// NewResultWorker creates a new ResultWorker.
func NewResultWorker(results *repository.ExamResultRepository, rdb *redis.Client, log zerolog.Logger) *ResultWorker {
	return &ResultWorker{
		results: results,
		rdb:     rdb,
		log:     log.With().Str("component", "result_worker").Logger(),
	}
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *ResultWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *ResultWorker) processNext(ctx context.Context) {
	item, err := w.rdb.BLPop(ctx, time.Second, config.WorkerKey.PersistResultsQueue).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}

	if len(item) < 2 {
		return
	}

	var res model.SessionResult
	if err := json.Unmarshal([]byte(item[1]), &res); err != nil {
		w.log.Error().Err(err).Msg("Unmarshal error")
		return
	}

	if err := w.results.SaveResult(ctx, &res); err != nil {
		w.log.Error().Err(err).
			Str("session_id", res.SessionID.String()).
			Msg("Persist error, retrying in 5s")
		w.rdb.RPush(ctx, config.WorkerKey.PersistResultsQueue, item[1])
		time.Sleep(5 * time.Second)
		return
	}

	w.log.Info().
		Str("session_id", res.SessionID.String()).
		Msg("Queued result persisted")
}

// drain processes all remaining items in the queue before shutdown.
func (w *ResultWorker) drain(ctx context.Context) {
	drained := 0
	for {
		item, err := w.rdb.LPop(ctx, config.WorkerKey.PersistResultsQueue).Result()
		if err != nil {
			break
		}

		var res model.SessionResult
		if err := json.Unmarshal([]byte(item), &res); err != nil {
			w.log.Error().Err(err).Msg("Drain unmarshal error")
			continue
		}

		if err := w.results.SaveResult(ctx, &res); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			w.rdb.RPush(ctx, config.WorkerKey.PersistResultsQueue, item)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
