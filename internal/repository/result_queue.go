package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/prepdesk/examsim-backend/internal/config"
	"github.com/prepdesk/examsim-backend/internal/model"
	"github.com/redis/go-redis/v9"
)

// ResultQueue is the Redis-backed retry queue for result persistence. The
// submission pipeline pushes here when a direct write fails; the result
// worker drains it.
type ResultQueue struct {
	rdb *redis.Client
}

// NewResultQueue creates a new ResultQueue.
func NewResultQueue(rdb *redis.Client) *ResultQueue {
	return &ResultQueue{rdb: rdb}
}

// EnqueueResult pushes a serialized result onto the retry queue.
func (q *ResultQueue) EnqueueResult(ctx context.Context, res *model.SessionResult) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := q.rdb.RPush(ctx, config.WorkerKey.PersistResultsQueue, payload).Err(); err != nil {
		return fmt.Errorf("rpush result: %w", err)
	}
	return nil
}
