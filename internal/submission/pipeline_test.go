package submission

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prepdesk/examsim-backend/internal/model"
	"github.com/rs/zerolog"
)

type fakeWriter struct {
	mu    sync.Mutex
	err   error
	saved []*model.SessionResult
}

func (w *fakeWriter) SaveResult(_ context.Context, r *model.SessionResult) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.saved = append(w.saved, r)
	return nil
}

func (w *fakeWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.saved)
}

type fakeQueue struct {
	mu     sync.Mutex
	queued []*model.SessionResult
}

func (q *fakeQueue) EnqueueResult(_ context.Context, r *model.SessionResult) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queued = append(q.queued, r)
	return nil
}

func (q *fakeQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queued)
}

func sampleResult() *model.SessionResult {
	return &model.SessionResult{
		SessionID:        uuid.New(),
		UserID:           "user-1",
		ExamType:         model.ExamTypeReading,
		TimeTakenSeconds: 1200,
		Answers:          []model.QuestionAnswer{{Index: 1, Text: "cat", Answered: true}},
		SubmittedAt:      time.Now().UTC(),
	}
}

func waitOutcome(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for persistence outcome")
		return nil
	}
}

func TestPipelinePersistSuccess(t *testing.T) {
	writer := &fakeWriter{}
	queue := &fakeQueue{}
	p := New(writer, queue, zerolog.Nop())

	outcome := make(chan error, 1)
	sub := p.Bind(func(err error) { outcome <- err })

	sub.Submit(sampleResult())

	if err := waitOutcome(t, outcome); err != nil {
		t.Fatalf("outcome = %v, want nil", err)
	}
	if writer.count() != 1 {
		t.Errorf("saved %d results, want 1", writer.count())
	}
	if queue.count() != 0 {
		t.Errorf("retry queue used on success")
	}
}

// Persistence failure is a warning, not a block: the outcome carries the
// error and the result lands on the retry queue.
func TestPipelinePersistFailureQueuesRetry(t *testing.T) {
	writer := &fakeWriter{err: errors.New("connection refused")}
	queue := &fakeQueue{}
	p := New(writer, queue, zerolog.Nop())

	outcome := make(chan error, 1)
	sub := p.Bind(func(err error) { outcome <- err })

	res := sampleResult()
	sub.Submit(res)

	err := waitOutcome(t, outcome)
	if err == nil {
		t.Fatal("outcome = nil, want error")
	}
	if queue.count() != 1 {
		t.Fatalf("retry queue has %d entries, want 1", queue.count())
	}
	queue.mu.Lock()
	got := queue.queued[0]
	queue.mu.Unlock()
	if got.SessionID != res.SessionID {
		t.Errorf("queued wrong result: %v", got.SessionID)
	}
}

func TestPipelineWithoutRetryQueue(t *testing.T) {
	writer := &fakeWriter{err: errors.New("boom")}
	p := New(writer, nil, zerolog.Nop())

	outcome := make(chan error, 1)
	p.Bind(func(err error) { outcome <- err }).Submit(sampleResult())

	if err := waitOutcome(t, outcome); err == nil {
		t.Fatal("outcome = nil, want error")
	}
}
