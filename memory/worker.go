// Package memory turns conversation turns into graph writes: the ingestion
// pipeline decomposes each utterance, the session manager keeps episode and
// interaction chains, and a bounded worker runs the writes off the request
// path.
package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/mnemora/mnemora/internal/metrics"
)

// Task is one queued background write.
type Task func(ctx context.Context) error

type queuedTask struct {
	name string
	fn   Task
}

// taskTimeout bounds one background write, full pipeline included.
const taskTimeout = 30 * time.Second

// Worker runs background writes on a fixed pool over a bounded queue. When
// the queue is full new tasks are dropped and counted, never blocked on;
// the request path stays fast at the cost of a lost memory.
type Worker struct {
	tasks   chan queuedTask
	wg      sync.WaitGroup
	breaker *gobreaker.CircuitBreaker
	once    sync.Once
}

// NewWorker starts count workers over a queue of the given capacity.
func NewWorker(count, queueSize int) *Worker {
	if count <= 0 {
		count = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}

	w := &Worker{
		tasks: make(chan queuedTask, queueSize),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "memory-writes",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				slog.Warn("memory write breaker state changed",
					slog.String("from", from.String()), slog.String("to", to.String()))
			},
		}),
	}
	for i := 0; i < count; i++ {
		w.wg.Add(1)
		go w.run()
	}
	return w
}

// Submit queues a task. Returns false when the queue is full and the task
// was dropped.
func (w *Worker) Submit(name string, fn Task) bool {
	select {
	case w.tasks <- queuedTask{name: name, fn: fn}:
		metrics.QueueDepth.Inc()
		return true
	default:
		metrics.BackgroundTasks.WithLabelValues("dropped").Inc()
		slog.Warn("background task dropped, queue full", slog.String("task", name))
		return false
	}
}

func (w *Worker) run() {
	defer w.wg.Done()
	for t := range w.tasks {
		metrics.QueueDepth.Dec()

		ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
		_, err := w.breaker.Execute(func() (any, error) {
			return nil, t.fn(ctx)
		})
		cancel()

		if err != nil {
			metrics.BackgroundTasks.WithLabelValues("failed").Inc()
			slog.Error("background task failed",
				slog.String("task", t.name), slog.String("error", err.Error()))
			continue
		}
		metrics.BackgroundTasks.WithLabelValues("completed").Inc()
	}
}

// Shutdown stops intake and waits for queued tasks to drain, or for the
// context to expire.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.once.Do(func() { close(w.tasks) })

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
