// Package syncqueue is the outbound task queue for remote writes that the
// caller does not wait on, such as cart syncs. Tasks are keyed; a task
// submitted for a key that is still pending replaces it. Failed tasks are
// retried with exponential backoff up to a bound, and the outcome is
// visible through Status.
package syncqueue

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/benjaminabbitt/gainlabz/storefront"
)

// Task is one remote write.
type Task func(ctx context.Context) error

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("sync queue closed")

// Defaults for Config.
const (
	DefaultWorkers     = 2
	DefaultMaxAttempts = 4
	DefaultBaseBackoff = 100 * time.Millisecond
	DefaultMaxBackoff  = 5 * time.Second
)

// Config tunes a Queue. Zero values take the defaults.
type Config struct {
	Workers     int
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	// Retryable decides whether a failure is worth another attempt.
	// Nil retries every failure.
	Retryable func(error) bool
	Logger    *zap.Logger
}

// Status is a point-in-time view of the queue.
type Status struct {
	Pending     int       `json:"pending"`
	InFlight    int       `json:"inFlight"`
	Succeeded   int       `json:"succeeded"`
	Failed      int       `json:"failed"`
	Superseded  int       `json:"superseded"`
	Dropped     int       `json:"dropped"`
	LastError   string    `json:"lastError,omitempty"`
	LastErrorAt time.Time `json:"lastErrorAt,omitempty"`
	Closed      bool      `json:"closed"`
}

// Idle reports whether nothing is pending or running.
func (s Status) Idle() bool {
	return s.Pending == 0 && s.InFlight == 0
}

// Queue runs keyed tasks on a fixed pool of workers. At most one task per
// key runs at a time, so writes for a key land in submission order.
type Queue struct {
	cfg    Config
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	wake     *sync.Cond
	pending  map[string]Task
	keys     []string
	running  map[string]bool
	idle     chan struct{}
	closed   bool
	stats    Status
	sleepFor func(ctx context.Context, d time.Duration) bool
}

// New starts a queue with cfg.Workers workers.
func New(cfg Config) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = DefaultBaseBackoff
	}
	if cfg.MaxBackoff < cfg.BaseBackoff {
		cfg.MaxBackoff = DefaultMaxBackoff
		if cfg.MaxBackoff < cfg.BaseBackoff {
			cfg.MaxBackoff = cfg.BaseBackoff
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		cfg:      cfg,
		logger:   storefront.OrNop(cfg.Logger),
		ctx:      ctx,
		cancel:   cancel,
		pending:  make(map[string]Task),
		running:  make(map[string]bool),
		sleepFor: sleep,
	}
	q.wake = sync.NewCond(&q.mu)
	q.idle = closedChan()

	for i := 0; i < cfg.Workers; i++ {
		q.wg.Add(1)
		go q.work()
	}
	return q
}

// Submit enqueues task under key. A pending task for the same key is
// replaced; the replaced one is counted as superseded.
func (q *Queue) Submit(key string, task Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}

	if _, ok := q.pending[key]; ok {
		q.stats.Superseded++
	} else {
		q.keys = append(q.keys, key)
	}
	q.pending[key] = task
	q.markBusy()
	q.wake.Signal()
	return nil
}

// Status returns the current counters.
func (q *Queue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := q.stats
	s.Pending = len(q.pending)
	s.InFlight = len(q.running)
	s.Closed = q.closed
	return s
}

// Flush blocks until the queue is idle or ctx is done.
func (q *Queue) Flush(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting tasks and drains what is queued. If ctx ends first,
// running tasks are cancelled and the remaining ones dropped.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		q.wake.Broadcast()
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		q.mu.Lock()
		q.wake.Broadcast()
		q.mu.Unlock()
		<-done

		q.mu.Lock()
		q.stats.Dropped += len(q.pending)
		q.pending = make(map[string]Task)
		q.keys = nil
		q.markIdleIfDone()
		q.mu.Unlock()
		return ctx.Err()
	}
}

func (q *Queue) work() {
	defer q.wg.Done()
	for {
		key, task, ok := q.next()
		if !ok {
			return
		}
		err := q.run(key, task)

		q.mu.Lock()
		delete(q.running, key)
		if err != nil {
			q.stats.Failed++
			q.stats.LastError = err.Error()
			q.stats.LastErrorAt = time.Now()
		} else {
			q.stats.Succeeded++
		}
		q.markIdleIfDone()
		// A newer task for this key may have been waiting on us.
		q.wake.Broadcast()
		q.mu.Unlock()
	}
}

// next blocks until a task whose key is not running is available. It
// returns false once the queue is closed and drained, or cancelled.
func (q *Queue) next() (string, Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if q.ctx.Err() != nil {
			return "", nil, false
		}
		for i, key := range q.keys {
			if q.running[key] {
				continue
			}
			task := q.pending[key]
			delete(q.pending, key)
			q.keys = append(q.keys[:i:i], q.keys[i+1:]...)
			q.running[key] = true
			return key, task, true
		}
		if q.closed && len(q.pending) == 0 {
			return "", nil, false
		}
		q.wake.Wait()
	}
}

// run executes task with bounded retries. It gives up early when a newer
// task for the same key is waiting, since that one carries later state.
func (q *Queue) run(key string, task Task) error {
	var err error
	for attempt := 1; attempt <= q.cfg.MaxAttempts; attempt++ {
		err = task(q.ctx)
		if err == nil {
			if attempt > 1 {
				q.logger.Info("sync task succeeded after retry", zap.String("key", key), zap.Int("attempt", attempt))
			}
			return nil
		}
		if q.cfg.Retryable != nil && !q.cfg.Retryable(err) {
			break
		}
		if attempt == q.cfg.MaxAttempts || q.superseded(key) {
			break
		}
		delay := q.backoff(attempt)
		q.logger.Warn("sync task failed; retrying",
			zap.String("key", key),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		if !q.sleepFor(q.ctx, delay) {
			break
		}
	}
	q.logger.Error("sync task failed", zap.String("key", key), zap.Error(err))
	return err
}

func (q *Queue) superseded(key string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.pending[key]
	return ok
}

// backoff is BaseBackoff doubled per failed attempt, capped at MaxBackoff.
func (q *Queue) backoff(attempt int) time.Duration {
	d := q.cfg.BaseBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= q.cfg.MaxBackoff {
			return q.cfg.MaxBackoff
		}
	}
	return d
}

// markBusy swaps in an open idle channel. Caller holds q.mu.
func (q *Queue) markBusy() {
	select {
	case <-q.idle:
		q.idle = make(chan struct{})
	default:
	}
}

// markIdleIfDone closes the idle channel once nothing is left. Caller holds q.mu.
func (q *Queue) markIdleIfDone() {
	if len(q.pending) > 0 || len(q.running) > 0 {
		return
	}
	select {
	case <-q.idle:
	default:
		close(q.idle)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func closedChan() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}
