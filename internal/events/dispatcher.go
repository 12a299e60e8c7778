// Package events runs best-effort work after a request has been answered and
// publishes realtime platform events.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/debugmarathon/apiserver/internal/logging"
	"github.com/debugmarathon/apiserver/internal/metrics"
)

// Dispatcher defaults.
const (
	DefaultQueueSize   = 256
	DefaultTaskTimeout = 5 * time.Second
)

// Task is a named unit of background work.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	// QueueSize bounds the number of pending tasks.
	// Defaults to DefaultQueueSize if zero or negative.
	QueueSize int

	// TaskTimeout bounds each task run.
	// Defaults to DefaultTaskTimeout if zero or negative.
	TaskTimeout time.Duration
}

// Dispatcher runs tasks on a single worker goroutine fed by a bounded queue.
// Submit never blocks: when the queue is full the task is dropped and
// counted. Task failures are logged and never propagate to the submitter.
type Dispatcher struct {
	logger  *slog.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan Task

	// base is cancelled on Close after the queue drains.
	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDispatcher creates a Dispatcher and starts its worker.
func NewDispatcher(cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	size := cfg.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}
	timeout := cfg.TaskTimeout
	if timeout <= 0 {
		timeout = DefaultTaskTimeout
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	base, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		logger:  logger,
		timeout: timeout,
		queue:   make(chan Task, size),
		base:    base,
		cancel:  cancel,
	}

	d.wg.Add(1)
	go d.run()

	return d
}

// Submit enqueues a task. It reports false when the task was dropped
// because the queue is full or the dispatcher is closed.
func (d *Dispatcher) Submit(name string, run func(ctx context.Context) error) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		metrics.RecordDroppedTask(name)
		return false
	}

	select {
	case d.queue <- Task{Name: name, Run: run}:
		return true
	default:
		metrics.RecordDroppedTask(name)
		d.logger.Warn("background queue full, task dropped", "task", name)
		return false
	}
}

// Close stops accepting tasks, runs what is already queued and waits for
// the worker to exit. It is safe to call more than once.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	d.wg.Wait()
	d.cancel()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for task := range d.queue {
		d.execute(task)
	}
}

func (d *Dispatcher) execute(task Task) {
	ctx, cancel := context.WithTimeout(d.base, d.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			metrics.RecordTask(task.Name, metrics.TaskError)
			d.logger.Error("background task panicked", "task", task.Name, "panic", r)
		}
	}()

	if err := task.Run(ctx); err != nil {
		metrics.RecordTask(task.Name, metrics.TaskError)
		logging.LogError(ctx, d.logger.With("task", task.Name), "background task failed", err)
		return
	}
	metrics.RecordTask(task.Name, metrics.TaskSuccess)
}
