// Package reconcile runs follow-up work that must eventually succeed after a
// repository operation has already returned, such as dropping a deleted
// volume from the search index or removing its blobs.
package reconcile

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

var (
	ErrQueueFull    = errors.New("reconcile queue is full")
	ErrQueueStopped = errors.New("reconcile queue is stopped")
)

// Config controls the queue capacity and the retry schedule of each task.
type Config struct {
	QueueSize    int
	MaxAttempts  uint
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// DrainTimeout bounds how long Run keeps working through queued tasks after
	// its context is cancelled.
	DrainTimeout time.Duration
}

// Task is a named unit of idempotent work.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

type metrics struct {
	queueDepth prometheus.Gauge
	tasks      *prometheus.CounterVec
	retries    prometheus.Counter
}

// Queue retries submitted tasks with exponential backoff on a single worker.
type Queue struct {
	cfg     Config
	log     zerolog.Logger
	tasks   chan Task
	metrics *metrics

	mu      sync.Mutex
	running bool
	stopped bool
}

// New creates a queue and registers its metrics with reg.
func New(cfg Config, log zerolog.Logger, reg prometheus.Registerer) (*Queue, error) {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 200 * time.Millisecond
	}
	if cfg.MaxDelay < cfg.InitialDelay {
		cfg.MaxDelay = cfg.InitialDelay
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 10 * time.Second
	}

	m := &metrics{
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reconcile_queue_depth",
			Help: "Number of reconcile tasks waiting to run.",
		}),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reconcile_tasks_total",
			Help: "Reconcile tasks by outcome.",
		}, []string{"result"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reconcile_retries_total",
			Help: "Failed reconcile attempts that were retried.",
		}),
	}
	for _, c := range []prometheus.Collector{m.queueDepth, m.tasks, m.retries} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return &Queue{
		cfg:     cfg,
		log:     log,
		tasks:   make(chan Task, cfg.QueueSize),
		metrics: m,
	}, nil
}

// Submit enqueues a task without blocking. Tasks submitted before Run starts
// are kept and processed once it does.
func (q *Queue) Submit(name string, fn func(ctx context.Context) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return ErrQueueStopped
	}

	select {
	case q.tasks <- Task{Name: name, Run: fn}:
		q.metrics.queueDepth.Set(float64(len(q.tasks)))
		return nil
	default:
		q.metrics.tasks.WithLabelValues("dropped").Inc()
		return ErrQueueFull
	}
}

// Run processes tasks until ctx is cancelled. It then refuses new tasks and
// drains the ones already queued, giving them up to DrainTimeout in total.
func (q *Queue) Run(ctx context.Context) error {
	q.mu.Lock()
	if q.running || q.stopped {
		q.mu.Unlock()
		return errors.New("reconcile queue already started")
	}
	q.running = true
	q.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			q.drain(ctx)
			return nil
		case t := <-q.tasks:
			q.metrics.queueDepth.Set(float64(len(q.tasks)))
			if ctx.Err() != nil {
				q.drain(ctx, t)
				return nil
			}
			q.process(ctx, t)
		}
	}
}

func (q *Queue) process(ctx context.Context, t Task) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = q.cfg.InitialDelay
	b.MaxInterval = q.cfg.MaxDelay

	log := q.log.With().Str("task", t.Name).Logger()

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, t.Run(ctx)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(q.cfg.MaxAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			q.metrics.retries.Inc()
			log.Warn().Err(err).Dur("retry_in", next).Msg("reconcile attempt failed")
		}),
	)
	if err != nil {
		q.metrics.tasks.WithLabelValues("failed").Inc()
		log.Error().Err(err).Msg("reconcile task gave up, left for the startup sweep")
		return
	}
	q.metrics.tasks.WithLabelValues("succeeded").Inc()
	log.Debug().Msg("reconcile task done")
}

// drain runs pending and then everything left in the channel on a context that
// outlives parent by at most DrainTimeout.
func (q *Queue) drain(parent context.Context, pending ...Task) {
	q.mu.Lock()
	q.stopped = true
	q.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), q.cfg.DrainTimeout)
	defer cancel()

	run := func(t Task) {
		if ctx.Err() != nil {
			q.metrics.tasks.WithLabelValues("abandoned").Inc()
			q.log.Warn().Str("task", t.Name).Msg("reconcile task abandoned, drain timed out")
			return
		}
		q.process(ctx, t)
	}
	for _, t := range pending {
		run(t)
	}
	for {
		select {
		case t := <-q.tasks:
			q.metrics.queueDepth.Set(float64(len(q.tasks)))
			run(t)
		default:
			q.metrics.queueDepth.Set(0)
			return
		}
	}
}
