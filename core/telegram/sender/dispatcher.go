package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/relaybot/core/logger"
	"github.com/m3rciful/relaybot/core/telegram/netutil"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ErrQueueClosed is returned when enqueue is attempted after dispatcher stop.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull indicates the queue is saturated and the job was not accepted.
	ErrQueueFull = errors.New("telegram sender: queue full")

	sendFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "relaybot",
		Subsystem: "sender",
		Name:      "failures_total",
		Help:      "Outbound Telegram calls that failed after all retries.",
	}, []string{"action", "kind"})
)

// Options controls the behaviour of the outbound dispatcher.
type Options struct {
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent retrying a single job. A flood-control
	// wait that would overrun it fails the job instead of sleeping.
	MaxDuration time.Duration
}

type job struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
}

// Dispatcher executes outbound Telegram calls with retries, either queued
// (Enqueue) or inline on the caller's goroutine (Do).
type Dispatcher struct {
	opts Options
	jobs chan job
	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup
	errs atomic.Uint64
}

// NewDispatcher starts a dispatcher with sane defaults if options are zeroed.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 2 * time.Second
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 12 * time.Second
	}

	d := &Dispatcher{
		opts: opts,
		jobs: make(chan job, opts.QueueSize),
		stop: make(chan struct{}),
	}

	d.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go d.worker()
	}

	return d
}

// Enqueue schedules the provided function for asynchronous execution.
// The run closure must be idempotent if retries are desired.
func (d *Dispatcher) Enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	select {
	case <-d.stop:
		return ErrQueueClosed
	default:
	}

	j := job{
		ctx:      ctx,
		action:   action,
		endpoint: endpoint,
		run:      run,
	}

	select {
	case d.jobs <- j:
		return nil
	default:
		return ErrQueueFull
	}
}

// Do runs fn on the caller's goroutine with the dispatcher retry policy and
// returns the last error. Background tasks use it when they need the result.
func (d *Dispatcher) Do(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	select {
	case <-d.stop:
		return ErrQueueClosed
	default:
	}
	return d.handleJob(job{ctx: ctx, action: action, endpoint: endpoint, run: run})
}

// ErrorCount returns the number of failed jobs.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.errs.Load()
}

// Close stops workers and waits for them to finish processing queued jobs.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		close(d.stop)
		close(d.jobs)
		d.wg.Wait()
	})
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.jobs {
		_ = d.handleJob(j)
	}
}

func (d *Dispatcher) handleJob(j job) error {
	ctx := j.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, cancel := context.WithTimeout(ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts := d.opts.MaxRetries + 1
	logger.Debug(ctx, "tg.sender", "send.start", sendLogAttrs(j)...)

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = j.run(); err == nil {
			attrs := append(sendLogAttrs(j), slog.Int("attempt", attempt), slog.Duration("elapsed", logger.Took(start)))
			if attempt > 1 {
				logger.Info(ctx, "tg.sender", "send.retry.success", attrs...)
			} else {
				logger.Debug(ctx, "tg.sender", "send.success", attrs...)
			}
			return nil
		}
		if attempt == attempts || !netutil.ShouldRetry(err) {
			break
		}

		wait := d.delay(err, attempt)
		if deadline, ok := runCtx.Deadline(); ok && time.Until(deadline) < wait {
			break
		}
		logger.Debug(ctx, "tg.sender", "send.retry.backoff",
			append(sendLogAttrs(j),
				slog.Int("attempt", attempt),
				slog.String("error_kind", Kind(err)),
				slog.Duration("delay", wait),
			)...,
		)
		if waitErr := sleep(runCtx, wait); waitErr != nil {
			err = errors.Join(err, waitErr)
			break
		}
	}

	d.errs.Add(1)
	kind := Kind(err)
	sendFailures.WithLabelValues(j.action, kind).Inc()
	logger.Error(ctx, "tg.sender", "send.fail",
		append(sendLogAttrs(j),
			slog.String("error", redact(err)),
			slog.String("error_kind", kind),
			slog.Int("attempts", attempts),
			slog.Duration("elapsed", logger.Took(start)),
		)...,
	)
	return err
}

// delay is the linear backoff for attempt, or the flood-control wait when
// Telegram asked for a longer one.
func (d *Dispatcher) delay(err error, attempt int) time.Duration {
	wait := d.opts.RetryBackoff * time.Duration(attempt)
	if ra := retryAfter(err); ra > wait {
		return ra
	}
	return wait
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// sendLogAttrs carries only job fields; the handler adds rid, user and chat
// from ctx.
func sendLogAttrs(j job) []slog.Attr {
	attrs := []slog.Attr{slog.String("action", j.action)}
	if j.endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", j.endpoint))
	}
	return attrs
}
