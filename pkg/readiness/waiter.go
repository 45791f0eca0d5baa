package readiness

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type State int

const (
	StateWaiting State = iota
	StateReady
	StateTimedOut
	StateCanceled
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateReady:
		return "ready"
	case StateTimedOut:
		return "timed-out"
	case StateCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

var (
	ErrTimeout  = errors.New("readiness timeout")
	ErrCanceled = errors.New("readiness wait canceled")

	errNotReady = errors.New("not ready")
)

type Result struct {
	Service  string
	State    State
	Attempts int
	Elapsed  time.Duration
	// LastErr is the last checker error, if any. Checker errors never end a wait.
	LastErr error
}

func (r Result) Ready() bool { return r.State == StateReady }

// Err is nil for READY and WAITING, and wraps ErrTimeout or ErrCanceled otherwise.
func (r Result) Err() error {
	switch r.State {
	case StateTimedOut:
		return errors.Wrapf(ErrTimeout, "%s not ready after %s (%d checks)", r.Service, r.Elapsed.Round(time.Second), r.Attempts)
	case StateCanceled:
		return errors.Wrapf(ErrCanceled, "%s", r.Service)
	default:
		return nil
	}
}

type Options struct {
	// Interval is the first delay between checks.
	Interval time.Duration
	// MaxInterval caps the exponential growth of the delay.
	MaxInterval time.Duration
	Multiplier  float64
	// Timeout bounds the whole wait; 0 waits until ctx is done.
	Timeout time.Duration
	// AttemptTimeout bounds one IsReady call.
	AttemptTimeout time.Duration
}

type Waiter struct {
	opts Options
}

func NewWaiter(opts Options) *Waiter {
	if opts.Interval <= 0 {
		opts.Interval = 1 * time.Second
	}
	if opts.MaxInterval <= 0 {
		opts.MaxInterval = 30 * time.Second
	}
	if opts.MaxInterval < opts.Interval {
		opts.MaxInterval = opts.Interval
	}
	if opts.Multiplier < 1 {
		opts.Multiplier = 2
	}
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = 30 * time.Second
	}
	return &Waiter{opts: opts}
}

func (w *Waiter) Options() Options { return w.opts }

// Probe performs a single check and never blocks longer than one attempt.
func (w *Waiter) Probe(ctx context.Context, service string, c Checker) Result {
	start := time.Now()
	ready, err := w.check(ctx, c)
	res := Result{Service: service, State: StateWaiting, Attempts: 1, Elapsed: time.Since(start), LastErr: err}
	if ready {
		res.State = StateReady
	}
	return res
}

// Wait checks until c reports ready, the timeout elapses or ctx is done.
// Delays grow exponentially from Interval up to MaxInterval.
func (w *Waiter) Wait(ctx context.Context, service string, c Checker) Result {
	start := time.Now()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.opts.Interval
	b.MaxInterval = w.opts.MaxInterval
	b.Multiplier = w.opts.Multiplier
	b.RandomizationFactor = 0
	b.MaxElapsedTime = w.opts.Timeout

	res := Result{Service: service, State: StateWaiting}
	op := func() error {
		res.Attempts++
		ready, err := w.check(ctx, c)
		if err != nil {
			res.LastErr = err
			log.Debug().Err(err).Str("service", service).Int("attempt", res.Attempts).Msg("readiness check failed")
		}
		if !ready {
			return errNotReady
		}
		return nil
	}
	notify := func(_ error, next time.Duration) {
		log.Debug().Str("service", service).Int("attempt", res.Attempts).Dur("next", next).Msg("not ready yet")
	}

	err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify)
	res.Elapsed = time.Since(start)
	switch {
	case err == nil:
		res.State = StateReady
	case ctx.Err() != nil:
		res.State = StateCanceled
	default:
		res.State = StateTimedOut
	}
	log.Debug().Str("service", service).Stringer("state", res.State).Int("attempts", res.Attempts).Dur("elapsed", res.Elapsed).Msg("readiness wait finished")
	return res
}

func (w *Waiter) check(ctx context.Context, c Checker) (bool, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, w.opts.AttemptTimeout)
	defer cancel()
	return c.IsReady(attemptCtx)
}
