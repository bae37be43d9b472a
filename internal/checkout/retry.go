package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// RetryPolicy drives the status poll: one check after InitialDelay, then one
// every Interval, at most MaxAttempts checks. There is no backoff.
type RetryPolicy struct {
	InitialDelay time.Duration
	Interval     time.Duration
	MaxAttempts  int
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialDelay: 5 * time.Second,
		Interval:     10 * time.Second,
		MaxAttempts:  30,
	}
}

type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeSuccess
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailed:
		return "failed"
	default:
		return "pending"
	}
}

// Status is one classified status check.
type Status struct {
	Outcome       Outcome
	Code          string
	TransactionID string
}

// CheckFunc performs one status check. A non-nil error is a transport
// failure and is retried under the same policy.
type CheckFunc func(ctx context.Context) (Status, error)

type Poller struct {
	policy RetryPolicy
	log    *zerolog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewPoller(policy RetryPolicy, log *zerolog.Logger) *Poller {
	return &Poller{policy: policy, log: log, sleep: sleepCtx}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Handle controls one running poll.
type Handle struct {
	cancel   context.CancelFunc
	done     chan struct{}
	status   Status
	err      error
	attempts int
}

func (h *Handle) Cancel() { h.cancel() }

func (h *Handle) Done() <-chan struct{} { return h.done }

// Result is valid once Done is closed.
func (h *Handle) Result() (Status, error) {
	<-h.done
	return h.status, h.err
}

// Attempts is the number of checks issued; valid once Done is closed.
func (h *Handle) Attempts() int {
	<-h.done
	return h.attempts
}

// Start runs the poll in the background. It ends with a success status,
// ErrPaymentFailed, ErrPaymentTimeout or the context error.
func (p *Poller) Start(ctx context.Context, check CheckFunc) *Handle {
	cctx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		defer cancel()
		h.status, h.err = p.run(cctx, check, &h.attempts)
	}()
	return h
}

func (p *Poller) run(ctx context.Context, check CheckFunc, attempts *int) (Status, error) {
	if err := p.sleep(ctx, p.policy.InitialDelay); err != nil {
		return Status{}, err
	}
	var last Status
	for attempt := 1; attempt <= p.policy.MaxAttempts; attempt++ {
		*attempts = attempt
		st, err := check(ctx)
		switch {
		case err != nil && ctx.Err() != nil:
			return Status{}, ctx.Err()
		case err != nil:
			p.log.Warn().Err(err).Int("attempt", attempt).Msg("status check failed, retrying")
		case st.Outcome == OutcomeSuccess:
			p.log.Info().Int("attempt", attempt).Str("transaction_id", st.TransactionID).Msg("payment confirmed")
			return st, nil
		case st.Outcome == OutcomeFailed:
			p.log.Warn().Int("attempt", attempt).Str("code", st.Code).Msg("payment reported failed")
			return st, ErrPaymentFailed
		default:
			last = st
			p.log.Debug().Int("attempt", attempt).Msg("payment pending")
		}

		if attempt == p.policy.MaxAttempts {
			break
		}
		if err := p.sleep(ctx, p.policy.Interval); err != nil {
			return Status{}, err
		}
	}
	return last, ErrPaymentTimeout
}

// IsTerminalNotice reports whether err is an outcome shown to the user rather
// than a cancellation.
func IsTerminalNotice(err error) bool {
	return errors.Is(err, ErrPaymentFailed) || errors.Is(err, ErrPaymentTimeout)
}
