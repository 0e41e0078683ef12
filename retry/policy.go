// Package retry implements the capped-exponential RetryPolicy and drives
// retryable operations with it. Only transport-layer failures are
// retried; protocol and parser errors fail fast (spec §4.6, §7).
package retry

import (
	"context"
	"math"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/blockpoll/devicesdk/sdkerr"
)

// Policy is an exponential backoff with a capped delay and a fixed
// attempt budget. See Delays for the exact sequence it generates.
type Policy struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	BackoffFactor float64
	MaxDelay      time.Duration
}

// Default returns a conservative policy: 3 attempts, 1s initial delay,
// factor 2.0, capped at 5s.
func Default() Policy {
	return Policy{MaxAttempts: 3, InitialDelay: time.Second, BackoffFactor: 2.0, MaxDelay: 5 * time.Second}
}

// Validate enforces the policy construction invariants from spec §3.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return sdkerr.ConfigError("max_attempts must be >= 1, got %d", p.MaxAttempts)
	}
	if p.InitialDelay <= 0 {
		return sdkerr.ConfigError("initial_delay must be > 0, got %v", p.InitialDelay)
	}
	if math.IsNaN(float64(p.InitialDelay)) || math.IsInf(float64(p.InitialDelay), 0) {
		return sdkerr.ConfigError("initial_delay must be finite")
	}
	if p.BackoffFactor < 1.0 {
		return sdkerr.ConfigError("backoff_factor must be >= 1.0, got %v", p.BackoffFactor)
	}
	if p.MaxDelay < p.InitialDelay {
		return sdkerr.ConfigError("max_delay must be >= initial_delay, got %v < %v", p.MaxDelay, p.InitialDelay)
	}
	return nil
}

// Delays returns the capped-exponential delay sequence:
// min(initial_delay * backoff_factor^i, max_delay) for i in [0, max_attempts-2].
// len(Delays()) == MaxAttempts-1 always.
func (p Policy) Delays() []time.Duration {
	n := p.MaxAttempts - 1
	if n <= 0 {
		return nil
	}
	out := make([]time.Duration, n)
	for i := 0; i < n; i++ {
		d := time.Duration(float64(p.InitialDelay) * math.Pow(p.BackoffFactor, float64(i)))
		if d > p.MaxDelay || d < 0 {
			d = p.MaxDelay
		}
		out[i] = d
	}
	return out
}

// adapter implements backoff.BackOff over Policy's precomputed delay
// sequence, so github.com/cenkalti/backoff drives the actual sleeping.
type adapter struct {
	delays  []time.Duration
	attempt int
}

func newAdapter(p Policy) *adapter {
	return &adapter{delays: p.Delays()}
}

func (a *adapter) NextBackOff() time.Duration {
	if a.attempt >= len(a.delays) {
		return backoff.Stop
	}
	d := a.delays[a.attempt]
	a.attempt++
	return d
}

func (a *adapter) Reset() { a.attempt = 0 }

// Op is a retryable unit of work. Context cancellation should make it
// return promptly.
type Op func(ctx context.Context) error

// Do runs op, retrying only on sdkerr TransportErrors per the policy's
// delay sequence. ParserErrors and ProtocolErrors fail immediately with
// no retry. After the attempt budget is exhausted, the last transport
// error is returned.
func (p Policy) Do(ctx context.Context, op Op) error {
	a := newAdapter(p)
	operation := func() error {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if sdkerr.Is(err, sdkerr.KindTransport) {
			return err
		}
		return backoff.Permanent(err)
	}

	notify := func(err error, wait time.Duration) {}

	withCtx := backoff.WithContext(a, ctx)
	return backoff.RetryNotify(operation, withCtx, notify)
}
