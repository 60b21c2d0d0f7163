// Package health holds the probes behind the ops listener's healthz and
// readyz endpoints. Liveness is a Fixed probe; readiness combines a
// ShutdownGate with a loaded-content check via All.
package health

import (
	"context"
	"sync/atomic"

	"github.com/keithlinneman/contentd/internal/xerrors"
)

// Probe is evaluated per request by the ops listener's healthz/readyz
// handlers. nil means healthy; a non-nil error carries the reason.
type Probe interface{ Check(context.Context) error }

// CheckFunc adapts a plain function into a Probe.
type CheckFunc func(context.Context) error

func (f CheckFunc) Check(ctx context.Context) error { return f(ctx) }

// Fixed always reports ok, or always fails with reason. The liveness probe
// is Fixed(true): if the process answers at all, it is alive.
func Fixed(ok bool, reason string) CheckFunc {
	if ok {
		return func(context.Context) error { return nil }
	}
	if reason == "" {
		reason = "unhealthy"
	}
	return func(context.Context) error { return xerrors.New(reason) }
}

// All passes only when every probe passes, returning the first failure.
// Nil probes are skipped so callers can pass optional checks directly.
func All(ps ...Probe) CheckFunc {
	return func(ctx context.Context) error {
		for _, p := range ps {
			if p == nil {
				continue
			}
			if err := p.Check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

// Any passes when at least one probe passes. When everything fails the last
// failure is returned; an empty or all-nil list fails too, since there is
// nothing vouching for the process.
func Any(ps ...Probe) CheckFunc {
	return func(ctx context.Context) error {
		var last error
		ok := false
		for _, p := range ps {
			if p == nil {
				continue
			}
			if err := p.Check(ctx); err != nil {
				last = err
			} else {
				ok = true
			}
		}
		if ok {
			return nil
		}
		if last != nil {
			return last
		}
		return xerrors.New("no healthy probes")
	}
}

// ShutdownGate drops readiness when the process starts draining, so the
// load balancer pulls the instance before its listeners close. Probe reads
// are lock-free; Set happens once on the shutdown path.
type ShutdownGate struct {
	draining atomic.Bool
	reason   atomic.Value
}

// Set marks the gate as draining. reason shows up in the readyz body.
func (g *ShutdownGate) Set(reason string) {
	g.draining.Store(true)
	g.reason.Store(reason)
}

// Clear re-arms the gate, mainly for tests.
func (g *ShutdownGate) Clear() {
	g.draining.Store(false)
	g.reason.Store("")
}

// Probe returns the readiness check backed by this gate.
func (g *ShutdownGate) Probe() CheckFunc {
	return func(context.Context) error {
		if !g.draining.Load() {
			return nil
		}
		r, _ := g.reason.Load().(string)
		if r == "" {
			r = "draining"
		}
		return xerrors.New(r)
	}
}
