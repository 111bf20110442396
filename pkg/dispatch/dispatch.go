// Package dispatch invokes the planned backends and collects exactly
// one candidate per invocation, failures included. A misbehaving
// backend can never abort or alter another backend's outcome.
package dispatch

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zen-systems/quorum/pkg/backend"
	"github.com/zen-systems/quorum/pkg/config"
	"github.com/zen-systems/quorum/pkg/selector"
)

// State is the terminal state of one backend invocation.
type State string

const (
	StateSuccess State = "success"
	StateTimeout State = "timeout"
	StateError   State = "error"
	StateEmpty   State = "empty"
)

// Candidate is the record of one backend invocation within a round.
// The validator fills Valid, Quality, and Rejection after dispatch.
type Candidate struct {
	Backend string
	Text    string
	Elapsed time.Duration
	State   State
	Err     error
	Rank    int // selector rank order

	Scored    bool
	Valid     bool
	Quality   float64
	Rejection string
}

// Coordinator runs dispatch plans against a fixed backend set.
type Coordinator struct {
	backends map[string]backend.Backend
	cfg      config.DispatchConfig
	evaluate func(*Candidate)
	debug    bool
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithEvaluator installs the scoring hook run on each candidate as it
// completes in sequential mode. Without it the sequential
// short-circuit never fires.
func WithEvaluator(evaluate func(*Candidate)) Option {
	return func(c *Coordinator) { c.evaluate = evaluate }
}

// WithDebug enables debug logging.
func WithDebug(debug bool) Option {
	return func(c *Coordinator) { c.debug = debug }
}

// New creates a coordinator over the given backends.
func New(backends map[string]backend.Backend, cfg config.DispatchConfig, opts ...Option) *Coordinator {
	c := &Coordinator{backends: backends, cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dispatch executes the plan and returns one candidate per invoked
// backend, in selector rank order. In sequential mode dispatch may
// stop early once a validated candidate clears the short-circuit
// score; backends never invoked produce no candidate.
func (c *Coordinator) Dispatch(ctx context.Context, plan *selector.Plan, query string) []*Candidate {
	if plan == nil || len(plan.Backends) == 0 {
		return nil
	}

	if plan.Parallel {
		return c.dispatchParallel(ctx, plan, query)
	}
	return c.dispatchSequential(ctx, plan, query)
}

func (c *Coordinator) dispatchParallel(ctx context.Context, plan *selector.Plan, query string) []*Candidate {
	results := make([]*Candidate, len(plan.Backends))

	limit := c.cfg.WorkerCap
	if limit <= 0 {
		limit = len(plan.Backends)
	}

	g := &errgroup.Group{}
	g.SetLimit(limit)

	for i, name := range plan.Backends {
		g.Go(func() error {
			results[i] = c.invoke(ctx, name, i, plan.Timeout, query)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (c *Coordinator) dispatchSequential(ctx context.Context, plan *selector.Plan, query string) []*Candidate {
	var results []*Candidate

	for i, name := range plan.Backends {
		cand := c.invoke(ctx, name, i, plan.Timeout, query)
		if c.evaluate != nil {
			c.evaluate(cand)
		}
		results = append(results, cand)

		if !plan.Exhaustive && cand.Scored && cand.Valid && cand.Quality >= c.cfg.ShortCircuitScore {
			if c.debug {
				log.Printf("[dispatch] short-circuit after %s (quality %.2f)", name, cand.Quality)
			}
			break
		}
	}

	return results
}

// invoke runs a single backend call with a uniform timeout and maps
// the outcome to a terminal state. A call that outlives its deadline
// is abandoned; its eventual result is discarded.
func (c *Coordinator) invoke(ctx context.Context, name string, rank int, timeout time.Duration, query string) *Candidate {
	cand := &Candidate{Backend: name, Rank: rank}

	b, ok := c.backends[name]
	if !ok {
		cand.State = StateError
		cand.Err = fmt.Errorf("backend %q not configured", name)
		return cand
	}

	if timeout <= 0 {
		timeout = c.cfg.Timeout()
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		reply *backend.Reply
		err   error
	}
	done := make(chan outcome, 1)

	start := time.Now()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("backend %q panicked: %v", name, r)}
			}
		}()
		reply, err := b.Invoke(callCtx, query)
		done <- outcome{reply: reply, err: err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-callCtx.Done():
		cand.Elapsed = time.Since(start)
		cand.State = StateTimeout
		cand.Err = callCtx.Err()
		if c.debug {
			log.Printf("[dispatch] %s abandoned after %s", name, cand.Elapsed)
		}
		return cand
	}

	cand.Elapsed = time.Since(start)

	switch {
	case out.err != nil:
		if backend.IsTimeout(out.err) {
			cand.State = StateTimeout
		} else {
			cand.State = StateError
		}
		cand.Err = out.err
	case out.reply == nil || strings.TrimSpace(out.reply.Text) == "":
		cand.State = StateEmpty
	default:
		cand.State = StateSuccess
		cand.Text = out.reply.Text
		if out.reply.Elapsed > 0 {
			cand.Elapsed = out.reply.Elapsed
		}
	}

	if c.debug {
		log.Printf("[dispatch] %s finished state=%s in %s", name, cand.State, cand.Elapsed)
	}
	return cand
}
