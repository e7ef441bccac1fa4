package generator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"ICPVanity/internal/identity"
	"ICPVanity/internal/patterns"
	"ICPVanity/pkg/logx"
)

var (
	// ErrExhausted is returned when MaxAttempts or MaxDuration is reached.
	ErrExhausted = errors.New("search exhausted")
	// ErrCancelled is returned when the caller's context ends the search.
	ErrCancelled = errors.New("search cancelled")
)

// Factory is the identity source the loop draws from.
type Factory interface {
	Create() (identity.Identity, error)
}

type State int

const (
	StateSearching State = iota
	StateMatched
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateSearching:
		return "SEARCHING"
	case StateMatched:
		return "MATCHED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

type Progress struct {
	Iterations uint64
	Elapsed    time.Duration
	Sample     string  // a principal generated near this iteration
	Rate       float64 // attempts per second since start
}

// Observer receives progress events. Calls are serialized by the Engine and
// Iterations strictly increase within one search. With several workers an
// event that loses the race to a later one is dropped, so cadence is best
// effort there.
type Observer interface {
	OnProgress(p Progress)
}

type ObserverFunc func(p Progress)

func (f ObserverFunc) OnProgress(p Progress) { f(p) }

type nopObserver struct{}

func (nopObserver) OnProgress(Progress) {}

type Result struct {
	Principal  string
	Mnemonic   string
	PrivateKey []byte
	Iterations uint64
	Elapsed    time.Duration
}

func (r *Result) ElapsedSeconds() float64 { return r.Elapsed.Seconds() }

// Rate is attempts per second over the whole search.
func (r *Result) Rate() float64 {
	return rate(r.Iterations, r.Elapsed)
}

// Engine runs one search at a time; SearchMultiple runs them back to back.
type Engine struct {
	factory Factory
	opt     Options

	obsMu    sync.Mutex
	obs      Observer
	lastSeen uint64 // iterations of the last emitted event, guarded by obsMu
}

func New(factory Factory, opt Options, obs Observer) *Engine {
	if obs == nil {
		obs = nopObserver{}
	}
	return &Engine{factory: factory, opt: opt.withDefaults(), obs: obs}
}

// Search runs until a principal starting with prefix is found, the context
// is cancelled, a bound is hit or the factory fails persistently.
func (e *Engine) Search(ctx context.Context, prefix string) (*Result, error) {
	m := patterns.Prefix(prefix)
	e.resetProgress()
	if e.opt.Workers == 1 {
		return e.searchSequential(ctx, m)
	}
	return e.searchParallel(ctx, m)
}

// SearchMultiple runs count independent searches one after another. onResult,
// if set, is called after each match. Results found before a failure are
// returned along with the error.
func (e *Engine) SearchMultiple(ctx context.Context, prefix string, count int, onResult func(i int, r *Result)) ([]*Result, error) {
	out := make([]*Result, 0, count)
	for i := 0; i < count; i++ {
		res, err := e.Search(ctx, prefix)
		if err != nil {
			return out, fmt.Errorf("run %d/%d: %w", i+1, count, err)
		}
		out = append(out, res)
		if onResult != nil {
			onResult(i, res)
		}
	}
	return out, nil
}

// =============================== SEQUENTIAL ===============================

type run struct {
	e       *Engine
	matcher patterns.Matcher
	start   time.Time

	state      State
	iterations uint64
	sample     string
	result     *Result
	err        error
}

func (e *Engine) searchSequential(ctx context.Context, m patterns.Matcher) (*Result, error) {
	r := &run{e: e, matcher: m, start: e.opt.Now(), state: StateSearching}
	for r.state == StateSearching {
		r.step(ctx)
	}
	if r.state == StateFailed {
		return nil, r.err
	}
	return r.result, nil
}

func (r *run) step(ctx context.Context) {
	if err := ctx.Err(); err != nil {
		r.fail(fmt.Errorf("%w: %w", ErrCancelled, err))
		return
	}
	if err := r.e.checkBounds(r.iterations, r.start); err != nil {
		r.fail(err)
		return
	}

	r.iterations++
	id, err := r.e.factory.Create()
	switch {
	case errors.Is(err, identity.ErrDerivation):
		logx.S().Debugw("attempt discarded", "iteration", r.iterations, "err", err)
	case err != nil:
		r.fail(err)
		return
	case r.matcher.Match(id.Principal):
		r.result = newResult(id, r.iterations, r.e.opt.Now().Sub(r.start))
		r.state = StateMatched
		return
	default:
		r.sample = id.Principal
	}

	if r.iterations%r.e.opt.ProgressEvery == 0 {
		r.e.emit(r.iterations, r.start, r.sample)
	}
}

func (r *run) fail(err error) {
	r.err = err
	r.state = StateFailed
}

// =============================== PARALLEL ===============================

func (e *Engine) searchParallel(parent context.Context, m patterns.Matcher) (*Result, error) {
	start := e.opt.Now()
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	attempts := atomic.NewUint64(0)
	var (
		once   sync.Once
		result *Result
	)
	found := func(id identity.Identity) {
		once.Do(func() {
			result = newResult(id, 0, 0)
			cancel()
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < e.opt.Workers; i++ {
		g.Go(func() error {
			return e.worker(gctx, m, start, attempts, found)
		})
	}
	err := g.Wait()

	if result != nil {
		result.Iterations = attempts.Load()
		result.Elapsed = e.opt.Now().Sub(start)
		return result, nil
	}
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %w", ErrCancelled, parent.Err())
}

func (e *Engine) worker(
	ctx context.Context,
	m patterns.Matcher,
	start time.Time,
	attempts *atomic.Uint64,
	found func(identity.Identity),
) error {
	var sample string
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := e.checkBounds(attempts.Load(), start); err != nil {
			return err
		}
		n := attempts.Inc()
		if e.opt.MaxAttempts > 0 && n > e.opt.MaxAttempts {
			attempts.Dec()
			return fmt.Errorf("%w: %d attempts", ErrExhausted, e.opt.MaxAttempts)
		}

		id, err := e.factory.Create()
		switch {
		case errors.Is(err, identity.ErrDerivation):
			logx.S().Debugw("attempt discarded", "iteration", n, "err", err)
		case err != nil:
			return err
		case m.Match(id.Principal):
			found(id)
			return nil
		default:
			sample = id.Principal
		}
		if n%e.opt.ProgressEvery == 0 {
			e.emit(n, start, sample)
		}
	}
}

// ------------------------------- helpers ------------------------------------

func (e *Engine) checkBounds(iterations uint64, start time.Time) error {
	if e.opt.MaxAttempts > 0 && iterations >= e.opt.MaxAttempts {
		return fmt.Errorf("%w: %d attempts", ErrExhausted, e.opt.MaxAttempts)
	}
	if e.opt.MaxDuration > 0 {
		if elapsed := e.opt.Now().Sub(start); elapsed >= e.opt.MaxDuration {
			return fmt.Errorf("%w: %s elapsed", ErrExhausted, humanDuration(elapsed))
		}
	}
	return nil
}

func (e *Engine) resetProgress() {
	e.obsMu.Lock()
	e.lastSeen = 0
	e.obsMu.Unlock()
}

func (e *Engine) emit(iterations uint64, start time.Time, sample string) {
	e.obsMu.Lock()
	defer e.obsMu.Unlock()
	if iterations <= e.lastSeen {
		return
	}
	e.lastSeen = iterations
	elapsed := e.opt.Now().Sub(start)
	e.obs.OnProgress(Progress{
		Iterations: iterations,
		Elapsed:    elapsed,
		Sample:     sample,
		Rate:       rate(iterations, elapsed),
	})
}

func newResult(id identity.Identity, iterations uint64, elapsed time.Duration) *Result {
	return &Result{
		Principal:  id.Principal,
		Mnemonic:   id.Mnemonic,
		PrivateKey: id.PrivateKey,
		Iterations: iterations,
		Elapsed:    elapsed,
	}
}

func rate(n uint64, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(n) / d.Seconds()
}

func humanDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
}
