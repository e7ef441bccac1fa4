package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"ICPVanity/internal/identity"
)

// scriptedFactory returns "miss-<n>" principals and "hit-<n>" on the call
// indexes listed in hits. Errors listed in errs are returned instead.
type scriptedFactory struct {
	calls atomic.Uint64
	hits  map[uint64]bool
	errs  map[uint64]error
	seen  sync.Map // principal -> struct{}
}

func (f *scriptedFactory) Create() (identity.Identity, error) {
	n := f.calls.Inc()
	if err, ok := f.errs[n]; ok {
		return identity.Identity{}, err
	}
	p := fmt.Sprintf("miss-%d", n)
	if f.hits[n] {
		p = fmt.Sprintf("hit-%d", n)
	}
	f.seen.Store(p, struct{}{})
	return identity.Identity{Principal: p, Mnemonic: "words " + p, PrivateKey: []byte{byte(n)}}, nil
}

// stepClock advances by step on every call after the first.
type stepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
	used bool
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.used {
		c.now = c.now.Add(c.step)
	}
	c.used = true
	return c.now
}

type recorder struct {
	mu     sync.Mutex
	events []Progress
}

func (r *recorder) OnProgress(p Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, p)
}

func TestEmptyPrefixMatchesFirstAttempt(t *testing.T) {
	f := &scriptedFactory{}
	e := New(f, Options{}, nil)

	res, err := e.Search(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.Iterations)
	assert.Equal(t, "miss-1", res.Principal)
	assert.Equal(t, uint64(1), f.calls.Load())
}

func TestSearchStopsAtFirstMatch(t *testing.T) {
	f := &scriptedFactory{hits: map[uint64]bool{7: true, 9: true}}
	e := New(f, Options{}, nil)

	res, err := e.Search(context.Background(), "hit")
	require.NoError(t, err)
	assert.Equal(t, "hit-7", res.Principal)
	assert.Equal(t, "words hit-7", res.Mnemonic)
	assert.Equal(t, uint64(7), res.Iterations)
	assert.True(t, strings.HasPrefix(res.Principal, "hit"))

	for i := 1; i < 7; i++ {
		_, ok := f.seen.Load(fmt.Sprintf("miss-%d", i))
		assert.True(t, ok, "attempt %d should have been a miss", i)
	}
}

func TestProgressCadence(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	calls := 0
	clock := func() time.Time {
		calls++
		if calls == 1 {
			return start
		}
		return start.Add(5 * time.Second)
	}
	f := &scriptedFactory{hits: map[uint64]bool{150_000: true}}
	rec := &recorder{}
	e := New(f, Options{Now: clock}, rec)

	res, err := e.Search(context.Background(), "hit")
	require.NoError(t, err)
	assert.Equal(t, uint64(150_000), res.Iterations)

	require.Len(t, rec.events, 1)
	ev := rec.events[0]
	assert.Equal(t, uint64(100_000), ev.Iterations)
	assert.Equal(t, "miss-100000", ev.Sample)
	assert.Equal(t, 5*time.Second, ev.Elapsed)
	assert.InDelta(t, 100_000.0/5.0, ev.Rate, 0.5)
}

func TestProgressEveryOption(t *testing.T) {
	f := &scriptedFactory{hits: map[uint64]bool{10: true}}
	rec := &recorder{}
	e := New(f, Options{ProgressEvery: 3}, rec)

	_, err := e.Search(context.Background(), "hit")
	require.NoError(t, err)
	require.Len(t, rec.events, 3)
	assert.Equal(t, uint64(3), rec.events[0].Iterations)
	assert.Equal(t, uint64(9), rec.events[2].Iterations)
}

func TestDerivationErrorIsSkipped(t *testing.T) {
	f := &scriptedFactory{
		hits: map[uint64]bool{3: true},
		errs: map[uint64]error{2: fmt.Errorf("%w: zero scalar", identity.ErrDerivation)},
	}
	e := New(f, Options{}, nil)

	res, err := e.Search(context.Background(), "hit")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), res.Iterations)
}

func TestProgressOnDiscardedAttempt(t *testing.T) {
	derr := fmt.Errorf("%w: zero scalar", identity.ErrDerivation)
	f := &scriptedFactory{
		hits: map[uint64]bool{7: true},
		errs: map[uint64]error{3: derr, 6: derr},
	}
	rec := &recorder{}
	e := New(f, Options{ProgressEvery: 3}, rec)

	_, err := e.Search(context.Background(), "hit")
	require.NoError(t, err)
	require.Len(t, rec.events, 2)
	assert.Equal(t, uint64(3), rec.events[0].Iterations)
	assert.Equal(t, "miss-2", rec.events[0].Sample)
	assert.Equal(t, uint64(6), rec.events[1].Iterations)
	assert.Equal(t, "miss-5", rec.events[1].Sample)
}

func TestParallelProgressOnDiscardedAttempts(t *testing.T) {
	errs := make(map[uint64]error)
	for i := uint64(1); i <= 40; i++ {
		errs[i] = fmt.Errorf("%w: zero scalar", identity.ErrDerivation)
	}
	f := &scriptedFactory{hits: map[uint64]bool{41: true, 42: true, 43: true, 44: true}, errs: errs}
	rec := &recorder{}
	e := New(f, Options{Workers: 4, ProgressEvery: 5}, rec)

	_, err := e.Search(context.Background(), "hit")
	require.NoError(t, err)
	require.NotEmpty(t, rec.events)
	var last uint64
	for _, ev := range rec.events {
		assert.Zero(t, ev.Iterations%5)
		assert.Greater(t, ev.Iterations, last)
		last = ev.Iterations
	}
}

func TestProgressNeverGoesBackwards(t *testing.T) {
	rec := &recorder{}
	e := New(&scriptedFactory{hits: map[uint64]bool{4: true}}, Options{ProgressEvery: 2}, rec)
	start := time.Now()

	e.emit(200, start, "a")
	e.emit(100, start, "b")
	e.emit(300, start, "c")
	require.Len(t, rec.events, 2)
	assert.Equal(t, uint64(200), rec.events[0].Iterations)
	assert.Equal(t, uint64(300), rec.events[1].Iterations)

	// a new search starts counting again
	_, err := e.Search(context.Background(), "hit")
	require.NoError(t, err)
	require.Len(t, rec.events, 3)
	assert.Equal(t, uint64(2), rec.events[2].Iterations)
}

func TestEntropyErrorFails(t *testing.T) {
	f := &scriptedFactory{errs: map[uint64]error{4: fmt.Errorf("%w: closed", identity.ErrEntropySource)}}
	e := New(f, Options{}, nil)

	_, err := e.Search(context.Background(), "hit")
	require.Error(t, err)
	assert.ErrorIs(t, err, identity.ErrEntropySource)
	assert.Equal(t, uint64(4), f.calls.Load())
}

func TestMaxAttempts(t *testing.T) {
	f := &scriptedFactory{}
	e := New(f, Options{MaxAttempts: 25}, nil)

	_, err := e.Search(context.Background(), "hit")
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, uint64(25), f.calls.Load())
}

func TestMaxDuration(t *testing.T) {
	clock := &stepClock{now: time.Unix(0, 0), step: time.Second}
	f := &scriptedFactory{}
	e := New(f, Options{MaxDuration: 10 * time.Second, Now: clock.Now}, nil)

	_, err := e.Search(context.Background(), "hit")
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Less(t, f.calls.Load(), uint64(11))
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(&scriptedFactory{}, Options{}, nil).Search(ctx, "hit")
	assert.ErrorIs(t, err, ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSearchMultipleIndependentRuns(t *testing.T) {
	f := &scriptedFactory{hits: map[uint64]bool{2: true, 5: true}}
	e := New(f, Options{}, nil)

	var seen []int
	out, err := e.SearchMultiple(context.Background(), "hit", 2, func(i int, r *Result) {
		seen = append(seen, i)
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, []int{0, 1}, seen)
	assert.Equal(t, "hit-2", out[0].Principal)
	assert.Equal(t, uint64(2), out[0].Iterations)
	assert.Equal(t, "hit-5", out[1].Principal)
	assert.Equal(t, uint64(3), out[1].Iterations)
	assert.NotEqual(t, out[0].Mnemonic, out[1].Mnemonic)
}

func TestSearchMultipleReturnsPartialOnFailure(t *testing.T) {
	f := &scriptedFactory{hits: map[uint64]bool{1: true}}
	e := New(f, Options{MaxAttempts: 3}, nil)

	out, err := e.SearchMultiple(context.Background(), "hit", 3, nil)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Len(t, out, 1)
}

func TestSearchMultipleRealFactoryDistinct(t *testing.T) {
	e := New(identity.NewFactory(), Options{}, nil)
	out, err := e.SearchMultiple(context.Background(), "", 2, nil)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.NotEqual(t, out[0].Principal, out[1].Principal)
	assert.NotEqual(t, out[0].Mnemonic, out[1].Mnemonic)
}

func TestParallelSingleResult(t *testing.T) {
	f := &scriptedFactory{hits: map[uint64]bool{500: true, 501: true, 502: true}}
	rec := &recorder{}
	e := New(f, Options{Workers: 8, ProgressEvery: 100}, rec)

	res, err := e.Search(context.Background(), "hit")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, strings.HasPrefix(res.Principal, "hit-50"))
	assert.GreaterOrEqual(t, res.Iterations, f.calls.Load())
	assert.GreaterOrEqual(t, res.Iterations, uint64(500))
	assert.NotEmpty(t, rec.events)
}

func TestParallelFatalError(t *testing.T) {
	f := &scriptedFactory{errs: map[uint64]error{50: fmt.Errorf("%w: gone", identity.ErrEntropySource)}}
	e := New(f, Options{Workers: 4}, nil)

	_, err := e.Search(context.Background(), "hit")
	assert.ErrorIs(t, err, identity.ErrEntropySource)
}

func TestParallelMaxAttempts(t *testing.T) {
	f := &scriptedFactory{}
	e := New(f, Options{Workers: 4, MaxAttempts: 1000}, nil)

	_, err := e.Search(context.Background(), "hit")
	assert.ErrorIs(t, err, ErrExhausted)
	assert.LessOrEqual(t, f.calls.Load(), uint64(1000))
}

func TestParallelCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := New(&scriptedFactory{}, Options{Workers: 3}, nil).Search(ctx, "hit")
	assert.True(t, errors.Is(err, ErrCancelled))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestResultRate(t *testing.T) {
	r := &Result{Iterations: 300, Elapsed: 1500 * time.Millisecond}
	assert.InDelta(t, 200.0, r.Rate(), 1e-9)
	assert.InDelta(t, 1.5, r.ElapsedSeconds(), 1e-9)
	assert.Zero(t, (&Result{Iterations: 3}).Rate())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "SEARCHING", StateSearching.String())
	assert.Equal(t, "MATCHED", StateMatched.String())
	assert.Equal(t, "FAILED", StateFailed.String())
}

func TestHumanDuration(t *testing.T) {
	assert.Equal(t, "42s", humanDuration(42*time.Second))
	assert.Equal(t, "3m05s", humanDuration(185*time.Second))
	assert.Equal(t, "2h01m00s", humanDuration(2*time.Hour+time.Minute))
}
