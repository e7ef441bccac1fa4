package generator

import "time"

// DefaultProgressEvery is the progress cadence in attempts.
const DefaultProgressEvery = 100_000

type Options struct {
	Workers       int           // 1 = sequential loop on the caller goroutine
	ProgressEvery uint64        // attempts between progress events, 0 = default
	MaxAttempts   uint64        // 0 = unbounded
	MaxDuration   time.Duration // 0 = unbounded

	Now func() time.Time // clock, nil = time.Now
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.ProgressEvery == 0 {
		o.ProgressEvery = DefaultProgressEvery
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}
