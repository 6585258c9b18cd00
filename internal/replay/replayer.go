package replay

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/minhtran2412/loadscope/internal/clock"
	"github.com/minhtran2412/loadscope/internal/logdata"
)

// ErrExhausted signals that a non-looping replayer has emitted every record.
// It is a normal terminal condition, not a failure.
var ErrExhausted = errors.New("replay: sequence exhausted")

// DefaultInterval is the base pacing interval between paced emissions at
// 1x speed.
const DefaultInterval = time.Second

// State describes where a replayer is in its lifecycle.
type State string

const (
	// StateLoaded means records are loaded and the cursor sits at the start
	// of a pass (initially, or right after a loop wrap).
	StateLoaded State = "loaded"
	// StateStreaming means at least one record of the current pass has been
	// emitted.
	StateStreaming State = "streaming"
	// StateExhausted is terminal: loop is off and the cursor reached the end.
	StateExhausted State = "exhausted"
)

// Options configures a Replayer.
type Options struct {
	// Speed is the pacing multiplier: 1.0 = one record per Interval,
	// 10.0 = ten per Interval. Non-positive means unlimited (no delay);
	// the delay computation never divides by zero or inverts sign.
	Speed float64
	// Loop wraps the cursor to the start instead of exhausting.
	Loop bool
	// Shuffle randomizes record order at load and on every loop wrap.
	// This deliberately breaks timestamp ordering.
	Shuffle bool
	// Interval is the base pacing interval at 1x speed. Zero means
	// DefaultInterval.
	Interval time.Duration
	// Clock supplies time for pacing delays. Nil means the real clock.
	Clock clock.Clock
	// Seed fixes the shuffle RNG for reproducible runs. Zero seeds from
	// the current time.
	Seed int64
}

// Replayer emits a parsed log sequence as a paced synthetic stream.
//
// Pacing policy: every paced call waits Interval/Speed, a uniform per-call
// delay. The engine intentionally does not replay the literal timestamp
// deltas between records — sparse logs (hours between requests) would
// otherwise stall the stream unboundedly. Records keep their original
// timestamps, so downstream aggregation still bins against log time.
//
// Designed for a single consumer driving it from a poll loop; all methods
// are nevertheless safe for concurrent use. Delays are cooperative waits on
// the calling path — a caller that does not poll does not advance the stream.
type Replayer struct {
	mu       sync.Mutex
	records  []logdata.Record
	cursor   int
	speed    float64
	loop     bool
	shuffle  bool
	interval time.Duration
	state    State
	clock    clock.Clock
	rng      *rand.Rand
}

// New creates a Replayer over records. The slice is copied; the caller's
// slice is never reordered by shuffling.
func New(records []logdata.Record, opts Options) *Replayer {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Clock == nil {
		opts.Clock = clock.NewRealClock()
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	r := &Replayer{
		records:  make([]logdata.Record, len(records)),
		speed:    opts.Speed,
		loop:     opts.Loop,
		shuffle:  opts.Shuffle,
		interval: opts.Interval,
		state:    StateLoaded,
		clock:    opts.Clock,
		rng:      rand.New(rand.NewSource(seed)),
	}
	copy(r.records, records)

	if r.shuffle {
		r.shuffleLocked()
	}
	return r
}

// Len returns the total number of loaded records.
func (r *Replayer) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// State returns the current lifecycle state.
func (r *Replayer) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Speed returns the current speed multiplier.
func (r *Replayer) Speed() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.speed
}

// SetSpeed updates the pacing multiplier. It affects only delays computed
// after the call; a wait already in progress keeps its original duration.
func (r *Replayer) SetSpeed(speed float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.speed = speed
}

// Reset rewinds the cursor to the start of the sequence, re-shuffling when
// shuffle is enabled. An exhausted replayer becomes loaded again.
func (r *Replayer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rewindLocked()
}

// Next returns the record at the cursor and advances it by one. Before the
// second and later record of a pass it waits for the current pacing delay;
// the wait can be abandoned through ctx. At the end of the sequence it
// wraps when looping, otherwise returns ErrExhausted.
func (r *Replayer) Next(ctx context.Context) (logdata.Record, error) {
	r.mu.Lock()
	if len(r.records) == 0 {
		r.state = StateExhausted
		r.mu.Unlock()
		return logdata.Record{}, ErrExhausted
	}
	if r.cursor >= len(r.records) {
		if !r.loop {
			r.state = StateExhausted
			r.mu.Unlock()
			return logdata.Record{}, ErrExhausted
		}
		r.rewindLocked()
	}

	var delay time.Duration
	if r.cursor > 0 {
		delay = r.delayLocked()
	}
	r.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return logdata.Record{}, ctx.Err()
		case <-r.clock.After(delay):
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.records[r.cursor]
	r.cursor++
	r.state = StateStreaming
	return rec, nil
}

// NextBatch pulls up to size records, waiting for a single pacing delay per
// call instead of one per record. The cursor wraps mid-batch when looping.
// A short or empty batch occurs only when loop is off and the sequence is
// exhausted.
func (r *Replayer) NextBatch(ctx context.Context, size int) ([]logdata.Record, error) {
	if size <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", size)
	}

	r.mu.Lock()
	var delay time.Duration
	if r.cursor > 0 {
		delay = r.delayLocked()
	}
	r.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-r.clock.After(delay):
		}
	}

	return r.GetNextBatch(size)
}

// GetNextBatch pulls up to size records with no delay at all. It is the
// poll-driven variant: the consumer (a UI refresh tick, a test loop)
// supplies its own cadence. The cursor wraps mid-batch when looping; a
// short or empty batch occurs only when loop is off and the sequence is
// exhausted.
func (r *Replayer) GetNextBatch(size int) ([]logdata.Record, error) {
	if size <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", size)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.records) == 0 {
		r.state = StateExhausted
		return nil, nil
	}

	batch := make([]logdata.Record, 0, size)
	for len(batch) < size {
		if r.cursor >= len(r.records) {
			if !r.loop {
				r.state = StateExhausted
				break
			}
			r.rewindLocked()
		}
		batch = append(batch, r.records[r.cursor])
		r.cursor++
		r.state = StateStreaming
	}
	return batch, nil
}

// delayLocked computes the pacing delay under the current speed multiplier.
// Non-positive speeds mean unlimited: no delay rather than a zero division
// or a negative wait.
func (r *Replayer) delayLocked() time.Duration {
	if r.speed <= 0 {
		return 0
	}
	return time.Duration(float64(r.interval) / r.speed)
}

// rewindLocked resets the cursor for a new pass, re-shuffling if enabled.
func (r *Replayer) rewindLocked() {
	r.cursor = 0
	r.state = StateLoaded
	if r.shuffle {
		r.shuffleLocked()
	}
}

func (r *Replayer) shuffleLocked() {
	r.rng.Shuffle(len(r.records), func(i, j int) {
		r.records[i], r.records[j] = r.records[j], r.records[i]
	})
}
