// Package monitor runs replay sessions: a polling loop that pulls record
// batches out of a replayer and fans them out to sinks, the live feed
// behind the dashboard.
package monitor

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/minhtran2412/loadscope/internal/clock"
	"github.com/minhtran2412/loadscope/internal/logdata"
	"github.com/minhtran2412/loadscope/internal/replay"
	"github.com/minhtran2412/loadscope/internal/sink"
)

// DefaultBatchSize is how many records one poll pulls when unconfigured.
const DefaultBatchSize = 30

// Config wires up a session.
type Config struct {
	Replayer  *replay.Replayer
	BatchSize int
	Sinks     []sink.Sink
	// OnBatch is invoked after each non-empty batch has reached every
	// sink. Used to push live updates to dashboard clients.
	OnBatch func(records []logdata.Record)
	Clock   clock.Clock
}

// Session drives one replay. Each Tick drains one batch; Run ticks on an
// interval until the replayer is exhausted or the context ends.
type Session struct {
	id        string
	replayer  *replay.Replayer
	batchSize int
	sinks     []sink.Sink
	onBatch   func(records []logdata.Record)
	clk       clock.Clock

	processed atomic.Int64
}

// NewSession builds a session with a fresh random ID.
func NewSession(cfg Config) (*Session, error) {
	if cfg.Replayer == nil {
		return nil, fmt.Errorf("replayer is required")
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchSize < 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", cfg.BatchSize)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewRealClock()
	}
	return &Session{
		id:        uuid.NewString(),
		replayer:  cfg.Replayer,
		batchSize: cfg.BatchSize,
		sinks:     cfg.Sinks,
		onBatch:   cfg.OnBatch,
		clk:       cfg.Clock,
	}, nil
}

// ID returns the session's identifier.
func (s *Session) ID() string {
	return s.id
}

// Processed returns how many records the session has delivered so far.
func (s *Session) Processed() int64 {
	return s.processed.Load()
}

// Done reports whether the underlying replayer has run dry.
func (s *Session) Done() bool {
	return s.replayer.State() == replay.StateExhausted
}

// Tick pulls one batch and delivers it to every sink, then the OnBatch
// callback. Returns the number of records delivered; zero means the
// replayer had nothing left.
func (s *Session) Tick() (int, error) {
	batch, err := s.replayer.GetNextBatch(s.batchSize)
	if err != nil {
		return 0, fmt.Errorf("pulling batch: %w", err)
	}
	if len(batch) == 0 {
		return 0, nil
	}

	for _, snk := range s.sinks {
		snk.AddBatch(batch)
	}
	s.processed.Add(int64(len(batch)))
	if s.onBatch != nil {
		s.onBatch(batch)
	}
	return len(batch), nil
}

// Run ticks every interval until the replayer is exhausted or ctx ends.
// A looping replayer never exhausts, so cancellation is the only way out
// of such a session.
func (s *Session) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", interval)
	}

	for {
		if _, err := s.Tick(); err != nil {
			return err
		}
		if s.Done() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.clk.After(interval):
		}
	}
}
