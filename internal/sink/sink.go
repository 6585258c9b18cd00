// Package sink defines where replayed records land. A session fans each
// batch out to every attached sink; the metrics buffer is the usual one,
// custom sinks feed exports or assertions in tests.
package sink

import (
	"github.com/minhtran2412/loadscope/internal/logdata"
	"github.com/minhtran2412/loadscope/internal/metrics"
)

// Sink receives replayed records. Implementations must tolerate
// concurrent readers of their own state but AddRecord/AddBatch are only
// called from the owning session's goroutine.
type Sink interface {
	AddRecord(rec logdata.Record)
	AddBatch(records []logdata.Record)
	Clear()
}

var _ Sink = (*metrics.Buffer)(nil)

// Func adapts a function to a per-record Sink.
type Func func(rec logdata.Record)

func (f Func) AddRecord(rec logdata.Record) { f(rec) }

func (f Func) AddBatch(records []logdata.Record) {
	for _, rec := range records {
		f(rec)
	}
}

func (f Func) Clear() {}
