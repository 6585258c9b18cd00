package logdata

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"
)

// TimestampLayout is the Apache/NASA access-log timestamp format,
// e.g. "01/Jul/1995:00:00:01 -0400". The zone offset from the source
// line is preserved on the parsed record.
const TimestampLayout = "02/Jan/2006:15:04:05 -0700"

// Record is a single normalized access-log entry.
type Record struct {
	Source    string    `json:"request_src"`
	Timestamp time.Time `json:"timestamp"`
	Method    string    `json:"method"`    // empty if the request line had no recognized verb
	Path      string    `json:"dest_path"` // empty if the request line was empty
	Protocol  string    `json:"http_type"` // empty if no HTTP/x.y token followed the path
	Status    int       `json:"status"`
	Bytes     int64     `json:"bytes"` // "-" in the source maps to 0
}

// IsError reports whether the record carries a 4xx or 5xx status.
func (r Record) IsError() bool {
	return r.Status >= 400 && r.Status < 600
}

// RejectedLine is an input line that did not match the access-log grammar.
// The original text is retained so no input is ever silently dropped.
type RejectedLine struct {
	Number int    `json:"line"` // 1-based position in the input
	Text   string `json:"text"`
}

// csvHeader matches the column order of the exported processed table.
var csvHeader = []string{"request_src", "timestamp", "method", "dest_path", "http_type", "status", "bytes"}

// WriteCSV writes records as the processed output table: one header row,
// then one row per record in input order.
func WriteCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.Source,
			r.Timestamp.Format(TimestampLayout),
			r.Method,
			r.Path,
			r.Protocol,
			strconv.Itoa(r.Status),
			strconv.FormatInt(r.Bytes, 10),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
