package logdata

import (
	"strings"
	"testing"
	"time"
)

func TestParse_CanonicalLine(t *testing.T) {
	line := `127.0.0.1 - - [01/Jul/1995:00:00:01 -0400] "GET /index.html HTTP/1.0" 200 1024`

	rec, ok := Parse(line)
	if !ok {
		t.Fatal("expected line to parse")
	}

	if rec.Source != "127.0.0.1" {
		t.Errorf("Source = %q, want 127.0.0.1", rec.Source)
	}
	if rec.Method != "GET" {
		t.Errorf("Method = %q, want GET", rec.Method)
	}
	if rec.Path != "/index.html" {
		t.Errorf("Path = %q, want /index.html", rec.Path)
	}
	if rec.Protocol != "HTTP/1.0" {
		t.Errorf("Protocol = %q, want HTTP/1.0", rec.Protocol)
	}
	if rec.Status != 200 {
		t.Errorf("Status = %d, want 200", rec.Status)
	}
	if rec.Bytes != 1024 {
		t.Errorf("Bytes = %d, want 1024", rec.Bytes)
	}

	want := time.Date(1995, 7, 1, 0, 0, 1, 0, time.FixedZone("", -4*3600))
	if !rec.Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", rec.Timestamp, want)
	}
	if _, offset := rec.Timestamp.Zone(); offset != -4*3600 {
		t.Errorf("zone offset = %d, want %d (offset must be preserved)", offset, -4*3600)
	}
}

func TestParse_DashBytesIsZero(t *testing.T) {
	line := `host.example.com - - [01/Jul/1995:00:00:01 -0400] "GET /index.html HTTP/1.0" 200 -`

	rec, ok := Parse(line)
	if !ok {
		t.Fatal("expected line to parse")
	}
	if rec.Bytes != 0 {
		t.Errorf("Bytes = %d, want 0 for dash placeholder", rec.Bytes)
	}
}

func TestParse_NonNumericBytesIsZero(t *testing.T) {
	line := `h - - [01/Jul/1995:00:00:01 -0400] "GET / HTTP/1.0" 200 junk`

	rec, ok := Parse(line)
	if !ok {
		t.Fatal("expected line to parse")
	}
	if rec.Bytes != 0 {
		t.Errorf("Bytes = %d, want 0", rec.Bytes)
	}
}

func TestParse_RequestLineSubfields(t *testing.T) {
	tests := []struct {
		name     string
		request  string
		method   string
		path     string
		protocol string
	}{
		{"full", "GET /a HTTP/1.0", "GET", "/a", "HTTP/1.0"},
		{"lowercase method normalized", "get /a http/1.1", "GET", "/a", "HTTP/1.1"},
		{"no protocol", "POST /submit", "POST", "/submit", ""},
		{"method only", "HEAD", "HEAD", "", ""},
		{"unknown verb", "FETCH /a HTTP/1.0", "", "", ""},
		{"empty request", "", "", "", ""},
		{"garbage after path", "GET /a hello", "GET", "/a", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := `10.0.0.1 - - [01/Jul/1995:12:00:00 +0000] "` + tt.request + `" 200 10`
			rec, ok := Parse(line)
			if !ok {
				t.Fatal("outer pattern should still match")
			}
			if rec.Method != tt.method || rec.Path != tt.path || rec.Protocol != tt.protocol {
				t.Errorf("got (%q, %q, %q), want (%q, %q, %q)",
					rec.Method, rec.Path, rec.Protocol, tt.method, tt.path, tt.protocol)
			}
		})
	}
}

func TestParse_Rejects(t *testing.T) {
	lines := []string{
		"",
		"not a log line",
		`missing - - timestamp "GET / HTTP/1.0" 200 10`,
		`h - - [01/Jul/1995:00:00:01 -0400] "GET / HTTP/1.0" abc 10`,          // non-numeric status
		`h - - [completely bogus timestamp] "GET / HTTP/1.0" 200 10`,          // unparseable time
		`h - [01/Jul/1995:00:00:01 -0400] "GET / HTTP/1.0" 200 10`,            // single dash field
		`h - - [01/Jul/1995:00:00:01 -0400] GET / HTTP/1.0 200 10`,            // unquoted request
	}

	for _, line := range lines {
		if _, ok := Parse(line); ok {
			t.Errorf("Parse(%q) accepted, want reject", line)
		}
	}
}

func TestPreprocess_Totality(t *testing.T) {
	lines := []string{
		`a - - [01/Jul/1995:00:00:01 -0400] "GET /1 HTTP/1.0" 200 1`,
		"garbage one",
		`b - - [01/Jul/1995:00:00:02 -0400] "GET /2 HTTP/1.0" 404 2`,
		"garbage two",
		`c - - [01/Jul/1995:00:00:03 -0400] "GET /3 HTTP/1.0" 500 3`,
	}

	records, rejected := Preprocess(lines)

	if len(records)+len(rejected) != len(lines) {
		t.Fatalf("totality broken: %d parsed + %d rejected != %d lines",
			len(records), len(rejected), len(lines))
	}
	if len(records) != 3 || len(rejected) != 2 {
		t.Fatalf("got %d records, %d rejected; want 3, 2", len(records), len(rejected))
	}

	// Order preserved within each output.
	if records[0].Path != "/1" || records[1].Path != "/2" || records[2].Path != "/3" {
		t.Error("record order not preserved")
	}
	if rejected[0].Text != "garbage one" || rejected[1].Text != "garbage two" {
		t.Error("rejected lines must keep original text in input order")
	}
	if rejected[0].Number != 2 || rejected[1].Number != 4 {
		t.Errorf("rejected line numbers = %d, %d; want 2, 4", rejected[0].Number, rejected[1].Number)
	}
}

func TestPreprocess_AllRejected(t *testing.T) {
	lines := []string{"x", "y", "z"}
	records, rejected := Preprocess(lines)
	if len(records) != 0 || len(rejected) != 3 {
		t.Fatalf("got %d records, %d rejected; want 0, 3", len(records), len(rejected))
	}
}

func TestPreprocess_Empty(t *testing.T) {
	records, rejected := Preprocess(nil)
	if len(records) != 0 || len(rejected) != 0 {
		t.Fatal("empty input must produce empty outputs")
	}
}

func TestWriteCSV(t *testing.T) {
	records := []Record{
		{
			Source:    "127.0.0.1",
			Timestamp: time.Date(1995, 7, 1, 0, 0, 1, 0, time.FixedZone("", -4*3600)),
			Method:    "GET",
			Path:      "/index.html",
			Protocol:  "HTTP/1.0",
			Status:    200,
			Bytes:     1024,
		},
	}

	var sb strings.Builder
	if err := WriteCSV(&sb, records); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(sb.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want header + 1 row", len(lines))
	}
	if lines[0] != "request_src,timestamp,method,dest_path,http_type,status,bytes" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "127.0.0.1,01/Jul/1995:00:00:01 -0400,GET,/index.html,HTTP/1.0,200,1024" {
		t.Errorf("row = %q", lines[1])
	}
}
