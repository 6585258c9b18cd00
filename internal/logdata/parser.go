package logdata

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// linePattern is the outer structural grammar of an access-log line:
// source, two dash fields, bracketed timestamp, quoted request line,
// numeric status, byte count. Lines failing this pattern are rejected.
var linePattern = regexp.MustCompile(`^(\S+) - - \[([^\]]+)\] "(.*)" (\d+) (\S+)`)

// methodPattern matches a leading HTTP verb from the fixed whitelist,
// case-insensitively. Anything else leaves the method empty.
var methodPattern = regexp.MustCompile(`(?i)^(GET|POST|PUT|DELETE|HEAD|OPTIONS|PATCH|CONNECT|TRACE)\s*`)

// protocolPattern matches a protocol/version token such as HTTP/1.0.
var protocolPattern = regexp.MustCompile(`(?i)^(HTTP/\d+\.\d+)`)

// Parse converts one raw line into a Record, or reports ok=false when the
// line does not match the grammar. Pure function: no state, no side effects.
//
// The request line inside the quotes decomposes into method, path and
// protocol; each of the three may be absent without invalidating the record.
// A byte count of "-" (or any non-numeric token) normalizes to 0.
func Parse(line string) (Record, bool) {
	m := linePattern.FindStringSubmatch(line)
	if m == nil {
		return Record{}, false
	}

	ts, err := time.Parse(TimestampLayout, m[2])
	if err != nil {
		return Record{}, false
	}

	status, err := strconv.Atoi(m[4])
	if err != nil {
		// Unreachable with the \d+ group, but the status contract is hard.
		return Record{}, false
	}

	rec := Record{
		Source:    m[1],
		Timestamp: ts,
		Status:    status,
		Bytes:     parseBytes(m[5]),
	}
	rec.Method, rec.Path, rec.Protocol = splitRequestLine(m[3])
	return rec, true
}

// Preprocess parses every line, partitioning the input into records and
// rejected lines. Both outputs preserve input order and together account
// for every input line: len(records)+len(rejected) == len(lines).
func Preprocess(lines []string) (records []Record, rejected []RejectedLine) {
	for i, line := range lines {
		rec, ok := Parse(line)
		if !ok {
			rejected = append(rejected, RejectedLine{Number: i + 1, Text: line})
			continue
		}
		records = append(records, rec)
	}
	return records, rejected
}

// splitRequestLine decomposes the quoted request line into its three
// sub-fields. Method and protocol are normalized to uppercase; the path is
// the first whitespace-delimited token after the method.
func splitRequestLine(request string) (method, path, protocol string) {
	m := methodPattern.FindStringSubmatch(request)
	if m == nil {
		return "", "", ""
	}
	method = strings.ToUpper(m[1])
	rest := request[len(m[0]):]

	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return method, "", ""
	}
	path = fields[0]

	if len(fields) > 1 {
		if p := protocolPattern.FindStringSubmatch(fields[1]); p != nil {
			protocol = strings.ToUpper(p[1])
		}
	}
	return method, path, protocol
}

// parseBytes normalizes the byte-count token. The source uses "-" for
// unknown sizes; that and any other non-numeric token map to 0.
func parseBytes(tok string) int64 {
	if tok == "-" {
		return 0
	}
	n, err := strconv.ParseInt(tok, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
