package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeLogFixture(t *testing.T) string {
	t.Helper()

	log := strings.Join([]string{
		`199.72.81.55 - - [01/Jul/1995:00:00:01 -0400] "GET /history/apollo/ HTTP/1.0" 200 6245`,
		`unicomp6.unicomp.net - - [01/Jul/1995:00:00:06 -0400] "GET /shuttle/countdown/ HTTP/1.0" 200 3985`,
		`this line is garbage`,
		`burger.letters.com - - [01/Jul/1995:00:00:12 -0400] "GET /images/NASA-logosmall.gif HTTP/1.0" 304 0`,
	}, "\n") + "\n"

	path := filepath.Join(t.TempDir(), "access.log")
	if err := os.WriteFile(path, []byte(log), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestPreprocessCmd(t *testing.T) {
	logPath := writeLogFixture(t)
	outPath := filepath.Join(t.TempDir(), "records.csv")

	cmd := NewRootCmd()
	cmd.SetArgs([]string{"preprocess", "--input", logPath, "--output", outPath})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("preprocess command failed: %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 4 { // header + 3 parseable records
		t.Fatalf("csv has %d lines, want 4", len(lines))
	}
	if lines[0] != "request_src,timestamp,method,dest_path,http_type,status,bytes" {
		t.Errorf("unexpected header: %s", lines[0])
	}
}

func TestPreprocessCmd_RequiresInput(t *testing.T) {
	cmd := NewRootCmd()
	cmd.SetArgs([]string{"preprocess"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error without --input")
	}
}

func TestReplayCmd_Instant(t *testing.T) {
	logPath := writeLogFixture(t)

	cmd := NewRootCmd()
	cmd.SetArgs([]string{"replay", "--file", logPath, "--speed", "0", "--json"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("replay command failed: %v", err)
	}
}

func TestReplayCmd_MissingFile(t *testing.T) {
	cmd := NewRootCmd()
	cmd.SetArgs([]string{"replay", "--file", filepath.Join(t.TempDir(), "nope.log"), "--speed", "0"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestAdvisorCmd(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "access.log")

	genCmd := NewRootCmd()
	genCmd.SetArgs([]string{
		"generate", "log",
		"--output", logPath,
		"--count", "2000",
		"--duration", "30m",
		"--pattern", "ramp",
		"--seed", "42",
	})
	if err := genCmd.Execute(); err != nil {
		t.Fatalf("generate command failed: %v", err)
	}

	cmd := NewRootCmd()
	cmd.SetArgs([]string{"advisor", "--file", logPath, "--bin", "1m", "--instances", "1", "--json"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("advisor command failed: %v", err)
	}
}

func TestAdvisorCmd_RejectsBadBin(t *testing.T) {
	logPath := writeLogFixture(t)

	cmd := NewRootCmd()
	cmd.SetArgs([]string{"advisor", "--file", logPath, "--bin", "2m"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for off-menu bin width")
	}
}

func TestGenerateLogCmd_OutputParses(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "access.log")

	cmd := NewRootCmd()
	cmd.SetArgs([]string{
		"generate", "log",
		"--output", logPath,
		"--count", "100",
		"--sources", "5",
		"--pattern", "burst",
		"--seed", "7",
	})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("generate command failed: %v", err)
	}

	records, rejected, err := loadRecords(logPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(rejected) != 0 {
		t.Errorf("generated log has %d unparseable lines", len(rejected))
	}
	if len(records) != 100 {
		t.Errorf("parsed %d records, want 100", len(records))
	}

	// Generated lines come out in timestamp order.
	for i := 1; i < len(records); i++ {
		if records[i].Timestamp.Before(records[i-1].Timestamp) {
			t.Fatalf("records out of order at %d", i)
		}
	}
}

func TestGenerateLogCmd_RejectsBadPattern(t *testing.T) {
	cmd := NewRootCmd()
	cmd.SetArgs([]string{
		"generate", "log",
		"--output", filepath.Join(t.TempDir(), "x.log"),
		"--pattern", "sawtooth",
	})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for unknown pattern")
	}
}

func TestGenerateConfigCmd_RoundTrips(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "loadscope.json")

	cmd := NewRootCmd()
	cmd.SetArgs([]string{"generate", "config", "--output", cfgPath})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("generate config failed: %v", err)
	}

	if _, err := os.Stat(cfgPath); err != nil {
		t.Fatal(err)
	}
}

func TestLoadRecords(t *testing.T) {
	records, rejected, err := loadRecords(writeLogFixture(t))
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Errorf("parsed %d records, want 3", len(records))
	}
	if len(rejected) != 1 || rejected[0].Number != 3 {
		t.Errorf("rejected = %+v, want line 3 only", rejected)
	}
	if records[0].Method != "GET" || records[0].Status != 200 {
		t.Errorf("first record = %+v", records[0])
	}
}
