package cli

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/minhtran2412/loadscope/internal/logdata"
)

// NewRootCmd creates the root loadscope command.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "loadscope",
		Short: "Replay access logs and advise on capacity",
		Long: `Loadscope turns raw web access logs into structured traffic, replays
them at any speed, and watches the replayed load with a live dashboard
and a forecasting scaling advisor.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newPreprocessCmd(),
		newReplayCmd(),
		newDashboardCmd(),
		newAdvisorCmd(),
		newGenerateCmd(),
	)

	return root
}

// loadRecords parses an access log file, returning the structured records
// and the lines that did not match the expected format.
func loadRecords(path string) ([]logdata.Record, []logdata.RejectedLine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("reading log file: %w", err)
	}

	records, rejected := logdata.Preprocess(lines)
	return records, rejected, nil
}
