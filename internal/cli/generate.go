package cli

import (
	"bufio"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/minhtran2412/loadscope/internal/config"
	"github.com/minhtran2412/loadscope/internal/logdata"
)

func newGenerateCmd() *cobra.Command {
	var (
		output   string
		count    int
		sources  int
		duration time.Duration
		pattern  string
		seed     int64
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate sample access logs and config",
		Long: `Generates sample data for testing and experimentation.

Use "generate log" to create a synthetic Common Log Format access log.
Use "generate config" to create an example config JSON file.`,
	}

	logCmd := &cobra.Command{
		Use:   "log",
		Short: "Generate a synthetic access log",
		Long: `Creates a synthetic access log in Common Log Format.

Patterns:
  steady    Evenly distributed requests
  burst     Concentrated bursts with quiet periods
  ramp      Gradually increasing request rate`,
		Example: `  loadscope generate log --output access.log --count 1000
  loadscope generate log --output burst.log --count 2000 --pattern burst --duration 30m`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				output = "access.log"
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating file: %w", err)
			}
			defer f.Close()

			w := bufio.NewWriter(f)
			if err := writeSyntheticLog(w, count, sources, duration, pattern, seed); err != nil {
				return err
			}
			if err := w.Flush(); err != nil {
				return fmt.Errorf("writing log: %w", err)
			}

			fmt.Printf("Generated %d log lines to %s\n", count, output)
			fmt.Printf("  Sources:  %d\n", sources)
			fmt.Printf("  Duration: %s\n", duration)
			fmt.Printf("  Pattern:  %s\n", pattern)
			return nil
		},
	}

	logCmd.Flags().StringVar(&output, "output", "access.log", "output file path")
	logCmd.Flags().IntVar(&count, "count", 1000, "number of log lines to generate")
	logCmd.Flags().IntVar(&sources, "sources", 20, "number of distinct client hosts")
	logCmd.Flags().DurationVar(&duration, "duration", 30*time.Minute, "time span for generated traffic")
	logCmd.Flags().StringVar(&pattern, "pattern", "steady", "traffic pattern (steady, burst, ramp)")
	logCmd.Flags().Int64Var(&seed, "seed", 0, "random seed (0 = time-based)")

	configCmd := &cobra.Command{
		Use:     "config",
		Short:   "Generate an example config JSON file",
		Example: `  loadscope generate config --output loadscope.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				output = "loadscope.json"
			}
			if err := config.WriteExample(output); err != nil {
				return err
			}
			fmt.Printf("Generated example config at %s\n", output)
			return nil
		},
	}

	configCmd.Flags().StringVar(&output, "output", "loadscope.json", "output file path")

	cmd.AddCommand(logCmd, configCmd)
	return cmd
}

var samplePaths = []struct {
	method string
	path   string
}{
	{"GET", "/index.html"},
	{"GET", "/images/logo.gif"},
	{"GET", "/api/users"},
	{"GET", "/api/search"},
	{"POST", "/api/events"},
	{"GET", "/shuttle/missions/sts-71/mission-sts-71.html"},
	{"GET", "/history/apollo/"},
	{"PUT", "/api/settings"},
}

// statuses is weighted towards success the way real access logs are.
var statuses = []int{200, 200, 200, 200, 200, 200, 304, 304, 404, 500}

func writeSyntheticLog(w *bufio.Writer, count, sources int, duration time.Duration, pattern string, seed int64) error {
	if count <= 0 {
		return fmt.Errorf("count must be positive, got %d", count)
	}
	if sources <= 0 {
		return fmt.Errorf("sources must be positive, got %d", sources)
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	start := time.Now().Add(-duration).Truncate(time.Second)

	hosts := make([]string, sources)
	for i := range hosts {
		hosts[i] = fmt.Sprintf("10.0.%d.%d", rng.Intn(256), rng.Intn(256))
	}

	offsets := make([]time.Duration, count)
	switch pattern {
	case "burst":
		burstOffsets(rng, offsets, duration)
	case "ramp":
		rampOffsets(offsets, duration)
	case "steady":
		steadyOffsets(offsets, duration)
	default:
		return fmt.Errorf("unknown pattern %q, must be one of: steady, burst, ramp", pattern)
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })

	for _, off := range offsets {
		req := samplePaths[rng.Intn(len(samplePaths))]
		status := statuses[rng.Intn(len(statuses))]
		bytes := rng.Intn(50000)
		if status == 304 {
			bytes = 0
		}

		_, err := fmt.Fprintf(w, "%s - - [%s] \"%s %s HTTP/1.0\" %d %d\n",
			hosts[rng.Intn(len(hosts))],
			start.Add(off).Format(logdata.TimestampLayout),
			req.method,
			req.path,
			status,
			bytes)
		if err != nil {
			return err
		}
	}
	return nil
}

func steadyOffsets(offsets []time.Duration, dur time.Duration) {
	interval := dur / time.Duration(len(offsets))
	for i := range offsets {
		offsets[i] = time.Duration(i) * interval
	}
}

func burstOffsets(rng *rand.Rand, offsets []time.Duration, dur time.Duration) {
	numBursts := 4
	burstGap := dur / time.Duration(numBursts)
	for i := range offsets {
		burstStart := time.Duration(rng.Intn(numBursts)) * burstGap
		// Requests within a burst land in a tight one-minute cluster.
		offsets[i] = burstStart + time.Duration(rng.Intn(60000))*time.Millisecond
	}
}

func rampOffsets(offsets []time.Duration, dur time.Duration) {
	// Quadratic distribution concentrates records towards the end.
	n := float64(len(offsets))
	for i := range offsets {
		frac := float64(i) / n
		offsets[i] = time.Duration(frac * frac * float64(dur))
	}
}
