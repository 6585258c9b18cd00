package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/minhtran2412/loadscope/internal/replay"
)

func newReplayCmd() *cobra.Command {
	var (
		file       string
		speed      float64
		loop       bool
		shuffle    bool
		outputJSON bool
	)

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay an access log to the terminal",
		Long: `Replays a parsed access log record by record, paced by the speed
multiplier. Each record prints as it is emitted, so the terminal sees
the traffic at the same rhythm a downstream consumer would.

Speed: 0 = instant, 1 = real-time, 5/20/100/200 = that many times faster`,
		Example: `  loadscope replay --file access.log
  loadscope replay --file access.log --speed 100
  loadscope replay --file access.log --loop --shuffle --speed 20
  loadscope replay --file access.log --speed 0 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file is required")
			}

			records, rejected, err := loadRecords(file)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				return fmt.Errorf("no parseable records in %s", file)
			}

			r := replay.New(records, replay.Options{
				Speed:   speed,
				Loop:    loop,
				Shuffle: shuffle,
			})

			if !outputJSON {
				fmt.Printf("Replaying %d records from %s at %.0fx speed", len(records), file, speed)
				if len(rejected) > 0 {
					fmt.Printf(" (%d malformed lines skipped)", len(rejected))
				}
				fmt.Println()
				fmt.Println()
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var replayed, errorCount int
			var bytes int64
			start := time.Now()
			enc := json.NewEncoder(os.Stdout)

			for {
				rec, err := r.Next(ctx)
				if errors.Is(err, replay.ErrExhausted) {
					break
				}
				if errors.Is(err, context.Canceled) {
					break
				}
				if err != nil {
					return err
				}

				replayed++
				bytes += rec.Bytes
				if rec.IsError() {
					errorCount++
				}

				if outputJSON {
					if err := enc.Encode(rec); err != nil {
						return err
					}
					continue
				}
				fmt.Printf("  [%s] %-15s %-6s %s -> %d (%d bytes)\n",
					rec.Timestamp.Format("15:04:05"),
					rec.Source,
					rec.Method,
					rec.Path,
					rec.Status,
					rec.Bytes)
			}

			if outputJSON {
				return nil
			}

			fmt.Println()
			fmt.Println("--- Replay Summary ---")
			fmt.Printf("  Replayed:   %d\n", replayed)
			fmt.Printf("  Errors:     %d\n", errorCount)
			fmt.Printf("  Bytes:      %d\n", bytes)
			fmt.Printf("  Wall time:  %s\n", time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "path to the access log (required)")
	cmd.Flags().Float64Var(&speed, "speed", 1, "replay speed multiplier (0=instant)")
	cmd.Flags().BoolVar(&loop, "loop", false, "restart from the beginning when exhausted")
	cmd.Flags().BoolVar(&shuffle, "shuffle", false, "randomize record order once at load")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "emit records as JSON lines")

	return cmd
}
