package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/minhtran2412/loadscope/internal/logdata"
)

// maxRejectedShown caps how many unparseable lines the summary prints.
const maxRejectedShown = 10

func newPreprocessCmd() *cobra.Command {
	var (
		input  string
		output string
	)

	cmd := &cobra.Command{
		Use:   "preprocess",
		Short: "Parse a raw access log into structured CSV",
		Long: `Parses a Common Log Format access log into structured records and
writes them as CSV. Lines that do not match the expected format are
skipped and reported, never fatal: one bad line costs one record.`,
		Example: `  loadscope preprocess --input access.log --output records.csv
  loadscope preprocess --input NASA_access_log_Jul95 --output nasa.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if input == "" {
				return fmt.Errorf("--input is required")
			}

			records, rejected, err := loadRecords(input)
			if err != nil {
				return err
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer f.Close()

			if err := logdata.WriteCSV(f, records); err != nil {
				return fmt.Errorf("writing csv: %w", err)
			}

			fmt.Printf("Parsed %d records to %s\n", len(records), output)
			if len(rejected) > 0 {
				fmt.Printf("Skipped %d malformed lines:\n", len(rejected))
				for i, rej := range rejected {
					if i == maxRejectedShown {
						fmt.Printf("  ... and %d more\n", len(rejected)-maxRejectedShown)
						break
					}
					fmt.Printf("  line %d: %s\n", rej.Number, truncate(rej.Text, 80))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "path to the raw access log (required)")
	cmd.Flags().StringVar(&output, "output", "records.csv", "output CSV path")

	return cmd
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
