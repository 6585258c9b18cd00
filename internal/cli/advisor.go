package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/minhtran2412/loadscope/internal/autoscale"
	"github.com/minhtran2412/loadscope/internal/clock"
	"github.com/minhtran2412/loadscope/internal/config"
	"github.com/minhtran2412/loadscope/internal/metrics"
	"github.com/minhtran2412/loadscope/internal/ratelimit"
	"github.com/minhtran2412/loadscope/internal/server"
	"github.com/minhtran2412/loadscope/internal/storage"
)

func newAdvisorCmd() *cobra.Command {
	var (
		file       string
		binLabel   string
		instances  int
		outputJSON bool
		serve      bool
		addr       string
	)

	cmd := &cobra.Command{
		Use:   "advisor",
		Short: "Forecast load and recommend a fleet size from a log",
		Long: `Bins an access log into a request-count history, projects it forward
with trend smoothing, and reports whether the current fleet should
grow. The recommendation is advisory output only; nothing is scaled.

With --serve the advisor runs as an HTTP service instead: POST metric
history to /api/forecast or /api/recommend-scaling. A --file given in
serve mode is pre-loaded so /api/metrics has data to report.`,
		Example: `  loadscope advisor --file access.log --instances 2
  loadscope advisor --file access.log --bin 5m --instances 4 --json
  loadscope advisor --serve --addr :8081`,
		RunE: func(cmd *cobra.Command, args []string) error {
			bin, err := config.ParseBinWidth(binLabel)
			if err != nil {
				return err
			}

			if serve {
				return runAdvisorServer(addr, file, bin)
			}

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

			history := metrics.Series(records, bin)

			engine, err := autoscale.NewEngine(autoscale.DefaultConfig(), nil)
			if err != nil {
				return err
			}
			forecast := engine.Forecast(history)
			decision := engine.RecommendScaling(history, instances)

			if outputJSON {
				out := map[string]any{
					"history_bins": len(history),
					"forecast":     forecast,
					"decision":     decision,
				}
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}

			fmt.Printf("Analyzed %d records across %d %s bins", len(records), len(history), binLabel)
			if len(rejected) > 0 {
				fmt.Printf(" (%d malformed lines skipped)", len(rejected))
			}
			fmt.Println()
			fmt.Println()

			if len(forecast) == 0 {
				fmt.Printf("Not enough history to forecast (need %d bins, have %d).\n", autoscale.MinHistory, len(history))
			} else {
				fmt.Println("Projected requests per bin:")
				for i, v := range forecast {
					fmt.Printf("  +%d bin%s  %.0f\n", i+1, plural(i+1), v)
				}
				fmt.Println()
			}

			fmt.Println("--- Scaling Recommendation ---")
			fmt.Printf("  Action:          %s\n", decision.Action)
			fmt.Printf("  Reason:          %s\n", decision.Reason)
			fmt.Printf("  Instances:       %d\n", decision.SuggestedInstances)
			fmt.Printf("  Predicted load:  %.1f requests/bin\n", decision.PredictedLoadAvg)
			fmt.Printf("  Hourly cost:     $%.2f\n", decision.EstimatedHourlyCost)
			if decision.IsAnomaly {
				fmt.Println("  Note: latest observation is a statistical outlier")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "path to the access log (required)")
	cmd.Flags().StringVar(&binLabel, "bin", "1m", "history bin width (1m, 5m, 15m, 30m, 1h)")
	cmd.Flags().IntVar(&instances, "instances", 1, "current fleet size")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "output forecast and decision as JSON")
	cmd.Flags().BoolVar(&serve, "serve", false, "run as an HTTP advisory service")
	cmd.Flags().StringVar(&addr, "addr", ":8081", "address to listen on in serve mode")

	return cmd
}

// runAdvisorServer serves the forecast and scaling endpoints without a
// replay session behind them. Callers bring their own history in the
// request body.
func runAdvisorServer(addr, file string, bin time.Duration) error {
	cfg := config.Default()
	clk := clock.NewRealClock()

	buffer, err := metrics.NewBuffer(cfg.Dashboard.BufferSize)
	if err != nil {
		return err
	}
	if file != "" {
		records, rejected, err := loadRecords(file)
		if err != nil {
			return err
		}
		buffer.AddBatch(records)
		log.Printf("pre-loaded %d records (%d malformed lines skipped)", len(records), len(rejected))
	}

	st := storage.NewMemoryStorage(clk)
	defer st.Close()
	lim, err := ratelimit.New(st, cfg.RateLimit.Rate, cfg.RateLimit.Window, clk)
	if err != nil {
		return err
	}
	engine, err := autoscale.NewEngine(cfg.Scaling, clk)
	if err != nil {
		return err
	}

	srv, err := server.New(addr, server.Options{
		Buffer:   buffer,
		Engine:   engine,
		Limiter:  lim,
		BinWidth: bin,
		Clock:    clk,
	})
	if err != nil {
		return err
	}

	fmt.Printf("\n  loadscope advisor\n")
	fmt.Printf("  ────────────────────────────────────\n")
	fmt.Printf("  Forecast:   POST http://localhost%s/api/forecast\n", addr)
	fmt.Printf("  Scaling:    POST http://localhost%s/api/recommend-scaling\n", addr)
	fmt.Printf("  Metrics:    GET  http://localhost%s/api/metrics\n", addr)
	fmt.Printf("  ────────────────────────────────────\n\n")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Println("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func plural(n int) string {
	if n == 1 {
		return " "
	}
	return "s"
}
