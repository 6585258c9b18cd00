package cli

import (
	"context"
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
	"github.com/minhtran2412/loadscope/internal/logdata"
	"github.com/minhtran2412/loadscope/internal/metrics"
	"github.com/minhtran2412/loadscope/internal/monitor"
	"github.com/minhtran2412/loadscope/internal/ratelimit"
	"github.com/minhtran2412/loadscope/internal/replay"
	"github.com/minhtran2412/loadscope/internal/server"
	"github.com/minhtran2412/loadscope/internal/sink"
	"github.com/minhtran2412/loadscope/internal/storage"
)

// pollInterval is how often the dashboard session pulls a batch from the
// replayer. Pacing itself lives in the replayer; this only bounds how
// stale the charts can get.
const pollInterval = time.Second

func newDashboardCmd() *cobra.Command {
	var (
		configPath string
		addr       string
		file       string
		speed      float64
		loop       bool
		shuffle    bool
	)

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Replay a log behind a live metrics dashboard",
		Long: `Replays an access log into an in-memory metrics window and serves a
WebSocket-powered dashboard plus the advisory API on top of it.

Open your browser to http://localhost:<port>/dashboard to view.
POST metric history to /api/recommend-scaling for scaling advice.`,
		Example: `  loadscope dashboard --file access.log
  loadscope dashboard --file access.log --speed 100 --loop
  loadscope dashboard --file access.log --config loadscope.json --addr :9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file is required")
			}

			cfg := config.Default()
			if configPath != "" {
				loaded, err := config.LoadFile(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			// Flags override the file.
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("speed") {
				cfg.Replay.Speed = speed
			}
			if cmd.Flags().Changed("loop") {
				cfg.Replay.Loop = loop
			}
			if cmd.Flags().Changed("shuffle") {
				cfg.Replay.Shuffle = shuffle
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			records, rejected, err := loadRecords(file)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				return fmt.Errorf("no parseable records in %s", file)
			}

			clk := clock.NewRealClock()

			st, err := newStorage(cfg, clk)
			if err != nil {
				return err
			}
			defer st.Close()

			lim, err := ratelimit.New(st, cfg.RateLimit.Rate, cfg.RateLimit.Window, clk)
			if err != nil {
				return err
			}

			engine, err := autoscale.NewEngine(cfg.Scaling, clk)
			if err != nil {
				return err
			}

			buffer, err := metrics.NewBuffer(cfg.Dashboard.BufferSize)
			if err != nil {
				return err
			}

			srv, err := server.New(cfg.Server.Addr, server.Options{
				Buffer:   buffer,
				Engine:   engine,
				Limiter:  lim,
				BinWidth: cfg.Dashboard.BinWidth,
				Clock:    clk,
			})
			if err != nil {
				return err
			}

			replayer := replay.New(records, replay.Options{
				Speed:   cfg.Replay.Speed,
				Loop:    cfg.Replay.Loop,
				Shuffle: cfg.Replay.Shuffle,
				Clock:   clk,
			})

			var session *monitor.Session
			session, err = monitor.NewSession(monitor.Config{
				Replayer:  replayer,
				BatchSize: cfg.Replay.BatchSize,
				Sinks:     []sink.Sink{buffer},
				Clock:     clk,
				OnBatch: func(_ []logdata.Record) {
					srv.Hub().Broadcast(server.Update{
						Type:      "metrics",
						SessionID: session.ID(),
						Rollups:   metrics.Rollups(buffer.Snapshot()),
						Processed: session.Processed(),
						Done:      session.Done(),
					})
				},
			})
			if err != nil {
				return err
			}

			fmt.Printf("\n  loadscope dashboard\n")
			fmt.Printf("  ────────────────────────────────────\n")
			fmt.Printf("  Dashboard:  http://localhost%s/dashboard\n", cfg.Server.Addr)
			fmt.Printf("  Metrics:    http://localhost%s/api/metrics\n", cfg.Server.Addr)
			fmt.Printf("  WebSocket:  ws://localhost%s/ws\n", cfg.Server.Addr)
			fmt.Printf("  Records:    %d (%d malformed lines skipped)\n", len(records), len(rejected))
			fmt.Printf("  Speed:      %.0fx  loop=%v  shuffle=%v\n", cfg.Replay.Speed, cfg.Replay.Loop, cfg.Replay.Shuffle)
			fmt.Printf("  ────────────────────────────────────\n\n")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return srv.Start()
			})
			g.Go(func() error {
				err := session.Run(ctx, pollInterval)
				if err == nil {
					log.Printf("replay finished: %d records delivered", session.Processed())
				}
				return err
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
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to a JSON config file")
	cmd.Flags().StringVar(&addr, "addr", ":8080", "address to listen on")
	cmd.Flags().StringVar(&file, "file", "", "path to the access log (required)")
	cmd.Flags().Float64Var(&speed, "speed", 1, "replay speed multiplier (0=instant)")
	cmd.Flags().BoolVar(&loop, "loop", false, "restart from the beginning when exhausted")
	cmd.Flags().BoolVar(&shuffle, "shuffle", false, "randomize record order once at load")

	return cmd
}

func newStorage(cfg config.Config, clk clock.Clock) (storage.Storage, error) {
	switch cfg.Storage.Backend {
	case config.BackendRedis:
		return storage.NewRedisStorage(&cfg.Storage.Redis)
	default:
		return storage.NewMemoryStorage(clk), nil
	}
}
