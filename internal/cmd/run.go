package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Iron-Ham/prism/internal/config"
	"github.com/Iron-Ham/prism/internal/demo"
	"github.com/Iron-Ham/prism/internal/logging"
	"github.com/Iron-Ham/prism/internal/planner"
	"github.com/Iron-Ham/prism/internal/runtime"
	"github.com/Iron-Ham/prism/internal/server"
	"github.com/Iron-Ham/prism/internal/sink"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the render loop",
	Long: `Run the render loop until interrupted.

Frames are rendered at display.fps and streamed to every enabled sink:
WebSocket clients of the control plane (GET /frames), an MQTT topic,
and an in-terminal preview. Render thresholds are reloaded when the
config file changes.`,
	RunE: runRun,
}

var (
	runDemo     bool
	runVariant  string
	runMerge    string
	runDuration time.Duration
)

func init() {
	runCmd.Flags().BoolVar(&runDemo, "demo", true, "Install the built-in demo scene")
	runCmd.Flags().StringVar(&runVariant, "variant", "auto", "Force the execution variant (auto, iterative, binary)")
	runCmd.Flags().StringVar(&runMerge, "merge", "auto", "Force the merge strategy (auto, in_place, batched)")
	runCmd.Flags().DurationVar(&runDuration, "duration", 0, "Stop after this long (0 runs until interrupted)")
	rootCmd.AddCommand(runCmd)
}

func parseOverride(variant, merge string) (planner.Override, error) {
	v, err := planner.ParseVariant(variant)
	if err != nil {
		return planner.Override{}, err
	}
	m, err := planner.ParseMerge(merge)
	if err != nil {
		return planner.Override{}, err
	}
	return planner.Override{Variant: v, Merge: m}, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	ov, err := parseOverride(runVariant, runMerge)
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if runDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runDuration)
		defer cancel()
	}

	return serve(ctx, cfg, ov, logger, cmd.OutOrStdout())
}

// serve wires the runtime, its sinks and the control plane, then runs the
// frame loop until ctx is done.
func serve(ctx context.Context, cfg *config.Config, ov planner.Override, logger *logging.Logger, out io.Writer) error {
	rt, err := runtime.New(cfg, runtime.WithLogger(logger), runtime.WithOverride(ov))
	if err != nil {
		return err
	}
	var closers []io.Closer
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := rt.Shutdown(shutdownCtx); err != nil {
			logger.Error("runtime shutdown failed", "error", err.Error())
		}
		for _, c := range closers {
			_ = c.Close()
		}
	}()

	if runDemo {
		if err := demo.Install(rt); err != nil {
			return err
		}
	}

	if cfg.Sinks.Preview.Enabled {
		w, h := rt.FrameSize()
		if err := rt.Queue().AddConsumer(sink.NewPreview(out, w, h, cfg.Sinks.Preview.EveryN)); err != nil {
			return err
		}
	}
	if cfg.Sinks.MQTT.Enabled {
		m, err := sink.DialMQTT(cfg.Sinks.MQTT, logger)
		if err != nil {
			return err
		}
		closers = append(closers, m)
		if err := rt.Queue().AddConsumer(m); err != nil {
			return err
		}
	}

	if cfg.Server.Enabled {
		opts := []server.Option{server.WithLogger(logger)}
		if cfg.Sinks.WebSocket.Enabled {
			opts = append(opts, server.WithFrameStream(cfg.Sinks.WebSocket.WriteTimeout()))
		}
		srv := server.New(rt, opts...)
		if _, err := srv.Start(cfg.Server.Addr); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("control plane shutdown failed", "error", err.Error())
			}
		}()
	}

	watching := config.Watch(rt.ApplyConfig, func(err error) {
		logger.Warn("config reload rejected", "error", err.Error())
	})
	logger.Info("prism running",
		"override", ov.Key(),
		"demo", runDemo,
		"config_watch", watching)

	return rt.Run(ctx)
}
