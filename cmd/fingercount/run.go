package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ayusman/fingercount/internal/app"
	"github.com/ayusman/fingercount/internal/capture"
	"github.com/ayusman/fingercount/internal/config"
	"github.com/ayusman/fingercount/internal/logging"
	"github.com/ayusman/fingercount/internal/server"
	"github.com/ayusman/fingercount/internal/store"
	"github.com/ayusman/fingercount/internal/tray"
)

var errNoSource = errors.New("no capture source configured")

type runOptions struct {
	source string
	addr   string
	tray   bool
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start counting fingers",
		Long: "Start counting fingers from a camera or video file. The first frames are used " +
			"to learn the empty background, so keep your hand out of view until calibration completes.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(base config.Config, st *store.Store) error {
				return runPipeline(cmd.Context(), cmd.OutOrStdout(), base, st, opts)
			})
		},
	}

	cmd.Flags().StringVarP(&opts.source, "source", "s", "", "Camera index or video file (overrides capture.source)")
	cmd.Flags().StringVar(&opts.addr, "addr", "", "HTTP listen address (overrides server.addr; \"off\" disables the server)")
	cmd.Flags().BoolVar(&opts.tray, "tray", false, "Show the count in the system tray")
	return cmd
}

func runPipeline(cmdCtx context.Context, out io.Writer, base config.Config, st *store.Store, opts runOptions) error {
	if cmdCtx == nil {
		cmdCtx = context.Background()
	}
	signalCtx, stop := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(signalCtx)
	defer cancel()

	cfg, _, err := effectiveConfig(base, st)
	if err != nil {
		return fmt.Errorf("%w (remove it with `fingercount config unset`)", err)
	}
	if opts.source != "" {
		cfg.Capture.Source = opts.source
	}
	if opts.addr != "" {
		cfg.Server.Addr = opts.addr
	}
	if opts.addr == "off" {
		cfg.Server.Addr = ""
	}
	if strings.TrimSpace(cfg.Capture.Source) == "" {
		return errNoSource
	}

	logger := logging.New(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	camera := capture.NewCamera(cfg.Capture.Source, capture.Options{
		Width:  cfg.Capture.Width,
		Height: cfg.Capture.Height,
		FPS:    cfg.Capture.FPS,
		Mirror: cfg.Capture.Mirror,
	})

	a := app.New(app.Config{
		Detection: cfg.Detection,
		Camera:    camera,
		FPS:       cfg.Capture.FPS,
		Preview:   cfg.Server.Preview && cfg.Server.Addr != "",
		LockPath:  cfg.LockPath(),
		Logger:    logger,
	})
	defer a.Close()

	var tr *tray.Tray
	if opts.tray {
		tr = tray.New()
		tr.OnRecalibrate(a.RequestReset)
		tr.OnQuit(cancel)
		a.RegisterCountCallback(func(s app.Snapshot) {
			tr.SetCount(s.Count, s.Available, s.Observed, s.Quota)
		})
	} else {
		a.RegisterCountCallback(countPrinter(out))
	}

	if err := a.Start(); err != nil {
		return fmt.Errorf("start capture from %s: %w", cfg.Capture.Source, err)
	}
	logger.Info().
		Str("source", cfg.Capture.Source).
		Int("calibration_frames", cfg.Detection.CalibrationFrameQuota).
		Msg("calibrating background, keep hands out of view")

	serverErr := make(chan error, 1)
	if cfg.Server.Addr != "" {
		srv := server.New(server.Config{
			StaticDir: staticDir(cfg),
			Source:    a,
			Store:     st,
			Base:      base,
			Logger:    logger,
		})
		go func() { serverErr <- srv.ListenAndServe(ctx, cfg.Server.Addr) }()

		if tr != nil {
			url := previewURL(cfg.Server.Addr)
			tr.OnPreview(func() {
				if err := openBrowser(url); err != nil {
					logger.Warn().Err(err).Str("url", url).Msg("failed to open preview")
				}
			})
		}
	} else {
		close(serverErr)
	}

	wait := func() error {
		select {
		case <-ctx.Done():
			return nil
		case <-a.Done():
			return nil
		case err, ok := <-serverErr:
			if ok && err != nil {
				return fmt.Errorf("http server: %w", err)
			}
			// Server disabled; keep waiting on the pipeline.
			select {
			case <-ctx.Done():
			case <-a.Done():
			}
			return nil
		}
	}

	if tr != nil {
		// The tray event loop must own the calling goroutine.
		errCh := make(chan error, 1)
		go func() {
			errCh <- wait()
			tr.Quit()
		}()
		tr.Run()
		cancel()
		err = <-errCh
	} else {
		err = wait()
	}

	cancel()
	a.Stop()
	logStop(logger, a.Snapshot())
	return err
}

// countPrinter returns a callback printing every change of the stable count.
func countPrinter(out io.Writer) func(app.Snapshot) {
	lastAvailable, lastCount := false, -1
	return func(s app.Snapshot) {
		if s.Available == lastAvailable && s.Count == lastCount {
			return
		}
		lastAvailable, lastCount = s.Available, s.Count
		if !s.Available {
			fmt.Fprintln(out, "calibrating...")
			return
		}
		fmt.Fprintf(out, "fingers: %d\n", s.Count)
	}
}

func logStop(logger zerolog.Logger, s app.Snapshot) {
	logger.Info().
		Uint64("frames", s.Frames).
		Uint64("dropped", s.Dropped).
		Msg("fingercount stopped")
}

// staticDir returns the configured static directory, or the first web
// directory found in common locations.
func staticDir(cfg config.Config) string {
	if cfg.Server.StaticDir != "" {
		if dir, err := config.ExpandPath(cfg.Server.StaticDir); err == nil {
			return dir
		}
	}

	// Check relative paths from current working directory
	candidates := []string{"web", "../web", "../../web", filepath.Join(cfg.Storage.DataDir, "web")}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}

func previewURL(addr string) string {
	host := addr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	return "http://" + host + "/api/stream"
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	go cmd.Wait()
	return nil
}
