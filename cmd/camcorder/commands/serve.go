package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bryanchriswhite/camcorder/internal/api"
	"github.com/bryanchriswhite/camcorder/internal/attr"
	"github.com/bryanchriswhite/camcorder/internal/camcorder"
	"github.com/bryanchriswhite/camcorder/internal/display"
	"github.com/bryanchriswhite/camcorder/internal/logger"
	"github.com/bryanchriswhite/camcorder/internal/output"
	"github.com/bryanchriswhite/camcorder/internal/overlay"
	"github.com/bryanchriswhite/camcorder/internal/state"
	"github.com/spf13/cobra"
)

var serveMode string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the camcorder server",
	Long: `Open the device described by the active profile and serve the HTTP API.

The API drives lifecycle commands, reads and writes attributes, streams engine
messages over a websocket and serves the live preview as MJPEG.`,
	Example: `  # Start server on default port (8080)
  camcorder serve

  # Start in video mode on a custom port
  camcorder serve --mode video --port 9090

  # Use the in-memory backend
  camcorder serve --backend sim

  # Start with debug logging
  camcorder serve --log-level debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveMode, "mode", "image", "initial capture mode (image, video, audio)")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("cli")

	mode, ok := state.ParseMode(serveMode)
	if !ok {
		return fmt.Errorf("unknown mode %q (use image, video or audio)", serveMode)
	}

	mgr, settings, profile, err := loadSettings()
	if err != nil {
		return err
	}
	log.Info().
		Str("config", mgr.Path()).
		Str("profile", profile.ID).
		Str("backend", profile.Backend).
		Str("log_level", settings.LogLevel).
		Msg("Configuration loaded")

	dev, err := openDevice(settings, profile, mode)
	if err != nil {
		return fmt.Errorf("failed to open device: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		dev.shutdown(ctx)
	}()

	previewCfg := output.Config{
		Width:   settings.Preview.Width,
		Height:  settings.Preview.Height,
		FPS:     settings.Preview.FPS,
		Quality: settings.Preview.Quality,
	}

	var outputs []output.Output
	mjpeg := output.NewMJPEGOutput(previewCfg)
	if settings.Preview.Enabled {
		if err := mjpeg.Start(); err != nil {
			return fmt.Errorf("failed to start preview: %w", err)
		}
		defer mjpeg.Stop()
		outputs = append(outputs, mjpeg)
	}

	if settings.PreviewWindow {
		win, err := display.NewWindow(previewCfg, "camcorder preview")
		if err == nil {
			err = win.Start()
		}
		if err != nil {
			log.Warn().Err(err).Msg("Preview window unavailable")
		} else {
			defer win.Stop()
			outputs = append(outputs, win)
			if err := dev.eng.SetAttributes([]attr.Pair{attr.P("display-handle", win.Handle())}); err != nil {
				log.Warn().Err(err).Msg("Failed to hand the window to the display sink")
			}
		}
	}

	status := overlay.NewStatusWidget("status", 8, 8)
	if len(outputs) > 0 {
		feeder := output.NewFeeder(previewCfg, outputs...)
		defer feeder.Close()
		if settings.Preview.Overlay {
			badges := overlay.NewManager()
			badges.AddWidget(status)
			feeder.SetOverlay(badges)
		}
		dev.eng.SetVideoStreamCallback(func(f camcorder.Frame) {
			feeder.Feed(f.Data, f.Format, f.Width, f.Height)
		})
	}

	hub := api.NewHub()
	dev.eng.SetMessageCallback(func(m camcorder.Message) {
		status.Observe(m)
		hub.Publish(m)
	})

	opts := api.Options{Device: dev.eng, Hub: hub, Version: Version}
	if settings.Preview.Enabled {
		opts.Preview = mjpeg
		opts.Stats = mjpeg.StatsHandler()
	}
	server := api.NewServer(opts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Int("port", settings.ServerPort).
		Str("mode", mode.String()).
		Str("output_dir", dev.outputDir).
		Msg("camcorder is running, press Ctrl+C to stop")

	if err := server.Start(ctx, settings.ServerPort); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	log.Info().Msg("Shutting down gracefully")
	return nil
}
