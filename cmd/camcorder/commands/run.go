package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bryanchriswhite/camcorder/internal/attr"
	"github.com/bryanchriswhite/camcorder/internal/camcorder"
	"github.com/bryanchriswhite/camcorder/internal/logger"
	"github.com/bryanchriswhite/camcorder/internal/state"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	runCount    int
	runInterval int
	runDuration time.Duration
	runOutput   string
	runSet      []string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a capture or recording session without a server",
	Long: `Open the device from the active profile, run one session end to end and
release the device.`,
}

var runImageCmd = &cobra.Command{
	Use:   "image",
	Short: "Capture a burst of still images",
	Example: `  # Take three shots 500ms apart
  camcorder run image --count 3 --interval 500

  # Capture at a given resolution with the in-memory backend
  camcorder run image --backend sim --set capture-width=640 --set capture-height=480`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSession(state.ModeImage)
	},
}

var runVideoCmd = &cobra.Command{
	Use:   "video",
	Short: "Record a video clip",
	Example: `  # Record ten seconds
  camcorder run video --duration 10s --output /tmp/clip.mp4`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSession(state.ModeVideo)
	},
}

var runAudioCmd = &cobra.Command{
	Use:   "audio",
	Short: "Record an audio clip",
	Example: `  # Record until Ctrl+C or a size limit of 2MB
  camcorder run audio --duration 0 --set target-max-size=2048`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSession(state.ModeAudio)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.AddCommand(runImageCmd)
	runCmd.AddCommand(runVideoCmd)
	runCmd.AddCommand(runAudioCmd)

	runCmd.PersistentFlags().StringArrayVar(&runSet, "set", nil, "attribute NAME=VALUE applied before realize (repeatable)")
	runImageCmd.Flags().IntVar(&runCount, "count", 1, "number of shots")
	runImageCmd.Flags().IntVar(&runInterval, "interval", 0, "milliseconds between shots")
	for _, c := range []*cobra.Command{runVideoCmd, runAudioCmd} {
		c.Flags().DurationVar(&runDuration, "duration", 5*time.Second, "recording length; 0 records until interrupted or a limit is hit")
		c.Flags().StringVar(&runOutput, "output", "", "output file (default is a new file in the profile output directory)")
	}
}

func runSession(mode state.Mode) error {
	log := logger.WithComponent("cli")

	_, settings, profile, err := loadSettings()
	if err != nil {
		return err
	}
	pairs, err := parsePairs(runSet)
	if err != nil {
		return err
	}

	dev, err := openDevice(settings, profile, mode)
	if err != nil {
		return fmt.Errorf("failed to open device: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		dev.shutdown(ctx)
	}()

	msgs := make(chan camcorder.Message, 64)
	dev.eng.SetMessageCallback(func(m camcorder.Message) {
		select {
		case msgs <- m:
		default:
		}
	})

	switch mode {
	case state.ModeImage:
		pairs = append(pairs, attr.P("capture-count", runCount), attr.P("capture-interval", runInterval))
	default:
		out := runOutput
		if out == "" {
			ext := ".mp4"
			if mode == state.ModeAudio {
				ext = ".m4a"
			}
			out = filepath.Join(dev.outputDir, "rec-"+uuid.NewString()+ext)
		}
		pairs = append(pairs, attr.P("target-filename", out))
	}
	if err := dev.eng.SetAttributes(pairs); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := dev.eng.Realize(ctx); err != nil {
		return err
	}
	if err := dev.eng.Start(ctx); err != nil {
		return err
	}

	if mode == state.ModeImage {
		err = captureBurst(ctx, dev.eng, msgs)
	} else {
		err = record(ctx, dev.eng, msgs)
	}
	if err != nil {
		return err
	}

	if err := dev.eng.Stop(context.Background()); err != nil {
		return err
	}
	log.Info().Str("mode", mode.String()).Msg("Session complete")
	return nil
}

func captureBurst(ctx context.Context, eng *camcorder.Engine, msgs <-chan camcorder.Message) error {
	if err := eng.CaptureStart(ctx); err != nil {
		return err
	}
	defer eng.CaptureStop(context.Background())

	for {
		select {
		case <-ctx.Done():
			eng.SetAttributes([]attr.Pair{attr.P("capture-break-cont-shot", 1)})
			return ctx.Err()
		case m := <-msgs:
			switch m.Kind {
			case camcorder.MessageCaptureDone:
				fmt.Printf("📷 captured %d image(s), session %s\n", m.Count, m.Session)
				return nil
			case camcorder.MessageError:
				return fmt.Errorf("capture failed: %s", m.Error)
			}
		}
	}
}

// record runs until the duration elapses, the user interrupts or a soft
// limit halts the recording, then commits
func record(ctx context.Context, eng *camcorder.Engine, msgs <-chan camcorder.Message) error {
	log := logger.WithComponent("cli")
	if err := eng.Record(ctx); err != nil {
		return err
	}

	var timeout <-chan time.Time
	if runDuration > 0 {
		timer := time.NewTimer(runDuration)
		defer timer.Stop()
		timeout = timer.C
	}

wait:
	for {
		select {
		case <-ctx.Done():
			break wait
		case <-timeout:
			break wait
		case m := <-msgs:
			switch {
			case m.Kind == camcorder.MessageError:
				eng.Cancel(context.Background())
				return fmt.Errorf("recording failed: %s", m.Error)
			case m.Kind.Soft():
				log.Warn().Str("kind", m.Kind.String()).Msg("Recording halted")
				break wait
			case m.Kind == camcorder.MessageRecordingStatus:
				log.Debug().Dur("elapsed", m.Elapsed).Int64("size", m.FileSize).Msg("Recording")
			}
		}
	}

	if err := eng.Commit(context.Background()); err != nil {
		return err
	}
	for {
		select {
		case m := <-msgs:
			if m.Kind == camcorder.MessageRecordingDone {
				fmt.Printf("🎬 recorded %s (%s, %d bytes)\n", m.Location, m.Elapsed.Round(time.Millisecond), m.FileSize)
				return nil
			}
		case <-time.After(5 * time.Second):
			return nil
		}
	}
}
