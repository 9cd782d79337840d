package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/bryanchriswhite/camcorder/internal/camcorder"
	"github.com/bryanchriswhite/camcorder/internal/config"
	"github.com/bryanchriswhite/camcorder/internal/hal"
	"github.com/bryanchriswhite/camcorder/internal/logger"
	"github.com/bryanchriswhite/camcorder/internal/pipeline"
	"github.com/bryanchriswhite/camcorder/internal/pipeline/gstreamer"
	"github.com/bryanchriswhite/camcorder/internal/pipeline/memgraph"
	"github.com/bryanchriswhite/camcorder/internal/power"
	"github.com/bryanchriswhite/camcorder/internal/state"
	"github.com/spf13/viper"
)

// device is an engine plus the drivers opened for it
type device struct {
	eng       *camcorder.Engine
	profile   config.DeviceProfile
	closers   []io.Closer
	outputDir string
}

// loadSettings opens the settings file and applies flag overrides
func loadSettings() (*config.Manager, *config.Settings, config.DeviceProfile, error) {
	mgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return nil, nil, config.DeviceProfile{}, fmt.Errorf("failed to load config: %w", err)
	}
	s := mgr.Get()
	if port := viper.GetInt("server_port"); port > 0 {
		s.ServerPort = port
	}
	if level := viper.GetString("log_level"); level != "" {
		s.LogLevel = level
	} else {
		logger.Init(s.LogLevel, true)
	}

	p := mgr.ActiveProfile()
	if b := viper.GetString("backend"); b != "" {
		p.Backend = b
		if b == config.BackendSim {
			p.Sensor.Driver = config.SensorSim
		}
	}
	if files := viper.GetStringSlice("device_configs"); len(files) > 0 {
		p.DeviceConfigs = files
	}
	return mgr, s, p, nil
}

// openDevice builds an engine for profile in mode
func openDevice(s *config.Settings, p config.DeviceProfile, mode state.Mode) (*device, error) {
	log := logger.WithComponent("cli")
	d := &device{profile: p, outputDir: p.OutputDir}
	if d.outputDir == "" {
		d.outputDir = os.TempDir()
	}

	store, err := config.Load(p.DeviceConfigs...)
	if err != nil {
		return nil, err
	}

	var backend pipeline.Backend
	switch p.Backend {
	case config.BackendGStreamer:
		backend = gstreamer.New(gstreamer.Options{
			BusPollInterval: time.Duration(store.IntOr(config.CategoryGeneral, "BusPollInterval", 100)) * time.Millisecond,
		})
	case config.BackendSim:
		backend = memgraph.New(memgraph.Options{})
	default:
		return nil, fmt.Errorf("unknown backend %q (use gstreamer or sim)", p.Backend)
	}

	opts := camcorder.Options{
		Config:  store,
		Backend: backend,
		Mode:    mode,
	}
	if s.StateChangeTimeout > 0 {
		opts.Timeout = time.Duration(s.StateChangeTimeout) * time.Millisecond
	}

	switch p.Sensor.Driver {
	case config.SensorV4L2:
		sensor, err := hal.OpenV4L2(p.Sensor.Device)
		if err != nil {
			d.close()
			return nil, err
		}
		d.closers = append(d.closers, sensor)
		opts.Sensor = sensor
	case config.SensorSim:
		opts.Sensor = hal.NewSimSensor()
	}

	if p.Strobe.Enabled {
		if p.Backend == config.BackendSim {
			opts.Strobe = &hal.SimStrobe{}
		} else {
			strobe, err := hal.OpenGPIOStrobe(p.Strobe.Chip, p.Strobe.Line)
			if err != nil {
				d.close()
				return nil, err
			}
			d.closers = append(d.closers, strobe)
			opts.Strobe = strobe
		}
	}

	if s.InhibitSleep {
		inh, err := power.Connect("camcorder")
		if err != nil {
			log.Warn().Err(err).Msg("Sleep inhibitor unavailable, recordings may be interrupted by suspend")
		} else {
			d.closers = append(d.closers, inh)
			opts.Inhibitor = inh
		}
	}

	eng, err := camcorder.New(opts)
	if err != nil {
		d.close()
		return nil, err
	}
	d.eng = eng
	eng.SetCapturedCallback(d.saveCapture)
	return d, nil
}

// saveCapture writes one captured image into the output directory
func (d *device) saveCapture(c camcorder.Captured) {
	log := logger.WithComponent("cli")
	ext := ".jpg"
	if c.Media == pipeline.MediaPNG {
		ext = ".png"
	}
	path := filepath.Join(d.outputDir, fmt.Sprintf("%s-%03d%s", c.Session, c.Index, ext))
	if err := os.WriteFile(path, c.Data, 0644); err != nil {
		log.Error().Err(err).Str("path", path).Msg("Failed to save capture")
		return
	}
	log.Info().Str("path", path).Int("width", c.Width).Int("height", c.Height).Msg("Capture saved")
}

// shutdown unwinds the lifecycle to NULL and releases the drivers
func (d *device) shutdown(ctx context.Context) {
	log := logger.WithComponent("cli")
	for i := 0; i < 5 && d.eng.State() != state.StateNull; i++ {
		var err error
		switch d.eng.State() {
		case state.StateRecording, state.StatePaused:
			err = d.eng.Cancel(ctx)
		case state.StateCapturing:
			err = d.eng.CaptureStop(ctx)
		case state.StatePrepare:
			err = d.eng.Stop(ctx)
		case state.StateReady:
			err = d.eng.Unrealize(ctx)
		}
		if err != nil {
			log.Warn().Err(err).Str("state", d.eng.State().String()).Msg("Shutdown step failed")
		}
	}
	if err := d.eng.Destroy(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to destroy device")
	}
	d.close()
}

func (d *device) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i].Close()
	}
	d.closers = nil
}
