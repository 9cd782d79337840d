package output

import (
	"image"
	"sync"
	"time"

	"github.com/bryanchriswhite/camcorder/internal/logger"
)

// Renderer draws onto a frame in place before it is written out
type Renderer interface {
	Render(img *image.RGBA) error
}

type rawFrame struct {
	data          []byte
	format        string
	width, height int
}

// Feeder converts raw preview frames at the configured rate and fans them
// out to outputs. Feed never blocks; frames arriving while a conversion is
// in flight are dropped.
type Feeder struct {
	config  Config
	outputs []Output
	overlay Renderer

	frames chan rawFrame
	mu     sync.Mutex
	last   time.Time
	stop   chan struct{}
	done   chan struct{}
}

// NewFeeder starts a feeder for outputs
func NewFeeder(config Config, outputs ...Output) *Feeder {
	f := &Feeder{
		config:  config,
		outputs: outputs,
		frames:  make(chan rawFrame, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go f.run()
	return f
}

// SetOverlay installs r to draw on every frame; call before feeding
func (f *Feeder) SetOverlay(r Renderer) {
	f.mu.Lock()
	f.overlay = r
	f.mu.Unlock()
}

// Feed offers one raw frame
func (f *Feeder) Feed(data []byte, format string, width, height int) {
	if f.config.FPS > 0 {
		f.mu.Lock()
		now := time.Now()
		if now.Sub(f.last) < time.Second/time.Duration(f.config.FPS) {
			f.mu.Unlock()
			return
		}
		f.last = now
		f.mu.Unlock()
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	select {
	case f.frames <- rawFrame{buf, format, width, height}:
	default:
	}
}

// Close stops the feeder
func (f *Feeder) Close() {
	close(f.stop)
	<-f.done
}

func (f *Feeder) run() {
	defer close(f.done)
	log := logger.WithComponent("output")

	for {
		select {
		case <-f.stop:
			return
		case raw := <-f.frames:
			img, err := ToRGBA(raw.data, raw.format, raw.width, raw.height)
			if err != nil {
				log.Debug().Err(err).Msg("Preview frame dropped")
				continue
			}
			if f.config.Width > 0 && f.config.Height > 0 {
				img = Fit(img, f.config.Width, f.config.Height)
			}
			f.mu.Lock()
			overlay := f.overlay
			f.mu.Unlock()
			if overlay != nil {
				if err := overlay.Render(img); err != nil {
					log.Debug().Err(err).Msg("Overlay failed")
				}
			}
			for _, out := range f.outputs {
				if !out.IsRunning() {
					continue
				}
				if err := out.WriteFrame(img); err != nil {
					log.Debug().Err(err).Str("output", out.Name()).Msg("Output rejected frame")
				}
			}
		}
	}
}
