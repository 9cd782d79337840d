package camcorder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bryanchriswhite/camcorder/internal/attr"
	"github.com/bryanchriswhite/camcorder/internal/camerr"
	"github.com/bryanchriswhite/camcorder/internal/capability"
	"github.com/bryanchriswhite/camcorder/internal/pipeline"
	"github.com/google/uuid"
)

// strobePulse is how long the strobe line is held for one shot
const strobePulse = 20 * time.Millisecond

// Tags is the geotag and description attached to a capture when tag-enable
// is set
type Tags struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Altitude    float64 `json:"altitude"`
	Description string  `json:"description,omitempty"`
}

// Captured is one encoded image of a burst
type Captured struct {
	ID      uuid.UUID `json:"id"`
	Session uuid.UUID `json:"session"`
	Index   int       `json:"index"`
	Media   string    `json:"media"`
	Width   int       `json:"width"`
	Height  int       `json:"height"`
	Data    []byte    `json:"-"`
	Tags    *Tags     `json:"tags,omitempty"`
}

// burst takes capture-count shots spaced by capture-interval milliseconds
type burst struct {
	e        *Engine
	session  uuid.UUID
	port     pipeline.Node
	count    int
	interval time.Duration
	strobe   bool
	wait     time.Duration

	frames  chan pipeline.Sample
	results chan pipeline.Sample

	brk     chan struct{}
	brkOnce sync.Once

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func (e *Engine) newBurst(eg *pipeline.EncodeGraph) *burst {
	port, _ := eg.Port(pipeline.RoleImage)
	ctx, cancel := context.WithCancel(context.Background())
	count := e.attrs.Int(attr.CaptureCount)
	if count < 1 {
		count = 1
	}
	return &burst{
		e:        e,
		session:  uuid.New(),
		port:     port,
		count:    count,
		interval: time.Duration(e.attrs.Int(attr.CaptureInterval)) * time.Millisecond,
		strobe:   e.strobe != nil && e.tr.ToDevice(capability.FeatureStrobeMode, e.attrs.Int(attr.StrobeMode)) != 0,
		wait:     e.orch.Timeout(),
		frames:   make(chan pipeline.Sample, 1),
		results:  make(chan pipeline.Sample, count),
		brk:      make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

func (b *burst) start() {
	b.e.log.Info().
		Str("session", b.session.String()).
		Int("count", b.count).
		Dur("interval", b.interval).
		Bool("strobe", b.strobe).
		Msg("Capture started")
	go b.run()
}

// offer hands a preview frame to a shot waiting for one
func (b *burst) offer(s pipeline.Sample) {
	select {
	case b.frames <- s:
	default:
	}
}

// result receives encoded images from the image graph
func (b *burst) result(s pipeline.Sample) {
	select {
	case b.results <- s:
	default:
		b.e.log.Warn().Str("session", b.session.String()).Msg("Unexpected extra capture result dropped")
	}
}

// breakShot stops the burst before its next shot
func (b *burst) breakShot() {
	b.brkOnce.Do(func() { close(b.brk) })
}

func (b *burst) stop() {
	b.cancel()
	<-b.done
}

func (b *burst) run() {
	defer close(b.done)

	taken := 0
	for i := 0; i < b.count; i++ {
		if i > 0 && !b.sleep(b.interval) {
			break
		}
		if b.broken() {
			break
		}
		if err := b.shoot(i); err != nil {
			if b.ctx.Err() == nil {
				b.e.log.Error().Err(err).Str("session", b.session.String()).Int("index", i).Msg("Capture failed")
				b.e.post(Message{Kind: MessageError, Source: "capture", Session: b.session.String(), Err: err, Error: err.Error()})
			}
			break
		}
		taken++
	}

	b.e.log.Info().Str("session", b.session.String()).Int("taken", taken).Msg("Capture done")
	b.e.post(Message{Kind: MessageCaptureDone, Session: b.session.String(), Count: taken})
}

func (b *burst) broken() bool {
	select {
	case <-b.brk:
		return true
	default:
		return false
	}
}

// sleep waits d; false means the burst was stopped or broken meanwhile
func (b *burst) sleep(d time.Duration) bool {
	if d <= 0 {
		return b.ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-b.brk:
		return false
	case <-b.ctx.Done():
		return false
	}
}

func (b *burst) shoot(index int) error {
	if b.strobe {
		if err := b.e.strobe.Fire(b.ctx, strobePulse); err != nil {
			b.e.log.Warn().Err(err).Msg("Strobe did not fire")
		}
	}

	// drop a frame that was exposed before this shot
	select {
	case <-b.frames:
	default:
	}

	frame, err := b.next(b.frames, "preview frame")
	if err != nil {
		return err
	}
	if err := b.port.Push(frame); err != nil {
		return fmt.Errorf("push frame: %w", err)
	}
	img, err := b.next(b.results, "encoded image")
	if err != nil {
		return err
	}

	c := Captured{
		ID:      uuid.New(),
		Session: b.session,
		Index:   index,
		Media:   img.Caps.Media,
		Width:   img.Caps.Width,
		Height:  img.Caps.Height,
		Data:    img.Data,
		Tags:    b.e.tags(),
	}
	b.e.cbMu.RLock()
	fn := b.e.onCaptured
	b.e.cbMu.RUnlock()
	if fn != nil {
		fn(c)
	}
	b.e.log.Debug().Str("id", c.ID.String()).Int("index", index).Int("bytes", len(c.Data)).Msg("Image captured")
	return nil
}

func (b *burst) next(ch <-chan pipeline.Sample, what string) (pipeline.Sample, error) {
	t := time.NewTimer(b.wait)
	defer t.Stop()
	select {
	case s := <-ch:
		return s, nil
	case <-t.C:
		return pipeline.Sample{}, fmt.Errorf("no %s within %s: %w", what, b.wait, camerr.ErrResponseTimeout)
	case <-b.ctx.Done():
		return pipeline.Sample{}, b.ctx.Err()
	}
}

func (e *Engine) tags() *Tags {
	if e.attrs.Int(attr.TagEnable) == 0 {
		return nil
	}
	return &Tags{
		Latitude:    e.attrs.Double(attr.TagLatitude),
		Longitude:   e.attrs.Double(attr.TagLongitude),
		Altitude:    e.attrs.Double(attr.TagAltitude),
		Description: e.attrs.String(attr.TagImageDescription),
	}
}
