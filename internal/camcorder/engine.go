// Package camcorder is the device engine. It owns the attribute table, the
// lifecycle state machine and the pipeline orchestrator, and exposes the
// application surface: lifecycle commands, attribute access and callbacks
// for messages, raw frames and captured images.
//
// Every call runs on the caller's goroutine. Pipeline messages arrive on
// watcher goroutines and are delivered to the message callback in order
// from a single dispatch goroutine.
package camcorder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bryanchriswhite/camcorder/internal/attr"
	"github.com/bryanchriswhite/camcorder/internal/camerr"
	"github.com/bryanchriswhite/camcorder/internal/capability"
	"github.com/bryanchriswhite/camcorder/internal/config"
	"github.com/bryanchriswhite/camcorder/internal/hal"
	"github.com/bryanchriswhite/camcorder/internal/logger"
	"github.com/bryanchriswhite/camcorder/internal/pipeline"
	"github.com/bryanchriswhite/camcorder/internal/state"
	"github.com/rs/zerolog"
)

// Inhibitor keeps the system awake. The returned closer releases the lock.
type Inhibitor interface {
	Inhibit(why string) (io.Closer, error)
}

// Options configure an Engine
type Options struct {
	// Config holds the device capability tables; compiled defaults when nil
	Config *config.Store
	// Backend creates the native graphs
	Backend pipeline.Backend
	// Sensor applies camera controls; controls are only stored when nil
	Sensor hal.Sensor
	// Strobe fires the flash during captures
	Strobe hal.Strobe
	// Inhibitor blocks system sleep while recording
	Inhibitor Inhibitor
	// Mode is the initial capture mode
	Mode state.Mode
	// Timeout overrides General/StateChangeTimeout
	Timeout time.Duration
}

// Frame is one raw preview frame
type Frame struct {
	Data   []byte
	Format string
	Width  int
	Height int
	PTS    time.Duration
}

// Engine is one camcorder device
type Engine struct {
	cfg       *config.Store
	tr        *capability.Translator
	machine   *state.Machine
	attrs     *attr.Store
	orch      *pipeline.Orchestrator
	sensor    hal.Sensor
	strobe    hal.Strobe
	inhibitor Inhibitor
	log       *zerolog.Logger

	cbMu       sync.RWMutex
	onMessage  func(Message)
	onFrame    func(Frame)
	onCaptured func(Captured)

	msgMu     sync.RWMutex
	msgs      chan Message
	msgClosed bool
	msgsDone  chan struct{}

	sessMu sync.Mutex
	rec    *recorder
	shot   *burst
	wake   io.Closer

	faceCheck atomic.Int64
	destroyed atomic.Bool
}

// New creates an engine in NULL
func New(opts Options) (*Engine, error) {
	if opts.Backend == nil {
		return nil, fmt.Errorf("engine needs a pipeline backend: %w", camerr.ErrInvalidArgument)
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Defaults()
	}

	e := &Engine{
		cfg:       cfg,
		tr:        capability.New(cfg),
		sensor:    opts.Sensor,
		strobe:    opts.Strobe,
		inhibitor: opts.Inhibitor,
		log:       logger.WithComponent("camcorder"),
		msgs:      make(chan Message, 256),
		msgsDone:  make(chan struct{}),
	}
	e.machine = state.New(e.mode)

	attrs, err := attr.New(e.tr, e.machine)
	if err != nil {
		return nil, err
	}
	e.attrs = attrs

	orch, err := pipeline.New(pipeline.Options{
		Backend:    opts.Backend,
		Translator: e.tr,
		Attributes: attrs,
		State:      e.machine,
		Timeout:    opts.Timeout,
	})
	if err != nil {
		return nil, err
	}
	e.orch = orch

	if err := attrs.Set([]attr.Pair{attr.P("mode", int(opts.Mode))}); err != nil {
		return nil, err
	}

	e.registerHandlers()
	orch.SetMessageHandler(e.handlePipelineMessage)
	orch.OnVideoSample(e.handleVideo)
	orch.OnAudioSample(e.handleAudio)
	e.machine.OnTransition(e.handleTransition)

	go e.dispatch()

	sensor := "none"
	if e.sensor != nil {
		sensor = e.sensor.Name()
	}
	e.log.Info().
		Str("backend", opts.Backend.Name()).
		Str("sensor", sensor).
		Str("mode", opts.Mode.String()).
		Str("model", attrs.String(attr.ModelName)).
		Msg("Camcorder created")
	return e, nil
}

func (e *Engine) mode() state.Mode {
	if e.attrs == nil {
		return state.ModeImage
	}
	return state.Mode(e.attrs.Int(attr.Mode))
}

func (e *Engine) alive() error {
	if e == nil || e.destroyed.Load() {
		return camerr.ErrNotInitialized
	}
	return nil
}

// Destroy releases the engine. It is only legal in NULL.
func (e *Engine) Destroy(ctx context.Context) error {
	if err := e.alive(); err != nil {
		return err
	}
	if err := e.machine.TryAcquire(); err != nil {
		return fmt.Errorf("destroy: %w", err)
	}
	defer e.machine.Release()

	if cur := e.machine.Current(); cur != state.StateNull {
		return fmt.Errorf("destroy in %s: %w", cur, camerr.ErrInvalidState)
	}
	if !e.destroyed.CompareAndSwap(false, true) {
		return camerr.ErrNotInitialized
	}

	var errs []error
	errs = append(errs, e.orch.Close(ctx))
	if e.sensor != nil {
		errs = append(errs, e.sensor.Close())
	}
	if e.strobe != nil {
		errs = append(errs, e.strobe.Close())
	}
	e.msgMu.Lock()
	e.msgClosed = true
	close(e.msgs)
	e.msgMu.Unlock()
	<-e.msgsDone

	e.log.Info().Msg("Camcorder destroyed")
	return errors.Join(errs...)
}

// State returns the authoritative device state
func (e *Engine) State() state.State {
	if e.alive() != nil {
		return state.StateNull
	}
	return e.machine.Current()
}

// Mode returns the active capture mode
func (e *Engine) Mode() state.Mode {
	return e.mode()
}

// GetAttributes returns the values of names in order
func (e *Engine) GetAttributes(names ...string) ([]any, error) {
	if err := e.alive(); err != nil {
		return nil, err
	}
	return e.attrs.Get(names...)
}

// SetAttributes validates every pair, then stores and applies them in order
func (e *Engine) SetAttributes(pairs []attr.Pair) error {
	if err := e.alive(); err != nil {
		return err
	}
	return e.attrs.Set(pairs)
}

// AttributeInfo describes the named attribute
func (e *Engine) AttributeInfo(name string) (attr.Info, error) {
	if err := e.alive(); err != nil {
		return attr.Info{}, err
	}
	return e.attrs.Info(name)
}

// AttributeNames lists every attribute in table order
func (e *Engine) AttributeNames() []string {
	return e.attrs.Names()
}

// SetMessageCallback registers the receiver of engine messages
func (e *Engine) SetMessageCallback(fn func(Message)) {
	e.cbMu.Lock()
	e.onMessage = fn
	e.cbMu.Unlock()
}

// SetVideoStreamCallback registers the receiver of raw preview frames. fn
// runs on the pipeline's streaming goroutine and must not block.
func (e *Engine) SetVideoStreamCallback(fn func(Frame)) {
	e.cbMu.Lock()
	e.onFrame = fn
	e.cbMu.Unlock()
}

// SetCapturedCallback registers the receiver of encoded captures
func (e *Engine) SetCapturedCallback(fn func(Captured)) {
	e.cbMu.Lock()
	e.onCaptured = fn
	e.cbMu.Unlock()
}

func (e *Engine) post(msg Message) {
	e.msgMu.RLock()
	defer e.msgMu.RUnlock()
	if e.msgClosed {
		return
	}
	select {
	case e.msgs <- msg:
	default:
		e.log.Warn().Str("kind", msg.Kind.String()).Msg("Message queue full, dropping message")
	}
}

func (e *Engine) dispatch() {
	defer close(e.msgsDone)
	for msg := range e.msgs {
		e.cbMu.RLock()
		fn := e.onMessage
		e.cbMu.RUnlock()
		if fn != nil {
			fn(msg)
		}
	}
}

func (e *Engine) handleTransition(cmd state.Command, from, to state.State) {
	e.post(Message{Kind: MessageStateChanged, Command: cmd.String(), From: from.String(), To: to.String()})

	switch {
	case to == state.StateRecording && from == state.StatePrepare:
		e.acquireWakeLock()
	case to == state.StatePrepare && (from == state.StateRecording || from == state.StatePaused):
		e.releaseWakeLock()
	}
}

func (e *Engine) acquireWakeLock() {
	if e.inhibitor == nil {
		return
	}
	lock, err := e.inhibitor.Inhibit("Recording video")
	if err != nil {
		e.log.Warn().Err(err).Msg("Could not inhibit sleep")
		return
	}
	e.sessMu.Lock()
	e.wake = lock
	e.sessMu.Unlock()
}

func (e *Engine) releaseWakeLock() {
	e.sessMu.Lock()
	lock := e.wake
	e.wake = nil
	e.sessMu.Unlock()
	if lock == nil {
		return
	}
	if err := lock.Close(); err != nil {
		e.log.Warn().Err(err).Msg("Could not release sleep inhibitor")
	}
}

func (e *Engine) handlePipelineMessage(msg pipeline.Message) {
	switch msg.Kind {
	case pipeline.MessageError:
		e.post(Message{Kind: MessageError, Source: msg.Source, Err: msg.Err, Error: errString(msg.Err)})
	case pipeline.MessageWarning:
		e.post(Message{Kind: MessageWarning, Source: msg.Source, Err: msg.Err, Error: errString(msg.Err)})
	case pipeline.MessageStorageExhausted:
		e.haltRecording(MessageStorageExhausted, fmt.Errorf("%s: %v: %w", msg.Source, msg.Err, camerr.ErrStorageExhausted))
	case pipeline.MessageTimeLimit:
		e.haltRecording(MessageTimeLimitReached, fmt.Errorf("%s: %w", msg.Source, camerr.ErrTimeLimitReached))
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (e *Engine) handleVideo(s pipeline.Sample) {
	e.cbMu.RLock()
	fn := e.onFrame
	e.cbMu.RUnlock()
	if fn != nil {
		fn(Frame{Data: s.Data, Format: s.Caps.Format, Width: s.Caps.Width, Height: s.Caps.Height, PTS: s.PTS})
	}

	e.refreshFaces()

	e.sessMu.Lock()
	rec, shot := e.rec, e.shot
	e.sessMu.Unlock()
	if rec != nil {
		rec.push(pipeline.RoleVideo, s)
	}
	if shot != nil {
		shot.offer(s)
	}
}

func (e *Engine) handleAudio(s pipeline.Sample) {
	e.sessMu.Lock()
	rec := e.rec
	e.sessMu.Unlock()
	if rec != nil {
		rec.push(pipeline.RoleAudio, s)
	}
}

const faceCheckInterval = 250 * time.Millisecond

// refreshFaces publishes the detected face count, at most every
// faceCheckInterval
func (e *Engine) refreshFaces() {
	fd, ok := e.sensor.(hal.FaceDetector)
	if !ok || e.attrs.Int(attr.DetectMode) == 0 {
		return
	}
	now := time.Now().UnixNano()
	last := e.faceCheck.Load()
	if now-last < int64(faceCheckInterval) || !e.faceCheck.CompareAndSwap(last, now) {
		return
	}
	e.publishFaces(fd.Faces())
}

func (e *Engine) publishFaces(n int) {
	if n == e.attrs.Int(attr.DetectNumber) {
		return
	}
	if err := e.attrs.SetInternal(attr.DetectNumber, n); err != nil {
		e.log.Warn().Err(err).Msg("Could not store face count")
		return
	}
	e.post(Message{Kind: MessageFacesDetected, Faces: n})
}
