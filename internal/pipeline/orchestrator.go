package pipeline

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bryanchriswhite/camcorder/internal/attr"
	"github.com/bryanchriswhite/camcorder/internal/camerr"
	"github.com/bryanchriswhite/camcorder/internal/capability"
	"github.com/bryanchriswhite/camcorder/internal/config"
	"github.com/bryanchriswhite/camcorder/internal/logger"
	"github.com/bryanchriswhite/camcorder/internal/state"
	"github.com/rs/zerolog"
)

// Preview graph node names
const (
	NodeVideoSource  = "video-source"
	NodeVideoFilter  = "video-filter"
	NodeVideoTee     = "video-tee"
	NodePreviewQueue = "preview-queue"
	NodeFormatBridge = "format-bridge"
	NodeDisplaySink  = "display-sink"
	NodeBridgeQueue  = "bridge-queue"
	NodeVideoSink    = "video-sink"
	NodeAudioSource  = "audio-source"
	NodeAudioFilter  = "audio-filter"
	NodeAudioVolume  = "audio-volume"
	NodeAudioQueue   = "audio-queue"
	NodeAudioSink    = "audio-sink"
)

// Graph names
const (
	GraphPreview = "preview"
	GraphEncode  = "encode"
)

// Attributes is the read side of the attribute store
type Attributes interface {
	Int(id attr.ID) int
	Double(id attr.ID) float64
	String(id attr.ID) string
	Data(id attr.ID) []byte
}

// StateReader exposes the authoritative device state
type StateReader interface {
	Current() state.State
}

// Options configure an Orchestrator
type Options struct {
	Backend    Backend
	Translator *capability.Translator
	Attributes Attributes
	State      StateReader
	// Timeout bounds every native state wait; General/StateChangeTimeout
	// is used when zero.
	Timeout time.Duration
}

type graphRuntime struct {
	graph   Graph
	nodes   []Node
	watcher *watcher
}

// Orchestrator builds the preview and encode graphs of the active mode and
// drives their native state. Graph construction and state changes happen
// under the caller's command lock; live resolution changes take the
// orchestrator's own try-lock.
type Orchestrator struct {
	backend Backend
	tr      *capability.Translator
	cfg     *config.Store
	attrs   Attributes
	state   StateReader
	timeout time.Duration
	log     *zerolog.Logger

	graphMu sync.RWMutex
	preview *graphRuntime
	encode  *EncodeGraph

	reconfMu sync.Mutex
	reconf   reconfMachine

	geomMu   sync.RWMutex
	geometry Geometry

	handlersMu sync.RWMutex
	onMessage  func(Message)
	onVideo    func(Sample)
	onAudio    func(Sample)
}

// New creates an orchestrator
func New(opts Options) (*Orchestrator, error) {
	if opts.Backend == nil || opts.Translator == nil || opts.Attributes == nil || opts.State == nil {
		return nil, fmt.Errorf("orchestrator needs a backend, translator, attributes and state: %w", camerr.ErrInvalidArgument)
	}
	cfg := opts.Translator.Store()
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = time.Duration(cfg.IntOr(config.CategoryGeneral, "StateChangeTimeout", 5000)) * time.Millisecond
	}
	o := &Orchestrator{
		backend: opts.Backend,
		tr:      opts.Translator,
		cfg:     cfg,
		attrs:   opts.Attributes,
		state:   opts.State,
		timeout: timeout,
		log:     logger.WithComponent("pipeline"),
	}
	o.log.Debug().Str("backend", opts.Backend.Name()).Dur("timeout", timeout).Msg("Orchestrator created")
	return o, nil
}

// Timeout returns the bound on native state waits
func (o *Orchestrator) Timeout() time.Duration {
	return o.timeout
}

// SetMessageHandler routes every graph message to fn. fn runs on a watcher
// goroutine.
func (o *Orchestrator) SetMessageHandler(fn func(Message)) {
	o.handlersMu.Lock()
	o.onMessage = fn
	o.handlersMu.Unlock()
}

// OnVideoSample registers the receiver of raw preview frames
func (o *Orchestrator) OnVideoSample(fn func(Sample)) {
	o.handlersMu.Lock()
	o.onVideo = fn
	o.handlersMu.Unlock()
}

// OnAudioSample registers the receiver of raw audio buffers
func (o *Orchestrator) OnAudioSample(fn func(Sample)) {
	o.handlersMu.Lock()
	o.onAudio = fn
	o.handlersMu.Unlock()
}

func (o *Orchestrator) dispatchMessage(msg Message) {
	o.handlersMu.RLock()
	fn := o.onMessage
	o.handlersMu.RUnlock()
	if fn != nil {
		fn(msg)
	}
}

func (o *Orchestrator) dispatchVideo(s Sample) {
	o.handlersMu.RLock()
	fn := o.onVideo
	o.handlersMu.RUnlock()
	if fn != nil {
		fn(s)
	}
}

func (o *Orchestrator) dispatchAudio(s Sample) {
	o.handlersMu.RLock()
	fn := o.onAudio
	o.handlersMu.RUnlock()
	if fn != nil {
		fn(s)
	}
}

func (o *Orchestrator) previewRuntime() *graphRuntime {
	o.graphMu.RLock()
	defer o.graphMu.RUnlock()
	return o.preview
}

// HasPreview reports whether the preview graph is built
func (o *Orchestrator) HasPreview() bool {
	return o.previewRuntime() != nil
}

// PreviewNode returns a node of the preview graph
func (o *Orchestrator) PreviewNode(name string) (Node, bool) {
	rt := o.previewRuntime()
	if rt == nil {
		return nil, false
	}
	return rt.graph.Node(name)
}

// PreviewState returns the last confirmed native state of the preview graph
func (o *Orchestrator) PreviewState() NativeState {
	rt := o.previewRuntime()
	if rt == nil {
		return NativeNull
	}
	return rt.watcher.current()
}

// Encode returns the current encode graph, or nil
func (o *Orchestrator) Encode() *EncodeGraph {
	o.graphMu.RLock()
	defer o.graphMu.RUnlock()
	return o.encode
}

func (o *Orchestrator) previewCaps() Caps {
	g := o.Geometry()
	if g.Width == 0 || g.Height == 0 {
		g = Geometry{Width: o.attrs.Int(attr.CameraWidth), Height: o.attrs.Int(attr.CameraHeight)}
	}
	if g.FPS == 0 {
		g.FPS = o.attrs.Int(attr.CameraFPS)
	}
	return Caps{
		Media:  MediaRawVideo,
		Format: PixelFormat(o.attrs.Int(attr.CameraFormat)),
		Width:  g.Width,
		Height: g.Height,
		FPS:    g.FPS,
	}
}

func (o *Orchestrator) audioCaps() Caps {
	return Caps{
		Media:    MediaRawAudio,
		Format:   AudioFormat(o.attrs.Int(attr.AudioFormat)),
		Rate:     o.attrs.Int(attr.AudioSampleRate),
		Channels: o.attrs.Int(attr.AudioChannel),
	}
}

// BuildPreviewGraph creates the preview graph for mode: a video branch
// (source, filter, tee, preview queue, optional format bridge, display sink
// plus a bridge queue feeding the frame sink) unless mode is audio, and an
// audio branch (source, filter, volume, queue, sink) unless mode is image.
// Any failure removes every node created so far.
func (o *Orchestrator) BuildPreviewGraph(mode state.Mode) (err error) {
	o.graphMu.Lock()
	defer o.graphMu.Unlock()

	if o.preview != nil {
		return fmt.Errorf("preview graph already built: %w", camerr.ErrInvalidState)
	}

	o.setGeometry(Geometry{
		Width:  o.attrs.Int(attr.CameraWidth),
		Height: o.attrs.Int(attr.CameraHeight),
		FPS:    o.attrs.Int(attr.CameraFPS),
	})

	b, err := o.newBuilder(GraphPreview)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			b.unwind()
			o.log.Error().Err(err).Str("mode", mode.String()).Msg("Preview graph build failed")
		}
	}()

	if mode != state.ModeAudio {
		if err = o.buildVideoBranch(b); err != nil {
			return err
		}
	}
	if mode != state.ModeImage {
		if err = o.buildAudioBranch(b); err != nil {
			return err
		}
	}

	o.preview = b.finish()
	o.reconf.reset()
	o.log.Info().
		Str("mode", mode.String()).
		Int("nodes", len(b.nodes)).
		Str("caps", o.previewCaps().String()).
		Msg("Preview graph built")
	return nil
}

func (o *Orchestrator) buildVideoBranch(b *builder) error {
	src, err := b.element(NodeVideoSource, config.CategoryVideoInput, "VideoSource")
	if err != nil {
		return err
	}
	filter, err := b.element(NodeVideoFilter, config.CategoryVideoInput, "VideoFilter")
	if err != nil {
		return err
	}
	if err := b.set(filter, PropCaps, o.previewCaps()); err != nil {
		return err
	}
	tee, err := b.factory(NodeVideoTee, "tee")
	if err != nil {
		return err
	}
	previewQueue, err := b.element(NodePreviewQueue, config.CategoryVideoInput, "PreviewQueue")
	if err != nil {
		return err
	}
	display := []Node{src, filter, tee, previewQueue}
	if o.cfg.IntOr(config.CategoryVideoOutput, "UseFormatBridge", 1) != 0 {
		bridge, err := b.element(NodeFormatBridge, config.CategoryVideoOutput, "FormatBridge")
		if err != nil {
			return err
		}
		display = append(display, bridge)
	}
	sink, err := b.element(NodeDisplaySink, config.CategoryVideoOutput, "DisplaySink")
	if err != nil {
		return err
	}
	display = append(display, sink)
	o.applyDisplay(sink)

	bridgeQueue, err := b.element(NodeBridgeQueue, config.CategoryVideoInput, "BridgeQueue")
	if err != nil {
		return err
	}
	frames, err := b.element(NodeVideoSink, config.CategoryCapture, "DataSink")
	if err != nil {
		return err
	}

	if err := b.chain(display...); err != nil {
		return err
	}
	if err := b.chain(tee, bridgeQueue, frames); err != nil {
		return err
	}
	if err := frames.OnSample(o.dispatchVideo); err != nil {
		return fmt.Errorf("frame sink %s: %v: %w", frames.Factory(), err, camerr.ErrResourceCreation)
	}
	return nil
}

func (o *Orchestrator) buildAudioBranch(b *builder) error {
	src, err := b.element(NodeAudioSource, config.CategoryAudioInput, "AudioSource")
	if err != nil {
		return err
	}
	filter, err := b.element(NodeAudioFilter, config.CategoryAudioInput, "AudioFilter")
	if err != nil {
		return err
	}
	if err := b.set(filter, PropCaps, o.audioCaps()); err != nil {
		return err
	}
	volume, err := b.element(NodeAudioVolume, config.CategoryAudioInput, "AudioVolume")
	if err != nil {
		return err
	}
	if err := b.set(volume, PropVolume, o.attrs.Double(attr.AudioVolume)); err != nil {
		return err
	}
	if err := b.set(volume, PropMute, o.attrs.Int(attr.AudioDisable) != 0); err != nil {
		return err
	}
	queue, err := b.element(NodeAudioQueue, config.CategoryAudioInput, "AudioQueue")
	if err != nil {
		return err
	}
	sink, err := b.element(NodeAudioSink, config.CategoryCapture, "DataSink")
	if err != nil {
		return err
	}
	if err := b.chain(src, filter, volume, queue, sink); err != nil {
		return err
	}
	if err := sink.OnSample(o.dispatchAudio); err != nil {
		return fmt.Errorf("audio sink %s: %v: %w", sink.Factory(), err, camerr.ErrResourceCreation)
	}
	return nil
}

// applyDisplay pushes the display attributes onto the display sink. The
// property names are device configuration; an unset name skips the value.
func (o *Orchestrator) applyDisplay(sink Node) {
	set := func(key string, value any) {
		prop := o.cfg.StringOr(config.CategoryVideoOutput, key, "")
		if prop == "" {
			return
		}
		if err := sink.SetProperty(prop, value); err != nil {
			o.log.Warn().Err(err).Str("property", prop).Str("sink", sink.Factory()).Msg("Display sink rejected property")
		}
	}

	if handle := o.attrs.Data(attr.DisplayHandle); len(handle) > 0 {
		set("HandleProperty", decodeHandle(handle))
	}
	set("VisibleProperty", o.attrs.Int(attr.DisplayVisible) != 0)
	set("GeometryProperty", o.attrs.Int(attr.DisplayGeometryMethod))

	rotation := o.attrs.Int(attr.DisplayRotation)
	if table, _, err := o.cfg.IntArray(config.CategoryVideoInput, "Rotation"); err == nil && rotation < len(table.Values) {
		rotation = table.Values[rotation]
	}
	set("RotationProperty", rotation)
}

// decodeHandle reads a little-endian window id of up to eight bytes
func decodeHandle(b []byte) uint64 {
	var buf [8]byte
	copy(buf[:], b)
	return binary.LittleEndian.Uint64(buf[:])
}

// ApplyDisplay re-applies the display attributes to a built preview graph
func (o *Orchestrator) ApplyDisplay() {
	if sink, ok := o.PreviewNode(NodeDisplaySink); ok {
		o.applyDisplay(sink)
	}
}

// ApplyAudio re-applies volume and mute to a built preview graph
func (o *Orchestrator) ApplyAudio() error {
	volume, ok := o.PreviewNode(NodeAudioVolume)
	if !ok {
		return nil
	}
	if err := volume.SetProperty(PropVolume, o.attrs.Double(attr.AudioVolume)); err != nil {
		return fmt.Errorf("set volume: %v: %w", err, camerr.ErrInvalidArgument)
	}
	if err := volume.SetProperty(PropMute, o.attrs.Int(attr.AudioDisable) != 0); err != nil {
		return fmt.Errorf("set mute: %v: %w", err, camerr.ErrInvalidArgument)
	}
	return nil
}

// SetPreviewState moves the preview graph to target and waits for the
// native confirmation
func (o *Orchestrator) SetPreviewState(ctx context.Context, target NativeState) error {
	if !o.reconfMu.TryLock() {
		return camerr.ErrReconfigureBusy
	}
	defer o.reconfMu.Unlock()

	rt := o.previewRuntime()
	if rt == nil {
		return fmt.Errorf("preview graph not built: %w", camerr.ErrNotInitialized)
	}

	if target != NativePlaying {
		if err := o.setState(ctx, rt, target); err != nil {
			return err
		}
		_ = o.reconf.to(ReconfIdle)
		return nil
	}

	if o.reconf.get() == ReconfIdle {
		if err := o.pushPreviewCaps(rt); err != nil {
			return err
		}
	}
	if err := o.reconf.to(ReconfResuming); err != nil {
		return err
	}
	if err := o.setState(ctx, rt, target); err != nil {
		_ = o.reconf.to(ReconfIdle)
		return err
	}
	return o.reconf.to(ReconfRunning)
}

// SetEncodeState moves the encode graph to target and waits for the native
// confirmation
func (o *Orchestrator) SetEncodeState(ctx context.Context, target NativeState) error {
	eg := o.Encode()
	if eg == nil {
		return fmt.Errorf("encode graph not built: %w", camerr.ErrNotInitialized)
	}
	return o.setState(ctx, eg.runtime, target)
}

// WaitEncodeEOS waits until the encode graph posted end-of-stream
func (o *Orchestrator) WaitEncodeEOS(ctx context.Context) error {
	eg := o.Encode()
	if eg == nil {
		return fmt.Errorf("encode graph not built: %w", camerr.ErrNotInitialized)
	}
	return eg.runtime.watcher.waitEOS(ctx, o.timeout)
}

func (o *Orchestrator) setState(ctx context.Context, rt *graphRuntime, target NativeState) error {
	rt.watcher.arm()
	if err := rt.graph.SetState(target); err != nil {
		return fmt.Errorf("graph %s to %s: %v: %w", rt.graph.Name(), target, err, camerr.ErrResourceCreation)
	}
	if err := rt.watcher.waitState(ctx, target, o.timeout); err != nil {
		return err
	}
	o.log.Debug().Str("graph", rt.graph.Name()).Str("state", target.String()).Msg("Graph state confirmed")
	return nil
}

// TeardownPreview stops and destroys the preview graph
func (o *Orchestrator) TeardownPreview(ctx context.Context) error {
	if !o.reconfMu.TryLock() {
		return camerr.ErrReconfigureBusy
	}
	defer o.reconfMu.Unlock()

	o.graphMu.Lock()
	rt := o.preview
	o.preview = nil
	o.graphMu.Unlock()

	o.reconf.reset()
	if rt == nil {
		return nil
	}
	return o.destroy(ctx, rt)
}

// TeardownEncode stops and destroys the encode graph
func (o *Orchestrator) TeardownEncode(ctx context.Context) error {
	o.graphMu.Lock()
	eg := o.encode
	o.encode = nil
	o.graphMu.Unlock()

	if eg == nil {
		return nil
	}
	return o.destroy(ctx, eg.runtime)
}

func (o *Orchestrator) destroy(ctx context.Context, rt *graphRuntime) error {
	var errs []error
	if rt.watcher.current() != NativeNull {
		if err := o.setState(ctx, rt, NativeNull); err != nil {
			errs = append(errs, err)
		}
	}
	if err := rt.graph.Remove(reversed(rt.nodes)...); err != nil {
		errs = append(errs, err)
	}
	if err := rt.graph.Close(); err != nil {
		errs = append(errs, err)
	}
	rt.watcher.wait(o.timeout)
	o.log.Debug().Str("graph", rt.graph.Name()).Int("nodes", len(rt.nodes)).Msg("Graph destroyed")
	return errors.Join(errs...)
}

func reversed(nodes []Node) []Node {
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		out[len(nodes)-1-i] = n
	}
	return out
}

// Close tears down every graph
func (o *Orchestrator) Close(ctx context.Context) error {
	return errors.Join(o.TeardownEncode(ctx), o.TeardownPreview(ctx))
}
