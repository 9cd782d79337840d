package pipeline

import (
	"fmt"
	"slices"

	"github.com/bryanchriswhite/camcorder/internal/attr"
	"github.com/bryanchriswhite/camcorder/internal/camerr"
	"github.com/bryanchriswhite/camcorder/internal/capability"
	"github.com/bryanchriswhite/camcorder/internal/config"
	"github.com/bryanchriswhite/camcorder/internal/state"
)

// Profile selects which encode graph to build
type Profile uint8

const (
	ProfileVideo Profile = iota
	ProfileAudio
	ProfileImage
)

func (p Profile) String() string {
	switch p {
	case ProfileVideo:
		return "video"
	case ProfileAudio:
		return "audio"
	case ProfileImage:
		return "image"
	default:
		return "unknown"
	}
}

// ProfileFor returns the encode profile of a capture mode
func ProfileFor(mode state.Mode) Profile {
	switch mode {
	case state.ModeVideo:
		return ProfileVideo
	case state.ModeAudio:
		return ProfileAudio
	default:
		return ProfileImage
	}
}

// Port roles on the encode graph boundary
const (
	RoleVideo = "video"
	RoleAudio = "audio"
	RoleImage = "image"
)

// Encode graph node names
const (
	NodeVideoPort    = "video-port"
	NodeVideoQueue   = "video-queue"
	NodeVideoConvert = "video-convert"
	NodeVideoScale   = "video-scale"
	NodeVideoCaps    = "video-caps"
	NodeVideoEncoder = "video-encoder"
	NodeAudioPort    = "audio-port"
	NodeAudioEncQ    = "audio-encode-queue"
	NodeAudioConvert = "audio-convert"
	NodeAudioEncoder = "audio-encoder"
	NodeMux          = "mux"
	NodeFileSink     = "file-sink"
	NodeImagePort    = "image-port"
	NodeImageScale   = "image-scale"
	NodeImageCaps    = "image-caps"
	NodeImageConvert = "image-convert"
	NodeImageEncoder = "image-encoder"
	NodeImageSink    = "image-sink"
)

// EncodeGraph is a built encode graph. Callers feed raw samples into the
// role ports and never see the codec or mux nodes behind them.
type EncodeGraph struct {
	Profile   Profile
	Container capability.Container
	Location  string

	runtime *graphRuntime
	ports   map[string]Node
	output  Node
}

// Port returns the input node for role
func (e *EncodeGraph) Port(role string) (Node, bool) {
	n, ok := e.ports[role]
	return n, ok
}

// Roles lists the roles this graph accepts, sorted
func (e *EncodeGraph) Roles() []string {
	out := make([]string, 0, len(e.ports))
	for r := range e.ports {
		out = append(out, r)
	}
	slices.Sort(out)
	return out
}

// OnOutput registers the receiver of encoded images. Only image graphs have
// a data output.
func (e *EncodeGraph) OnOutput(fn func(Sample)) error {
	if e.output == nil {
		return fmt.Errorf("%s graph has no data output: %w", e.Profile, camerr.ErrNotSupported)
	}
	return e.output.OnSample(fn)
}

// Node returns a node of the encode graph
func (e *EncodeGraph) Node(name string) (Node, bool) {
	return e.runtime.graph.Node(name)
}

// State returns the last confirmed native state
func (e *EncodeGraph) State() NativeState {
	return e.runtime.watcher.current()
}

// WithAudio reports whether a video profile records an audio track
func (o *Orchestrator) WithAudio(p Profile) bool {
	switch p {
	case ProfileAudio:
		return true
	case ProfileVideo:
		return o.attrs.Int(attr.AudioDisable) == 0
	default:
		return false
	}
}

// CheckCompatibility verifies the configured codecs against the container
func (o *Orchestrator) CheckCompatibility(p Profile) error {
	if p == ProfileImage {
		return nil
	}
	container := capability.Container(o.attrs.Int(attr.FileFormat))
	if p == ProfileVideo {
		vc := capability.VideoCodec(o.attrs.Int(attr.VideoEncoder))
		if !o.tr.IsVideoCompatible(vc, container) {
			return camerr.Attr(o.attrName(attr.VideoEncoder), fmt.Errorf("%s in %s: %w", vc, container, camerr.ErrEncoderContainerMismatch))
		}
	}
	if o.WithAudio(p) {
		ac := capability.AudioCodec(o.attrs.Int(attr.AudioEncoder))
		if !o.tr.IsAudioCompatible(ac, container) {
			return camerr.Attr(o.attrName(attr.AudioEncoder), fmt.Errorf("%s in %s: %w", ac, container, camerr.ErrEncoderContainerMismatch))
		}
	}
	return nil
}

func (o *Orchestrator) attrName(id attr.ID) string {
	if n, ok := o.attrs.(interface{ Name(attr.ID) string }); ok {
		return n.Name(id)
	}
	return fmt.Sprintf("attribute(%d)", id)
}

// BuildEncodeGraph creates the encode graph of p. The codec/container pair
// is checked before any node exists. Video and audio graphs end in a file
// sink writing target-filename; image graphs end in a data sink whose
// samples reach OnOutput.
func (o *Orchestrator) BuildEncodeGraph(p Profile) (eg *EncodeGraph, err error) {
	if err := o.CheckCompatibility(p); err != nil {
		return nil, err
	}

	o.graphMu.Lock()
	defer o.graphMu.Unlock()
	if o.encode != nil {
		return nil, fmt.Errorf("encode graph already built: %w", camerr.ErrInvalidState)
	}

	eg = &EncodeGraph{Profile: p, ports: make(map[string]Node)}
	if p != ProfileImage {
		eg.Container = capability.Container(o.attrs.Int(attr.FileFormat))
		eg.Location = o.attrs.String(attr.TargetFilename)
		if eg.Location == "" {
			return nil, camerr.Attr(o.attrName(attr.TargetFilename), fmt.Errorf("no output file: %w", camerr.ErrInvalidArgument))
		}
	}

	b, err := o.newBuilder(GraphEncode)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			b.unwind()
			o.log.Error().Err(err).Str("profile", p.String()).Msg("Encode graph build failed")
		}
	}()

	if p == ProfileImage {
		if err = o.buildImageEncoder(b, eg); err != nil {
			return nil, err
		}
	} else {
		if err = o.buildRecorder(b, eg, p); err != nil {
			return nil, err
		}
	}

	eg.runtime = b.finish()
	o.encode = eg
	o.log.Info().
		Str("profile", p.String()).
		Strs("roles", eg.Roles()).
		Str("container", eg.Container.String()).
		Str("location", eg.Location).
		Msg("Encode graph built")
	return eg, nil
}

func (o *Orchestrator) buildRecorder(b *builder, eg *EncodeGraph, p Profile) error {
	muxDesc, err := o.tr.MuxElement(eg.Container)
	if err != nil {
		return fmt.Errorf("mux for %s: %v: %w", eg.Container, err, camerr.ErrResourceCreation)
	}
	mux, err := b.descriptor(NodeMux, muxDesc)
	if err != nil {
		return err
	}
	sink, err := b.element(NodeFileSink, config.CategoryMux, "FileSink")
	if err != nil {
		return err
	}
	if err := b.set(sink, PropLocation, eg.Location); err != nil {
		return err
	}
	if err := b.chain(mux, sink); err != nil {
		return err
	}

	if p == ProfileVideo {
		if err := o.buildVideoEncoder(b, eg, mux); err != nil {
			return err
		}
	}
	if o.WithAudio(p) {
		if err := o.buildAudioEncoder(b, eg, mux); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) buildVideoEncoder(b *builder, eg *EncodeGraph, mux Node) error {
	codec := capability.VideoCodec(o.attrs.Int(attr.VideoEncoder))
	encDesc, err := o.tr.VideoEncoderElement(codec)
	if err != nil {
		return fmt.Errorf("encoder for %s: %v: %w", codec, err, camerr.ErrResourceCreation)
	}

	port, err := b.element(NodeVideoPort, config.CategoryRecord, "Source")
	if err != nil {
		return err
	}
	if err := b.set(port, PropCaps, o.previewCaps()); err != nil {
		return err
	}
	queue, err := b.element(NodeVideoQueue, config.CategoryRecord, "Queue")
	if err != nil {
		return err
	}
	convert, err := b.element(NodeVideoConvert, config.CategoryVideoEncoder, "Converter")
	if err != nil {
		return err
	}
	scale, err := b.element(NodeVideoScale, config.CategoryCapture, "Scaler")
	if err != nil {
		return err
	}
	caps, err := b.factory(NodeVideoCaps, "capsfilter")
	if err != nil {
		return err
	}
	if err := b.set(caps, PropCaps, Caps{
		Media:  MediaRawVideo,
		Width:  o.attrs.Int(attr.VideoWidth),
		Height: o.attrs.Int(attr.VideoHeight),
	}); err != nil {
		return err
	}
	enc, err := b.descriptor(NodeVideoEncoder, encDesc)
	if err != nil {
		return err
	}
	bitrateProp := o.cfg.StringOr(config.CategoryVideoEncoder, "BitrateProperty", "bitrate")
	if err := b.setIfPresent(enc, bitrateProp, o.attrs.Int(attr.VideoEncoderBitrate)); err != nil {
		return err
	}
	if err := b.chain(port, queue, convert, scale, caps, enc, mux); err != nil {
		return err
	}
	eg.ports[RoleVideo] = port
	return nil
}

func (o *Orchestrator) buildAudioEncoder(b *builder, eg *EncodeGraph, mux Node) error {
	codec := capability.AudioCodec(o.attrs.Int(attr.AudioEncoder))
	encDesc, err := o.tr.AudioEncoderElement(codec)
	if err != nil {
		return fmt.Errorf("encoder for %s: %v: %w", codec, err, camerr.ErrResourceCreation)
	}

	port, err := b.element(NodeAudioPort, config.CategoryRecord, "Source")
	if err != nil {
		return err
	}
	if err := b.set(port, PropCaps, o.audioCaps()); err != nil {
		return err
	}
	queue, err := b.element(NodeAudioEncQ, config.CategoryRecord, "Queue")
	if err != nil {
		return err
	}
	convert, err := b.element(NodeAudioConvert, config.CategoryAudioEncoder, "Converter")
	if err != nil {
		return err
	}
	enc, err := b.descriptor(NodeAudioEncoder, encDesc)
	if err != nil {
		return err
	}
	bitrateProp := o.cfg.StringOr(config.CategoryAudioEncoder, "BitrateProperty", "bitrate")
	if err := b.setIfPresent(enc, bitrateProp, o.attrs.Int(attr.AudioEncoderBitrate)); err != nil {
		return err
	}
	if err := b.chain(port, queue, convert, enc, mux); err != nil {
		return err
	}
	eg.ports[RoleAudio] = port
	return nil
}

func (o *Orchestrator) buildImageEncoder(b *builder, eg *EncodeGraph) error {
	codec := capability.ImageCodec(o.attrs.Int(attr.ImageEncoder))
	encDesc, err := o.tr.ImageEncoderElement(codec)
	if err != nil {
		return fmt.Errorf("encoder for %s: %v: %w", codec, err, camerr.ErrResourceCreation)
	}

	port, err := b.element(NodeImagePort, config.CategoryCapture, "Source")
	if err != nil {
		return err
	}
	if err := b.set(port, PropCaps, o.previewCaps()); err != nil {
		return err
	}
	scale, err := b.element(NodeImageScale, config.CategoryCapture, "Scaler")
	if err != nil {
		return err
	}
	caps, err := b.factory(NodeImageCaps, "capsfilter")
	if err != nil {
		return err
	}
	if err := b.set(caps, PropCaps, Caps{
		Media:  MediaRawVideo,
		Width:  o.attrs.Int(attr.CaptureWidth),
		Height: o.attrs.Int(attr.CaptureHeight),
	}); err != nil {
		return err
	}
	convert, err := b.element(NodeImageConvert, config.CategoryCapture, "Converter")
	if err != nil {
		return err
	}
	enc, err := b.descriptor(NodeImageEncoder, encDesc)
	if err != nil {
		return err
	}
	qualityProp := o.cfg.StringOr(config.CategoryImageEncoder, "QualityProperty", "quality")
	if err := b.setIfPresent(enc, qualityProp, o.attrs.Int(attr.ImageEncoderQuality)); err != nil {
		return err
	}
	sink, err := b.element(NodeImageSink, config.CategoryCapture, "DataSink")
	if err != nil {
		return err
	}
	if err := b.chain(port, scale, caps, convert, enc, sink); err != nil {
		return err
	}
	eg.ports[RoleImage] = port
	eg.output = sink
	return nil
}

// ApplyEncoder pushes the live encoder settings onto a built encode graph
func (o *Orchestrator) ApplyEncoder() error {
	eg := o.Encode()
	if eg == nil {
		return nil
	}
	apply := func(node, category, key string, value int) error {
		n, ok := eg.Node(node)
		if !ok {
			return nil
		}
		prop := o.cfg.StringOr(category, key, "")
		if prop == "" || !n.HasProperty(prop) {
			return nil
		}
		if err := n.SetProperty(prop, value); err != nil {
			return fmt.Errorf("set %s.%s: %v: %w", node, prop, err, camerr.ErrInvalidArgument)
		}
		return nil
	}
	if err := apply(NodeVideoEncoder, config.CategoryVideoEncoder, "BitrateProperty", o.attrs.Int(attr.VideoEncoderBitrate)); err != nil {
		return err
	}
	if err := apply(NodeAudioEncoder, config.CategoryAudioEncoder, "BitrateProperty", o.attrs.Int(attr.AudioEncoderBitrate)); err != nil {
		return err
	}
	return apply(NodeImageEncoder, config.CategoryImageEncoder, "QualityProperty", o.attrs.Int(attr.ImageEncoderQuality))
}
