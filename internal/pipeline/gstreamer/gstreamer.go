// Package gstreamer implements pipeline.Backend on top of GStreamer.
//
// Samples are pulled from app sinks by polling instead of signal callbacks,
// which avoids calling back into Go from GStreamer streaming threads.
package gstreamer

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bryanchriswhite/camcorder/internal/logger"
	"github.com/bryanchriswhite/camcorder/internal/pipeline"
	"github.com/rs/zerolog"
	"github.com/tinyzimmer/go-gst/gst"
)

var initOnce sync.Once

// Options tune the backend
type Options struct {
	// BusPollInterval bounds each bus pop; the General/BusPollInterval key
	// feeds it
	BusPollInterval time.Duration
	// SamplePollInterval is the app sink polling period
	SamplePollInterval time.Duration
}

// Backend creates GStreamer pipelines
type Backend struct {
	opts Options
	log  *zerolog.Logger
}

// New initializes GStreamer and returns a backend
func New(opts Options) *Backend {
	if opts.BusPollInterval <= 0 {
		opts.BusPollInterval = 50 * time.Millisecond
	}
	if opts.SamplePollInterval <= 0 {
		opts.SamplePollInterval = 5 * time.Millisecond
	}
	initOnce.Do(func() { gst.Init(nil) })
	return &Backend{opts: opts, log: logger.WithComponent("gstreamer")}
}

// Name implements pipeline.Backend
func (b *Backend) Name() string {
	return "gstreamer"
}

// NewGraph implements pipeline.Backend
func (b *Backend) NewGraph(name string) (pipeline.Graph, error) {
	p, err := gst.NewPipeline(name)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline %s: %w", name, err)
	}
	g := &Graph{
		backend:  b,
		name:     name,
		pipeline: p,
		nodes:    make(map[string]*Node),
		msgs:     make(chan pipeline.Message, 256),
		stop:     make(chan struct{}),
	}
	g.wg.Add(1)
	go g.pumpBus()
	b.log.Debug().Str("graph", name).Msg("Pipeline created")
	return g, nil
}

func toNative(s gst.State) pipeline.NativeState {
	switch s {
	case gst.StateReady:
		return pipeline.NativeReady
	case gst.StatePaused:
		return pipeline.NativePaused
	case gst.StatePlaying:
		return pipeline.NativePlaying
	default:
		return pipeline.NativeNull
	}
}

func toGst(s pipeline.NativeState) gst.State {
	switch s {
	case pipeline.NativeReady:
		return gst.StateReady
	case pipeline.NativePaused:
		return gst.StatePaused
	case pipeline.NativePlaying:
		return gst.StatePlaying
	default:
		return gst.StateNull
	}
}

var storageKeywords = []string{
	"no space left",
	"disk full",
	"not enough space",
	"quota exceeded",
}

// classify maps a GStreamer error onto a message kind by keyword
func classify(gerr *gst.GError) pipeline.MessageKind {
	if gerr == nil {
		return pipeline.MessageError
	}
	combined := strings.ToLower(gerr.Error() + " " + gerr.DebugString())
	for _, kw := range storageKeywords {
		if strings.Contains(combined, kw) {
			return pipeline.MessageStorageExhausted
		}
	}
	return pipeline.MessageError
}
