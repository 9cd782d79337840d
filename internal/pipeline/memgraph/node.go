package memgraph

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"strings"
	"sync"

	"github.com/bryanchriswhite/camcorder/internal/pipeline"
)

// knownProps lists the properties of factories the simulation models
// strictly. Factories not listed accept any property.
var knownProps = map[string][]string{
	"capsfilter":   {"caps"},
	"queue":        {"leaky", "max-size-buffers", "max-size-bytes", "max-size-time"},
	"tee":          {},
	"videoconvert": {},
	"audioconvert": {},
	"identity":     {},
	"videoscale":   {"method"},
	"volume":       {"volume", "mute"},
	"appsrc":       {"caps", "format", "is-live", "do-timestamp"},
	"appsink":      {"caps", "sync", "max-buffers", "drop"},
	"filesink":     {"location", "async", "sync"},
	"jpegenc":      {"quality"},
	"pngenc":       {"compression-level"},
}

var liveSources = map[string]bool{
	"v4l2src":       true,
	"libcamerasrc":  true,
	"pipewiresrc":   true,
	"videotestsrc":  true,
	"autoaudiosrc":  true,
	"audiotestsrc":  true,
	"pulsesrc":      true,
	"alsasrc":       true,
	"autovideosrc":  true,
	"ximagesrc":     true,
}

// Node is an in-memory pipeline.Node
type Node struct {
	graph   *Graph
	name    string
	factory string

	mu       sync.Mutex
	props    map[string]any
	onSample func(pipeline.Sample)
	eosCount int
	eos      bool
	file     *os.File
	written  int64
	full     bool
	pushed   int
}

var _ pipeline.Node = (*Node)(nil)

// Name implements pipeline.Node
func (n *Node) Name() string {
	return n.name
}

// Factory implements pipeline.Node
func (n *Node) Factory() string {
	return n.factory
}

// HasProperty implements pipeline.Node
func (n *Node) HasProperty(name string) bool {
	props, strict := knownProps[n.factory]
	if !strict {
		return true
	}
	for _, p := range props {
		if p == name {
			return true
		}
	}
	return false
}

// SetProperty implements pipeline.Node
func (n *Node) SetProperty(name string, value any) error {
	b := n.graph.backend
	if b.injected(func() bool { return b.failProp[propKey{n.name, name}] }) {
		return fmt.Errorf("set %s.%s: %w", n.name, name, errInjected)
	}
	if !n.HasProperty(name) {
		return fmt.Errorf("%s has no property %q", n.factory, name)
	}
	if name == pipeline.PropCaps {
		if _, ok := value.(pipeline.Caps); !ok {
			return fmt.Errorf("caps must be pipeline.Caps, got %T", value)
		}
	}
	n.mu.Lock()
	n.props[name] = value
	n.mu.Unlock()
	return nil
}

// Property implements pipeline.Node
func (n *Node) Property(name string) (any, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	v, ok := n.props[name]
	if !ok {
		return nil, fmt.Errorf("%s.%s is not set", n.name, name)
	}
	return v, nil
}

// Prop returns a property value or nil
func (n *Node) Prop(name string) any {
	v, _ := n.Property(name)
	return v
}

// OnSample implements pipeline.Node
func (n *Node) OnSample(fn func(pipeline.Sample)) error {
	if n.factory != "appsink" {
		return fmt.Errorf("%s is not a data sink", n.factory)
	}
	n.mu.Lock()
	n.onSample = fn
	n.mu.Unlock()
	return nil
}

func (n *Node) sampleHandler() func(pipeline.Sample) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.onSample
}

// Push implements pipeline.Node
func (n *Node) Push(s pipeline.Sample) error {
	if n.factory != "appsrc" {
		return fmt.Errorf("%s is not a data source", n.factory)
	}
	if st := n.graph.State(); st != pipeline.NativePlaying {
		return fmt.Errorf("graph %s is %s, not flowing", n.graph.name, st)
	}
	n.mu.Lock()
	if n.eos {
		n.mu.Unlock()
		return fmt.Errorf("%s already ended", n.name)
	}
	if s.Caps.IsZero() {
		if c, ok := n.props[pipeline.PropCaps].(pipeline.Caps); ok {
			s.Caps = c
		}
	}
	n.pushed++
	n.mu.Unlock()

	for _, d := range n.graph.outputs(n.name) {
		n.graph.receive(d, s)
	}
	return nil
}

// Pushed returns how many samples were pushed into a data source
func (n *Node) Pushed() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pushed
}

// EndOfStream implements pipeline.Node
func (n *Node) EndOfStream() error {
	if n.factory != "appsrc" {
		return fmt.Errorf("%s is not a data source", n.factory)
	}
	n.mu.Lock()
	if n.eos {
		n.mu.Unlock()
		return nil
	}
	n.eos = true
	n.mu.Unlock()
	go n.graph.endOfStream(n)
	return nil
}

func (n *Node) addEOS() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.eosCount++
	return n.eosCount
}

func (n *Node) resetFlow() {
	n.mu.Lock()
	n.eosCount = 0
	n.eos = false
	n.full = false
	n.mu.Unlock()
}

// Written returns the bytes a file sink wrote
func (n *Node) Written() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.written
}

// finish ends the stream at a terminal node; later samples are dropped
func (n *Node) finish() {
	n.mu.Lock()
	n.eos = true
	n.mu.Unlock()
	n.closeFile()
}

func (n *Node) closeFile() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.file != nil {
		_ = n.file.Close()
		n.file = nil
	}
}

// process applies the node's transformation. It returns false when the
// sample stops here.
func (n *Node) process(s pipeline.Sample) (pipeline.Sample, bool) {
	switch {
	case n.factory == "capsfilter":
		if c, ok := n.Prop(pipeline.PropCaps).(pipeline.Caps); ok {
			s = negotiate(s, c)
		}
	case n.factory == "volume":
		if mute, _ := n.Prop(pipeline.PropMute).(bool); mute {
			s.Data = make([]byte, len(s.Data))
		}
	case n.factory == "filesink":
		return s, n.write(s)
	case n.factory == "jpegenc":
		s = encodeImage(s, pipeline.MediaJPEG, n.intProp("quality", 85))
	case n.factory == "pngenc":
		s = encodeImage(s, pipeline.MediaPNG, 0)
	case strings.HasSuffix(n.factory, "enc") || strings.HasSuffix(n.factory, "mux"):
		s.Caps = pipeline.Caps{Media: "application/x-" + n.factory}
	}
	return s, true
}

func (n *Node) intProp(name string, fallback int) int {
	if v, ok := n.Prop(name).(int); ok {
		return v
	}
	return fallback
}

func (n *Node) write(s pipeline.Sample) bool {
	g := n.graph
	limit := g.backend.opts.DiskLimit

	n.mu.Lock()
	if n.full || n.eos {
		n.mu.Unlock()
		return false
	}
	if limit > 0 && n.written+int64(len(s.Data)) > limit {
		n.full = true
		n.mu.Unlock()
		g.post(pipeline.Message{
			Kind:   pipeline.MessageStorageExhausted,
			Source: n.name,
			Err:    fmt.Errorf("no space left on device"),
		})
		return false
	}
	if n.file == nil {
		location, _ := n.props[pipeline.PropLocation].(string)
		f, err := os.Create(location)
		if err != nil {
			n.full = true
			n.mu.Unlock()
			g.post(pipeline.Message{Kind: pipeline.MessageError, Source: n.name, Err: err})
			return false
		}
		n.file = f
	}
	written, err := n.file.Write(s.Data)
	n.written += int64(written)
	n.mu.Unlock()

	if err != nil {
		g.post(pipeline.Message{Kind: pipeline.MessageError, Source: n.name, Err: err})
		return false
	}
	return true
}

// negotiate applies filter caps to a sample, scaling planar I420 frames
// when the size changes
func negotiate(s pipeline.Sample, c pipeline.Caps) pipeline.Sample {
	in := s.Caps
	out := in
	if c.Media != "" {
		out.Media = c.Media
	}
	if c.Format != "" {
		out.Format = c.Format
	}
	if c.Width > 0 && c.Height > 0 {
		out.Width, out.Height = c.Width, c.Height
	}
	if c.FPS > 0 {
		out.FPS = c.FPS
	}
	if c.Rate > 0 {
		out.Rate = c.Rate
	}
	if c.Channels > 0 {
		out.Channels = c.Channels
	}

	if (out.Width != in.Width || out.Height != in.Height) && in.Format == "I420" && len(s.Data) == in.FrameSize() {
		s.Data = scaleI420(s.Data, in.Width, in.Height, out.Width, out.Height)
		out.Format = "I420"
	}
	s.Caps = out
	return s
}

// scaleI420 resizes a planar 4:2:0 frame with nearest-neighbour sampling
func scaleI420(src []byte, sw, sh, dw, dh int) []byte {
	dst := make([]byte, dw*dh*3/2)
	plane := func(srcOff, dstOff, sw, sh, dw, dh int) {
		for y := 0; y < dh; y++ {
			sy := y * sh / dh
			for x := 0; x < dw; x++ {
				dst[dstOff+y*dw+x] = src[srcOff+sy*sw+x*sw/dw]
			}
		}
	}
	plane(0, 0, sw, sh, dw, dh)
	sy, dy := sw*sh, dw*dh
	plane(sy, dy, sw/2, sh/2, dw/2, dh/2)
	plane(sy+sy/4, dy+dy/4, sw/2, sh/2, dw/2, dh/2)
	return dst
}

// encodeImage turns a raw I420 frame into a real JPEG or PNG
func encodeImage(s pipeline.Sample, media string, quality int) pipeline.Sample {
	c := s.Caps
	out := s
	out.Caps = pipeline.Caps{Media: media, Width: c.Width, Height: c.Height}
	if c.Format != "I420" || len(s.Data) != c.FrameSize() {
		out.Data = append([]byte(nil), s.Data...)
		return out
	}

	img := image.NewYCbCr(image.Rect(0, 0, c.Width, c.Height), image.YCbCrSubsampleRatio420)
	ySize := c.Width * c.Height
	copy(img.Y, s.Data[:ySize])
	copy(img.Cb, s.Data[ySize:ySize+ySize/4])
	copy(img.Cr, s.Data[ySize+ySize/4:])

	var buf bytes.Buffer
	var err error
	if media == pipeline.MediaPNG {
		err = png.Encode(&buf, img)
	} else {
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality})
	}
	if err != nil {
		out.Data = append([]byte(nil), s.Data...)
		return out
	}
	out.Data = buf.Bytes()
	return out
}
