package gstreamer

import (
	"fmt"
	"sync"
	"time"

	"github.com/bryanchriswhite/camcorder/internal/pipeline"
	"github.com/tinyzimmer/go-glib/glib"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// Node wraps a gst.Element
type Node struct {
	graph   *Graph
	elem    *gst.Element
	name    string
	factory string

	mu       sync.Mutex
	pollStop chan struct{}
	pollDone chan struct{}
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
	_, err := n.elem.GetPropertyType(name)
	return err == nil
}

// SetProperty implements pipeline.Node. Integer values from configuration
// are coerced to the property's declared type.
func (n *Node) SetProperty(name string, value any) error {
	if caps, ok := value.(pipeline.Caps); ok {
		return n.elem.SetProperty(name, gst.NewCapsFromString(caps.String()))
	}
	typ, err := n.elem.GetPropertyType(name)
	if err != nil {
		return fmt.Errorf("%s has no property %q: %w", n.factory, name, err)
	}
	return n.elem.SetProperty(name, coerce(typ, value))
}

func coerce(typ glib.Type, value any) any {
	switch v := value.(type) {
	case int:
		switch typ {
		case glib.TYPE_BOOLEAN:
			return v != 0
		case glib.TYPE_UINT:
			return uint(v)
		case glib.TYPE_INT64:
			return int64(v)
		case glib.TYPE_UINT64:
			return uint64(v)
		case glib.TYPE_DOUBLE:
			return float64(v)
		case glib.TYPE_FLOAT:
			return float32(v)
		}
	case uint64:
		if typ == glib.TYPE_INT64 {
			return int64(v)
		}
	case float64:
		if typ == glib.TYPE_FLOAT {
			return float32(v)
		}
	}
	return value
}

// Property implements pipeline.Node
func (n *Node) Property(name string) (any, error) {
	return n.elem.GetProperty(name)
}

// OnSample implements pipeline.Node. The app sink is polled on its own
// goroutine until the node is removed.
func (n *Node) OnSample(fn func(pipeline.Sample)) error {
	if n.factory != "appsink" {
		return fmt.Errorf("%s is not an app sink", n.factory)
	}
	sink := app.SinkFromElement(n.elem)

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.pollStop != nil {
		close(n.pollStop)
		<-n.pollDone
	}
	n.pollStop = make(chan struct{})
	n.pollDone = make(chan struct{})
	go n.pollSamples(sink, fn, n.pollStop, n.pollDone)
	return nil
}

func (n *Node) pollSamples(sink *app.Sink, fn func(pipeline.Sample), stop, done chan struct{}) {
	defer close(done)
	log := n.graph.backend.log
	ticker := time.NewTicker(n.graph.backend.opts.SamplePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			log.Debug().Str("node", n.name).Msg("Sample polling stopped")
			return
		case <-ticker.C:
		}
		// go-gst releases the sample itself; unreffing here double-frees
		sample := sink.TryPullSample(time.Millisecond)
		if sample == nil {
			continue
		}
		if s, ok := convertSample(sample); ok {
			fn(s)
		}
	}
}

func (n *Node) stopPolling() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.pollStop == nil {
		return
	}
	close(n.pollStop)
	<-n.pollDone
	n.pollStop = nil
}

// Push implements pipeline.Node
func (n *Node) Push(s pipeline.Sample) error {
	if n.factory != "appsrc" {
		return fmt.Errorf("%s is not an app source", n.factory)
	}
	buf := gst.NewBufferFromBytes(s.Data)
	buf.SetPresentationTimestamp(s.PTS)
	if s.Duration > 0 {
		buf.SetDuration(s.Duration)
	}
	if ret := app.SrcFromElement(n.elem).PushBuffer(buf); ret != gst.FlowOK {
		return fmt.Errorf("push into %s: flow %v", n.name, ret)
	}
	return nil
}

// EndOfStream implements pipeline.Node
func (n *Node) EndOfStream() error {
	if n.factory != "appsrc" {
		return fmt.Errorf("%s is not an app source", n.factory)
	}
	if ret := app.SrcFromElement(n.elem).EndStream(); ret != gst.FlowOK {
		return fmt.Errorf("end stream on %s: flow %v", n.name, ret)
	}
	return nil
}

// convertSample copies a GStreamer sample into a pipeline.Sample
func convertSample(sample *gst.Sample) (pipeline.Sample, bool) {
	buffer := sample.GetBuffer()
	if buffer == nil {
		return pipeline.Sample{}, false
	}
	mapInfo := buffer.Map(gst.MapRead)
	if mapInfo == nil {
		return pipeline.Sample{}, false
	}
	data := append([]byte(nil), mapInfo.Bytes()...)
	buffer.Unmap()

	s := pipeline.Sample{
		Data:     data,
		PTS:      time.Duration(buffer.PresentationTimestamp()),
		Duration: time.Duration(buffer.Duration()),
	}
	if caps := sample.GetCaps(); caps != nil {
		if st := caps.GetStructureAt(0); st != nil {
			s.Caps = capsFromStructure(st)
		}
	}
	return s, true
}

func capsFromStructure(st *gst.Structure) pipeline.Caps {
	c := pipeline.Caps{Media: st.Name()}
	if v, err := st.GetValue("format"); err == nil {
		c.Format, _ = v.(string)
	}
	c.Width = intValue(st, "width")
	c.Height = intValue(st, "height")
	c.Rate = intValue(st, "rate")
	c.Channels = intValue(st, "channels")
	if v, err := st.GetValue("framerate"); err == nil {
		if f, ok := v.(*gst.FractionValue); ok && f.Denom() != 0 {
			c.FPS = f.Num() / f.Denom()
		}
	}
	return c
}

func intValue(st *gst.Structure, key string) int {
	v, err := st.GetValue(key)
	if err != nil {
		return 0
	}
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case uint:
		return int(n)
	case uint32:
		return int(n)
	}
	return 0
}
