package gstreamer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/bryanchriswhite/camcorder/internal/pipeline"
	"github.com/tinyzimmer/go-gst/gst"
)

// Graph wraps a gst.Pipeline
type Graph struct {
	backend  *Backend
	name     string
	pipeline *gst.Pipeline

	mu    sync.Mutex
	nodes map[string]*Node

	msgMu  sync.Mutex
	msgs   chan pipeline.Message
	closed bool

	stop chan struct{}
	wg   sync.WaitGroup
}

var _ pipeline.Graph = (*Graph)(nil)

// Name implements pipeline.Graph
func (g *Graph) Name() string {
	return g.name
}

// AddNode implements pipeline.Graph
func (g *Graph) AddNode(factory, name string) (pipeline.Node, error) {
	elem, err := gst.NewElementWithName(factory, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", factory, err)
	}
	if err := g.pipeline.Add(elem); err != nil {
		return nil, fmt.Errorf("failed to add %s: %w", name, err)
	}
	n := &Node{graph: g, elem: elem, name: name, factory: factory}
	g.mu.Lock()
	g.nodes[name] = n
	g.mu.Unlock()
	return n, nil
}

// Node implements pipeline.Graph
func (g *Graph) Node(name string) (pipeline.Node, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[name]
	if !ok {
		return nil, false
	}
	return n, true
}

// Link implements pipeline.Graph
func (g *Graph) Link(src, dst pipeline.Node) error {
	s, ok1 := src.(*Node)
	d, ok2 := dst.(*Node)
	if !ok1 || !ok2 {
		return fmt.Errorf("link %s -> %s: foreign node", src.Name(), dst.Name())
	}
	return s.elem.Link(d.elem)
}

// Remove implements pipeline.Graph
func (g *Graph) Remove(nodes ...pipeline.Node) error {
	var errs []error
	for _, pn := range nodes {
		n, ok := pn.(*Node)
		if !ok {
			continue
		}
		n.stopPolling()
		if err := n.elem.SetState(gst.StateNull); err != nil {
			errs = append(errs, err)
		}
		if err := g.pipeline.Remove(n.elem); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", n.name, err))
		}
		g.mu.Lock()
		delete(g.nodes, n.name)
		g.mu.Unlock()
	}
	return errors.Join(errs...)
}

// SetState implements pipeline.Graph. The bus is flushed in NULL, so
// reaching NULL is confirmed here instead of by a bus message.
func (g *Graph) SetState(target pipeline.NativeState) error {
	if err := g.pipeline.SetState(toGst(target)); err != nil {
		return err
	}
	if target == pipeline.NativeNull {
		g.post(pipeline.Message{Kind: pipeline.MessageStateChanged, Source: g.name, New: pipeline.NativeNull})
	}
	return nil
}

// Messages implements pipeline.Graph
func (g *Graph) Messages() <-chan pipeline.Message {
	return g.msgs
}

func (g *Graph) post(msg pipeline.Message) {
	g.msgMu.Lock()
	defer g.msgMu.Unlock()
	if g.closed {
		return
	}
	select {
	case g.msgs <- msg:
	default:
		g.backend.log.Warn().Str("graph", g.name).Str("kind", msg.Kind.String()).Msg("Message queue full, dropping")
	}
}

// pumpBus moves bus messages onto the graph's channel
func (g *Graph) pumpBus() {
	defer g.wg.Done()
	bus := g.pipeline.GetPipelineBus()
	for {
		select {
		case <-g.stop:
			return
		default:
		}

		msg := bus.TimedPop(g.backend.opts.BusPollInterval)
		if msg == nil {
			continue
		}
		switch msg.Type() {
		case gst.MessageStateChanged:
			old, cur := msg.ParseStateChanged()
			g.post(pipeline.Message{
				Kind:   pipeline.MessageStateChanged,
				Source: msg.Source(),
				Old:    toNative(old),
				New:    toNative(cur),
			})
		case gst.MessageError:
			gerr := msg.ParseError()
			g.post(pipeline.Message{
				Kind:   classify(gerr),
				Source: msg.Source(),
				Err:    errors.New(gerr.Error()),
				Debug:  gerr.DebugString(),
			})
		case gst.MessageWarning:
			gerr := msg.ParseWarning()
			g.post(pipeline.Message{
				Kind:   pipeline.MessageWarning,
				Source: msg.Source(),
				Err:    errors.New(gerr.Error()),
				Debug:  gerr.DebugString(),
			})
		case gst.MessageEOS:
			g.post(pipeline.Message{Kind: pipeline.MessageEOS, Source: msg.Source()})
		}
	}
}

// Close implements pipeline.Graph
func (g *Graph) Close() error {
	g.msgMu.Lock()
	if g.closed {
		g.msgMu.Unlock()
		return nil
	}
	g.closed = true
	g.msgMu.Unlock()

	close(g.stop)
	g.wg.Wait()

	g.mu.Lock()
	for _, n := range g.nodes {
		n.stopPolling()
	}
	g.mu.Unlock()

	err := g.pipeline.SetState(gst.StateNull)
	g.pipeline.Unref()

	g.msgMu.Lock()
	close(g.msgs)
	g.msgMu.Unlock()
	return err
}
