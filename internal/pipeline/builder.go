package pipeline

import (
	"fmt"

	"github.com/bryanchriswhite/camcorder/internal/camerr"
	"github.com/bryanchriswhite/camcorder/internal/config"
)

// builder assembles one graph and remembers every node so a failed build
// can be unwound completely
type builder struct {
	o     *Orchestrator
	graph Graph
	nodes []Node
}

func (o *Orchestrator) newBuilder(name string) (*builder, error) {
	g, err := o.backend.NewGraph(name)
	if err != nil {
		return nil, fmt.Errorf("create graph %s: %v: %w", name, err, camerr.ErrResourceCreation)
	}
	return &builder{o: o, graph: g}, nil
}

// element creates name from the descriptor configured at category/key
func (b *builder) element(name, category, key string) (Node, error) {
	desc, _, err := b.o.cfg.Element(category, key)
	if err != nil {
		return nil, fmt.Errorf("element %s/%s: %v: %w", category, key, err, camerr.ErrResourceCreation)
	}
	return b.descriptor(name, desc)
}

// descriptor creates name from desc and applies its properties
func (b *builder) descriptor(name string, desc *config.ElementDescriptor) (Node, error) {
	n, err := b.factory(name, desc.Factory)
	if err != nil {
		return nil, err
	}
	for _, p := range desc.IntProperties() {
		if err := b.set(n, p.Name, p.Value); err != nil {
			return nil, err
		}
	}
	for _, p := range desc.StringProperties() {
		if err := b.set(n, p.Name, p.Value); err != nil {
			return nil, err
		}
	}
	return n, nil
}

func (b *builder) factory(name, factory string) (Node, error) {
	n, err := b.graph.AddNode(factory, name)
	if err != nil {
		return nil, fmt.Errorf("create %s (%s): %v: %w", name, factory, err, camerr.ErrResourceCreation)
	}
	b.nodes = append(b.nodes, n)
	return n, nil
}

func (b *builder) set(n Node, prop string, value any) error {
	if err := n.SetProperty(prop, value); err != nil {
		return fmt.Errorf("set %s.%s=%v: %v: %w", n.Name(), prop, value, err, camerr.ErrResourceCreation)
	}
	return nil
}

// setIfPresent sets prop only when the node has it
func (b *builder) setIfPresent(n Node, prop string, value any) error {
	if prop == "" || !n.HasProperty(prop) {
		b.o.log.Debug().Str("node", n.Name()).Str("property", prop).Msg("Node has no such property, skipped")
		return nil
	}
	return b.set(n, prop, value)
}

// chain links nodes in order
func (b *builder) chain(nodes ...Node) error {
	for i := 1; i < len(nodes); i++ {
		if err := b.graph.Link(nodes[i-1], nodes[i]); err != nil {
			return fmt.Errorf("link %s -> %s: %v: %w", nodes[i-1].Name(), nodes[i].Name(), err, camerr.ErrGraphLink)
		}
	}
	return nil
}

// unwind removes every node created so far and releases the graph
func (b *builder) unwind() {
	if err := b.graph.Remove(reversed(b.nodes)...); err != nil {
		b.o.log.Warn().Err(err).Str("graph", b.graph.Name()).Msg("Failed to remove nodes while unwinding")
	}
	if err := b.graph.Close(); err != nil {
		b.o.log.Warn().Err(err).Str("graph", b.graph.Name()).Msg("Failed to close graph while unwinding")
	}
	b.o.log.Debug().Str("graph", b.graph.Name()).Int("nodes", len(b.nodes)).Msg("Partial graph unwound")
	b.nodes = nil
}

// finish starts the message watcher and hands the graph over
func (b *builder) finish() *graphRuntime {
	w := newWatcher(b.graph, b.o.dispatchMessage, b.o.log)
	w.start()
	return &graphRuntime{graph: b.graph, nodes: b.nodes, watcher: w}
}
