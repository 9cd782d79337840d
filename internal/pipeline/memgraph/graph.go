package memgraph

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/bryanchriswhite/camcorder/internal/pipeline"
)

// Graph is an in-memory pipeline.Graph
type Graph struct {
	backend *Backend
	name    string

	mu      sync.RWMutex
	nodes   map[string]*Node
	order   []*Node
	out     map[string][]*Node
	in      map[string]int
	state   pipeline.NativeState
	eosDone map[string]bool
	eosSent bool

	// stateMu serializes transitions
	stateMu sync.Mutex
	genStop chan struct{}
	genWG   sync.WaitGroup

	msgMu  sync.Mutex
	msgs   chan pipeline.Message
	closed bool
}

var _ pipeline.Graph = (*Graph)(nil)

// Name implements pipeline.Graph
func (g *Graph) Name() string {
	return g.name
}

// AddNode implements pipeline.Graph
func (g *Graph) AddNode(factory, name string) (pipeline.Node, error) {
	b := g.backend
	if b.injected(func() bool { return b.failFactory[factory] }) {
		return nil, fmt.Errorf("no element %q: %w", factory, errInjected)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.out == nil {
		g.out = make(map[string][]*Node)
		g.in = make(map[string]int)
	}
	if _, dup := g.nodes[name]; dup {
		return nil, fmt.Errorf("node %q already exists in %s", name, g.name)
	}
	n := &Node{graph: g, name: name, factory: factory, props: make(map[string]any)}
	g.nodes[name] = n
	g.order = append(g.order, n)
	b.record(factory)
	return n, nil
}

// Node implements pipeline.Graph
func (g *Graph) Node(name string) (pipeline.Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
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
	if !ok1 || !ok2 || s.graph != g || d.graph != g {
		return fmt.Errorf("link across graphs")
	}
	b := g.backend
	if b.injected(func() bool { return b.failLink[linkKey{s.name, d.name}] }) {
		return fmt.Errorf("link %s -> %s: %w", s.name, d.name, errInjected)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if slices.Contains(g.out[s.name], d) {
		return fmt.Errorf("%s already linked to %s", s.name, d.name)
	}
	g.out[s.name] = append(g.out[s.name], d)
	g.in[d.name]++
	return nil
}

// Remove implements pipeline.Graph
func (g *Graph) Remove(nodes ...pipeline.Node) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, pn := range nodes {
		n, ok := pn.(*Node)
		if !ok || g.nodes[n.name] != n {
			continue
		}
		for _, d := range g.out[n.name] {
			g.in[d.name]--
		}
		delete(g.out, n.name)
		for src, dsts := range g.out {
			if i := slices.Index(dsts, n); i >= 0 {
				g.out[src] = slices.Delete(dsts, i, i+1)
			}
		}
		delete(g.in, n.name)
		delete(g.nodes, n.name)
		if i := slices.Index(g.order, n); i >= 0 {
			g.order = slices.Delete(g.order, i, i+1)
		}
		n.closeFile()
	}
	return nil
}

// SetState implements pipeline.Graph. The transition runs on its own
// goroutine and is confirmed with one state-changed message per step.
func (g *Graph) SetState(target pipeline.NativeState) error {
	b := g.backend
	if b.injected(func() bool { return b.failState[target] }) {
		return fmt.Errorf("state change to %s: %w", target, errInjected)
	}
	if g.isClosed() {
		return fmt.Errorf("graph %s is closed", g.name)
	}
	go g.transition(target)
	return nil
}

func (g *Graph) transition(target pipeline.NativeState) {
	g.stateMu.Lock()
	defer g.stateMu.Unlock()

	b := g.backend
	if b.opts.ConfirmDelay > 0 {
		time.Sleep(b.opts.ConfirmDelay)
	}
	if b.injected(func() bool { return b.stallState[target] }) {
		b.log.Debug().Str("graph", g.name).Str("target", target.String()).Msg("State change stalled")
		return
	}
	if b.injected(func() bool { return b.errorState[target] }) {
		g.post(pipeline.Message{
			Kind:   pipeline.MessageError,
			Source: g.name,
			Err:    fmt.Errorf("could not reach %s: %w", target, errInjected),
		})
		return
	}

	cur := g.State()
	for cur != target {
		next := cur + 1
		if target < cur {
			next = cur - 1
		}
		if cur == pipeline.NativePlaying {
			g.stopGenerators()
		}
		g.mu.Lock()
		g.state = next
		if next <= pipeline.NativeReady {
			g.eosDone = nil
			g.eosSent = false
			for _, n := range g.order {
				n.resetFlow()
			}
		}
		g.mu.Unlock()
		if next == pipeline.NativeNull {
			g.closeFiles()
		}
		if next == pipeline.NativePlaying {
			g.startGenerators()
		}
		g.post(pipeline.Message{Kind: pipeline.MessageStateChanged, Source: g.name, Old: cur, New: next})
		cur = next
	}
}

// State returns the current native state
func (g *Graph) State() pipeline.NativeState {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
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
	g.msgs <- msg
}

// Post injects a message as if a node had posted it
func (g *Graph) Post(msg pipeline.Message) {
	g.post(msg)
}

func (g *Graph) isClosed() bool {
	g.msgMu.Lock()
	defer g.msgMu.Unlock()
	return g.closed
}

// Close implements pipeline.Graph
func (g *Graph) Close() error {
	g.stateMu.Lock()
	g.stopGenerators()
	g.stateMu.Unlock()
	g.closeFiles()

	g.msgMu.Lock()
	defer g.msgMu.Unlock()
	if !g.closed {
		g.closed = true
		close(g.msgs)
	}
	return nil
}

// Closed reports whether Close was called
func (g *Graph) Closed() bool {
	return g.isClosed()
}

// Nodes lists node names in creation order
func (g *Graph) Nodes() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, len(g.order))
	for i, n := range g.order {
		out[i] = n.name
	}
	return out
}

// Links lists every link as [src, dst]
func (g *Graph) Links() [][2]string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out [][2]string
	for _, n := range g.order {
		for _, d := range g.out[n.name] {
			out = append(out, [2]string{n.name, d.name})
		}
	}
	return out
}

// Lookup returns the concrete node
func (g *Graph) Lookup(name string) (*Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[name]
	return n, ok
}

func (g *Graph) outputs(name string) []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]*Node(nil), g.out[name]...)
}

func (g *Graph) inDegree(name string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.in[name]
}

func (g *Graph) closeFiles() {
	g.mu.RLock()
	nodes := append([]*Node(nil), g.order...)
	g.mu.RUnlock()
	for _, n := range nodes {
		n.closeFile()
	}
}

// receive runs a sample through n and everything downstream of it
func (g *Graph) receive(n *Node, s pipeline.Sample) {
	if g.State() != pipeline.NativePlaying {
		return
	}
	s, ok := n.process(s)
	if !ok {
		return
	}
	if fn := n.sampleHandler(); fn != nil {
		fn(s)
	}
	for _, d := range g.outputs(n.name) {
		g.receive(d, s)
	}
}

// endOfStream forwards EOS from n. A node with several inputs forwards once
// every input ended; the graph posts EOS once every terminal node got it.
func (g *Graph) endOfStream(n *Node) {
	outs := g.outputs(n.name)
	if len(outs) == 0 {
		n.finish()
		g.terminalDone(n)
		return
	}
	for _, d := range outs {
		if d.addEOS() >= g.inDegree(d.name) {
			g.endOfStream(d)
		}
	}
}

func (g *Graph) terminalDone(n *Node) {
	g.mu.Lock()
	if g.eosDone == nil {
		g.eosDone = make(map[string]bool)
	}
	g.eosDone[n.name] = true
	all := true
	for _, node := range g.order {
		if len(g.out[node.name]) == 0 && !g.eosDone[node.name] {
			all = false
			break
		}
	}
	send := all && !g.eosSent
	if send {
		g.eosSent = true
	}
	g.mu.Unlock()

	if send {
		g.post(pipeline.Message{Kind: pipeline.MessageEOS, Source: g.name})
	}
}
