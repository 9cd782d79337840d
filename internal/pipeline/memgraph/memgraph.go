// Package memgraph is an in-memory pipeline backend. Graphs move between
// states asynchronously like a real media framework, live sources generate
// synthetic frames, data flows along links and file sinks write real files.
// Failures can be injected per factory, link, property or state.
package memgraph

import (
	"errors"
	"sync"
	"time"

	"github.com/bryanchriswhite/camcorder/internal/logger"
	"github.com/bryanchriswhite/camcorder/internal/pipeline"
	"github.com/rs/zerolog"
)

// Options tune the simulation
type Options struct {
	// ConfirmDelay is the delay before a state change is confirmed
	ConfirmDelay time.Duration
	// FrameInterval overrides the frame period derived from caps
	FrameInterval time.Duration
	// DiskLimit caps the bytes a file sink may write; zero means unlimited
	DiskLimit int64
}

type linkKey struct {
	src, dst string
}

type propKey struct {
	node, prop string
}

// Backend creates in-memory graphs
type Backend struct {
	opts Options
	log  *zerolog.Logger

	mu          sync.Mutex
	graphs      map[string]*Graph
	failFactory map[string]bool
	failLink    map[linkKey]bool
	failProp    map[propKey]bool
	failState   map[pipeline.NativeState]bool
	errorState  map[pipeline.NativeState]bool
	stallState  map[pipeline.NativeState]bool
	created     []string
}

// New creates a backend
func New(opts Options) *Backend {
	return &Backend{
		opts:        opts,
		log:         logger.WithComponent("memgraph"),
		graphs:      make(map[string]*Graph),
		failFactory: make(map[string]bool),
		failLink:    make(map[linkKey]bool),
		failProp:    make(map[propKey]bool),
		failState:   make(map[pipeline.NativeState]bool),
		errorState:  make(map[pipeline.NativeState]bool),
		stallState:  make(map[pipeline.NativeState]bool),
	}
}

// Name implements pipeline.Backend
func (b *Backend) Name() string {
	return "memgraph"
}

// NewGraph implements pipeline.Backend
func (b *Backend) NewGraph(name string) (pipeline.Graph, error) {
	g := &Graph{
		backend: b,
		name:    name,
		nodes:   make(map[string]*Node),
		msgs:    make(chan pipeline.Message, 1024),
	}
	b.mu.Lock()
	b.graphs[name] = g
	b.mu.Unlock()
	b.log.Debug().Str("graph", name).Msg("Graph created")
	return g, nil
}

// Graph returns the most recent graph created with name
func (b *Backend) Graph(name string) (*Graph, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	g, ok := b.graphs[name]
	return g, ok
}

// Created lists the factory of every node ever created, in order
func (b *Backend) Created() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.created...)
}

// FailFactory makes node creation from factory fail
func (b *Backend) FailFactory(factory string) {
	b.mu.Lock()
	b.failFactory[factory] = true
	b.mu.Unlock()
}

// FailLink makes linking src to dst (node names) fail
func (b *Backend) FailLink(src, dst string) {
	b.mu.Lock()
	b.failLink[linkKey{src, dst}] = true
	b.mu.Unlock()
}

// FailProperty makes setting prop on the named node fail
func (b *Backend) FailProperty(node, prop string) {
	b.mu.Lock()
	b.failProp[propKey{node, prop}] = true
	b.mu.Unlock()
}

// FailState makes SetState(target) fail synchronously
func (b *Backend) FailState(target pipeline.NativeState) {
	b.mu.Lock()
	b.failState[target] = true
	b.mu.Unlock()
}

// ErrorOnState makes a transition to target post an error instead of
// confirming
func (b *Backend) ErrorOnState(target pipeline.NativeState) {
	b.mu.Lock()
	b.errorState[target] = true
	b.mu.Unlock()
}

// StallState makes transitions to target never confirm
func (b *Backend) StallState(target pipeline.NativeState) {
	b.mu.Lock()
	b.stallState[target] = true
	b.mu.Unlock()
}

// Reset clears every injected failure
func (b *Backend) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.failFactory)
	clear(b.failLink)
	clear(b.failProp)
	clear(b.failState)
	clear(b.errorState)
	clear(b.stallState)
}

func (b *Backend) injected(fn func() bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return fn()
}

func (b *Backend) record(factory string) {
	b.mu.Lock()
	b.created = append(b.created, factory)
	b.mu.Unlock()
}

var errInjected = errors.New("injected failure")
