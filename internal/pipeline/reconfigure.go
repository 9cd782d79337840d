package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/bryanchriswhite/camcorder/internal/camerr"
	"github.com/bryanchriswhite/camcorder/internal/state"
)

// ReconfigState is the sub-state of the preview graph during live
// reconfiguration
type ReconfigState uint8

const (
	// ReconfIdle means the preview graph is built but not flowing
	ReconfIdle ReconfigState = iota
	// ReconfRunning means buffers flow normally
	ReconfRunning
	// ReconfDraining means queues discard buffers while the graph quiesces
	ReconfDraining
	// ReconfResuming means normal flow is restored and the graph restarts
	ReconfResuming
)

func (s ReconfigState) String() string {
	switch s {
	case ReconfIdle:
		return "idle"
	case ReconfRunning:
		return "running"
	case ReconfDraining:
		return "draining"
	case ReconfResuming:
		return "resuming"
	default:
		return "unknown"
	}
}

var reconfTransitions = map[ReconfigState][]ReconfigState{
	ReconfIdle:     {ReconfResuming},
	ReconfResuming: {ReconfRunning, ReconfIdle},
	ReconfRunning:  {ReconfDraining, ReconfIdle},
	ReconfDraining: {ReconfIdle, ReconfRunning},
}

type reconfMachine struct {
	mu       sync.RWMutex
	current  ReconfigState
	observer func(from, to ReconfigState)
}

func (m *reconfMachine) get() ReconfigState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

func (m *reconfMachine) to(next ReconfigState) error {
	m.mu.Lock()
	from := m.current
	if next == from {
		m.mu.Unlock()
		return nil
	}
	allowed := false
	for _, s := range reconfTransitions[from] {
		if s == next {
			allowed = true
			break
		}
	}
	if !allowed {
		m.mu.Unlock()
		return fmt.Errorf("reconfiguration %s -> %s: %w", from, next, camerr.ErrInvalidState)
	}
	m.current = next
	observer := m.observer
	m.mu.Unlock()

	if observer != nil {
		observer(from, next)
	}
	return nil
}

func (m *reconfMachine) reset() {
	m.mu.Lock()
	m.current = ReconfIdle
	m.mu.Unlock()
}

// OnReconfigState registers fn to observe every sub-state transition
func (o *Orchestrator) OnReconfigState(fn func(from, to ReconfigState)) {
	o.reconf.mu.Lock()
	o.reconf.observer = fn
	o.reconf.mu.Unlock()
}

// Geometry is the preview frame size used for the next activation
type Geometry struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	// FPS of zero falls back to camera-fps
	FPS int `json:"fps,omitempty"`
}

// ReconfigState reports the preview graph's reconfiguration sub-state
func (o *Orchestrator) ReconfigState() ReconfigState {
	return o.reconf.get()
}

// Geometry returns the cached preview geometry
func (o *Orchestrator) Geometry() Geometry {
	o.geomMu.RLock()
	defer o.geomMu.RUnlock()
	return o.geometry
}

func (o *Orchestrator) setGeometry(g Geometry) {
	o.geomMu.Lock()
	o.geometry = g
	o.geomMu.Unlock()
}

// ReconfigureResolution changes the preview resolution, keeping the stored
// camera-fps
func (o *Orchestrator) ReconfigureResolution(ctx context.Context, width, height int) error {
	return o.ReconfigureGeometry(ctx, Geometry{Width: width, Height: height})
}

// ReconfigureGeometry changes the preview resolution and framerate. It is
// legal in READY and PREPARE only. A flowing graph is drained, quiesced to
// READY, given the new caps, then restored and restarted; an idle graph only
// gets the new geometry for its next activation. A concurrent call fails
// with ErrReconfigureBusy instead of waiting.
func (o *Orchestrator) ReconfigureGeometry(ctx context.Context, g Geometry) error {
	width, height := g.Width, g.Height
	if !o.reconfMu.TryLock() {
		return camerr.ErrReconfigureBusy
	}
	defer o.reconfMu.Unlock()

	if cur := o.state.Current(); cur != state.StateReady && cur != state.StatePrepare {
		return fmt.Errorf("resolution change in %s: %w", cur, camerr.ErrInvalidState)
	}
	if width <= 0 || height <= 0 || g.FPS < 0 {
		return fmt.Errorf("resolution %dx%d@%d: %w", width, height, g.FPS, camerr.ErrInvalidArgument)
	}

	o.setGeometry(g)

	rt := o.previewRuntime()
	if rt == nil {
		o.log.Debug().Int("width", width).Int("height", height).Msg("Preview not built, geometry cached")
		return nil
	}
	if o.reconf.get() != ReconfRunning {
		o.log.Debug().Int("width", width).Int("height", height).Msg("Preview idle, geometry cached")
		return o.pushPreviewCaps(rt)
	}

	resume := rt.watcher.current()
	queues := o.previewQueues(rt)

	if err := o.reconf.to(ReconfDraining); err != nil {
		return err
	}
	saved := setLeaky(queues, LeakyDownstream)

	if err := o.setState(ctx, rt, NativeReady); err != nil {
		restoreLeaky(queues, saved)
		if rt.watcher.current() == resume {
			_ = o.reconf.to(ReconfRunning)
		} else {
			_ = o.reconf.to(ReconfIdle)
		}
		return fmt.Errorf("quiesce preview: %w", err)
	}
	if err := o.reconf.to(ReconfIdle); err != nil {
		return err
	}

	capsErr := o.pushPreviewCaps(rt)

	if err := o.reconf.to(ReconfResuming); err != nil {
		return err
	}
	restoreLeaky(queues, saved)
	if err := o.setState(ctx, rt, resume); err != nil {
		_ = o.reconf.to(ReconfIdle)
		return fmt.Errorf("resume preview: %w", err)
	}
	if err := o.reconf.to(ReconfRunning); err != nil {
		return err
	}
	if capsErr != nil {
		return capsErr
	}

	o.log.Info().Int("width", width).Int("height", height).Msg("Preview resolution reconfigured")
	return nil
}

// pushPreviewCaps applies the cached geometry to the source and filter
func (o *Orchestrator) pushPreviewCaps(rt *graphRuntime) error {
	caps := o.previewCaps()
	filter, ok := rt.graph.Node(NodeVideoFilter)
	if !ok {
		return nil
	}
	if err := filter.SetProperty(PropCaps, caps); err != nil {
		return fmt.Errorf("set caps %s on %s: %v: %w", caps, NodeVideoFilter, err, camerr.ErrResourceCreation)
	}
	if src, ok := rt.graph.Node(NodeVideoSource); ok && src.HasProperty(PropCaps) {
		if err := src.SetProperty(PropCaps, caps); err != nil {
			return fmt.Errorf("set caps %s on %s: %v: %w", caps, NodeVideoSource, err, camerr.ErrResourceCreation)
		}
	}
	return nil
}

func (o *Orchestrator) previewQueues(rt *graphRuntime) []Node {
	var out []Node
	for _, name := range []string{NodePreviewQueue, NodeBridgeQueue} {
		if n, ok := rt.graph.Node(name); ok {
			out = append(out, n)
		}
	}
	return out
}

func setLeaky(queues []Node, mode int) []int {
	saved := make([]int, len(queues))
	for i, q := range queues {
		saved[i] = LeakyNone
		if v, err := q.Property(PropLeaky); err == nil {
			if n, ok := v.(int); ok {
				saved[i] = n
			}
		}
		_ = q.SetProperty(PropLeaky, mode)
	}
	return saved
}

func restoreLeaky(queues []Node, saved []int) {
	for i, q := range queues {
		_ = q.SetProperty(PropLeaky, saved[i])
	}
}
