package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bryanchriswhite/camcorder/internal/camerr"
	"github.com/rs/zerolog"
)

// watcher drains a graph's message stream on its own goroutine. It tracks
// the confirmed native state for waiters and forwards every message.
type watcher struct {
	graph   Graph
	forward func(Message)
	log     *zerolog.Logger

	mu      sync.Mutex
	state   NativeState
	changed chan struct{}
	lastErr error
	eos     chan struct{}
	eosSeen bool

	done chan struct{}
}

func newWatcher(g Graph, forward func(Message), log *zerolog.Logger) *watcher {
	return &watcher{
		graph:   g,
		forward: forward,
		log:     log,
		changed: make(chan struct{}),
		eos:     make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (w *watcher) start() {
	go w.run()
}

func (w *watcher) run() {
	defer close(w.done)
	for msg := range w.graph.Messages() {
		w.handle(msg)
	}
	w.log.Debug().Str("graph", w.graph.Name()).Msg("Message watcher stopped")
}

func (w *watcher) handle(msg Message) {
	msg.Graph = w.graph.Name()

	switch msg.Kind {
	case MessageStateChanged:
		if msg.Source != w.graph.Name() {
			return
		}
		w.log.Debug().
			Str("graph", msg.Graph).
			Str("from", msg.Old.String()).
			Str("to", msg.New.String()).
			Msg("Graph state changed")
		w.mu.Lock()
		w.state = msg.New
		w.signalLocked()
		w.mu.Unlock()

	case MessageError:
		w.log.Error().
			Err(msg.Err).
			Str("graph", msg.Graph).
			Str("source", msg.Source).
			Str("debug", msg.Debug).
			Msg("Graph error")
		w.mu.Lock()
		w.lastErr = msg.Err
		w.signalLocked()
		w.mu.Unlock()

	case MessageEOS:
		w.mu.Lock()
		if !w.eosSeen {
			w.eosSeen = true
			close(w.eos)
		}
		w.mu.Unlock()

	case MessageWarning:
		w.log.Warn().Err(msg.Err).Str("graph", msg.Graph).Str("source", msg.Source).Msg("Graph warning")
	}

	if w.forward != nil {
		w.forward(msg)
	}
}

func (w *watcher) signalLocked() {
	close(w.changed)
	w.changed = make(chan struct{})
}

// current returns the last confirmed native state
func (w *watcher) current() NativeState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// arm clears the error seen by the previous request
func (w *watcher) arm() {
	w.mu.Lock()
	w.lastErr = nil
	w.mu.Unlock()
}

// waitState blocks until the graph confirms target, an error is posted,
// the timeout elapses or ctx ends
func (w *watcher) waitState(ctx context.Context, target NativeState, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		w.mu.Lock()
		st, ch, lastErr := w.state, w.changed, w.lastErr
		w.mu.Unlock()

		if st == target {
			return nil
		}
		if lastErr != nil {
			return fmt.Errorf("graph %s failed reaching %s: %v: %w", w.graph.Name(), target, lastErr, camerr.ErrResourceCreation)
		}

		select {
		case <-ch:
		case <-timer.C:
			return fmt.Errorf("graph %s stuck in %s waiting for %s: %w", w.graph.Name(), st, target, camerr.ErrResponseTimeout)
		case <-ctx.Done():
			return fmt.Errorf("graph %s waiting for %s: %w: %w", w.graph.Name(), target, ctx.Err(), camerr.ErrResponseTimeout)
		}
	}
}

// waitEOS blocks until the graph posted end-of-stream
func (w *watcher) waitEOS(ctx context.Context, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-w.eos:
		return nil
	case <-timer.C:
		return fmt.Errorf("graph %s did not finish: %w", w.graph.Name(), camerr.ErrResponseTimeout)
	case <-ctx.Done():
		return fmt.Errorf("graph %s waiting for eos: %w: %w", w.graph.Name(), ctx.Err(), camerr.ErrResponseTimeout)
	}
}

// wait returns once the message stream is closed
func (w *watcher) wait(timeout time.Duration) {
	select {
	case <-w.done:
	case <-time.After(timeout):
		w.log.Warn().Str("graph", w.graph.Name()).Msg("Message watcher did not stop in time")
	}
}
