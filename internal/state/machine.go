// Package state implements the device lifecycle state machine.
//
// Commands are single-flight: a second command while one is running fails
// with camerr.ErrCommandBusy instead of waiting. The authoritative state only
// changes after the command's work function reports that the native pipeline
// confirmed the new state.
package state

import (
	"context"
	"fmt"
	"sync"

	"github.com/bryanchriswhite/camcorder/internal/camerr"
	"github.com/bryanchriswhite/camcorder/internal/logger"
)

// State is the device lifecycle state
type State uint8

const (
	StateNull State = iota
	StateReady
	StatePrepare
	StateCapturing
	StateRecording
	StatePaused
)

// String returns a human-readable state name
func (s State) String() string {
	switch s {
	case StateNull:
		return "NULL"
	case StateReady:
		return "READY"
	case StatePrepare:
		return "PREPARE"
	case StateCapturing:
		return "CAPTURING"
	case StateRecording:
		return "RECORDING"
	case StatePaused:
		return "PAUSED"
	default:
		return "UNKNOWN"
	}
}

// Mask returns the bit for s, used by writable-state masks
func (s State) Mask() StateMask {
	return 1 << s
}

// StateMask is a set of states
type StateMask uint8

// Common masks
const (
	MaskNone       StateMask = 0
	MaskNull                 = StateMask(1 << StateNull)
	MaskReady                = StateMask(1 << StateReady)
	MaskPrepare              = StateMask(1 << StatePrepare)
	MaskCapturing            = StateMask(1 << StateCapturing)
	MaskRecording            = StateMask(1 << StateRecording)
	MaskPaused               = StateMask(1 << StatePaused)
	MaskUpToReady            = MaskNull | MaskReady
	MaskUpToPrepare          = MaskNull | MaskReady | MaskPrepare
	MaskAll                  = MaskUpToPrepare | MaskCapturing | MaskRecording | MaskPaused
)

// Has reports whether s is in the mask
func (m StateMask) Has(s State) bool {
	return m&s.Mask() != 0
}

// Mode is the capture mode selected by the "mode" attribute
type Mode uint8

const (
	ModeImage Mode = iota
	ModeVideo
	ModeAudio
)

func (m Mode) String() string {
	switch m {
	case ModeImage:
		return "image"
	case ModeVideo:
		return "video"
	case ModeAudio:
		return "audio"
	default:
		return "unknown"
	}
}

// ParseMode resolves a mode name
func ParseMode(name string) (Mode, bool) {
	for _, m := range []Mode{ModeImage, ModeVideo, ModeAudio} {
		if m.String() == name {
			return m, true
		}
	}
	return 0, false
}

// Command is a lifecycle command
type Command uint8

const (
	CmdRealize Command = iota
	CmdUnrealize
	CmdStart
	CmdStop
	CmdCaptureStart
	CmdCaptureStop
	CmdRecord
	CmdPause
	CmdCancel
	CmdCommit
)

var commandNames = map[Command]string{
	CmdRealize:      "realize",
	CmdUnrealize:    "unrealize",
	CmdStart:        "start",
	CmdStop:         "stop",
	CmdCaptureStart: "capture-start",
	CmdCaptureStop:  "capture-stop",
	CmdRecord:       "record",
	CmdPause:        "pause",
	CmdCancel:       "cancel",
	CmdCommit:       "commit",
}

func (c Command) String() string {
	if n, ok := commandNames[c]; ok {
		return n
	}
	return "unknown"
}

// ParseCommand resolves a command name
func ParseCommand(name string) (Command, bool) {
	for c, n := range commandNames {
		if n == name {
			return c, true
		}
	}
	return 0, false
}

type transition struct {
	from  StateMask
	to    State
	modes []Mode // empty means any mode
}

var transitions = map[Command]transition{
	CmdRealize:      {from: MaskNull, to: StateReady},
	CmdUnrealize:    {from: MaskReady, to: StateNull},
	CmdStart:        {from: MaskReady, to: StatePrepare},
	CmdStop:         {from: MaskPrepare, to: StateReady},
	CmdCaptureStart: {from: MaskPrepare, to: StateCapturing, modes: []Mode{ModeImage}},
	CmdCaptureStop:  {from: MaskCapturing, to: StatePrepare},
	CmdRecord:       {from: MaskPrepare | MaskPaused, to: StateRecording, modes: []Mode{ModeVideo, ModeAudio}},
	CmdPause:        {from: MaskRecording, to: StatePaused},
	CmdCancel:       {from: MaskRecording | MaskPaused, to: StatePrepare},
	CmdCommit:       {from: MaskRecording | MaskPaused, to: StatePrepare},
}

// Next returns the state cmd leads to from s in mode, or ErrInvalidState
func Next(s State, mode Mode, cmd Command) (State, error) {
	tr, ok := transitions[cmd]
	if !ok {
		return s, fmt.Errorf("unknown command %d: %w", cmd, camerr.ErrInvalidArgument)
	}
	if !tr.from.Has(s) {
		return s, fmt.Errorf("%s not allowed in %s: %w", cmd, s, camerr.ErrInvalidState)
	}
	if len(tr.modes) > 0 {
		allowed := false
		for _, m := range tr.modes {
			if m == mode {
				allowed = true
				break
			}
		}
		if !allowed {
			return s, fmt.Errorf("%s not allowed in %s mode: %w", cmd, mode, camerr.ErrInvalidState)
		}
	}
	return tr.to, nil
}

// Work performs the native side of a transition. It returns only once the
// pipeline confirmed the target state, or with an error.
type Work func(ctx context.Context, from, to State) error

// Listener observes committed transitions
type Listener func(cmd Command, from, to State)

// Machine owns the authoritative device state
type Machine struct {
	cmdMu sync.Mutex

	stateMu sync.RWMutex
	current State
	target  State

	mode func() Mode

	listenersMu sync.RWMutex
	listeners   []Listener
}

// New creates a machine in NULL. mode reports the active capture mode.
func New(mode func() Mode) *Machine {
	if mode == nil {
		mode = func() Mode { return ModeImage }
	}
	return &Machine{mode: mode}
}

// Current returns the authoritative state. It never waits on a running command.
func (m *Machine) Current() State {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.current
}

// Target returns the pending target state, equal to Current when idle
func (m *Machine) Target() State {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.target
}

// TryAcquire takes the command lock without waiting
func (m *Machine) TryAcquire() error {
	if !m.cmdMu.TryLock() {
		return camerr.ErrCommandBusy
	}
	return nil
}

// Release gives back the command lock taken by TryAcquire
func (m *Machine) Release() {
	m.cmdMu.Unlock()
}

// OnTransition registers a listener for committed transitions
func (m *Machine) OnTransition(l Listener) {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()
	m.listeners = append(m.listeners, l)
}

// Check reports whether cmd is legal right now without running it
func (m *Machine) Check(cmd Command) (State, error) {
	return Next(m.Current(), m.mode(), cmd)
}

// Run executes cmd: it takes the command lock, validates the transition,
// publishes the target, runs work and commits the new state only when work
// succeeds. A failed work leaves the state untouched.
func (m *Machine) Run(ctx context.Context, cmd Command, work Work) error {
	if err := m.TryAcquire(); err != nil {
		return fmt.Errorf("%s: %w", cmd, err)
	}
	defer m.Release()
	return m.RunLocked(ctx, cmd, work)
}

// RunLocked is Run for a caller that already holds the command lock
func (m *Machine) RunLocked(ctx context.Context, cmd Command, work Work) error {
	log := logger.WithComponent("state")

	from := m.Current()
	to, err := Next(from, m.mode(), cmd)
	if err != nil {
		return err
	}

	m.stateMu.Lock()
	m.target = to
	m.stateMu.Unlock()

	log.Debug().
		Str("command", cmd.String()).
		Str("from", from.String()).
		Str("to", to.String()).
		Msg("Transition started")

	if work != nil {
		if err := work(ctx, from, to); err != nil {
			m.stateMu.Lock()
			m.target = m.current
			m.stateMu.Unlock()
			log.Warn().
				Err(err).
				Str("command", cmd.String()).
				Str("state", from.String()).
				Msg("Transition failed, state unchanged")
			return err
		}
	}

	m.stateMu.Lock()
	m.current = to
	m.target = to
	m.stateMu.Unlock()

	log.Info().
		Str("command", cmd.String()).
		Str("from", from.String()).
		Str("to", to.String()).
		Msg("State changed")

	m.listenersMu.RLock()
	listeners := append([]Listener(nil), m.listeners...)
	m.listenersMu.RUnlock()
	for _, l := range listeners {
		l(cmd, from, to)
	}
	return nil
}
