// Package pipeline builds and drives the media graphs of the camcorder.
//
// The orchestrator never talks to a media framework directly. It goes through
// the Backend, Graph and Node interfaces, implemented by the GStreamer backend
// for real devices and by the in-memory backend for simulation and tests.
package pipeline

import (
	"fmt"
	"strings"
	"time"
)

// NativeState is the state of a native graph
type NativeState uint8

const (
	NativeNull NativeState = iota
	NativeReady
	NativePaused
	NativePlaying
)

func (s NativeState) String() string {
	switch s {
	case NativeNull:
		return "NULL"
	case NativeReady:
		return "READY"
	case NativePaused:
		return "PAUSED"
	case NativePlaying:
		return "PLAYING"
	default:
		return "UNKNOWN"
	}
}

// MessageKind classifies asynchronous graph messages
type MessageKind uint8

const (
	MessageStateChanged MessageKind = iota
	MessageError
	MessageWarning
	MessageEOS
	MessageStorageExhausted
	MessageTimeLimit
)

func (k MessageKind) String() string {
	switch k {
	case MessageStateChanged:
		return "state-changed"
	case MessageError:
		return "error"
	case MessageWarning:
		return "warning"
	case MessageEOS:
		return "eos"
	case MessageStorageExhausted:
		return "storage-exhausted"
	case MessageTimeLimit:
		return "time-limit"
	default:
		return "unknown"
	}
}

// Message is one asynchronous notification from a graph. Source is the node
// or graph name that posted it; Old and New are only set for state changes.
type Message struct {
	Kind   MessageKind
	Graph  string
	Source string
	Old    NativeState
	New    NativeState
	Err    error
	Debug  string
}

// Caps describes a raw or encoded media format
type Caps struct {
	Media    string `json:"media"`
	Format   string `json:"format,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	FPS      int    `json:"fps,omitempty"`
	Rate     int    `json:"rate,omitempty"`
	Channels int    `json:"channels,omitempty"`
}

// Media types
const (
	MediaRawVideo = "video/x-raw"
	MediaRawAudio = "audio/x-raw"
	MediaJPEG     = "image/jpeg"
	MediaPNG      = "image/png"
)

// String renders caps in GStreamer caps-string syntax
func (c Caps) String() string {
	var b strings.Builder
	b.WriteString(c.Media)
	if c.Format != "" {
		fmt.Fprintf(&b, ",format=%s", c.Format)
	}
	if c.Width > 0 {
		fmt.Fprintf(&b, ",width=%d", c.Width)
	}
	if c.Height > 0 {
		fmt.Fprintf(&b, ",height=%d", c.Height)
	}
	if c.FPS > 0 {
		fmt.Fprintf(&b, ",framerate=%d/1", c.FPS)
	}
	if c.Rate > 0 {
		fmt.Fprintf(&b, ",rate=%d", c.Rate)
	}
	if c.Channels > 0 {
		fmt.Fprintf(&b, ",channels=%d", c.Channels)
	}
	return b.String()
}

// IsZero reports whether no media type is set
func (c Caps) IsZero() bool {
	return c.Media == ""
}

// FrameSize returns the byte size of one raw video frame, or 0 when unknown
func (c Caps) FrameSize() int {
	if c.Media != MediaRawVideo || c.Width <= 0 || c.Height <= 0 {
		return 0
	}
	switch c.Format {
	case "I420", "NV12":
		return c.Width * c.Height * 3 / 2
	case "YUY2":
		return c.Width * c.Height * 2
	case "RGBA":
		return c.Width * c.Height * 4
	default:
		return 0
	}
}

// PixelFormats maps the camera-format attribute to raw video formats
var PixelFormats = []string{"I420", "NV12", "YUY2", "RGBA"}

// AudioFormats maps the audio-format attribute to raw audio formats
var AudioFormats = []string{"S16LE", "F32LE"}

// PixelFormat returns the raw format of a camera-format index
func PixelFormat(index int) string {
	if index < 0 || index >= len(PixelFormats) {
		return PixelFormats[0]
	}
	return PixelFormats[index]
}

// AudioFormat returns the raw format of an audio-format index
func AudioFormat(index int) string {
	if index < 0 || index >= len(AudioFormats) {
		return AudioFormats[0]
	}
	return AudioFormats[index]
}

// Sample is one buffer with its timing and format
type Sample struct {
	Data     []byte
	PTS      time.Duration
	Duration time.Duration
	Caps     Caps
}

// Backend creates native graphs
type Backend interface {
	Name() string
	NewGraph(name string) (Graph, error)
}

// Graph is a native pipeline. SetState is asynchronous: completion is
// reported by a MessageStateChanged whose Source is the graph name.
type Graph interface {
	Name() string
	AddNode(factory, name string) (Node, error)
	Node(name string) (Node, bool)
	Link(src, dst Node) error
	Remove(nodes ...Node) error
	SetState(target NativeState) error
	Messages() <-chan Message
	Close() error
}

// Node is one native element. The "caps" property takes a Caps value.
// OnSample is only supported by data sinks; Push and EndOfStream only by
// data sources.
type Node interface {
	Name() string
	Factory() string
	HasProperty(name string) bool
	SetProperty(name string, value any) error
	Property(name string) (any, error)
	OnSample(fn func(Sample)) error
	Push(s Sample) error
	EndOfStream() error
}

// Property names the orchestrator sets on every backend
const (
	PropCaps     = "caps"
	PropLeaky    = "leaky"
	PropLocation = "location"
	PropVolume   = "volume"
	PropMute     = "mute"
)

// Queue leak modes
const (
	LeakyNone       = 0
	LeakyDownstream = 2
)
