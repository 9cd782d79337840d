package camcorder

import (
	"fmt"
	"time"
)

// MessageKind classifies engine messages
type MessageKind uint8

const (
	// MessageStateChanged follows every committed lifecycle transition
	MessageStateChanged MessageKind = iota
	// MessageError is a hard pipeline error
	MessageError
	// MessageWarning is a non-fatal pipeline warning
	MessageWarning
	// MessageStorageExhausted stops recording; the caller must commit
	MessageStorageExhausted
	// MessageTimeLimitReached stops recording; the caller must commit
	MessageTimeLimitReached
	// MessageMaxSizeReached stops recording; the caller must commit
	MessageMaxSizeReached
	// MessageRecordingStatus reports progress while recording
	MessageRecordingStatus
	// MessageRecordingDone reports a finalized file
	MessageRecordingDone
	// MessageCaptureDone ends a capture burst
	MessageCaptureDone
	// MessageFacesDetected reports a new face count
	MessageFacesDetected
)

var messageKindNames = []string{
	"state-changed",
	"error",
	"warning",
	"storage-exhausted",
	"time-limit-reached",
	"max-size-reached",
	"recording-status",
	"recording-done",
	"capture-done",
	"faces-detected",
}

func (k MessageKind) String() string {
	if int(k) >= len(messageKindNames) {
		return fmt.Sprintf("message(%d)", k)
	}
	return messageKindNames[k]
}

// MarshalText implements encoding.TextMarshaler
func (k MessageKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Soft reports whether the message ends recording without failing it
func (k MessageKind) Soft() bool {
	return k == MessageStorageExhausted || k == MessageTimeLimitReached || k == MessageMaxSizeReached
}

// Message is one asynchronous notification from the engine
type Message struct {
	Kind MessageKind `json:"kind"`

	Command string `json:"command,omitempty"`
	From    string `json:"from,omitempty"`
	To      string `json:"to,omitempty"`

	Source string `json:"source,omitempty"`
	Err    error  `json:"-"`
	Error  string `json:"error,omitempty"`

	Session  string        `json:"session,omitempty"`
	Location string        `json:"location,omitempty"`
	Elapsed  time.Duration `json:"elapsed_ns,omitempty"`
	FileSize int64         `json:"file_size,omitempty"`

	Count int `json:"count,omitempty"`
	Faces int `json:"faces,omitempty"`
}
