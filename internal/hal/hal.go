// Package hal talks to camera hardware: the sensor's image controls and the
// strobe line. Values crossing this boundary are device-native integers; the
// engine translates abstract attribute values before calling in.
package hal

import (
	"context"
	"time"
)

// Control identifies one sensor control
type Control uint8

const (
	ControlDigitalZoom Control = iota
	ControlOpticalZoom
	ControlFocusMode
	ControlAFScanRange
	ControlFocusLevel
	ControlExposureMode
	ControlExposureValue
	ControlISO
	ControlWDR
	ControlAntiHandshake
	ControlBrightness
	ControlContrast
	ControlSaturation
	ControlSharpness
	ControlHue
	ControlWhiteBalance
	ControlColorTone
	ControlSceneMode
	ControlFlip
	ControlStrobeMode
	ControlFaceDetect
	controlCount
)

var controlNames = [controlCount]string{
	"digital-zoom", "optical-zoom", "focus-mode", "af-scan-range", "focus-level",
	"exposure-mode", "exposure-value", "iso", "wdr", "anti-handshake",
	"brightness", "contrast", "saturation", "sharpness", "hue",
	"white-balance", "color-tone", "scene-mode", "flip", "strobe-mode", "face-detect",
}

func (c Control) String() string {
	if c >= controlCount {
		return "unknown"
	}
	return controlNames[c]
}

// Controls lists every control
func Controls() []Control {
	out := make([]Control, controlCount)
	for i := range out {
		out[i] = Control(i)
	}
	return out
}

// Sensor reads and writes native control values
type Sensor interface {
	Name() string
	Get(c Control) (int, error)
	Set(c Control, native int) error
	Close() error
}

// FaceDetector is implemented by sensors that report detected faces
type FaceDetector interface {
	Faces() int
}

// Strobe fires the flash
type Strobe interface {
	Fire(ctx context.Context, d time.Duration) error
	Close() error
}
