package camcorder

import (
	"context"
	"errors"
	"fmt"

	"github.com/bryanchriswhite/camcorder/internal/attr"
	"github.com/bryanchriswhite/camcorder/internal/camerr"
	"github.com/bryanchriswhite/camcorder/internal/hal"
	"github.com/bryanchriswhite/camcorder/internal/pipeline"
	"github.com/bryanchriswhite/camcorder/internal/state"
)

// controls maps sensor-backed attributes to their sensor control
var controls = map[attr.ID]hal.Control{
	attr.CameraDigitalZoom:   hal.ControlDigitalZoom,
	attr.CameraOpticalZoom:   hal.ControlOpticalZoom,
	attr.CameraFocusMode:     hal.ControlFocusMode,
	attr.CameraAFScanRange:   hal.ControlAFScanRange,
	attr.CameraFocusLevel:    hal.ControlFocusLevel,
	attr.CameraExposureMode:  hal.ControlExposureMode,
	attr.CameraExposureValue: hal.ControlExposureValue,
	attr.CameraISO:           hal.ControlISO,
	attr.CameraWDR:           hal.ControlWDR,
	attr.CameraAntiHandshake: hal.ControlAntiHandshake,
	attr.FilterBrightness:    hal.ControlBrightness,
	attr.FilterContrast:      hal.ControlContrast,
	attr.FilterSaturation:    hal.ControlSaturation,
	attr.FilterSharpness:     hal.ControlSharpness,
	attr.FilterHue:           hal.ControlHue,
	attr.FilterWB:            hal.ControlWhiteBalance,
	attr.FilterColorTone:     hal.ControlColorTone,
	attr.FilterSceneMode:     hal.ControlSceneMode,
	attr.FilterFlip:          hal.ControlFlip,
	attr.StrobeMode:          hal.ControlStrobeMode,
	attr.DetectMode:          hal.ControlFaceDetect,
}

func (e *Engine) registerHandlers() {
	e.attrs.Handle(attr.GroupCamera, attr.CommitFunc(e.commitControl))
	e.attrs.Handle(attr.GroupStrobe, attr.CommitFunc(e.commitControl))
	e.attrs.Handle(attr.GroupDetect, attr.CommitFunc(e.commitDetect))
	e.attrs.Handle(attr.GroupResolution, attr.CommitFunc(e.commitResolution))
	e.attrs.Handle(attr.GroupDisplay, attr.CommitFunc(e.commitDisplay))
	e.attrs.Handle(attr.GroupAudio, attr.CommitFunc(e.commitAudio))
	e.attrs.Handle(attr.GroupEncoder, attr.CommitFunc(e.commitEncoder))
	e.attrs.Handle(attr.GroupCapture, attr.CommitFunc(e.commitCapture))
}

func (e *Engine) realized() bool {
	return e.machine.Current() != state.StateNull
}

// nativeValue translates an abstract attribute value for the sensor
func (e *Engine) nativeValue(id attr.ID, abstract int) int {
	if f, ok := e.attrs.Feature(id); ok {
		return e.tr.ToDevice(f, abstract)
	}
	return abstract
}

func (e *Engine) commitControl(c *attr.Commit) error {
	if e.sensor == nil || !e.realized() {
		return nil
	}
	return e.applyControl(c.ID, c.Int())
}

func (e *Engine) applyControl(id attr.ID, abstract int) error {
	ctrl, ok := controls[id]
	if !ok {
		return nil
	}
	native := e.nativeValue(id, abstract)
	if err := e.sensor.Set(ctrl, native); err != nil {
		if errors.Is(err, camerr.ErrNotSupported) {
			return err
		}
		return fmt.Errorf("sensor %s: %v: %w", ctrl, err, camerr.ErrInvalidArgument)
	}
	return nil
}

// applyDeferredControls pushes every stored control value to the sensor.
// Values accepted before realize are applied here.
func (e *Engine) applyDeferredControls() {
	if e.sensor == nil {
		return
	}
	applied := 0
	for id := range controls {
		err := e.applyControl(id, e.attrs.Int(id))
		switch {
		case err == nil:
			applied++
		case errors.Is(err, camerr.ErrNotSupported):
			e.log.Debug().Str("attribute", e.attrs.Name(id)).Msg("Control not supported by sensor")
		default:
			e.log.Warn().Err(err).Str("attribute", e.attrs.Name(id)).Msg("Could not apply stored control")
		}
	}
	e.log.Debug().Int("applied", applied).Str("sensor", e.sensor.Name()).Msg("Sensor controls applied")
}

func (e *Engine) commitDetect(c *attr.Commit) error {
	if err := e.commitControl(c); err != nil {
		return err
	}
	if c.Int() == 0 {
		e.publishFaces(0)
	}
	return nil
}

// commitResolution restarts the preview with the new geometry. A batch
// carrying both width and height applies them once.
func (e *Engine) commitResolution(c *attr.Commit) error {
	switch c.ID {
	case attr.CameraWidth:
		c.MarkConsistent(attr.CameraHeight)
	case attr.CameraHeight:
		c.MarkConsistent(attr.CameraWidth)
	}
	if !e.realized() {
		return nil
	}
	g := pipeline.Geometry{
		Width:  c.IntOf(attr.CameraWidth),
		Height: c.IntOf(attr.CameraHeight),
		FPS:    c.IntOf(attr.CameraFPS),
	}
	if _, ok := c.Pending(attr.CameraFPS); ok && c.ID != attr.CameraFPS {
		c.MarkConsistent(attr.CameraFPS)
	}
	return e.orch.ReconfigureGeometry(context.Background(), g)
}

func (e *Engine) commitDisplay(c *attr.Commit) error {
	if !e.realized() {
		return nil
	}
	e.orch.ApplyDisplay()
	return nil
}

func (e *Engine) commitAudio(c *attr.Commit) error {
	if !e.realized() {
		return nil
	}
	return e.orch.ApplyAudio()
}

func (e *Engine) commitEncoder(c *attr.Commit) error {
	if !e.realized() {
		return nil
	}
	return e.orch.ApplyEncoder()
}

func (e *Engine) commitCapture(c *attr.Commit) error {
	if c.ID != attr.CaptureBreakContShot || c.Int() == 0 {
		return nil
	}
	e.sessMu.Lock()
	b := e.shot
	e.sessMu.Unlock()
	if b != nil {
		b.breakShot()
	}
	return nil
}
