package hal

import (
	"fmt"
	"sync"

	"github.com/bryanchriswhite/camcorder/internal/camerr"
	"github.com/bryanchriswhite/camcorder/internal/logger"
	"github.com/rs/zerolog"
	"github.com/vladimirvivien/go4vl/device"
	"github.com/vladimirvivien/go4vl/v4l2"
)

// Camera and flash class control ids from linux/v4l2-controls.h
const (
	cidHFlip              v4l2.CtrlID = 0x00980914
	cidVFlip              v4l2.CtrlID = 0x00980915
	cidSharpness          v4l2.CtrlID = 0x0098091b
	cidColorFX            v4l2.CtrlID = 0x0098091f
	cidFocusAbsolute      v4l2.CtrlID = 0x009a090a
	cidFocusAuto          v4l2.CtrlID = 0x009a090c
	cidZoomAbsolute       v4l2.CtrlID = 0x009a090d
	cidExposureBias       v4l2.CtrlID = 0x009a0913
	cidWhiteBalancePreset v4l2.CtrlID = 0x009a0914
	cidWideDynamicRange   v4l2.CtrlID = 0x009a0915
	cidStabilization      v4l2.CtrlID = 0x009a0916
	cidISOSensitivity     v4l2.CtrlID = 0x009a0917
	cidSceneMode          v4l2.CtrlID = 0x009a091a
	cidAutoFocusRange     v4l2.CtrlID = 0x009a091f
	cidFlashLEDMode       v4l2.CtrlID = 0x009c0901
)

var v4l2Controls = map[Control]v4l2.CtrlID{
	ControlOpticalZoom:   cidZoomAbsolute,
	ControlFocusMode:     cidFocusAuto,
	ControlAFScanRange:   cidAutoFocusRange,
	ControlFocusLevel:    cidFocusAbsolute,
	ControlExposureMode:  v4l2.CtrlCameraExposureAuto,
	ControlExposureValue: cidExposureBias,
	ControlISO:           cidISOSensitivity,
	ControlWDR:           cidWideDynamicRange,
	ControlAntiHandshake: cidStabilization,
	ControlBrightness:    v4l2.CtrlBrightness,
	ControlContrast:      v4l2.CtrlContrast,
	ControlSaturation:    v4l2.CtrlSaturation,
	ControlSharpness:     cidSharpness,
	ControlHue:           v4l2.CtrlHue,
	ControlWhiteBalance:  cidWhiteBalancePreset,
	ControlColorTone:     cidColorFX,
	ControlSceneMode:     cidSceneMode,
	ControlStrobeMode:    cidFlashLEDMode,
}

// V4L2Sensor drives controls through a video4linux device node
type V4L2Sensor struct {
	path string
	dev  *device.Device
	log  *zerolog.Logger
	mu   sync.Mutex
}

// OpenV4L2 opens the device node for control access
func OpenV4L2(path string) (*V4L2Sensor, error) {
	dev, err := device.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	log := logger.WithComponent("hal")
	log.Info().Str("device", path).Msg("V4L2 sensor opened")
	return &V4L2Sensor{path: path, dev: dev, log: log}, nil
}

// Name implements Sensor
func (s *V4L2Sensor) Name() string {
	return "v4l2:" + s.path
}

// Get implements Sensor
func (s *V4L2Sensor) Get(c Control) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c == ControlFlip {
		h, err := s.dev.GetControl(cidHFlip)
		if err != nil {
			return 0, fmt.Errorf("get %s: %w", c, err)
		}
		v, err := s.dev.GetControl(cidVFlip)
		if err != nil {
			return 0, fmt.Errorf("get %s: %w", c, err)
		}
		return joinFlip(int(h.Value), int(v.Value)), nil
	}

	id, ok := v4l2Controls[c]
	if !ok {
		return 0, fmt.Errorf("%s on %s: %w", c, s.path, camerr.ErrNotSupported)
	}
	ctrl, err := s.dev.GetControl(id)
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", c, err)
	}
	return int(ctrl.Value), nil
}

// Set implements Sensor
func (s *V4L2Sensor) Set(c Control, native int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c == ControlFlip {
		h, v := splitFlip(native)
		if err := s.dev.SetControlValue(cidHFlip, v4l2.CtrlValue(h)); err != nil {
			return fmt.Errorf("set %s: %w", c, err)
		}
		if err := s.dev.SetControlValue(cidVFlip, v4l2.CtrlValue(v)); err != nil {
			return fmt.Errorf("set %s: %w", c, err)
		}
		return nil
	}

	id, ok := v4l2Controls[c]
	if !ok {
		return fmt.Errorf("%s on %s: %w", c, s.path, camerr.ErrNotSupported)
	}
	if err := s.dev.SetControlValue(id, v4l2.CtrlValue(native)); err != nil {
		return fmt.Errorf("set %s=%d: %w", c, native, err)
	}
	s.log.Debug().Str("control", c.String()).Int("value", native).Msg("Control set")
	return nil
}

// Close implements Sensor
func (s *V4L2Sensor) Close() error {
	return s.dev.Close()
}

// splitFlip maps the flip value (0 none, 1 horizontal, 2 vertical, 3 both)
// onto the two flip controls
func splitFlip(native int) (h, v int) {
	return native & 1, (native >> 1) & 1
}

func joinFlip(h, v int) int {
	return h&1 | (v&1)<<1
}
