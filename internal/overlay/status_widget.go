package overlay

import (
	"fmt"
	"image/color"
	"time"

	"github.com/bryanchriswhite/camcorder/internal/camcorder"
	"github.com/bryanchriswhite/camcorder/internal/state"
)

var (
	recordingBg = color.RGBA{200, 0, 0, 255}
	idleBg      = color.RGBA{0, 0, 0, 255}
)

// StatusWidget shows the recording clock or the capture progress. It is
// driven by engine messages and blank while the device is idle.
type StatusWidget struct {
	*TextWidget
	elapsed time.Duration
	state   string
}

// NewStatusWidget creates a status badge at (x, y)
func NewStatusWidget(id string, x, y int) *StatusWidget {
	w := &StatusWidget{TextWidget: NewTextWidget(id, x, y, "")}
	w.SetOpacity(0.8)
	return w
}

// Observe updates the badge from one engine message
func (w *StatusWidget) Observe(msg camcorder.Message) {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch {
	case msg.Kind == camcorder.MessageStateChanged:
		w.state = msg.To
		if msg.To != state.StateRecording.String() && msg.To != state.StatePaused.String() {
			w.elapsed = 0
		}
	case msg.Kind == camcorder.MessageRecordingStatus:
		w.elapsed = msg.Elapsed
	case msg.Kind == camcorder.MessageCaptureDone:
		w.setLocked(fmt.Sprintf("CAPTURED %d", msg.Count), idleBg)
		return
	case msg.Kind.Soft():
		w.setLocked("STOPPED "+msg.Kind.String(), idleBg)
		return
	default:
		return
	}

	switch w.state {
	case state.StateRecording.String():
		w.setLocked("REC "+clock(w.elapsed), recordingBg)
	case state.StatePaused.String():
		w.setLocked("PAUSED "+clock(w.elapsed), idleBg)
	case state.StateCapturing.String():
		w.setLocked("CAPTURE", idleBg)
	default:
		w.text = ""
	}
}

func (w *StatusWidget) setLocked(text string, bg color.RGBA) {
	w.text = text
	w.bgColor = &bg
}

// clock formats d as mm:ss, or h:mm:ss past the hour
func clock(d time.Duration) string {
	s := int(d / time.Second)
	if s >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", s/3600, s/60%60, s%60)
	}
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}
