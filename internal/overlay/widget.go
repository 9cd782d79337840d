// Package overlay draws status widgets onto preview frames before they reach
// the preview outputs.
package overlay

import (
	"image"
	"image/color"
	"sync"

	"golang.org/x/image/draw"
)

// Widget represents a renderable overlay widget
type Widget interface {
	// ID returns the unique identifier for this widget instance
	ID() string

	// Render draws the widget onto the provided image at the configured position
	Render(img *image.RGBA) error

	// IsEnabled returns whether the widget should be rendered
	IsEnabled() bool

	// SetEnabled sets whether the widget should be rendered
	SetEnabled(enabled bool)
}

// BaseWidget provides common functionality for all widgets
type BaseWidget struct {
	mu      sync.RWMutex
	id      string
	enabled bool
	x       int
	y       int
	opacity float64 // 0.0 to 1.0
}

// NewBaseWidget creates a new base widget
func NewBaseWidget(id string, x, y int, opacity float64) *BaseWidget {
	w := &BaseWidget{id: id, enabled: true, x: x, y: y}
	w.SetOpacity(opacity)
	return w
}

// ID returns the widget's unique identifier
func (w *BaseWidget) ID() string {
	return w.id
}

// IsEnabled returns whether the widget should be rendered
func (w *BaseWidget) IsEnabled() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.enabled
}

// SetEnabled sets whether the widget should be rendered
func (w *BaseWidget) SetEnabled(enabled bool) {
	w.mu.Lock()
	w.enabled = enabled
	w.mu.Unlock()
}

// Position returns the widget's top-left corner
func (w *BaseWidget) Position() (int, int) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.x, w.y
}

// SetPosition sets the widget's position
func (w *BaseWidget) SetPosition(x, y int) {
	w.mu.Lock()
	w.x, w.y = x, y
	w.mu.Unlock()
}

// Opacity returns the widget's opacity
func (w *BaseWidget) Opacity() float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.opacity
}

// SetOpacity sets the widget's opacity, clamped to [0, 1]
func (w *BaseWidget) SetOpacity(opacity float64) {
	if opacity < 0.0 {
		opacity = 0.0
	}
	if opacity > 1.0 {
		opacity = 1.0
	}
	w.mu.Lock()
	w.opacity = opacity
	w.mu.Unlock()
}

// BlendImage composites src over dst with its top-left corner at (x, y),
// scaling src alpha by opacity. Pixels outside dst are clipped.
func BlendImage(dst *image.RGBA, src image.Image, x, y int, opacity float64) {
	if opacity <= 0 {
		return
	}
	sb := src.Bounds()
	r := image.Rect(x, y, x+sb.Dx(), y+sb.Dy())
	mask := image.NewUniform(color.Alpha{A: uint8(opacity*255 + 0.5)})
	draw.DrawMask(dst, r, src, sb.Min, mask, image.Point{}, draw.Over)
}

// DrawRectangle draws a filled rectangle with the specified color and opacity
func DrawRectangle(dst *image.RGBA, x, y, width, height int, c color.Color, opacity float64) {
	if opacity <= 0 {
		return
	}
	mask := image.NewUniform(color.Alpha{A: uint8(opacity*255 + 0.5)})
	draw.DrawMask(dst, image.Rect(x, y, x+width, y+height), &image.Uniform{C: c}, image.Point{}, mask, image.Point{}, draw.Over)
}
