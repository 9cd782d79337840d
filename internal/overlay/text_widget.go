package overlay

import (
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// TextWidget displays one line of text, optionally on a filled background
type TextWidget struct {
	*BaseWidget
	text      string
	textColor color.RGBA
	bgColor   *color.RGBA
	padding   int
}

// NewTextWidget creates a white text widget at (x, y)
func NewTextWidget(id string, x, y int, text string) *TextWidget {
	return &TextWidget{
		BaseWidget: NewBaseWidget(id, x, y, 1.0),
		text:       text,
		textColor:  color.RGBA{255, 255, 255, 255},
		padding:    4,
	}
}

// Render draws the text widget
func (w *TextWidget) Render(img *image.RGBA) error {
	w.mu.RLock()
	text, fg, bg, pad := w.text, w.textColor, w.bgColor, w.padding
	x, y, opacity := w.x, w.y, w.opacity
	w.mu.RUnlock()

	if text == "" {
		return nil
	}

	face := basicfont.Face7x13
	m := face.Metrics()
	ascent := m.Ascent.Ceil()
	height := m.Height.Ceil()
	width := font.MeasureString(face, text).Ceil()

	if bg != nil {
		DrawRectangle(img, x, y, width+2*pad, height+2*pad, *bg, opacity)
	}

	textImg := image.NewRGBA(image.Rect(0, 0, width, height))
	d := &font.Drawer{
		Dst:  textImg,
		Src:  image.NewUniform(fg),
		Face: face,
		Dot:  fixed.P(0, ascent),
	}
	d.DrawString(text)

	BlendImage(img, textImg, x+pad, y+pad, opacity)
	return nil
}

// SetText updates the text content
func (w *TextWidget) SetText(text string) {
	w.mu.Lock()
	w.text = text
	w.mu.Unlock()
}

// Text returns the current text
func (w *TextWidget) Text() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.text
}

// SetColor sets the text color
func (w *TextWidget) SetColor(c color.RGBA) {
	w.mu.Lock()
	w.textColor = c
	w.mu.Unlock()
}

// SetBackground sets the background color (nil for transparent)
func (w *TextWidget) SetBackground(c *color.RGBA) {
	w.mu.Lock()
	w.bgColor = c
	w.mu.Unlock()
}
