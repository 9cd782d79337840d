// Package display owns the X11 preview window. Its window id is handed to
// the display sink through the display-handle attribute; when no native sink
// draws into it, frames can be rendered with WriteFrame.
package display

import (
	"encoding/binary"
	"fmt"
	"image"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/bryanchriswhite/camcorder/internal/logger"
	"github.com/bryanchriswhite/camcorder/internal/output"
)

// Window is a top-level X11 window sized for the preview
type Window struct {
	conn   *xgb.Conn
	screen *xproto.ScreenInfo
	window xproto.Window
	gc     xproto.Gcontext
	width  int
	height int
	title  string

	mu      sync.RWMutex
	running bool
}

var _ output.Output = (*Window)(nil)

// NewWindow connects to the X server named by $DISPLAY
func NewWindow(cfg output.Config, title string) (*Window, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("bad window size %dx%d", cfg.Width, cfg.Height)
	}
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}
	setup := xproto.Setup(conn)
	return &Window{
		conn:   conn,
		screen: setup.DefaultScreen(conn),
		width:  cfg.Width,
		height: cfg.Height,
		title:  title,
	}, nil
}

// Start creates and maps the window
func (w *Window) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("preview window already running")
	}

	id, err := xproto.NewWindowId(w.conn)
	if err != nil {
		return fmt.Errorf("failed to create window ID: %w", err)
	}
	w.window = id

	mask := uint32(xproto.CwBackPixel | xproto.CwEventMask)
	values := []uint32{
		0x000000,
		xproto.EventMaskExposure | xproto.EventMaskStructureNotify,
	}
	err = xproto.CreateWindowChecked(
		w.conn,
		w.screen.RootDepth,
		w.window,
		w.screen.Root,
		0, 0,
		uint16(w.width), uint16(w.height),
		0,
		xproto.WindowClassInputOutput,
		w.screen.RootVisual,
		mask,
		values,
	).Check()
	if err != nil {
		return fmt.Errorf("failed to create window: %w", err)
	}

	log := logger.WithComponent("display")
	if err := w.setTitle(w.title); err != nil {
		log.Warn().Err(err).Msg("Failed to set window title")
	}
	if err := w.setClass("camcorder", "Camcorder"); err != nil {
		log.Warn().Err(err).Msg("Failed to set window class")
	}

	if err := xproto.MapWindowChecked(w.conn, w.window).Check(); err != nil {
		return fmt.Errorf("failed to map window: %w", err)
	}

	gc, err := xproto.NewGcontextId(w.conn)
	if err != nil {
		return fmt.Errorf("failed to create graphics context: %w", err)
	}
	if err := xproto.CreateGCChecked(w.conn, gc, xproto.Drawable(w.window), 0, nil).Check(); err != nil {
		return fmt.Errorf("failed to create GC: %w", err)
	}
	w.gc = gc
	w.conn.Sync()

	w.running = true
	log.Info().
		Int("width", w.width).
		Int("height", w.height).
		Uint32("window_id", uint32(w.window)).
		Msg("Preview window created")
	return nil
}

// Stop destroys the window and closes the connection
func (w *Window) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}
	if w.gc != 0 {
		xproto.FreeGC(w.conn, w.gc)
	}
	if w.window != 0 {
		xproto.DestroyWindow(w.conn, w.window)
		w.conn.Sync()
	}
	w.conn.Close()
	w.running = false
	logger.WithComponent("display").Info().Msg("Preview window closed")
	return nil
}

// Name implements output.Output
func (w *Window) Name() string {
	return "X11 preview window"
}

// IsRunning implements output.Output
func (w *Window) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// ID returns the X window id, zero before Start
func (w *Window) ID() uint32 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return uint32(w.window)
}

// Handle returns the window id in the display-handle encoding
func (w *Window) Handle() []byte {
	return EncodeHandle(uint64(w.ID()))
}

// EncodeHandle encodes a native window id as eight little-endian bytes
func EncodeHandle(id uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, id)
	return b
}

// WriteFrame draws frame, letterboxed to the window size
func (w *Window) WriteFrame(frame *image.RGBA) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if !w.running {
		return fmt.Errorf("preview window not running")
	}
	return w.putImage(output.Fit(frame, w.width, w.height))
}

// putImage sends an image the size of the window to the X server
func (w *Window) putImage(img *image.RGBA) error {
	depth := w.screen.RootDepth
	var bitsPerPixel, scanlinePad uint8
	for _, f := range xproto.Setup(w.conn).PixmapFormats {
		if f.Depth == depth {
			bitsPerPixel, scanlinePad = f.BitsPerPixel, f.ScanlinePad
			break
		}
	}
	if bitsPerPixel == 0 {
		return fmt.Errorf("no format found for depth %d", depth)
	}

	data, err := PackPixels(img, int(bitsPerPixel)/8, int(scanlinePad)/8, depth == 32)
	if err != nil {
		return err
	}

	err = xproto.PutImageChecked(
		w.conn,
		xproto.ImageFormatZPixmap,
		xproto.Drawable(w.window),
		w.gc,
		uint16(w.width),
		uint16(w.height),
		0, 0,
		0,
		depth,
		data,
	).Check()
	if err != nil {
		return fmt.Errorf("failed to put image: %w", err)
	}
	return nil
}

// PackPixels converts RGBA to the server's ZPixmap layout: BGR(x) pixels
// with each scanline padded to padBytes
func PackPixels(img *image.RGBA, bytesPerPixel, padBytes int, alpha bool) ([]byte, error) {
	if bytesPerPixel != 3 && bytesPerPixel != 4 {
		return nil, fmt.Errorf("unsupported bytes per pixel: %d", bytesPerPixel)
	}
	if padBytes <= 0 {
		padBytes = 1
	}
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	unpadded := width * bytesPerPixel
	stride := ((unpadded + padBytes - 1) / padBytes) * padBytes

	data := make([]byte, stride*height)
	for y := 0; y < height; y++ {
		src := img.Pix[y*img.Stride:]
		dst := data[y*stride:]
		for x := 0; x < width; x++ {
			s, d := x*4, x*bytesPerPixel
			dst[d] = src[s+2]
			dst[d+1] = src[s+1]
			dst[d+2] = src[s]
			if bytesPerPixel == 4 && alpha {
				dst[d+3] = src[s+3]
			}
		}
	}
	return data, nil
}

func (w *Window) setTitle(title string) error {
	titleAtom, err := w.atom("_NET_WM_NAME")
	if err != nil {
		return err
	}
	utf8Atom, err := w.atom("UTF8_STRING")
	if err != nil {
		return err
	}
	return xproto.ChangePropertyChecked(
		w.conn,
		xproto.PropModeReplace,
		w.window,
		titleAtom,
		utf8Atom,
		8,
		uint32(len(title)),
		[]byte(title),
	).Check()
}

func (w *Window) setClass(instance, class string) error {
	classAtom, err := w.atom("WM_CLASS")
	if err != nil {
		return err
	}
	// WM_CLASS format: instance\0class\0
	v := instance + "\x00" + class + "\x00"
	return xproto.ChangePropertyChecked(
		w.conn,
		xproto.PropModeReplace,
		w.window,
		classAtom,
		xproto.AtomString,
		8,
		uint32(len(v)),
		[]byte(v),
	).Check()
}

func (w *Window) atom(name string) (xproto.Atom, error) {
	reply, err := xproto.InternAtom(w.conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, err
	}
	return reply.Atom, nil
}
