package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"sync"
	"time"

	"github.com/bryanchriswhite/camcorder/internal/logger"
)

const defaultQuality = 80

// MJPEGOutput streams preview frames as Motion JPEG over HTTP
type MJPEGOutput struct {
	config  Config
	running bool
	mu      sync.RWMutex

	frameMu    sync.RWMutex
	lastFrame  []byte
	lastUpdate time.Time

	clientsMu sync.RWMutex
	clients   map[chan []byte]struct{}

	frameCount uint64
	startTime  time.Time
}

// Stats describes the stream for the health endpoint
type Stats struct {
	Running    bool    `json:"running"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	TargetFPS  int     `json:"target_fps"`
	ActualFPS  float64 `json:"actual_fps"`
	Frames     uint64  `json:"frames"`
	Clients    int     `json:"clients"`
	LastUpdate string  `json:"last_update,omitempty"`
}

// NewMJPEGOutput creates a new MJPEG stream output
func NewMJPEGOutput(config Config) *MJPEGOutput {
	if config.Quality <= 0 || config.Quality > 100 {
		config.Quality = defaultQuality
	}
	return &MJPEGOutput{
		config:  config,
		clients: make(map[chan []byte]struct{}),
	}
}

// Start initializes the MJPEG output
func (m *MJPEGOutput) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("MJPEG output already running")
	}

	m.running = true
	m.startTime = time.Now()
	m.frameCount = 0

	logger.WithComponent("output").Info().
		Int("width", m.config.Width).
		Int("height", m.config.Height).
		Int("fps", m.config.FPS).
		Msg("MJPEG output started")
	return nil
}

// Stop disconnects every client
func (m *MJPEGOutput) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}
	m.running = false

	m.clientsMu.Lock()
	for ch := range m.clients {
		close(ch)
	}
	m.clients = make(map[chan []byte]struct{})
	m.clientsMu.Unlock()

	logger.WithComponent("output").Info().Uint64("frames", m.frameCount).Msg("MJPEG output stopped")
	return nil
}

// WriteFrame encodes frame and sends it to every connected client. Slow
// clients skip frames.
func (m *MJPEGOutput) WriteFrame(frame *image.RGBA) error {
	if !m.IsRunning() {
		return fmt.Errorf("MJPEG output not running")
	}

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, frame, &jpeg.Options{Quality: m.config.Quality}); err != nil {
		return fmt.Errorf("failed to encode JPEG: %w", err)
	}
	data := buf.Bytes()

	m.frameMu.Lock()
	m.lastFrame = data
	m.lastUpdate = time.Now()
	m.frameMu.Unlock()

	m.mu.Lock()
	m.frameCount++
	m.mu.Unlock()

	m.clientsMu.RLock()
	for ch := range m.clients {
		select {
		case ch <- data:
		default:
		}
	}
	m.clientsMu.RUnlock()
	return nil
}

// Snapshot returns the last encoded frame
func (m *MJPEGOutput) Snapshot() ([]byte, bool) {
	m.frameMu.RLock()
	defer m.frameMu.RUnlock()
	return m.lastFrame, m.lastFrame != nil
}

// Name returns the output type name
func (m *MJPEGOutput) Name() string {
	return "MJPEG HTTP Stream"
}

// IsRunning returns true if the output is active
func (m *MJPEGOutput) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// ServeHTTP streams multipart JPEG frames until the client goes away or the
// output stops
func (m *MJPEGOutput) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !m.IsRunning() {
		http.Error(w, "preview stream not running", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Header().Set("Connection", "close")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	frames := make(chan []byte, 2)

	m.clientsMu.Lock()
	m.clients[frames] = struct{}{}
	count := len(m.clients)
	m.clientsMu.Unlock()

	log := logger.WithComponent("output")
	log.Info().Int("clients", count).Str("remote", r.RemoteAddr).Msg("MJPEG client connected")

	defer func() {
		m.clientsMu.Lock()
		// Stop may already have closed and dropped the channel
		delete(m.clients, frames)
		count := len(m.clients)
		m.clientsMu.Unlock()
		log.Info().Int("clients", count).Msg("MJPEG client disconnected")
	}()

	for {
		select {
		case <-r.Context().Done():
			return
		case data, ok := <-frames:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(data)); err != nil {
				return
			}
			if _, err := w.Write(data); err != nil {
				return
			}
			if _, err := fmt.Fprint(w, "\r\n"); err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

// Stats reports stream counters
func (m *MJPEGOutput) Stats() Stats {
	m.mu.RLock()
	running, frames, start := m.running, m.frameCount, m.startTime
	m.mu.RUnlock()

	m.frameMu.RLock()
	last := m.lastUpdate
	m.frameMu.RUnlock()

	m.clientsMu.RLock()
	clients := len(m.clients)
	m.clientsMu.RUnlock()

	s := Stats{
		Running:   running,
		Width:     m.config.Width,
		Height:    m.config.Height,
		TargetFPS: m.config.FPS,
		Frames:    frames,
		Clients:   clients,
	}
	if running && !start.IsZero() {
		if elapsed := time.Since(start).Seconds(); elapsed > 0 {
			s.ActualFPS = float64(frames) / elapsed
		}
	}
	if !last.IsZero() {
		s.LastUpdate = last.Format(time.RFC3339Nano)
	}
	return s
}

// StatsHandler serves Stats as JSON
func (m *MJPEGOutput) StatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(m.Stats())
	}
}
