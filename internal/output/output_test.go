package output

import (
	"bufio"
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func i420(w, h int, y, cb, cr byte) []byte {
	cw, ch := (w+1)/2, (h+1)/2
	buf := make([]byte, w*h+2*cw*ch)
	for i := range buf[:w*h] {
		buf[i] = y
	}
	for i := w * h; i < w*h+cw*ch; i++ {
		buf[i] = cb
	}
	for i := w*h + cw*ch; i < len(buf); i++ {
		buf[i] = cr
	}
	return buf
}

func TestToRGBA(t *testing.T) {
	tests := []struct {
		name   string
		data   []byte
		format string
		want   color.RGBA
	}{
		{"I420 gray", i420(4, 2, 200, 128, 128), "I420", color.RGBA{200, 200, 200, 255}},
		{"I420 red", i420(4, 2, 76, 85, 255), "I420", color.RGBA{254, 0, 0, 255}},
		{"NV12 white", append(bytes.Repeat([]byte{255}, 8), 128, 128, 128, 128), "NV12", color.RGBA{255, 255, 255, 255}},
		{"YUY2 black", bytes.Repeat([]byte{0, 128}, 8), "YUY2", color.RGBA{0, 0, 0, 255}},
		{"RGBA", bytes.Repeat([]byte{10, 20, 30, 255}, 8), "RGBA", color.RGBA{10, 20, 30, 255}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := ToRGBA(tt.data, tt.format, 4, 2)
			require.NoError(t, err)
			assert.Equal(t, image.Rect(0, 0, 4, 2), img.Bounds())
			got := img.RGBAAt(3, 1)
			assert.InDelta(t, tt.want.R, got.R, 2)
			assert.InDelta(t, tt.want.G, got.G, 2)
			assert.InDelta(t, tt.want.B, got.B, 2)
		})
	}
}

func TestToRGBAErrors(t *testing.T) {
	tests := []struct {
		name   string
		data   []byte
		format string
		w, h   int
	}{
		{"short I420", make([]byte, 5), "I420", 4, 2},
		{"odd YUY2", make([]byte, 64), "YUY2", 3, 2},
		{"unknown format", make([]byte, 64), "BGRx", 4, 2},
		{"zero size", nil, "RGBA", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ToRGBA(tt.data, tt.format, tt.w, tt.h)
			assert.Error(t, err)
		})
	}
}

func TestFitLetterboxes(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 40, 10))
	for i := 0; i < len(src.Pix); i += 4 {
		copy(src.Pix[i:], []byte{255, 255, 255, 255})
	}

	dst := Fit(src, 20, 20)
	assert.Equal(t, image.Rect(0, 0, 20, 20), dst.Bounds())
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, dst.RGBAAt(10, 0), "bar above")
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, dst.RGBAAt(10, 10), "image in the middle")
	assert.Same(t, src, Fit(src, 40, 10))
}

type recordingOutput struct {
	mu     sync.Mutex
	frames []*image.RGBA
}

func (o *recordingOutput) Start() error    { return nil }
func (o *recordingOutput) Stop() error     { return nil }
func (o *recordingOutput) Name() string    { return "recording" }
func (o *recordingOutput) IsRunning() bool { return true }

func (o *recordingOutput) WriteFrame(f *image.RGBA) error {
	o.mu.Lock()
	o.frames = append(o.frames, f)
	o.mu.Unlock()
	return nil
}

func (o *recordingOutput) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.frames)
}

func TestFeeder(t *testing.T) {
	out := &recordingOutput{}
	f := NewFeeder(Config{Width: 8, Height: 8, FPS: 5}, out)
	defer f.Close()

	frame := i420(4, 2, 128, 128, 128)
	f.Feed(frame, "I420", 4, 2)
	f.Feed(frame, "I420", 4, 2) // throttled

	require.Eventually(t, func() bool { return out.count() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, out.count())

	out.mu.Lock()
	assert.Equal(t, image.Rect(0, 0, 8, 8), out.frames[0].Bounds())
	out.mu.Unlock()
}

func TestMJPEGStream(t *testing.T) {
	m := NewMJPEGOutput(Config{Width: 16, Height: 16, FPS: 10})
	assert.Error(t, m.WriteFrame(image.NewRGBA(image.Rect(0, 0, 16, 16))), "not running")
	require.NoError(t, m.Start())
	defer m.Stop()

	srv := httptest.NewServer(m)
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "multipart/x-mixed-replace; boundary=frame", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return m.Stats().Clients == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, m.WriteFrame(image.NewRGBA(image.Rect(0, 0, 16, 16))))

	r := bufio.NewReader(resp.Body)
	boundary, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "--frame\r\n", boundary)
	hdr, err := textproto.NewReader(r).ReadMIMEHeader()
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", hdr.Get("Content-Type"))
	n, err := strconv.Atoi(hdr.Get("Content-Length"))
	require.NoError(t, err)

	body := make([]byte, n)
	_, err = io.ReadFull(r, body)
	require.NoError(t, err)
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Width)

	snap, ok := m.Snapshot()
	assert.True(t, ok)
	assert.Equal(t, body, snap)

	stats := m.Stats()
	assert.Equal(t, uint64(1), stats.Frames)
	assert.True(t, stats.Running)
	assert.Equal(t, defaultQuality, m.config.Quality)
}

func TestMJPEGHeadersBeforeFirstFrame(t *testing.T) {
	m := NewMJPEGOutput(Config{Width: 16, Height: 16})
	require.NoError(t, m.Start())
	defer m.Stop()

	srv := httptest.NewServer(m)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err, "headers arrive without any frame written")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "multipart/x-mixed-replace; boundary=frame", resp.Header.Get("Content-Type"))
	assert.Equal(t, uint64(0), m.Stats().Frames)
}

func TestMJPEGNotRunning(t *testing.T) {
	m := NewMJPEGOutput(Config{})
	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/preview.mjpeg", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
