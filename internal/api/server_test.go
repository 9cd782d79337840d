package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bryanchriswhite/camcorder/internal/camcorder"
	"github.com/bryanchriswhite/camcorder/internal/camerr"
	"github.com/bryanchriswhite/camcorder/internal/pipeline/memgraph"
	"github.com/bryanchriswhite/camcorder/internal/state"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, *camcorder.Engine, *Hub) {
	t.Helper()
	eng, err := camcorder.New(camcorder.Options{
		Backend: memgraph.New(memgraph.Options{FrameInterval: 10 * time.Millisecond}),
		Mode:    state.ModeVideo,
		Timeout: 2 * time.Second,
	})
	require.NoError(t, err)

	hub := NewHub()
	eng.SetMessageCallback(hub.Publish)
	srv := httptest.NewServer(NewServer(Options{Device: eng, Hub: hub, Version: "test"}).Handler())
	t.Cleanup(func() {
		srv.Close()
		hub.Close()
		ctx := context.Background()
		for i := 0; i < 4 && eng.State() != state.StateNull; i++ {
			switch eng.State() {
			case state.StatePrepare:
				_ = eng.Stop(ctx)
			case state.StateReady:
				_ = eng.Unrealize(ctx)
			default:
				_ = eng.Cancel(ctx)
			}
		}
		_ = eng.Destroy(ctx)
	})
	return srv, eng, hub
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestCommands(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := do(t, http.MethodGet, srv.URL+"/api/state", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, StateResponse{State: "NULL", Mode: "video"}, decode[StateResponse](t, resp))

	tests := []struct {
		command    string
		wantStatus int
		wantState  string
	}{
		{"start", http.StatusConflict, ""},
		{"realize", http.StatusOK, "READY"},
		{"start", http.StatusOK, "PREPARE"},
		{"capture-start", http.StatusConflict, ""},
		{"fly", http.StatusBadRequest, ""},
		{"stop", http.StatusOK, "READY"},
	}
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			resp := do(t, http.MethodPost, srv.URL+"/api/commands/"+tt.command, "")
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantState != "" {
				assert.Equal(t, tt.wantState, decode[StateResponse](t, resp).State)
			} else {
				assert.NotEmpty(t, decode[ErrorResponse](t, resp).Error)
			}
		})
	}
}

func TestAttributes(t *testing.T) {
	srv, eng, _ := newTestServer(t)

	resp := do(t, http.MethodPut, srv.URL+"/api/attributes", `[{"name":"audio-volume","value":2},{"name":"video-encoder-bitrate","value":4000}]`)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/api/attributes?name=audio-volume&name=video-encoder-bitrate", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	vals := decode[[]AttributeValue](t, resp)
	require.Len(t, vals, 2)
	assert.Equal(t, "audio-volume", vals[0].Name)
	assert.EqualValues(t, 2, vals[0].Value)
	assert.EqualValues(t, 4000, vals[1].Value)

	resp = do(t, http.MethodGet, srv.URL+"/api/attributes", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]AttributeValue](t, resp), len(eng.AttributeNames()))

	resp = do(t, http.MethodGet, srv.URL+"/api/attributes/camera-width", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	one := decode[AttributeValue](t, resp)
	require.NotNil(t, one.Info)
	assert.Equal(t, "camera-width", one.Info.Name)

	errs := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantAttr   string
	}{
		{"unknown attribute", http.MethodGet, "/api/attributes/nope", "", http.StatusBadRequest, "nope"},
		{"out of range", http.MethodPut, "/api/attributes", `[{"name":"audio-volume","value":99}]`, http.StatusBadRequest, "audio-volume"},
		{"read-only", http.MethodPut, "/api/attributes", `[{"name":"model-name","value":"x"}]`, http.StatusForbidden, "model-name"},
		{"bad body", http.MethodPut, "/api/attributes", `{`, http.StatusBadRequest, ""},
	}
	for _, tt := range errs {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, tt.method, srv.URL+tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantAttr, decode[ErrorResponse](t, resp).Attribute)
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{camerr.Attr("a", fmt.Errorf("x: %w", camerr.ErrInvalidState)), http.StatusConflict},
		{camerr.ErrCommandBusy, http.StatusConflict},
		{camerr.ErrNotSupported, http.StatusNotImplemented},
		{camerr.ErrResponseTimeout, http.StatusGatewayTimeout},
		{camerr.ErrStorageExhausted, http.StatusInsufficientStorage},
		{camerr.ErrEncoderContainerMismatch, http.StatusUnprocessableEntity},
		{camerr.ErrNotInitialized, http.StatusPreconditionFailed},
		{camerr.ErrResourceCreation, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestMessagesWebsocket(t *testing.T) {
	srv, _, _ := newTestServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/messages"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var hello StateResponse
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "NULL", hello.State)

	resp := do(t, http.MethodPost, srv.URL+"/api/commands/realize", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg struct {
		Kind    string `json:"kind"`
		Command string `json:"command"`
		To      string `json:"to"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "state-changed", msg.Kind)
	assert.Equal(t, "realize", msg.Command)
	assert.Equal(t, "READY", msg.To)
}

func TestHealthAndPreviewRoutes(t *testing.T) {
	preview := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	})
	eng, err := camcorder.New(camcorder.Options{Backend: memgraph.New(memgraph.Options{})})
	require.NoError(t, err)
	defer eng.Destroy(context.Background())

	h := NewServer(Options{Device: eng, Preview: preview, Version: "1.2.3"}).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&health))
	assert.Equal(t, "1.2.3", health["version"])
	assert.Equal(t, "NULL", health["state"])

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/preview.mjpeg", nil))
	assert.Equal(t, "multipart/x-mixed-replace; boundary=frame", rec.Header().Get("Content-Type"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/state", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHub(t *testing.T) {
	h := NewHub()
	a, b := h.Subscribe(), h.Subscribe()
	h.Publish(camcorder.Message{Kind: camcorder.MessageCaptureDone, Count: 2})

	assert.Equal(t, 2, (<-a).Count)
	assert.Equal(t, 2, (<-b).Count)

	h.Unsubscribe(a)
	_, ok := <-a
	assert.False(t, ok)

	h.Close()
	_, ok = <-b
	assert.False(t, ok)
	_, ok = <-h.Subscribe()
	assert.False(t, ok, "subscribing after close yields a closed channel")
}
