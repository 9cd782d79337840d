package camcorder_test

import (
	"bytes"
	"context"
	"image"
	_ "image/jpeg"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bryanchriswhite/camcorder/internal/attr"
	"github.com/bryanchriswhite/camcorder/internal/camcorder"
	"github.com/bryanchriswhite/camcorder/internal/camerr"
	"github.com/bryanchriswhite/camcorder/internal/config"
	"github.com/bryanchriswhite/camcorder/internal/hal"
	"github.com/bryanchriswhite/camcorder/internal/pipeline"
	"github.com/bryanchriswhite/camcorder/internal/pipeline/memgraph"
	"github.com/bryanchriswhite/camcorder/internal/state"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type inbox struct {
	mu   sync.Mutex
	msgs []camcorder.Message
}

func (b *inbox) add(m camcorder.Message) {
	b.mu.Lock()
	b.msgs = append(b.msgs, m)
	b.mu.Unlock()
}

func (b *inbox) find(kind camcorder.MessageKind) (camcorder.Message, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, m := range b.msgs {
		if m.Kind == kind {
			return m, true
		}
	}
	return camcorder.Message{}, false
}

func (b *inbox) wait(t *testing.T, kind camcorder.MessageKind, within time.Duration) camcorder.Message {
	t.Helper()
	var msg camcorder.Message
	require.Eventually(t, func() bool {
		m, ok := b.find(kind)
		msg = m
		return ok
	}, within, 5*time.Millisecond, "waiting for %s", kind)
	return msg
}

func (b *inbox) transitions() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, m := range b.msgs {
		if m.Kind == camcorder.MessageStateChanged {
			out = append(out, m.To)
		}
	}
	return out
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

type fakeInhibitor struct {
	mu    sync.Mutex
	held  int
	taken int
}

func (f *fakeInhibitor) Inhibit(string) (io.Closer, error) {
	f.mu.Lock()
	f.held++
	f.taken++
	f.mu.Unlock()
	return closerFunc(func() error {
		f.mu.Lock()
		f.held--
		f.mu.Unlock()
		return nil
	}), nil
}

func (f *fakeInhibitor) counts() (held, taken int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.held, f.taken
}

type rig struct {
	eng       *camcorder.Engine
	backend   *memgraph.Backend
	sensor    *hal.SimSensor
	strobe    *hal.SimStrobe
	inhibitor *fakeInhibitor
	inbox     *inbox
}

type rigOptions struct {
	mode   state.Mode
	cfg    map[string]map[string]string
	graph  memgraph.Options
	sensor *hal.SimSensor
}

func newRig(t *testing.T, o rigOptions) *rig {
	t.Helper()
	if o.graph.FrameInterval == 0 {
		o.graph.FrameInterval = 10 * time.Millisecond
	}
	if o.sensor == nil {
		o.sensor = hal.NewSimSensor()
	}
	r := &rig{
		backend:   memgraph.New(o.graph),
		sensor:    o.sensor,
		strobe:    &hal.SimStrobe{},
		inhibitor: &fakeInhibitor{},
		inbox:     &inbox{},
	}
	eng, err := camcorder.New(camcorder.Options{
		Config:    config.FromMap(o.cfg),
		Backend:   r.backend,
		Sensor:    r.sensor,
		Strobe:    r.strobe,
		Inhibitor: r.inhibitor,
		Mode:      o.mode,
		Timeout:   2 * time.Second,
	})
	require.NoError(t, err)
	eng.SetMessageCallback(r.inbox.add)
	r.eng = eng
	t.Cleanup(func() {
		ctx := context.Background()
		for _, cmd := range []state.Command{state.CmdCaptureStop, state.CmdCancel, state.CmdStop, state.CmdUnrealize} {
			if _, err := r.check(cmd); err == nil {
				_ = eng.Run(ctx, cmd)
			}
		}
		_ = eng.Destroy(ctx)
	})
	return r
}

func (r *rig) check(cmd state.Command) (state.State, error) {
	return state.Next(r.eng.State(), r.eng.Mode(), cmd)
}

func (r *rig) set(t *testing.T, pairs ...attr.Pair) {
	t.Helper()
	require.NoError(t, r.eng.SetAttributes(pairs))
}

func (r *rig) step(t *testing.T, cmd state.Command, want state.State) {
	t.Helper()
	require.NoError(t, r.eng.Run(context.Background(), cmd), "%s", cmd)
	require.Equal(t, want, r.eng.State(), "after %s", cmd)
}

func TestNewRequiresBackend(t *testing.T) {
	_, err := camcorder.New(camcorder.Options{})
	assert.ErrorIs(t, err, camerr.ErrInvalidArgument)
}

func TestImageScenario(t *testing.T) {
	r := newRig(t, rigOptions{mode: state.ModeImage})
	r.set(t,
		attr.P("capture-width", 640),
		attr.P("capture-height", 480),
		attr.P("capture-count", 3),
		attr.P("strobe-mode", 1),
	)

	var mu sync.Mutex
	var shots []camcorder.Captured
	r.eng.SetCapturedCallback(func(c camcorder.Captured) {
		mu.Lock()
		shots = append(shots, c)
		mu.Unlock()
	})

	r.step(t, state.CmdRealize, state.StateReady)
	r.step(t, state.CmdStart, state.StatePrepare)
	r.step(t, state.CmdCaptureStart, state.StateCapturing)

	done := r.inbox.wait(t, camcorder.MessageCaptureDone, 3*time.Second)
	assert.Equal(t, 3, done.Count)

	mu.Lock()
	require.Len(t, shots, 3)
	ids := map[uuid.UUID]bool{}
	for i, c := range shots {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, done.Session, c.Session.String())
		assert.Equal(t, pipeline.MediaJPEG, c.Media)
		assert.False(t, ids[c.ID], "ids are unique")
		ids[c.ID] = true

		cfg, format, err := image.DecodeConfig(bytes.NewReader(c.Data))
		require.NoError(t, err)
		assert.Equal(t, "jpeg", format)
		assert.Equal(t, 640, cfg.Width)
		assert.Equal(t, 480, cfg.Height)
		assert.Nil(t, c.Tags)
	}
	mu.Unlock()
	assert.Len(t, r.strobe.Fired(), 3)

	r.step(t, state.CmdCaptureStop, state.StatePrepare)
	r.step(t, state.CmdStop, state.StateReady)
	r.step(t, state.CmdUnrealize, state.StateNull)
	require.NoError(t, r.eng.Destroy(context.Background()))

	assert.Equal(t, []string{"READY", "PREPARE", "CAPTURING", "PREPARE", "READY", "NULL"}, r.inbox.transitions())
}

func TestCaptureTags(t *testing.T) {
	r := newRig(t, rigOptions{mode: state.ModeImage})
	r.set(t,
		attr.P("capture-width", 640),
		attr.P("capture-height", 480),
		attr.P("tag-enable", 1),
		attr.P("tag-latitude", 52.5),
		attr.P("tag-image-description", "dock"),
	)
	got := make(chan camcorder.Captured, 1)
	r.eng.SetCapturedCallback(func(c camcorder.Captured) { got <- c })

	r.step(t, state.CmdRealize, state.StateReady)
	r.step(t, state.CmdStart, state.StatePrepare)
	r.step(t, state.CmdCaptureStart, state.StateCapturing)

	select {
	case c := <-got:
		require.NotNil(t, c.Tags)
		assert.Equal(t, 52.5, c.Tags.Latitude)
		assert.Equal(t, "dock", c.Tags.Description)
	case <-time.After(3 * time.Second):
		t.Fatal("no capture")
	}
}

func TestBreakContinuousShot(t *testing.T) {
	r := newRig(t, rigOptions{mode: state.ModeImage})
	r.set(t,
		attr.P("capture-width", 640),
		attr.P("capture-height", 480),
		attr.P("capture-count", 20),
		attr.P("capture-interval", 100),
	)
	first := make(chan struct{}, 20)
	r.eng.SetCapturedCallback(func(camcorder.Captured) { first <- struct{}{} })

	r.step(t, state.CmdRealize, state.StateReady)
	r.step(t, state.CmdStart, state.StatePrepare)
	r.step(t, state.CmdCaptureStart, state.StateCapturing)

	select {
	case <-first:
	case <-time.After(3 * time.Second):
		t.Fatal("no capture")
	}
	r.set(t, attr.P("capture-break-cont-shot", 1))

	done := r.inbox.wait(t, camcorder.MessageCaptureDone, 2*time.Second)
	assert.Less(t, done.Count, 20)
	assert.Positive(t, done.Count)

	r.step(t, state.CmdCaptureStop, state.StatePrepare)
	vals, err := r.eng.GetAttributes("capture-break-cont-shot")
	require.NoError(t, err)
	assert.Equal(t, 1, vals[0])

	r.step(t, state.CmdCaptureStart, state.StateCapturing)
	vals, err = r.eng.GetAttributes("capture-break-cont-shot")
	require.NoError(t, err)
	assert.Equal(t, 0, vals[0], "reset on capture start")
}

func TestVideoScenario(t *testing.T) {
	r := newRig(t, rigOptions{mode: state.ModeVideo})
	target := filepath.Join(t.TempDir(), "clip.mp4")
	r.set(t, attr.P("target-filename", target))

	var mu sync.Mutex
	frames := 0
	r.eng.SetVideoStreamCallback(func(f camcorder.Frame) {
		mu.Lock()
		frames++
		mu.Unlock()
	})
	waitFrames := func(n int) {
		mu.Lock()
		start := frames
		mu.Unlock()
		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return frames >= start+n
		}, 2*time.Second, 5*time.Millisecond)
	}

	r.step(t, state.CmdRealize, state.StateReady)
	r.step(t, state.CmdStart, state.StatePrepare)

	r.step(t, state.CmdRecord, state.StateRecording)
	held, _ := r.inhibitor.counts()
	assert.Equal(t, 1, held, "sleep inhibited while recording")
	waitFrames(5)

	r.step(t, state.CmdPause, state.StatePaused)
	waitFrames(3)
	r.step(t, state.CmdRecord, state.StateRecording)
	waitFrames(5)

	r.step(t, state.CmdCommit, state.StatePrepare)
	held, taken := r.inhibitor.counts()
	assert.Zero(t, held)
	assert.Equal(t, 1, taken, "resume keeps the same inhibitor")

	done := r.inbox.wait(t, camcorder.MessageRecordingDone, time.Second)
	assert.Equal(t, target, done.Location)
	assert.Positive(t, done.FileSize)
	assert.Positive(t, done.Elapsed)
	_, err := uuid.Parse(done.Session)
	assert.NoError(t, err)

	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.Equal(t, done.FileSize, info.Size())

	r.step(t, state.CmdStop, state.StateReady)
	r.step(t, state.CmdUnrealize, state.StateNull)
	require.NoError(t, r.eng.Destroy(context.Background()))
}

func TestAudioScenario(t *testing.T) {
	r := newRig(t, rigOptions{mode: state.ModeAudio})
	target := filepath.Join(t.TempDir(), "memo.mp4")
	r.set(t, attr.P("target-filename", target), attr.P("audio-volume", 2.5))

	r.step(t, state.CmdRealize, state.StateReady)
	g, ok := r.backend.Graph(pipeline.GraphPreview)
	require.True(t, ok)
	assert.NotContains(t, g.Nodes(), pipeline.NodeVideoSource)

	r.step(t, state.CmdStart, state.StatePrepare)
	r.step(t, state.CmdRecord, state.StateRecording)
	require.Eventually(t, func() bool {
		info, err := os.Stat(target)
		return err == nil && info.Size() > 0
	}, 2*time.Second, 5*time.Millisecond)
	r.step(t, state.CmdCommit, state.StatePrepare)

	eg, ok := r.backend.Graph(pipeline.GraphEncode)
	require.True(t, ok)
	assert.True(t, eg.Closed())

	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestIllegalCommands(t *testing.T) {
	tests := []struct {
		name string
		mode state.Mode
		path []state.Command
		cmd  state.Command
	}{
		{"record from NULL", state.ModeVideo, nil, state.CmdRecord},
		{"start from NULL", state.ModeVideo, nil, state.CmdStart},
		{"record from READY", state.ModeVideo, []state.Command{state.CmdRealize}, state.CmdRecord},
		{"unrealize from PREPARE", state.ModeVideo, []state.Command{state.CmdRealize, state.CmdStart}, state.CmdUnrealize},
		{"capture in video mode", state.ModeVideo, []state.Command{state.CmdRealize, state.CmdStart}, state.CmdCaptureStart},
		{"record in image mode", state.ModeImage, []state.Command{state.CmdRealize, state.CmdStart}, state.CmdRecord},
		{"pause from PREPARE", state.ModeVideo, []state.Command{state.CmdRealize, state.CmdStart}, state.CmdPause},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(t, rigOptions{mode: tt.mode})
			for _, c := range tt.path {
				require.NoError(t, r.eng.Run(context.Background(), c))
			}
			before := r.eng.State()
			err := r.eng.Run(context.Background(), tt.cmd)
			assert.ErrorIs(t, err, camerr.ErrInvalidState)
			assert.Equal(t, before, r.eng.State())
		})
	}
}

func TestRecordingFreezesPrepareOnlyAttributes(t *testing.T) {
	r := newRig(t, rigOptions{mode: state.ModeVideo})
	r.set(t, attr.P("target-filename", filepath.Join(t.TempDir(), "a.mp4")))
	r.step(t, state.CmdRealize, state.StateReady)
	r.step(t, state.CmdStart, state.StatePrepare)
	r.step(t, state.CmdRecord, state.StateRecording)

	for _, name := range []string{"camera-width", "video-encoder", "target-filename", "filter-flip"} {
		before, err := r.eng.GetAttributes(name)
		require.NoError(t, err)
		info, err := r.eng.AttributeInfo(name)
		require.NoError(t, err)

		err = r.eng.SetAttributes([]attr.Pair{attr.P(name, info.Default)})
		assert.ErrorIs(t, err, camerr.ErrInvalidState, name)
		assert.Equal(t, name, camerr.FailingAttribute(err))

		after, err := r.eng.GetAttributes(name)
		require.NoError(t, err)
		assert.Equal(t, before, after, name)
	}

	// live attributes stay writable
	r.set(t, attr.P("video-encoder-bitrate", 4000), attr.P("audio-disable", 1))
}

func TestSensorControls(t *testing.T) {
	sensor := hal.NewSimSensor(hal.ControlOpticalZoom)
	r := newRig(t, rigOptions{mode: state.ModeImage, sensor: sensor})

	r.set(t, attr.P("filter-wb", 2))
	assert.Empty(t, sensor.Writes(), "deferred until realize")

	r.step(t, state.CmdRealize, state.StateReady)
	v, err := sensor.Get(hal.ControlWhiteBalance)
	require.NoError(t, err)
	assert.Equal(t, 8, v, "abstract index 2 maps to native 8")

	r.set(t, attr.P("filter-wb", 1), attr.P("camera-exposure-value", 6))
	v, _ = sensor.Get(hal.ControlWhiteBalance)
	assert.Equal(t, 6, v)
	v, _ = sensor.Get(hal.ControlExposureValue)
	assert.Equal(t, 6, v)

	err = r.eng.SetAttributes([]attr.Pair{attr.P("camera-optical-zoom", 0)})
	assert.ErrorIs(t, err, camerr.ErrNotSupported)
	assert.Equal(t, "camera-optical-zoom", camerr.FailingAttribute(err))
}

func TestLiveResolutionChange(t *testing.T) {
	r := newRig(t, rigOptions{mode: state.ModeImage})
	var mu sync.Mutex
	var widths []int
	r.eng.SetVideoStreamCallback(func(f camcorder.Frame) {
		mu.Lock()
		widths = append(widths, f.Width)
		mu.Unlock()
	})
	lastWidth := func() int {
		mu.Lock()
		defer mu.Unlock()
		if len(widths) == 0 {
			return 0
		}
		return widths[len(widths)-1]
	}

	r.step(t, state.CmdRealize, state.StateReady)
	r.step(t, state.CmdStart, state.StatePrepare)
	require.Eventually(t, func() bool { return lastWidth() == 640 }, 2*time.Second, 5*time.Millisecond)

	r.set(t, attr.P("camera-width", 320), attr.P("camera-height", 240))
	assert.Equal(t, state.StatePrepare, r.eng.State())
	require.Eventually(t, func() bool { return lastWidth() == 320 }, 2*time.Second, 5*time.Millisecond)

	err := r.eng.SetAttributes([]attr.Pair{attr.P("camera-width", 1920)})
	assert.ErrorIs(t, err, camerr.ErrInvalidArgument)
	assert.Equal(t, "camera-height", camerr.FailingAttribute(err), "names the member that was not supplied")
	vals, err := r.eng.GetAttributes("camera-width")
	require.NoError(t, err)
	assert.Equal(t, 320, vals[0])
}

func TestLiveResolutionAndFramerate(t *testing.T) {
	r := newRig(t, rigOptions{mode: state.ModeVideo})
	r.step(t, state.CmdRealize, state.StateReady)
	r.step(t, state.CmdStart, state.StatePrepare)

	filterCaps := func() pipeline.Caps {
		g, ok := r.backend.Graph(pipeline.GraphPreview)
		require.True(t, ok)
		n, ok := g.Node(pipeline.NodeVideoFilter)
		require.True(t, ok)
		v, err := n.Property(pipeline.PropCaps)
		require.NoError(t, err)
		caps, ok := v.(pipeline.Caps)
		require.True(t, ok, "caps property holds %T", v)
		return caps
	}
	assert.Equal(t, 30, filterCaps().FPS)

	tests := []struct {
		name  string
		pairs []attr.Pair
		want  pipeline.Caps
	}{
		{"size and rate together", []attr.Pair{attr.P("camera-width", 320), attr.P("camera-height", 240), attr.P("camera-fps", 15)}, pipeline.Caps{Width: 320, Height: 240, FPS: 15}},
		{"rate first", []attr.Pair{attr.P("camera-fps", 24), attr.P("camera-width", 640), attr.P("camera-height", 480)}, pipeline.Caps{Width: 640, Height: 480, FPS: 24}},
		{"rate alone", []attr.Pair{attr.P("camera-fps", 30)}, pipeline.Caps{Width: 640, Height: 480, FPS: 30}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r.set(t, tt.pairs...)
			caps := filterCaps()
			assert.Equal(t, tt.want.Width, caps.Width)
			assert.Equal(t, tt.want.Height, caps.Height)
			assert.Equal(t, tt.want.FPS, caps.FPS)

			vals, err := r.eng.GetAttributes("camera-fps")
			require.NoError(t, err)
			assert.Equal(t, tt.want.FPS, vals[0])
		})
	}
}

func TestSoftLimits(t *testing.T) {
	tests := []struct {
		name  string
		cfg   map[string]map[string]string
		graph memgraph.Options
		attrs []attr.Pair
		want  camcorder.MessageKind
	}{
		{
			name:  "time limit",
			attrs: []attr.Pair{attr.P("target-time-limit", 1)},
			want:  camcorder.MessageTimeLimitReached,
		},
		{
			name:  "max size",
			cfg:   map[string]map[string]string{config.CategoryRecord: {"StatusInterval": "20"}},
			attrs: []attr.Pair{attr.P("target-max-size", 1)},
			want:  camcorder.MessageMaxSizeReached,
		},
		{
			name:  "disk full",
			graph: memgraph.Options{DiskLimit: 100_000},
			want:  camcorder.MessageStorageExhausted,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(t, rigOptions{mode: state.ModeVideo, cfg: tt.cfg, graph: tt.graph})
			target := filepath.Join(t.TempDir(), "clip.mp4")
			r.set(t, append(tt.attrs, attr.P("target-filename", target))...)

			r.step(t, state.CmdRealize, state.StateReady)
			r.step(t, state.CmdStart, state.StatePrepare)
			r.step(t, state.CmdRecord, state.StateRecording)

			msg := r.inbox.wait(t, tt.want, 3*time.Second)
			assert.True(t, msg.Kind.Soft())
			assert.Equal(t, state.StateRecording, r.eng.State(), "soft limits wait for commit")

			r.step(t, state.CmdCommit, state.StatePrepare)
			_, err := os.Stat(target)
			assert.NoError(t, err)
		})
	}
}

func TestCancelRemovesFile(t *testing.T) {
	r := newRig(t, rigOptions{mode: state.ModeVideo})
	target := filepath.Join(t.TempDir(), "discard.mp4")
	r.set(t, attr.P("target-filename", target))

	r.step(t, state.CmdRealize, state.StateReady)
	r.step(t, state.CmdStart, state.StatePrepare)
	r.step(t, state.CmdRecord, state.StateRecording)
	require.Eventually(t, func() bool {
		_, err := os.Stat(target)
		return err == nil
	}, 2*time.Second, 5*time.Millisecond)
	r.step(t, state.CmdPause, state.StatePaused)

	r.step(t, state.CmdCancel, state.StatePrepare)
	_, err := os.Stat(target)
	assert.True(t, os.IsNotExist(err))
	held, _ := r.inhibitor.counts()
	assert.Zero(t, held)

	_, found := r.inbox.find(camcorder.MessageRecordingDone)
	assert.False(t, found)
}

func TestPipelineErrorIsDelivered(t *testing.T) {
	r := newRig(t, rigOptions{mode: state.ModeImage})
	r.step(t, state.CmdRealize, state.StateReady)

	g, ok := r.backend.Graph(pipeline.GraphPreview)
	require.True(t, ok)
	g.Post(pipeline.Message{Kind: pipeline.MessageError, Source: pipeline.NodeVideoSource, Err: assert.AnError})

	msg := r.inbox.wait(t, camcorder.MessageError, time.Second)
	assert.Equal(t, pipeline.NodeVideoSource, msg.Source)
	assert.ErrorIs(t, msg.Err, assert.AnError)
	assert.False(t, msg.Kind.Soft())
	assert.Equal(t, state.StateReady, r.eng.State())
}

func TestRealizeTimeoutLeavesStateUnchanged(t *testing.T) {
	r := newRig(t, rigOptions{mode: state.ModeVideo})
	r.backend.StallState(pipeline.NativeReady)

	err := r.eng.Realize(context.Background())
	require.ErrorIs(t, err, camerr.ErrResponseTimeout)
	assert.Equal(t, state.StateNull, r.eng.State())
	g, ok := r.backend.Graph(pipeline.GraphPreview)
	require.True(t, ok)
	assert.True(t, g.Closed(), "partial graph torn down")

	r.backend.Reset()
	r.step(t, state.CmdRealize, state.StateReady)
}

func TestDestroy(t *testing.T) {
	r := newRig(t, rigOptions{mode: state.ModeImage})
	r.step(t, state.CmdRealize, state.StateReady)

	err := r.eng.Destroy(context.Background())
	assert.ErrorIs(t, err, camerr.ErrInvalidState)

	r.step(t, state.CmdUnrealize, state.StateNull)
	require.NoError(t, r.eng.Destroy(context.Background()))

	_, err = r.eng.GetAttributes("mode")
	assert.ErrorIs(t, err, camerr.ErrNotInitialized)
	assert.ErrorIs(t, r.eng.Realize(context.Background()), camerr.ErrNotInitialized)
	assert.ErrorIs(t, r.eng.Destroy(context.Background()), camerr.ErrNotInitialized)
}

func TestFaceDetection(t *testing.T) {
	sensor := hal.NewSimSensor()
	r := newRig(t, rigOptions{mode: state.ModeImage, sensor: sensor})
	r.step(t, state.CmdRealize, state.StateReady)
	r.set(t, attr.P("detect-mode", 1))
	sensor.SetFaces(2)
	r.step(t, state.CmdStart, state.StatePrepare)

	msg := r.inbox.wait(t, camcorder.MessageFacesDetected, 2*time.Second)
	assert.Equal(t, 2, msg.Faces)
	vals, err := r.eng.GetAttributes("detect-number")
	require.NoError(t, err)
	assert.Equal(t, 2, vals[0])

	r.set(t, attr.P("detect-mode", 0))
	vals, err = r.eng.GetAttributes("detect-number")
	require.NoError(t, err)
	assert.Equal(t, 0, vals[0])

	err = r.eng.SetAttributes([]attr.Pair{attr.P("detect-number", 3)})
	assert.ErrorIs(t, err, camerr.ErrReadOnly)
}

func TestMessageKindJSON(t *testing.T) {
	b, err := camcorder.MessageRecordingStatus.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "recording-status", string(b))
	assert.Equal(t, "message(200)", camcorder.MessageKind(200).String())
}
