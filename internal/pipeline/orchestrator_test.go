package pipeline_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bryanchriswhite/camcorder/internal/attr"
	"github.com/bryanchriswhite/camcorder/internal/camerr"
	"github.com/bryanchriswhite/camcorder/internal/capability"
	"github.com/bryanchriswhite/camcorder/internal/config"
	"github.com/bryanchriswhite/camcorder/internal/pipeline"
	"github.com/bryanchriswhite/camcorder/internal/pipeline/memgraph"
	"github.com/bryanchriswhite/camcorder/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	backend *memgraph.Backend
	machine *state.Machine
	attrs   *attr.Store
	orch    *pipeline.Orchestrator
}

var allCodecs = map[string]map[string]string{
	config.CategoryCapability: {
		"AudioCodecs": "0, 1, 2, 3, 4, 5 || 2",
		"VideoCodecs": "0, 1, 2, 3, 4, 5, 6 || 1",
		"Containers":  "0, 1, 2, 3, 4, 5, 6 || 1",
	},
}

func newHarness(t *testing.T, cfg map[string]map[string]string, opts memgraph.Options) *harness {
	t.Helper()
	return newHarnessWith(t, capability.New(config.FromMap(cfg)), opts)
}

func newHarnessWith(t *testing.T, tr *capability.Translator, opts memgraph.Options) *harness {
	t.Helper()
	machine := state.New(func() state.Mode { return state.ModeVideo })
	attrs, err := attr.New(tr, machine)
	require.NoError(t, err)
	backend := memgraph.New(opts)
	orch, err := pipeline.New(pipeline.Options{
		Backend:    backend,
		Translator: tr,
		Attributes: attrs,
		State:      machine,
		Timeout:    300 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = orch.Close(context.Background()) })
	return &harness{backend: backend, machine: machine, attrs: attrs, orch: orch}
}

func (h *harness) advance(t *testing.T, cmds ...state.Command) {
	t.Helper()
	for _, c := range cmds {
		require.NoError(t, h.machine.Run(context.Background(), c, nil))
	}
}

func (h *harness) graph(t *testing.T, name string) *memgraph.Graph {
	t.Helper()
	g, ok := h.backend.Graph(name)
	require.True(t, ok, "graph %s", name)
	return g
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := pipeline.New(pipeline.Options{})
	assert.ErrorIs(t, err, camerr.ErrInvalidArgument)
}

func TestBuildPreviewGraph(t *testing.T) {
	video := []string{
		pipeline.NodeVideoSource, pipeline.NodeVideoFilter, pipeline.NodeVideoTee, pipeline.NodePreviewQueue,
		pipeline.NodeFormatBridge, pipeline.NodeDisplaySink, pipeline.NodeBridgeQueue, pipeline.NodeVideoSink,
	}
	audio := []string{
		pipeline.NodeAudioSource, pipeline.NodeAudioFilter, pipeline.NodeAudioVolume, pipeline.NodeAudioQueue, pipeline.NodeAudioSink,
	}

	tests := []struct {
		name string
		mode state.Mode
		want []string
	}{
		{"image", state.ModeImage, video},
		{"video", state.ModeVideo, append(append([]string{}, video...), audio...)},
		{"audio", state.ModeAudio, audio},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil, memgraph.Options{})
			require.NoError(t, h.orch.BuildPreviewGraph(tt.mode))

			g := h.graph(t, pipeline.GraphPreview)
			assert.Equal(t, tt.want, g.Nodes())
			assert.True(t, h.orch.HasPreview())
			assert.Equal(t, pipeline.ReconfIdle, h.orch.ReconfigState())

			err := h.orch.BuildPreviewGraph(tt.mode)
			assert.ErrorIs(t, err, camerr.ErrInvalidState)
		})
	}
}

func TestPreviewGraphWiring(t *testing.T) {
	h := newHarness(t, nil, memgraph.Options{})
	require.NoError(t, h.orch.BuildPreviewGraph(state.ModeVideo))
	g := h.graph(t, pipeline.GraphPreview)

	links := g.Links()
	assert.Contains(t, links, [2]string{pipeline.NodeVideoTee, pipeline.NodePreviewQueue})
	assert.Contains(t, links, [2]string{pipeline.NodeVideoTee, pipeline.NodeBridgeQueue})
	assert.Contains(t, links, [2]string{pipeline.NodeFormatBridge, pipeline.NodeDisplaySink})
	assert.Contains(t, links, [2]string{pipeline.NodeAudioVolume, pipeline.NodeAudioQueue})

	filter, ok := g.Lookup(pipeline.NodeVideoFilter)
	require.True(t, ok)
	assert.Equal(t, pipeline.Caps{Media: pipeline.MediaRawVideo, Format: "I420", Width: 640, Height: 480, FPS: 30}, filter.Prop(pipeline.PropCaps))

	src, ok := g.Lookup(pipeline.NodeVideoSource)
	require.True(t, ok)
	assert.Equal(t, "v4l2src", src.Factory())
	assert.Equal(t, "/dev/video0", src.Prop("device"))
	assert.Equal(t, 1, src.Prop("do-timestamp"))

	volume, ok := g.Lookup(pipeline.NodeAudioVolume)
	require.True(t, ok)
	assert.Equal(t, 1.0, volume.Prop(pipeline.PropVolume))
	assert.Equal(t, false, volume.Prop(pipeline.PropMute))
}

func TestPreviewWithoutFormatBridge(t *testing.T) {
	h := newHarness(t, map[string]map[string]string{
		config.CategoryVideoOutput: {"UseFormatBridge": "0"},
	}, memgraph.Options{})
	require.NoError(t, h.orch.BuildPreviewGraph(state.ModeImage))

	g := h.graph(t, pipeline.GraphPreview)
	assert.NotContains(t, g.Nodes(), pipeline.NodeFormatBridge)
	assert.Contains(t, g.Links(), [2]string{pipeline.NodePreviewQueue, pipeline.NodeDisplaySink})
}

func TestBuildPreviewUnwindsOnFailure(t *testing.T) {
	tests := []struct {
		name   string
		inject func(b *memgraph.Backend)
		want   error
	}{
		{"factory", func(b *memgraph.Backend) { b.FailFactory("tee") }, camerr.ErrResourceCreation},
		{"late factory", func(b *memgraph.Backend) { b.FailFactory("volume") }, camerr.ErrResourceCreation},
		{"link", func(b *memgraph.Backend) { b.FailLink(pipeline.NodeVideoTee, pipeline.NodeBridgeQueue) }, camerr.ErrGraphLink},
		{"property", func(b *memgraph.Backend) { b.FailProperty(pipeline.NodeVideoFilter, pipeline.PropCaps) }, camerr.ErrResourceCreation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil, memgraph.Options{})
			tt.inject(h.backend)

			err := h.orch.BuildPreviewGraph(state.ModeVideo)
			require.ErrorIs(t, err, tt.want)

			g := h.graph(t, pipeline.GraphPreview)
			assert.Empty(t, g.Nodes())
			assert.Empty(t, g.Links())
			assert.True(t, g.Closed())
			assert.False(t, h.orch.HasPreview())

			h.backend.Reset()
			require.NoError(t, h.orch.BuildPreviewGraph(state.ModeVideo))
		})
	}
}

func TestSetPreviewState(t *testing.T) {
	t.Run("confirmed", func(t *testing.T) {
		h := newHarness(t, nil, memgraph.Options{ConfirmDelay: 10 * time.Millisecond})
		require.NoError(t, h.orch.BuildPreviewGraph(state.ModeImage))

		require.NoError(t, h.orch.SetPreviewState(context.Background(), pipeline.NativeReady))
		assert.Equal(t, pipeline.NativeReady, h.orch.PreviewState())
		assert.Equal(t, pipeline.ReconfIdle, h.orch.ReconfigState())

		require.NoError(t, h.orch.SetPreviewState(context.Background(), pipeline.NativePlaying))
		assert.Equal(t, pipeline.NativePlaying, h.orch.PreviewState())
		assert.Equal(t, pipeline.ReconfRunning, h.orch.ReconfigState())

		require.NoError(t, h.orch.SetPreviewState(context.Background(), pipeline.NativeReady))
		assert.Equal(t, pipeline.ReconfIdle, h.orch.ReconfigState())
	})

	t.Run("not built", func(t *testing.T) {
		h := newHarness(t, nil, memgraph.Options{})
		err := h.orch.SetPreviewState(context.Background(), pipeline.NativeReady)
		assert.ErrorIs(t, err, camerr.ErrNotInitialized)
	})

	failures := []struct {
		name   string
		inject func(b *memgraph.Backend)
		want   error
	}{
		{"stalled", func(b *memgraph.Backend) { b.StallState(pipeline.NativePlaying) }, camerr.ErrResponseTimeout},
		{"rejected", func(b *memgraph.Backend) { b.FailState(pipeline.NativePlaying) }, camerr.ErrResourceCreation},
		{"error message", func(b *memgraph.Backend) { b.ErrorOnState(pipeline.NativePlaying) }, camerr.ErrResourceCreation},
	}
	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil, memgraph.Options{})
			require.NoError(t, h.orch.BuildPreviewGraph(state.ModeImage))
			tt.inject(h.backend)

			err := h.orch.SetPreviewState(context.Background(), pipeline.NativePlaying)
			require.ErrorIs(t, err, tt.want)
			assert.NotEqual(t, pipeline.NativePlaying, h.orch.PreviewState())
			assert.Equal(t, pipeline.ReconfIdle, h.orch.ReconfigState())

			h.backend.Reset()
			require.NoError(t, h.orch.SetPreviewState(context.Background(), pipeline.NativePlaying))
		})
	}
}

func TestMessagesForwarded(t *testing.T) {
	h := newHarness(t, nil, memgraph.Options{})
	got := make(chan pipeline.Message, 64)
	h.orch.SetMessageHandler(func(m pipeline.Message) { got <- m })

	require.NoError(t, h.orch.BuildPreviewGraph(state.ModeImage))
	require.NoError(t, h.orch.SetPreviewState(context.Background(), pipeline.NativeReady))
	h.graph(t, pipeline.GraphPreview).Post(pipeline.Message{Kind: pipeline.MessageWarning, Source: pipeline.NodeVideoSource})

	deadline := time.After(time.Second)
	var kinds []pipeline.MessageKind
	for len(kinds) < 2 {
		select {
		case m := <-got:
			assert.Equal(t, pipeline.GraphPreview, m.Graph)
			kinds = append(kinds, m.Kind)
		case <-deadline:
			t.Fatalf("messages not forwarded, got %v", kinds)
		}
	}
	assert.Equal(t, []pipeline.MessageKind{pipeline.MessageStateChanged, pipeline.MessageWarning}, kinds)
}

func TestEncodeCompatibilityMatrix(t *testing.T) {
	target := filepath.Join(t.TempDir(), "out")

	for vc := capability.VideoCodecH263; vc <= capability.VideoCodecVP9; vc++ {
		for ct := capability.Container3GP; ct <= capability.ContainerAMR; ct++ {
			t.Run("video "+vc.String()+" in "+ct.String(), func(t *testing.T) {
				h := newHarness(t, allCodecs, memgraph.Options{})
				require.NoError(t, h.attrs.Set([]attr.Pair{
					attr.P("video-encoder", int(vc)),
					attr.P("file-format", int(ct)),
					attr.P("audio-disable", 1),
					attr.P("target-filename", target+ct.Extension()),
				}))
				before := len(h.backend.Created())

				eg, err := h.orch.BuildEncodeGraph(pipeline.ProfileVideo)
				if !capability.DefaultMatrix().IsVideoCompatible(vc, ct) {
					require.ErrorIs(t, err, camerr.ErrEncoderContainerMismatch)
					assert.Equal(t, "video-encoder", camerr.FailingAttribute(err))
					assert.Len(t, h.backend.Created(), before, "no node may exist before the check")
					return
				}
				require.NoError(t, err)
				assert.Equal(t, []string{pipeline.RoleVideo}, eg.Roles())
				g := h.graph(t, pipeline.GraphEncode)
				assert.Contains(t, g.Nodes(), pipeline.NodeVideoEncoder)
				assert.Contains(t, g.Nodes(), pipeline.NodeMux)
				require.NoError(t, h.orch.TeardownEncode(context.Background()))
			})
		}
	}

	for ac := capability.AudioCodecAMR; ac <= capability.AudioCodecOpus; ac++ {
		for ct := capability.Container3GP; ct <= capability.ContainerAMR; ct++ {
			t.Run("audio "+ac.String()+" in "+ct.String(), func(t *testing.T) {
				h := newHarness(t, allCodecs, memgraph.Options{})
				require.NoError(t, h.attrs.Set([]attr.Pair{
					attr.P("audio-encoder", int(ac)),
					attr.P("file-format", int(ct)),
					attr.P("target-filename", target+ct.Extension()),
				}))
				before := len(h.backend.Created())

				eg, err := h.orch.BuildEncodeGraph(pipeline.ProfileAudio)
				if !capability.DefaultMatrix().IsAudioCompatible(ac, ct) {
					require.ErrorIs(t, err, camerr.ErrEncoderContainerMismatch)
					assert.Len(t, h.backend.Created(), before)
					return
				}
				require.NoError(t, err)
				assert.Equal(t, []string{pipeline.RoleAudio}, eg.Roles())
			})
		}
	}
}

func TestEncodeInjectedMatrix(t *testing.T) {
	target := filepath.Join(t.TempDir(), "out.mp4")
	m := capability.DefaultMatrix().WithVideo(capability.VideoCodecH264, capability.ContainerMP4, false)
	h := newHarnessWith(t, capability.NewWithMatrix(config.FromMap(allCodecs), m), memgraph.Options{})
	require.NoError(t, h.attrs.Set([]attr.Pair{
		attr.P("video-encoder", int(capability.VideoCodecH264)),
		attr.P("file-format", int(capability.ContainerMP4)),
		attr.P("audio-disable", 1),
		attr.P("target-filename", target),
	}))

	_, err := h.orch.BuildEncodeGraph(pipeline.ProfileVideo)
	require.ErrorIs(t, err, camerr.ErrEncoderContainerMismatch)
	assert.Equal(t, "video-encoder", camerr.FailingAttribute(err))
	assert.True(t, capability.DefaultMatrix().IsVideoCompatible(capability.VideoCodecH264, capability.ContainerMP4), "stock table untouched")
}

func TestEncodeGraphRoles(t *testing.T) {
	dir := t.TempDir()

	t.Run("video with audio", func(t *testing.T) {
		h := newHarness(t, nil, memgraph.Options{})
		require.NoError(t, h.attrs.Set([]attr.Pair{attr.P("target-filename", filepath.Join(dir, "a.mp4"))}))
		eg, err := h.orch.BuildEncodeGraph(pipeline.ProfileVideo)
		require.NoError(t, err)
		assert.Equal(t, []string{pipeline.RoleAudio, pipeline.RoleVideo}, eg.Roles())
		assert.ErrorIs(t, eg.OnOutput(func(pipeline.Sample) {}), camerr.ErrNotSupported)

		enc, ok := h.graph(t, pipeline.GraphEncode).Lookup(pipeline.NodeVideoEncoder)
		require.True(t, ok)
		assert.Equal(t, "x264enc", enc.Factory())
		assert.Equal(t, 3000, enc.Prop("bitrate"))
		assert.Equal(t, 4, enc.Prop("tune"))

		_, err = h.orch.BuildEncodeGraph(pipeline.ProfileVideo)
		assert.ErrorIs(t, err, camerr.ErrInvalidState)
	})

	t.Run("image", func(t *testing.T) {
		h := newHarness(t, nil, memgraph.Options{})
		eg, err := h.orch.BuildEncodeGraph(pipeline.ProfileImage)
		require.NoError(t, err)
		assert.Equal(t, []string{pipeline.RoleImage}, eg.Roles())
		assert.NoError(t, eg.OnOutput(func(pipeline.Sample) {}))

		caps, ok := h.graph(t, pipeline.GraphEncode).Lookup(pipeline.NodeImageCaps)
		require.True(t, ok)
		assert.Equal(t, pipeline.Caps{Media: pipeline.MediaRawVideo, Width: 1920, Height: 1080}, caps.Prop(pipeline.PropCaps))
	})

	t.Run("no target file", func(t *testing.T) {
		h := newHarness(t, nil, memgraph.Options{})
		_, err := h.orch.BuildEncodeGraph(pipeline.ProfileAudio)
		assert.ErrorIs(t, err, camerr.ErrInvalidArgument)
		assert.Equal(t, "target-filename", camerr.FailingAttribute(err))
	})

	t.Run("pcm has no bitrate", func(t *testing.T) {
		h := newHarness(t, allCodecs, memgraph.Options{})
		require.NoError(t, h.attrs.Set([]attr.Pair{
			attr.P("audio-encoder", int(capability.AudioCodecPCM)),
			attr.P("file-format", int(capability.ContainerWAV)),
			attr.P("target-filename", filepath.Join(dir, "a.wav")),
		}))
		_, err := h.orch.BuildEncodeGraph(pipeline.ProfileAudio)
		require.NoError(t, err)
		enc, ok := h.graph(t, pipeline.GraphEncode).Lookup(pipeline.NodeAudioEncoder)
		require.True(t, ok)
		assert.Nil(t, enc.Prop("bitrate"))
	})
}

func TestRecordToFile(t *testing.T) {
	h := newHarness(t, nil, memgraph.Options{FrameInterval: 5 * time.Millisecond})
	target := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, h.attrs.Set([]attr.Pair{attr.P("target-filename", target)}))

	ctx := context.Background()
	require.NoError(t, h.orch.BuildPreviewGraph(state.ModeVideo))
	eg, err := h.orch.BuildEncodeGraph(pipeline.ProfileVideo)
	require.NoError(t, err)
	require.NoError(t, h.orch.SetEncodeState(ctx, pipeline.NativePlaying))

	videoPort, _ := eg.Port(pipeline.RoleVideo)
	audioPort, _ := eg.Port(pipeline.RoleAudio)
	var mu sync.Mutex
	frames := 0
	h.orch.OnVideoSample(func(s pipeline.Sample) {
		mu.Lock()
		frames++
		mu.Unlock()
		_ = videoPort.Push(s)
	})
	h.orch.OnAudioSample(func(s pipeline.Sample) { _ = audioPort.Push(s) })

	require.NoError(t, h.orch.SetPreviewState(ctx, pipeline.NativePlaying))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return frames >= 5
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, h.orch.SetPreviewState(ctx, pipeline.NativeReady))
	require.NoError(t, videoPort.EndOfStream())
	require.NoError(t, audioPort.EndOfStream())
	require.NoError(t, h.orch.WaitEncodeEOS(ctx))
	require.NoError(t, h.orch.TeardownEncode(ctx))

	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestReconfigureResolution(t *testing.T) {
	ctx := context.Background()

	t.Run("illegal in null", func(t *testing.T) {
		h := newHarness(t, nil, memgraph.Options{})
		err := h.orch.ReconfigureResolution(ctx, 1280, 720)
		assert.ErrorIs(t, err, camerr.ErrInvalidState)
	})

	t.Run("idle graph caches geometry", func(t *testing.T) {
		h := newHarness(t, nil, memgraph.Options{})
		h.advance(t, state.CmdRealize)
		require.NoError(t, h.orch.BuildPreviewGraph(state.ModeImage))
		require.NoError(t, h.orch.SetPreviewState(ctx, pipeline.NativeReady))

		var seen []pipeline.ReconfigState
		h.orch.OnReconfigState(func(_, to pipeline.ReconfigState) { seen = append(seen, to) })

		require.NoError(t, h.orch.ReconfigureResolution(ctx, 1280, 720))
		assert.Equal(t, pipeline.Geometry{Width: 1280, Height: 720}, h.orch.Geometry())
		assert.Empty(t, seen)
		assert.Equal(t, pipeline.NativeReady, h.orch.PreviewState())

		filter, _ := h.graph(t, pipeline.GraphPreview).Lookup(pipeline.NodeVideoFilter)
		caps := filter.Prop(pipeline.PropCaps).(pipeline.Caps)
		assert.Equal(t, 1280, caps.Width)
		assert.Equal(t, 720, caps.Height)
	})

	t.Run("running graph drains and resumes", func(t *testing.T) {
		h := newHarness(t, nil, memgraph.Options{FrameInterval: 5 * time.Millisecond})
		h.advance(t, state.CmdRealize, state.CmdStart)
		require.NoError(t, h.orch.BuildPreviewGraph(state.ModeImage))
		require.NoError(t, h.orch.SetPreviewState(ctx, pipeline.NativePlaying))

		var seen []pipeline.ReconfigState
		h.orch.OnReconfigState(func(_, to pipeline.ReconfigState) { seen = append(seen, to) })

		require.NoError(t, h.orch.ReconfigureResolution(ctx, 320, 240))
		assert.Equal(t, []pipeline.ReconfigState{
			pipeline.ReconfDraining, pipeline.ReconfIdle, pipeline.ReconfResuming, pipeline.ReconfRunning,
		}, seen)
		assert.Equal(t, pipeline.NativePlaying, h.orch.PreviewState())

		g := h.graph(t, pipeline.GraphPreview)
		filter, _ := g.Lookup(pipeline.NodeVideoFilter)
		assert.Equal(t, 320, filter.Prop(pipeline.PropCaps).(pipeline.Caps).Width)
		queue, _ := g.Lookup(pipeline.NodePreviewQueue)
		assert.Equal(t, pipeline.LeakyNone, queue.Prop(pipeline.PropLeaky))

		frames := make(chan pipeline.Sample, 1)
		h.orch.OnVideoSample(func(s pipeline.Sample) {
			select {
			case frames <- s:
			default:
			}
		})
		select {
		case s := <-frames:
			assert.Equal(t, 320, s.Caps.Width)
		case <-time.After(time.Second):
			t.Fatal("no frames after resume")
		}
	})

	t.Run("concurrent attempt is busy", func(t *testing.T) {
		h := newHarness(t, nil, memgraph.Options{})
		h.advance(t, state.CmdRealize, state.CmdStart)
		require.NoError(t, h.orch.BuildPreviewGraph(state.ModeImage))
		require.NoError(t, h.orch.SetPreviewState(ctx, pipeline.NativePlaying))

		var inner error
		h.orch.OnReconfigState(func(_, to pipeline.ReconfigState) {
			if to == pipeline.ReconfDraining {
				inner = h.orch.ReconfigureResolution(ctx, 1280, 720)
			}
		})
		require.NoError(t, h.orch.ReconfigureResolution(ctx, 320, 240))
		assert.ErrorIs(t, inner, camerr.ErrReconfigureBusy)
		assert.Equal(t, pipeline.Geometry{Width: 320, Height: 240}, h.orch.Geometry())
	})

	t.Run("quiesce timeout keeps graph running", func(t *testing.T) {
		h := newHarness(t, nil, memgraph.Options{})
		h.advance(t, state.CmdRealize, state.CmdStart)
		require.NoError(t, h.orch.BuildPreviewGraph(state.ModeImage))
		require.NoError(t, h.orch.SetPreviewState(ctx, pipeline.NativePlaying))
		h.backend.StallState(pipeline.NativeReady)

		err := h.orch.ReconfigureResolution(ctx, 320, 240)
		require.ErrorIs(t, err, camerr.ErrResponseTimeout)
		assert.Equal(t, pipeline.ReconfRunning, h.orch.ReconfigState())
		queue, _ := h.graph(t, pipeline.GraphPreview).Lookup(pipeline.NodeBridgeQueue)
		assert.Equal(t, pipeline.LeakyNone, queue.Prop(pipeline.PropLeaky))
	})
}

func TestCaps(t *testing.T) {
	tests := []struct {
		caps pipeline.Caps
		str  string
		size int
	}{
		{pipeline.Caps{Media: pipeline.MediaRawVideo, Format: "I420", Width: 640, Height: 480, FPS: 30}, "video/x-raw,format=I420,width=640,height=480,framerate=30/1", 640 * 480 * 3 / 2},
		{pipeline.Caps{Media: pipeline.MediaRawVideo, Format: "RGBA", Width: 2, Height: 2}, "video/x-raw,format=RGBA,width=2,height=2", 16},
		{pipeline.Caps{Media: pipeline.MediaRawAudio, Format: "S16LE", Rate: 44100, Channels: 2}, "audio/x-raw,format=S16LE,rate=44100,channels=2", 0},
	}
	for _, tt := range tests {
		t.Run(tt.str, func(t *testing.T) {
			assert.Equal(t, tt.str, tt.caps.String())
			assert.Equal(t, tt.size, tt.caps.FrameSize())
		})
	}
}
