package camcorder

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bryanchriswhite/camcorder/internal/camerr"
	"github.com/bryanchriswhite/camcorder/internal/pipeline"
	"github.com/bryanchriswhite/camcorder/internal/pipeline/memgraph"
	"github.com/bryanchriswhite/camcorder/internal/state"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type portStub struct {
	mu     sync.Mutex
	pushed []pipeline.Sample
	eos    bool
}

func (p *portStub) Name() string { return "port" }
func (p *portStub) Factory() string { return "appsrc" }
func (p *portStub) HasProperty(string) bool { return false }
func (p *portStub) SetProperty(string, any) error { return nil }
func (p *portStub) Property(string) (any, error) { return nil, nil }
func (p *portStub) OnSample(func(pipeline.Sample)) error { return nil }

func (p *portStub) Push(s pipeline.Sample) error {
	p.mu.Lock()
	p.pushed = append(p.pushed, s)
	p.mu.Unlock()
	return nil
}

func (p *portStub) EndOfStream() error {
	p.mu.Lock()
	p.eos = true
	p.mu.Unlock()
	return nil
}

func (p *portStub) stamps() []time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]time.Duration, len(p.pushed))
	for i, s := range p.pushed {
		out[i] = s.PTS
	}
	return out
}

func newTestRecorder(t *testing.T, timeLimit time.Duration) (*recorder, *portStub, chan Message) {
	t.Helper()
	e, err := New(Options{Backend: memgraph.New(memgraph.Options{}), Mode: state.ModeVideo})
	require.NoError(t, err)
	msgs := make(chan Message, 16)
	e.SetMessageCallback(func(m Message) { msgs <- m })
	t.Cleanup(func() { _ = e.Destroy(context.Background()) })

	port := &portStub{}
	r := &recorder{
		e:         e,
		id:        uuid.New(),
		location:  t.TempDir() + "/out.mp4",
		ports:     map[string]pipeline.Node{pipeline.RoleVideo: port},
		tracks:    map[string]*track{pipeline.RoleVideo: {}},
		timeLimit: timeLimit,
		interval:  time.Hour,
		quit:      make(chan struct{}),
	}
	r.start()
	t.Cleanup(r.stop)
	return r, port, msgs
}

func frame(pts time.Duration) pipeline.Sample {
	return pipeline.Sample{PTS: pts, Duration: 10 * time.Millisecond}
}

func TestRecorderRestampsAcrossPause(t *testing.T) {
	r, port, _ := newTestRecorder(t, 0)

	// preview clock starts well after zero
	r.push(pipeline.RoleVideo, frame(500*time.Millisecond))
	r.push(pipeline.RoleVideo, frame(510*time.Millisecond))
	r.pause()
	r.push(pipeline.RoleVideo, frame(520*time.Millisecond))
	r.resume()
	r.push(pipeline.RoleVideo, frame(900*time.Millisecond))
	r.push(pipeline.RoleVideo, frame(910*time.Millisecond))

	assert.Equal(t, []time.Duration{0, 10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond}, port.stamps())
	assert.Equal(t, 40*time.Millisecond, r.elapsed)
}

func TestRecorderTimeLimit(t *testing.T) {
	r, port, msgs := newTestRecorder(t, 30*time.Millisecond)

	for i := 0; i < 6; i++ {
		r.push(pipeline.RoleVideo, frame(time.Duration(i)*10*time.Millisecond))
	}
	assert.Len(t, port.stamps(), 3)

	var got Message
	require.Eventually(t, func() bool {
		select {
		case m := <-msgs:
			got = m
			return m.Kind == MessageTimeLimitReached
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, got.Err, camerr.ErrTimeLimitReached)
	assert.Equal(t, r.id.String(), got.Session)

	r.resume()
	r.push(pipeline.RoleVideo, frame(100*time.Millisecond))
	assert.Len(t, port.stamps(), 3, "a halted recorder stays halted")
}

func TestRecorderEndOfStream(t *testing.T) {
	r, port, _ := newTestRecorder(t, 0)
	r.stop()
	r.push(pipeline.RoleVideo, frame(0))
	require.NoError(t, r.endOfStream())
	assert.True(t, port.eos)
	assert.Empty(t, port.stamps())
}
