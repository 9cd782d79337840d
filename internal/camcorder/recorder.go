package camcorder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bryanchriswhite/camcorder/internal/attr"
	"github.com/bryanchriswhite/camcorder/internal/camerr"
	"github.com/bryanchriswhite/camcorder/internal/config"
	"github.com/bryanchriswhite/camcorder/internal/pipeline"
	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

// track re-stamps one stream. The first sample of every segment is anchored
// to the recorded time reached so far, so pauses leave no gap.
type track struct {
	anchored bool
	anchor   time.Duration
	base     time.Duration
}

// recorder feeds preview samples into a recording encode graph.
// target-time-limit is in seconds and target-max-size in kilobytes; zero
// disables either limit.
type recorder struct {
	e        *Engine
	id       uuid.UUID
	location string
	ports    map[string]pipeline.Node

	timeLimit time.Duration
	maxSize   int64
	minFree   int64
	interval  time.Duration

	mu       sync.Mutex
	flowing  bool
	halted   bool
	stopped  bool
	elapsed  time.Duration
	segStart time.Duration
	tracks   map[string]*track

	quit     chan struct{}
	quitOnce sync.Once
	wg       sync.WaitGroup
}

func (e *Engine) newRecorder(eg *pipeline.EncodeGraph) *recorder {
	r := &recorder{
		e:         e,
		id:        uuid.New(),
		location:  eg.Location,
		ports:     make(map[string]pipeline.Node),
		timeLimit: time.Duration(e.attrs.Int(attr.TargetTimeLimit)) * time.Second,
		maxSize:   int64(e.attrs.Int(attr.TargetMaxSize)) * 1024,
		minFree:   int64(e.cfg.IntOr(config.CategoryRecord, "MinFreeSpace", 1<<20)),
		interval:  time.Duration(e.cfg.IntOr(config.CategoryRecord, "StatusInterval", 1000)) * time.Millisecond,
		tracks:    make(map[string]*track),
		quit:      make(chan struct{}),
	}
	for _, role := range eg.Roles() {
		port, _ := eg.Port(role)
		r.ports[role] = port
		r.tracks[role] = &track{}
	}
	if r.interval <= 0 {
		r.interval = time.Second
	}
	return r
}

func (r *recorder) start() {
	r.mu.Lock()
	r.flowing = true
	r.mu.Unlock()

	r.wg.Add(1)
	go r.report()

	r.e.log.Info().
		Str("session", r.id.String()).
		Str("location", r.location).
		Strs("roles", mapKeys(r.ports)).
		Dur("time_limit", r.timeLimit).
		Int64("max_size", r.maxSize).
		Msg("Recording started")
}

func mapKeys(m map[string]pipeline.Node) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// push re-stamps s and hands it to the port of role
func (r *recorder) push(role string, s pipeline.Sample) {
	r.mu.Lock()
	port, t := r.ports[role], r.tracks[role]
	if !r.flowing || port == nil {
		r.mu.Unlock()
		return
	}
	if !t.anchored {
		t.anchored = true
		t.anchor = s.PTS
		t.base = r.segStart
	}
	s.PTS = t.base + s.PTS - t.anchor
	if r.timeLimit > 0 && s.PTS >= r.timeLimit {
		r.mu.Unlock()
		r.halt(MessageTimeLimitReached, fmt.Errorf("recorded %s: %w", r.timeLimit, camerr.ErrTimeLimitReached))
		return
	}
	if end := s.PTS + s.Duration; end > r.elapsed {
		r.elapsed = end
	}
	r.mu.Unlock()

	if err := port.Push(s); err != nil {
		r.e.log.Debug().Err(err).Str("role", role).Msg("Encode port refused sample")
	}
}

func (r *recorder) pause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flowing = false
	r.segStart = r.elapsed
	for _, t := range r.tracks {
		t.anchored = false
	}
}

func (r *recorder) resume() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.halted && !r.stopped {
		r.flowing = true
	}
}

// halt stops feeding after a soft terminal condition and reports it once
func (r *recorder) halt(kind MessageKind, err error) {
	r.mu.Lock()
	if r.halted || r.stopped {
		r.mu.Unlock()
		return
	}
	r.halted = true
	r.flowing = false
	elapsed := r.elapsed
	r.mu.Unlock()

	r.e.log.Warn().Err(err).Str("session", r.id.String()).Str("reason", kind.String()).Msg("Recording halted, commit required")
	r.e.post(Message{
		Kind:     kind,
		Session:  r.id.String(),
		Location: r.location,
		Elapsed:  elapsed,
		FileSize: r.fileSize(),
		Err:      err,
		Error:    errString(err),
	})
}

// stop ends feeding and status reports
func (r *recorder) stop() {
	r.mu.Lock()
	r.stopped = true
	r.flowing = false
	r.mu.Unlock()
	r.quitOnce.Do(func() { close(r.quit) })
	r.wg.Wait()
}

func (r *recorder) endOfStream() error {
	var errs []error
	for role, port := range r.ports {
		if err := port.EndOfStream(); err != nil {
			errs = append(errs, fmt.Errorf("end %s port: %v: %w", role, err, camerr.ErrResourceCreation))
		}
	}
	return errors.Join(errs...)
}

func (r *recorder) discard() error {
	if err := os.Remove(r.location); err != nil && !os.IsNotExist(err) {
		return err
	}
	r.e.log.Info().Str("session", r.id.String()).Str("location", r.location).Msg("Recording cancelled")
	return nil
}

func (r *recorder) done() Message {
	r.mu.Lock()
	elapsed := r.elapsed
	r.mu.Unlock()
	size := r.fileSize()
	r.e.log.Info().
		Str("session", r.id.String()).
		Str("location", r.location).
		Dur("elapsed", elapsed).
		Int64("size", size).
		Msg("Recording finalized")
	return Message{
		Kind:     MessageRecordingDone,
		Session:  r.id.String(),
		Location: r.location,
		Elapsed:  elapsed,
		FileSize: size,
	}
}

func (r *recorder) fileSize() int64 {
	info, err := os.Stat(r.location)
	if err != nil {
		return 0
	}
	return info.Size()
}

// report posts RecordingStatus every interval while samples flow, and
// halts on the size limit or when the disk runs low
func (r *recorder) report() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.quit:
			return
		case <-ticker.C:
		}

		r.mu.Lock()
		flowing, elapsed := r.flowing, r.elapsed
		r.mu.Unlock()
		if !flowing {
			continue
		}

		size := r.fileSize()
		r.e.post(Message{
			Kind:     MessageRecordingStatus,
			Session:  r.id.String(),
			Location: r.location,
			Elapsed:  elapsed,
			FileSize: size,
		})

		if r.maxSize > 0 && size >= r.maxSize {
			r.halt(MessageMaxSizeReached, fmt.Errorf("file reached %d bytes: %w", size, camerr.ErrStorageExhausted))
			continue
		}
		if free, err := freeSpace(filepath.Dir(r.location)); err == nil && free < r.minFree {
			r.halt(MessageStorageExhausted, fmt.Errorf("%d bytes free: %w", free, camerr.ErrStorageExhausted))
		}
	}
}

// checkFreeSpace refuses to start a recording on a full or missing volume
func (e *Engine) checkFreeSpace() error {
	target := e.attrs.String(attr.TargetFilename)
	if target == "" {
		return nil
	}
	name := e.attrs.Name(attr.TargetFilename)
	free, err := freeSpace(filepath.Dir(target))
	if err != nil {
		return camerr.Attr(name, fmt.Errorf("output directory: %v: %w", err, camerr.ErrInvalidArgument))
	}
	minFree := int64(e.cfg.IntOr(config.CategoryRecord, "MinFreeSpace", 1<<20))
	if free < minFree {
		return camerr.Attr(name, fmt.Errorf("%d bytes free: %w", free, camerr.ErrStorageExhausted))
	}
	return nil
}

func freeSpace(dir string) (int64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return 0, err
	}
	return int64(st.Bavail) * int64(st.Bsize), nil
}
