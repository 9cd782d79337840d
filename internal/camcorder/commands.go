package camcorder

import (
	"context"
	"errors"
	"fmt"

	"github.com/bryanchriswhite/camcorder/internal/attr"
	"github.com/bryanchriswhite/camcorder/internal/camerr"
	"github.com/bryanchriswhite/camcorder/internal/pipeline"
	"github.com/bryanchriswhite/camcorder/internal/state"
)

func (e *Engine) run(ctx context.Context, cmd state.Command, work state.Work) error {
	if err := e.alive(); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return e.machine.Run(ctx, cmd, work)
}

// Run executes a lifecycle command by its state machine identity
func (e *Engine) Run(ctx context.Context, cmd state.Command) error {
	switch cmd {
	case state.CmdRealize:
		return e.Realize(ctx)
	case state.CmdUnrealize:
		return e.Unrealize(ctx)
	case state.CmdStart:
		return e.Start(ctx)
	case state.CmdStop:
		return e.Stop(ctx)
	case state.CmdCaptureStart:
		return e.CaptureStart(ctx)
	case state.CmdCaptureStop:
		return e.CaptureStop(ctx)
	case state.CmdRecord:
		return e.Record(ctx)
	case state.CmdPause:
		return e.Pause(ctx)
	case state.CmdCancel:
		return e.Cancel(ctx)
	case state.CmdCommit:
		return e.Commit(ctx)
	default:
		return fmt.Errorf("unknown command %d: %w", cmd, camerr.ErrInvalidArgument)
	}
}

// Realize builds the preview graph of the current mode and brings it to
// READY. Stored camera controls are applied to the sensor first.
func (e *Engine) Realize(ctx context.Context) error {
	return e.run(ctx, state.CmdRealize, func(ctx context.Context, _, _ state.State) error {
		e.applyDeferredControls()

		if err := e.orch.BuildPreviewGraph(e.mode()); err != nil {
			return err
		}
		if err := e.orch.SetPreviewState(ctx, pipeline.NativeReady); err != nil {
			return errors.Join(err, e.orch.TeardownPreview(ctx))
		}
		return nil
	})
}

// Unrealize destroys every graph
func (e *Engine) Unrealize(ctx context.Context) error {
	return e.run(ctx, state.CmdUnrealize, func(ctx context.Context, _, _ state.State) error {
		return e.orch.Close(ctx)
	})
}

// Start makes the preview flow
func (e *Engine) Start(ctx context.Context) error {
	return e.run(ctx, state.CmdStart, func(ctx context.Context, _, _ state.State) error {
		return e.orch.SetPreviewState(ctx, pipeline.NativePlaying)
	})
}

// Stop halts the preview
func (e *Engine) Stop(ctx context.Context) error {
	return e.run(ctx, state.CmdStop, func(ctx context.Context, _, _ state.State) error {
		return e.orch.SetPreviewState(ctx, pipeline.NativeReady)
	})
}

// CaptureStart builds the image encoder and starts a burst of capture-count
// shots. The burst ends with a MessageCaptureDone; the device stays
// CAPTURING until CaptureStop.
func (e *Engine) CaptureStart(ctx context.Context) error {
	return e.run(ctx, state.CmdCaptureStart, func(ctx context.Context, _, _ state.State) error {
		if err := e.attrs.SetInternal(attr.CaptureBreakContShot, 0); err != nil {
			return err
		}
		eg, err := e.orch.BuildEncodeGraph(pipeline.ProfileImage)
		if err != nil {
			return err
		}
		b := e.newBurst(eg)
		if err := eg.OnOutput(b.result); err != nil {
			return errors.Join(fmt.Errorf("image output: %w", err), e.orch.TeardownEncode(ctx))
		}
		if err := e.orch.SetEncodeState(ctx, pipeline.NativePlaying); err != nil {
			return errors.Join(err, e.orch.TeardownEncode(ctx))
		}

		e.sessMu.Lock()
		e.shot = b
		e.sessMu.Unlock()
		b.start()
		return nil
	})
}

// CaptureStop ends the burst and releases the image encoder
func (e *Engine) CaptureStop(ctx context.Context) error {
	return e.run(ctx, state.CmdCaptureStop, func(ctx context.Context, _, _ state.State) error {
		e.sessMu.Lock()
		b := e.shot
		e.shot = nil
		e.sessMu.Unlock()
		if b != nil {
			b.stop()
		}
		return e.orch.TeardownEncode(ctx)
	})
}

// Record starts recording from PREPARE, or resumes it from PAUSED
func (e *Engine) Record(ctx context.Context) error {
	return e.run(ctx, state.CmdRecord, func(ctx context.Context, from, _ state.State) error {
		if from == state.StatePaused {
			return e.resumeRecording(ctx)
		}
		return e.startRecording(ctx)
	})
}

func (e *Engine) startRecording(ctx context.Context) error {
	if err := e.checkFreeSpace(); err != nil {
		return err
	}
	eg, err := e.orch.BuildEncodeGraph(pipeline.ProfileFor(e.mode()))
	if err != nil {
		return err
	}
	if err := e.orch.SetEncodeState(ctx, pipeline.NativePlaying); err != nil {
		return errors.Join(err, e.orch.TeardownEncode(ctx))
	}
	rec := e.newRecorder(eg)

	e.sessMu.Lock()
	e.rec = rec
	e.sessMu.Unlock()
	rec.start()
	return nil
}

func (e *Engine) resumeRecording(ctx context.Context) error {
	rec := e.recorder()
	if rec == nil {
		return fmt.Errorf("no recording to resume: %w", camerr.ErrNotInitialized)
	}
	if err := e.orch.SetEncodeState(ctx, pipeline.NativePlaying); err != nil {
		return err
	}
	rec.resume()
	return nil
}

// Pause suspends recording. Timestamps continue without a gap on resume.
func (e *Engine) Pause(ctx context.Context) error {
	return e.run(ctx, state.CmdPause, func(ctx context.Context, _, _ state.State) error {
		rec := e.recorder()
		if rec == nil {
			return fmt.Errorf("no recording to pause: %w", camerr.ErrNotInitialized)
		}
		rec.pause()
		if err := e.orch.SetEncodeState(ctx, pipeline.NativePaused); err != nil {
			rec.resume()
			return err
		}
		return nil
	})
}

// Cancel discards the recording and removes the partial file
func (e *Engine) Cancel(ctx context.Context) error {
	return e.run(ctx, state.CmdCancel, func(ctx context.Context, _, _ state.State) error {
		rec := e.takeRecorder()
		if rec == nil {
			return e.orch.TeardownEncode(ctx)
		}
		rec.stop()
		err := e.orch.TeardownEncode(ctx)
		if rmErr := rec.discard(); rmErr != nil {
			e.log.Warn().Err(rmErr).Str("location", rec.location).Msg("Could not remove cancelled recording")
		}
		return err
	})
}

// Commit finalizes the recording: the encode ports get end-of-stream and
// the call returns once the file is complete
func (e *Engine) Commit(ctx context.Context) error {
	return e.run(ctx, state.CmdCommit, func(ctx context.Context, _, _ state.State) error {
		rec := e.recorder()
		if rec == nil {
			return fmt.Errorf("no recording to commit: %w", camerr.ErrNotInitialized)
		}
		rec.stop()

		if eg := e.orch.Encode(); eg != nil && eg.State() != pipeline.NativePlaying {
			if err := e.orch.SetEncodeState(ctx, pipeline.NativePlaying); err != nil {
				return err
			}
		}
		if err := rec.endOfStream(); err != nil {
			return err
		}
		if err := e.orch.WaitEncodeEOS(ctx); err != nil {
			return err
		}

		e.takeRecorder()
		if err := e.orch.TeardownEncode(ctx); err != nil {
			return err
		}
		e.post(rec.done())
		return nil
	})
}

func (e *Engine) recorder() *recorder {
	e.sessMu.Lock()
	defer e.sessMu.Unlock()
	return e.rec
}

func (e *Engine) takeRecorder() *recorder {
	e.sessMu.Lock()
	defer e.sessMu.Unlock()
	rec := e.rec
	e.rec = nil
	return rec
}

// haltRecording stops feeding the encoder after a soft terminal condition.
// The caller finalizes with Commit.
func (e *Engine) haltRecording(kind MessageKind, err error) {
	rec := e.recorder()
	if rec == nil {
		e.post(Message{Kind: kind, Err: err, Error: errString(err)})
		return
	}
	rec.halt(kind, err)
}
