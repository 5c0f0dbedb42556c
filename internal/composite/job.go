package composite

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/image/font/opentype"

	"studio/internal/compositor"
	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/media"
	"studio/internal/recorder"
)

// ArtifactStore resolves clip sources and takes ownership of finished
// recordings.
type ArtifactStore interface {
	Path(key string) (string, error)
	Import(ctx context.Context, key, srcPath string) (string, error)
	Delete(key string) error
}

// Deps are the collaborators shared by every job.
type Deps struct {
	Opener   media.Opener
	Store    ArtifactStore
	Settings infra.CompositorSettings
	// Font renders captions. nil loads Settings.FontPath or Go Bold.
	Font   *opentype.Font
	Logger infra.Logger
}

func (d Deps) validate() error {
	if d.Opener == nil {
		return errors.New("composite: opener is required")
	}
	if d.Store == nil {
		return errors.New("composite: store is required")
	}
	return nil
}

type message struct {
	sig      signal
	err      error
	artifact *recorder.Artifact
}

// Job is one merge or caption run. A merge starts in a review stage where
// its sequence can be reordered; Start freezes it and hands the job to its
// own goroutine.
type Job struct {
	id      string
	kind    domain.CompositeKind
	surface string
	prompt  string
	index   int
	caption *domain.Caption
	deps    Deps
	logger  infra.Logger
	bus     *EventBus

	mu        sync.Mutex
	seq       *domain.Sequence
	clips     []domain.Clip
	state     domain.CompositeState
	current   int
	progress  float64
	err       string
	artifact  *domain.OutputArtifact
	started   bool
	createdAt time.Time
	updatedAt time.Time
	cancelFn  context.CancelFunc
	done      chan struct{}
	doneOnce  sync.Once

	// owned by the run goroutine
	stream       media.Stream
	canvas       *compositor.Canvas
	rec          *recorder.Recorder
	offset       time.Duration
	clipEnd      time.Duration
	lastReported float64
}

// NewMerge builds a merge job in its review stage. At least two clips are
// required.
func NewMerge(deps Deps, surface string, clips []domain.Clip, prompt string) (*Job, error) {
	if len(clips) < 2 {
		return nil, domain.ErrMergeTooFewClips
	}
	seq, err := domain.NewSequence(clips)
	if err != nil {
		return nil, err
	}
	return newJob(deps, domain.CompositeMerge, surface, seq, nil, prompt, 0)
}

// NewCaption builds a caption job for a single clip. index is the 1-based
// position of the clip among its generation's results and only affects the
// download name.
func NewCaption(deps Deps, surface string, clip domain.Clip, caption domain.Caption, prompt string, index int) (*Job, error) {
	caption.Normalize()
	if err := caption.Validate(); err != nil {
		return nil, err
	}
	seq, err := domain.NewSequence([]domain.Clip{clip})
	if err != nil {
		return nil, err
	}
	return newJob(deps, domain.CompositeCaption, surface, seq, &caption, prompt, index)
}

func newJob(deps Deps, kind domain.CompositeKind, surface string, seq *domain.Sequence, caption *domain.Caption, prompt string, index int) (*Job, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	id := uuid.NewString()
	now := time.Now().UTC()
	return &Job{
		id:      id,
		kind:    kind,
		surface: surface,
		prompt:  prompt,
		index:   index,
		caption: caption,
		deps:    deps,
		logger: infra.Component(deps.Logger, "composite").With().
			Str("job_id", id).
			Str("kind", string(kind)).
			Logger(),
		bus:       NewEventBus(0),
		seq:       seq,
		state:     domain.StateIdle,
		createdAt: now,
		updatedAt: now,
		done:      make(chan struct{}),
		rec:       recorder.New(deps.Logger),
	}, nil
}

func (j *Job) ID() string { return j.id }
func (j *Job) Kind() domain.CompositeKind { return j.kind }
func (j *Job) Surface() string { return j.surface }
func (j *Job) Done() <-chan struct{} { return j.done }
func (j *Job) Events(since int64) []Event { return j.bus.Since(since) }
func (j *Job) State() domain.CompositeState { return j.Snapshot().State }

// Busy reports whether the job has been started and has not finished yet.
// A started job can still be idle until its goroutine loads the first clip.
func (j *Job) Busy() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.started && !j.state.Terminal()
}

// Snapshot returns a consistent copy of the job's externally visible state.
func (j *Job) Snapshot() domain.CompositeSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()

	var clips []domain.Clip
	if j.started {
		clips = append(clips, j.clips...)
	} else {
		clips = j.seq.Clips()
	}
	current := j.current
	if current >= len(clips) && len(clips) > 0 {
		current = len(clips) - 1
	}
	snap := domain.CompositeSnapshot{
		ID:           j.id,
		Kind:         j.kind,
		Surface:      j.surface,
		State:        j.state,
		Clips:        clips,
		CurrentIndex: current,
		Progress:     j.progress,
		Error:        j.err,
		CreatedAt:    j.createdAt,
		UpdatedAt:    j.updatedAt,
	}
	if j.caption != nil {
		c := *j.caption
		snap.Caption = &c
	}
	if j.artifact != nil {
		a := *j.artifact
		snap.Artifact = &a
	}
	return snap
}

// Move reorders the review-stage sequence. Once the job has started the
// order is frozen and ErrSequenceFrozen is returned.
func (j *Job) Move(index int, dir domain.Direction) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != domain.StateIdle {
		return domain.ErrSequenceFrozen
	}
	if err := j.seq.Move(index, dir); err != nil {
		return err
	}
	j.updatedAt = time.Now().UTC()
	return nil
}

// Start freezes the sequence and begins processing on a new goroutine. The
// job outlives the caller's request, so parent should be a service-lifetime
// context.
func (j *Job) Start(parent context.Context) error {
	j.mu.Lock()
	if j.state == domain.StateCancelled {
		j.mu.Unlock()
		return domain.ErrCancelled
	}
	if j.started || j.state != domain.StateIdle {
		j.mu.Unlock()
		return domain.ErrJobActive
	}
	j.seq.Freeze()
	j.clips = j.seq.Clips()
	j.started = true
	ctx, cancel := context.WithCancel(parent)
	j.cancelFn = cancel
	j.mu.Unlock()

	j.logger.Info().Int("clips", len(j.clips)).Msg("composite started")
	go j.run(ctx, cancel)
	return nil
}

// Cancel stops the job and releases everything it holds. It is idempotent
// and safe in every state: an unstarted job is cancelled in place, a
// running one is interrupted at its next step, and a finished one is left
// alone.
func (j *Job) Cancel() {
	j.mu.Lock()
	if j.state.Terminal() {
		j.mu.Unlock()
		return
	}
	if !j.started {
		j.state = domain.StateCancelled
		j.err = domain.ErrCancelled.Error()
		j.updatedAt = time.Now().UTC()
		j.mu.Unlock()
		j.publish(EventState, "")
		j.closeDone()
		return
	}
	cancel := j.cancelFn
	j.mu.Unlock()
	cancel()
}

// Wait blocks until the job reaches a terminal state or ctx ends.
func (j *Job) Wait(ctx context.Context) error {
	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DownloadName is the attachment filename for the artifact.
func (j *Job) DownloadName() string {
	if j.kind == domain.CompositeCaption {
		return domain.CaptionFilename(j.prompt, j.index)
	}
	return domain.MergeFilename(j.prompt)
}

func (j *Job) closeDone() {
	j.doneOnce.Do(func() { close(j.done) })
}

func (j *Job) run(ctx context.Context, cancel context.CancelFunc) {
	defer cancel()
	defer j.closeDone()
	defer j.teardown()

	queue := []message{{sig: sigLoad}}
	for len(queue) > 0 {
		msg := queue[0]
		queue = queue[1:]
		if ctx.Err() != nil {
			msg = message{sig: sigCancel}
		}
		queue = append(queue, j.dispatch(ctx, msg)...)
	}
}

func (j *Job) dispatch(ctx context.Context, msg message) []message {
	switch msg.sig {
	case sigLoad:
		return j.onLoad(ctx)
	case sigMetadataReady:
		return j.onMetadataReady()
	case sigPlay:
		return j.onPlay()
	case sigFrame:
		return j.onFrame(ctx)
	case sigEnded:
		return j.onEnded()
	case sigRecorderStopped:
		return j.onRecorderStopped(ctx, msg.artifact)
	case sigMediaError:
		if ctx.Err() != nil {
			return j.onCancel()
		}
		return j.fail(msg.err)
	case sigCancel:
		return j.onCancel()
	default:
		return j.fail(fmt.Errorf("unknown signal %q", msg.sig))
	}
}

func (j *Job) onLoad(ctx context.Context) []message {
	if err := j.transition(domain.StateLoadingClip); err != nil {
		return j.fail(err)
	}
	j.mu.Lock()
	clip := j.clips[j.current]
	j.mu.Unlock()

	src, err := j.resolve(clip.Source)
	if err != nil {
		return []message{{sig: sigMediaError, err: err}}
	}
	stream, err := j.deps.Opener.Open(ctx, src)
	if err != nil {
		return []message{{sig: sigMediaError, err: err}}
	}
	j.stream = stream

	info := stream.Info()
	j.mu.Lock()
	c := &j.clips[j.current]
	c.Width, c.Height, c.Duration, c.FPS = info.Width, info.Height, info.Duration, info.FPS
	j.mu.Unlock()

	j.logger.Debug().
		Int("clip", j.current).
		Int("width", info.Width).
		Int("height", info.Height).
		Dur("duration", info.Duration).
		Msg("clip loaded")
	return []message{{sig: sigMetadataReady}}
}

func (j *Job) onMetadataReady() []message {
	j.clipEnd = 0
	if j.canvas != nil {
		return []message{{sig: sigPlay}}
	}

	// first clip fixes the output size and starts the recorder
	info := j.stream.Info()
	j.canvas = compositor.NewCanvas(info.Width, info.Height)
	if j.caption != nil {
		f := j.deps.Font
		if f == nil {
			var err error
			if f, err = compositor.LoadFont(j.deps.Settings.FontPath); err != nil {
				return j.fail(err)
			}
		}
		overlay, err := compositor.NewOverlay(f, *j.caption, info.Width, info.Height)
		if err != nil {
			return j.fail(err)
		}
		j.canvas.SetOverlay(overlay)
	}
	s := j.deps.Settings
	err := j.rec.Start(info.Width, info.Height, recorder.Options{
		FPS:     s.FPS,
		Bitrate: s.Bitrate,
		Codec:   s.Codec,
		TempDir: s.TempDir,
	})
	if err != nil {
		return j.fail(err)
	}
	return []message{{sig: sigPlay}}
}

func (j *Job) onPlay() []message {
	if err := j.transition(domain.StatePlaying); err != nil {
		return j.fail(err)
	}
	return []message{{sig: sigFrame}}
}

func (j *Job) onFrame(ctx context.Context) []message {
	frame, err := j.stream.Next(ctx)
	if errors.Is(err, io.EOF) {
		return []message{{sig: sigEnded}}
	}
	if err != nil {
		return []message{{sig: sigMediaError, err: err}}
	}

	j.canvas.Draw(frame.Image)
	if _, err := j.rec.Capture(j.canvas.Image(), j.offset+frame.PTS, j.offset+frame.End()); err != nil {
		return j.fail(err)
	}
	j.clipEnd = frame.End()

	j.mu.Lock()
	p := Progress(j.current, len(j.clips), frame.End(), j.clips[j.current].Seconds())
	if p > j.progress {
		j.progress = p
	}
	report := j.progress-j.lastReported >= 1
	j.mu.Unlock()
	if report {
		j.lastReported = p
		j.publish(EventProgress, "")
	}
	return []message{{sig: sigFrame}}
}

func (j *Job) onEnded() []message {
	if err := j.transition(domain.StateClipEnded); err != nil {
		return j.fail(err)
	}
	j.closeStream()
	j.offset += j.clipEnd

	j.mu.Lock()
	ended := j.current
	j.current++
	j.progress = boundaryProgress(j.current, len(j.clips))
	remaining := j.current < len(j.clips)
	j.mu.Unlock()
	j.lastReported = j.progress
	j.publish(EventClipEnded, fmt.Sprintf("clip %d ended", ended))

	if remaining {
		return []message{{sig: sigLoad}}
	}
	if err := j.transition(domain.StateFinalizing); err != nil {
		return j.fail(err)
	}
	art, err := j.rec.Stop()
	if err != nil {
		return j.fail(err)
	}
	if art == nil {
		return j.fail(errors.New("recorder produced no artifact"))
	}
	return []message{{sig: sigRecorderStopped, artifact: art}}
}

func (j *Job) onRecorderStopped(ctx context.Context, art *recorder.Artifact) []message {
	key := path.Join("composites", j.id+domain.ArtifactExt)
	stored, err := j.deps.Store.Import(ctx, key, art.Path)
	if err != nil {
		return j.fail(fmt.Errorf("store artifact: %w", err))
	}
	j.rec.Release()

	out := &domain.OutputArtifact{
		StorageKey:   stored,
		MIME:         domain.ArtifactMIME,
		DownloadName: j.DownloadName(),
		Bytes:        art.Bytes,
		Frames:       art.Frames,
		Width:        art.Width,
		Height:       art.Height,
		Duration:     art.Duration,
	}
	j.mu.Lock()
	j.artifact = out
	j.mu.Unlock()
	if err := j.transition(domain.StateDone); err != nil {
		return j.fail(err)
	}
	j.publish(EventArtifact, out.DownloadName)
	j.logger.Info().
		Str("storage_key", stored).
		Int("frames", art.Frames).
		Dur("duration", art.Duration).
		Msg("composite finished")
	return nil
}

func (j *Job) onCancel() []message {
	if err := j.transition(domain.StateCancelled); err != nil {
		return nil
	}
	j.mu.Lock()
	j.err = domain.ErrCancelled.Error()
	j.mu.Unlock()
	j.logger.Info().Msg("composite cancelled")
	return nil
}

// fail moves the job to failed. No further signals are queued.
func (j *Job) fail(err error) []message {
	j.mu.Lock()
	if j.state.Terminal() {
		j.mu.Unlock()
		return nil
	}
	j.state = domain.StateFailed
	j.err = fmt.Sprintf("processing failed: %v", err)
	j.updatedAt = time.Now().UTC()
	msg := j.err
	j.mu.Unlock()

	j.logger.Error().Err(err).Msg("composite failed")
	j.publish(EventError, msg)
	return nil
}

func (j *Job) transition(to domain.CompositeState) error {
	j.mu.Lock()
	from := j.state
	if !isValidTransition(from, to) {
		j.mu.Unlock()
		return fmt.Errorf("invalid transition: %s -> %s", from, to)
	}
	j.state = to
	j.updatedAt = time.Now().UTC()
	j.mu.Unlock()

	j.publish(EventState, "")
	return nil
}

func (j *Job) publish(typ EventType, message string) {
	j.mu.Lock()
	e := Event{
		JobID:     j.id,
		Type:      typ,
		State:     j.state,
		ClipIndex: j.current,
		Progress:  j.progress,
		Message:   message,
	}
	j.mu.Unlock()
	j.bus.Publish(e)
}

// teardown runs once the event loop drains, whatever the outcome.
func (j *Job) teardown() {
	j.closeStream()
	if j.State() != domain.StateDone {
		if err := j.rec.Abort(); err != nil {
			j.logger.Warn().Err(err).Msg("recorder cleanup failed")
		}
	}
}

func (j *Job) closeStream() {
	if j.stream == nil {
		return
	}
	if err := j.stream.Close(); err != nil {
		j.logger.Debug().Err(err).Msg("close stream")
	}
	j.stream = nil
}

func (j *Job) resolve(source string) (string, error) {
	if filepath.IsAbs(source) {
		return source, nil
	}
	return j.deps.Store.Path(source)
}
