package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Recorder errors.
var (
	ErrRecordingUnavailable = errors.New("recording unavailable")
	ErrNotRecording         = errors.New("not recording")
)

// Recording defaults.
const (
	DefaultFPS         = 30
	DefaultClipLength  = 5 * time.Second
	DefaultJPEGQuality = 85
	DefaultClipFormat  = "mp4"
	// DefaultMaxClipLength bounds RecordClip windows.
	DefaultMaxClipLength = time.Minute
)

// Status messages published while a clip is processed.
const (
	MsgRecording  = "recording"
	MsgFinalizing = "finalizing"
	MsgLoading    = "loading transcoder"
	MsgConverting = "converting"
	MsgComplete   = "complete"
	MsgCancelled  = "cancelled"
)

// Phase is the recorder state.
type Phase int

// Recorder phases. Recording, Finalizing and Transcoding count as active.
const (
	PhaseIdle Phase = iota
	PhaseRecording
	PhaseFinalizing
	PhaseTranscoding
	PhaseDone
	PhaseFailed
)

var phaseNames = [...]string{"idle", "recording", "finalizing", "transcoding", "done", "failed"}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// MarshalText encodes the phase name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Active reports whether a session holds the recorder.
func (p Phase) Active() bool {
	return p == PhaseRecording || p == PhaseFinalizing || p == PhaseTranscoding
}

// Session is one recording. Chunks are JPEG-encoded frames.
type Session struct {
	ID      string
	Chunks  [][]byte
	Started time.Time
	Width   int
	Height  int
}

// Status is a snapshot of the recorder.
type Status struct {
	Phase     Phase  `json:"phase"`
	SessionID string `json:"sessionId,omitempty"`
	Frames    int    `json:"frames"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Clip is a finished clip handed back from the transcode goroutine.
type Clip struct {
	SessionID string
	Blob      Blob
	Err       error
}

// Options configures a Recorder.
type Options struct {
	FPS         int
	JPEGQuality int
	TempDir     string
	Transcoder  Transcoder
	// MaxClipLength caps RecordClip; 0 uses DefaultMaxClipLength.
	MaxClipLength time.Duration
	Logger        *zap.Logger
}

// Finalize muxes a stopped session into an MJPEG AVI. It does file I/O and
// must not run on the frame goroutine.
type Finalize func() (Blob, error)

// Recorder samples a frame source into a single recording session and
// finalizes it into a video container.
type Recorder struct {
	fps     int
	quality int
	tmpDir  string
	maxClip time.Duration
	tc      Transcoder
	log     *zap.Logger
	mux     func(tmpDir string, chunks [][]byte, width, height, fps int) (Blob, error)
	wg      sync.WaitGroup

	mu       sync.Mutex
	phase    Phase
	session  *Session
	src      FrameSource
	next     time.Time
	deadline time.Time
	format   string
	parent   context.Context
	cancel   context.CancelFunc
	message  string
	err      error

	results chan Clip
}

// NewRecorder creates an idle recorder.
func NewRecorder(opts Options) *Recorder {
	if opts.FPS <= 0 {
		opts.FPS = DefaultFPS
	}
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = DefaultJPEGQuality
	}
	if opts.MaxClipLength <= 0 {
		opts.MaxClipLength = DefaultMaxClipLength
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Recorder{
		fps:     opts.FPS,
		quality: opts.JPEGQuality,
		tmpDir:  opts.TempDir,
		maxClip: opts.MaxClipLength,
		tc:      opts.Transcoder,
		log:     opts.Logger,
		mux:     MuxAVI,
		results: make(chan Clip, 1),
	}
}

// Results delivers finished clips. Only the latest undelivered clip is kept.
func (r *Recorder) Results() <-chan Clip {
	return r.results
}

// Start begins a session on src. It returns false when a session is
// already active or src is nil.
func (r *Recorder) Start(src FrameSource) bool {
	_, err := r.Begin(src)
	return err == nil
}

// Begin is Start returning the session ID or ErrRecordingUnavailable.
func (r *Recorder) Begin(src FrameSource) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.beginLocked(src)
}

func (r *Recorder) beginLocked(src FrameSource) (string, error) {
	if src == nil {
		return "", fmt.Errorf("%w: no frame source", ErrRecordingUnavailable)
	}
	if r.phase.Active() {
		return "", fmt.Errorf("%w: session %s is %s", ErrRecordingUnavailable, r.session.ID, r.phase)
	}
	r.session = &Session{ID: uuid.NewString(), Started: time.Now()}
	r.src = src
	r.phase = PhaseRecording
	r.next = time.Time{}
	r.deadline = time.Time{}
	r.format = ""
	r.message = MsgRecording
	r.err = nil
	r.log.Info("recording started", zap.String("session", r.session.ID))
	return r.session.ID, nil
}

// RecordClip records for length starting at now, then transcodes to format
// asynchronously. ctx bounds the transcode. Lengths above the configured
// maximum fail with ErrTooLarge.
func (r *Recorder) RecordClip(ctx context.Context, src FrameSource, now time.Time, length time.Duration, format string) (string, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = DefaultClipFormat
	}
	if _, ok := videoMIME[format]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if length <= 0 {
		length = DefaultClipLength
	}
	if length > r.maxClip {
		return "", fmt.Errorf("%w: clip length %v exceeds %v", ErrTooLarge, length, r.maxClip)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	id, err := r.beginLocked(src)
	if err != nil {
		return "", err
	}
	r.deadline = now.Add(length)
	r.format = format
	r.parent = ctx
	return id, nil
}

// Tick samples a frame when the 30 fps cadence is due and ends a clip whose
// window has elapsed.
func (r *Recorder) Tick(now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != PhaseRecording {
		return nil
	}
	if !r.deadline.IsZero() && !now.Before(r.deadline) {
		finish, err := r.stopLocked()
		if err != nil {
			return err
		}
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			_, _ = finish()
		}()
		return nil
	}
	if !r.next.IsZero() && now.Before(r.next) {
		return nil
	}

	interval := time.Second / time.Duration(r.fps)
	if r.next.IsZero() || now.Sub(r.next) >= interval {
		r.next = now.Add(interval)
	} else {
		r.next = r.next.Add(interval)
	}
	if err := r.sampleLocked(); err != nil {
		r.log.Warn("frame capture failed", zap.String("session", r.session.ID), zap.Error(err))
		return err
	}
	return nil
}

func (r *Recorder) sampleLocked() error {
	frame, err := r.src.Capture()
	if err != nil {
		return err
	}
	if frame == nil || frame.Bounds().Empty() {
		return ErrEmptyFrame
	}

	s := r.session
	var img image.Image = frame
	if s.Width == 0 {
		s.Width, s.Height = frame.Bounds().Dx(), frame.Bounds().Dy()
	} else if frame.Bounds().Dx() != s.Width || frame.Bounds().Dy() != s.Height {
		img = Resample(frame, s.Width, s.Height)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: r.quality}); err != nil {
		return fmt.Errorf("encoding frame: %w", err)
	}
	s.Chunks = append(s.Chunks, buf.Bytes())
	framesCaptured(context.Background())
	return nil
}

// Stop ends the session without touching the disk. The returned Finalize
// produces the MJPEG AVI; a clip session stopped early proceeds to
// transcoding once it has run. A session without frames fails here.
func (r *Recorder) Stop() (Finalize, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase != PhaseRecording {
		return nil, ErrNotRecording
	}
	return r.stopLocked()
}

// stopLocked detaches the buffered chunks and enters PhaseFinalizing.
func (r *Recorder) stopLocked() (Finalize, error) {
	s := r.session
	chunks := s.Chunks
	s.Chunks = nil
	r.src = nil
	if len(chunks) == 0 {
		r.failLocked(ErrNoFrames)
		if r.format != "" {
			r.deliver(Clip{SessionID: s.ID, Err: ErrNoFrames})
		}
		return nil, ErrNoFrames
	}
	r.phase = PhaseFinalizing
	r.message = MsgFinalizing

	id, w, h, format, parent := s.ID, s.Width, s.Height, r.format, r.parent
	return func() (Blob, error) {
		avi, err := r.mux(r.tmpDir, chunks, w, h, r.fps)
		return r.finalized(id, len(chunks), format, parent, avi, err)
	}, nil
}

// finalized applies a mux result if id still owns the finalizing phase.
func (r *Recorder) finalized(id string, frames int, format string, parent context.Context, avi Blob, err error) (Blob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil || r.session.ID != id || r.phase != PhaseFinalizing {
		return Blob{}, fmt.Errorf("session %s: %w", id, context.Canceled)
	}
	if err != nil {
		r.failLocked(err)
		if format != "" {
			r.deliver(Clip{SessionID: id, Err: err})
		}
		return Blob{}, err
	}
	r.log.Info("recording finalized", zap.String("session", id), zap.Int("frames", frames))

	if format == "" {
		r.phase = PhaseDone
		r.message = MsgComplete
		return avi, nil
	}
	if format == "avi" || r.tc == nil {
		if format != "avi" {
			r.log.Warn("no transcoder configured, delivering avi", zap.String("session", id))
		}
		r.phase = PhaseDone
		r.message = MsgComplete
		r.deliver(Clip{SessionID: id, Blob: avi})
		return avi, nil
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	r.cancel = cancel
	r.phase = PhaseTranscoding
	r.message = MsgLoading
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.transcode(ctx, id, avi, format)
	}()
	return avi, nil
}

func (r *Recorder) transcode(ctx context.Context, id string, avi Blob, format string) {
	start := time.Now()
	if err := r.tc.Load(ctx); err != nil {
		r.finishTranscode(id, Blob{}, err)
		return
	}
	if !r.update(id, MsgConverting) {
		return
	}
	out, err := r.tc.Transcode(ctx, avi.Data, format)
	transcodeFinished(context.Background(), format, time.Since(start), err == nil)
	r.finishTranscode(id, out, err)
}

// update sets the status message if id still owns the transcoding phase.
func (r *Recorder) update(id, msg string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil || r.session.ID != id || r.phase != PhaseTranscoding {
		return false
	}
	r.message = msg
	return true
}

func (r *Recorder) finishTranscode(id string, out Blob, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil || r.session.ID != id || r.phase != PhaseTranscoding {
		// cancelled; the transcoder already removed its scratch files
		return
	}
	r.cancel()
	r.cancel = nil
	if err != nil {
		if !errors.Is(err, ErrTranscode) && !errors.Is(err, context.Canceled) {
			err = fmt.Errorf("%w: %v", ErrTranscode, err)
		}
		r.failLocked(err)
		r.deliver(Clip{SessionID: id, Err: err})
		return
	}
	r.phase = PhaseDone
	r.message = MsgComplete
	r.log.Info("transcode complete", zap.String("session", id), zap.Int("bytes", len(out.Data)))
	r.deliver(Clip{SessionID: id, Blob: out})
}

func (r *Recorder) failLocked(err error) {
	r.phase = PhaseFailed
	r.err = err
	r.message = err.Error()
	r.log.Error("recording failed", zap.String("session", r.session.ID), zap.Error(err))
}

func (r *Recorder) deliver(c Clip) {
	for {
		select {
		case r.results <- c:
			return
		default:
		}
		select {
		case <-r.results:
		default:
		}
	}
}

// Cancel aborts a recording or an in-flight transcode and discards its
// partial output. It reports whether anything was cancelled.
func (r *Recorder) Cancel() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.phase {
	case PhaseRecording:
		r.session.Chunks = nil
		r.src = nil
	case PhaseFinalizing:
		// the pending Finalize sees the phase change and drops its output
	case PhaseTranscoding:
		r.cancel()
		r.cancel = nil
	default:
		return false
	}
	r.log.Info("recording cancelled", zap.String("session", r.session.ID), zap.Stringer("phase", r.phase))
	r.phase = PhaseIdle
	r.message = MsgCancelled
	r.err = nil
	return true
}

// Status returns a snapshot.
func (r *Recorder) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := Status{Phase: r.phase, Message: r.message}
	if r.session != nil {
		st.SessionID = r.session.ID
		st.Frames = len(r.session.Chunks)
	}
	if r.err != nil {
		st.Error = r.err.Error()
	}
	return st
}

// Wait blocks until background finalize and transcode goroutines return.
func (r *Recorder) Wait() {
	r.wg.Wait()
}

// Chunks returns the number of frames buffered in the active session.
func (r *Recorder) Chunks() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil {
		return 0
	}
	return len(r.session.Chunks)
}
