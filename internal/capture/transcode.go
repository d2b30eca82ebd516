package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// ErrTranscode wraps transcoder failures.
var ErrTranscode = errors.New("transcode failed")

// Transcoder converts an MJPEG AVI clip into another container.
type Transcoder interface {
	// Load prepares the transcoder. It may be slow the first time.
	Load(ctx context.Context) error
	Transcode(ctx context.Context, avi []byte, format string) (Blob, error)
}

// FFmpeg runs the ffmpeg binary.
type FFmpeg struct {
	// Binary is the executable name or path; empty means "ffmpeg".
	Binary string
	// TempDir holds per-job scratch directories; empty uses os.TempDir.
	TempDir string

	// mu guards path; a cancelled job may still be running when the next
	// clip starts on the same FFmpeg.
	mu   sync.Mutex
	path string
}

// Load resolves the binary on PATH.
func (f *FFmpeg) Load(ctx context.Context) error {
	if _, err := f.resolve(); err != nil {
		return err
	}
	return ctx.Err()
}

func (f *FFmpeg) resolve() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.path != "" {
		return f.path, nil
	}
	bin := f.Binary
	if bin == "" {
		bin = "ffmpeg"
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscode, err)
	}
	f.path = path
	return path, nil
}

// codecArgs maps output formats to ffmpeg encoder flags.
var codecArgs = map[string][]string{
	"mp4":  {"-c:v", "libx264", "-pix_fmt", "yuv420p", "-movflags", "+faststart"},
	"webm": {"-c:v", "libvpx-vp9", "-b:v", "2500k"},
}

var videoMIME = map[string]string{
	"avi":  "video/x-msvideo",
	"mp4":  "video/mp4",
	"webm": "video/webm",
}

// Transcode writes the clip to a scratch directory, converts it and removes
// every intermediate file before returning, including on cancellation.
func (f *FFmpeg) Transcode(ctx context.Context, avi []byte, format string) (Blob, error) {
	format = strings.ToLower(format)
	args, ok := codecArgs[format]
	if !ok {
		return Blob{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	bin, err := f.resolve()
	if err != nil {
		return Blob{}, err
	}

	dir, err := os.MkdirTemp(f.TempDir, "transcode-*")
	if err != nil {
		return Blob{}, fmt.Errorf("%w: %v", ErrTranscode, err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "in.avi")
	out := filepath.Join(dir, "out."+format)
	if err := os.WriteFile(in, avi, 0600); err != nil {
		return Blob{}, fmt.Errorf("%w: %v", ErrTranscode, err)
	}

	cmdArgs := append([]string{"-hide_banner", "-loglevel", "error", "-y", "-i", in}, args...)
	cmdArgs = append(cmdArgs, out)
	cmd := exec.CommandContext(ctx, bin, cmdArgs...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Blob{}, ctxErr
		}
		return Blob{}, fmt.Errorf("%w: %v: %s", ErrTranscode, err, strings.TrimSpace(stderr.String()))
	}

	data, err := os.ReadFile(out)
	if err != nil {
		return Blob{}, fmt.Errorf("%w: %v", ErrTranscode, err)
	}
	return Blob{Data: data, MIME: videoMIME[format], Ext: format}, nil
}
