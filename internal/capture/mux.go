package capture

import (
	"errors"
	"fmt"
	"os"

	"github.com/icza/mjpeg"
)

// ErrNoFrames is returned when a session ends without any frame.
var ErrNoFrames = errors.New("recording has no frames")

// MuxAVI packs JPEG chunks into an MJPEG AVI container.
func MuxAVI(tmpDir string, chunks [][]byte, width, height, fps int) (Blob, error) {
	if len(chunks) == 0 {
		return Blob{}, ErrNoFrames
	}
	f, err := os.CreateTemp(tmpDir, "recording-*.avi")
	if err != nil {
		return Blob{}, fmt.Errorf("creating container: %w", err)
	}
	path := f.Name()
	f.Close()
	defer os.Remove(path)

	aw, err := mjpeg.New(path, int32(width), int32(height), int32(fps))
	if err != nil {
		return Blob{}, fmt.Errorf("opening container: %w", err)
	}
	for i, c := range chunks {
		if err := aw.AddFrame(c); err != nil {
			aw.Close()
			return Blob{}, fmt.Errorf("adding frame %d: %w", i, err)
		}
	}
	if err := aw.Close(); err != nil {
		return Blob{}, fmt.Errorf("closing container: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Blob{}, fmt.Errorf("reading container: %w", err)
	}
	return Blob{Data: data, MIME: videoMIME["avi"], Ext: "avi"}, nil
}
