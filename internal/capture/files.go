package capture

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"
)

// Filename builds "<prefix>_<timestamp>.<ext>".
func Filename(prefix, ext string, now time.Time) string {
	return fmt.Sprintf("%s_%s.%s", prefix, now.Format("2006-01-02_15-04-05"), ext)
}

// Save writes blob into dir under a timestamped name and returns the path.
func Save(dir, prefix string, blob Blob, now time.Time) (string, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("creating output dir: %w", err)
		}
	}
	path := filepath.Join(dir, Filename(prefix, blob.Ext, now))
	if err := os.WriteFile(path, blob.Data, 0644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

// FromGLPixels converts bottom-up RGBA rows as returned by glReadPixels
// into a top-down image.
func FromGLPixels(pixels []byte, width, height int) (*image.RGBA, error) {
	if len(pixels) != width*height*4 {
		return nil, fmt.Errorf("pixel data size mismatch: expected %d, got %d", width*height*4, len(pixels))
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	rowSize := width * 4
	for y := 0; y < height; y++ {
		src := (height - 1 - y) * rowSize
		copy(img.Pix[y*img.Stride:y*img.Stride+rowSize], pixels[src:src+rowSize])
	}
	return img, nil
}
