package texture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"

	"github.com/h2non/filetype"
	"golang.org/x/image/bmp"
	"golang.org/x/image/webp"
)

// Decode errors.
var (
	ErrUnsupportedImage = errors.New("unsupported image format")
	ErrTooLarge         = errors.New("image dimensions exceed limit")
)

// MaxPixels bounds the decoded size of any image, checked against the
// header before pixels are allocated.
const MaxPixels = 1 << 26

func checkSize(w, h int) error {
	if w <= 0 || h <= 0 {
		return nil
	}
	if w > MaxPixels/h {
		return fmt.Errorf("%w: %dx%d", ErrTooLarge, w, h)
	}
	return nil
}

// Sniff returns the MIME type of data, or "" when it is not recognized.
func Sniff(data []byte) string {
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return ""
	}
	return kind.MIME.Value
}

// Decode decodes png, jpeg, gif, webp, bmp or tga data.
// TGA has no magic number, so it is tried last for unrecognized content.
func Decode(data []byte) (image.Image, error) {
	r := bytes.NewReader(data)

	var (
		img image.Image
		err error
	)
	mime := Sniff(data)
	if mime != "" {
		if cfg, _, cerr := image.DecodeConfig(bytes.NewReader(data)); cerr == nil {
			if serr := checkSize(cfg.Width, cfg.Height); serr != nil {
				return nil, serr
			}
		}
	}
	switch mime {
	case "image/png":
		img, err = png.Decode(r)
	case "image/jpeg":
		img, err = jpeg.Decode(r)
	case "image/gif":
		img, err = gif.Decode(r)
	case "image/webp":
		img, err = webp.Decode(r)
	case "image/bmp":
		img, err = bmp.Decode(r)
	case "":
		img, err = DecodeTGA(data)
		if errors.Is(err, ErrTooLarge) {
			return nil, err
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedImage, mime)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

// Load decodes data into a borrowed texture.
func Load(name string, data []byte) (*Texture, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return New(name, ToRGBA(img), false), nil
}
