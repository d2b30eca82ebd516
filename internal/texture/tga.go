package texture

import (
	"errors"
	"fmt"
	"image"
	"image/color"
)

// TGA errors.
var (
	ErrTGATooShort  = errors.New("TGA data too short")
	ErrTGATruncated = errors.New("TGA data truncated")
)

// DecodeTGA decodes uncompressed (type 2) and RLE (type 10) true-color TGA.
// Some garment packs still ship their diffuse maps this way.
func DecodeTGA(data []byte) (image.Image, error) {
	if len(data) < 18 {
		return nil, ErrTGATooShort
	}

	idLength := int(data[0])
	colorMapType := data[1]
	imageType := data[2]
	width := int(data[12]) | int(data[13])<<8
	height := int(data[14]) | int(data[15])<<8
	bpp := int(data[16])
	topToBottom := data[17]&0x20 != 0

	if colorMapType != 0 {
		return nil, fmt.Errorf("color-mapped TGA not supported")
	}
	if imageType != 2 && imageType != 10 {
		return nil, fmt.Errorf("unsupported TGA type %d", imageType)
	}
	if bpp != 24 && bpp != 32 {
		return nil, fmt.Errorf("unsupported TGA bit depth %d", bpp)
	}
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("empty TGA image %dx%d", width, height)
	}
	if err := checkSize(width, height); err != nil {
		return nil, err
	}

	offset := 18 + idLength
	if offset > len(data) {
		return nil, ErrTGATruncated
	}

	d := tgaDecoder{
		img:         image.NewNRGBA(image.Rect(0, 0, width, height)),
		src:         data[offset:],
		width:       width,
		height:      height,
		bpp:         bpp / 8,
		topToBottom: topToBottom,
	}

	if imageType == 2 {
		if len(d.src) < width*height*d.bpp {
			return nil, ErrTGATruncated
		}
		for i := 0; i < width*height; i++ {
			d.put(i, d.pixel())
		}
		return d.img, nil
	}

	if err := d.rle(); err != nil {
		return nil, err
	}
	return d.img, nil
}

type tgaDecoder struct {
	img         *image.NRGBA
	src         []byte
	pos         int
	width       int
	height      int
	bpp         int
	topToBottom bool
}

// pixel reads one BGR(A) pixel and advances.
func (d *tgaDecoder) pixel() color.NRGBA {
	p := d.src[d.pos : d.pos+d.bpp]
	d.pos += d.bpp
	c := color.NRGBA{R: p[2], G: p[1], B: p[0], A: 255}
	if d.bpp == 4 {
		c.A = p[3]
	}
	return c
}

func (d *tgaDecoder) put(i int, c color.NRGBA) {
	x, y := i%d.width, i/d.width
	if !d.topToBottom {
		y = d.height - 1 - y
	}
	d.img.SetNRGBA(x, y, c)
}

func (d *tgaDecoder) rle() error {
	total := d.width * d.height
	for i := 0; i < total; {
		if d.pos >= len(d.src) {
			return ErrTGATruncated
		}
		header := d.src[d.pos]
		d.pos++
		count := int(header&0x7F) + 1
		repeat := header&0x80 != 0

		if repeat {
			if d.pos+d.bpp > len(d.src) {
				return ErrTGATruncated
			}
			c := d.pixel()
			for n := 0; n < count && i < total; n++ {
				d.put(i, c)
				i++
			}
			continue
		}

		for n := 0; n < count && i < total; n++ {
			if d.pos+d.bpp > len(d.src) {
				return ErrTGATruncated
			}
			d.put(i, d.pixel())
			i++
		}
	}
	return nil
}
