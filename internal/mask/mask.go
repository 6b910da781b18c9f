// Package mask holds per-pixel object masks and the detection strategies
// that produce them.
package mask

import (
	"fmt"
	"image"
	"image/png"
	"io"
)

// Mask is a boolean per-pixel indicator of object-instance membership,
// stored row-major.
type Mask struct {
	W, H int
	Bits []bool
}

// New returns an all-false mask of the given size.
func New(w, h int) *Mask {
	return &Mask{W: w, H: h, Bits: make([]bool, w*h)}
}

// FromImage builds a mask from img by applying pred to each pixel's 16-bit
// gray value. Both 8-bit and 16-bit gray PNGs keep their raw value; colour
// images are reduced to their red channel, which is where label images
// carry their ids.
func FromImage(img image.Image, pred func(v uint16) bool) *Mask {
	b := img.Bounds()
	m := New(b.Dx(), b.Dy())
	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			if pred(RawValue(img, b.Min.X+x, b.Min.Y+y)) {
				m.Bits[y*m.W+x] = true
			}
		}
	}
	return m
}

// RawValue returns the unscaled label value stored at (x, y).
func RawValue(img image.Image, x, y int) uint16 {
	switch im := img.(type) {
	case *image.Gray:
		return uint16(im.GrayAt(x, y).Y)
	case *image.Gray16:
		return im.Gray16At(x, y).Y
	case *image.Paletted:
		return uint16(im.ColorIndexAt(x, y))
	default:
		r, _, _, _ := img.At(x, y).RGBA()
		return uint16(r >> 8)
	}
}

// At reports whether (x, y) is set. Out-of-range coordinates are false.
func (m *Mask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.W || y >= m.H {
		return false
	}
	return m.Bits[y*m.W+x]
}

// Set marks (x, y).
func (m *Mask) Set(x, y int, v bool) {
	if x < 0 || y < 0 || x >= m.W || y >= m.H {
		return
	}
	m.Bits[y*m.W+x] = v
}

// Count returns the number of set pixels.
func (m *Mask) Count() int {
	n := 0
	for _, b := range m.Bits {
		if b {
			n++
		}
	}
	return n
}

// Empty reports whether no pixel is set.
func (m *Mask) Empty() bool {
	for _, b := range m.Bits {
		if b {
			return false
		}
	}
	return true
}

// BoundingBox returns the tight box of set pixels as
// [umin, umax] x [vmin, vmax] inclusive, encoded as an image.Rectangle whose
// Max is the inclusive maximum. ok is false for an empty mask.
func (m *Mask) BoundingBox() (box image.Rectangle, ok bool) {
	umin, vmin := m.W, m.H
	umax, vmax := -1, -1
	for v := 0; v < m.H; v++ {
		for u := 0; u < m.W; u++ {
			if !m.Bits[v*m.W+u] {
				continue
			}
			if u < umin {
				umin = u
			}
			if u > umax {
				umax = u
			}
			if v < vmin {
				vmin = v
			}
			if v > vmax {
				vmax = v
			}
		}
	}
	if umax < 0 {
		return image.Rectangle{}, false
	}
	return image.Rect(umin, vmin, umax, vmax), true
}

// Fill sets every pixel in [r.Min.X, r.Max.X) x [r.Min.Y, r.Max.Y).
func (m *Mask) Fill(r image.Rectangle) {
	r = r.Intersect(image.Rect(0, 0, m.W, m.H))
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			m.Bits[y*m.W+x] = true
		}
	}
}

// Image renders the mask as 0/255 gray.
func (m *Mask) Image() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.W, m.H))
	for i, b := range m.Bits {
		if b {
			img.Pix[i] = 255
		}
	}
	return img
}

// Bytes packs the mask as one byte per pixel (0 or 1).
func (m *Mask) Bytes() []byte {
	out := make([]byte, len(m.Bits))
	for i, b := range m.Bits {
		if b {
			out[i] = 1
		}
	}
	return out
}

// FromBytes is the inverse of Bytes.
func FromBytes(w, h int, data []byte) (*Mask, error) {
	if len(data) != w*h {
		return nil, fmt.Errorf("mask data has %d bytes, want %dx%d", len(data), w, h)
	}
	m := New(w, h)
	for i, b := range data {
		m.Bits[i] = b != 0
	}
	return m, nil
}

// WritePNG encodes the mask as an 8-bit gray PNG.
func (m *Mask) WritePNG(w io.Writer) error {
	return png.Encode(w, m.Image())
}
