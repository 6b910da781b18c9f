package mask

import (
	"errors"
	"fmt"
	"image"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	_ "image/png"
)

// DetectType selects how the object mask for a frame is obtained.
type DetectType string

const (
	// DetectBox fills the bounding box of the stored mask.
	DetectBox DetectType = "box"
	// DetectMask uses the stored mask as-is.
	DetectMask DetectType = "mask"
	// DetectDetected loads an externally detected label image that sits
	// next to the colour image.
	DetectDetected DetectType = "detected"
)

var (
	// ErrNoMask is returned when no mask is available for a frame/object.
	ErrNoMask = errors.New("mask not found")
	// ErrUnknownDetectType is returned for unrecognised detection types.
	ErrUnknownDetectType = errors.New("unknown detect type")
)

// ParseDetectType validates s.
func ParseDetectType(s string) (DetectType, error) {
	switch dt := DetectType(strings.ToLower(strings.TrimSpace(s))); dt {
	case DetectBox, DetectMask, DetectDetected:
		return dt, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDetectType, s)
	}
}

// Source is the slice of a dataset reader the strategies need.
type Source interface {
	// Mask returns the stored mask for frame i and object obID, or
	// ErrNoMask when the dataset has none.
	Mask(i, obID int) (*Mask, error)
	// ColorPath returns the colour image path of frame i.
	ColorPath(i int) string
}

// FileOpener is implemented by sources whose detected-label files live
// outside the OS filesystem. Sources without it are read with os.Open.
type FileOpener interface {
	OpenFile(path string) (io.ReadCloser, error)
}

// DetectedMaskPath maps a colour image path to its detected-label path by
// replacing the parent "rgb" directory with a sibling "mask_cosypose".
// It returns "" when the image does not sit directly in an rgb directory.
func DetectedMaskPath(colorPath string) string {
	dir, file := filepath.Split(filepath.Clean(colorPath))
	dir = filepath.Clean(dir)
	if filepath.Base(dir) != "rgb" {
		return ""
	}
	return filepath.Join(filepath.Dir(dir), "mask_cosypose", file)
}

// Select returns the mask for frame i and object obID using exactly one
// strategy chosen by dt.
func Select(src Source, i, obID int, dt DetectType) (*Mask, error) {
	switch dt {
	case DetectBox:
		stored, err := src.Mask(i, obID)
		if err != nil {
			return nil, err
		}
		return boxFrom(stored)
	case DetectMask:
		return src.Mask(i, obID)
	case DetectDetected:
		path := DetectedMaskPath(src.ColorPath(i))
		if path == "" {
			return nil, fmt.Errorf("%w: %s is not under an rgb directory", ErrNoMask, src.ColorPath(i))
		}
		return loadDetected(src, path, obID)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDetectType, dt)
	}
}

// boxFrom fills [vmin,vmax) x [umin,umax) of the stored mask's extent.
// The upper bounds are exclusive, so the last set row and column of the
// stored mask fall outside the box.
func boxFrom(stored *Mask) (*Mask, error) {
	if stored == nil {
		return nil, ErrNoMask
	}
	bb, ok := stored.BoundingBox()
	if !ok {
		return nil, fmt.Errorf("%w: stored mask is empty", ErrNoMask)
	}
	valid := New(stored.W, stored.H)
	valid.Fill(bb)
	return valid, nil
}

func openDetected(src Source, path string) (io.ReadCloser, error) {
	if o, ok := src.(FileOpener); ok {
		return o.OpenFile(path)
	}
	return os.Open(path)
}

func loadDetected(src Source, path string, obID int) (*Mask, error) {
	f, err := openDetected(src, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoMask, path)
		}
		return nil, fmt.Errorf("open detected mask: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode detected mask %s: %w", path, err)
	}
	id := uint16(obID)
	return FromImage(img, func(v uint16) bool { return v == id }), nil
}
