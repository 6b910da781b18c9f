package dataset

import (
	"errors"
	"image"

	"github.com/banshee-data/posebench/internal/geom"
	"github.com/banshee-data/posebench/internal/mask"
)

var (
	// ErrNoIntrinsics is returned when a frame has no camera matrix.
	ErrNoIntrinsics = errors.New("intrinsics not found")
	// ErrNoGroundTruth is returned when a frame has no pose for an object.
	ErrNoGroundTruth = errors.New("ground truth pose not found")
	// ErrNoDepth is returned when a frame has no depth image.
	ErrNoDepth = errors.New("depth not found")
	// ErrNoMask aliases mask.ErrNoMask so callers need only this package.
	ErrNoMask = mask.ErrNoMask
)

// Reader is the per-video frame accessor the estimation loop consumes.
type Reader interface {
	mask.Source

	// VideoID identifies the video (sequence or scene) being read.
	VideoID() string
	// Len is the number of frames.
	Len() int
	// IDStr is the frame id of frame i, the colour file's base name.
	IDStr(i int) string
	// Color decodes the colour image of frame i.
	Color(i int) (image.Image, error)
	// Depth returns frame i's depth in metres.
	Depth(i int) (*DepthMap, error)
	// K returns frame i's camera matrix or ErrNoIntrinsics.
	K(i int) (geom.Intrinsics, error)
	// GTPose returns the ground-truth pose of obID in frame i or
	// ErrNoGroundTruth.
	GTPose(i, obID int) (geom.Pose, error)
}
