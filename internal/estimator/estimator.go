// Package estimator defines the contract between the driver and an external
// 6-DoF pose estimator, plus a gRPC transport and a ground-truth oracle.
package estimator

import (
	"context"
	"errors"
	"image"
	"sync"

	"github.com/golang/geo/r3"

	"github.com/banshee-data/posebench/internal/dataset"
	"github.com/banshee-data/posebench/internal/geom"
	"github.com/banshee-data/posebench/internal/mask"
	"github.com/banshee-data/posebench/internal/mesh"
)

// ErrNotReady is returned by Register before any ResetObject.
var ErrNotReady = errors.New("estimator: no object loaded")

// Estimator registers one object at a time. ResetObject loads the model
// that subsequent Register calls estimate.
type Estimator interface {
	ResetObject(ctx context.Context, obj *Object) error
	Register(ctx context.Context, obs *Observation) (geom.Pose, error)
	Close() error
}

// Object is the model handed to ResetObject.
type Object struct {
	ID          int
	Points      []r3.Vector
	Normals     []r3.Vector
	SymmetryTFs []geom.Pose
	Mesh        *mesh.Mesh
}

// NewObject builds an Object whose points and normals are the mesh's.
func NewObject(id int, m *mesh.Mesh, symmetry []geom.Pose) *Object {
	return &Object{
		ID:          id,
		Points:      m.Vertices,
		Normals:     m.Normals,
		SymmetryTFs: symmetry,
		Mesh:        m,
	}
}

// Observation is one frame to register. GTPose is nil when the dataset has
// no ground truth for the object.
type Observation struct {
	K        geom.Intrinsics
	Color    image.Image
	Depth    *dataset.DepthMap
	Mask     *mask.Mask
	ObjectID int
	GTPose   *geom.Pose
}

type deviceKey struct{}

// WithDevice tags ctx with the compute device the estimator should use.
func WithDevice(ctx context.Context, device string) context.Context {
	if device == "" {
		return ctx
	}
	return context.WithValue(ctx, deviceKey{}, device)
}

// DeviceFromContext returns the device set by WithDevice, or "".
func DeviceFromContext(ctx context.Context) string {
	d, _ := ctx.Value(deviceKey{}).(string)
	return d
}

// Oracle answers every Register with the observation's ground truth. It
// exercises the full pipeline without a model.
type Oracle struct {
	mu     sync.Mutex
	object *Object
	resets int
	calls  int
}

// NewOracle returns an empty Oracle.
func NewOracle() *Oracle { return &Oracle{} }

func (o *Oracle) ResetObject(ctx context.Context, obj *Object) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.object = obj
	o.resets++
	return nil
}

func (o *Oracle) Register(ctx context.Context, obs *Observation) (geom.Pose, error) {
	if err := ctx.Err(); err != nil {
		return geom.Pose{}, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.object == nil {
		return geom.Pose{}, ErrNotReady
	}
	o.calls++
	if obs.GTPose == nil {
		return geom.Identity(), nil
	}
	return *obs.GTPose, nil
}

func (o *Oracle) Close() error { return nil }

// Stats returns the number of resets and registrations served.
func (o *Oracle) Stats() (resets, calls int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.resets, o.calls
}

// Object returns the currently loaded object, nil before the first reset.
func (o *Oracle) Object() *Object {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.object
}
