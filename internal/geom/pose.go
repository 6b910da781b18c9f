// Package geom holds the rigid-transform and camera types shared by the
// dataset readers, the estimator client and the result store.
package geom

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// MatrixValidationTolerance is the tolerance for checking rotation matrix validity.
const MatrixValidationTolerance = 0.01

// Pose is a 4x4 homogeneous rigid transform stored row-major:
// m00,m01,m02,m03, m10,... The identity matrix doubles as the
// "not estimated" sentinel.
type Pose struct {
	T [16]float64
}

// Identity returns the identity transform.
func Identity() Pose {
	return Pose{T: [16]float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}}
}

// PoseFromRowMajor builds a pose from 16 row-major values.
func PoseFromRowMajor(v []float64) (Pose, error) {
	if len(v) != 16 {
		return Pose{}, fmt.Errorf("pose needs 16 values, got %d", len(v))
	}
	var p Pose
	copy(p.T[:], v)
	return p, nil
}

// PoseFromRt builds a pose from a row-major 3x3 rotation and a translation.
func PoseFromRt(r [9]float64, t [3]float64) Pose {
	return Pose{T: [16]float64{
		r[0], r[1], r[2], t[0],
		r[3], r[4], r[5], t[1],
		r[6], r[7], r[8], t[2],
		0, 0, 0, 1,
	}}
}

// PoseFromDense converts a 4x4 gonum matrix.
func PoseFromDense(m mat.Matrix) (Pose, error) {
	r, c := m.Dims()
	if r != 4 || c != 4 {
		return Pose{}, fmt.Errorf("pose matrix must be 4x4, got %dx%d", r, c)
	}
	var p Pose
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			p.T[i*4+j] = m.At(i, j)
		}
	}
	return p, nil
}

// Dense returns the pose as a gonum matrix.
func (p Pose) Dense() *mat.Dense {
	data := make([]float64, 16)
	copy(data, p.T[:])
	return mat.NewDense(4, 4, data)
}

// At returns element (i, j).
func (p Pose) At(i, j int) float64 { return p.T[i*4+j] }

// IsIdentity reports whether p is exactly the identity sentinel.
func (p Pose) IsIdentity() bool {
	return p.T == Identity().T
}

// IsZero reports whether the pose was never set.
func (p Pose) IsZero() bool {
	return p.T == [16]float64{}
}

// Mul returns p·q.
func (p Pose) Mul(q Pose) Pose {
	var out mat.Dense
	out.Mul(p.Dense(), q.Dense())
	r, _ := PoseFromDense(&out)
	return r
}

// Inverse returns the rigid inverse [Rᵀ | -Rᵀt].
func (p Pose) Inverse() Pose {
	rt := mat.DenseCopyOf(p.rotationDense().T())
	t := mat.NewVecDense(3, []float64{p.T[3], p.T[7], p.T[11]})
	var nt mat.VecDense
	nt.MulVec(rt, t)
	nt.ScaleVec(-1, &nt)

	var out Pose
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out.T[i*4+j] = rt.At(i, j)
		}
		out.T[i*4+3] = nt.AtVec(i)
	}
	out.T[15] = 1
	return out
}

// Apply transforms point (x,y,z).
func (p Pose) Apply(x, y, z float64) (wx, wy, wz float64) {
	T := p.T
	wx = T[0]*x + T[1]*y + T[2]*z + T[3]
	wy = T[4]*x + T[5]*y + T[6]*z + T[7]
	wz = T[8]*x + T[9]*y + T[10]*z + T[11]
	return
}

// Rotation returns the row-major 3x3 rotation block.
func (p Pose) Rotation() [9]float64 {
	T := p.T
	return [9]float64{T[0], T[1], T[2], T[4], T[5], T[6], T[8], T[9], T[10]}
}

// Translation returns the translation column.
func (p Pose) Translation() [3]float64 {
	return [3]float64{p.T[3], p.T[7], p.T[11]}
}

func (p Pose) rotationDense() *mat.Dense {
	r := p.Rotation()
	return mat.NewDense(3, 3, r[:])
}

// Rows returns the pose as four rows of four values, the shape written to
// result files.
func (p Pose) Rows() [][]float64 {
	rows := make([][]float64, 4)
	for i := range rows {
		rows[i] = append([]float64(nil), p.T[i*4:i*4+4]...)
	}
	return rows
}

// PoseFromRows is the inverse of Rows.
func PoseFromRows(rows [][]float64) (Pose, error) {
	if len(rows) != 4 {
		return Pose{}, fmt.Errorf("pose needs 4 rows, got %d", len(rows))
	}
	var p Pose
	for i, row := range rows {
		if len(row) != 4 {
			return Pose{}, fmt.Errorf("pose row %d needs 4 values, got %d", i, len(row))
		}
		copy(p.T[i*4:], row)
	}
	return p, nil
}

// String formats the pose as four bracketed rows.
func (p Pose) String() string {
	return fmt.Sprintf("%v", mat.Formatted(p.Dense(), mat.Squeeze()))
}

// IsValidTransform checks for an orthonormal rotation block with det ≈ 1
// and a last row of [0 0 0 1].
func (p Pose) IsValidTransform() bool {
	det := mat.Det(p.rotationDense())
	if math.Abs(det-1.0) > MatrixValidationTolerance {
		return false
	}
	T := p.T
	if T[12] != 0 || T[13] != 0 || T[14] != 0 || math.Abs(T[15]-1.0) > 0.001 {
		return false
	}
	return true
}

// RotationErrorDeg returns the geodesic angle between the rotation blocks of
// a and b, in degrees.
func RotationErrorDeg(a, b Pose) float64 {
	var rel mat.Dense
	rel.Mul(a.rotationDense().T(), b.rotationDense())
	c := (mat.Trace(&rel) - 1) / 2
	c = math.Max(-1, math.Min(1, c))
	return math.Acos(c) * 180 / math.Pi
}

// TranslationError returns the Euclidean distance between the translations
// of a and b.
func TranslationError(a, b Pose) float64 {
	ta, tb := a.Translation(), b.Translation()
	d := mat.NewVecDense(3, []float64{ta[0] - tb[0], ta[1] - tb[1], ta[2] - tb[2]})
	return mat.Norm(d, 2)
}
