package geom

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Intrinsics is a 3x3 pinhole camera matrix K, row-major.
type Intrinsics struct {
	K [9]float64
}

// IntrinsicsFromSlice builds K from nine row-major values (the cam_K layout
// used by the dataset info files).
func IntrinsicsFromSlice(v []float64) (Intrinsics, error) {
	if len(v) != 9 {
		return Intrinsics{}, fmt.Errorf("intrinsics need 9 values, got %d", len(v))
	}
	var k Intrinsics
	copy(k.K[:], v)
	if k.K[8] == 0 {
		return Intrinsics{}, fmt.Errorf("intrinsics K[2][2] is zero")
	}
	return k, nil
}

func (k Intrinsics) Fx() float64 { return k.K[0] }
func (k Intrinsics) Fy() float64 { return k.K[4] }
func (k Intrinsics) Cx() float64 { return k.K[2] }
func (k Intrinsics) Cy() float64 { return k.K[5] }

// Dense returns K as a gonum matrix.
func (k Intrinsics) Dense() *mat.Dense {
	data := make([]float64, 9)
	copy(data, k.K[:])
	return mat.NewDense(3, 3, data)
}

// Project maps a camera-space point to pixel coordinates. ok is false for
// points at or behind the camera plane.
func (k Intrinsics) Project(x, y, z float64) (u, v float64, ok bool) {
	if z <= 0 {
		return 0, 0, false
	}
	var uvw mat.VecDense
	uvw.MulVec(k.Dense(), mat.NewVecDense(3, []float64{x, y, z}))
	return uvw.AtVec(0) / uvw.AtVec(2), uvw.AtVec(1) / uvw.AtVec(2), true
}

// Rows returns K as three rows of three values.
func (k Intrinsics) Rows() [][]float64 {
	return [][]float64{
		append([]float64(nil), k.K[0:3]...),
		append([]float64(nil), k.K[3:6]...),
		append([]float64(nil), k.K[6:9]...),
	}
}
