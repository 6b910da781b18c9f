package geom

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/posebench/internal/units"
)

// DefaultSymmetryStepDeg is the angular step used to discretise continuous
// symmetries.
const DefaultSymmetryStepDeg = 5.0

// ContinuousSymmetry is a rotational symmetry about Axis through Offset.
type ContinuousSymmetry struct {
	Axis   [3]float64 `yaml:"axis" json:"axis"`
	Offset [3]float64 `yaml:"offset" json:"offset"`
}

// SymmetryInfo mirrors the symmetry fields of a models_info entry.
// Discrete transforms are row-major 4x4 with translation in millimetres.
type SymmetryInfo struct {
	Discrete   [][]float64          `yaml:"symmetries_discrete" json:"symmetries_discrete"`
	Continuous []ContinuousSymmetry `yaml:"symmetries_continuous" json:"symmetries_continuous"`
}

// RotationAbout returns the rotation of angle radians about axis (Rodrigues).
// A zero axis yields the identity.
func RotationAbout(axis [3]float64, angle float64) Pose {
	n := math.Sqrt(axis[0]*axis[0] + axis[1]*axis[1] + axis[2]*axis[2])
	if n == 0 {
		return Identity()
	}
	x, y, z := axis[0]/n, axis[1]/n, axis[2]/n

	K := mat.NewDense(3, 3, []float64{
		0, -z, y,
		z, 0, -x,
		-y, x, 0,
	})
	var K2 mat.Dense
	K2.Mul(K, K)

	R := mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	var sK, cK mat.Dense
	sK.Scale(math.Sin(angle), K)
	cK.Scale(1-math.Cos(angle), &K2)
	R.Add(R, &sK)
	R.Add(R, &cK)

	var r [9]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i*3+j] = R.At(i, j)
		}
	}
	return PoseFromRt(r, [3]float64{})
}

// SymmetryTransforms expands info into the list of object-frame transforms
// under which the object looks the same. The identity is always first.
// Discrete translations are converted from millimetres to metres; each
// continuous symmetry contributes one rotation per stepDeg (excluding 0).
func SymmetryTransforms(info SymmetryInfo, stepDeg float64) []Pose {
	if stepDeg <= 0 {
		stepDeg = DefaultSymmetryStepDeg
	}
	tfs := []Pose{Identity()}

	for _, d := range info.Discrete {
		p, err := PoseFromRowMajor(d)
		if err != nil {
			continue
		}
		p.T[3] = units.MMToM(p.T[3])
		p.T[7] = units.MMToM(p.T[7])
		p.T[11] = units.MMToM(p.T[11])
		tfs = append(tfs, p)
	}

	for _, c := range info.Continuous {
		for deg := stepDeg; deg < 360; deg += stepDeg {
			p := RotationAbout(c.Axis, deg*math.Pi/180)
			p.T[3], p.T[7], p.T[11] = c.Offset[0], c.Offset[1], c.Offset[2]
			tfs = append(tfs, p)
		}
	}
	return tfs
}
