package geom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentity(t *testing.T) {
	p := Identity()
	if !p.IsIdentity() {
		t.Fatal("expected identity")
	}
	if p.IsZero() {
		t.Fatal("identity should not be zero")
	}
	if !p.IsValidTransform() {
		t.Fatal("identity should be a valid transform")
	}
}

func TestPoseFromRt(t *testing.T) {
	r := [9]float64{0, -1, 0, 1, 0, 0, 0, 0, 1}
	p := PoseFromRt(r, [3]float64{0.1, 0.2, 0.3})

	assert.Equal(t, r, p.Rotation())
	assert.Equal(t, [3]float64{0.1, 0.2, 0.3}, p.Translation())
	assert.True(t, p.IsValidTransform())
	assert.False(t, p.IsIdentity())

	x, y, z := p.Apply(1, 0, 0)
	assert.InDelta(t, 0.1, x, 1e-12)
	assert.InDelta(t, 1.2, y, 1e-12)
	assert.InDelta(t, 0.3, z, 1e-12)
}

func TestPoseFromRowMajor_WrongLength(t *testing.T) {
	_, err := PoseFromRowMajor([]float64{1, 2, 3})
	require.Error(t, err)
}

func TestPoseInverse(t *testing.T) {
	p := RotationAbout([3]float64{0, 0, 1}, math.Pi/3)
	p.T[3], p.T[7], p.T[11] = 1, 2, 3

	got := p.Mul(p.Inverse())
	for i := range got.T {
		assert.InDelta(t, Identity().T[i], got.T[i], 1e-9, "element %d", i)
	}
}

func TestRowsRoundTrip(t *testing.T) {
	p := PoseFromRt([9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}, [3]float64{4, 5, 6})
	rows := p.Rows()
	require.Len(t, rows, 4)
	assert.Equal(t, []float64{0, 0, 0, 1}, rows[3])

	back, err := PoseFromRows(rows)
	require.NoError(t, err)
	assert.Equal(t, p, back)

	_, err = PoseFromRows(rows[:3])
	assert.Error(t, err)
	_, err = PoseFromRows([][]float64{{1}, {1}, {1}, {1}})
	assert.Error(t, err)
}

func TestIsValidTransform_Reflection(t *testing.T) {
	p := PoseFromRt([9]float64{-1, 0, 0, 0, 1, 0, 0, 0, 1}, [3]float64{})
	if p.IsValidTransform() {
		t.Error("reflection should not be a valid rigid transform")
	}

	q := Identity()
	q.T[12] = 1
	if q.IsValidTransform() {
		t.Error("non-homogeneous last row should be invalid")
	}
}

func TestErrors(t *testing.T) {
	a := Identity()
	b := RotationAbout([3]float64{1, 0, 0}, math.Pi/2)
	b.T[3] = 0.03
	b.T[7] = 0.04

	assert.InDelta(t, 90, RotationErrorDeg(a, b), 1e-9)
	assert.InDelta(t, 0.05, TranslationError(a, b), 1e-12)
	assert.InDelta(t, 0, RotationErrorDeg(b, b), 1e-4)
}

func TestPoseString(t *testing.T) {
	s := Identity().String()
	assert.Contains(t, s, "1")
}
