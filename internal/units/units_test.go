package units

import (
	"math"
	"testing"
)

func TestConversions(t *testing.T) {
	tests := []struct {
		v      float64
		unit   string
		metres float64
	}{
		{1000, MM, 1},
		{600, MM, 0.6},
		{5, CM, 0.05},
		{2, M, 2},
		{7, "furlong", 7},
	}
	for _, tt := range tests {
		if got := ToMetres(tt.v, tt.unit); math.Abs(got-tt.metres) > 1e-12 {
			t.Errorf("ToMetres(%v, %q) = %v, want %v", tt.v, tt.unit, got, tt.metres)
		}
		if got := FromMetres(tt.metres, tt.unit); math.Abs(got-tt.v) > 1e-9 {
			t.Errorf("FromMetres(%v, %q) = %v, want %v", tt.metres, tt.unit, got, tt.v)
		}
	}
	if got := MMToM(102.09); math.Abs(got-0.10209) > 1e-12 {
		t.Errorf("MMToM(102.09) = %v", got)
	}
	if got := MToCM(0.05); math.Abs(got-5) > 1e-12 {
		t.Errorf("MToCM(0.05) = %v", got)
	}
}

func TestIsValid(t *testing.T) {
	for _, u := range ValidUnits {
		if !IsValid(u) {
			t.Errorf("IsValid(%q) = false", u)
		}
	}
	if IsValid("mph") {
		t.Error("IsValid(mph) = true")
	}
	if GetValidUnitsString() != "m, cm, mm" {
		t.Errorf("GetValidUnitsString() = %q", GetValidUnitsString())
	}
}
