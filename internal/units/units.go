// Package units converts between the length units used by the datasets
// (millimetres), the estimator and result files (metres) and reports
// (centimetres).
package units

// Unit constants
const (
	M  = "m"
	CM = "cm"
	MM = "mm"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{M, CM, MM}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "m, cm, mm"
}

// perMetre is how many of each unit make one metre.
var perMetre = map[string]float64{M: 1, CM: 100, MM: 1000}

// ToMetres converts v from unit to metres. Unknown units are treated as
// metres.
func ToMetres(v float64, unit string) float64 {
	if f, ok := perMetre[unit]; ok {
		return v / f
	}
	return v
}

// FromMetres converts v metres to unit. Unknown units are treated as metres.
func FromMetres(v float64, unit string) float64 {
	if f, ok := perMetre[unit]; ok {
		return v * f
	}
	return v
}

// MMToM converts millimetres to metres.
func MMToM(v float64) float64 { return v / 1000 }

// MToCM converts metres to centimetres.
func MToCM(v float64) float64 { return v * 100 }
