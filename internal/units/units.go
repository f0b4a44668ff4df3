// Package units provides shared constants and validation for length units
package units

import "strings"

// Unit constants
const (
	Meters      = "m"
	Centimeters = "cm"
	Millimeters = "mm"
	Inches      = "in"
)

// ValidLengthUnits contains all valid unit values
var ValidLengthUnits = []string{Meters, Centimeters, Millimeters, Inches}

// IsValidLength checks if the given unit is in the list of valid units
func IsValidLength(unit string) bool {
	for _, validUnit := range ValidLengthUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidLengthUnitsString returns a comma-separated string of valid units for error messages
func GetValidLengthUnitsString() string {
	return strings.Join(ValidLengthUnits, ", ")
}

// ConvertLength converts a length in metres to the target units.
// Measurements are stored in metres.
func ConvertLength(meters float64, targetUnits string) float64 {
	switch targetUnits {
	case Centimeters:
		return meters * 100
	case Millimeters:
		return meters * 1000
	case Inches:
		return meters / 0.0254
	default:
		return meters
	}
}

// LengthLabel returns the word used in report lines for the unit.
func LengthLabel(unit string) string {
	switch unit {
	case Centimeters:
		return "centimeters"
	case Millimeters:
		return "millimeters"
	case Inches:
		return "inches"
	default:
		return "meters"
	}
}
