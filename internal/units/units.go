package units

import "sort"

// kilogramFactors maps metric unit short codes to their multiplier into kilograms.
// Volume units use the same fixed factors the reference data was calibrated with.
var kilogramFactors = map[string]float64{
	"kg":     1,
	"g":      1.0 / 1000,
	"mg":     1.0 / 1000000,
	"lb":     0.453592,
	"oz":     0.0283495,
	"tsp":    0.000004929,
	"tbsp":   0.00001479,
	"cup":    0.000236588,
	"ml":     0.000001,
	"l":      0.001,
	"clove":  0.0055,
	"cloves": 0.0055,
}

// ToKilograms converts quantity expressed in unit to kilograms.
// Unrecognized units contribute no mass and return 0.
func ToKilograms(unit string, quantity float64) float64 {
	factor, ok := kilogramFactors[unit]
	if !ok {
		return 0
	}
	return quantity * factor
}

// Factor returns the kilogram multiplier for unit
func Factor(unit string) (float64, bool) {
	factor, ok := kilogramFactors[unit]
	return factor, ok
}

// Known returns every recognized unit code in sorted order
func Known() []string {
	codes := make([]string, 0, len(kilogramFactors))
	for code := range kilogramFactors {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
