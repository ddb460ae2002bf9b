package types

// EmissionsPerKilogramField is the record field holding the per-kilogram
// emission factor. The name matches the prepared reference data verbatim.
const EmissionsPerKilogramField = "GHG emissions per kilogram (Poore & Nemecek, 2018)"

// EmissionRecord is one row of the emissions reference table.
// Descriptive and statistical fields are carried through as decoded;
// only EmissionsPerKilogramField takes part in calculations.
type EmissionRecord map[string]interface{}

// PerKilogram returns the emission factor in kg CO2e per kg of food
func (r EmissionRecord) PerKilogram() (float64, bool) {
	if r == nil {
		return 0, false
	}
	value, exists := r[EmissionsPerKilogramField]
	if !exists {
		return 0, false
	}
	return ToFloat(value)
}

// IngredientQuantity is a single resolved ingredient of a compound food
type IngredientQuantity struct {
	Name      string  `json:"name"`
	Amount    float64 `json:"amount"`
	Unit      string  `json:"unit"`
	Kilograms float64 `json:"kilograms"`
}

// ToFloat normalizes the numeric representations produced by the JSON, YAML,
// msgpack and DuckDB decoders into a float64.
func ToFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	default:
		return 0, false
	}
}
