package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToKilograms(t *testing.T) {
	tests := []struct {
		unit     string
		quantity float64
		expected float64
	}{
		{"kg", 2, 2},
		{"g", 250, 0.25},
		{"mg", 500, 0.0005},
		{"lb", 1, 0.453592},
		{"oz", 2, 0.056699},
		{"tsp", 1, 0.000004929},
		{"tbsp", 2, 0.00002958},
		{"cup", 1, 0.000236588},
		{"ml", 100, 0.0001},
		{"l", 1.5, 0.0015},
		{"clove", 1, 0.0055},
		{"cloves", 3, 0.0165},
	}

	for _, tt := range tests {
		t.Run(tt.unit, func(t *testing.T) {
			assert.InDelta(t, tt.expected, ToKilograms(tt.unit, tt.quantity), 1e-12)
		})
	}
}

func TestToKilograms_UnknownUnit(t *testing.T) {
	tests := []struct {
		name string
		unit string
	}{
		{"empty", ""},
		{"serving", "serving"},
		{"uppercase", "KG"},
		{"padded", " g"},
		{"pinch", "pinch"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, 0.0, ToKilograms(tt.unit, 42))
		})
	}
}

func TestFactor(t *testing.T) {
	factor, ok := Factor("lb")
	assert.True(t, ok)
	assert.Equal(t, 0.453592, factor)

	factor, ok = Factor("stone")
	assert.False(t, ok)
	assert.Equal(t, 0.0, factor)
}

func TestKnown(t *testing.T) {
	codes := Known()
	assert.Len(t, codes, 12)
	assert.IsIncreasing(t, codes)
	assert.Contains(t, codes, "cloves")
	assert.Contains(t, codes, "tbsp")
}
