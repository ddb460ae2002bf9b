package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmissionRecord_PerKilogram(t *testing.T) {
	tests := []struct {
		name          string
		record        EmissionRecord
		expected      float64
		expectedFound bool
	}{
		{
			name:          "float factor",
			record:        EmissionRecord{EmissionsPerKilogramField: 59.6, "Land use per kilogram": 326.21},
			expected:      59.6,
			expectedFound: true,
		},
		{
			name:          "integer factor from yaml",
			record:        EmissionRecord{EmissionsPerKilogramField: 3},
			expected:      3,
			expectedFound: true,
		},
		{
			name:          "msgpack unsigned factor",
			record:        EmissionRecord{EmissionsPerKilogramField: uint8(7)},
			expected:      7,
			expectedFound: true,
		},
		{
			name:          "missing field",
			record:        EmissionRecord{"Land use per kilogram": 1.0},
			expectedFound: false,
		},
		{
			name:          "non numeric field",
			record:        EmissionRecord{EmissionsPerKilogramField: "high"},
			expectedFound: false,
		},
		{
			name:          "nil field",
			record:        EmissionRecord{EmissionsPerKilogramField: nil},
			expectedFound: false,
		},
		{
			name:          "nil record",
			record:        nil,
			expectedFound: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, found := tt.record.PerKilogram()
			assert.Equal(t, tt.expectedFound, found)
			assert.Equal(t, tt.expected, value)
		})
	}
}

func TestEmissionRecord_DecodesPreparedJSON(t *testing.T) {
	raw := `{
		"Beef (beef herd)": {
			"Year": 2010,
			"GHG emissions per kilogram (Poore & Nemecek, 2018)": 99.48
		}
	}`

	var records map[string]EmissionRecord
	require.NoError(t, json.Unmarshal([]byte(raw), &records))

	beef, ok := records["Beef (beef herd)"]
	require.True(t, ok)

	factor, ok := beef.PerKilogram()
	assert.True(t, ok)
	assert.Equal(t, 99.48, factor)
	assert.Equal(t, float64(2010), beef["Year"])
}
