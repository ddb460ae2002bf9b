package reference

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/noot-app/food-emissions-mcp-server/internal/types"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

type format int

const (
	formatJSON format = iota
	formatYAML
	formatMsgpack
	formatCSV
	formatParquet
)

func detectFormat(path string) (format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return formatJSON, nil
	case ".yaml", ".yml":
		return formatYAML, nil
	case ".msgpack", ".mpk":
		return formatMsgpack, nil
	case ".csv":
		return formatCSV, nil
	case ".parquet":
		return formatParquet, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// unmarshal decodes a serialized key-value document into out
func unmarshal(f format, data []byte, out interface{}) error {
	switch f {
	case formatJSON:
		return json.Unmarshal(data, out)
	case formatYAML:
		return yaml.Unmarshal(data, out)
	case formatMsgpack:
		return msgpack.Unmarshal(data, out)
	default:
		return fmt.Errorf("%w: not a document format", ErrUnsupportedFormat)
	}
}

func loadEmissions(ctx context.Context, path string) (map[string]types.EmissionRecord, error) {
	f, err := detectFormat(path)
	if err != nil {
		return nil, err
	}

	if f == formatCSV || f == formatParquet {
		return loadEmissionsTable(ctx, f, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var factors map[string]types.EmissionRecord
	if err := unmarshal(f, data, &factors); err != nil {
		return nil, fmt.Errorf("failed to decode emissions: %w", err)
	}
	if factors == nil {
		factors = make(map[string]types.EmissionRecord)
	}
	if err := validateEmissions(factors); err != nil {
		return nil, err
	}
	return factors, nil
}

// validateEmissions rejects records whose factor field is missing or not a number.
// A record without a factor would otherwise be scored as a compound food.
func validateEmissions(factors map[string]types.EmissionRecord) error {
	for name, record := range factors {
		if _, ok := record.PerKilogram(); !ok {
			return fmt.Errorf("%w: %q has no numeric %q", ErrMalformedRecord, name, types.EmissionsPerKilogramField)
		}
	}
	return nil
}

func loadWeights(ctx context.Context, path string) (map[string]float64, error) {
	f, err := detectFormat(path)
	if err != nil {
		return nil, err
	}

	if f == formatCSV || f == formatParquet {
		return loadWeightsTable(ctx, f, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var weights map[string]float64
	if err := unmarshal(f, data, &weights); err != nil {
		return nil, fmt.Errorf("failed to decode weights: %w", err)
	}
	if weights == nil {
		weights = make(map[string]float64)
	}
	return weights, nil
}
