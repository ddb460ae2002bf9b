package reference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/noot-app/food-emissions-mcp-server/internal/types"
)

var (
	// ErrUnsupportedFormat is returned for reference files with an unknown extension
	ErrUnsupportedFormat = errors.New("unsupported reference file format")
	// ErrEmptyTable is reported by HealthCheck when a table holds no entries
	ErrEmptyTable = errors.New("reference table is empty")
	// ErrMalformedRecord is returned when an emissions record has no numeric factor
	ErrMalformedRecord = errors.New("malformed emissions record")
)

// Reference holds the emission factor and default weight tables.
// Both maps are filled once at construction and only read afterwards,
// so a Reference may be shared between goroutines.
type Reference struct {
	factors map[string]types.EmissionRecord
	weights map[string]float64
}

// Stats summarizes the loaded tables
type Stats struct {
	Factors int `json:"factors"`
	Weights int `json:"weights"`
}

// New builds a Reference from in-memory tables. The maps are copied.
func New(factors map[string]types.EmissionRecord, weights map[string]float64) *Reference {
	r := &Reference{
		factors: make(map[string]types.EmissionRecord, len(factors)),
		weights: make(map[string]float64, len(weights)),
	}
	for name, record := range factors {
		r.factors[name] = record
	}
	for name, weight := range weights {
		r.weights[name] = weight
	}
	return r
}

// Load reads the emissions and weights files eagerly. Any failure is fatal
// to construction and returned to the caller.
func Load(ctx context.Context, emissionsPath, weightsPath string, logger *slog.Logger) (*Reference, error) {
	start := time.Now()
	logger.Debug("Loading reference data", "emissions_path", emissionsPath, "weights_path", weightsPath)

	factors, err := loadEmissions(ctx, emissionsPath)
	if err != nil {
		logger.Error("Failed to load emissions table", "path", emissionsPath, "error", err)
		return nil, fmt.Errorf("failed to load emissions from %s: %w", emissionsPath, err)
	}

	weights, err := loadWeights(ctx, weightsPath)
	if err != nil {
		logger.Error("Failed to load weights table", "path", weightsPath, "error", err)
		return nil, fmt.Errorf("failed to load weights from %s: %w", weightsPath, err)
	}

	r := &Reference{factors: factors, weights: weights}
	logger.Info("Reference data loaded",
		"factors", len(factors),
		"weights", len(weights),
		"duration", time.Since(start))
	return r, nil
}

// Factor returns the per-kilogram emission factor for name
func (r *Reference) Factor(name string) (float64, bool) {
	record, ok := r.factors[name]
	if !ok {
		return 0, false
	}
	return record.PerKilogram()
}

// Record returns the full emissions record for name
func (r *Reference) Record(name string) (types.EmissionRecord, bool) {
	record, ok := r.factors[name]
	return record, ok
}

// Weight returns the default weight in kilograms for name
func (r *Reference) Weight(name string) (float64, bool) {
	weight, ok := r.weights[name]
	return weight, ok
}

// Stats returns the number of entries in each table
func (r *Reference) Stats() Stats {
	return Stats{Factors: len(r.factors), Weights: len(r.weights)}
}

// HealthCheck reports whether both tables hold data
func (r *Reference) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(r.factors) == 0 {
		return fmt.Errorf("emissions: %w", ErrEmptyTable)
	}
	if len(r.weights) == 0 {
		return fmt.Errorf("weights: %w", ErrEmptyTable)
	}
	return nil
}
