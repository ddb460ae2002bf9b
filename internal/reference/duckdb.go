package reference

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"

	"github.com/marcboeker/go-duckdb/v2"
	"github.com/noot-app/food-emissions-mcp-server/internal/types"
)

const (
	// EntityColumn names the item column in raw CSV and parquet tables
	EntityColumn = "Entity"
	// codeColumn is the country/dataset code column dropped from raw emissions tables
	codeColumn = "Code"
)

// table is the decoded result of a DuckDB scan
type table struct {
	columns []string
	rows    [][]interface{}
}

// scanTable reads a CSV or parquet file through an in-memory DuckDB instance
func scanTable(ctx context.Context, f format, path string) (*table, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}
	defer db.Close()

	query := `SELECT * FROM read_csv_auto(?)`
	if f == formatParquet {
		query = `SELECT * FROM read_parquet(?)`
	}

	rows, err := db.QueryContext(ctx, query, path)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	t := &table{columns: columns}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		for i, v := range values {
			values[i] = normalizeValue(v)
		}
		t.rows = append(t.rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return t, nil
}

// normalizeValue converts DECIMAL and HUGEINT results to float64 so they
// read as numbers outside this package
func normalizeValue(v interface{}) interface{} {
	switch n := v.(type) {
	case duckdb.Decimal:
		return n.Float64()
	case *big.Int:
		if n == nil {
			return nil
		}
		f, _ := new(big.Float).SetInt(n).Float64()
		return f
	default:
		return v
	}
}

func (t *table) entityIndex() (int, error) {
	for i, column := range t.columns {
		if column == EntityColumn {
			return i, nil
		}
	}
	return 0, fmt.Errorf("missing %q column", EntityColumn)
}

// loadEmissionsTable keys every row by its Entity column. Remaining columns,
// apart from Code, become the record's fields.
func loadEmissionsTable(ctx context.Context, f format, path string) (map[string]types.EmissionRecord, error) {
	t, err := scanTable(ctx, f, path)
	if err != nil {
		return nil, err
	}
	key, err := t.entityIndex()
	if err != nil {
		return nil, err
	}

	factors := make(map[string]types.EmissionRecord, len(t.rows))
	for _, row := range t.rows {
		name, ok := row[key].(string)
		if !ok || name == "" {
			continue
		}
		record := make(types.EmissionRecord, len(t.columns)-1)
		for i, column := range t.columns {
			if i == key || column == codeColumn {
				continue
			}
			record[column] = row[i]
		}
		factors[name] = record
	}
	if err := validateEmissions(factors); err != nil {
		return nil, err
	}
	return factors, nil
}

// loadWeightsTable reads the first numeric column after Entity as the weight
func loadWeightsTable(ctx context.Context, f format, path string) (map[string]float64, error) {
	t, err := scanTable(ctx, f, path)
	if err != nil {
		return nil, err
	}
	key, err := t.entityIndex()
	if err != nil {
		return nil, err
	}
	if len(t.columns) < 2 {
		return nil, fmt.Errorf("weights table needs a value column besides %q", EntityColumn)
	}

	weights := make(map[string]float64, len(t.rows))
	for _, row := range t.rows {
		name, ok := row[key].(string)
		if !ok || name == "" {
			continue
		}
		for i := range t.columns {
			if i == key {
				continue
			}
			if weight, ok := types.ToFloat(row[i]); ok {
				weights[name] = weight
				break
			}
		}
	}
	return weights, nil
}
