// Package calculator estimates greenhouse-gas emissions for lists of items.
//
// FoodCalculator multiplies per-kilogram emission factors by default item
// weights and falls back to a recipe decomposition for items that have a
// known weight but no emission factor of their own. Calculations never fail:
// anything that cannot be scored contributes zero.
package calculator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/noot-app/food-emissions-mcp-server/internal/recipe"
	"github.com/noot-app/food-emissions-mcp-server/internal/reference"
)

// Calculator is the capability shared by every emissions calculator
type Calculator interface {
	Calculate(ctx context.Context, items []string) float64
}

// Source describes how an item's contribution was obtained
type Source string

const (
	SourceDirect         Source = "direct"
	SourceCompound       Source = "compound"
	SourceCompoundFailed Source = "compound_failed"
	SourceUnknown        Source = "unknown"
)

// Contribution is the emissions attributed to one requested item
type Contribution struct {
	Item      string  `json:"item"`
	Source    Source  `json:"source"`
	Emissions float64 `json:"emissions"`
	Error     string  `json:"error,omitempty"`
}

// Breakdown is a calculation total with its per-item contributions
type Breakdown struct {
	ID            string         `json:"calculation_id"`
	Total         float64        `json:"total"`
	Contributions []Contribution `json:"items"`
}

// CompoundResult is the outcome of decomposing a compound food
type CompoundResult struct {
	Food        string
	Emissions   float64
	Ingredients int
	Matched     int
	Err         error
}

// Value is the emissions to count for the compound food. Failed resolutions count as zero.
func (r CompoundResult) Value() float64 {
	if r.Err != nil {
		return 0
	}
	return r.Emissions
}

// FoodCalculator scores food items against the emissions reference
type FoodCalculator struct {
	ref      *reference.Reference
	resolver recipe.Resolver
	log      *slog.Logger
}

// Ensure FoodCalculator implements Calculator
var _ Calculator = (*FoodCalculator)(nil)

// New creates a food calculator over ref, using resolver for compound foods
func New(ref *reference.Reference, resolver recipe.Resolver, logger *slog.Logger) *FoodCalculator {
	return &FoodCalculator{
		ref:      ref,
		resolver: resolver,
		log:      logger,
	}
}

// Reference returns the reference tables the calculator reads
func (c *FoodCalculator) Reference() *reference.Reference {
	return c.ref
}

// Calculate returns the summed emissions for items
func (c *FoodCalculator) Calculate(ctx context.Context, items []string) float64 {
	return c.CalculateWith(ctx, items, "")
}

// CalculateWith scores either a list of items or a single compound food.
// Callers are expected to supply only one of the two. When both are given,
// a non-empty items list takes precedence and singleFood is ignored.
func (c *FoodCalculator) CalculateWith(ctx context.Context, items []string, singleFood string) float64 {
	return c.Explain(ctx, items, singleFood).Total
}

// Explain performs the same calculation as CalculateWith and reports how
// each item contributed to the total.
func (c *FoodCalculator) Explain(ctx context.Context, items []string, singleFood string) Breakdown {
	start := time.Now()
	breakdown := Breakdown{
		ID:            uuid.NewString(),
		Contributions: []Contribution{},
	}
	log := c.log.With("calculation_id", breakdown.ID)

	switch {
	case len(items) > 0:
		for _, item := range items {
			contribution := c.scoreItem(ctx, log, item)
			breakdown.Total += contribution.Emissions
			breakdown.Contributions = append(breakdown.Contributions, contribution)
		}
	case singleFood != "":
		contribution := c.scoreCompound(ctx, log, singleFood)
		breakdown.Total = contribution.Emissions
		breakdown.Contributions = append(breakdown.Contributions, contribution)
	}

	log.Debug("Calculation completed",
		"items", len(items),
		"single_food", singleFood,
		"total", breakdown.Total,
		"duration", time.Since(start))
	return breakdown
}

// scoreItem applies the weight/factor decision table to one item
func (c *FoodCalculator) scoreItem(ctx context.Context, log *slog.Logger, item string) Contribution {
	weight, hasWeight := c.ref.Weight(item)
	if !hasWeight {
		log.Debug("Item has no default weight", "item", item)
		return Contribution{Item: item, Source: SourceUnknown}
	}

	if factor, hasFactor := c.ref.Factor(item); hasFactor {
		return Contribution{Item: item, Source: SourceDirect, Emissions: factor * weight}
	}

	return c.scoreCompound(ctx, log, item)
}

func (c *FoodCalculator) scoreCompound(ctx context.Context, log *slog.Logger, food string) Contribution {
	result := c.resolveCompound(ctx, log, food)
	if result.Err != nil {
		return Contribution{
			Item:   food,
			Source: SourceCompoundFailed,
			Error:  result.Err.Error(),
		}
	}
	return Contribution{Item: food, Source: SourceCompound, Emissions: result.Value()}
}

// ResolveCompound decomposes foodName into ingredients and sums the emissions
// of those with a known factor. Resolution failures are reported in Err and
// never propagated; use Value for the amount to count.
func (c *FoodCalculator) ResolveCompound(ctx context.Context, foodName string) CompoundResult {
	return c.resolveCompound(ctx, c.log, foodName)
}

func (c *FoodCalculator) resolveCompound(ctx context.Context, log *slog.Logger, foodName string) (result CompoundResult) {
	start := time.Now()
	result.Food = foodName

	defer func() {
		if recovered := recover(); recovered != nil {
			result = CompoundResult{Food: foodName, Err: fmt.Errorf("recipe resolution panicked: %v", recovered)}
		}
		if result.Err != nil {
			log.Warn("Compound food resolution failed, counting as zero",
				"food", foodName,
				"error", result.Err,
				"duration", time.Since(start))
		}
	}()

	if c.resolver == nil {
		result.Err = fmt.Errorf("no recipe resolver configured")
		return result
	}

	ingredients, err := c.resolver.ResolveIngredients(ctx, foodName)
	if err != nil {
		result.Err = err
		return result
	}

	result.Ingredients = len(ingredients)
	for name, quantity := range ingredients {
		factor, ok := c.ref.Factor(name)
		if !ok {
			continue
		}
		result.Matched++
		result.Emissions += factor * quantity.Kilograms
	}

	log.Debug("Compound food resolved",
		"food", foodName,
		"ingredients", result.Ingredients,
		"matched", result.Matched,
		"emissions", result.Emissions,
		"duration", time.Since(start))
	return result
}
