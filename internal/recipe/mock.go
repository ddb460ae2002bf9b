package recipe

import (
	"context"
	"log/slog"
	"sync"

	"github.com/noot-app/food-emissions-mcp-server/internal/types"
	"github.com/noot-app/food-emissions-mcp-server/internal/units"
)

// MockResolver is an in-memory Resolver for tests and offline runs
type MockResolver struct {
	mu      sync.RWMutex
	recipes map[string]map[string]types.IngredientQuantity
	err     error
	calls   []string
	log     *slog.Logger
}

// Ensure MockResolver implements Resolver
var _ Resolver = (*MockResolver)(nil)

// NewMockResolver creates a mock preloaded with a couple of simple recipes
func NewMockResolver(logger *slog.Logger) *MockResolver {
	m := &MockResolver{
		recipes: make(map[string]map[string]types.IngredientQuantity),
		log:     logger,
	}
	m.SetRecipe("pancakes", []types.IngredientQuantity{
		{Name: "flour", Amount: 100, Unit: "g"},
		{Name: "egg", Amount: 50, Unit: "g"},
		{Name: "milk", Amount: 1, Unit: "cup"},
	})
	m.SetRecipe("garlic bread", []types.IngredientQuantity{
		{Name: "bread", Amount: 200, Unit: "g"},
		{Name: "garlic", Amount: 3, Unit: "cloves"},
		{Name: "butter", Amount: 2, Unit: "tbsp"},
	})
	return m
}

// ResolveIngredients returns the configured recipe for foodName
func (m *MockResolver) ResolveIngredients(ctx context.Context, foodName string) (map[string]types.IngredientQuantity, error) {
	m.mu.Lock()
	m.calls = append(m.calls, foodName)
	m.mu.Unlock()

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.err != nil {
		return nil, m.err
	}

	recipe, ok := m.recipes[foodName]
	if !ok {
		m.log.Debug("Mock resolver has no recipe", "food", foodName)
		return nil, ErrNoRecipe
	}

	out := make(map[string]types.IngredientQuantity, len(recipe))
	for name, quantity := range recipe {
		out[name] = quantity
	}
	return out, nil
}

// SetRecipe registers ingredients for foodName, converting each amount to kilograms
func (m *MockResolver) SetRecipe(foodName string, ingredients []types.IngredientQuantity) {
	m.mu.Lock()
	defer m.mu.Unlock()

	recipe := make(map[string]types.IngredientQuantity, len(ingredients))
	for _, ingredient := range ingredients {
		ingredient.Kilograms = units.ToKilograms(ingredient.Unit, ingredient.Amount)
		recipe[ingredient.Name] = ingredient
	}
	m.recipes[foodName] = recipe
}

// SetError sets an error to be returned by every resolution
func (m *MockResolver) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns the food names resolved so far
func (m *MockResolver) Calls() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.calls...)
}
