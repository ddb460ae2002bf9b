package recipe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/noot-app/food-emissions-mcp-server/internal/types"
	"github.com/noot-app/food-emissions-mcp-server/internal/units"
	"github.com/sony/gobreaker"
)

const (
	// DefaultBaseURL is the public Spoonacular API
	DefaultBaseURL = "https://api.spoonacular.com"
	// DefaultTimeout bounds each remote call
	DefaultTimeout = 10 * time.Second
)

var (
	// ErrNoRecipe is returned when the recipe search has no results
	ErrNoRecipe = errors.New("no recipe found")
	// ErrMalformedResponse is returned when a payload lacks required fields
	ErrMalformedResponse = errors.New("malformed recipe response")
)

// Resolver decomposes a free-text food name into its ingredients,
// keyed by ingredient display name with quantities converted to kilograms.
type Resolver interface {
	ResolveIngredients(ctx context.Context, foodName string) (map[string]types.IngredientQuantity, error)
}

// Options configures a SpoonacularClient
type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
	HTTPClient *http.Client
}

// SpoonacularClient resolves ingredients with a search call followed by a
// recipe detail call.
type SpoonacularClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	backoff BackoffConfig
	circuit *gobreaker.CircuitBreaker
	log     *slog.Logger
}

// Ensure SpoonacularClient implements Resolver
var _ Resolver = (*SpoonacularClient)(nil)

// NewSpoonacularClient creates a client. Zero options fall back to defaults.
func NewSpoonacularClient(opts Options, logger *slog.Logger) *SpoonacularClient {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	maxRetries := opts.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	return &SpoonacularClient{
		baseURL: baseURL,
		apiKey:  opts.APIKey,
		client:  httpClient,
		backoff: BackoffConfig{
			MaxRetries:      maxRetries,
			InitialInterval: 250 * time.Millisecond,
			MaxInterval:     2 * time.Second,
		},
		circuit: newCircuitBreaker("spoonacular"),
		log:     logger,
	}
}

type searchResponse struct {
	Results []struct {
		ID    *int64 `json:"id"`
		Title string `json:"title"`
	} `json:"results"`
}

type informationResponse struct {
	ExtendedIngredients []struct {
		Name     string `json:"name"`
		Measures *struct {
			Metric *struct {
				Amount    *float64 `json:"amount"`
				UnitShort string   `json:"unitShort"`
			} `json:"metric"`
		} `json:"measures"`
	} `json:"extendedIngredients"`
}

// ResolveIngredients searches for a recipe matching foodName and returns the
// ingredients of the first result. Duplicate ingredient names keep the last entry.
func (c *SpoonacularClient) ResolveIngredients(ctx context.Context, foodName string) (map[string]types.IngredientQuantity, error) {
	start := time.Now()
	c.log.Debug("ResolveIngredients starting", "food", foodName)

	recipeID, err := c.searchRecipe(ctx, foodName)
	if err != nil {
		return nil, err
	}

	ingredients, err := c.recipeIngredients(ctx, recipeID)
	if err != nil {
		return nil, err
	}

	c.log.Debug("ResolveIngredients completed",
		"food", foodName,
		"recipe_id", recipeID,
		"ingredients", len(ingredients),
		"duration", time.Since(start))
	return ingredients, nil
}

func (c *SpoonacularClient) searchRecipe(ctx context.Context, foodName string) (int64, error) {
	values := url.Values{}
	values.Set("query", foodName)
	values.Set("number", "1")
	c.setAPIKey(values)

	var payload searchResponse
	if err := c.getJSON(ctx, "/recipes/complexSearch", values, &payload); err != nil {
		return 0, fmt.Errorf("recipe search failed: %w", err)
	}

	if len(payload.Results) == 0 {
		return 0, fmt.Errorf("%w for %q", ErrNoRecipe, foodName)
	}
	if payload.Results[0].ID == nil {
		return 0, fmt.Errorf("%w: search result without id", ErrMalformedResponse)
	}
	return *payload.Results[0].ID, nil
}

func (c *SpoonacularClient) recipeIngredients(ctx context.Context, recipeID int64) (map[string]types.IngredientQuantity, error) {
	values := url.Values{}
	c.setAPIKey(values)

	var payload informationResponse
	path := fmt.Sprintf("/recipes/%d/information", recipeID)
	if err := c.getJSON(ctx, path, values, &payload); err != nil {
		return nil, fmt.Errorf("recipe information failed: %w", err)
	}
	if payload.ExtendedIngredients == nil {
		return nil, fmt.Errorf("%w: missing extendedIngredients", ErrMalformedResponse)
	}

	ingredients := make(map[string]types.IngredientQuantity, len(payload.ExtendedIngredients))
	for _, ingredient := range payload.ExtendedIngredients {
		if ingredient.Name == "" {
			return nil, fmt.Errorf("%w: ingredient without name", ErrMalformedResponse)
		}
		if ingredient.Measures == nil || ingredient.Measures.Metric == nil {
			return nil, fmt.Errorf("%w: ingredient %q has no metric measure", ErrMalformedResponse, ingredient.Name)
		}
		metric := ingredient.Measures.Metric
		if metric.Amount == nil {
			return nil, fmt.Errorf("%w: ingredient %q has no metric amount", ErrMalformedResponse, ingredient.Name)
		}
		amount := *metric.Amount
		ingredients[ingredient.Name] = types.IngredientQuantity{
			Name:      ingredient.Name,
			Amount:    amount,
			Unit:      metric.UnitShort,
			Kilograms: units.ToKilograms(metric.UnitShort, amount),
		}
	}
	return ingredients, nil
}

func (c *SpoonacularClient) setAPIKey(values url.Values) {
	if c.apiKey != "" {
		values.Set("apiKey", c.apiKey)
	}
}

func (c *SpoonacularClient) getJSON(ctx context.Context, path string, values url.Values, out interface{}) error {
	target := c.baseURL + path
	if encoded := values.Encode(); encoded != "" {
		target += "?" + encoded
	}

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	resp, err := doRequestWithResilience(ctx, c.client, c.backoff, c.circuit, buildRequest)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}
