package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/noot-app/food-emissions-mcp-server/internal/auth"
	"github.com/noot-app/food-emissions-mcp-server/internal/calculator"
	"github.com/noot-app/food-emissions-mcp-server/internal/config"
	"github.com/noot-app/food-emissions-mcp-server/internal/dataset"
	"github.com/noot-app/food-emissions-mcp-server/internal/mcpgo"
	"github.com/noot-app/food-emissions-mcp-server/internal/recipe"
	"github.com/noot-app/food-emissions-mcp-server/internal/reference"
	"github.com/noot-app/food-emissions-mcp-server/internal/units"
	"github.com/noot-app/food-emissions-mcp-server/internal/version"
	"github.com/spf13/cobra"
)

// newRootCmd builds the command tree. Each call returns fresh commands and flags.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "food-emissions-mcp-server",
		Short: "Food greenhouse-gas emissions calculator and MCP server",
		Long: `Food Emissions MCP Server estimates the greenhouse-gas emissions of food.

Items are scored as default weight (kg) times emission factor (kg CO2e per kg).
Items with a default weight but no emission factor are decomposed into recipe
ingredients through the Spoonacular API and scored per ingredient.

The server operates in three modes:

1. STDIO Mode (--stdio): For local MCP clients
   - Uses stdio pipes for communication
   - No authentication required

2. HTTP Mode (default): For remote deployment
   - Streamable HTTP MCP endpoint at /mcp
   - Requires Bearer token authentication (except /health)

3. Fetch Data Mode (--fetch-data): Download reference files and exit
   - Downloads the emissions and weights files from EMISSIONS_URL and WEIGHTS_URL
   - Skips files that are already up-to-date

Available MCP Tools:
- calculate_emissions: Total emissions for a list of items
- calculate_food_emissions: Emissions of a dish via recipe decomposition
- lookup_emission_factor: Reference factor and default weight of a food
- convert_to_kilograms: Convert a recipe quantity to kilograms`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			fetchData, _ := cmd.Flags().GetBool("fetch-data")
			if fetchData {
				return runFetchDataMode(cmd)
			}

			stdio, _ := cmd.Flags().GetBool("stdio")
			return runServer(cmd, stdio)
		},
	}

	rootCmd.Flags().Bool("stdio", false, "Run in stdio mode for local MCP clients (default: HTTP mode)")
	rootCmd.Flags().Bool("fetch-data", false, "Fetch the reference files and exit")

	rootCmd.AddCommand(newCalculateCmd(), newUnitsCmd(), newVersionCmd())
	return rootCmd
}

func newCalculateCmd() *cobra.Command {
	var (
		items   []string
		food    string
		explain bool
	)

	cmd := &cobra.Command{
		Use:   "calculate",
		Short: "Calculate the emissions of food items or a single dish",
		Example: `  food-emissions-mcp-server calculate --item Bananas --item "Bread"
  food-emissions-mcp-server calculate --food "spaghetti carbonara" --explain`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(items) == 0 && food == "" {
				return fmt.Errorf("either --item or --food is required")
			}

			logger := config.NewTextLogger(cmd.ErrOrStderr())
			cfg := config.Load()

			calc, err := newFoodCalculator(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}

			breakdown := calc.Explain(cmd.Context(), items, food)
			if !explain {
				fmt.Fprintf(cmd.OutOrStdout(), "%g\n", breakdown.Total)
				return nil
			}

			out, err := json.MarshalIndent(breakdown, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode breakdown: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&items, "item", "i", nil, "Food item to include (repeatable)")
	cmd.Flags().StringVarP(&food, "food", "f", "", "Single dish to decompose into recipe ingredients")
	cmd.Flags().BoolVar(&explain, "explain", false, "Print the per-item breakdown as JSON")
	return cmd
}

func newUnitsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "units",
		Short: "List recognised recipe units and their kilogram factors",
		Run: func(cmd *cobra.Command, args []string) {
			for _, unit := range units.Known() {
				factor, _ := units.Factor(unit)
				fmt.Fprintf(cmd.OutOrStdout(), "%-6s %g\n", unit, factor)
			}
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

// newResolver picks the recipe resolver for cfg
func newResolver(cfg *config.Config, logger *slog.Logger) recipe.Resolver {
	if cfg.MockResolver {
		logger.Info("Using mock recipe resolver")
		return recipe.NewMockResolver(logger)
	}
	if cfg.SpoonacularAPIKey == "" {
		logger.Warn("SPOONACULAR_API_KEY is not set, compound foods will count as zero")
	}
	return recipe.NewSpoonacularClient(recipe.Options{
		BaseURL:    cfg.SpoonacularBaseURL,
		APIKey:     cfg.SpoonacularAPIKey,
		Timeout:    cfg.RecipeTimeout,
		MaxRetries: cfg.RecipeMaxRetries,
	}, logger)
}

// newFoodCalculator loads the reference tables and wires the resolver
func newFoodCalculator(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*calculator.FoodCalculator, error) {
	ref, err := reference.Load(ctx, cfg.EmissionsPath, cfg.WeightsPath, logger)
	if err != nil {
		return nil, err
	}
	return calculator.New(ref, newResolver(cfg, logger), logger), nil
}

// runFetchDataMode downloads the reference files and exits
func runFetchDataMode(cmd *cobra.Command) error {
	logger := config.NewTextLogger(os.Stdout)
	cfg := config.Load()

	logger.Info("Starting reference data fetch",
		"mode", "fetch-data",
		"emissions_url", cfg.EmissionsURL,
		"weights_url", cfg.WeightsURL,
		"target_dir", cfg.DataDir)

	manager := dataset.NewManager(cfg, logger)
	if err := manager.EnsureFiles(cmd.Context()); err != nil {
		logger.Error("Failed to fetch reference data", "error", err)
		return err
	}

	logger.Info("Reference data fetch completed",
		"emissions_path", cfg.EmissionsPath,
		"weights_path", cfg.WeightsPath,
		"metadata_path", cfg.MetadataPath)
	return nil
}

// runServer prepares the reference data and serves MCP over stdio or HTTP
func runServer(cmd *cobra.Command, stdio bool) error {
	// stdout carries the protocol in stdio mode
	logger := config.NewLogger(stdio)
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mode := "http"
	if stdio {
		mode = "stdio"
	}
	logger.Info("Starting Food Emissions MCP Server",
		"mode", mode,
		"environment", cfg.Environment,
		"port", cfg.Port)

	if cfg.IsDevelopment() {
		logger.Warn("DEVELOPMENT MODE ENABLED", "environment", cfg.Environment)
	}

	if err := dataset.NewManager(cfg, logger).EnsureFiles(ctx); err != nil {
		logger.Error("Failed to ensure reference data", "error", err)
		return err
	}

	calc, err := newFoodCalculator(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to create calculator", "error", err)
		return err
	}

	mcpSrv := mcpgo.NewServer(calc, auth.NewBearerTokenAuth(cfg.AuthToken), logger, version.Tag())

	if stdio {
		return mcpSrv.ServeStdio()
	}
	return mcpSrv.ServeHTTP(ctx, ":"+cfg.Port)
}

// Execute builds the command tree and runs it
func Execute() error {
	return newRootCmd().ExecuteContext(context.Background())
}

// Run is the main entry point for the CLI application
func Run() error {
	return Execute()
}
