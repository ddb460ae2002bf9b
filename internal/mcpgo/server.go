package mcpgo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/noot-app/food-emissions-mcp-server/internal/auth"
	"github.com/noot-app/food-emissions-mcp-server/internal/calculator"
	"github.com/noot-app/food-emissions-mcp-server/internal/reference"
	"github.com/noot-app/food-emissions-mcp-server/internal/units"
)

const (
	healthCacheDuration = 10 * time.Second

	// HTTP timeouts
	httpReadTimeout     = 15 * time.Second
	httpWriteTimeout    = 60 * time.Second
	httpIdleTimeout     = 60 * time.Second
	httpShutdownTimeout = 30 * time.Second
)

// responseRecorder wraps http.ResponseWriter to capture response details
type responseRecorder struct {
	http.ResponseWriter
	statusCode    int
	bytesWritten  int
	headerWritten bool
}

func (r *responseRecorder) WriteHeader(code int) {
	if r.headerWritten {
		return
	}
	r.statusCode = code
	r.headerWritten = true
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(data []byte) (int, error) {
	if !r.headerWritten {
		r.WriteHeader(http.StatusOK)
	}
	n, err := r.ResponseWriter.Write(data)
	r.bytesWritten += n
	return n, err
}

// HealthChecker reports whether the data behind the server is usable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server exposes the emissions calculator as MCP tools
type Server struct {
	mcpServer *server.MCPServer
	calc      *calculator.FoodCalculator
	ref       *reference.Reference
	health    HealthChecker
	auth      *auth.BearerTokenAuth
	log       *slog.Logger

	healthMu        sync.RWMutex
	lastHealthCheck time.Time
	lastHealthError error
}

// CompoundFoodResponse is returned by calculate_food_emissions
type CompoundFoodResponse struct {
	CalculationID string  `json:"calculation_id"`
	Food          string  `json:"food"`
	Total         float64 `json:"total"`
	Resolved      bool    `json:"resolved"`
	Error         string  `json:"error,omitempty"`
}

// LookupResponse is returned by lookup_emission_factor
type LookupResponse struct {
	Name      string  `json:"name"`
	Found     bool    `json:"found"`
	Factor    float64 `json:"factor"`
	HasWeight bool    `json:"has_weight"`
	Weight    float64 `json:"weight"`
}

// ConversionResponse is returned by convert_to_kilograms
type ConversionResponse struct {
	Unit       string  `json:"unit"`
	Quantity   float64 `json:"quantity"`
	Recognized bool    `json:"recognized"`
	Kilograms  float64 `json:"kilograms"`
}

// NewServer creates the MCP server around calc
func NewServer(calc *calculator.FoodCalculator, authenticator *auth.BearerTokenAuth, logger *slog.Logger, version string) *Server {
	mcpServer := server.NewMCPServer(
		"Food Emissions MCP Server",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithLogging(),
	)

	s := &Server{
		mcpServer: mcpServer,
		calc:      calc,
		ref:       calc.Reference(),
		health:    calc.Reference(),
		auth:      authenticator,
		log:       logger,
	}
	s.addTools()
	return s
}

// checkHealthWithCache runs the health check at most once per healthCacheDuration
func (s *Server) checkHealthWithCache(ctx context.Context) error {
	s.healthMu.RLock()
	if time.Since(s.lastHealthCheck) < healthCacheDuration {
		err := s.lastHealthError
		s.healthMu.RUnlock()
		s.log.Debug("Health check: using cached result", "cached_error", err != nil)
		return err
	}
	s.healthMu.RUnlock()

	s.healthMu.Lock()
	defer s.healthMu.Unlock()

	// Another goroutine may have refreshed it while we waited for the write lock
	if time.Since(s.lastHealthCheck) < healthCacheDuration {
		return s.lastHealthError
	}

	s.log.Debug("Health check: checking reference data")
	err := s.health.HealthCheck(ctx)
	s.lastHealthCheck = time.Now()
	s.lastHealthError = err
	return err
}

func (s *Server) addTools() {
	calculateTool := mcp.NewTool("calculate_emissions",
		mcp.WithDescription("Estimate the total greenhouse-gas emissions (kg CO2e) of a list of food items, using each item's default weight. Items without a default weight contribute zero."),
		mcp.WithArray("items",
			mcp.Required(),
			mcp.WithStringItems(),
			mcp.Description("Food item names, matched exactly against the reference tables. Repeat a name to count it twice."),
		),
		mcp.WithOutputSchema[calculator.Breakdown](),
		mcp.WithIdempotentHintAnnotation(true),
	)
	s.mcpServer.AddTool(calculateTool, s.handleCalculateEmissions)

	foodTool := mcp.NewTool("calculate_food_emissions",
		mcp.WithDescription("Estimate the emissions of a compound food, such as a dish, by decomposing it into recipe ingredients."),
		mcp.WithString("food",
			mcp.Required(),
			mcp.MinLength(1),
			mcp.Description("Name of the dish to decompose"),
		),
		mcp.WithOutputSchema[CompoundFoodResponse](),
		mcp.WithIdempotentHintAnnotation(true),
	)
	s.mcpServer.AddTool(foodTool, s.handleCalculateFoodEmissions)

	lookupTool := mcp.NewTool("lookup_emission_factor",
		mcp.WithDescription("Look up the per-kilogram emission factor and default weight of a food"),
		mcp.WithString("name",
			mcp.Required(),
			mcp.MinLength(1),
			mcp.Description("Exact food name as it appears in the reference tables"),
		),
		mcp.WithOutputSchema[LookupResponse](),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	s.mcpServer.AddTool(lookupTool, s.handleLookupEmissionFactor)

	convertTool := mcp.NewTool("convert_to_kilograms",
		mcp.WithDescription("Convert a recipe quantity to kilograms. Supported units: kg, g, mg, lb, oz, tsp, tbsp, cup, ml, l, clove, cloves."),
		mcp.WithString("unit",
			mcp.Required(),
			mcp.Description("Unit short code, case sensitive"),
		),
		mcp.WithNumber("quantity",
			mcp.Required(),
			mcp.Description("Amount expressed in unit"),
		),
		mcp.WithOutputSchema[ConversionResponse](),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	s.mcpServer.AddTool(convertTool, s.handleConvertToKilograms)
}

func (s *Server) handleCalculateEmissions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.log.Debug("handleCalculateEmissions: Starting tool call", "arguments", request.GetArguments())

	items, err := request.RequireStringSlice("items")
	if err != nil {
		s.log.Warn("handleCalculateEmissions: Invalid 'items' parameter", "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("Missing required parameter 'items': %v", err)), nil
	}

	breakdown := s.calc.Explain(ctx, items, "")
	return structuredResult(s.log, breakdown)
}

func (s *Server) handleCalculateFoodEmissions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.log.Debug("handleCalculateFoodEmissions: Starting tool call", "arguments", request.GetArguments())

	food, err := request.RequireString("food")
	if err != nil || food == "" {
		s.log.Warn("handleCalculateFoodEmissions: Invalid 'food' parameter", "error", err)
		return mcp.NewToolResultError("Parameter 'food' must be a non-empty string"), nil
	}

	breakdown := s.calc.Explain(ctx, nil, food)
	response := CompoundFoodResponse{
		CalculationID: breakdown.ID,
		Food:          food,
		Total:         breakdown.Total,
		Resolved:      true,
	}
	if len(breakdown.Contributions) == 1 && breakdown.Contributions[0].Source == calculator.SourceCompoundFailed {
		response.Resolved = false
		response.Error = breakdown.Contributions[0].Error
	}
	return structuredResult(s.log, response)
}

func (s *Server) handleLookupEmissionFactor(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		s.log.Warn("handleLookupEmissionFactor: Missing 'name' parameter", "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("Missing required parameter 'name': %v", err)), nil
	}

	response := LookupResponse{Name: name}
	response.Factor, response.Found = s.ref.Factor(name)
	response.Weight, response.HasWeight = s.ref.Weight(name)

	s.log.Debug("MCP LookupEmissionFactor called", "name", name, "found", response.Found, "has_weight", response.HasWeight)
	return structuredResult(s.log, response)
}

func (s *Server) handleConvertToKilograms(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	unit, err := request.RequireString("unit")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Missing required parameter 'unit': %v", err)), nil
	}
	quantity, err := request.RequireFloat("quantity")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Missing required parameter 'quantity': %v", err)), nil
	}

	_, recognized := units.Factor(unit)
	response := ConversionResponse{
		Unit:       unit,
		Quantity:   quantity,
		Recognized: recognized,
		Kilograms:  units.ToKilograms(unit, quantity),
	}
	return structuredResult(s.log, response)
}

// structuredResult returns both structured content and a JSON text fallback
func structuredResult(log *slog.Logger, response any) (*mcp.CallToolResult, error) {
	responseJSON, err := json.MarshalIndent(response, "", "  ")
	if err != nil {
		log.Error("Failed to marshal tool response", "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("Failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultStructured(response, string(responseJSON)), nil
}

// Handler returns the HTTP routes: /health without auth and /mcp behind the bearer token
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)

	streamableServer := server.NewStreamableHTTPServer(
		s.mcpServer,
		server.WithEndpointPath("/mcp"),
		server.WithStateLess(true),
	)

	mux.Handle("/mcp", s.auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if recovery := recover(); recovery != nil {
				s.log.Error("MCP endpoint panic recovered",
					"panic", recovery,
					"method", r.Method,
					"remote_addr", r.RemoteAddr)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()

		s.log.Debug("MCP request received",
			"method", r.Method,
			"content_length", r.ContentLength,
			"remote_addr", r.RemoteAddr)

		recorder := &responseRecorder{ResponseWriter: w}
		streamableServer.ServeHTTP(recorder, r)

		s.log.Debug("MCP response sent",
			"status_code", recorder.statusCode,
			"response_size", recorder.bytesWritten)
	})))

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := s.checkHealthWithCache(r.Context()); err != nil {
		s.log.Error("Health check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "healthy",
		"reference": s.ref.Stats(),
	})
}

// ServeHTTP serves the MCP server over HTTP with authentication until ctx is
// cancelled, then shuts down gracefully
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  httpReadTimeout,
		WriteTimeout: httpWriteTimeout,
		IdleTimeout:  httpIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Starting MCP server", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.log.Info("Server stopped")
	return nil
}

// ServeStdio serves the MCP server over stdio (no auth required for local use)
func (s *Server) ServeStdio() error {
	s.log.Info("Starting MCP server in stdio mode")
	return server.ServeStdio(s.mcpServer)
}
