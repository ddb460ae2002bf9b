package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Runs against a live server started with RECIPE_RESOLVER_MOCK=true and a
// reference containing the items below.

type mcpRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int         `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

type toolCallParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

var (
	serverURL = getEnv("ACCEPTANCE_URL", "http://localhost:8080")
	authToken = getEnv("AUTH_TOKEN", "super-secret-token")
	client    = &http.Client{Timeout: 10 * time.Second}
)

func main() {
	fmt.Printf("Running acceptance tests for Food Emissions MCP Server at %s\n\n", serverURL)

	steps := []struct {
		name string
		run  func() error
	}{
		{"health endpoint without auth", testHealth},
		{"MCP endpoint rejects missing token", func() error { return expectStatus("", http.StatusUnauthorized) }},
		{"MCP endpoint rejects wrong token", func() error { return expectStatus("wrong-token", http.StatusUnauthorized) }},
		{"initialize with correct token", testInitialize},
		{"calculate_emissions tool", testCalculateEmissions},
		{"convert_to_kilograms tool", testConvert},
	}

	for i, step := range steps {
		start := time.Now()
		if err := step.run(); err != nil {
			fmt.Printf("❌ %d. %s failed: %v\n", i+1, step.name, err)
			os.Exit(1)
		}
		fmt.Printf("✅ %d. %s (%v)\n", i+1, step.name, time.Since(start))
	}

	fmt.Printf("\nAll acceptance tests passed\n")
}

func testHealth() error {
	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("expected status 200, got %d", resp.StatusCode)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("invalid health response: %w", err)
	}
	if body["status"] != "healthy" {
		return fmt.Errorf("unexpected status %v", body["status"])
	}
	return nil
}

func initializeRequest() mcpRequest {
	return mcpRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "initialize",
		Params: map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities":    map[string]interface{}{},
			"clientInfo":      map[string]string{"name": "acceptance", "version": "1.0.0"},
		},
	}
}

func expectStatus(token string, status int) error {
	code, _, err := post(token, initializeRequest())
	if err != nil {
		return err
	}
	if code != status {
		return fmt.Errorf("expected status %d, got %d", status, code)
	}
	return nil
}

func testInitialize() error {
	body, err := postOK(initializeRequest())
	if err != nil {
		return err
	}
	if !strings.Contains(body, "serverInfo") {
		return fmt.Errorf("response doesn't contain an initialize result")
	}
	return nil
}

func testCalculateEmissions() error {
	body, err := postOK(mcpRequest{
		JSONRPC: "2.0",
		ID:      2,
		Method:  "tools/call",
		Params: toolCallParams{
			Name:      "calculate_emissions",
			Arguments: map[string]interface{}{"items": []string{"Bananas", "Bananas", "Unobtainium"}},
		},
	})
	if err != nil {
		return err
	}
	for _, want := range []string{"calculation_id", "total", "unknown"} {
		if !strings.Contains(body, want) {
			return fmt.Errorf("response missing %q: %s", want, body)
		}
	}
	return nil
}

func testConvert() error {
	body, err := postOK(mcpRequest{
		JSONRPC: "2.0",
		ID:      3,
		Method:  "tools/call",
		Params: toolCallParams{
			Name:      "convert_to_kilograms",
			Arguments: map[string]interface{}{"unit": "g", "quantity": 250},
		},
	})
	if err != nil {
		return err
	}
	if !strings.Contains(body, `"recognized":true`) && !strings.Contains(body, `\"recognized\": true`) {
		return fmt.Errorf("unit not recognized: %s", body)
	}
	return nil
}

func postOK(req mcpRequest) (string, error) {
	code, body, err := post(authToken, req)
	if err != nil {
		return "", err
	}
	if code != http.StatusOK {
		return "", fmt.Errorf("expected status 200, got %d: %s", code, body)
	}
	return body, nil
}

func post(token string, req mcpRequest) (int, string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return 0, "", err
	}

	httpReq, err := http.NewRequest(http.MethodPost, serverURL+"/mcp", bytes.NewReader(payload))
	if err != nil {
		return 0, "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json, text/event-stream")
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return 0, "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, "", fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, string(body), nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
