// Package nutrition looks up nutrient records for food names via FoodData
// Central, disambiguates between candidates, and aggregates per-meal totals.
package nutrition

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/nutrilog/nutrilog/internal/common"
)

// Nutrient is one per-100-unit sample from a food's nutrient list.
type Nutrient struct {
	Name  string  `json:"nutrientName"`
	Value float64 `json:"value"`
	Unit  string  `json:"unitName"`
}

// Food is one search candidate.
type Food struct {
	FdcID       int64      `json:"fdcId"`
	Description string     `json:"description"`
	Nutrients   []Nutrient `json:"foodNutrients"`
}

// FDCClient queries the FoodData Central search endpoint, one partition per
// call. A circuit breaker trips after consecutive transport failures so a
// dead upstream fails fast instead of stalling every meal.
type FDCClient struct {
	cfg        common.FDCConfig
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[[]Food]
	log        *slog.Logger
}

func NewFDCClient(cfg common.FDCConfig, logger *slog.Logger) *FDCClient {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = 10
	}

	breaker := gobreaker.NewCircuitBreaker[[]Food](gobreaker.Settings{
		Name:    "fdc-search",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &FDCClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breaker,
		log:        logger,
	}
}

// Search runs a free-text query against one data-type partition.
func (c *FDCClient) Search(ctx context.Context, query, dataType string) ([]Food, error) {
	return c.breaker.Execute(func() ([]Food, error) {
		return c.search(ctx, query, dataType)
	})
}

func (c *FDCClient) search(ctx context.Context, query, dataType string) ([]Food, error) {
	start := time.Now()

	params := url.Values{}
	params.Set("query", query)
	params.Set("dataType", dataType)
	params.Set("api_key", c.cfg.APIKey)
	params.Set("pageSize", strconv.Itoa(c.cfg.PageSize))
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/foods/search?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build fdc request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fdc http error: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.log.Warn("fdc.body_close_error", "error", err)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read fdc response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("fdc status %d: %s", resp.StatusCode, string(raw))
	}

	var out struct {
		Foods []Food `json:"foods"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode fdc response: %w", err)
	}

	c.log.Debug("fdc.search.ok",
		"query", query,
		"data_type", dataType,
		"results", len(out.Foods),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out.Foods, nil
}
