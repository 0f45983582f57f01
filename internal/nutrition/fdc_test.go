package nutrition

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nutrilog/nutrilog/internal/common"
)

func newTestFDCClient(t *testing.T, handler http.HandlerFunc) *FDCClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewFDCClient(common.FDCConfig{
		BaseURL:  srv.URL,
		APIKey:   "test-key",
		PageSize: 10,
	}, nil)
}

func TestFDCSearch(t *testing.T) {
	c := newTestFDCClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/foods/search" {
			t.Errorf("path = %q", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("query") != "apple" || q.Get("dataType") != "SR Legacy" {
			t.Errorf("query params = %v", q)
		}
		if q.Get("api_key") != "test-key" || q.Get("pageSize") != "10" {
			t.Errorf("query params = %v", q)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"foods": []map[string]any{
				{
					"fdcId":       171688,
					"description": "Apples, raw, with skin",
					"foodNutrients": []map[string]any{
						{"nutrientName": "Energy", "value": 52, "unitName": "KCAL"},
						{"nutrientName": "Protein", "value": 0.26, "unitName": "G"},
					},
				},
			},
		})
	})

	foods, err := c.Search(context.Background(), "apple", "SR Legacy")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(foods) != 1 {
		t.Fatalf("got %d foods, want 1", len(foods))
	}
	f := foods[0]
	if f.FdcID != 171688 || f.Description != "Apples, raw, with skin" {
		t.Errorf("food = %+v", f)
	}
	if len(f.Nutrients) != 2 || f.Nutrients[0].Name != "Energy" || f.Nutrients[0].Value != 52 {
		t.Errorf("nutrients = %+v", f.Nutrients)
	}
}

func TestFDCSearchNon2xx(t *testing.T) {
	c := newTestFDCClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error": "invalid api key"}`, http.StatusForbidden)
	})

	if _, err := c.Search(context.Background(), "apple", "SR Legacy"); err == nil {
		t.Fatal("Search succeeded, want error")
	}
}

func TestFDCBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits int
	c := newTestFDCClient(t, func(w http.ResponseWriter, _ *http.Request) {
		hits++
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	})

	// Five consecutive failures trip the breaker; later calls fail without
	// reaching the upstream.
	for i := 0; i < 5; i++ {
		if _, err := c.Search(context.Background(), "apple", "SR Legacy"); err == nil {
			t.Fatalf("call %d succeeded, want error", i+1)
		}
	}
	if hits != 5 {
		t.Fatalf("upstream hits = %d, want 5", hits)
	}

	if _, err := c.Search(context.Background(), "apple", "SR Legacy"); err == nil {
		t.Fatal("Search succeeded with open breaker")
	}
	if hits != 5 {
		t.Fatalf("open breaker still reached upstream, hits = %d", hits)
	}
}
