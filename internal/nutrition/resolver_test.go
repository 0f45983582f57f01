package nutrition

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// mockSearcher serves canned results keyed by data type.
type mockSearcher struct {
	results map[string][]Food
	errs    map[string]error
	queries []string
}

func (m *mockSearcher) Search(_ context.Context, query, dataType string) ([]Food, error) {
	m.queries = append(m.queries, dataType)
	if err := m.errs[dataType]; err != nil {
		return nil, err
	}
	return m.results[dataType], nil
}

// mockPicker replies with a canned option number.
type mockPicker struct {
	response string
	err      error
	prompt   string
}

func (m *mockPicker) GenerateText(_ context.Context, prompt string) (string, error) {
	m.prompt = prompt
	return m.response, m.err
}

func TestResolveMergesPartitionsAndDedupes(t *testing.T) {
	searcher := &mockSearcher{results: map[string][]Food{
		"SR Legacy": {
			{FdcID: 1, Description: "Apple, raw"},
			{FdcID: 2, Description: "Apple, dried"},
		},
		"Foundation": {
			{FdcID: 1, Description: "Apple, raw"}, // duplicate of SR Legacy hit
			{FdcID: 3, Description: "Apple juice"},
		},
	}}
	picker := &mockPicker{response: "3"}
	r := NewResolver(searcher, picker, nil)

	food, err := r.Resolve(context.Background(), "apple")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if food == nil || food.FdcID != 3 {
		t.Fatalf("food = %+v, want FdcID 3", food)
	}
	if len(searcher.queries) != 3 {
		t.Errorf("queried %d partitions, want 3", len(searcher.queries))
	}
	// The de-duplicated list has 3 entries; the prompt must not repeat fdcId 1.
	if strings.Count(picker.prompt, "Apple, raw") != 1 {
		t.Errorf("prompt repeats a de-duplicated candidate:\n%s", picker.prompt)
	}
	if !strings.Contains(picker.prompt, "The user ate 'apple'") {
		t.Errorf("prompt missing food name:\n%s", picker.prompt)
	}
}

func TestResolveToleratesPartitionFailure(t *testing.T) {
	searcher := &mockSearcher{
		results: map[string][]Food{
			"Survey (FNDDS)": {{FdcID: 9, Description: "Banana, raw"}},
		},
		errs: map[string]error{
			"SR Legacy":  errors.New("upstream 500"),
			"Foundation": errors.New("upstream 500"),
		},
	}
	r := NewResolver(searcher, &mockPicker{response: "1"}, nil)

	food, err := r.Resolve(context.Background(), "banana")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if food == nil || food.FdcID != 9 {
		t.Fatalf("food = %+v, want FdcID 9", food)
	}
}

func TestResolveNoCandidates(t *testing.T) {
	r := NewResolver(&mockSearcher{}, &mockPicker{}, nil)

	food, err := r.Resolve(context.Background(), "unicorn steak")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if food != nil {
		t.Fatalf("food = %+v, want nil", food)
	}
}

func TestPickerFallsBackToFirstCandidate(t *testing.T) {
	tests := []struct {
		name   string
		picker *mockPicker
	}{
		{"non-numeric reply", &mockPicker{response: "the first one"}},
		{"out of range", &mockPicker{response: "99"}},
		{"zero", &mockPicker{response: "0"}},
		{"picker error", &mockPicker{err: errors.New("model unavailable")}},
	}
	searcher := &mockSearcher{results: map[string][]Food{
		"SR Legacy": {
			{FdcID: 10, Description: "Rice, white"},
			{FdcID: 11, Description: "Rice, brown"},
			{FdcID: 12, Description: "Rice cakes"},
		},
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(searcher, tt.picker, nil)
			food, err := r.Resolve(context.Background(), "rice")
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if food == nil || food.FdcID != 10 {
				t.Fatalf("food = %+v, want first candidate FdcID 10", food)
			}
		})
	}
}

func TestPickerReplyWithWhitespace(t *testing.T) {
	searcher := &mockSearcher{results: map[string][]Food{
		"SR Legacy": {
			{FdcID: 20, Description: "Oats"},
			{FdcID: 21, Description: "Oat milk"},
		},
	}}
	r := NewResolver(searcher, &mockPicker{response: " 2\n"}, nil)

	food, err := r.Resolve(context.Background(), "oats")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if food == nil || food.FdcID != 21 {
		t.Fatalf("food = %+v, want FdcID 21", food)
	}
}
