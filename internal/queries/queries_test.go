package queries

import (
	"reflect"
	"strings"
	"testing"
)

func TestBuildQueriesCount(t *testing.T) {
	qs := BuildQueries("Medtronic", "cardiovascular", "")

	if len(qs) < 8 || len(qs) > 12 {
		t.Errorf("Expected 8-12 queries, got %d", len(qs))
	}
}

func TestBuildQueriesCoversAllLenses(t *testing.T) {
	qs := BuildQueries("Dexcom", "diabetes_care", "")

	seen := make(map[string]bool)
	for _, q := range qs {
		seen[q.Lens] = true
	}
	for _, lens := range Lenses() {
		if !seen[lens] {
			t.Errorf("No query generated for lens %s", lens)
		}
	}
}

func TestBuildQueriesIsIdempotent(t *testing.T) {
	first := BuildQueries("Stryker", "joint_replacement", "robotic surgery")
	for i := 0; i < 5; i++ {
		again := BuildQueries("Stryker", "joint_replacement", "robotic surgery")
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("Query generation not deterministic: %v vs %v", first, again)
		}
	}
}

func TestBuildQueriesLensOrder(t *testing.T) {
	qs := BuildQueries("Abbott", "medical_devices", "")

	lensIndex := make(map[string]int)
	for i, lens := range Lenses() {
		lensIndex[lens] = i
	}

	last := -1
	for _, q := range qs {
		idx := lensIndex[q.Lens]
		if idx < last {
			t.Fatalf("Queries not grouped in lens order: %s after index %d", q.Lens, last)
		}
		last = idx
	}
}

func TestBuildQueriesCategoryOverrides(t *testing.T) {
	generic := BuildQueries("Medtronic", "medical_devices", "")
	cardio := BuildQueries("Medtronic", "cardiovascular", "")

	if reflect.DeepEqual(generic, cardio) {
		t.Error("Expected category-specific templates to differ from generic set")
	}

	foundCardioTerm := false
	for _, q := range cardio {
		if q.Lens == LensProductCapability && strings.Contains(q.Text, "stent") {
			foundCardioTerm = true
		}
	}
	if !foundCardioTerm {
		t.Error("Expected cardiovascular product queries to mention category terms")
	}
}

func TestBuildQueriesUnknownCategoryFallsBack(t *testing.T) {
	qs := BuildQueries("Acme Devices", "nonexistent_category", "")
	if len(qs) != len(genericTemplates) {
		t.Errorf("Unknown category should use full generic set, got %d queries", len(qs))
	}
}

func TestBuildQueriesIncludesCompetitorAndFocus(t *testing.T) {
	qs := BuildQueries("Insulet", "diabetes_care", "patch pumps")

	for _, q := range qs {
		if !strings.Contains(q.Text, "Insulet") {
			t.Errorf("Query missing competitor name: %s", q.Text)
		}
		if !strings.HasSuffix(q.Text, "patch pumps") {
			t.Errorf("Query missing focus area suffix: %s", q.Text)
		}
	}
}

func TestBuildQueriesEmptyCompetitor(t *testing.T) {
	if qs := BuildQueries("  ", "cardiovascular", ""); qs != nil {
		t.Errorf("Expected nil for blank competitor, got %d queries", len(qs))
	}
}

func TestBuildAllQueries(t *testing.T) {
	all := BuildAllQueries([]string{"Medtronic", "Abbott", ""}, "cardiovascular", "")

	if len(all) != 2 {
		t.Errorf("Expected 2 competitors with queries, got %d", len(all))
	}
	if _, ok := all["Medtronic"]; !ok {
		t.Error("Missing queries for Medtronic")
	}
}
