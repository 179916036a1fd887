package rank

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"rivalscope/internal/core"
)

func opp(title string, category core.Category, score float64, difficulty core.Ordinal) core.StrategicOpportunity {
	return core.StrategicOpportunity{
		ID:                       title,
		Title:                    title,
		Description:              "desc",
		Category:                 category,
		OpportunityScore:         score,
		ImplementationDifficulty: difficulty,
	}
}

func TestDedupeNormalizedTitles(t *testing.T) {
	opportunities := []core.StrategicOpportunity{
		opp("Expand CGM coverage", core.CategoryMarket, 6.0, core.OrdinalLow),
		opp("  expand   cgm Coverage ", core.CategoryMarket, 8.0, core.OrdinalLow),
		opp("Different opportunity", core.CategoryProduct, 5.0, core.OrdinalLow),
	}

	deduped := Dedupe(opportunities)
	if len(deduped) != 2 {
		t.Fatalf("Expected 2 after dedup, got %d", len(deduped))
	}
	if deduped[0].OpportunityScore != 8.0 {
		t.Errorf("Dedup should keep the higher-scoring duplicate, got %f", deduped[0].OpportunityScore)
	}
}

func TestSortByScoreStable(t *testing.T) {
	opportunities := []core.StrategicOpportunity{
		opp("A", core.CategoryProduct, 5.0, core.OrdinalLow),
		opp("B", core.CategoryProduct, 8.0, core.OrdinalLow),
		opp("C", core.CategoryProduct, 5.0, core.OrdinalLow),
	}

	sorted := SortByScore(opportunities)
	if sorted[0].Title != "B" {
		t.Errorf("Expected B first, got %s", sorted[0].Title)
	}
	// Equal scores keep input order.
	if sorted[1].Title != "A" || sorted[2].Title != "C" {
		t.Errorf("Equal scores should keep input order, got %s then %s", sorted[1].Title, sorted[2].Title)
	}

	// Input must not be mutated.
	if opportunities[0].Title != "A" {
		t.Error("SortByScore mutated its input")
	}
}

func TestSortByScoreEmptyStaysNonNil(t *testing.T) {
	if SortByScore(nil) == nil {
		t.Error("Sorting no opportunities should return an empty slice, not nil")
	}
	if SortByScore([]core.StrategicOpportunity{}) == nil {
		t.Error("Sorting an empty slice should return an empty slice, not nil")
	}
}

func TestCategorizeEmptyGroupsMarshalAsLists(t *testing.T) {
	categorized := Categorize([]core.StrategicOpportunity{
		opp("Only product", core.CategoryProduct, 7.0, core.OrdinalLow),
	})

	encoded, err := json.Marshal(categorized)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	for _, category := range core.Categories() {
		if category == core.CategoryProduct {
			continue
		}
		want := fmt.Sprintf("%q:[]", category)
		if !strings.Contains(string(encoded), want) {
			t.Errorf("Category %s should marshal as an empty list, got %s", category, encoded)
		}
	}
}

func TestCategorizeAllCategoriesPresent(t *testing.T) {
	categorized := Categorize([]core.StrategicOpportunity{
		opp("Only product", core.CategoryProduct, 7.0, core.OrdinalLow),
	})

	if len(categorized) != len(core.Categories()) {
		t.Fatalf("Expected %d categories, got %d", len(core.Categories()), len(categorized))
	}
	for _, category := range core.Categories() {
		group, ok := categorized[category]
		if !ok {
			t.Errorf("Category %s missing from map", category)
		}
		if group == nil {
			t.Errorf("Category %s should be empty slice, not nil", category)
		}
	}
	if len(categorized[core.CategoryProduct]) != 1 {
		t.Errorf("Expected 1 product opportunity, got %d", len(categorized[core.CategoryProduct]))
	}
}

func TestCategorizeAssignsRanks(t *testing.T) {
	categorized := Categorize([]core.StrategicOpportunity{
		opp("Low", core.CategoryBrand, 4.0, core.OrdinalLow),
		opp("High", core.CategoryBrand, 9.0, core.OrdinalLow),
	})

	brand := categorized[core.CategoryBrand]
	if brand[0].Title != "High" || brand[0].Rank != 1 {
		t.Errorf("Expected High at rank 1, got %s rank %d", brand[0].Title, brand[0].Rank)
	}
	if brand[1].Rank != 2 {
		t.Errorf("Expected rank 2, got %d", brand[1].Rank)
	}
}

func TestCategorizeUnknownCategoryFoldsIntoProduct(t *testing.T) {
	categorized := Categorize([]core.StrategicOpportunity{
		opp("Weird", core.Category("operational"), 5.0, core.OrdinalLow),
	})

	if len(categorized[core.CategoryProduct]) != 1 {
		t.Error("Unknown category should fold into product")
	}
}

func TestBucketOf(t *testing.T) {
	tests := []struct {
		score      float64
		difficulty core.Ordinal
		bucket     core.MatrixBucket
	}{
		{8.0, core.OrdinalLow, core.BucketQuickWin},
		{8.0, core.OrdinalMedium, core.BucketQuickWin},
		{8.0, core.OrdinalHigh, core.BucketStrategicInvestment},
		{4.0, core.OrdinalLow, core.BucketFillIn},
		{4.0, core.OrdinalHigh, core.BucketAvoid},
	}

	for _, tt := range tests {
		got := BucketOf(opp("x", core.CategoryProduct, tt.score, tt.difficulty))
		if got != tt.bucket {
			t.Errorf("BucketOf(score=%f, difficulty=%s) = %s, want %s",
				tt.score, tt.difficulty, got, tt.bucket)
		}
	}
}

func TestBuildMatrixAllBucketsPresent(t *testing.T) {
	annotated, matrix := BuildMatrix([]core.StrategicOpportunity{
		opp("Win", core.CategoryProduct, 9.0, core.OrdinalLow),
	})

	if len(matrix) != len(core.MatrixBuckets()) {
		t.Fatalf("Expected %d buckets, got %d", len(core.MatrixBuckets()), len(matrix))
	}
	for _, bucket := range core.MatrixBuckets() {
		if matrix[bucket] == nil {
			t.Errorf("Bucket %s should be empty slice, not nil", bucket)
		}
	}
	if len(matrix[core.BucketQuickWin]) != 1 {
		t.Errorf("Expected 1 quick win, got %d", len(matrix[core.BucketQuickWin]))
	}
	if annotated[0].Bucket != core.BucketQuickWin {
		t.Errorf("Opportunity should be annotated with its bucket, got %s", annotated[0].Bucket)
	}
}

func TestBuildProfiles(t *testing.T) {
	results := []core.ResearchResult{
		{Competitor: "Medtronic", Title: "Medtronic stent recall expands", Content: "Class I recall."},
		{Competitor: "Medtronic", Title: "Medtronic wins FDA approval for new valve", Content: "approval granted"},
		{Competitor: "Medtronic", Title: "Medtronic quarterly report", Content: "steady quarter"},
		{Competitor: "Abbott", Title: "Abbott discount pricing push", Content: "value positioning with price cut"},
	}

	profiles := BuildProfiles(results)
	if len(profiles) != 2 {
		t.Fatalf("Expected 2 profiles, got %d", len(profiles))
	}

	// Sorted by competitor name.
	if profiles[0].Competitor != "Abbott" || profiles[1].Competitor != "Medtronic" {
		t.Errorf("Profiles should be sorted by name: %s, %s", profiles[0].Competitor, profiles[1].Competitor)
	}

	medtronic := profiles[1]
	if medtronic.SourceCount != 3 {
		t.Errorf("Expected 3 sources for Medtronic, got %d", medtronic.SourceCount)
	}
	if len(medtronic.Weaknesses) != 1 {
		t.Errorf("Expected 1 weakness signal, got %v", medtronic.Weaknesses)
	}
	if len(medtronic.Strengths) != 1 {
		t.Errorf("Expected 1 strength signal, got %v", medtronic.Strengths)
	}

	if profiles[0].PricingPosture != "value" {
		t.Errorf("Expected value posture for Abbott, got %s", profiles[0].PricingPosture)
	}
}

func TestBuildProfilesEmpty(t *testing.T) {
	if profiles := BuildProfiles(nil); len(profiles) != 0 {
		t.Errorf("Expected no profiles for no results, got %d", len(profiles))
	}
}
