package pipeline

import (
	"testing"

	"muhasibi/catalog"
)

func TestPathDifficultyFromEntityCount(t *testing.T) {
	cases := []struct {
		n    int
		want Difficulty
	}{
		{0, DifficultyHard},
		{1, DifficultyMedium},
		{2, DifficultyEasy},
		{5, DifficultyEasy},
	}
	for _, c := range cases {
		entities := make([]catalog.EntityMatch, c.n)
		result, _ := Path(entities, IntentDefinition)
		if result.Difficulty != c.want {
			t.Errorf("n=%d: difficulty = %v, want %v", c.n, result.Difficulty, c.want)
		}
	}
}

func TestPathComparisonIntentIsOneLevelHarder(t *testing.T) {
	entities := make([]catalog.EntityMatch, 2) // base difficulty would be easy
	result, _ := Path(entities, IntentComparison)
	if result.Difficulty != DifficultyMedium {
		t.Fatalf("expected comparison to bump easy->medium, got %v", result.Difficulty)
	}
}

func TestPathHardStaysHardWhenBumped(t *testing.T) {
	result, _ := Path(nil, IntentConnectAcrossPillars)
	if result.Difficulty != DifficultyHard {
		t.Fatalf("expected hard to remain hard when bumped, got %v", result.Difficulty)
	}
}

func TestPathReturnsDefaultPlan(t *testing.T) {
	result, _ := Path(nil, IntentDefinition)
	if len(result.Plan) != len(DefaultPlan) {
		t.Fatalf("expected default plan of %d steps, got %d", len(DefaultPlan), len(result.Plan))
	}
}

func TestPathPlanIsACopyNotSharedSlice(t *testing.T) {
	result, _ := Path(nil, IntentDefinition)
	result.Plan[0] = "mutated"
	if DefaultPlan[0] == "mutated" {
		t.Fatal("Path must not let callers mutate the shared DefaultPlan")
	}
}
