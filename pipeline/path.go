package pipeline

import "muhasibi/catalog"

// harderIntents bump difficulty one level harder.
var harderIntents = map[Intent]bool{
	IntentComparison:           true,
	IntentConnectAcrossPillars: true,
}

// Path produces an ordered plan plus a difficulty label derived from
// entity count and intent.
func Path(entities []catalog.EntityMatch, intent Intent) (*PathResult, StageResult) {
	difficulty := difficultyFromEntityCount(len(entities))
	if harderIntents[intent] {
		difficulty = oneLevelHarder(difficulty)
	}

	return &PathResult{
		Plan:       append([]string{}, DefaultPlan...),
		Difficulty: difficulty,
	}, Proceed()
}

func difficultyFromEntityCount(n int) Difficulty {
	switch {
	case n == 0:
		return DifficultyHard
	case n == 1:
		return DifficultyMedium
	default:
		return DifficultyEasy
	}
}

func oneLevelHarder(d Difficulty) Difficulty {
	switch d {
	case DifficultyEasy:
		return DifficultyMedium
	case DifficultyMedium:
		return DifficultyHard
	default:
		return DifficultyHard
	}
}
