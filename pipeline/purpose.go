package pipeline

import (
	"context"
	"fmt"
	"strings"

	"muhasibi/catalog"
	"muhasibi/modelclient"
)

// Purpose derives the request's goal and constraint set. The constraints
// list always contains the three mandatory items; any model-supplied
// constraints are appended. If
// the model call is unavailable or malformed, PURPOSE synthesizes a goal
// from the detected entities instead.
func Purpose(ctx context.Context, client *modelclient.Client, question string, entities []catalog.EntityMatch, keywords []string) (*PurposeResult, StageResult) {
	if client != nil {
		names := matchedNames(entities)
		result, err := client.PurposePath(ctx, question, names, keywords)
		if err == nil && result != nil && strings.TrimSpace(result.GoalAr) != "" {
			return &PurposeResult{
				GoalAr:      result.GoalAr,
				Constraints: mergeConstraints(result.Constraints),
			}, Proceed()
		}
	}

	return &PurposeResult{
		GoalAr:      synthesizeGoal(entities),
		Constraints: append([]string{}, MandatoryConstraints...),
	}, Proceed()
}

func synthesizeGoal(entities []catalog.EntityMatch) string {
	names := matchedNames(entities)
	if len(names) == 0 {
		return "بيان"
	}
	return fmt.Sprintf("بيان/توضيح %s", strings.Join(names, "، "))
}

func mergeConstraints(modelConstraints []string) []string {
	seen := make(map[string]bool, len(MandatoryConstraints))
	out := append([]string{}, MandatoryConstraints...)
	for _, m := range MandatoryConstraints {
		seen[m] = true
	}
	for _, c := range modelConstraints {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

func matchedNames(entities []catalog.EntityMatch) []string {
	names := make([]string, len(entities))
	for i, m := range entities {
		names[i] = m.Entity.NameAr
	}
	return names
}
