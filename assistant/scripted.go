package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/matrimonyai/backend/matching"
)

// ScriptedGenerator is the offline matchmaker. It acknowledges what it has
// learned so far and asks about the first preference still missing.
type ScriptedGenerator struct{}

var followUps = []struct {
	missing  func(p matching.Preferences) bool
	question string
}{
	{func(p matching.Preferences) bool { return p.AgeMin == 0 }, "What age range would you be comfortable with for your partner?"},
	{func(p matching.Preferences) bool { return len(p.Cities) == 0 }, "Which cities would you prefer your partner to live in?"},
	{func(p matching.Preferences) bool { return len(p.Religion) == 0 }, "Does your partner's religion matter to you? If so, which one?"},
	{func(p matching.Preferences) bool { return len(p.Occupation) == 0 }, "What kind of profession would you like your partner to have?"},
	{func(p matching.Preferences) bool { return len(p.PersonalityTraits) == 0 }, "How would you describe the personality of your ideal partner?"},
}

func (ScriptedGenerator) Generate(_ context.Context, req Request) (string, error) {
	var parts []string
	if learned := summarize(req.Snapshot); learned != "" {
		parts = append(parts, "Thank you, I have noted "+learned+".")
	} else {
		parts = append(parts, "Thank you for sharing.")
	}

	for _, f := range followUps {
		if f.missing(req.Snapshot) {
			parts = append(parts, f.question)
			return strings.Join(parts, " "), nil
		}
	}
	parts = append(parts, "I have a good picture of what you are looking for. Tap \"Find matches\" whenever you are ready.")
	return strings.Join(parts, " "), nil
}

func summarize(p matching.Preferences) string {
	var items []string
	if p.AgeMin > 0 {
		items = append(items, fmt.Sprintf("an age range of %d to %d", p.AgeMin, p.AgeMax))
	}
	if len(p.Cities) > 0 {
		items = append(items, "cities: "+strings.Join(p.Cities, ", "))
	}
	if len(p.Religion) > 0 {
		items = append(items, "religion: "+strings.Join(p.Religion, ", "))
	}
	if len(p.Occupation) > 0 {
		items = append(items, "profession: "+strings.Join(p.Occupation, ", "))
	}
	if len(p.PersonalityTraits) > 0 {
		items = append(items, "traits: "+strings.Join(p.PersonalityTraits, ", "))
	}
	return strings.Join(items, "; ")
}
