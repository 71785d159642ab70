package progress

import (
	"fmt"
	"sort"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"dietledger/internal/core"
)

// MaxSuggestions caps how many categories a suggestion list names.
const MaxSuggestions = 3

// Gap is a category behind where it should be.
type Gap struct {
	Category   string    `json:"category"`
	Remaining  float64   `json:"remaining"`
	Unit       core.Unit `json:"unit"`
	Percentage float64   `json:"percentage"`
}

var greetings = []struct {
	before time.Duration
	text   string
}{
	{clock(10, 30), "Good morning! Focus on:"},
	{clock(13, 0), "Mid-morning recommendations:"},
	{clock(16, 30), "Afternoon focus areas:"},
	{clock(19, 30), "Evening nutrition goals:"},
}

const nightGreeting = "Complete your daily targets:"

// Greeting picks the salutation for t's time of day.
func Greeting(t time.Time) string {
	now := sinceMidnight(t)
	for _, g := range greetings {
		if now < g.before {
			return g.text
		}
	}
	return nightGreeting
}

// Gaps returns categories under target, largest absolute shortfall first.
func Gaps(s Snapshot, target float64) []Gap {
	var gaps []Gap
	for _, cp := range s.Categories {
		if cp.Percentage >= target {
			continue
		}
		gaps = append(gaps, Gap{
			Category:   cp.Category,
			Remaining:  cp.Required - cp.Consumed,
			Unit:       cp.Unit,
			Percentage: cp.Percentage,
		})
	}
	sort.SliceStable(gaps, func(i, j int) bool {
		if gaps[i].Remaining != gaps[j].Remaining {
			return gaps[i].Remaining > gaps[j].Remaining
		}
		return gaps[i].Category < gaps[j].Category
	})
	return gaps
}

// Suggest renders the greeting followed by at most MaxSuggestions lines such
// as "• Cereal: 6.5 exchange remaining". With nothing behind target only the
// greeting is returned.
func Suggest(s Snapshot, target float64, at time.Time) []string {
	gaps := Gaps(s, target)
	if len(gaps) > MaxSuggestions {
		gaps = gaps[:MaxSuggestions]
	}
	lines := make([]string, 0, len(gaps)+1)
	lines = append(lines, Greeting(at))
	title := cases.Title(language.English)
	for _, g := range gaps {
		lines = append(lines, fmt.Sprintf("• %s: %s %s remaining", title.String(g.Category), core.FormatAmount(g.Remaining), g.Unit))
	}
	return lines
}
