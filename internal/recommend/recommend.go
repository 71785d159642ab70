// Package recommend asks a language model for meal ideas that close the
// remaining gaps of a day.
package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"dietledger/internal/core"
	"dietledger/internal/foods"
	"dietledger/internal/log"
	"dietledger/internal/progress"
)

const (
	MaxFoodsPerCategory = 5

	AllMetMessage = "All daily requirements have been met!"
	NoKeyMessage  = "Recommendations are unavailable: no Gemini API key is configured."
	failurePrefix = "Recommendations are unavailable right now: "
)

// Generator produces free text from a prompt.
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// FoodSource lists the foods of a category.
type FoodSource interface {
	FoodsInCategory(category string) []foods.Food
}

// Result is what callers show. Text is always set; Available reports whether
// it came from the model.
type Result struct {
	MealTime  string              `json:"meal_time"`
	Remaining []progress.Gap      `json:"remaining"`
	Foods     map[string][]string `json:"foods,omitempty"`
	Text      string              `json:"text"`
	Available bool                `json:"available"`
}

type Recommender struct {
	gen     Generator
	foods   FoodSource
	catalog progress.Catalog
	logger  *log.Logger
}

// New builds a Recommender. gen may be nil when no model is configured.
func New(gen Generator, foods FoodSource, catalog progress.Catalog, logger *log.Logger) *Recommender {
	if logger == nil {
		logger = log.Discard()
	}
	return &Recommender{
		gen:     gen,
		foods:   foods,
		catalog: catalog,
		logger:  logger.WithComponent(log.ComponentRecommend),
	}
}

// MealTime names the meal for the hour of at.
func MealTime(at time.Time) string {
	switch h := at.Hour(); {
	case h < 11:
		return "breakfast"
	case h < 16:
		return "lunch"
	case h < 22:
		return "dinner"
	default:
		return "snack"
	}
}

// Recommend never fails: model problems are logged and turned into a
// readable message.
func (r *Recommender) Recommend(ctx context.Context, snap progress.Snapshot, at time.Time) Result {
	res := Result{
		MealTime:  MealTime(at),
		Remaining: progress.Remaining(snap, r.catalog),
	}
	if len(res.Remaining) == 0 {
		res.Text = AllMetMessage
		return res
	}

	choices, err := r.gatherFoods(ctx, res.Remaining)
	if err != nil {
		return r.unavailable(ctx, res, err)
	}
	res.Foods = choices

	if r.gen == nil {
		r.logger.WarnContext(ctx, "Recommendation skipped",
			log.FieldError, core.ErrRecommendationUnavailable,
			"reason", "no generator configured")
		res.Text = NoKeyMessage
		return res
	}

	text, err := r.gen.GenerateContent(ctx, BuildPrompt(res.MealTime, res.Remaining, choices))
	if err != nil {
		return r.unavailable(ctx, res, err)
	}
	res.Text = strings.TrimSpace(text)
	res.Available = true
	return res
}

func (r *Recommender) unavailable(ctx context.Context, res Result, cause error) Result {
	err := fmt.Errorf("%w: %w", core.ErrRecommendationUnavailable, cause)
	r.logger.ErrorContext(ctx, "Recommendation failed", log.FieldError, err)
	res.Text = failurePrefix + cause.Error()
	return res
}

// gatherFoods collects up to MaxFoodsPerCategory labels for each gap.
func (r *Recommender) gatherFoods(ctx context.Context, gaps []progress.Gap) (map[string][]string, error) {
	labels := make([][]string, len(gaps))
	g, ctx := errgroup.WithContext(ctx)
	for i, gap := range gaps {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			list := r.foods.FoodsInCategory(gap.Category)
			if len(list) > MaxFoodsPerCategory {
				list = list[:MaxFoodsPerCategory]
			}
			for _, f := range list {
				labels[i] = append(labels[i], f.Label())
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string][]string)
	for i, gap := range gaps {
		if len(labels[i]) > 0 {
			out[gap.Category] = labels[i]
		}
	}
	return out, nil
}

// BuildPrompt renders the request sent to the model.
func BuildPrompt(meal string, gaps []progress.Gap, choices map[string][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a pediatric nutritionist planning %s for a child on an exchange-based diet.\n\n", meal)
	b.WriteString("Remaining requirements for today:\n")
	for _, g := range gaps {
		fmt.Fprintf(&b, "- %s: %s %s remaining\n", g.Category, core.FormatAmount(g.Remaining), g.Unit)
	}

	available, _ := json.MarshalIndent(choices, "", "  ")
	fmt.Fprintf(&b, "\nAvailable foods per category:\n%s\n\n", available)

	fmt.Fprintf(&b, `Reply with:
1. Concrete %[1]s suggestions built only from the foods above, with portions and exchange values.
2. Two or three simple kid-friendly combinations mixing categories.
3. How to spread what is left over the remaining meals.
Address the largest remaining requirements first.`, meal)
	return b.String()
}
