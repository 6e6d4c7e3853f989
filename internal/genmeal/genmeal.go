// Package genmeal turns a text model into a last-resort meal source.
// A single Generate call walks a small state machine: build prompt,
// invoke, extract the first balanced JSON value from the free-text
// reply, validate and coerce it, repair at most once, normalize the
// numbers against the requested target. Every failure path lands on a
// deterministic placeholder meal, never on an error.
package genmeal

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"text/template"
	"time"

	"budget-meal-planner/internal/llm"
	"budget-meal-planner/internal/nutrition"
	"budget-meal-planner/internal/shared"

	"go.uber.org/zap"
)

//go:embed generate_prompt.md
var generatePrompt string

//go:embed repair_prompt.md
var repairPrompt string

const (
	agentName = "MealGenerator"

	// maxGeneratedCalories bounds what we accept from the model for a
	// single meal; anything beyond it is treated as a hallucination.
	maxGeneratedCalories = 6000

	// maxPromptExclusions caps how many recently used meal names are
	// repeated back to the model.
	maxPromptExclusions = 10

	// calorieBandFrac is the tolerance around the requested target
	// inside which the model's calorie figure is kept as-is.
	calorieBandFrac = 0.25

	// minMacroCoverageFrac is the share of the stated calories the
	// macros must account for before they are considered plausible.
	minMacroCoverageFrac = 0.25
)

var errNoJSON = errors.New("no JSON value found in response")

// Request describes the meal the planner needs generated.
type Request struct {
	Slot           nutrition.MealSlot
	CalorieTarget  float64
	MaxPrepMinutes int
	DietType       string
	Allergies      []string
	// Exclusions lists recently used meal names; only the most recent
	// ones are forwarded to the model.
	Exclusions []string
	// Treat marks a reward-day meal, steering the prompt towards an
	// indulgent dish instead of a routine one.
	Treat bool
}

// Generator produces meal candidates from a text model.
type Generator struct {
	textGen llm.TextGenerator
	logger  *zap.Logger
}

func NewGenerator(textGen llm.TextGenerator, logger *zap.Logger) *Generator {
	return &Generator{textGen: textGen, logger: logger}
}

// Generate asks the model for a meal matching the request. It never
// returns an error: when the model output cannot be salvaged (one
// repair round included) the deterministic placeholder for the slot is
// returned instead, marked as a fallback. The returned metadata covers
// every model call made, including the repair round.
func (g *Generator) Generate(ctx context.Context, req Request) (nutrition.MealCandidate, shared.AgentMeta) {
	start := time.Now()
	meta := shared.AgentMeta{AgentName: agentName}

	prompt, err := buildGeneratePrompt(req)
	if err != nil {
		g.logger.Warn("meal generation: prompt build failed", zap.Error(err))
		meta.Latency = time.Since(start)
		return placeholderFor(req), meta
	}

	resp, err := g.textGen.GenerateContent(ctx, prompt)
	if err != nil {
		g.logger.Warn("meal generation: model call failed",
			zap.String("slot", string(req.Slot)), zap.Error(err))
		meta.Latency = time.Since(start)
		return placeholderFor(req), meta
	}
	meta.Usage = resp.Usage

	if strings.TrimSpace(resp.Content) == "" {
		g.logger.Warn("meal generation: empty model output",
			zap.String("slot", string(req.Slot)))
		meta.Latency = time.Since(start)
		return placeholderFor(req), meta
	}

	candidate, decodeErr := decodeCandidate(resp.Content)
	if decodeErr == nil {
		meta.Latency = time.Since(start)
		return normalize(candidate, req), meta
	}
	if errors.Is(decodeErr, errNoJSON) {
		// Nothing to repair when the reply carries no JSON at all.
		g.logger.Warn("meal generation: no JSON in model output",
			zap.String("slot", string(req.Slot)))
		meta.Latency = time.Since(start)
		return placeholderFor(req), meta
	}

	candidate, repairErr := g.repair(ctx, resp.Content, &meta)
	meta.Latency = time.Since(start)
	if repairErr != nil {
		g.logger.Warn("meal generation: repair round failed, using placeholder",
			zap.String("slot", string(req.Slot)),
			zap.NamedError("decode_error", decodeErr),
			zap.NamedError("repair_error", repairErr))
		return placeholderFor(req), meta
	}
	return normalize(candidate, req), meta
}

// repair sends the malformed output back to the model once, demanding a
// JSON-only correction, and re-runs extraction and validation on it.
func (g *Generator) repair(ctx context.Context, malformed string, meta *shared.AgentMeta) (nutrition.MealCandidate, error) {
	prompt, err := buildRepairPrompt(malformed)
	if err != nil {
		return nutrition.MealCandidate{}, err
	}

	resp, err := g.textGen.GenerateContent(ctx, prompt)
	if err != nil {
		return nutrition.MealCandidate{}, fmt.Errorf("failed to get repair response: %w", err)
	}
	meta.Merge(shared.AgentMeta{Usage: resp.Usage})

	return decodeCandidate(resp.Content)
}

// decodeCandidate extracts the first balanced JSON value from the text
// and coerces it into a meal candidate. errNoJSON means there was
// nothing to parse; any other error means the JSON was present but did
// not describe a usable meal.
func decodeCandidate(text string) (nutrition.MealCandidate, error) {
	segment, ok := ExtractJSON(text)
	if !ok {
		return nutrition.MealCandidate{}, errNoJSON
	}

	var raw rawMeal
	if segment[0] == '[' {
		var list []rawMeal
		if err := json.Unmarshal([]byte(segment), &list); err != nil {
			return nutrition.MealCandidate{}, fmt.Errorf("failed to decode meal array: %w", err)
		}
		if len(list) == 0 {
			return nutrition.MealCandidate{}, fmt.Errorf("meal array is empty")
		}
		raw = list[0]
	} else if err := json.Unmarshal([]byte(segment), &raw); err != nil {
		return nutrition.MealCandidate{}, fmt.Errorf("failed to decode meal object: %w", err)
	}

	if err := raw.validate(); err != nil {
		return nutrition.MealCandidate{}, err
	}
	return raw.toCandidate(), nil
}

// normalize bounds the model's numbers against the request: calories
// outside ±25% of the target are replaced with the target itself, prep
// time is capped to the caller's budget, and macros that account for
// less than a quarter of the stated calories are recomputed from the
// default energy split.
func normalize(c nutrition.MealCandidate, req Request) nutrition.MealCandidate {
	if !nutrition.WithinTolerance(c.Calories, req.CalorieTarget, calorieBandFrac) {
		c.Calories = math.Round(req.CalorieTarget)
	}
	if req.MaxPrepMinutes > 0 && c.PrepTimeMinutes > req.MaxPrepMinutes {
		c.PrepTimeMinutes = req.MaxPrepMinutes
	}
	if c.MacroEnergy() < minMacroCoverageFrac*c.Calories {
		m := nutrition.DefaultMacroSplit(req.CalorieTarget)
		c.Proteins, c.Carbs, c.Fats = m.Proteins, m.Carbs, m.Fats
	}
	c.SourceKind = nutrition.SourceGenerated
	return c
}

// rawMeal is the loose shape we accept from the model before coercion.
type rawMeal struct {
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	Calories        looseNumber     `json:"calories"`
	Proteins        looseNumber     `json:"proteins"`
	Carbs           looseNumber     `json:"carbs"`
	Fats            looseNumber     `json:"fats"`
	PrepTimeMinutes looseNumber     `json:"prep_time_minutes"`
	Ingredients     []rawIngredient `json:"ingredients"`
}

type rawIngredient struct {
	Name   string      `json:"name"`
	Amount looseNumber `json:"amount"`
	Unit   string      `json:"unit"`
}

func (r rawMeal) validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("meal name is missing")
	}
	if r.Calories < 0 || r.Calories > maxGeneratedCalories {
		return fmt.Errorf("calories %.0f outside [0, %d]", float64(r.Calories), maxGeneratedCalories)
	}
	return nil
}

func (r rawMeal) toCandidate() nutrition.MealCandidate {
	c := nutrition.MealCandidate{
		Name:            strings.TrimSpace(r.Name),
		Description:     strings.TrimSpace(r.Description),
		Calories:        nonNegative(r.Calories),
		Proteins:        nonNegative(r.Proteins),
		Carbs:           nonNegative(r.Carbs),
		Fats:            nonNegative(r.Fats),
		PrepTimeMinutes: int(nonNegative(r.PrepTimeMinutes)),
		SourceKind:      nutrition.SourceGenerated,
	}
	for _, ing := range r.Ingredients {
		name := strings.TrimSpace(ing.Name)
		if name == "" {
			continue
		}
		c.Ingredients = append(c.Ingredients, nutrition.Ingredient{
			Name:   name,
			Amount: nonNegative(ing.Amount),
			Unit:   ing.Unit,
		})
	}
	return c
}

func nonNegative(n looseNumber) float64 {
	if n < 0 {
		return 0
	}
	return float64(n)
}

// looseNumber accepts both JSON numbers and numeric strings, which
// models produce interchangeably.
type looseNumber float64

func (n *looseNumber) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("value %q is not numeric", s)
	}
	*n = looseNumber(v)
	return nil
}

type generatePromptData struct {
	Slot           string
	CalorieTarget  int
	Proteins       int
	Carbs          int
	Fats           int
	MaxPrepMinutes int
	DietType       string
	Allergies      string
	Exclusions     string
	Treat          bool
}

func buildGeneratePrompt(req Request) (string, error) {
	macros := nutrition.DefaultMacroSplit(req.CalorieTarget)

	exclusions := req.Exclusions
	if len(exclusions) > maxPromptExclusions {
		exclusions = exclusions[len(exclusions)-maxPromptExclusions:]
	}

	data := generatePromptData{
		Slot:           string(req.Slot),
		CalorieTarget:  int(math.Round(req.CalorieTarget)),
		Proteins:       int(macros.Proteins),
		Carbs:          int(macros.Carbs),
		Fats:           int(macros.Fats),
		MaxPrepMinutes: req.MaxPrepMinutes,
		DietType:       req.DietType,
		Allergies:      strings.Join(req.Allergies, ", "),
		Exclusions:     strings.Join(exclusions, ", "),
		Treat:          req.Treat,
	}

	tmpl, err := template.New("generate").Parse(generatePrompt)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func buildRepairPrompt(malformed string) (string, error) {
	tmpl, err := template.New("repair").Parse(repairPrompt)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, struct{ Malformed string }{Malformed: malformed}); err != nil {
		return "", err
	}
	return buf.String(), nil
}
