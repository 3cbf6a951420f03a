package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/insightgym/insightgym/internal/cache"
	"github.com/insightgym/insightgym/internal/extract"
	"github.com/insightgym/insightgym/internal/state"
)

// Generator is the text-generation capability the planner consumes. The
// failover controller satisfies it; tests use fakes.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error)
}

// Planner turns a message into a draft reply plus validated actions with
// a single generation call. It never fails: provider or parse trouble
// yields a fallback PlanOutcome with zero actions and a tagged error.
type Planner struct {
	gen       Generator
	registry  *Registry
	maxTokens int
}

func NewPlanner(gen Generator, registry *Registry, maxTokens int) *Planner {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Planner{gen: gen, registry: registry, maxTokens: maxTokens}
}

// Plan builds the prompt, calls the generator once, extracts the JSON
// plan, and validates its actions against the registry.
func (p *Planner) Plan(ctx context.Context, message string, caller Caller, profile *cache.Summary, history []state.Turn) PlanOutcome {
	system := p.systemPrompt(caller)
	user := p.userPrompt(message, caller, profile, history)

	text, err := p.gen.Generate(ctx, system, user, p.maxTokens)
	if err != nil {
		return PlanOutcome{
			ReplyText: fallbackReply,
			Errors:    []string{"provider_unavailable: " + err.Error()},
		}
	}

	obj, err := extract.Object(text)
	if err != nil {
		return PlanOutcome{
			ReplyText: fallbackReply,
			Errors:    []string{"invalid_json: " + err.Error()},
		}
	}

	reply, _ := obj["reply_text"].(string)
	rawActions, _ := obj["actions"].([]any)
	actions, errs := p.registry.Validate(rawActions)

	return PlanOutcome{ReplyText: reply, Actions: actions, Errors: errs}
}

func (p *Planner) systemPrompt(caller Caller) string {
	var b strings.Builder
	b.WriteString("You are the assistant of a fitness platform. ")
	b.WriteString("Decide which backend actions the user's message asks for.\n\n")
	b.WriteString("Available actions for this user:\n")
	for _, spec := range p.registry.ForRole(caller.Role) {
		b.WriteString("- " + spec.Name)
		if len(spec.Required) > 0 {
			b.WriteString(" (required: " + strings.Join(spec.Required, ", ") + ")")
		}
		if len(spec.Optional) > 0 {
			b.WriteString(" (optional: " + strings.Join(spec.Optional, ", ") + ")")
		}
		b.WriteString("\n")
	}
	b.WriteString("\nRespond with exactly one JSON object and nothing else:\n")
	b.WriteString(`{"reply_text": "<answer to the user>", "actions": [{"name": "<action>", "params": {}}]}` + "\n")
	b.WriteString("Use an empty actions array when no action applies. ")
	b.WriteString("Never invent actions outside the list above.")
	return b.String()
}

func (p *Planner) userPrompt(message string, caller Caller, profile *cache.Summary, history []state.Turn) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Role: %s\nLanguage: %s\n", caller.Role, caller.Language)
	if profile != nil {
		fmt.Fprintf(&b, "Profile: name=%q height_cm=%.0f weight_kg=%.1f goals=%s\n",
			profile.Name, profile.HeightCM, profile.WeightKG,
			strings.Join(profile.FitnessGoals, ","))
	}
	if len(history) > 0 {
		b.WriteString("Recent conversation:\n")
		start := 0
		if len(history) > 6 {
			start = len(history) - 6
		}
		for _, t := range history[start:] {
			fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Text)
		}
	}
	b.WriteString("Message: " + message)
	return b.String()
}
