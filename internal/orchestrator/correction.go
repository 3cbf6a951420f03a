package orchestrator

import (
	"strings"

	"github.com/insightgym/insightgym/internal/cache"
)

// The correction layer is a deterministic safety net over the planner:
// keyword rules applied in a fixed order, each a named predicate plus
// transform over (message, plan). Rules add, replace, or remove whole
// actions; they never invent names outside the registry.

type correctionRule struct {
	name  string
	apply func(plan *PlanOutcome, message string, profile *cache.Summary) bool
}

var correctionRules = []correctionRule{
	{"needs_goal", ruleNeedsGoal},
	{"plan_substitution", rulePlanSubstitution},
	{"topic_injection", ruleTopicInjection},
	{"goal_backfill", ruleGoalBackfill},
}

// Correct runs the rules in order and returns the names of those that
// fired.
func Correct(plan *PlanOutcome, message string, profile *cache.Summary) []string {
	msg := strings.ToLower(message)
	var fired []string
	for _, r := range correctionRules {
		if r.apply(plan, msg, profile) {
			fired = append(fired, r.name)
		}
	}
	return fired
}

// goalKeywords maps explicit message phrases to canonical goal values.
// Order matters: first match wins.
var goalKeywords = []struct {
	phrase string
	goal   string
}{
	{"lose weight", "weight_loss"},
	{"weight loss", "weight_loss"},
	{"build muscle", "muscle_gain"},
	{"gain muscle", "muscle_gain"},
	{"muscle gain", "muscle_gain"},
	{"endurance", "endurance"},
	{"stamina", "endurance"},
	{"get fit", "general_fitness"},
	{"general fitness", "general_fitness"},
}

func goalInMessage(msg string) (string, bool) {
	for _, k := range goalKeywords {
		if strings.Contains(msg, k.phrase) {
			return k.goal, true
		}
	}
	return "", false
}

// planIntent reports whether the message asks for a training plan to buy
// or be suggested.
func planIntent(msg string) bool {
	if !strings.Contains(msg, "plan") {
		return false
	}
	for _, verb := range []string{"buy", "purchase", "suggest", "recommend"} {
		if strings.Contains(msg, verb) {
			return true
		}
	}
	return false
}

func hasAction(actions []ActionRequest, name string) bool {
	for _, a := range actions {
		if a.Name == name {
			return true
		}
	}
	return false
}

// ruleNeedsGoal: plan intent with no goal in either the profile or the
// message. The action list is replaced with a single bare suggest_plans,
// whose handler asks the clarifying question instead of mutating state.
func ruleNeedsGoal(plan *PlanOutcome, msg string, profile *cache.Summary) bool {
	if !planIntent(msg) {
		return false
	}
	if _, ok := goalInMessage(msg); ok {
		return false
	}
	if profile != nil && len(profile.FitnessGoals) > 0 {
		return false
	}
	plan.Actions = []ActionRequest{{Name: "suggest_plans", Params: map[string]any{}}}
	return true
}

// rulePlanSubstitution: a purchase-intent message must never trigger
// generate_plan (that builds a new program, it does not suggest one).
// Remove it and make sure suggest_plans is present.
func rulePlanSubstitution(plan *PlanOutcome, msg string, _ *cache.Summary) bool {
	if !planIntent(msg) || !hasAction(plan.Actions, "generate_plan") {
		return false
	}
	kept := plan.Actions[:0]
	for _, a := range plan.Actions {
		if a.Name != "generate_plan" {
			kept = append(kept, a)
		}
	}
	plan.Actions = kept
	if !hasAction(plan.Actions, "suggest_plans") {
		plan.Actions = append(plan.Actions, ActionRequest{Name: "suggest_plans", Params: map[string]any{}})
	}
	return true
}

// ruleTopicInjection: topics that are cheap to keyword-detect and
// expensive to miss get their action appended when the planner omitted it.
func ruleTopicInjection(plan *PlanOutcome, msg string, _ *cache.Summary) bool {
	fired := false

	if (strings.Contains(msg, "progress") || strings.Contains(msg, "bmi")) &&
		!hasAction(plan.Actions, "get_progress") {
		plan.Actions = append(plan.Actions, ActionRequest{Name: "get_progress", Params: map[string]any{}})
		fired = true
	}

	if strings.Contains(msg, "today") &&
		(strings.Contains(msg, "workout") || strings.Contains(msg, "training") || strings.Contains(msg, "session")) &&
		!hasAction(plan.Actions, "today_workout") {
		plan.Actions = append(plan.Actions, ActionRequest{Name: "today_workout", Params: map[string]any{}})
		fired = true
	}

	if (strings.Contains(msg, "trainer") || strings.Contains(msg, "coach")) &&
		!hasAction(plan.Actions, "list_trainers") {
		plan.Actions = append(plan.Actions, ActionRequest{Name: "list_trainers", Params: map[string]any{}})
		fired = true
	}

	if strings.Contains(msg, "help") && strings.Contains(msg, "tab") &&
		!hasAction(plan.Actions, "tab_help") {
		plan.Actions = append(plan.Actions, ActionRequest{
			Name:   "tab_help",
			Params: map[string]any{"tab": tabInMessage(msg)},
		})
		fired = true
	}

	return fired
}

var knownTabs = []string{"profile", "plans", "progress", "messages", "settings"}

func tabInMessage(msg string) string {
	for _, tab := range knownTabs {
		if strings.Contains(msg, tab) {
			return tab
		}
	}
	return "general"
}

// ruleGoalBackfill: the message states a goal the planner should have
// captured, and suggest_plans is queued. Persist the goal first so the
// suggestion reads it back, inserting update_profile immediately before
// the first suggest_plans.
func ruleGoalBackfill(plan *PlanOutcome, msg string, _ *cache.Summary) bool {
	goal, ok := goalInMessage(msg)
	if !ok {
		return false
	}
	appended := false
	if !hasAction(plan.Actions, "suggest_plans") {
		if !planIntent(msg) {
			return false
		}
		plan.Actions = append(plan.Actions, ActionRequest{Name: "suggest_plans", Params: map[string]any{}})
		appended = true
	}
	if hasAction(plan.Actions, "update_profile") {
		return appended
	}
	update := ActionRequest{
		Name:   "update_profile",
		Params: map[string]any{"fields": map[string]any{"fitness_goals": []any{goal}}},
	}
	for i, a := range plan.Actions {
		if a.Name == "suggest_plans" {
			plan.Actions = append(plan.Actions[:i],
				append([]ActionRequest{update}, plan.Actions[i:]...)...)
			return true
		}
	}
	return false
}
