package orchestrator

import (
	"fmt"
	"strings"
)

// Actions with a deterministic, data-driven presentation. When one of
// these succeeds, its templated message replaces the planner's draft so
// the visible reply can never contradict what actually executed.
var formattable = map[string]bool{
	"suggest_plans": true,
	"get_progress":  true,
	"today_workout": true,
	"list_trainers": true,
	"book_session":  true,
	"tab_help":      true,
}

// FormatReply picks the final user-visible text: the first formattable
// ok/needs_info result wins, then the planner's draft, then the static
// fallback. No generation calls; same results, same reply.
func FormatReply(plan PlanOutcome, results []ExecutionResult) string {
	for _, r := range results {
		if !formattable[r.Action] {
			continue
		}
		if r.Status != StatusOK && r.Status != StatusNeedsInfo {
			continue
		}
		if text := formatResult(r); text != "" {
			return text
		}
	}
	if strings.TrimSpace(plan.ReplyText) != "" {
		return plan.ReplyText
	}
	return fallbackReply
}

func formatResult(r ExecutionResult) string {
	if r.Status == StatusNeedsInfo {
		if q, _ := r.Data["question"].(string); q != "" {
			return q
		}
		return goalQuestion
	}

	switch r.Action {
	case "suggest_plans":
		return formatPlans(r.Data)
	case "get_progress":
		return formatProgress(r.Data)
	case "today_workout":
		return formatTodayWorkout(r.Data)
	case "list_trainers":
		return formatTrainers(r.Data)
	case "book_session":
		return formatBooking(r.Data)
	case "tab_help":
		help, _ := r.Data["help"].(string)
		return help
	}
	return ""
}

func formatPlans(data map[string]any) string {
	plans, _ := data["plans"].([]any)
	goal, _ := data["goal"].(string)
	if len(plans) == 0 {
		return "No training plans are available right now. Please check back soon."
	}
	var titles []string
	for _, p := range plans {
		m, ok := p.(map[string]any)
		if !ok {
			continue
		}
		title, _ := m["title"].(string)
		level, _ := m["level"].(string)
		if level != "" {
			title = fmt.Sprintf("%s (%s)", title, level)
		}
		titles = append(titles, title)
	}
	return fmt.Sprintf("Here are %d suggested plans for %s: %s.",
		len(titles), strings.ReplaceAll(goal, "_", " "), strings.Join(titles, ", "))
}

func formatProgress(data map[string]any) string {
	bmi, ok := data["bmi"].(float64)
	if !ok {
		return ""
	}
	weight, _ := data["weight_kg"].(float64)
	return fmt.Sprintf("Your current BMI is %.1f at %.1f kg. Keep it up!", bmi, weight)
}

func formatTodayWorkout(data map[string]any) string {
	booked, _ := data["booked"].(bool)
	if !booked {
		return "You have no session booked for today."
	}
	title, _ := data["title"].(string)
	clock, _ := data["time"].(string)
	if title == "" {
		title = "Your session"
	}
	return fmt.Sprintf("Today's session is %s at %s.", title, clock)
}

func formatTrainers(data map[string]any) string {
	trainers, _ := data["trainers"].([]any)
	if len(trainers) == 0 {
		return "No coaches are listed at the moment."
	}
	var names []string
	for _, t := range trainers {
		if m, ok := t.(map[string]any); ok {
			if name, _ := m["name"].(string); name != "" {
				names = append(names, name)
			}
		}
	}
	return "Our coaches: " + strings.Join(names, ", ") + "."
}

func formatBooking(data map[string]any) string {
	title, _ := data["title"].(string)
	date, _ := data["date"].(string)
	clock, _ := data["time"].(string)
	return fmt.Sprintf("Booked: %s on %s at %s.", title, date, clock)
}
