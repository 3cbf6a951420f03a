package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/insightgym/insightgym/internal/cache"
	"github.com/insightgym/insightgym/internal/store"
	"github.com/insightgym/insightgym/internal/when"
)

// Executor runs validated actions against the data capability. Each
// action commits independently: a failure never rolls back an earlier
// action in the same turn.
type Executor struct {
	store    store.Store
	registry *Registry
	cache    *cache.ProfileCache
	now      func() time.Time
}

func NewExecutor(st store.Store, registry *Registry, profileCache *cache.ProfileCache, now func() time.Time) *Executor {
	if now == nil {
		now = time.Now
	}
	return &Executor{store: st, registry: registry, cache: profileCache, now: now}
}

// Execute returns one result per action, in order. Role authorization
// happens before any store call; a forbidden action touches nothing.
func (e *Executor) Execute(ctx context.Context, actions []ActionRequest, caller Caller) []ExecutionResult {
	results := make([]ExecutionResult, 0, len(actions))
	for _, a := range actions {
		results = append(results, e.executeOne(ctx, a, caller))
	}
	return results
}

func (e *Executor) executeOne(ctx context.Context, a ActionRequest, caller Caller) ExecutionResult {
	spec, ok := e.registry.Spec(a.Name)
	if !ok {
		return ExecutionResult{Action: a.Name, Status: StatusError, Error: "unsupported_action"}
	}
	if !spec.allowsRole(caller.Role) {
		return ExecutionResult{Action: a.Name, Status: StatusError, Error: "forbidden"}
	}

	var res ExecutionResult
	switch a.Name {
	case "update_profile":
		res = e.updateProfile(ctx, a, caller)
	case "suggest_plans":
		res = e.suggestPlans(ctx, a, caller)
	case "generate_plan":
		res = e.generatePlan(ctx, a, caller)
	case "get_progress":
		res = e.getProgress(ctx, caller)
	case "today_workout":
		res = e.todayWorkout(ctx, caller)
	case "record_measurement":
		res = e.recordMeasurement(ctx, a, caller)
	case "book_session":
		res = e.bookSession(ctx, a, caller)
	case "send_message":
		res = e.sendMessage(ctx, a, caller)
	case "list_trainers":
		res = e.listTrainers(ctx)
	case "tab_help":
		res = e.tabHelp(a)
	case "get_settings":
		res = e.getSettings(ctx)
	case "update_settings":
		res = e.updateSettings(ctx, a)
	default:
		res = ExecutionResult{Status: StatusError, Error: "unsupported_action"}
	}
	res.Action = a.Name
	return res
}

func errResult(err error) ExecutionResult {
	if errors.Is(err, store.ErrNotFound) {
		return ExecutionResult{Status: StatusError, Error: "not_found"}
	}
	return ExecutionResult{Status: StatusError, Error: err.Error()}
}

func (e *Executor) updateProfile(ctx context.Context, a ActionRequest, caller Caller) ExecutionResult {
	fields, ok := a.Params["fields"].(map[string]any)
	if !ok || len(fields) == 0 {
		return ExecutionResult{Status: StatusError, Error: "invalid_params: fields must be a non-empty object"}
	}
	p, err := e.store.UpdateProfile(ctx, caller.ID, fields)
	if err != nil {
		return errResult(err)
	}
	e.cache.Invalidate(ctx, caller.ID)

	updated := make([]any, 0, len(fields))
	for k := range fields {
		updated = append(updated, k)
	}
	return ExecutionResult{Status: StatusOK, Data: map[string]any{
		"updated_fields": updated,
		"fitness_goals":  toAnySlice(p.FitnessGoals),
	}}
}

func (e *Executor) suggestPlans(ctx context.Context, a ActionRequest, caller Caller) ExecutionResult {
	goal, _ := a.Params["goal"].(string)
	if goal == "" {
		p, err := e.store.GetProfile(ctx, caller.ID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return errResult(err)
		}
		if p != nil && len(p.FitnessGoals) > 0 {
			goal = p.FitnessGoals[0]
		}
	}
	if goal == "" {
		return ExecutionResult{Status: StatusNeedsInfo, Data: map[string]any{
			"question": goalQuestion,
		}}
	}

	programs, err := e.store.ListPrograms(ctx, store.ProgramFilter{Goal: goal})
	if err != nil {
		return errResult(err)
	}
	if len(programs) == 0 {
		if programs, err = e.store.ListPrograms(ctx, store.ProgramFilter{}); err != nil {
			return errResult(err)
		}
	}

	plans := make([]any, 0, len(programs))
	for _, p := range programs {
		plans = append(plans, map[string]any{
			"id":    p.ID,
			"title": p.Title,
			"level": p.Level,
			"price": float64(p.PriceCents) / 100,
		})
	}
	return ExecutionResult{Status: StatusOK, Data: map[string]any{
		"goal":  goal,
		"plans": plans,
	}}
}

func (e *Executor) generatePlan(ctx context.Context, a ActionRequest, caller Caller) ExecutionResult {
	goal, _ := a.Params["goal"].(string)
	if goal == "" {
		return ExecutionResult{Status: StatusError, Error: "invalid_params: goal must be a string"}
	}
	level, _ := a.Params["level"].(string)
	if level == "" {
		level = "beginner"
	}
	p, err := e.store.CreateProgram(ctx, store.Program{
		Title:   planTitle(goal, level),
		Goal:    goal,
		Level:   level,
		CoachID: caller.ID,
	})
	if err != nil {
		return errResult(err)
	}
	return ExecutionResult{Status: StatusOK, Data: map[string]any{
		"program_id": p.ID,
		"title":      p.Title,
		"level":      p.Level,
	}}
}

func (e *Executor) getProgress(ctx context.Context, caller Caller) ExecutionResult {
	p, err := e.store.GetProfile(ctx, caller.ID)
	if err != nil {
		return errResult(err)
	}
	if p.HeightCM <= 0 || p.WeightKG <= 0 {
		return ExecutionResult{Status: StatusError,
			Error: "invalid_params: profile height and weight are required for progress"}
	}
	h := p.HeightCM / 100
	bmi := math.Round(p.WeightKG/(h*h)*10) / 10
	return ExecutionResult{Status: StatusOK, Data: map[string]any{
		"bmi":       bmi,
		"height_cm": p.HeightCM,
		"weight_kg": p.WeightKG,
	}}
}

func (e *Executor) todayWorkout(ctx context.Context, caller Caller) ExecutionResult {
	date := e.now().Format(when.DateLayout)
	b, prog, err := e.store.SessionOn(ctx, caller.ID, date)
	if errors.Is(err, store.ErrNotFound) {
		return ExecutionResult{Status: StatusOK, Data: map[string]any{
			"date":   date,
			"booked": false,
		}}
	}
	if err != nil {
		return errResult(err)
	}
	data := map[string]any{"date": date, "booked": true, "time": b.Time}
	if prog != nil {
		data["title"] = prog.Title
	}
	return ExecutionResult{Status: StatusOK, Data: data}
}

func (e *Executor) recordMeasurement(ctx context.Context, a ActionRequest, caller Caller) ExecutionResult {
	weight, ok := toFloat(a.Params["weight_kg"])
	if !ok || weight <= 0 {
		return ExecutionResult{Status: StatusError, Error: "invalid_params: weight_kg must be a positive number"}
	}
	// A measurement is a statement about the present: unresolved dates
	// mean today, not tomorrow.
	date := e.now().Format(when.DateLayout)
	if raw, _ := a.Params["date"].(string); raw != "" {
		if resolved, ok := when.Date(raw, e.now()); ok {
			date = resolved
		}
	}
	m, err := e.store.RecordMeasurement(ctx, caller.ID, store.Measurement{Date: date, WeightKG: weight})
	if err != nil {
		return errResult(err)
	}
	if _, err := e.store.UpdateProfile(ctx, caller.ID, map[string]any{"weight_kg": weight}); err == nil {
		e.cache.Invalidate(ctx, caller.ID)
	}
	return ExecutionResult{Status: StatusOK, Data: map[string]any{
		"date":      m.Date,
		"weight_kg": m.WeightKG,
	}}
}

func (e *Executor) bookSession(ctx context.Context, a ActionRequest, caller Caller) ExecutionResult {
	programID, _ := a.Params["program_id"].(string)
	if programID == "" {
		return ExecutionResult{Status: StatusError, Error: "invalid_params: program_id must be a string"}
	}
	prog, err := e.store.GetProgram(ctx, programID)
	if err != nil {
		return errResult(err)
	}

	rawDate, _ := a.Params["date"].(string)
	rawTime, _ := a.Params["time"].(string)
	date := when.DateOrDefault(rawDate, e.now())
	clock := when.ClockOrDefault(rawTime)

	b, err := e.store.CreateBooking(ctx, store.Booking{
		UserID:    caller.ID,
		ProgramID: prog.ID,
		Date:      date,
		Time:      clock,
	})
	if err != nil {
		return errResult(err)
	}
	_, _ = e.store.CreateNotification(ctx, caller.ID,
		fmt.Sprintf("Booked: %s on %s at %s.", prog.Title, date, clock))

	return ExecutionResult{Status: StatusOK, Data: map[string]any{
		"booking_id": b.ID,
		"title":      prog.Title,
		"date":       date,
		"time":       clock,
	}}
}

func (e *Executor) sendMessage(ctx context.Context, a ActionRequest, caller Caller) ExecutionResult {
	recipient, _ := a.Params["recipient_id"].(string)
	body, _ := a.Params["body"].(string)
	if recipient == "" || body == "" {
		return ExecutionResult{Status: StatusError, Error: "invalid_params: recipient_id and body must be strings"}
	}
	m, err := e.store.CreateMessage(ctx, caller.ID, recipient, body)
	if err != nil {
		return errResult(err)
	}
	_, _ = e.store.CreateNotification(ctx, recipient, "You have a new message.")
	return ExecutionResult{Status: StatusOK, Data: map[string]any{
		"message_id":   m.ID,
		"recipient_id": recipient,
	}}
}

func (e *Executor) listTrainers(ctx context.Context) ExecutionResult {
	trainers, err := e.store.ListTrainers(ctx)
	if err != nil {
		return errResult(err)
	}
	out := make([]any, 0, len(trainers))
	for _, t := range trainers {
		out = append(out, map[string]any{"id": t.UserID, "name": t.Name})
	}
	return ExecutionResult{Status: StatusOK, Data: map[string]any{"trainers": out}}
}

var tabHelpTexts = map[string]string{
	"profile":  "The profile tab holds your personal details, height, weight, and fitness goals.",
	"plans":    "The plans tab lists training programs you can browse and book.",
	"progress": "The progress tab charts your measurements and BMI over time.",
	"messages": "The messages tab is where you talk to your coach.",
	"settings": "The settings tab controls notifications and account options.",
	"general":  "Use the tabs at the top to reach your profile, plans, progress, messages, and settings.",
}

func (e *Executor) tabHelp(a ActionRequest) ExecutionResult {
	tab, _ := a.Params["tab"].(string)
	help, ok := tabHelpTexts[tab]
	if !ok {
		tab = "general"
		help = tabHelpTexts[tab]
	}
	return ExecutionResult{Status: StatusOK, Data: map[string]any{"tab": tab, "help": help}}
}

func (e *Executor) getSettings(ctx context.Context) ExecutionResult {
	s, err := e.store.GetSettings(ctx)
	if err != nil {
		return errResult(err)
	}
	return ExecutionResult{Status: StatusOK, Data: map[string]any{"settings": settingsData(s)}}
}

func (e *Executor) updateSettings(ctx context.Context, a ActionRequest) ExecutionResult {
	raw, ok := a.Params["fields"].(map[string]any)
	if !ok || len(raw) == 0 {
		return ExecutionResult{Status: StatusError, Error: "invalid_params: fields must be a non-empty object"}
	}
	fields := make(map[string]string, len(raw))
	for k, v := range raw {
		fields[k] = fmt.Sprint(v)
	}
	s, err := e.store.UpdateSettings(ctx, fields)
	if err != nil {
		return errResult(err)
	}
	return ExecutionResult{Status: StatusOK, Data: map[string]any{"settings": settingsData(s)}}
}

func planTitle(goal, level string) string {
	titles := map[string]string{
		"weight_loss":     "Weight Loss",
		"muscle_gain":     "Muscle Gain",
		"endurance":       "Endurance",
		"general_fitness": "General Fitness",
	}
	t, ok := titles[goal]
	if !ok {
		t = "Custom"
	}
	return fmt.Sprintf("%s Program (%s)", t, level)
}

func settingsData(s store.Settings) map[string]any {
	out := make(map[string]any, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		var f float64
		if _, err := fmt.Sscanf(n, "%g", &f); err == nil {
			return f, true
		}
	}
	return 0, false
}

func toAnySlice(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
