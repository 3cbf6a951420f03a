package orchestrator

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/insightgym/insightgym/internal/cache"
	"github.com/insightgym/insightgym/internal/lua"
	"github.com/insightgym/insightgym/internal/metrics"
	"github.com/insightgym/insightgym/internal/state"
	"github.com/insightgym/insightgym/internal/store"
)

// Orchestrator is the message pipeline: plan, correct, execute, format.
type Orchestrator struct {
	planner  *Planner
	executor *Executor
	registry *Registry
	store    store.Store
	cache    *cache.ProfileCache
	sessions *state.SessionStore
	scripts  []string
	now      func() time.Time
}

// Options carries the optional collaborators. Zero values are valid: no
// cache, no sessions, no scripts, wall-clock time.
type Options struct {
	Cache      *cache.ProfileCache
	Sessions   *state.SessionStore
	LuaScripts []string
	MaxTokens  int
	Now        func() time.Time
}

func New(gen Generator, st store.Store, opts Options) *Orchestrator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	registry := NewRegistry()
	return &Orchestrator{
		planner:  NewPlanner(gen, registry, opts.MaxTokens),
		executor: NewExecutor(st, registry, opts.Cache, opts.Now),
		registry: registry,
		store:    st,
		cache:    opts.Cache,
		sessions: opts.Sessions,
		scripts:  opts.LuaScripts,
		now:      opts.Now,
	}
}

// Handle processes one message end to end. It always returns a usable
// PlanOutcome; every internal failure folds into ReplyText and Errors.
func (o *Orchestrator) Handle(ctx context.Context, message string, caller Caller) PlanOutcome {
	profile := o.profileSummary(ctx, caller)

	var history []state.Turn
	if o.sessions != nil {
		history = o.sessions.History(caller.ID)
	}

	plan := o.planner.Plan(ctx, message, caller, profile, history)
	metrics.Plans.WithLabelValues(planOutcomeLabel(plan)).Inc()

	for _, rule := range Correct(&plan, message, profile) {
		metrics.Corrections.WithLabelValues(rule).Inc()
	}
	o.applyScriptRules(&plan, message)

	plan.Results = o.executor.Execute(ctx, plan.Actions, caller)
	for _, r := range plan.Results {
		metrics.Actions.WithLabelValues(r.Action, string(r.Status)).Inc()
	}

	plan.ReplyText = FormatReply(plan, plan.Results)

	if o.sessions != nil {
		if err := o.sessions.Append(caller.ID, "user", message); err != nil {
			log.Printf("orchestrator: session append: %v", err)
		}
		if err := o.sessions.Append(caller.ID, "assistant", plan.ReplyText); err != nil {
			log.Printf("orchestrator: session append: %v", err)
		}
	}
	return plan
}

// profileSummary reads the caller's profile, via the cache when
// configured. A missing profile yields nil; the planner and rules treat
// that as an empty profile.
func (o *Orchestrator) profileSummary(ctx context.Context, caller Caller) *cache.Summary {
	if s := o.cache.Get(ctx, caller.ID); s != nil {
		return s
	}
	p, err := o.store.GetProfile(ctx, caller.ID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("orchestrator: load profile %s: %v", caller.ID, err)
		}
		return nil
	}
	s := &cache.Summary{
		UserID:       p.UserID,
		Name:         p.Name,
		Role:         p.Role,
		Language:     p.Language,
		HeightCM:     p.HeightCM,
		WeightKG:     p.WeightKG,
		FitnessGoals: p.FitnessGoals,
	}
	o.cache.Put(ctx, s)
	return s
}

// applyScriptRules lets operator Lua scripts append one action each.
// Script output goes through the same registry validation as planner
// output; a broken script is logged and skipped.
func (o *Orchestrator) applyScriptRules(plan *PlanOutcome, message string) {
	for _, script := range o.scripts {
		extra, err := lua.RunRule(script, message)
		if err != nil {
			log.Printf("orchestrator: rule script %s: %v", script, err)
			continue
		}
		if extra == nil {
			continue
		}
		raw := []any{map[string]any{
			"name":   extra.Action,
			"params": extra.Params,
		}}
		actions, errs := o.registry.Validate(raw)
		plan.Errors = append(plan.Errors, errs...)
		if len(actions) > 0 && !hasAction(plan.Actions, actions[0].Name) {
			plan.Actions = append(plan.Actions, actions[0])
			metrics.Corrections.WithLabelValues("script").Inc()
		}
	}
}

func planOutcomeLabel(plan PlanOutcome) string {
	for _, e := range plan.Errors {
		switch {
		case strings.HasPrefix(e, "provider_unavailable"):
			metrics.ProviderFailures.WithLabelValues("generator").Inc()
			return "provider_unavailable"
		case strings.HasPrefix(e, "invalid_json"):
			return "invalid_json"
		}
	}
	return "ok"
}
