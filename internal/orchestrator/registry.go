package orchestrator

import (
	"fmt"
	"sort"
	"strings"
)

// ActionSpec declares one entry of the closed action vocabulary: its
// parameter contract and the roles allowed to execute it.
type ActionSpec struct {
	Name     string
	Required []string
	Optional []string
	Roles    []string
}

// allowsRole reports whether role may execute this action.
func (s ActionSpec) allowsRole(role string) bool {
	for _, r := range s.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (s ActionSpec) allowsParam(key string) bool {
	for _, k := range s.Required {
		if k == key {
			return true
		}
	}
	for _, k := range s.Optional {
		if k == key {
			return true
		}
	}
	return false
}

// Registry is the closed action vocabulary. Anything not listed here is
// never executed, whatever the planner produces.
type Registry struct {
	specs map[string]ActionSpec
}

// NewRegistry builds the platform's action vocabulary.
func NewRegistry() *Registry {
	specs := []ActionSpec{
		{Name: "update_profile", Required: []string{"fields"}, Roles: []string{"member", "coach"}},
		{Name: "suggest_plans", Optional: []string{"goal"}, Roles: []string{"member"}},
		{Name: "generate_plan", Required: []string{"goal"}, Optional: []string{"level"}, Roles: []string{"coach"}},
		{Name: "get_progress", Roles: []string{"member"}},
		{Name: "today_workout", Roles: []string{"member"}},
		{Name: "record_measurement", Required: []string{"weight_kg"}, Optional: []string{"date"}, Roles: []string{"member"}},
		{Name: "book_session", Required: []string{"program_id"}, Optional: []string{"date", "time"}, Roles: []string{"member"}},
		{Name: "send_message", Required: []string{"recipient_id", "body"}, Roles: []string{"member", "coach"}},
		{Name: "list_trainers", Roles: []string{"member", "coach"}},
		{Name: "tab_help", Required: []string{"tab"}, Roles: []string{"member", "coach", "admin"}},
		{Name: "get_settings", Roles: []string{"admin"}},
		{Name: "update_settings", Required: []string{"fields"}, Roles: []string{"admin"}},
	}
	r := &Registry{specs: make(map[string]ActionSpec, len(specs))}
	for _, s := range specs {
		r.specs[s.Name] = s
	}
	return r
}

// Spec returns the registry entry for name.
func (r *Registry) Spec(name string) (ActionSpec, bool) {
	s, ok := r.specs[name]
	return s, ok
}

// ForRole returns the specs role may execute, sorted by name, for prompt
// construction.
func (r *Registry) ForRole(role string) []ActionSpec {
	var out []ActionSpec
	for _, s := range r.specs {
		if s.allowsRole(role) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Validate reduces raw planner output to executable ActionRequests.
// Malformed entries and unknown actions are dropped with an error;
// missing required params reject the entry naming the key; params
// outside the contract are stripped silently. Output order follows input
// order minus rejections.
func (r *Registry) Validate(raw []any) ([]ActionRequest, []string) {
	var actions []ActionRequest
	var errs []string

	for i, entry := range raw {
		obj, ok := entry.(map[string]any)
		if !ok {
			errs = append(errs, fmt.Sprintf("invalid_params: entry %d is not an object", i))
			continue
		}
		name, _ := obj["name"].(string)
		if name == "" {
			errs = append(errs, fmt.Sprintf("invalid_params: entry %d has no action name", i))
			continue
		}
		spec, ok := r.specs[name]
		if !ok {
			errs = append(errs, "unsupported_action: "+name)
			continue
		}

		params, _ := obj["params"].(map[string]any)

		var missing []string
		for _, key := range spec.Required {
			if _, ok := params[key]; !ok {
				missing = append(missing, key)
			}
		}
		if len(missing) > 0 {
			errs = append(errs, fmt.Sprintf("invalid_params: %s missing required %s",
				name, strings.Join(missing, ", ")))
			continue
		}

		clean := make(map[string]any, len(params))
		for key, val := range params {
			if spec.allowsParam(key) {
				clean[key] = val
			}
		}
		actions = append(actions, ActionRequest{Name: name, Params: clean})
	}
	return actions, errs
}
