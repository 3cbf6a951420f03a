// Package orchestrator turns a free-text chat message into authorized
// backend operations and a reply consistent with what actually executed.
// The pipeline is planner, correction rules, executor, formatter; the
// Handle boundary never returns an error to the transport.
package orchestrator

// Caller is the authenticated actor a message is processed for. Identity
// and role come from the platform's auth layer.
type Caller struct {
	ID       string
	Role     string // member, coach, admin
	Language string
}

// ActionRequest is one validated, registry-known operation to execute.
type ActionRequest struct {
	Name   string         `json:"name"`
	Params map[string]any `json:"params"`
}

// Status of a single executed action.
type Status string

const (
	StatusOK        Status = "ok"
	StatusError     Status = "error"
	StatusNeedsInfo Status = "needs_info"
)

// ExecutionResult is one action's outcome. Data carries the fields the
// formatter renders from; Error is set only for StatusError.
type ExecutionResult struct {
	Action string         `json:"action"`
	Status Status         `json:"status"`
	Data   map[string]any `json:"data,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// PlanOutcome is the complete result of processing one message. It is
// always producible: every internal failure folds into ReplyText and
// Errors rather than surfacing as a fault.
type PlanOutcome struct {
	ReplyText string            `json:"reply_text"`
	Actions   []ActionRequest   `json:"actions"`
	Results   []ExecutionResult `json:"results"`
	Errors    []string          `json:"errors,omitempty"`
}

// fallbackReply is the static reply used when neither the planner nor the
// formatter produced anything renderable.
const fallbackReply = "Sorry, I couldn't process that request right now. Please try again."

// goalQuestion is the fixed clarifying question asked when a
// goal-dependent action cannot proceed safely.
const goalQuestion = "What is your main fitness goal: weight loss, muscle gain, endurance, or general fitness?"
