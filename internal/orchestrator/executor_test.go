package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/insightgym/insightgym/internal/store"
)

var testNow = func() time.Time {
	return time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
}

func newTestExecutor(f *fakeStore) *Executor {
	return NewExecutor(f, NewRegistry(), nil, testNow)
}

func TestForbiddenIssuesNoStoreCalls(t *testing.T) {
	cases := []struct {
		action string
		role   string
	}{
		{"update_settings", "member"},
		{"get_settings", "coach"},
		{"generate_plan", "member"},
		{"suggest_plans", "coach"},
		{"suggest_plans", "admin"},
		{"record_measurement", "admin"},
		{"update_profile", "admin"},
	}
	for _, tc := range cases {
		f := newFakeStore()
		e := newTestExecutor(f)
		results := e.Execute(context.Background(), []ActionRequest{
			{Name: tc.action, Params: map[string]any{
				"fields": map[string]any{"k": "v"}, "goal": "endurance", "weight_kg": 70.0,
			}},
		}, Caller{ID: "u1", Role: tc.role})

		if len(results) != 1 {
			t.Fatalf("%s/%s: got %d results", tc.action, tc.role, len(results))
		}
		if results[0].Status != StatusError || results[0].Error != "forbidden" {
			t.Errorf("%s/%s: got %+v, want forbidden error", tc.action, tc.role, results[0])
		}
		if f.calls != 0 {
			t.Errorf("%s/%s: %d datastore calls before authorization", tc.action, tc.role, f.calls)
		}
	}
}

func TestExecuteIndependentCommits(t *testing.T) {
	f := newFakeStore()
	f.profiles["u1"] = &store.Profile{UserID: "u1", Role: "member"}
	e := newTestExecutor(f)

	results := e.Execute(context.Background(), []ActionRequest{
		{Name: "update_profile", Params: map[string]any{"fields": map[string]any{"name": "Ada"}}},
		{Name: "book_session", Params: map[string]any{"program_id": "missing"}},
		{Name: "list_trainers", Params: map[string]any{}},
	}, Caller{ID: "u1", Role: "member"})

	if len(results) != 3 {
		t.Fatalf("got %d results", len(results))
	}
	if results[0].Status != StatusOK {
		t.Errorf("update_profile: %+v", results[0])
	}
	if results[1].Status != StatusError || results[1].Error != "not_found" {
		t.Errorf("book_session on missing program: %+v", results[1])
	}
	if results[2].Status != StatusOK {
		t.Errorf("failure in action 2 leaked into action 3: %+v", results[2])
	}
	if f.profiles["u1"].Name != "Ada" {
		t.Error("earlier action was rolled back")
	}
}

func TestSuggestPlansNeedsInfoWithoutGoal(t *testing.T) {
	f := newFakeStore()
	f.profiles["u1"] = &store.Profile{UserID: "u1", Role: "member"}
	e := newTestExecutor(f)

	res := e.Execute(context.Background(), []ActionRequest{
		{Name: "suggest_plans", Params: map[string]any{}},
	}, Caller{ID: "u1", Role: "member"})[0]

	if res.Status != StatusNeedsInfo {
		t.Fatalf("status = %s", res.Status)
	}
	if q, _ := res.Data["question"].(string); q == "" {
		t.Error("needs_info without a clarifying question")
	}
}

func TestSuggestPlansUsesStoredGoal(t *testing.T) {
	f := newFakeStore()
	f.profiles["u1"] = &store.Profile{UserID: "u1", Role: "member", FitnessGoals: []string{"endurance"}}
	f.programs = []store.Program{
		{ID: "p1", Title: "5K Builder", Goal: "endurance", Level: "beginner"},
		{ID: "p2", Title: "Bulk Up", Goal: "muscle_gain", Level: "advanced"},
	}
	e := newTestExecutor(f)

	res := e.Execute(context.Background(), []ActionRequest{
		{Name: "suggest_plans", Params: map[string]any{}},
	}, Caller{ID: "u1", Role: "member"})[0]

	if res.Status != StatusOK {
		t.Fatalf("got %+v", res)
	}
	plans, _ := res.Data["plans"].([]any)
	if len(plans) != 1 {
		t.Fatalf("plans = %v", plans)
	}
	if res.Data["goal"] != "endurance" {
		t.Errorf("goal = %v", res.Data["goal"])
	}
}

func TestGetProgressComputesBMI(t *testing.T) {
	f := newFakeStore()
	f.profiles["u1"] = &store.Profile{UserID: "u1", Role: "member", HeightCM: 170, WeightKG: 67.6}
	e := newTestExecutor(f)

	res := e.Execute(context.Background(), []ActionRequest{
		{Name: "get_progress", Params: map[string]any{}},
	}, Caller{ID: "u1", Role: "member"})[0]

	if res.Status != StatusOK {
		t.Fatalf("got %+v", res)
	}
	if bmi, _ := res.Data["bmi"].(float64); bmi != 23.4 {
		t.Errorf("bmi = %v, want 23.4", res.Data["bmi"])
	}
}

func TestRecordMeasurementResolvesDate(t *testing.T) {
	f := newFakeStore()
	e := newTestExecutor(f)
	caller := Caller{ID: "u1", Role: "member"}

	cases := []struct {
		params map[string]any
		want   string
	}{
		{map[string]any{"weight_kg": 70.0}, "2024-01-10"},
		{map[string]any{"weight_kg": 70.0, "date": "tomorrow"}, "2024-01-11"},
		{map[string]any{"weight_kg": 70.0, "date": "whenever"}, "2024-01-10"},
		{map[string]any{"weight_kg": 70.0, "date": "2024-01-05"}, "2024-01-05"},
	}
	for _, tc := range cases {
		res := e.Execute(context.Background(), []ActionRequest{
			{Name: "record_measurement", Params: tc.params},
		}, caller)[0]
		if res.Status != StatusOK {
			t.Fatalf("params %v: %+v", tc.params, res)
		}
		if res.Data["date"] != tc.want {
			t.Errorf("params %v: date = %v, want %s", tc.params, res.Data["date"], tc.want)
		}
	}
}

func TestBookSessionDefaultsAndNotifies(t *testing.T) {
	f := newFakeStore()
	f.programs = []store.Program{{ID: "p1", Title: "5K Builder", Goal: "endurance"}}
	e := newTestExecutor(f)

	res := e.Execute(context.Background(), []ActionRequest{
		{Name: "book_session", Params: map[string]any{"program_id": "p1"}},
	}, Caller{ID: "u1", Role: "member"})[0]

	if res.Status != StatusOK {
		t.Fatalf("got %+v", res)
	}
	if res.Data["date"] != "2024-01-11" || res.Data["time"] != "18:00" {
		t.Errorf("defaults = %v / %v, want next day at 18:00", res.Data["date"], res.Data["time"])
	}
	if len(f.bookings) != 1 {
		t.Fatalf("bookings = %d", len(f.bookings))
	}
	if f.bookings[0].Date != "2024-01-11" || f.bookings[0].Time != "18:00" {
		t.Errorf("stored booking holds a relative value: %+v", f.bookings[0])
	}
	if len(f.notifications) != 1 {
		t.Error("booking confirmation notification missing")
	}
}

func TestBookSessionResolvesPhrases(t *testing.T) {
	f := newFakeStore()
	f.programs = []store.Program{{ID: "p1", Title: "5K Builder"}}
	e := newTestExecutor(f)

	res := e.Execute(context.Background(), []ActionRequest{
		{Name: "book_session", Params: map[string]any{
			"program_id": "p1", "date": "in 3 days", "time": "9:30 pm",
		}},
	}, Caller{ID: "u1", Role: "member"})[0]

	if res.Data["date"] != "2024-01-13" || res.Data["time"] != "21:30" {
		t.Errorf("resolved = %v / %v", res.Data["date"], res.Data["time"])
	}
}

func TestSendMessageNotifiesRecipient(t *testing.T) {
	f := newFakeStore()
	e := newTestExecutor(f)

	res := e.Execute(context.Background(), []ActionRequest{
		{Name: "send_message", Params: map[string]any{"recipient_id": "u2", "body": "see you at 6"}},
	}, Caller{ID: "u1", Role: "member"})[0]

	if res.Status != StatusOK {
		t.Fatalf("got %+v", res)
	}
	if len(f.messages) != 1 || f.messages[0].RecipientID != "u2" {
		t.Errorf("messages = %+v", f.messages)
	}
	if len(f.notifications) != 1 || f.notifications[0].UserID != "u2" {
		t.Errorf("notifications = %+v", f.notifications)
	}
}

func TestUpdateSettingsAdmin(t *testing.T) {
	f := newFakeStore()
	e := newTestExecutor(f)

	res := e.Execute(context.Background(), []ActionRequest{
		{Name: "update_settings", Params: map[string]any{"fields": map[string]any{"maintenance": "on"}}},
	}, Caller{ID: "a1", Role: "admin"})[0]

	if res.Status != StatusOK {
		t.Fatalf("got %+v", res)
	}
	if f.settings["maintenance"] != "on" {
		t.Errorf("settings = %v", f.settings)
	}
}

func TestTabHelpUnknownTabFallsBackToGeneral(t *testing.T) {
	e := newTestExecutor(newFakeStore())
	res := e.Execute(context.Background(), []ActionRequest{
		{Name: "tab_help", Params: map[string]any{"tab": "payments"}},
	}, Caller{ID: "u1", Role: "member"})[0]

	if res.Data["tab"] != "general" {
		t.Errorf("tab = %v", res.Data["tab"])
	}
	if help, _ := res.Data["help"].(string); help == "" {
		t.Error("empty help text")
	}
}
