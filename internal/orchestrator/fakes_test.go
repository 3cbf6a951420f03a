package orchestrator

import (
	"context"
	"fmt"

	"github.com/insightgym/insightgym/internal/store"
)

// fakeGen returns a canned completion, or err when set.
type fakeGen struct {
	reply string
	err   error
	calls int
}

func (g *fakeGen) Generate(_ context.Context, _, _ string, _ int) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

// fakeStore is an in-memory, call-counting data capability. Every method
// increments calls so authorization tests can assert zero datastore
// activity.
type fakeStore struct {
	calls int

	profiles      map[string]*store.Profile
	programs      []store.Program
	bookings      []store.Booking
	measurements  []store.Measurement
	messages      []store.Message
	notifications []store.Notification
	settings      store.Settings
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		profiles: make(map[string]*store.Profile),
		settings: make(store.Settings),
	}
}

func (f *fakeStore) GetProfile(_ context.Context, userID string) (*store.Profile, error) {
	f.calls++
	p, ok := f.profiles[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) UpdateProfile(_ context.Context, userID string, fields map[string]any) (*store.Profile, error) {
	f.calls++
	p, ok := f.profiles[userID]
	if !ok {
		p = &store.Profile{UserID: userID, Role: "member", Language: "en"}
		f.profiles[userID] = p
	}
	for k, v := range fields {
		switch k {
		case "name":
			p.Name, _ = v.(string)
		case "height_cm":
			if n, ok := v.(float64); ok {
				p.HeightCM = n
			}
		case "weight_kg":
			if n, ok := v.(float64); ok {
				p.WeightKG = n
			}
		case "fitness_goals":
			if vals, ok := v.([]any); ok {
				goals := make([]string, 0, len(vals))
				for _, g := range vals {
					if s, ok := g.(string); ok {
						goals = append(goals, s)
					}
				}
				p.FitnessGoals = goals
			}
		}
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) ListPrograms(_ context.Context, filter store.ProgramFilter) ([]store.Program, error) {
	f.calls++
	var out []store.Program
	for _, p := range f.programs {
		if filter.Goal != "" && p.Goal != filter.Goal {
			continue
		}
		if filter.Level != "" && p.Level != filter.Level {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeStore) CreateProgram(_ context.Context, p store.Program) (*store.Program, error) {
	f.calls++
	if p.ID == "" {
		p.ID = fmt.Sprintf("prog_%d", len(f.programs)+1)
	}
	f.programs = append(f.programs, p)
	return &p, nil
}

func (f *fakeStore) GetProgram(_ context.Context, id string) (*store.Program, error) {
	f.calls++
	for _, p := range f.programs {
		if p.ID == id {
			cp := p
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) ListTrainers(_ context.Context) ([]store.Profile, error) {
	f.calls++
	var out []store.Profile
	for _, p := range f.profiles {
		if p.Role == "coach" {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateBooking(_ context.Context, b store.Booking) (*store.Booking, error) {
	f.calls++
	if b.ID == "" {
		b.ID = fmt.Sprintf("book_%d", len(f.bookings)+1)
	}
	f.bookings = append(f.bookings, b)
	return &b, nil
}

func (f *fakeStore) SessionOn(_ context.Context, userID, date string) (*store.Booking, *store.Program, error) {
	f.calls++
	for _, b := range f.bookings {
		if b.UserID == userID && b.Date == date {
			cp := b
			for _, p := range f.programs {
				if p.ID == b.ProgramID {
					prog := p
					return &cp, &prog, nil
				}
			}
			return &cp, nil, nil
		}
	}
	return nil, nil, store.ErrNotFound
}

func (f *fakeStore) BookingsOn(_ context.Context, date string) ([]store.Booking, error) {
	f.calls++
	var out []store.Booking
	for _, b := range f.bookings {
		if b.Date == date {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeStore) RecordMeasurement(_ context.Context, userID string, m store.Measurement) (*store.Measurement, error) {
	f.calls++
	m.ID = fmt.Sprintf("meas_%d", len(f.measurements)+1)
	m.UserID = userID
	f.measurements = append(f.measurements, m)
	return &m, nil
}

func (f *fakeStore) CreateMessage(_ context.Context, senderID, recipientID, body string) (*store.Message, error) {
	f.calls++
	m := store.Message{
		ID:          fmt.Sprintf("msg_%d", len(f.messages)+1),
		SenderID:    senderID,
		RecipientID: recipientID,
		Body:        body,
	}
	f.messages = append(f.messages, m)
	return &m, nil
}

func (f *fakeStore) CreateNotification(_ context.Context, userID, body string) (*store.Notification, error) {
	f.calls++
	n := store.Notification{
		ID:     fmt.Sprintf("notif_%d", len(f.notifications)+1),
		UserID: userID,
		Body:   body,
	}
	f.notifications = append(f.notifications, n)
	return &n, nil
}

func (f *fakeStore) GetSettings(_ context.Context) (store.Settings, error) {
	f.calls++
	out := make(store.Settings, len(f.settings))
	for k, v := range f.settings {
		out[k] = v
	}
	return out, nil
}

func (f *fakeStore) UpdateSettings(_ context.Context, fields map[string]string) (store.Settings, error) {
	f.calls++
	for k, v := range fields {
		f.settings[k] = v
	}
	return f.GetSettings(context.Background())
}
