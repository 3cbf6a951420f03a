package scheduler

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/insightgym/insightgym/internal/store"
)

// fakeStore implements only the methods the sweep touches; the embedded
// interface panics on anything else.
type fakeStore struct {
	store.Store
	bookings      []store.Booking
	programs      map[string]store.Program
	notifications []store.Notification
}

func (f *fakeStore) BookingsOn(_ context.Context, date string) ([]store.Booking, error) {
	var out []store.Booking
	for _, b := range f.bookings {
		if b.Date == date {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeStore) GetProgram(_ context.Context, id string) (*store.Program, error) {
	p, ok := f.programs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (f *fakeStore) CreateNotification(_ context.Context, userID, body string) (*store.Notification, error) {
	n := store.Notification{UserID: userID, Body: body}
	f.notifications = append(f.notifications, n)
	return &n, nil
}

func TestSweepNotifiesTomorrowsBookings(t *testing.T) {
	f := &fakeStore{
		bookings: []store.Booking{
			{ID: "b1", UserID: "u1", ProgramID: "p1", Date: "2024-01-11", Time: "18:00"},
			{ID: "b2", UserID: "u2", ProgramID: "p1", Date: "2024-01-11", Time: "09:00"},
			{ID: "b3", UserID: "u3", ProgramID: "p1", Date: "2024-01-12", Time: "18:00"},
		},
		programs: map[string]store.Program{
			"p1": {ID: "p1", Title: "5K Builder"},
		},
	}
	s, err := New(f, "0 20 * * *")
	if err != nil {
		t.Fatal(err)
	}
	s.now = func() time.Time {
		return time.Date(2024, 1, 10, 20, 0, 0, 0, time.UTC)
	}

	n, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("created %d reminders, want 2", n)
	}
	if len(f.notifications) != 2 {
		t.Fatalf("notifications = %+v", f.notifications)
	}
	for _, notif := range f.notifications {
		if !strings.Contains(notif.Body, "5K Builder") || !strings.Contains(notif.Body, "2024-01-11") {
			t.Errorf("body = %q", notif.Body)
		}
	}
	if f.notifications[0].UserID == f.notifications[1].UserID {
		t.Error("both reminders went to the same user")
	}
}

func TestSweepUnknownProgramFallsBackToID(t *testing.T) {
	f := &fakeStore{
		bookings: []store.Booking{
			{ID: "b1", UserID: "u1", ProgramID: "gone", Date: "2024-01-11", Time: "18:00"},
		},
		programs: map[string]store.Program{},
	}
	s, err := New(f, "0 20 * * *")
	if err != nil {
		t.Fatal(err)
	}
	s.now = func() time.Time {
		return time.Date(2024, 1, 10, 20, 0, 0, 0, time.UTC)
	}

	if _, err := s.Sweep(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(f.notifications) != 1 || !strings.Contains(f.notifications[0].Body, "gone") {
		t.Errorf("notifications = %+v", f.notifications)
	}
}

func TestNewRejectsBadCronSpec(t *testing.T) {
	if _, err := New(&fakeStore{}, "not a cron spec"); err == nil {
		t.Fatal("expected error for bad spec")
	}
}
