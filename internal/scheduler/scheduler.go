// Package scheduler runs the nightly reminder sweep: every booking
// scheduled for the next calendar day gets a notification record, which
// the platform's delivery layer picks up out of band.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/insightgym/insightgym/internal/store"
	"github.com/insightgym/insightgym/internal/when"
)

// Scheduler owns the cron instance. Start is idempotent per process; Stop
// waits for a running sweep to finish.
type Scheduler struct {
	cron  *cron.Cron
	store store.Store
	now   func() time.Time
}

// New builds a scheduler over the given store. The spec string is cron
// syntax, e.g. "0 20 * * *" for 20:00 daily.
func New(st store.Store, spec string) (*Scheduler, error) {
	s := &Scheduler{
		cron:  cron.New(),
		store: st,
		now:   time.Now,
	}
	if _, err := s.cron.AddFunc(spec, s.sweep); err != nil {
		return nil, fmt.Errorf("scheduler: bad cron spec %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	log.Printf("scheduler: reminder sweep started")
}

func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	n, err := s.Sweep(ctx)
	if err != nil {
		log.Printf("scheduler: sweep failed: %v", err)
		return
	}
	log.Printf("scheduler: created %d reminder(s)", n)
}

// Sweep creates reminder notifications for every booking on the next
// calendar day and returns how many were written.
func (s *Scheduler) Sweep(ctx context.Context) (int, error) {
	date := s.now().AddDate(0, 0, 1).Format(when.DateLayout)
	bookings, err := s.store.BookingsOn(ctx, date)
	if err != nil {
		return 0, fmt.Errorf("scheduler: list bookings: %w", err)
	}
	created := 0
	for _, b := range bookings {
		title := b.ProgramID
		if p, err := s.store.GetProgram(ctx, b.ProgramID); err == nil {
			title = p.Title
		}
		body := fmt.Sprintf("Reminder: %s session tomorrow (%s) at %s.", title, b.Date, b.Time)
		if _, err := s.store.CreateNotification(ctx, b.UserID, body); err != nil {
			log.Printf("scheduler: notify %s: %v", b.UserID, err)
			continue
		}
		created++
	}
	return created, nil
}
