// Package store is the data-access capability consumed by the orchestrator:
// typed read/write operations over profile, program, booking, measurement,
// message, notification, and settings records. Two implementations exist,
// SQLite (default) and Postgres, behind the same interface.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("store: not found")

type Profile struct {
	UserID       string
	Name         string
	Role         string // member, coach, admin
	Language     string
	HeightCM     float64
	WeightKG     float64
	FitnessGoals []string
	UpdatedAt    time.Time
}

type Program struct {
	ID         string
	Title      string
	Goal       string // weight_loss, muscle_gain, endurance, general_fitness
	Level      string
	PriceCents int
	CoachID    string
}

type ProgramFilter struct {
	Goal  string
	Level string
}

type Booking struct {
	ID        string
	UserID    string
	ProgramID string
	Date      string // "2006-01-02", always absolute
	Time      string // "HH:MM", always absolute
	CreatedAt time.Time
}

type Measurement struct {
	ID        string
	UserID    string
	Date      string // "2006-01-02"
	WeightKG  float64
	CreatedAt time.Time
}

type Message struct {
	ID          string
	SenderID    string
	RecipientID string
	Body        string
	CreatedAt   time.Time
}

type Notification struct {
	ID        string
	UserID    string
	Body      string
	Read      bool
	CreatedAt time.Time
}

// Settings is the single shared settings row, as key/value pairs.
type Settings map[string]string

// Store is the narrow data capability handed to every action handler.
// Implementations must return ErrNotFound (possibly wrapped) for missing
// records rather than driver-level sentinels.
type Store interface {
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	// UpdateProfile overwrites only the supplied fields; list-valued fields
	// (fitness_goals) are replaced wholesale, never merged.
	UpdateProfile(ctx context.Context, userID string, fields map[string]any) (*Profile, error)

	ListPrograms(ctx context.Context, f ProgramFilter) ([]Program, error)
	CreateProgram(ctx context.Context, p Program) (*Program, error)
	GetProgram(ctx context.Context, id string) (*Program, error)
	ListTrainers(ctx context.Context) ([]Profile, error)

	CreateBooking(ctx context.Context, b Booking) (*Booking, error)
	// SessionOn returns the caller's booking (and its program) on the given
	// date, or ErrNotFound when nothing is scheduled.
	SessionOn(ctx context.Context, userID, date string) (*Booking, *Program, error)
	BookingsOn(ctx context.Context, date string) ([]Booking, error)

	RecordMeasurement(ctx context.Context, userID string, m Measurement) (*Measurement, error)
	CreateMessage(ctx context.Context, senderID, recipientID, body string) (*Message, error)
	CreateNotification(ctx context.Context, userID, body string) (*Notification, error)

	GetSettings(ctx context.Context) (Settings, error)
	UpdateSettings(ctx context.Context, fields map[string]string) (Settings, error)
}
