package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// Postgres implements Store on a shared Postgres database, for deployments
// where the platform's main database holds the records. Schema setup is
// idempotent.
type Postgres struct {
	db *sql.DB
}

// OpenPostgres connects with the given DSN and ensures the schema exists.
func OpenPostgres(dsn string) (*Postgres, error) {
	if dsn == "" {
		return nil, fmt.Errorf("store: postgres dsn is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: postgres ping: %w", err)
	}
	p := &Postgres{db: db}
	if err := p.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return p, nil
}

func (s *Postgres) Close() error {
	return s.db.Close()
}

func (s *Postgres) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS profiles (
			user_id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT 'member',
			language TEXT NOT NULL DEFAULT 'en',
			height_cm DOUBLE PRECISION NOT NULL DEFAULT 0,
			weight_kg DOUBLE PRECISION NOT NULL DEFAULT 0,
			fitness_goals TEXT NOT NULL DEFAULT '[]',
			updated_at TEXT NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS programs (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			goal TEXT NOT NULL DEFAULT '',
			level TEXT NOT NULL DEFAULT '',
			price_cents INTEGER NOT NULL DEFAULT 0,
			coach_id TEXT NOT NULL DEFAULT '')`,
		`CREATE TABLE IF NOT EXISTS bookings (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			program_id TEXT NOT NULL,
			date TEXT NOT NULL,
			time TEXT NOT NULL,
			created_at TEXT NOT NULL)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_user_date ON bookings (user_id, date)`,
		`CREATE TABLE IF NOT EXISTS measurements (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			date TEXT NOT NULL,
			weight_kg DOUBLE PRECISION NOT NULL,
			created_at TEXT NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			sender_id TEXT NOT NULL,
			recipient_id TEXT NOT NULL,
			body TEXT NOT NULL,
			created_at TEXT NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			body TEXT NOT NULL,
			read BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TEXT NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("store: postgres schema: %w", err)
		}
	}
	return nil
}

func (s *Postgres) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, name, role, language, height_cm, weight_kg, fitness_goals, updated_at
		 FROM profiles WHERE user_id = $1`, userID)
	return scanProfile(row)
}

func (s *Postgres) UpdateProfile(ctx context.Context, userID string, fields map[string]any) (*Profile, error) {
	p, err := s.GetProfile(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		p = &Profile{UserID: userID, Role: "member", Language: "en"}
	}
	applyProfileFields(p, fields)
	p.UpdatedAt = time.Now().UTC()

	goalsJSON, err := json.Marshal(p.FitnessGoals)
	if err != nil {
		return nil, fmt.Errorf("profile update: marshal goals: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO profiles (user_id, name, role, language, height_cm, weight_kg, fitness_goals, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (user_id) DO UPDATE SET
		   name = EXCLUDED.name, role = EXCLUDED.role, language = EXCLUDED.language,
		   height_cm = EXCLUDED.height_cm, weight_kg = EXCLUDED.weight_kg,
		   fitness_goals = EXCLUDED.fitness_goals, updated_at = EXCLUDED.updated_at`,
		p.UserID, p.Name, p.Role, p.Language, p.HeightCM, p.WeightKG,
		string(goalsJSON), p.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("profile update: %w", err)
	}
	return p, nil
}

func (s *Postgres) ListPrograms(ctx context.Context, f ProgramFilter) ([]Program, error) {
	query := `SELECT id, title, goal, level, price_cents, coach_id FROM programs`
	var clauses []string
	var args []any
	if f.Goal != "" {
		args = append(args, f.Goal)
		clauses = append(clauses, fmt.Sprintf("goal = $%d", len(args)))
	}
	if f.Level != "" {
		args = append(args, f.Level)
		clauses = append(clauses, fmt.Sprintf("level = $%d", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY title"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list programs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Program
	for rows.Next() {
		var p Program
		if err := rows.Scan(&p.ID, &p.Title, &p.Goal, &p.Level, &p.PriceCents, &p.CoachID); err != nil {
			return nil, fmt.Errorf("list programs: scan: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Postgres) CreateProgram(ctx context.Context, p Program) (*Program, error) {
	if p.ID == "" {
		p.ID = "prog_" + uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO programs (id, title, goal, level, price_cents, coach_id) VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.Title, p.Goal, p.Level, p.PriceCents, p.CoachID)
	if err != nil {
		return nil, fmt.Errorf("create program: %w", err)
	}
	return &p, nil
}

func (s *Postgres) GetProgram(ctx context.Context, id string) (*Program, error) {
	var p Program
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, goal, level, price_cents, coach_id FROM programs WHERE id = $1`, id).
		Scan(&p.ID, &p.Title, &p.Goal, &p.Level, &p.PriceCents, &p.CoachID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("program %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get program: %w", err)
	}
	return &p, nil
}

func (s *Postgres) ListTrainers(ctx context.Context) ([]Profile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, name, role, language, height_cm, weight_kg, fitness_goals, updated_at
		 FROM profiles WHERE role = 'coach' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list trainers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Profile
	for rows.Next() {
		p, err := scanProfileRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *Postgres) CreateBooking(ctx context.Context, b Booking) (*Booking, error) {
	if b.ID == "" {
		b.ID = "book_" + uuid.New().String()
	}
	b.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bookings (id, user_id, program_id, date, time, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		b.ID, b.UserID, b.ProgramID, b.Date, b.Time, b.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}
	return &b, nil
}

func (s *Postgres) SessionOn(ctx context.Context, userID, date string) (*Booking, *Program, error) {
	var b Booking
	var created string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, program_id, date, time, created_at FROM bookings
		 WHERE user_id = $1 AND date = $2 ORDER BY time LIMIT 1`, userID, date).
		Scan(&b.ID, &b.UserID, &b.ProgramID, &b.Date, &b.Time, &created)
	if err == sql.ErrNoRows {
		return nil, nil, fmt.Errorf("session on %s: %w", date, ErrNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("session on: %w", err)
	}
	b.CreatedAt, _ = time.Parse(time.RFC3339, created)

	p, err := s.GetProgram(ctx, b.ProgramID)
	if err != nil {
		return &b, nil, err
	}
	return &b, p, nil
}

func (s *Postgres) BookingsOn(ctx context.Context, date string) ([]Booking, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, program_id, date, time, created_at FROM bookings WHERE date = $1 ORDER BY time`, date)
	if err != nil {
		return nil, fmt.Errorf("bookings on: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Booking
	for rows.Next() {
		var b Booking
		var created string
		if err := rows.Scan(&b.ID, &b.UserID, &b.ProgramID, &b.Date, &b.Time, &created); err != nil {
			return nil, fmt.Errorf("bookings on: scan: %w", err)
		}
		b.CreatedAt, _ = time.Parse(time.RFC3339, created)
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Postgres) RecordMeasurement(ctx context.Context, userID string, m Measurement) (*Measurement, error) {
	m.ID = "meas_" + uuid.New().String()
	m.UserID = userID
	m.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO measurements (id, user_id, date, weight_kg, created_at) VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.UserID, m.Date, m.WeightKG, m.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("record measurement: %w", err)
	}
	return &m, nil
}

func (s *Postgres) CreateMessage(ctx context.Context, senderID, recipientID, body string) (*Message, error) {
	m := Message{
		ID:          "msg_" + uuid.New().String(),
		SenderID:    senderID,
		RecipientID: recipientID,
		Body:        body,
		CreatedAt:   time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, sender_id, recipient_id, body, created_at) VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.SenderID, m.RecipientID, m.Body, m.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	return &m, nil
}

func (s *Postgres) CreateNotification(ctx context.Context, userID, body string) (*Notification, error) {
	n := Notification{
		ID:        "notif_" + uuid.New().String(),
		UserID:    userID,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (id, user_id, body, read, created_at) VALUES ($1, $2, $3, FALSE, $4)`,
		n.ID, n.UserID, n.Body, n.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	return &n, nil
}

func (s *Postgres) GetSettings(ctx context.Context) (Settings, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(Settings)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("get settings: scan: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (s *Postgres) UpdateSettings(ctx context.Context, fields map[string]string) (Settings, error) {
	for k, v := range fields {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO settings (key, value) VALUES ($1, $2)
			 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, k, v)
		if err != nil {
			return nil, fmt.Errorf("update settings %q: %w", k, err)
		}
	}
	return s.GetSettings(ctx)
}
