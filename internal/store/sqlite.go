package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLite is the default Store implementation, backed by a single database
// file under dataDir. Open enables WAL mode and runs pending migrations.
type SQLite struct {
	db *sql.DB
}

// Open opens the SQLite database at dataDir/insightgym.db, creating dataDir
// if needed. Caller must call Close when done.
func Open(dataDir string) (*SQLite, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("store: data_dir is required")
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	dbPath := filepath.Join(dataDir, "insightgym.db")
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: WAL: %w", err)
	}
	s := &SQLite{db: db}
	if err := s.runMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// SQLDB returns the underlying *sql.DB for seeding and tests. Do not close
// it directly; use Close.
func (s *SQLite) SQLDB() *sql.DB {
	return s.db
}

func (s *SQLite) runMigrations() error {
	if _, err := s.db.Exec("CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL PRIMARY KEY)"); err != nil {
		return fmt.Errorf("migrations: create schema_version: %w", err)
	}
	current, err := s.currentVersion()
	if err != nil {
		return err
	}
	names, err := migrationNames()
	if err != nil {
		return err
	}
	for _, name := range names {
		n, err := migrationNumber(name)
		if err != nil || n <= 0 {
			continue
		}
		if n <= current {
			continue
		}
		stmts, err := fs.ReadFile(migrationsFS, "migrations/"+name)
		if err != nil {
			return fmt.Errorf("migration %s: %w", name, err)
		}
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("migration %s: begin: %w", name, err)
		}
		if _, err := tx.Exec(string(stmts)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %s: %w", name, err)
		}
		if _, err := tx.Exec("DELETE FROM schema_version"); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %s: clear version: %w", name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", n); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %s: set version: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %s: commit: %w", name, err)
		}
	}
	return nil
}

func (s *SQLite) currentVersion() (int, error) {
	var v sql.NullInt64
	err := s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&v)
	if err == sql.ErrNoRows || (err == nil && !v.Valid) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("migrations: read version: %w", err)
	}
	return int(v.Int64), nil
}

func migrationNames() ([]string, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func migrationNumber(name string) (int, error) {
	base := strings.TrimSuffix(name, ".sql")
	parts := strings.SplitN(base, "_", 2)
	if len(parts) < 2 {
		return 0, fmt.Errorf("invalid migration name")
	}
	return strconv.Atoi(parts[0])
}

// -- profiles --

func (s *SQLite) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, name, role, language, height_cm, weight_kg, fitness_goals, updated_at
		 FROM profiles WHERE user_id = ?`, userID)
	return scanProfile(row)
}

func (s *SQLite) UpdateProfile(ctx context.Context, userID string, fields map[string]any) (*Profile, error) {
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
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   name = excluded.name, role = excluded.role, language = excluded.language,
		   height_cm = excluded.height_cm, weight_kg = excluded.weight_kg,
		   fitness_goals = excluded.fitness_goals, updated_at = excluded.updated_at`,
		p.UserID, p.Name, p.Role, p.Language, p.HeightCM, p.WeightKG,
		string(goalsJSON), p.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("profile update: %w", err)
	}
	return p, nil
}

// -- programs --

func (s *SQLite) ListPrograms(ctx context.Context, f ProgramFilter) ([]Program, error) {
	query := `SELECT id, title, goal, level, price_cents, coach_id FROM programs`
	var clauses []string
	var args []any
	if f.Goal != "" {
		clauses = append(clauses, "goal = ?")
		args = append(args, f.Goal)
	}
	if f.Level != "" {
		clauses = append(clauses, "level = ?")
		args = append(args, f.Level)
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

func (s *SQLite) CreateProgram(ctx context.Context, p Program) (*Program, error) {
	if p.ID == "" {
		p.ID = "prog_" + uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO programs (id, title, goal, level, price_cents, coach_id) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Title, p.Goal, p.Level, p.PriceCents, p.CoachID)
	if err != nil {
		return nil, fmt.Errorf("create program: %w", err)
	}
	return &p, nil
}

func (s *SQLite) GetProgram(ctx context.Context, id string) (*Program, error) {
	var p Program
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, goal, level, price_cents, coach_id FROM programs WHERE id = ?`, id).
		Scan(&p.ID, &p.Title, &p.Goal, &p.Level, &p.PriceCents, &p.CoachID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("program %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get program: %w", err)
	}
	return &p, nil
}

func (s *SQLite) ListTrainers(ctx context.Context) ([]Profile, error) {
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

// -- bookings --

func (s *SQLite) CreateBooking(ctx context.Context, b Booking) (*Booking, error) {
	if b.ID == "" {
		b.ID = "book_" + uuid.New().String()
	}
	b.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bookings (id, user_id, program_id, date, time, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		b.ID, b.UserID, b.ProgramID, b.Date, b.Time, b.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}
	return &b, nil
}

func (s *SQLite) SessionOn(ctx context.Context, userID, date string) (*Booking, *Program, error) {
	var b Booking
	var created string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, program_id, date, time, created_at FROM bookings
		 WHERE user_id = ? AND date = ? ORDER BY time LIMIT 1`, userID, date).
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

func (s *SQLite) BookingsOn(ctx context.Context, date string) ([]Booking, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, program_id, date, time, created_at FROM bookings WHERE date = ? ORDER BY time`, date)
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

// -- measurements, messages, notifications --

func (s *SQLite) RecordMeasurement(ctx context.Context, userID string, m Measurement) (*Measurement, error) {
	m.ID = "meas_" + uuid.New().String()
	m.UserID = userID
	m.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO measurements (id, user_id, date, weight_kg, created_at) VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.UserID, m.Date, m.WeightKG, m.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("record measurement: %w", err)
	}
	return &m, nil
}

func (s *SQLite) CreateMessage(ctx context.Context, senderID, recipientID, body string) (*Message, error) {
	m := Message{
		ID:          "msg_" + uuid.New().String(),
		SenderID:    senderID,
		RecipientID: recipientID,
		Body:        body,
		CreatedAt:   time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, sender_id, recipient_id, body, created_at) VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.SenderID, m.RecipientID, m.Body, m.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	return &m, nil
}

func (s *SQLite) CreateNotification(ctx context.Context, userID, body string) (*Notification, error) {
	n := Notification{
		ID:        "notif_" + uuid.New().String(),
		UserID:    userID,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (id, user_id, body, read, created_at) VALUES (?, ?, ?, 0, ?)`,
		n.ID, n.UserID, n.Body, n.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	return &n, nil
}

// -- settings --

func (s *SQLite) GetSettings(ctx context.Context) (Settings, error) {
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

func (s *SQLite) UpdateSettings(ctx context.Context, fields map[string]string) (Settings, error) {
	for k, v := range fields {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO settings (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, k, v)
		if err != nil {
			return nil, fmt.Errorf("update settings %q: %w", k, err)
		}
	}
	return s.GetSettings(ctx)
}

// -- row helpers shared with the Postgres store --

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*Profile, error) {
	p, err := scanProfileRows(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return p, err
}

func scanProfileRows(row rowScanner) (*Profile, error) {
	var p Profile
	var goalsJSON, updated string
	err := row.Scan(&p.UserID, &p.Name, &p.Role, &p.Language, &p.HeightCM, &p.WeightKG, &goalsJSON, &updated)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("profile scan: %w", err)
	}
	if goalsJSON != "" {
		_ = json.Unmarshal([]byte(goalsJSON), &p.FitnessGoals)
	}
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
	return &p, nil
}

// applyProfileFields overwrites only the supplied keys. fitness_goals is
// replaced wholesale.
func applyProfileFields(p *Profile, fields map[string]any) {
	for k, v := range fields {
		switch k {
		case "name":
			if s, ok := v.(string); ok {
				p.Name = s
			}
		case "role":
			if s, ok := v.(string); ok {
				p.Role = s
			}
		case "language":
			if s, ok := v.(string); ok {
				p.Language = s
			}
		case "height_cm":
			if f, ok := toFloat(v); ok {
				p.HeightCM = f
			}
		case "weight_kg":
			if f, ok := toFloat(v); ok {
				p.WeightKG = f
			}
		case "fitness_goals":
			p.FitnessGoals = toStrings(v)
		}
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func toStrings(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{t}
	}
	return nil
}
