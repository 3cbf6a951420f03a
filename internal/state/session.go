// Package state keeps per-user conversation history so the planner can
// ground follow-up messages. Sessions live in memory and are mirrored to
// one yaml file per user, surviving restarts.
package state

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Turn is a single exchange entry. Role is "user" or "assistant".
type Turn struct {
	Role string    `yaml:"role"`
	Text string    `yaml:"text"`
	At   time.Time `yaml:"at"`
}

type session struct {
	UserID string `yaml:"user_id"`
	Turns  []Turn `yaml:"turns"`
}

// SessionStore holds conversation history for every user seen so far.
type SessionStore struct {
	mu       sync.Mutex
	dir      string
	maxTurns int
	sessions map[string]*session
}

var unsafeFilePattern = regexp.MustCompile(`[^a-zA-Z0-9_.-]`)

// NewSessionStore loads any persisted sessions from dir. maxTurns bounds
// the history kept per user; zero means 40.
func NewSessionStore(dir string, maxTurns int) (*SessionStore, error) {
	if maxTurns <= 0 {
		maxTurns = 40
	}
	s := &SessionStore{
		dir:      dir,
		maxTurns: maxTurns,
		sessions: make(map[string]*session),
	}
	if dir == "" {
		return s, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("state: create session dir: %w", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("state: read session dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".yaml" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		var sess session
		if err := yaml.Unmarshal(data, &sess); err != nil || sess.UserID == "" {
			continue
		}
		s.sessions[sess.UserID] = &sess
	}
	return s, nil
}

// History returns a copy of the user's turns, oldest first.
func (s *SessionStore) History(userID string) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return nil
	}
	out := make([]Turn, len(sess.Turns))
	copy(out, sess.Turns)
	return out
}

// Append records a turn for the user, trims to the configured bound, and
// persists. Persistence failures are reported but the in-memory state is
// already updated.
func (s *SessionStore) Append(userID, role, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok {
		sess = &session{UserID: userID}
		s.sessions[userID] = sess
	}
	sess.Turns = append(sess.Turns, Turn{Role: role, Text: text, At: time.Now().UTC()})
	if len(sess.Turns) > s.maxTurns {
		sess.Turns = sess.Turns[len(sess.Turns)-s.maxTurns:]
	}
	return s.persist(sess)
}

// Clear drops a user's history in memory and on disk.
func (s *SessionStore) Clear(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
	if s.dir == "" {
		return nil
	}
	path := filepath.Join(s.dir, sessionFileName(userID))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("state: clear session: %w", err)
	}
	return nil
}

func (s *SessionStore) persist(sess *session) error {
	if s.dir == "" {
		return nil
	}
	data, err := yaml.Marshal(sess)
	if err != nil {
		return fmt.Errorf("state: marshal session: %w", err)
	}
	path := filepath.Join(s.dir, sessionFileName(sess.UserID))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("state: write session: %w", err)
	}
	return nil
}

func sessionFileName(userID string) string {
	return unsafeFilePattern.ReplaceAllString(userID, "_") + ".yaml"
}
