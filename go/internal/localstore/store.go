package localstore

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the local durable storage shared across client reloads:
// device id, display name, last room id, cached room passwords and the most
// recent question-count preference. Writes happen only on confirmed
// transitions so a reload never resumes into a room the client was actually
// rejected from.
type Store struct {
	db *sqlx.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS room_passwords (
	room_id  TEXT PRIMARY KEY,
	password TEXT NOT NULL
);
`

// Fixed kv keys.
const (
	keyDeviceID      = "device_id"
	keyDisplayName   = "display_name"
	keyLastRoomID    = "last_room_id"
	keyQuestionCount = "question_count"
)

// Open opens (and migrates) the store at path. Use ":memory:" in tests.
func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("localstore: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("localstore: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) get(key string) (string, error) {
	var value string
	err := s.db.Get(&value, `SELECT value FROM kv WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("localstore: get %s: %w", key, err)
	}
	return value, nil
}

func (s *Store) set(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("localstore: set %s: %w", key, err)
	}
	return nil
}

func (s *Store) delete(key string) error {
	if _, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("localstore: delete %s: %w", key, err)
	}
	return nil
}

// DeviceID returns the persistent per-device id, minting one on first use.
func (s *Store) DeviceID() (string, error) {
	id, err := s.get(keyDeviceID)
	if err != nil {
		return "", err
	}
	if id != "" {
		return id, nil
	}
	id = uuid.New().String()
	if err := s.set(keyDeviceID, id); err != nil {
		return "", err
	}
	return id, nil
}

// DisplayName returns the stored display name, empty when unset.
func (s *Store) DisplayName() (string, error) { return s.get(keyDisplayName) }

// SetDisplayName stores the display name.
func (s *Store) SetDisplayName(name string) error { return s.set(keyDisplayName, name) }

// LastRoomID returns the room id to resume into, empty when none.
func (s *Store) LastRoomID() (string, error) { return s.get(keyLastRoomID) }

// SetLastRoomID records the room id after a confirmed join/create/resume.
func (s *Store) SetLastRoomID(roomID string) error { return s.set(keyLastRoomID, roomID) }

// ClearLastRoomID forgets the resumable room, e.g. on leave or kick.
func (s *Store) ClearLastRoomID() error { return s.delete(keyLastRoomID) }

// QuestionCount returns the most recent question-count preference, 0 when
// unset.
func (s *Store) QuestionCount() (int, error) {
	raw, err := s.get(keyQuestionCount)
	if err != nil || raw == "" {
		return 0, err
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// SetQuestionCount stores the question-count preference.
func (s *Store) SetQuestionCount(n int) error {
	return s.set(keyQuestionCount, strconv.Itoa(n))
}

// RoomPassword returns the cached password for a room, empty when none.
func (s *Store) RoomPassword(roomID string) (string, error) {
	var password string
	err := s.db.Get(&password, `SELECT password FROM room_passwords WHERE room_id = ?`, roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("localstore: get room password: %w", err)
	}
	return password, nil
}

// SetRoomPassword caches a room password (host side).
func (s *Store) SetRoomPassword(roomID, password string) error {
	_, err := s.db.Exec(
		`INSERT INTO room_passwords (room_id, password) VALUES (?, ?)
		 ON CONFLICT(room_id) DO UPDATE SET password = excluded.password`, roomID, password)
	if err != nil {
		return fmt.Errorf("localstore: set room password: %w", err)
	}
	return nil
}

// DeleteRoomPassword drops a cached room password.
func (s *Store) DeleteRoomPassword(roomID string) error {
	if _, err := s.db.Exec(`DELETE FROM room_passwords WHERE room_id = ?`, roomID); err != nil {
		return fmt.Errorf("localstore: delete room password: %w", err)
	}
	return nil
}

// Reset clears everything except the device id. Used on explicit logout.
func (s *Store) Reset() error {
	if _, err := s.db.Exec(`DELETE FROM kv WHERE key != ?`, keyDeviceID); err != nil {
		return fmt.Errorf("localstore: reset: %w", err)
	}
	if _, err := s.db.Exec(`DELETE FROM room_passwords`); err != nil {
		return fmt.Errorf("localstore: reset passwords: %w", err)
	}
	return nil
}
