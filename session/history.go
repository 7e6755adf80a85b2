package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when no persisted record exists for a session.
var ErrNotFound = errors.New("session record not found")

// HistoryStore persists session snapshots.
type HistoryStore interface {
	// Save persists a snapshot, replacing any earlier record for the
	// same session id.
	Save(ctx context.Context, snap Snapshot) error
	// Load retrieves the persisted snapshot for a session id.
	// Returns ErrNotFound if the session was never persisted.
	Load(ctx context.Context, sessionID string) (Snapshot, error)
}

var unsafeIDChars = regexp.MustCompile(`[^a-zA-Z0-9-_]`)

// SanitizeID maps a session id to a filesystem-safe identifier.
func SanitizeID(id string) string {
	return unsafeIDChars.ReplaceAllString(id, "_")
}

// FileStore persists each session as two sibling files under a fixed
// data directory: a plain-text conversation log (<id>.log) and a
// structured record (<id>.json).
type FileStore struct {
	dir string
}

// NewFileStore creates a store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating session data directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// LogPath returns the conversation log path for a session id.
func (s *FileStore) LogPath(sessionID string) string {
	return filepath.Join(s.dir, SanitizeID(sessionID)+".log")
}

// Save writes both the plain-text log and the structured record.
func (s *FileStore) Save(_ context.Context, snap Snapshot) error {
	if snap.SessionID == "" {
		return errors.New("session id is empty")
	}
	safe := SanitizeID(snap.SessionID)

	var b strings.Builder
	for _, t := range snap.Turns {
		b.WriteString("Q: ")
		b.WriteString(t.Question)
		b.WriteString("\nA: ")
		b.WriteString(t.Answer)
		b.WriteString("\n\n")
	}
	logPath := filepath.Join(s.dir, safe+".log")
	if err := os.WriteFile(logPath, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("writing session log: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling session record: %w", err)
	}
	jsonPath := filepath.Join(s.dir, safe+".json")
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return fmt.Errorf("writing session record: %w", err)
	}
	return nil
}

// Load reads the structured record for a session id.
func (s *FileStore) Load(_ context.Context, sessionID string) (Snapshot, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, SanitizeID(sessionID)+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, ErrNotFound
		}
		return Snapshot{}, fmt.Errorf("reading session record: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("unmarshaling session record: %w", err)
	}
	return snap, nil
}

// RedisStore persists session snapshots in Redis with an optional TTL.
// Suitable when session history should survive process restarts without
// local disk state.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithTTL sets the time-to-live for persisted sessions. Default is 24
// hours. Set to 0 for no expiration.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix. Default is "specter".
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// NewRedisStore creates a Redis-backed history store.
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	store := &RedisStore{
		client: client,
		ttl:    24 * time.Hour,
		prefix: "specter",
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *RedisStore) key(sessionID string) string {
	return s.prefix + ":session:" + SanitizeID(sessionID)
}

// Save persists a snapshot as JSON with the configured TTL.
func (s *RedisStore) Save(ctx context.Context, snap Snapshot) error {
	if snap.SessionID == "" {
		return errors.New("session id is empty")
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshaling session record: %w", err)
	}

	if err := s.client.Set(ctx, s.key(snap.SessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Load retrieves a persisted snapshot.
func (s *RedisStore) Load(ctx context.Context, sessionID string) (Snapshot, error) {
	data, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Snapshot{}, ErrNotFound
		}
		return Snapshot{}, fmt.Errorf("redis get failed: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("unmarshaling session record: %w", err)
	}
	return snap, nil
}
