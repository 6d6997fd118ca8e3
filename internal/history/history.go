package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/AyushKumarEntvin/Rag-Agent/internal/log"
)

// ErrNotFound indicates no durable record exists for the thread.
var ErrNotFound = errors.New("history record not found")

// Message roles. Only user and assistant appear in thread history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one history entry. Timestamps are assigned at append time and
// are non-decreasing within a thread's record.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Store persists thread history records under a single directory,
// one <threadID>.json file per thread.
type Store struct {
	dir    string
	logger log.Logger
}

// NewStore creates the record directory if needed and returns a Store.
func NewStore(dir string, logger log.Logger) (*Store, error) {
	if dir == "" {
		return nil, errors.New("history: dir is required")
	}
	if logger == nil {
		return nil, errors.New("history: logger is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Dir returns the record directory.
func (s *Store) Dir() string { return s.dir }

// Save replaces the thread's durable record with messages.
// The write is atomic (temp file + rename) under an advisory file lock,
// so concurrent savers serialize and readers never see a torn record.
func (s *Store) Save(threadID uuid.UUID, messages []Message) error {
	data, err := json.MarshalIndent(messages, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding history record: %w", err)
	}

	recordPath := s.path(threadID)

	fl := flock.New(recordPath + ".lock")
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("locking history record: %w", err)
	}
	defer func() {
		if err := fl.Unlock(); err != nil {
			s.logger.Warn("failed to unlock history record", "thread_id", threadID, "error", err)
		}
	}()

	tmp, err := os.CreateTemp(s.dir, "."+threadID.String()+"-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp record: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }() // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing temp record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp record: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("setting record permissions: %w", err)
	}
	if err := os.Rename(tmpPath, recordPath); err != nil {
		return fmt.Errorf("replacing history record: %w", err)
	}
	return nil
}

// Load reads the thread's durable record.
// Returns ErrNotFound when no record exists.
func (s *Store) Load(threadID uuid.UUID) ([]Message, error) {
	data, err := os.ReadFile(s.path(threadID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading history record: %w", err)
	}

	var messages []Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("decoding history record: %w", err)
	}
	return messages, nil
}

func (s *Store) path(threadID uuid.UUID) string {
	return filepath.Join(s.dir, threadID.String()+".json")
}
