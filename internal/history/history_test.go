package history

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/AyushKumarEntvin/Rag-Agent/internal/log"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir(), log.NewNop())
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}
	return store
}

func TestNewStore_Validation(t *testing.T) {
	if _, err := NewStore("", log.NewNop()); err == nil {
		t.Error("NewStore(\"\") should fail")
	}
	if _, err := NewStore(t.TempDir(), nil); err == nil {
		t.Error("NewStore with nil logger should fail")
	}
}

func TestNewStore_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "chat_history")

	if _, err := NewStore(dir, log.NewNop()); err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("record directory not created: %v", err)
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	threadID := uuid.New()

	base := time.Now().UTC().Truncate(time.Second)
	messages := []Message{
		{Role: RoleUser, Content: "What is the policy?", Timestamp: base},
		{Role: RoleAssistant, Content: "The policy covers refunds.", Timestamp: base.Add(time.Second)},
	}

	if err := store.Save(threadID, messages); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	got, err := store.Load(threadID)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Load() returned %d messages, want 2", len(got))
	}
	for i := range messages {
		if got[i].Role != messages[i].Role {
			t.Errorf("message %d role = %q, want %q", i, got[i].Role, messages[i].Role)
		}
		if got[i].Content != messages[i].Content {
			t.Errorf("message %d content = %q, want %q", i, got[i].Content, messages[i].Content)
		}
		if !got[i].Timestamp.Equal(messages[i].Timestamp) {
			t.Errorf("message %d timestamp = %v, want %v", i, got[i].Timestamp, messages[i].Timestamp)
		}
	}
}

func TestLoad_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Load(uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() = %v, want ErrNotFound", err)
	}
}

func TestSave_OverwritesWholesale(t *testing.T) {
	store := newTestStore(t)
	threadID := uuid.New()

	first := []Message{{Role: RoleUser, Content: "one", Timestamp: time.Now()}}
	if err := store.Save(threadID, first); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	second := []Message{
		{Role: RoleUser, Content: "one", Timestamp: time.Now()},
		{Role: RoleAssistant, Content: "answer", Timestamp: time.Now()},
		{Role: RoleUser, Content: "two", Timestamp: time.Now()},
		{Role: RoleAssistant, Content: "again", Timestamp: time.Now()},
	}
	if err := store.Save(threadID, second); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	got, err := store.Load(threadID)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(got) != 4 {
		t.Errorf("record should hold the full rewritten history, got %d messages", len(got))
	}
}

func TestSave_EmptyHistory(t *testing.T) {
	store := newTestStore(t)
	threadID := uuid.New()

	if err := store.Save(threadID, nil); err != nil {
		t.Fatalf("Save(nil) error: %v", err)
	}

	got, err := store.Load(threadID)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Load() = %d messages, want 0", len(got))
	}
}

func TestSave_LeavesNoTempFiles(t *testing.T) {
	store := newTestStore(t)
	threadID := uuid.New()

	if err := store.Save(threadID, []Message{{Role: RoleUser, Content: "hi", Timestamp: time.Now()}}); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	entries, err := os.ReadDir(store.Dir())
	if err != nil {
		t.Fatalf("ReadDir() error: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestSave_ConcurrentWriters(t *testing.T) {
	store := newTestStore(t)
	threadID := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			msgs := []Message{
				{Role: RoleUser, Content: "question", Timestamp: time.Now()},
				{Role: RoleAssistant, Content: "answer", Timestamp: time.Now()},
			}
			if err := store.Save(threadID, msgs); err != nil {
				t.Errorf("Save() error: %v", err)
			}
		}()
	}
	wg.Wait()

	// Whatever writer won, the record must be a complete, parseable pair.
	got, err := store.Load(threadID)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Load() = %d messages, want 2", len(got))
	}
}
