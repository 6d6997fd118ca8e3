package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/AyushKumarEntvin/Rag-Agent/internal/history"
	"github.com/AyushKumarEntvin/Rag-Agent/internal/log"
	"github.com/AyushKumarEntvin/Rag-Agent/internal/rag"
)

// Responder produces the assistant's answer for one turn.
// *rag.Session is the production implementation.
type Responder interface {
	Ask(ctx context.Context, question string) (string, error)
}

// SessionFactory builds the retrieval session a new thread is bound to.
type SessionFactory func(assetID uuid.UUID) (Responder, error)

// AssetChecker verifies a document index exists before a thread binds
// to it.
type AssetChecker interface {
	AssetExists(ctx context.Context, id uuid.UUID) (bool, error)
}

// HistoryStore persists full thread records.
type HistoryStore interface {
	Save(threadID uuid.UUID, messages []history.Message) error
	Load(threadID uuid.UUID) ([]history.Message, error)
}

// Config carries the Service dependencies.
type Config struct {
	Assets     AssetChecker
	Records    HistoryStore
	NewSession SessionFactory
	Logger     log.Logger

	// MaxThreads caps live threads; 0 means unlimited.
	MaxThreads int

	// WordDelay paces the response stream; 0 disables pacing.
	WordDelay time.Duration
}

func (c Config) validate() error {
	if c.Assets == nil {
		return errors.New("asset checker is required")
	}
	if c.Records == nil {
		return errors.New("history store is required")
	}
	if c.NewSession == nil {
		return errors.New("session factory is required")
	}
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.MaxThreads < 0 {
		return errors.New("max threads cannot be negative")
	}
	if c.WordDelay < 0 {
		return errors.New("word delay cannot be negative")
	}
	return nil
}

// thread is one live conversation bound to an indexed document.
type thread struct {
	id      uuid.UUID
	assetID uuid.UUID
	session Responder

	turn       sync.Mutex  // serializes turns; acquired with TryLock only
	processing atomic.Bool // true exactly while a turn holds the lock

	mu       sync.Mutex // guards messages
	messages []history.Message
}

func (th *thread) append(msgs ...history.Message) {
	th.mu.Lock()
	th.messages = append(th.messages, msgs...)
	th.mu.Unlock()
}

// snapshot returns a defensive copy of the in-memory history.
func (th *thread) snapshot() []history.Message {
	th.mu.Lock()
	defer th.mu.Unlock()
	out := make([]history.Message, len(th.messages))
	copy(out, th.messages)
	return out
}

// Service owns the live thread registry and runs turns.
type Service struct {
	assets     AssetChecker
	records    HistoryStore
	newSession SessionFactory
	logger     log.Logger
	maxThreads int
	wordDelay  time.Duration

	mu      sync.RWMutex
	threads map[uuid.UUID]*thread
}

// NewService validates cfg and returns a Service with no live threads.
func NewService(cfg Config) (*Service, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid chat config: %w", err)
	}
	return &Service{
		assets:     cfg.Assets,
		records:    cfg.Records,
		newSession: cfg.NewSession,
		logger:     cfg.Logger,
		maxThreads: cfg.MaxThreads,
		wordDelay:  cfg.WordDelay,
		threads:    make(map[uuid.UUID]*thread),
	}, nil
}

// CreateThread starts a conversation over an indexed document and
// returns the new thread id. The asset must exist;
// rag.ErrAssetNotFound otherwise.
func (s *Service) CreateThread(ctx context.Context, assetID uuid.UUID) (uuid.UUID, error) {
	ok, err := s.assets.AssetExists(ctx, assetID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("checking asset: %w", err)
	}
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: %s", rag.ErrAssetNotFound, assetID)
	}

	session, err := s.newSession(assetID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("building retrieval session: %w", err)
	}

	th := &thread{id: uuid.New(), assetID: assetID, session: session}

	s.mu.Lock()
	if s.maxThreads > 0 && len(s.threads) >= s.maxThreads {
		s.mu.Unlock()
		return uuid.Nil, ErrTooManyThreads
	}
	s.threads[th.id] = th
	s.mu.Unlock()

	s.logger.Info("chat thread created",
		"thread_id", th.id,
		"asset_id", assetID,
	)
	return th.id, nil
}

// SendMessage runs one turn and returns its response stream
// immediately. If the thread is already processing a turn, the returned
// stream holds a single busy advisory and nothing is mutated.
//
// ctx governs chunk delivery only: once a turn has started, generation
// and persistence run on a background context to completion or failure.
func (s *Service) SendMessage(ctx context.Context, threadID uuid.UUID, text string) (*Stream, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}

	th, ok := s.thread(threadID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrThreadNotFound, threadID)
	}

	if !th.turn.TryLock() {
		s.logger.Debug("thread busy, advisory returned", "thread_id", threadID)
		return busyStream(), nil
	}
	th.processing.Store(true)

	stream := newStream(0)
	go s.runTurn(ctx, th, text, stream)
	return stream, nil
}

// runTurn executes one locked turn. Processing reset and lock release
// are unconditional, panics included.
func (s *Service) runTurn(reqCtx context.Context, th *thread, text string, stream *Stream) {
	defer func() {
		th.processing.Store(false)
		th.turn.Unlock()
	}()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic during turn",
				"thread_id", th.id,
				"panic", r,
			)
			stream.fail(fmt.Errorf("turn panicked: %v", r))
			stream.close()
		}
	}()

	th.append(history.Message{
		Role:      history.RoleUser,
		Content:   text,
		Timestamp: time.Now().UTC(),
	})

	answer, err := th.session.Ask(context.Background(), text)
	if err != nil {
		// The user message stays; failed turns are part of the record.
		s.logger.Error("turn generation failed",
			"thread_id", th.id,
			"error", err,
		)
		stream.fail(fmt.Errorf("generating response: %w", err))
		stream.close()
		return
	}

	th.append(history.Message{
		Role:      history.RoleAssistant,
		Content:   answer,
		Timestamp: time.Now().UTC(),
	})

	if err := s.records.Save(th.id, th.snapshot()); err != nil {
		// The answer exists; a lost durable record must not lose the
		// turn. The stream proceeds regardless.
		s.logger.Error("history persistence failed",
			"thread_id", th.id,
			"error", err,
		)
	}

	emit(reqCtx, stream, chunkTexts(answer), s.wordDelay)
}

// History returns the thread's messages: live in-memory state when the
// thread exists in this process, otherwise the durable record.
func (s *Service) History(threadID uuid.UUID) ([]history.Message, error) {
	if th, ok := s.thread(threadID); ok {
		return th.snapshot(), nil
	}

	msgs, err := s.records.Load(threadID)
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrThreadNotFound, threadID)
		}
		return nil, fmt.Errorf("loading history record: %w", err)
	}
	return msgs, nil
}

// IsProcessing reports whether a turn is in flight. Unknown ids are
// simply not processing.
func (s *Service) IsProcessing(threadID uuid.UUID) bool {
	th, ok := s.thread(threadID)
	return ok && th.processing.Load()
}

func (s *Service) thread(id uuid.UUID) (*thread, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	th, ok := s.threads[id]
	return th, ok
}
