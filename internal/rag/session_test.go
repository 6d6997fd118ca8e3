package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"

	"github.com/AyushKumarEntvin/Rag-Agent/internal/knowledge"
	"github.com/AyushKumarEntvin/Rag-Agent/internal/testutil"
)

func newTestSession(t *testing.T, store *fakeSearchStore, mock *testutil.MockLLM) *Session {
	t.Helper()

	g := genkit.Init(context.Background())
	mock.RegisterModel(g)

	sess, err := NewSession(SessionConfig{
		Genkit:    g,
		Retriever: DefineRetriever(g, store),
		AssetID:   uuid.New(),
		ModelName: "mock/test-model",
		TopK:      2,
		Logger:    testutil.DiscardLogger(),
	})
	if err != nil {
		t.Fatalf("NewSession() error: %v", err)
	}
	return sess
}

func TestNewSession_Validation(t *testing.T) {
	g := genkit.Init(context.Background())
	valid := SessionConfig{
		Genkit:    g,
		Retriever: DefineRetriever(g, &fakeSearchStore{}),
		AssetID:   uuid.New(),
		ModelName: "mock/test-model",
	}

	tests := []struct {
		name   string
		mutate func(*SessionConfig)
	}{
		{"missing genkit", func(c *SessionConfig) { c.Genkit = nil }},
		{"missing retriever", func(c *SessionConfig) { c.Retriever = nil }},
		{"missing asset id", func(c *SessionConfig) { c.AssetID = uuid.Nil }},
		{"missing model name", func(c *SessionConfig) { c.ModelName = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			if _, err := NewSession(cfg); err == nil {
				t.Error("NewSession() accepted invalid config")
			}
		})
	}

	if _, err := NewSession(valid); err != nil {
		t.Errorf("NewSession() rejected valid config: %v", err)
	}
}

func TestSession_Ask_FirstQuestionSkipsCondense(t *testing.T) {
	store := &fakeSearchStore{results: []knowledge.Result{
		{Content: "The warranty lasts two years.", Seq: 1, Similarity: 0.9},
	}}
	mock := testutil.NewMockLLM("I don't know.")
	mock.AddResponse("warranty", "The warranty period is two years.")

	sess := newTestSession(t, store, mock)

	answer, err := sess.Ask(context.Background(), "How long is the warranty?")
	if err != nil {
		t.Fatalf("Ask() error: %v", err)
	}
	if answer != "The warranty period is two years." {
		t.Errorf("Ask() = %q, want the matched answer", answer)
	}

	calls := mock.Calls()
	if len(calls) != 1 {
		t.Fatalf("model called %d times, want 1 (no condense on first question)", len(calls))
	}
	if !strings.Contains(calls[0].System, "The warranty lasts two years.") {
		t.Errorf("system prompt missing retrieved chunk: %q", calls[0].System)
	}
	if !strings.Contains(calls[0].System, "Use the following pieces of context") {
		t.Errorf("system prompt missing grounding instructions: %q", calls[0].System)
	}
	if calls[0].UserMessage != "How long is the warranty?" {
		t.Errorf("user message = %q, want the question verbatim", calls[0].UserMessage)
	}

	if len(store.queries) != 1 || store.queries[0] != "How long is the warranty?" {
		t.Errorf("retrieval queries = %v, want the question verbatim", store.queries)
	}

	exchanges := sess.Exchanges()
	if len(exchanges) != 1 {
		t.Fatalf("recorded %d exchanges, want 1", len(exchanges))
	}
	if exchanges[0].Question != "How long is the warranty?" || exchanges[0].Answer != answer {
		t.Errorf("recorded exchange = %+v", exchanges[0])
	}
}

func TestSession_Ask_FollowUpIsCondensed(t *testing.T) {
	store := &fakeSearchStore{results: []knowledge.Result{
		{Content: "The warranty lasts two years and covers parts.", Seq: 1, Similarity: 0.9},
	}}
	mock := testutil.NewMockLLM("I don't know.")
	// Only the condense prompt contains this marker, so the rule cannot
	// leak into answer calls.
	mock.AddResponse("standalone question:", "What does the warranty cover?")
	mock.AddResponse("what does the warranty cover", "It covers parts and labour.")
	mock.AddResponse("how long is the warranty", "The warranty period is two years.")

	sess := newTestSession(t, store, mock)
	ctx := context.Background()

	if _, err := sess.Ask(ctx, "How long is the warranty?"); err != nil {
		t.Fatalf("Ask() error: %v", err)
	}

	answer, err := sess.Ask(ctx, "And what does it cover?")
	if err != nil {
		t.Fatalf("Ask() error: %v", err)
	}
	if answer != "It covers parts and labour." {
		t.Errorf("Ask() = %q, want the follow-up answer", answer)
	}

	calls := mock.Calls()
	if len(calls) != 3 {
		t.Fatalf("model called %d times, want 3 (answer, condense, answer)", len(calls))
	}

	condense := calls[1]
	if condense.System != "" {
		t.Errorf("condense call carries a system prompt: %q", condense.System)
	}
	if !strings.Contains(condense.UserMessage, "Follow Up Input: And what does it cover?") {
		t.Errorf("condense prompt missing follow-up: %q", condense.UserMessage)
	}
	if !strings.Contains(condense.UserMessage, "Human: How long is the warranty?") {
		t.Errorf("condense prompt missing history: %q", condense.UserMessage)
	}

	final := calls[2]
	if final.UserMessage != "What does the warranty cover?" {
		t.Errorf("answer call used %q, want the condensed question", final.UserMessage)
	}

	if len(store.queries) != 2 || store.queries[1] != "What does the warranty cover?" {
		t.Errorf("retrieval queries = %v, want the condensed question second", store.queries)
	}

	exchanges := sess.Exchanges()
	if len(exchanges) != 2 {
		t.Fatalf("recorded %d exchanges, want 2", len(exchanges))
	}
	if exchanges[1].Question != "And what does it cover?" {
		t.Errorf("recorded question = %q, want the original follow-up", exchanges[1].Question)
	}
}

func TestSession_Ask_EmptyModelOutputFallsBack(t *testing.T) {
	store := &fakeSearchStore{}
	mock := testutil.NewMockLLM("")

	sess := newTestSession(t, store, mock)

	answer, err := sess.Ask(context.Background(), "Anything?")
	if err != nil {
		t.Fatalf("Ask() error: %v", err)
	}
	if answer != fallbackAnswer {
		t.Errorf("Ask() = %q, want the fallback answer", answer)
	}
}

func TestSession_Ask_NoContextNoticeWhenRetrievalIsEmpty(t *testing.T) {
	store := &fakeSearchStore{}
	mock := testutil.NewMockLLM("I don't know.")

	sess := newTestSession(t, store, mock)

	if _, err := sess.Ask(context.Background(), "Anything?"); err != nil {
		t.Fatalf("Ask() error: %v", err)
	}

	calls := mock.Calls()
	if len(calls) != 1 {
		t.Fatalf("model called %d times, want 1", len(calls))
	}
	if !strings.Contains(calls[0].System, noContextNotice) {
		t.Errorf("system prompt missing empty-context notice: %q", calls[0].System)
	}
}

func TestSession_Ask_RetrievalErrorRecordsNothing(t *testing.T) {
	store := &fakeSearchStore{err: errors.New("connection refused")}
	mock := testutil.NewMockLLM("I don't know.")

	sess := newTestSession(t, store, mock)

	_, err := sess.Ask(context.Background(), "Anything?")
	if err == nil || !strings.Contains(err.Error(), "retrieving context") {
		t.Fatalf("Ask() error = %v, want retrieval failure", err)
	}
	if len(sess.Exchanges()) != 0 {
		t.Error("failed turn was recorded")
	}
	if len(mock.Calls()) != 0 {
		t.Error("model was called despite retrieval failure")
	}
}
