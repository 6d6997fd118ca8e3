package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	// condensePrompt rewrites a follow-up into a standalone question so
	// retrieval works without the conversational context.
	// %s placeholders: (1) chat history, (2) follow-up question.
	condensePrompt = `Given the following conversation and a follow up question, rephrase the follow up question to be a standalone question, in its original language.

Chat History:
%s
Follow Up Input: %s
Standalone question:`

	// answerSystemPrompt grounds the answer in retrieved chunks.
	// %s placeholder: the stuffed context.
	answerSystemPrompt = `Use the following pieces of context to answer the user's question.
If you don't know the answer, just say that you don't know, don't try to make up an answer.
----------------
%s`

	// noContextNotice stands in for the context when retrieval finds
	// nothing relevant.
	noContextNotice = "No relevant context was found in the document."

	// fallbackAnswer is returned when the model produces an empty response.
	fallbackAnswer = "I apologize, but I couldn't generate a response. Please try rephrasing your question."
)

// Exchange is one completed question and answer pair.
type Exchange struct {
	Question string
	Answer   string
}

// SessionConfig carries the dependencies for a retrieval session.
type SessionConfig struct {
	Genkit    *genkit.Genkit
	Retriever ai.Retriever
	AssetID   uuid.UUID
	ModelName string
	GenConfig any           // provider-specific generation settings, passed through to the model
	TopK      int           // chunks retrieved per question (0 = DefaultTopK)
	Limiter   *rate.Limiter // optional proactive pacing (nil = disabled)
	Logger    *slog.Logger
}

func (c SessionConfig) validate() error {
	if c.Genkit == nil {
		return errors.New("session requires a genkit instance")
	}
	if c.Retriever == nil {
		return errors.New("session requires a retriever")
	}
	if c.AssetID == uuid.Nil {
		return errors.New("session requires an asset id")
	}
	if c.ModelName == "" {
		return errors.New("session requires a model name")
	}
	return nil
}

// Session answers questions about one indexed document. It keeps the
// exchange history needed to resolve follow-up questions: a follow-up
// is first condensed into a standalone question, which then drives
// retrieval and answer generation.
//
// Session is not safe for concurrent use. Callers serialize turns.
type Session struct {
	g         *genkit.Genkit
	retriever ai.Retriever
	assetID   uuid.UUID
	modelName string
	genConfig any
	topK      int
	limiter   *rate.Limiter
	logger    *slog.Logger

	exchanges []Exchange
}

// NewSession returns a session over the given asset.
func NewSession(cfg SessionConfig) (*Session, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid session config: %w", err)
	}

	topK := cfg.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Session{
		g:         cfg.Genkit,
		retriever: cfg.Retriever,
		assetID:   cfg.AssetID,
		modelName: cfg.ModelName,
		genConfig: cfg.GenConfig,
		topK:      topK,
		limiter:   cfg.Limiter,
		logger:    logger,
	}, nil
}

// Ask answers question using content retrieved from the session's
// asset and records the exchange. Model and retrieval errors propagate
// to the caller unchanged in meaning; nothing is recorded on failure.
func (s *Session) Ask(ctx context.Context, question string) (string, error) {
	standalone := question
	if len(s.exchanges) > 0 {
		condensed, err := s.condense(ctx, question)
		if err != nil {
			return "", fmt.Errorf("condensing question: %w", err)
		}
		if condensed != "" {
			standalone = condensed
		}
	}

	docs, err := s.retrieve(ctx, standalone)
	if err != nil {
		return "", fmt.Errorf("retrieving context: %w", err)
	}

	answer, err := s.generate(ctx, standalone, docs)
	if err != nil {
		return "", err
	}

	s.exchanges = append(s.exchanges, Exchange{Question: question, Answer: answer})
	return answer, nil
}

// Exchanges returns a copy of the recorded question and answer pairs.
func (s *Session) Exchanges() []Exchange {
	out := make([]Exchange, len(s.exchanges))
	copy(out, s.exchanges)
	return out
}

func (s *Session) condense(ctx context.Context, question string) (string, error) {
	if err := s.wait(ctx); err != nil {
		return "", err
	}

	prompt := fmt.Sprintf(condensePrompt, s.historyText(), question)
	resp, err := genkit.Generate(ctx, s.g,
		ai.WithModelName(s.modelName),
		ai.WithPrompt(prompt),
	)
	if err != nil {
		return "", err
	}

	condensed := strings.TrimSpace(resp.Text())
	if condensed != "" && condensed != question {
		s.logger.Debug("condensed follow-up question",
			slog.String("asset_id", s.assetID.String()),
		)
	}
	return condensed, nil
}

func (s *Session) retrieve(ctx context.Context, query string) ([]*ai.Document, error) {
	resp, err := s.retriever.Retrieve(ctx, &ai.RetrieverRequest{
		Query:   ai.DocumentFromText(query, nil),
		Options: &RetrieverOptions{AssetID: s.assetID, K: s.topK},
	})
	if err != nil {
		return nil, err
	}
	return resp.Documents, nil
}

func (s *Session) generate(ctx context.Context, question string, docs []*ai.Document) (string, error) {
	if err := s.wait(ctx); err != nil {
		return "", err
	}

	system := fmt.Sprintf(answerSystemPrompt, contextText(docs))
	opts := []ai.GenerateOption{
		ai.WithModelName(s.modelName),
		ai.WithSystem(system),
		ai.WithPrompt(question),
	}
	if s.genConfig != nil {
		opts = append(opts, ai.WithConfig(s.genConfig))
	}

	resp, err := genkit.Generate(ctx, s.g, opts...)
	if err != nil {
		return "", fmt.Errorf("generating answer: %w", err)
	}

	answer := strings.TrimSpace(resp.Text())
	if answer == "" {
		s.logger.Warn("model returned empty response",
			slog.String("asset_id", s.assetID.String()),
		)
		answer = fallbackAnswer
	}
	return answer, nil
}

// wait applies proactive rate pacing before a model call.
func (s *Session) wait(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

// historyText renders recorded exchanges for the condense prompt.
func (s *Session) historyText() string {
	var sb strings.Builder
	for _, ex := range s.exchanges {
		sb.WriteString("Human: ")
		sb.WriteString(ex.Question)
		sb.WriteString("\nAssistant: ")
		sb.WriteString(ex.Answer)
		sb.WriteString("\n")
	}
	return sb.String()
}

// contextText joins retrieved chunks in rank order for prompt stuffing.
func contextText(docs []*ai.Document) string {
	if len(docs) == 0 {
		return noContextNotice
	}

	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		var sb strings.Builder
		for _, part := range doc.Content {
			if part != nil && part.Kind == ai.PartText {
				sb.WriteString(part.Text)
			}
		}
		parts = append(parts, sb.String())
	}
	return strings.Join(parts, "\n\n")
}
