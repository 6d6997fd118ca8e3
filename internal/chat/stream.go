package chat

import (
	"context"
	"strings"
	"sync"
	"time"
)

// DefaultWordDelay is the pacing between streamed chunks. It is
// best-effort readability pacing, not a timing contract.
const DefaultWordDelay = 50 * time.Millisecond

// Chunk is one unit of streamed response text. Busy marks the advisory
// chunk returned when the thread is still processing a previous turn.
type Chunk struct {
	Text string
	Busy bool
}

// Stream delivers one turn's response as paced chunks. It is a finite,
// single-consumer, non-replayable sequence: receive from Chunks until
// it closes, then check Err for a turn failure.
type Stream struct {
	ch        chan Chunk
	closeOnce sync.Once

	mu  sync.Mutex
	err error
}

func newStream(buf int) *Stream {
	return &Stream{ch: make(chan Chunk, buf)}
}

// Chunks returns the receive side of the stream. The channel is closed
// when the turn completes or fails.
func (s *Stream) Chunks() <-chan Chunk { return s.ch }

// Err reports why the turn failed, or nil. Meaningful once Chunks is
// closed.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Stream) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *Stream) close() {
	s.closeOnce.Do(func() { close(s.ch) })
}

// busyStream returns a pre-completed stream holding the single busy
// advisory chunk.
func busyStream() *Stream {
	s := newStream(1)
	s.ch <- Chunk{Text: BusyMessage, Busy: true}
	s.close()
	return s
}

// chunkTexts splits a completed answer into presenter chunks: each
// whitespace-separated token plus a trailing space, with a line-break
// chunk after a sentence-ending token unless it is the last one.
// Concatenating the chunks and normalizing whitespace reproduces the
// answer exactly.
func chunkTexts(answer string) []string {
	tokens := strings.Fields(answer)
	out := make([]string, 0, len(tokens))
	for i, tok := range tokens {
		out = append(out, tok+" ")
		if i < len(tokens)-1 && endsSentence(tok) {
			out = append(out, "\n")
		}
	}
	return out
}

func endsSentence(token string) bool {
	switch token[len(token)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}

// emit paces texts onto the stream, then closes it. A done ctx stops
// delivery early; the channel still closes so the consumer unblocks.
func emit(ctx context.Context, s *Stream, texts []string, delay time.Duration) {
	defer s.close()
	for i, text := range texts {
		select {
		case s.ch <- Chunk{Text: text}:
		case <-ctx.Done():
			return
		}
		if delay > 0 && i < len(texts)-1 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}
		}
	}
}
