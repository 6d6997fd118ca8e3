package chat

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestChunkTexts(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		want   []string
	}{
		{
			name:   "empty answer",
			answer: "",
			want:   []string{},
		},
		{
			name:   "single word",
			answer: "hello",
			want:   []string{"hello "},
		},
		{
			name:   "line break after sentence end",
			answer: "Done. Next",
			want:   []string{"Done. ", "\n", "Next "},
		},
		{
			name:   "no break after the final token",
			answer: "It works.",
			want:   []string{"It ", "works. "},
		},
		{
			name:   "question and exclamation marks",
			answer: "Really?! Yes! Sure",
			want:   []string{"Really?! ", "\n", "Yes! ", "\n", "Sure "},
		},
		{
			name:   "internal whitespace collapses",
			answer: "a  b\n\nc",
			want:   []string{"a ", "b ", "c "},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := chunkTexts(tt.answer)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("chunkTexts(%q) mismatch (-want +got):\n%s", tt.answer, diff)
			}
		})
	}
}

func TestBusyStream(t *testing.T) {
	s := busyStream()

	var chunks []Chunk
	for chunk := range s.Chunks() {
		chunks = append(chunks, chunk)
	}

	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want exactly 1", len(chunks))
	}
	if !chunks[0].Busy {
		t.Error("advisory chunk not marked busy")
	}
	if chunks[0].Text != "I'm still processing your previous message. Please wait a moment." {
		t.Errorf("advisory text = %q", chunks[0].Text)
	}
	if s.Err() != nil {
		t.Errorf("busy stream carries an error: %v", s.Err())
	}
}

func TestEmit_DeliversAllChunks(t *testing.T) {
	s := newStream(0)
	texts := []string{"one ", "two ", "three "}

	go emit(context.Background(), s, texts, 0)

	var got []string
	for chunk := range s.Chunks() {
		got = append(got, chunk.Text)
	}
	if diff := cmp.Diff(texts, got); diff != "" {
		t.Errorf("emitted chunks mismatch (-want +got):\n%s", diff)
	}
}

func TestEmit_StopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := newStream(0)
	done := make(chan struct{})
	go func() {
		emit(ctx, s, []string{"never ", "delivered "}, time.Hour)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("emit did not return after context cancellation")
	}

	// No consumer ran, so the unbuffered send could never complete.
	var got []Chunk
	for chunk := range s.Chunks() {
		got = append(got, chunk)
	}
	if len(got) != 0 {
		t.Errorf("received %d chunks on a canceled context", len(got))
	}
}

func TestStream_CloseIsIdempotent(t *testing.T) {
	s := newStream(0)
	s.close()
	s.close() // must not panic

	if _, ok := <-s.Chunks(); ok {
		t.Error("closed stream delivered a chunk")
	}
}
