package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/AyushKumarEntvin/Rag-Agent/internal/chat"
	"github.com/AyushKumarEntvin/Rag-Agent/internal/history"
	"github.com/AyushKumarEntvin/Rag-Agent/internal/log"
	"github.com/AyushKumarEntvin/Rag-Agent/internal/rag"
)

// chatHandler serves thread lifecycle and message streaming.
type chatHandler struct {
	chat   *chat.Service
	logger log.Logger
}

type startRequest struct {
	AssetID string `json:"asset_id"`
}

type startResponse struct {
	ChatThreadID string `json:"chat_thread_id"`
}

type messageRequest struct {
	ChatThreadID string `json:"chat_thread_id"`
	Message      string `json:"message"`
}

type historyResponse struct {
	Messages []history.Message `json:"messages"`
}

type statusResponse struct {
	IsProcessing bool `json:"is_processing"`
}

// sseTextData is the payload of "chunk" and "busy" events.
type sseTextData struct {
	Text string `json:"text"`
}

// sseErrorData is the payload of "error" events.
type sseErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// sseDoneData is the payload of "done" events.
type sseDoneData struct {
	ChatThreadID string `json:"chat_thread_id"`
}

// start opens a new chat thread over an indexed document.
//
// Request body: {"asset_id": "..."}
// Response: 201 {"chat_thread_id": "..."}
func (ch *chatHandler) start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be JSON")
		return
	}

	assetID, err := uuid.Parse(req.AssetID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_asset_id", "asset_id must be a UUID")
		return
	}

	threadID, err := ch.chat.CreateThread(r.Context(), assetID)
	if err != nil {
		if errors.Is(err, rag.ErrAssetNotFound) {
			writeError(w, http.StatusNotFound, "asset_not_found", "no indexed document with that asset_id")
			return
		}
		ch.logger.Error("thread creation failed", "asset_id", assetID, "error", err)
		writeError(w, http.StatusInternalServerError, "start_failed", "failed to start chat thread")
		return
	}

	writeJSON(w, http.StatusCreated, startResponse{ChatThreadID: threadID.String()})
}

// message sends one user message and streams the response as SSE.
//
// Request body: {"chat_thread_id": "...", "message": "..."}
//
// Event types:
//   - chunk: paced text fragment {"text": "..."}
//   - busy:  advisory while a previous turn is still running
//   - error: turn failed {"code": "...", "message": "..."}
//   - done:  stream finished {"chat_thread_id": "..."}
//
// Validation failures (unknown thread, empty message) are plain JSON
// errors; the SSE headers are only committed once a stream exists.
func (ch *chatHandler) message(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be JSON")
		return
	}

	threadID, err := uuid.Parse(req.ChatThreadID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_thread_id", "chat_thread_id must be a UUID")
		return
	}

	stream, err := ch.chat.SendMessage(r.Context(), threadID, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrThreadNotFound):
			writeError(w, http.StatusNotFound, "thread_not_found", "no chat thread with that id")
		case errors.Is(err, chat.ErrEmptyMessage):
			writeError(w, http.StatusBadRequest, "empty_message", "message must not be empty")
		default:
			ch.logger.Error("send message failed", "thread_id", threadID, "error", err)
			writeError(w, http.StatusInternalServerError, "send_failed", "failed to send message")
		}
		return
	}

	sw, err := newSSEWriter(w)
	if err != nil {
		ch.logger.Error("streaming not supported")
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	for chunk := range stream.Chunks() {
		event := "chunk"
		if chunk.Busy {
			event = "busy"
		}
		sw.writeEvent(event, sseTextData{Text: chunk.Text})
	}

	// The channel is closed; a canceled request context means the client
	// is gone and terminal events would not arrive anyway.
	if r.Context().Err() != nil {
		ch.logger.Debug("client disconnected mid-stream", "thread_id", threadID)
		return
	}

	if err := stream.Err(); err != nil {
		ch.logger.Error("stream failed", "thread_id", threadID, "error", err)
		sw.writeEvent("error", sseErrorData{Code: "generation_failed", Message: err.Error()})
		return
	}

	sw.writeEvent("done", sseDoneData{ChatThreadID: threadID.String()})
}

// history returns the full message history of a thread.
//
// Query: ?chat_thread_id=...
// Response: 200 {"messages": [{"role","content","timestamp"}, ...]}
func (ch *chatHandler) history(w http.ResponseWriter, r *http.Request) {
	threadID, ok := threadIDFromQuery(w, r)
	if !ok {
		return
	}

	messages, err := ch.chat.History(threadID)
	if err != nil {
		if errors.Is(err, chat.ErrThreadNotFound) {
			writeError(w, http.StatusNotFound, "thread_not_found", "no chat thread with that id")
			return
		}
		ch.logger.Error("history lookup failed", "thread_id", threadID, "error", err)
		writeError(w, http.StatusInternalServerError, "history_failed", "failed to load history")
		return
	}

	if messages == nil {
		messages = []history.Message{}
	}
	writeJSON(w, http.StatusOK, historyResponse{Messages: messages})
}

// status reports whether a thread is currently processing a turn.
// Unknown ids report false rather than 404 so clients can poll freely.
//
// Query: ?chat_thread_id=...
// Response: 200 {"is_processing": bool}
func (ch *chatHandler) status(w http.ResponseWriter, r *http.Request) {
	threadID, ok := threadIDFromQuery(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{IsProcessing: ch.chat.IsProcessing(threadID)})
}

// threadIDFromQuery parses the chat_thread_id query parameter, writing a
// 400 response and returning ok=false when absent or malformed.
func threadIDFromQuery(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := r.URL.Query().Get("chat_thread_id")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "missing_thread_id", "chat_thread_id query parameter is required")
		return uuid.Nil, false
	}
	threadID, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_thread_id", "chat_thread_id must be a UUID")
		return uuid.Nil, false
	}
	return threadID, true
}

// sseWriter writes typed Server-Sent Events, flushing after each one.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// newSSEWriter commits the SSE headers and returns a writer, or an error
// when the ResponseWriter does not support flushing.
func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("response writer does not implement http.Flusher")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	return &sseWriter{w: w, flusher: flusher}, nil
}

func (sw *sseWriter) writeEvent(event string, data any) {
	payload, _ := json.Marshal(data) // fixed structs, cannot fail
	fmt.Fprintf(sw.w, "event: %s\ndata: %s\n\n", event, payload)
	sw.flusher.Flush()
}
