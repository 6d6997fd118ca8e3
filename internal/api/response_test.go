package api

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()

	data := map[string]string{"message": "hello"}
	writeJSON(w, 200, data)

	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get("Content-Length"))

	var result map[string]string
	err := json.Unmarshal(w.Body.Bytes(), &result)
	require.NoError(t, err)
	assert.Equal(t, "hello", result["message"])
}

func TestWriteJSON_UnencodableValue(t *testing.T) {
	w := httptest.NewRecorder()

	// Channels cannot be JSON encoded; the buffer-first strategy lets the
	// helper still send a clean 500.
	writeJSON(w, 200, map[string]any{"ch": make(chan int)})

	assert.Equal(t, 500, w.Code)
	assert.NotContains(t, w.Header().Get("Content-Type"), "application/json")
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()

	writeError(w, 404, "not_found", "document not found")

	assert.Equal(t, 404, w.Code)

	var result ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &result)
	require.NoError(t, err)
	assert.Equal(t, "not_found", result.Error)
	assert.Equal(t, "document not found", result.Message)
}

func TestWriteError_OmitsEmptyMessage(t *testing.T) {
	w := httptest.NewRecorder()

	writeError(w, 429, "rate_limited", "")

	var raw map[string]any
	err := json.Unmarshal(w.Body.Bytes(), &raw)
	require.NoError(t, err)
	assert.Equal(t, "rate_limited", raw["error"])
	_, hasMessage := raw["message"]
	assert.False(t, hasMessage, "empty message should be omitted from JSON")
}
