package api

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strings"

	"github.com/AyushKumarEntvin/Rag-Agent/internal/log"
	"github.com/AyushKumarEntvin/Rag-Agent/internal/rag"
)

// documentHandler serves document ingestion.
type documentHandler struct {
	indexer *rag.Indexer
	logger  log.Logger
}

type processRequest struct {
	FilePath string `json:"file_path"`
}

type processResponse struct {
	AssetID string `json:"asset_id"`
	Chunks  int    `json:"chunks"`
}

// process ingests a local file or URL into the document index.
//
// Request body: {"file_path": "..."} (a filesystem path or http(s) URL)
// Response: 201 {"asset_id": "...", "chunks": N}
func (dh *documentHandler) process(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be JSON")
		return
	}
	if strings.TrimSpace(req.FilePath) == "" {
		writeError(w, http.StatusBadRequest, "missing_file_path", "file_path is required")
		return
	}

	result, err := dh.indexer.Process(r.Context(), req.FilePath)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			writeError(w, http.StatusNotFound, "not_found", "document not found")
		case errors.Is(err, rag.ErrUnsupportedType):
			writeError(w, http.StatusBadRequest, "unsupported_type", err.Error())
		default:
			dh.logger.Error("document processing failed", "source", req.FilePath, "error", err)
			writeError(w, http.StatusInternalServerError, "processing_failed", "failed to process document")
		}
		return
	}

	writeJSON(w, http.StatusCreated, processResponse{
		AssetID: result.AssetID.String(),
		Chunks:  result.Chunks,
	})
}
