// Package api provides the JSON HTTP server for the document chat service.
//
// # Architecture
//
// Routing uses Go 1.22+ method-qualified patterns with a layered
// middleware stack:
//
//	Recovery → Logging → CORS → RateLimit → Routes
//
// Health probes (/health, /ready) bypass the middleware stack via a
// top-level mux so they stay fast and are never rate limited.
//
// # Endpoints
//
// Health probes (no middleware):
//   - GET /health: returns {"status":"ok"}
//   - GET /ready:  pings Postgres, 503 when unreachable
//
// Documents:
//   - POST /api/documents/process: ingest a file or URL into the index
//
// Chat:
//   - POST /api/chat/start:    open a thread over an indexed document
//   - POST /api/chat/message:  send a message, response streams via SSE
//   - GET  /api/chat/history:  full message history of a thread
//   - GET  /api/chat/status:   whether a thread is mid-turn
//
// # SSE Streaming
//
// Chat responses stream via Server-Sent Events with typed events:
//
//   - chunk: paced text fragment {"text": "..."}
//   - busy:  single advisory when the thread is mid-turn {"text": "..."}
//   - error: turn failed {"code": "...", "message": "..."}
//   - done:  stream finished {"chat_thread_id": "..."}
//
// Errors detected before the stream starts (unknown thread, empty
// message) are plain JSON error responses; once SSE headers are
// committed, failures arrive as error events.
//
// # Error Handling
//
// Non-SSE errors use a flat envelope:
//
//	{"error": "<code>", "message": "<detail>"}
//
// # Security
//
// The middleware stack enforces:
//   - CORS with an explicit origin allowlist
//   - Per-IP rate limiting (token bucket)
//   - Proxy headers (X-Real-IP, X-Forwarded-For) honored only when
//     the server is configured as running behind a trusted proxy
package api
