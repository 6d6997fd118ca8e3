// Package history provides durable per-thread conversation records.
//
// Each chat thread owns one JSON record on disk, named by its thread ID and
// holding the full ordered message list (role, content, timestamp). Records
// are rewritten wholesale after every completed turn. They are snapshots,
// not append-only logs, so a failed write loses at most that turn. The chat
// service treats this as an accepted weakness and logs persistence failures
// without failing the turn.
//
// Key operations:
//
//   - [Store.Save]: replace a thread's record with the given messages
//   - [Store.Load]: read a record back, [ErrNotFound] if none exists
//
// # Crash Safety
//
// [Store.Save] writes through a temp file and renames it into place, holding
// an advisory lock via [github.com/gofrs/flock] so two processes sharing a
// history directory cannot interleave writes to the same record. Readers
// never observe partial writes because the rename is atomic.
package history
