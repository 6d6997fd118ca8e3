package chat

import "errors"

// Sentinel errors for thread operations.
var (
	// ErrThreadNotFound reports an unknown thread id: never created, or
	// created by a previous process run whose live state is gone.
	ErrThreadNotFound = errors.New("chat thread not found")

	// ErrEmptyMessage rejects a send with no content.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrTooManyThreads reports that the configured live-thread cap is
	// reached.
	ErrTooManyThreads = errors.New("too many live chat threads")
)

// BusyMessage is the advisory streamed when a send arrives while the
// thread's previous turn is still running. Clients display it verbatim,
// so the wording stays stable.
const BusyMessage = "I'm still processing your previous message. Please wait a moment."
