// Package chat implements the conversational engine: thread lifecycle,
// per-thread turn serialization and the paced response stream.
//
// A thread binds one conversation to one indexed document. The Service
// keeps live threads in memory and mirrors every completed turn to a
// durable history record, so history survives a restart even though
// live conversational state does not.
//
// One turn:
//
//	SendMessage
//	    |
//	    v
//	TryLock ----- held? -----> busy advisory stream (no mutation)
//	    |
//	    v
//	append user msg -> generate answer -> append assistant msg
//	    |                                        |
//	    v                                        v
//	persist full record                  paced chunk stream
//
// Turns on one thread never overlap and are never queued: a send that
// hits a busy thread gets a single advisory chunk back and changes
// nothing. Turns on different threads run concurrently. Once a turn has
// started it runs to completion on a background context; abandoning the
// stream consumer only stops chunk delivery.
package chat
