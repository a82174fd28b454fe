package mailbox

import "context"

// Session is the narrow mail-session surface a purge run needs. One Session
// owns one authenticated connection with one selected mailbox; it is replaced,
// never reused, across pagination and recovery resets.
type Session interface {
	// Search returns the messages in r, windowed to at most limit refs.
	// Total always reports the full server match count.
	Search(ctx context.Context, r Range, limit int) (SearchResult, error)
	// Headers fetches the sender, subject, and sent date for one message.
	Headers(ctx context.Context, ref MessageRef) (Summary, error)
	// MarkDeleted sets the reversible deletion flag on one message.
	MarkDeleted(ctx context.Context, ref MessageRef) error
	// Expunge permanently removes every marked message and returns how many
	// the server reported removed. Irreversible.
	Expunge(ctx context.Context) (int, error)
	// Close logs out and drops the connection.
	Close(ctx context.Context) error
}

// Provider opens sessions: connect, authenticate, select the configured
// mailbox. Every call dials a fresh connection.
type Provider interface {
	Open(ctx context.Context) (Session, error)
}
