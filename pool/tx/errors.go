package tx

import "errors"

var (
	// ErrNotActive indicates an operation on a transaction that already ended.
	ErrNotActive = errors.New("tx: transaction not active")

	// ErrAborted indicates the transaction, or an enclosing one, was aborted.
	ErrAborted = errors.New("tx: transaction aborted")

	// ErrLogFull indicates the undo log cannot hold another pre-image.
	ErrLogFull = errors.New("tx: undo log full")

	// ErrOutOfRange indicates a snapshot range outside the pool or inside the
	// undo log itself.
	ErrOutOfRange = errors.New("tx: range outside pool")

	// ErrLogCorrupt indicates an undo log entry that cannot be replayed.
	ErrLogCorrupt = errors.New("tx: corrupt undo log")
)
