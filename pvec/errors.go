package pvec

import "errors"

// Error kinds.
var (
	// ErrResidency indicates the receiver is not inside an open pool.
	ErrResidency = errors.New("pvec: container is not resident in an open pool")

	// ErrTransaction indicates the pool could not complete the transaction,
	// for example because the heap or undo log is full.
	ErrTransaction = errors.New("pvec: transaction failed")

	// ErrState indicates a call that is invalid for the container's state.
	ErrState = errors.New("pvec: invalid state")
)

// Causes reported under ErrState.
var (
	// ErrOutOfRange indicates an index or position past the live elements.
	ErrOutOfRange = errors.New("pvec: index out of range")

	// ErrEmpty indicates PopBack, Front or Back on an empty container.
	ErrEmpty = errors.New("pvec: container is empty")

	// ErrLength indicates a negative length or one too large to allocate.
	ErrLength = errors.New("pvec: invalid length")

	// ErrUnsupportedElem indicates an element type that cannot be stored.
	ErrUnsupportedElem = errors.New("pvec: unsupported element type")

	// ErrCrossPool indicates a move or swap between different pools.
	ErrCrossPool = errors.New("pvec: containers are in different pools")

	// ErrAliased indicates a container used as its own source.
	ErrAliased = errors.New("pvec: source and destination are the same container")

	errRootHeader = errors.New("pvec: header is the pool root object")
)

// Error describes a failed container operation.
type Error struct {
	Op   string // method name, e.g. "PushBack"
	Kind error  // ErrResidency, ErrTransaction or ErrState
	Err  error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	s := "pvec: " + e.Op + ": " + kindText(e.Kind)
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func kindText(kind error) string {
	switch kind {
	case ErrResidency:
		return "not resident"
	case ErrTransaction:
		return "transaction failed"
	case ErrState:
		return "invalid state"
	default:
		return kind.Error()
	}
}

func residencyError(op string, cause error) error {
	return &Error{Op: op, Kind: ErrResidency, Err: cause}
}

func stateError(op string, cause error) error {
	return &Error{Op: op, Kind: ErrState, Err: cause}
}

func txError(op string, cause error) error {
	return &Error{Op: op, Kind: ErrTransaction, Err: cause}
}

// classify turns an error from inside a transaction into what the caller
// sees.
func classify(op string, err error) error {
	var pe *Error
	if errors.As(err, &pe) {
		return err
	}
	return txError(op, err)
}

// IsResidency reports whether err is an ErrResidency error.
func IsResidency(err error) bool { return errors.Is(err, ErrResidency) }

// IsTransaction reports whether err is an ErrTransaction error.
func IsTransaction(err error) bool { return errors.Is(err, ErrTransaction) }

// IsState reports whether err is an ErrState error.
func IsState(err error) bool { return errors.Is(err, ErrState) }
