package milter

import "errors"

// Handler callbacks signal one of three recognized failure kinds by
// wrapping one of these sentinels (errors.Is). Any other non-nil error is
// treated as InternalHandlerError (§7): the dispatcher logs it and closes
// the connection, since nothing about it is safe to show the MTA.
var (
	// ErrTempFailure maps to Respond(TempFail): a 4xx, retry-later outcome.
	ErrTempFailure = errors.New("milter: handler requested temporary failure")
	// ErrPermFailure maps to Respond(Reject): a 5xx, permanent outcome.
	ErrPermFailure = errors.New("milter: handler requested permanent failure")
	// ErrCloseConnection maps to Close: no further response, connection
	// shut down after any pending writes.
	ErrCloseConnection = errors.New("milter: handler requested connection close")
)

// TempFailure wraps err (which may be nil) as an ErrTempFailure.
func TempFailure(err error) error { return wrapSentinel(ErrTempFailure, err) }

// PermFailure wraps err (which may be nil) as an ErrPermFailure.
func PermFailure(err error) error { return wrapSentinel(ErrPermFailure, err) }

// CloseConnection wraps err (which may be nil) as an ErrCloseConnection.
func CloseConnection(err error) error { return wrapSentinel(ErrCloseConnection, err) }

func wrapSentinel(sentinel, err error) error {
	if err == nil {
		return sentinel
	}
	return &sentinelError{sentinel: sentinel, cause: err}
}

type sentinelError struct {
	sentinel error
	cause    error
}

func (e *sentinelError) Error() string { return e.sentinel.Error() + ": " + e.cause.Error() }
func (e *sentinelError) Unwrap() []error {
	return []error{e.sentinel, e.cause}
}
