// backend/customerrors/errors.go
package customerrors

import "errors"

var (
	// ErrTransportFailure covers network errors, timeouts and non-2xx replies from the index provider.
	ErrTransportFailure = errors.New("index provider request failed")
	// ErrIncompleteSourceData means the payload parsed but no candidate location held a complete value.
	ErrIncompleteSourceData = errors.New("index provider returned incomplete data")
	// ErrDuplicateDate is returned by the store when a row for the date already exists.
	ErrDuplicateDate = errors.New("a record for this date already exists")
	// ErrStoreFailure wraps any error from the underlying database.
	ErrStoreFailure = errors.New("record store unavailable")
)
