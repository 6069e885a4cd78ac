package eventstore

import (
	"git.home.luguber.info/inful/cadence/internal/foundation/errors"
)

// eventStoreError builds a non-fatal event store error. History is auxiliary;
// its failures never stop the scheduler.
func eventStoreError(message string, cause error) error {
	return errors.NewError(errors.CategoryEventStore, message).
		Warning().
		WithCause(cause).
		Build()
}
