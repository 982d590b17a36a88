package labels

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrNoRateAvailable means the carrier returned a shipment with an empty rate
// list, so there is nothing to buy.
var ErrNoRateAvailable = errors.New("no shipping rate available for this address/parcel")

// ValidationError rejects a request before any carrier call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// AcquisitionError wraps a carrier failure that happened before a label was
// purchased. Nothing was charged and nothing was persisted.
type AcquisitionError struct {
	Err error
}

func (e *AcquisitionError) Error() string { return "label acquisition: " + e.Err.Error() }
func (e *AcquisitionError) Unwrap() error { return e.Err }

// PersistenceError wraps a storage failure that happened after the label was
// already purchased. The label exists at the carrier even though our row does
// not, so callers must surface label_url and tracking_code alongside it.
type PersistenceError struct {
	Stage string
	Err   error
}

func (e *PersistenceError) Error() string { return e.Stage + ": " + e.Err.Error() }
func (e *PersistenceError) Unwrap() error { return e.Err }
