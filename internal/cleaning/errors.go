package cleaning

import "errors"

var (
	// ErrMissingBatchID is returned when a record reaches CleanRecord
	// without the batch it belongs to. It signals a caller bug, not bad data.
	ErrMissingBatchID = errors.New("record has no batch id")

	// ErrEnhanceFailed wraps a failure of one enhancement group.
	ErrEnhanceFailed = errors.New("enhancement failed")
)
