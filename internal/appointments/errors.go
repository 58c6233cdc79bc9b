package appointments

import "errors"

var (
	ErrNotFound             = errors.New("appointment not found")
	ErrReasonRequired       = errors.New("cancellation reason is required")
	ErrNotCancellable       = errors.New("only pending or confirmed appointments can be cancelled")
	ErrTransitionNotAllowed = errors.New("status change not allowed")
)
