package core

import "errors"

var (
	// ErrNotFound is returned when a conversation, character or message does
	// not exist in the backing store.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the caller is neither the owner of a
	// private conversation nor permitted by its visibility.
	ErrForbidden = errors.New("forbidden")

	// ErrBadRequest is returned for malformed input, including regenerating a
	// conversation with no assistant message to replace.
	ErrBadRequest = errors.New("bad request")

	// ErrUpstream is returned when the model provider or another external
	// collaborator fails. The chat path surfaces it without retrying.
	ErrUpstream = errors.New("upstream error")

	// ErrQueueSaturated is returned when a bounded enqueue wait expires under
	// executor backpressure.
	ErrQueueSaturated = errors.New("execution queue saturated")

	// ErrUnknownFunction is returned when a function-call intent names a
	// handler that was never registered. Nothing is enqueued in that case.
	ErrUnknownFunction = errors.New("unknown function")

	// ErrStorageUnavailable is returned when a store backend cannot be
	// reached or initialized.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrConflict is returned when a concurrent append would violate the
	// per-conversation ordering guarantee.
	ErrConflict = errors.New("conflicting concurrent write")

	// ErrSearchUnavailable is returned by store backends without a search
	// capability.
	ErrSearchUnavailable = errors.New("search unavailable")
)
