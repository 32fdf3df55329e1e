package types

import "errors"

var (
	// ErrRecordNotFound means the referenced donation record vanished
	// between read and transaction. Callers should refresh, not retry.
	ErrRecordNotFound = errors.New("donation record not found")

	// ErrItemNotFound means the item id did not resolve inside the
	// transaction, typically because another session edited the record.
	ErrItemNotFound = errors.New("material item not found in record")

	// ErrItemCompleted rejects any transition on a handed-over item.
	ErrItemCompleted = errors.New("item already handed over")

	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrTakerRequired rejects reservations missing taker name or phone
	// before any transaction is opened.
	ErrTakerRequired = errors.New("taker name and phone are required")

	// ErrConflict surfaces transactional contention the store could not
	// resolve within its retry budget. The stored record is unchanged.
	ErrConflict = errors.New("write conflict, retries exhausted")

	// ErrInvalidRecord rejects intake submissions missing donor contact
	// details or offering no items.
	ErrInvalidRecord = errors.New("donation record needs donor name, phone, and at least one item")

	ErrSettingInvalid = errors.New("unknown exchange phase")

	ErrContributionNotFound = errors.New("contribution not found")
)
