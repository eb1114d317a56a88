package order

import "github.com/go-faster/errors"

// Status is the administrative review state of an order.
type Status string

const (
	// StatusPending awaits administrator review. Every order starts here.
	StatusPending Status = "pending"
	// StatusApproved means the payment was verified.
	StatusApproved Status = "approved"
	// StatusRejected means the payment was declined on review.
	StatusRejected Status = "rejected"
)

// ErrInvalidStatus is returned for unknown status values or disallowed
// transitions.
var ErrInvalidStatus = errors.New("invalid order status")

// ParseStatus validates a raw status value.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusApproved, StatusRejected:
		return Status(s), nil
	default:
		return "", ErrInvalidStatus
	}
}

// CanTransition reports whether an administrator may move an order from one
// status to another. Pending resolves to approved or rejected; a resolved
// order may only be pulled back to pending for re-review. Status changes are
// metadata writes, money moved (or was refused) at creation time.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusApproved || to == StatusRejected
	case StatusApproved, StatusRejected:
		return to == StatusPending
	default:
		return false
	}
}
