package booking

import (
	"driveshare/internal/models"
)

type Action string

const (
	ActionView     Action = "view"
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionCancel   Action = "cancel"
	ActionConfirm  Action = "confirm"
	ActionComplete Action = "complete"
)

type transition struct {
	from  []models.BookingStatus
	to    models.BookingStatus
	event EventType
}

// transitions is the complete set of status changes a booking can make after
// creation. Anything not listed here is rejected.
var transitions = map[Action]transition{
	ActionApprove: {
		from:  []models.BookingStatus{models.BookingPending},
		to:    models.BookingApproved,
		event: EventApproved,
	},
	ActionReject: {
		from:  []models.BookingStatus{models.BookingPending},
		to:    models.BookingRejected,
		event: EventRejected,
	},
	ActionCancel: {
		from:  []models.BookingStatus{models.BookingPending, models.BookingApproved},
		to:    models.BookingCancelled,
		event: EventCancelled,
	},
	ActionConfirm: {
		from:  []models.BookingStatus{models.BookingApproved},
		to:    models.BookingConfirmed,
		event: EventConfirmed,
	},
	ActionComplete: {
		from:  []models.BookingStatus{models.BookingConfirmed},
		to:    models.BookingCompleted,
		event: EventCompleted,
	},
}

// NextStatus returns the status a booking in current moves to under action.
func NextStatus(current models.BookingStatus, action Action) (models.BookingStatus, error) {
	t, ok := transitions[action]
	if !ok {
		return "", invalidTransitionError(action, current)
	}
	for _, from := range t.from {
		if from == current {
			return t.to, nil
		}
	}
	return "", invalidTransitionError(action, current)
}

// CanTransition reports whether action is allowed from current.
func CanTransition(current models.BookingStatus, action Action) bool {
	_, err := NextStatus(current, action)
	return err == nil
}
