package booking

import (
	"driveshare/internal/models"
)

// CanCreateBooking allows admins and verified users to request a car.
func CanCreateBooking(p Principal) error {
	if p.IsAdmin() || p.Verified {
		return nil
	}
	return &Error{
		Code:    CodeNotVerified,
		Message: "account must be verified by an admin before booking a car",
	}
}

// CanActOnBooking decides whether p may perform action on b, whose car is
// car. It only looks at identities and roles, never at booking status.
func CanActOnBooking(p Principal, b models.Booking, car models.Car, action Action) error {
	if p.IsAdmin() {
		return nil
	}

	isRenter := p.UserID != "" && p.UserID == b.RenterID
	isOwner := p.UserID != "" && p.UserID == car.OwnerID

	switch action {
	case ActionView:
		if isRenter || isOwner {
			return nil
		}
	case ActionCancel:
		if isRenter {
			return nil
		}
	case ActionApprove, ActionReject:
		if isOwner {
			return nil
		}
	}

	return authorizationError("not authorized to %s booking %s", action, b.ID)
}
