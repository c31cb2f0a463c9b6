package models

import "time"

type UserRole string

const (
	UserRoleRenter UserRole = "RENTER"
	UserRoleOwner  UserRole = "OWNER"
	UserRoleAdmin  UserRole = "ADMIN"
)

func (r UserRole) Valid() bool {
	switch r {
	case UserRoleRenter, UserRoleOwner, UserRoleAdmin:
		return true
	}
	return false
}

type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "PENDING"
	VerificationVerified VerificationStatus = "VERIFIED"
	VerificationRejected VerificationStatus = "REJECTED"
)

type User struct {
	ID                 string
	Email              string
	PasswordHash       []byte
	FullName           string
	PhoneNumber        string
	Role               UserRole
	VerificationStatus VerificationStatus
	LicenseObjectKey   *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Verified reports the outcome of the identity document review.
func (u User) Verified() bool {
	return u.VerificationStatus == VerificationVerified
}

type Session struct {
	ID               string
	UserID           string
	DeviceID         string
	DeviceName       string
	RefreshTokenHash []byte
	IPAddress        string
	UserAgent        string
	CreatedAt        time.Time
	LastSeenAt       time.Time
	ExpiresAt        time.Time
}
