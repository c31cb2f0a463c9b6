package models

import "time"

type CarApprovalStatus string

const (
	CarPending  CarApprovalStatus = "PENDING"
	CarApproved CarApprovalStatus = "APPROVED"
	CarRejected CarApprovalStatus = "REJECTED"
)

type Car struct {
	ID             string
	OwnerID        string
	Make           string
	Model          string
	Year           int
	Location       string
	PricePerDay    float64
	ApprovalStatus CarApprovalStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CarFilter narrows the public catalogue. Zero values leave a field
// unconstrained.
type CarFilter struct {
	Make     string
	Location string
	MinPrice float64
	MaxPrice float64
	Limit    int
	Offset   int
}
