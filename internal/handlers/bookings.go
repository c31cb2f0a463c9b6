package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"driveshare/internal/booking"
	"driveshare/internal/models"
)

type createBookingRequest struct {
	CarID     string `json:"carId" binding:"required"`
	StartDate string `json:"startDate" binding:"required"`
	EndDate   string `json:"endDate" binding:"required"`
}

type bookingResponse struct {
	ID         string    `json:"id"`
	CarID      string    `json:"carId"`
	RenterID   string    `json:"renterId"`
	StartDate  time.Time `json:"startDate"`
	EndDate    time.Time `json:"endDate"`
	TotalPrice float64   `json:"totalPrice"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func toBookingResponse(b models.Booking) bookingResponse {
	return bookingResponse{
		ID:         b.ID,
		CarID:      b.CarID,
		RenterID:   b.RenterID,
		StartDate:  b.Range.Start,
		EndDate:    b.Range.End,
		TotalPrice: b.TotalPrice,
		Status:     string(b.Status),
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.UpdatedAt,
	}
}

// parseDate accepts RFC 3339 timestamps or plain calendar dates (UTC midnight).
func parseDate(field, value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, value); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%s must be a date (YYYY-MM-DD) or RFC 3339 timestamp", field)
}

func (h HandlerSet) CreateBooking(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	start, err := parseDate("startDate", req.StartDate)
	if err != nil {
		badRequest(c, err)
		return
	}
	end, err := parseDate("endDate", req.EndDate)
	if err != nil {
		badRequest(c, err)
		return
	}

	b, err := h.bookings.CreateBooking(c.Request.Context(), p, booking.CreateInput{
		CarID: req.CarID,
		Start: start,
		End:   end,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"booking": toBookingResponse(b)})
}

func (h HandlerSet) ListBookings(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	list, err := h.bookings.ListMyBookings(c.Request.Context(), p)
	if err != nil {
		h.writeError(c, err)
		return
	}

	items := make([]bookingResponse, 0, len(list))
	for _, b := range list {
		items = append(items, toBookingResponse(b))
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h HandlerSet) GetBooking(c *gin.Context) {
	h.bookingAction(c, h.bookings.GetBooking)
}

func (h HandlerSet) ApproveBooking(c *gin.Context) {
	h.bookingAction(c, h.bookings.ApproveBooking)
}

func (h HandlerSet) RejectBooking(c *gin.Context) {
	h.bookingAction(c, h.bookings.RejectBooking)
}

func (h HandlerSet) CancelBooking(c *gin.Context) {
	h.bookingAction(c, h.bookings.CancelBooking)
}

func (h HandlerSet) AdminConfirmBooking(c *gin.Context) {
	h.bookingAction(c, h.bookings.ConfirmBooking)
}

type bookingOp func(ctx context.Context, p booking.Principal, id string) (models.Booking, error)

func (h HandlerSet) bookingAction(c *gin.Context, op bookingOp) {
	p, ok := principal(c)
	if !ok {
		return
	}

	b, err := op(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": toBookingResponse(b)})
}
