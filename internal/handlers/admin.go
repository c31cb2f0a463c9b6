package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"driveshare/internal/models"
)

type reviewRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h HandlerSet) AdminPendingUsers(c *gin.Context) {
	limit, offset := pagination(c)

	users, err := h.documents.PendingUsers(c.Request.Context(), limit, offset)
	if err != nil {
		h.writeError(c, err)
		return
	}

	items := make([]userResponse, 0, len(users))
	for _, u := range users {
		items = append(items, toUserResponse(u))
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h HandlerSet) AdminLicenseURL(c *gin.Context) {
	url, err := h.documents.LicenseURL(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (h HandlerSet) AdminReviewUser(c *gin.Context) {
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.documents.Review(c.Request.Context(), c.Param("id"), models.VerificationStatus(req.Status))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(user)})
}

func (h HandlerSet) AdminPendingCars(c *gin.Context) {
	limit, offset := pagination(c)

	cars, err := h.cars.Pending(c.Request.Context(), limit, offset)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": toCarList(cars)})
}

func (h HandlerSet) AdminReviewCar(c *gin.Context) {
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	car, err := h.cars.Review(c.Request.Context(), c.Param("id"), models.CarApprovalStatus(req.Status))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"car": toCarResponse(car)})
}

func (h HandlerSet) AdminStats(c *gin.Context) {
	stats, err := h.stats.Snapshot(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"users":    stats.Users,
		"cars":     stats.Cars,
		"bookings": stats.Bookings,
		"revenue":  stats.Revenue,
	})
}
