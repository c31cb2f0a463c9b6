package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"driveshare/internal/booking"
	"driveshare/internal/middleware"
	"driveshare/internal/models"
	"driveshare/internal/repository"
	"driveshare/internal/service"
)

var bookingStatusByCode = map[booking.Code]int{
	booking.CodeValidation:           http.StatusBadRequest,
	booking.CodeNotVerified:          http.StatusForbidden,
	booking.CodeAuthorization:        http.StatusForbidden,
	booking.CodeNotFound:             http.StatusNotFound,
	booking.CodeAvailabilityConflict: http.StatusConflict,
	booking.CodeInvalidTransition:    http.StatusConflict,
	booking.CodeConcurrencyConflict:  http.StatusConflict,
}

// writeError renders err as a JSON error body. Typed booking failures keep
// their code; service sentinels map to the closest HTTP status.
func (h HandlerSet) writeError(c *gin.Context, err error) {
	var be *booking.Error
	if errors.As(err, &be) {
		status, ok := bookingStatusByCode[be.Code]
		if ok {
			body := gin.H{"error": string(be.Code), "message": be.Message}
			if be.Conflict != nil {
				body["conflict"] = gin.H{
					"bookingId": be.Conflict.ID,
					"startDate": be.Conflict.Range.Start,
					"endDate":   be.Conflict.Range.End,
					"status":    be.Conflict.Status,
				}
			}
			if be.Code == booking.CodeInvalidTransition {
				body["currentStatus"] = be.Current
			}
			c.JSON(status, body)
			return
		}
	}

	status, code := http.StatusInternalServerError, "internal_error"
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		status, code = http.StatusBadRequest, "validation_error"
	case errors.Is(err, service.ErrInvalidCredentials):
		status, code = http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, service.ErrForbidden):
		status, code = http.StatusForbidden, "forbidden"
	case errors.Is(err, repository.ErrUserNotFound), errors.Is(err, booking.ErrRecordNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, repository.ErrEmailTaken):
		status, code = http.StatusConflict, "email_taken"
	case errors.Is(err, service.ErrNoDocument):
		status, code = http.StatusConflict, "no_document"
	case errors.Is(err, service.ErrDocumentTooLarge):
		status, code = http.StatusRequestEntityTooLarge, "document_too_large"
	case errors.Is(err, service.ErrDocumentType):
		status, code = http.StatusUnsupportedMediaType, "unsupported_document"
	case errors.Is(err, service.ErrDocumentEmpty):
		status, code = http.StatusBadRequest, "empty_document"
	}

	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("request_id", middleware.RequestIDFrom(c)).Msg("request failed")
		c.JSON(status, gin.H{"error": code})
		return
	}
	c.JSON(status, gin.H{"error": code, "message": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "message": err.Error()})
}

func currentUser(c *gin.Context) (models.User, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	}
	return user, ok
}

func principal(c *gin.Context) (booking.Principal, bool) {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	}
	return p, ok
}

func pagination(c *gin.Context) (limit, offset int) {
	limit = 50
	if perPage := c.Query("perPage"); perPage != "" {
		if v, err := strconv.Atoi(perPage); err == nil && v > 0 && v <= 200 {
			limit = v
		}
	}
	if page := c.Query("page"); page != "" {
		if v, err := strconv.Atoi(page); err == nil && v > 1 {
			offset = (v - 1) * limit
		}
	}
	return limit, offset
}
