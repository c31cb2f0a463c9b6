package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"driveshare/internal/media/sniffer"
	"driveshare/internal/service"
)

const multipartOverhead = 1 << 20

// UploadLicense accepts a multipart form with the licence in the "file" field.
func (h HandlerSet) UploadLicense(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	if h.cfg != nil && h.cfg.Storage.MaxDocumentBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.Storage.MaxDocumentBytes+multipartOverhead)
	}

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(c, service.ErrDocumentTooLarge)
			return
		}
		badRequest(c, errors.New("file field is required"))
		return
	}

	file, err := header.Open()
	if err != nil {
		h.writeError(c, err)
		return
	}
	defer file.Close()

	updated, err := h.documents.UploadLicense(c.Request.Context(), service.UploadInput{
		UserID:       user.ID,
		File:         file,
		Size:         header.Size,
		DeclaredMIME: sniffer.MimeTypeFromHTTP(http.Header(header.Header)),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(updated)})
}
