package handler

import (
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gvn-booking-api/internal/middleware"
	"github.com/noah-isme/gvn-booking-api/internal/models"
	appErrors "github.com/noah-isme/gvn-booking-api/pkg/errors"
)

const platformHeader = "X-Platform"

func principalFromContext(c *gin.Context) (*models.Principal, error) {
	principal := middleware.PrincipalFromContext(c)
	if principal == nil || principal.User == nil {
		return nil, appErrors.ErrNotAuthenticated
	}
	return principal, nil
}

func clientInfo(c *gin.Context) models.ClientInfo {
	return models.ClientInfo{
		IP:        c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
		Platform:  c.GetHeader(platformHeader),
	}
}

// readUpload buffers at most limit+1 bytes so the service can tell an
// oversized file from one that fits exactly.
func readUpload(header *multipart.FileHeader, limit int64) (*models.UploadedFile, error) {
	if header == nil {
		return nil, nil
	}
	if limit > 0 && header.Size > limit {
		return nil, appErrors.ErrTooLarge
	}
	file, err := header.Open()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable upload")
	}
	defer file.Close()

	var reader io.Reader = file
	if limit > 0 {
		reader = io.LimitReader(file, limit+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable upload")
	}
	return &models.UploadedFile{Name: header.Filename, Data: data}, nil
}

func formFile(form *multipart.Form, field string) *multipart.FileHeader {
	if form == nil || len(form.File[field]) == 0 {
		return nil
	}
	return form.File[field][0]
}
