package handler

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/gvn-booking-api/pkg/errors"
	"github.com/noah-isme/gvn-booking-api/pkg/response"
	"github.com/noah-isme/gvn-booking-api/pkg/storage"
)

type linkVerifier interface {
	Verify(token string) (ownerID, relPath string, err error)
}

// FileHandler streams stored uploads back to clients. Paths under
// storage.PrivateNamespace need a signed token for that exact path.
type FileHandler struct {
	store  storage.FileStore
	signer linkVerifier
}

// NewFileHandler constructs the handler.
func NewFileHandler(store storage.FileStore, signer linkVerifier) *FileHandler {
	return &FileHandler{store: store, signer: signer}
}

// Download godoc
// @Summary Download a stored file
// @Tags Files
// @Produce octet-stream
// @Param path path string true "Stored file path"
// @Param token query string false "Signed token, required for documents"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /files/{path} [get]
func (h *FileHandler) Download(c *gin.Context) {
	rel, err := storage.CleanPath(c.Param("path"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "file not found"))
		return
	}
	if storage.IsPrivate(rel) && !h.authorized(rel, c.Query("token")) {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "file not found"))
		return
	}

	body, err := h.store.Open(c.Request.Context(), rel)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) || errors.Is(err, storage.ErrInvalidPath) {
			response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "file not found"))
			return
		}
		response.Error(c, err)
		return
	}
	defer body.Close()

	contentType := mime.TypeByExtension(path.Ext(rel))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Type", contentType)
	if storage.IsPrivate(rel) {
		c.Header("Cache-Control", "no-store")
	} else {
		c.Header("Cache-Control", "private, max-age=300")
	}
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, body)
}

func (h *FileHandler) authorized(rel, token string) bool {
	if h.signer == nil || token == "" {
		return false
	}
	_, signedPath, err := h.signer.Verify(token)
	return err == nil && signedPath == rel
}
