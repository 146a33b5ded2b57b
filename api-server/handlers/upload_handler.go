package handlers

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"nko-map-backend/api-server/response"
	"nko-map-backend/shared/apperr"
)

const logoRoute = "/api/uploads/logo/"

// LogoStorage stores logo images. Implemented by storage.LogoStore.
type LogoStorage interface {
	Upload(ctx context.Context, owner uuid.UUID, r io.Reader, size int64) (string, error)
	PresignedURL(ctx context.Context, key string) (string, error)
}

type UploadHandler struct {
	storage LogoStorage
}

// NewUploadHandler builds the handler. A nil storage means uploads are
// disabled and every request answers 503.
func NewUploadHandler(storage LogoStorage) *UploadHandler {
	return &UploadHandler{storage: storage}
}

type UploadResponse struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// POST /api/uploads/logo
// @Summary Upload an NPO logo
// @Description PNG, JPEG or WEBP. The returned url is suitable for the NPO logo field
// @Tags uploads
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param logo formData file true "Image"
// @Success 201 {object} response.UnifiedResponse{data=UploadResponse}
// @Failure 400 {object} response.UnifiedResponse
// @Failure 503 {object} response.UnifiedResponse "Uploads disabled"
// @Router /uploads/logo [post]
func (h *UploadHandler) UploadLogo(c *gin.Context) {
	if !h.enabled(c) {
		return
	}
	user, ok := currentUser(c)
	if !ok {
		return
	}

	header, err := c.FormFile("logo")
	if err != nil {
		response.Error(c, apperr.Wrap(apperr.ErrValidation, "Файл логотипа не передан", err))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, apperr.Internal("Не удалось прочитать файл", err))
		return
	}
	defer file.Close()

	key, err := h.storage.Upload(c.Request.Context(), user.ID, file, header.Size)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, "Логотип загружен", UploadResponse{Key: key, URL: logoRoute + key})
}

// GET /api/uploads/logo/{key}
// @Summary Download a logo
// @Description Redirects to a short-lived presigned URL
// @Tags uploads
// @Param key path string true "Object key"
// @Success 307
// @Failure 404 {object} response.UnifiedResponse
// @Router /uploads/logo/{key} [get]
func (h *UploadHandler) Logo(c *gin.Context) {
	if !h.enabled(c) {
		return
	}

	key := strings.TrimPrefix(c.Param("key"), "/")
	url, err := h.storage.PresignedURL(c.Request.Context(), key)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Redirect(http.StatusTemporaryRedirect, url)
}

func (h *UploadHandler) enabled(c *gin.Context) bool {
	if h.storage == nil {
		response.Abort(c, http.StatusServiceUnavailable, "UPLOADS_DISABLED", "Загрузка файлов отключена")
		return false
	}
	return true
}
