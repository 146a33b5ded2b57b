package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"nko-map-backend/api-server/middleware"
	"nko-map-backend/api-server/response"
	"nko-map-backend/shared/apperr"
	"nko-map-backend/shared/database/models"
	"nko-map-backend/shared/services"
)

type ProfileHandler struct {
	accounts  *services.Accounts
	directory *services.Directory
	stats     *services.Stats
}

func NewProfileHandler(accounts *services.Accounts, directory *services.Directory, stats *services.Stats) *ProfileHandler {
	return &ProfileHandler{accounts: accounts, directory: directory, stats: stats}
}

// UpdateProfileRequest carries only the fields to change.
type UpdateProfileRequest struct {
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
	Phone     *string `json:"phone,omitempty"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// GET /api/profile
// @Summary Own profile
// @Tags profile
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.UnifiedResponse{data=models.User}
// @Router /profile [get]
func (h *ProfileHandler) Get(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	fresh, err := h.accounts.Get(c.Request.Context(), user.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, fresh)
}

// PUT /api/profile
// @Summary Update own profile
// @Tags profile
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body UpdateProfileRequest true "Fields to change"
// @Success 200 {object} response.UnifiedResponse{data=models.User}
// @Failure 400 {object} response.UnifiedResponse
// @Router /profile [put]
func (h *ProfileHandler) Update(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}

	updated, err := h.accounts.UpdateProfile(c.Request.Context(), user.ID, services.ProfileInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, "Профиль обновлён", updated)
}

// PUT /api/profile/password
// @Summary Change own password
// @Tags profile
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ChangePasswordRequest true "Current and new password"
// @Success 200 {object} response.UnifiedResponse
// @Failure 400 {object} response.UnifiedResponse
// @Router /profile/password [put]
func (h *ProfileHandler) ChangePassword(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req ChangePasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.accounts.ChangePassword(c.Request.Context(), user.ID, req.CurrentPassword, req.NewPassword); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, "Пароль успешно изменён", nil)
}

// GET /api/profile/npos
// @Summary NPOs created by the current user
// @Tags profile
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.UnifiedResponse{data=[]models.NPO}
// @Router /profile/npos [get]
func (h *ProfileHandler) NPOs(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	items, err := h.directory.OwnedBy(c.Request.Context(), user.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if items == nil {
		items = []models.NPO{}
	}
	response.OK(c, items)
}

// GET /api/profile/stats
// @Summary Counters of the current user's NPOs
// @Tags profile
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.UnifiedResponse{data=services.ProfileStats}
// @Router /profile/stats [get]
func (h *ProfileHandler) Stats(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	stats, err := h.stats.ForUser(c.Request.Context(), user.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, stats)
}

func currentUser(c *gin.Context) (*models.User, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, apperr.Unauthenticated("Требуется авторизация"))
	}
	return user, ok
}
