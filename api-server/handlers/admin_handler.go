package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"nko-map-backend/api-server/middleware"
	"nko-map-backend/api-server/response"
	"nko-map-backend/shared/apperr"
	"nko-map-backend/shared/database/models"
	"nko-map-backend/shared/services"
	"nko-map-backend/shared/utils/query"
)

type AdminHandler struct {
	directory *services.Directory
	lifecycle *services.Lifecycle
	stats     *services.Stats
	accounts  *services.Accounts
}

func NewAdminHandler(directory *services.Directory, lifecycle *services.Lifecycle, stats *services.Stats, accounts *services.Accounts) *AdminHandler {
	return &AdminHandler{
		directory: directory,
		lifecycle: lifecycle,
		stats:     stats,
		accounts:  accounts,
	}
}

type RejectRequest struct {
	RejectionReason string `json:"rejectionReason" example:"Не указаны контакты"`
	Reason          string `json:"reason,omitempty"`
}

// GET /api/admin/npos
// @Summary Moderation queue
// @Description Oldest first. Defaults to pending
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param status query string false "pending | approved | rejected" default(pending)
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} response.UnifiedResponse{data=[]models.NPO}
// @Failure 403 {object} response.UnifiedResponse
// @Router /admin/npos [get]
func (h *AdminHandler) Queue(c *gin.Context) {
	status := models.NPOStatus(c.Query("status"))
	listing, err := h.directory.Queue(c.Request.Context(), status, query.ParsePage(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, listing.Items, listing.Page, listing.Total)
}

// GET /api/admin/npos/:id
// @Summary Get an NPO in any status
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "NPO id"
// @Success 200 {object} response.UnifiedResponse{data=models.NPO}
// @Failure 404 {object} response.UnifiedResponse
// @Router /admin/npos/{id} [get]
func (h *AdminHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	npo, err := h.directory.AdminGet(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, npo)
}

// PATCH /api/admin/npos/:id/approve
// @Summary Approve a pending NPO
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "NPO id"
// @Success 200 {object} response.UnifiedResponse{data=models.NPO}
// @Failure 403 {object} response.UnifiedResponse
// @Failure 404 {object} response.UnifiedResponse
// @Failure 409 {object} response.UnifiedResponse "Already moderated"
// @Router /admin/npos/{id}/approve [patch]
func (h *AdminHandler) Approve(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	actor, _ := middleware.CurrentUser(c)
	npo, err := h.lifecycle.Approve(c.Request.Context(), id, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, "Организация одобрена", npo)
}

// PATCH /api/admin/npos/:id/reject
// @Summary Reject a pending NPO
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "NPO id"
// @Param request body RejectRequest true "Reason"
// @Success 200 {object} response.UnifiedResponse{data=models.NPO}
// @Failure 400 {object} response.UnifiedResponse "Empty reason"
// @Failure 403 {object} response.UnifiedResponse
// @Failure 404 {object} response.UnifiedResponse
// @Failure 409 {object} response.UnifiedResponse "Already moderated"
// @Router /admin/npos/{id}/reject [patch]
func (h *AdminHandler) Reject(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, apperr.Wrap(apperr.ErrValidation, "Некорректный формат запроса", err))
		return
	}
	reason := req.RejectionReason
	if reason == "" {
		reason = req.Reason
	}

	actor, _ := middleware.CurrentUser(c)
	npo, err := h.lifecycle.Reject(c.Request.Context(), id, reason, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, "Организация отклонена", npo)
}

// GET /api/admin/stats
// @Summary NPO and user counters
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.UnifiedResponse{data=services.AdminStats}
// @Router /admin/stats [get]
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.stats.Admin(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, stats)
}

// GET /api/admin/users
// @Summary List users
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} response.UnifiedResponse{data=[]models.User}
// @Router /admin/users [get]
func (h *AdminHandler) Users(c *gin.Context) {
	page := query.ParsePage(c)
	users, total, err := h.accounts.ListUsers(c.Request.Context(), page)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, users, page, total)
}
