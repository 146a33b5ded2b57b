package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"nko-map-backend/api-server/middleware"
	"nko-map-backend/api-server/response"
	"nko-map-backend/shared/apperr"
	"nko-map-backend/shared/database/models"
	"nko-map-backend/shared/services"
	"nko-map-backend/shared/utils/query"
)

type NPOHandler struct {
	directory *services.Directory
	lifecycle *services.Lifecycle
}

func NewNPOHandler(directory *services.Directory, lifecycle *services.Lifecycle) *NPOHandler {
	return &NPOHandler{directory: directory, lifecycle: lifecycle}
}

type SubmitNPORequest struct {
	Name                string   `json:"name" example:"Лапа"`
	Category            string   `json:"category" example:"Помощь животным"`
	Description         string   `json:"description"`
	VolunteerActivities string   `json:"volunteerActivities,omitempty"`
	Phone               string   `json:"phone,omitempty"`
	Address             string   `json:"address" example:"ул. Ленина, 1"`
	City                string   `json:"city" example:"Саров"`
	Lat                 *float64 `json:"lat" example:"54.9229"`
	Lng                 *float64 `json:"lng" example:"43.3449"`
	Website             string   `json:"website,omitempty"`
	SocialVK            string   `json:"socialVk,omitempty"`
	SocialTelegram      string   `json:"socialTelegram,omitempty"`
	SocialInstagram     string   `json:"socialInstagram,omitempty"`
	Logo                string   `json:"logo,omitempty"`
}

type MetaResponse struct {
	Categories []string `json:"categories"`
	Cities     []string `json:"cities"`
}

// GET /api/npo
// @Summary Public NPO listing
// @Description Approved organizations only, newest first
// @Tags npo
// @Produce json
// @Param city query string false "Exact city"
// @Param category query []string false "Categories (repeat or comma separated)"
// @Param search query string false "Substring of name or description"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20) maximum(100)
// @Success 200 {object} response.UnifiedResponse{data=[]models.NPO}
// @Router /npo [get]
func (h *NPOHandler) List(c *gin.Context) {
	listing, err := h.directory.List(c.Request.Context(), services.ListFilter{
		City:       c.Query("city"),
		Categories: query.ParseList(c, "category"),
		Search:     c.Query("search"),
		Page:       query.ParsePage(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, listing.Items, listing.Page, listing.Total)
}

// GET /api/npo/:id
// @Summary Get one NPO
// @Description Unapproved organizations are visible to their creator and moderators only
// @Tags npo
// @Produce json
// @Param id path string true "NPO id"
// @Success 200 {object} response.UnifiedResponse{data=models.NPO}
// @Failure 404 {object} response.UnifiedResponse
// @Router /npo/{id} [get]
func (h *NPOHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	viewer, _ := middleware.CurrentUser(c)
	npo, err := h.directory.Get(c.Request.Context(), id, viewer)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, npo)
}

// POST /api/npo
// @Summary Submit an NPO for moderation
// @Tags npo
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body SubmitNPORequest true "Organization"
// @Success 201 {object} response.UnifiedResponse{data=models.NPO}
// @Failure 400 {object} response.UnifiedResponse
// @Failure 401 {object} response.UnifiedResponse
// @Failure 409 {object} response.UnifiedResponse "User already owns an NPO"
// @Router /npo [post]
func (h *NPOHandler) Create(c *gin.Context) {
	var req SubmitNPORequest
	if !bindJSON(c, &req) {
		return
	}

	actor, _ := middleware.CurrentUser(c)
	npo, err := h.lifecycle.Submit(c.Request.Context(), services.SubmitInput{
		Name:                req.Name,
		Category:            req.Category,
		Description:         req.Description,
		VolunteerActivities: req.VolunteerActivities,
		Phone:               req.Phone,
		Address:             req.Address,
		City:                req.City,
		Lat:                 req.Lat,
		Lng:                 req.Lng,
		Website:             req.Website,
		SocialVK:            req.SocialVK,
		SocialTelegram:      req.SocialTelegram,
		SocialInstagram:     req.SocialInstagram,
		Logo:                req.Logo,
	}, actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, "Организация отправлена на модерацию", npo)
}

// GET /api/npo/meta
// @Summary Allowed categories and cities
// @Tags npo
// @Produce json
// @Success 200 {object} response.UnifiedResponse{data=MetaResponse}
// @Router /npo/meta [get]
func (h *NPOHandler) Meta(c *gin.Context) {
	response.OK(c, MetaResponse{
		Categories: models.Categories,
		Cities:     models.Cities,
	})
}

// pathID parses the :id parameter. Malformed ids are reported as not found.
func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperr.NotFound("Организация не найдена"))
		return uuid.Nil, false
	}
	return id, true
}
