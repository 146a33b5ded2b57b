package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"nko-map-backend/api-server/middleware"
	"nko-map-backend/api-server/response"
	"nko-map-backend/shared/apperr"
	"nko-map-backend/shared/services"
)

type AuthHandler struct {
	accounts *services.Accounts
}

func NewAuthHandler(accounts *services.Accounts) *AuthHandler {
	return &AuthHandler{accounts: accounts}
}

type RegisterRequest struct {
	Email     string `json:"email" example:"alice@example.com"`
	Password  string `json:"password" example:"secret123"`
	FirstName string `json:"firstName" example:"Алиса"`
	LastName  string `json:"lastName" example:"Иванова"`
	Phone     string `json:"phone,omitempty" example:"+7 (900) 123-45-67"`
}

type LoginRequest struct {
	Email    string `json:"email" example:"alice@example.com"`
	Password string `json:"password" example:"secret123"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" example:"alice@example.com"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password" example:"newsecret123"`
}

// POST /api/auth/register
// @Summary Register a user
// @Description Creates an account with role "user" and returns a bearer token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration data"
// @Success 201 {object} response.UnifiedResponse{data=services.AuthResult}
// @Failure 400 {object} response.UnifiedResponse
// @Failure 409 {object} response.UnifiedResponse "Email already registered"
// @Failure 429 {object} response.UnifiedResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.accounts.Register(c.Request.Context(), services.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, "Регистрация прошла успешно", result)
}

// POST /api/auth/login
// @Summary Log in
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Credentials"
// @Success 200 {object} response.UnifiedResponse{data=services.AuthResult}
// @Failure 401 {object} response.UnifiedResponse "Invalid credentials"
// @Failure 429 {object} response.UnifiedResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, "Вход выполнен успешно", result)
}

// GET /api/auth/me
// @Summary Current user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.UnifiedResponse
// @Failure 401 {object} response.UnifiedResponse
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, apperr.Unauthenticated("Требуется авторизация"))
		return
	}
	response.OK(c, user)
}

// POST /api/auth/forgot-password
// @Summary Request a password reset email
// @Description Always answers 200 so that registered emails cannot be discovered
// @Tags auth
// @Accept json
// @Produce json
// @Param request body ForgotPasswordRequest true "Account email"
// @Success 200 {object} response.UnifiedResponse
// @Failure 429 {object} response.UnifiedResponse
// @Router /auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.accounts.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, "Если аккаунт с таким email существует, мы отправили на него ссылку для восстановления пароля", nil)
}

// POST /api/auth/reset-password
// @Summary Set a new password with a reset token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body ResetPasswordRequest true "Token and new password"
// @Success 200 {object} response.UnifiedResponse
// @Failure 400 {object} response.UnifiedResponse "Invalid or expired token"
// @Router /auth/reset-password [post]
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.accounts.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, "Пароль успешно изменён", nil)
}

// bindJSON decodes the body into dst and writes a 400 envelope on failure.
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.Error(c, apperr.Wrap(apperr.ErrValidation, "Некорректный формат запроса", err))
		return false
	}
	return true
}
