package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"nko-map-backend/api-server/response"
	"nko-map-backend/shared/apperr"
	"nko-map-backend/shared/database/models"
	"nko-map-backend/shared/repository"
	"nko-map-backend/shared/services"
	utils "nko-map-backend/shared/utils/auth"
)

const (
	userKey   = "user"
	UserIDKey = "user_id"
)

// Guard resolves the bearer token to a user and enforces the policy table.
type Guard struct {
	tokens *utils.TokenService
	users  repository.UserRepository
	policy *services.Policy
}

func NewGuard(tokens *utils.TokenService, users repository.UserRepository, policy *services.Policy) *Guard {
	return &Guard{tokens: tokens, users: users, policy: policy}
}

// Authenticate rejects the request with 401 unless it carries a valid token
// for an existing user.
func (g *Guard) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := g.resolve(c)
		if err != nil {
			response.Error(c, err)
			return
		}
		setUser(c, user)
		c.Next()
	}
}

// Optional resolves the user when possible and lets the request through
// anonymously otherwise, including on expired or forged tokens.
func (g *Guard) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		if user, err := g.resolve(c); err == nil {
			setUser(c, user)
		}
		c.Next()
	}
}

// Require aborts with 403 unless the authenticated user's role may perform op.
// It must run after Authenticate.
func (g *Guard) Require(op services.Operation) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			response.Error(c, apperr.Unauthenticated("Требуется авторизация"))
			return
		}
		if !g.policy.Allows(user.Role, op) {
			response.Error(c, apperr.Forbidden("Недостаточно прав"))
			return
		}
		c.Next()
	}
}

func (g *Guard) resolve(c *gin.Context) (*models.User, error) {
	token := bearerToken(c)
	if token == "" {
		return nil, apperr.Unauthenticated("Требуется авторизация")
	}

	userID, err := g.tokens.Verify(token)
	if err != nil {
		if errors.Is(err, utils.ErrExpiredToken) {
			return nil, apperr.Unauthenticated("Срок действия токена истёк")
		}
		return nil, apperr.Unauthenticated("Недействительный токен")
	}

	user, err := g.users.FindByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Unauthenticated("Пользователь не найден")
		}
		return nil, err
	}
	return user, nil
}

// CurrentUser returns the user resolved by Authenticate or Optional.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	value, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	user, ok := value.(*models.User)
	return user, ok && user != nil
}

func setUser(c *gin.Context, user *models.User) {
	c.Set(userKey, user)
	c.Set(UserIDKey, user.ID)
}

// bearerToken reads "Authorization: Bearer <token>". Websocket upgrades may
// pass the token as ?token= instead.
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if scheme, token, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	if websocket.IsWebSocketUpgrade(c.Request) {
		return c.Query("token")
	}
	return ""
}
