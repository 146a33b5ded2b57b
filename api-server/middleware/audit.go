package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"nko-map-backend/api-server/response"
	"nko-map-backend/shared/database/models"
	"nko-map-backend/shared/repository"
)

const auditTimeout = 5 * time.Second

// AuditTrail records every mutating request in the audit log. Writes happen
// in the background and failures are only logged.
type AuditTrail struct {
	repo   repository.AuditRepository
	logger *zap.Logger
	wg     sync.WaitGroup
}

func NewAuditTrail(repo repository.AuditRepository, logger *zap.Logger) *AuditTrail {
	return &AuditTrail{repo: repo, logger: logger}
}

func (a *AuditTrail) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return
		}

		entry := &models.AuditLog{
			Method:     c.Request.Method,
			Path:       c.Request.URL.Path,
			StatusCode: c.Writer.Status(),
			IPAddress:  c.ClientIP(),
			UserAgent:  c.Request.UserAgent(),
			Duration:   time.Since(start).Milliseconds(),
			RequestID:  c.GetString(response.RequestIDKey),
		}
		if id, ok := c.Get(UserIDKey); ok {
			if userID, ok := id.(uuid.UUID); ok {
				entry.UserID = &userID
			}
		}

		ctx := context.WithoutCancel(c.Request.Context())
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			ctx, cancel := context.WithTimeout(ctx, auditTimeout)
			defer cancel()
			if err := a.repo.Save(ctx, entry); err != nil {
				a.logger.Warn("failed to save audit log",
					zap.String("request_id", entry.RequestID),
					zap.Error(err),
				)
			}
		}()
	}
}

// Wait blocks until queued audit writes finish.
func (a *AuditTrail) Wait() {
	a.wg.Wait()
}
