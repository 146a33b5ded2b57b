// Package docs NKO map API documentation
package docs

// Swagger documentation info
// @title NKO Map API
// @version 1.0
// @description Directory and map of non-profit organizations with a moderation workflow.

// @contact.name API Support
// @contact.email support@nko-map.local

// @host localhost:10000
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the JWT token.

// @tag.name auth
// @tag.description Registration, login and password recovery
// @tag.name npo
// @tag.description Public NPO directory and submissions
// @tag.name admin
// @tag.description Moderation queue, decisions and statistics
// @tag.name profile
// @tag.description Current user's profile and organizations
// @tag.name uploads
// @tag.description NPO logo storage
// @tag.name realtime
// @tag.description Websocket moderation events
// @tag.name health
// @tag.description Service and dependency health
