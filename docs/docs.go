// Regenerate with: swag init -g api-server/main.go -o docs

package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "API Support",
            "email": "support@nko-map.local"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Liveness and dependency checks",
                "responses": {
                    "200": {"description": "OK"},
                    "503": {"description": "Service Unavailable"}
                }
            }
        },
        "/auth/register": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Register a user",
                "responses": {
                    "201": {"description": "Created"},
                    "400": {"description": "Bad Request"},
                    "409": {"description": "Email already registered"},
                    "429": {"description": "Too Many Requests"}
                }
            }
        },
        "/auth/login": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Log in",
                "responses": {
                    "200": {"description": "OK"},
                    "401": {"description": "Invalid credentials"},
                    "429": {"description": "Too Many Requests"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Current user",
                "responses": {
                    "200": {"description": "OK"},
                    "401": {"description": "Unauthorized"}
                }
            }
        },
        "/auth/forgot-password": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Request a password reset email",
                "responses": {
                    "200": {"description": "OK"},
                    "429": {"description": "Too Many Requests"}
                }
            }
        },
        "/auth/reset-password": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Set a new password with a reset token",
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Invalid or expired token"}
                }
            }
        },
        "/npo": {
            "get": {
                "produces": ["application/json"],
                "tags": ["npo"],
                "summary": "Public NPO listing",
                "parameters": [
                    {"type": "string", "name": "city", "in": "query"},
                    {"type": "array", "items": {"type": "string"}, "name": "category", "in": "query"},
                    {"type": "string", "name": "search", "in": "query"},
                    {"type": "integer", "default": 1, "name": "page", "in": "query"},
                    {"type": "integer", "default": 20, "maximum": 100, "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["npo"],
                "summary": "Submit an NPO for moderation",
                "responses": {
                    "201": {"description": "Created"},
                    "400": {"description": "Bad Request"},
                    "401": {"description": "Unauthorized"},
                    "409": {"description": "User already owns an NPO"}
                }
            }
        },
        "/npo/meta": {
            "get": {
                "produces": ["application/json"],
                "tags": ["npo"],
                "summary": "Allowed categories and cities",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/npo/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["npo"],
                "summary": "Get one NPO",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not Found"}
                }
            }
        },
        "/admin/npos": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Moderation queue",
                "parameters": [
                    {"type": "string", "default": "pending", "name": "status", "in": "query"},
                    {"type": "integer", "default": 1, "name": "page", "in": "query"},
                    {"type": "integer", "default": 20, "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "403": {"description": "Forbidden"}
                }
            }
        },
        "/admin/npos/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Get an NPO in any status",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not Found"}
                }
            }
        },
        "/admin/npos/{id}/approve": {
            "patch": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Approve a pending NPO",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "403": {"description": "Forbidden"},
                    "404": {"description": "Not Found"},
                    "409": {"description": "Already moderated"}
                }
            }
        },
        "/admin/npos/{id}/reject": {
            "patch": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Reject a pending NPO",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Empty reason"},
                    "403": {"description": "Forbidden"},
                    "404": {"description": "Not Found"},
                    "409": {"description": "Already moderated"}
                }
            }
        },
        "/admin/stats": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "NPO and user counters",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/admin/users": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "List users",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/profile": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["profile"],
                "summary": "Current user's profile",
                "responses": {
                    "200": {"description": "OK"}
                }
            },
            "put": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["profile"],
                "summary": "Update profile fields",
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Bad Request"}
                }
            }
        },
        "/profile/password": {
            "put": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["profile"],
                "summary": "Change password",
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Bad Request"}
                }
            }
        },
        "/profile/npos": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["profile"],
                "summary": "NPOs created by the current user",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/profile/stats": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["profile"],
                "summary": "Counters of the current user's NPOs",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/uploads/logo": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["uploads"],
                "summary": "Upload an NPO logo",
                "parameters": [
                    {"type": "file", "name": "logo", "in": "formData", "required": true}
                ],
                "responses": {
                    "201": {"description": "Created"},
                    "400": {"description": "Bad Request"},
                    "503": {"description": "Uploads disabled"}
                }
            }
        },
        "/uploads/logo/{key}": {
            "get": {
                "tags": ["uploads"],
                "summary": "Download a logo",
                "parameters": [
                    {"type": "string", "name": "key", "in": "path", "required": true}
                ],
                "responses": {
                    "307": {"description": "Temporary Redirect"},
                    "404": {"description": "Not Found"}
                }
            }
        },
        "/ws": {
            "get": {
                "tags": ["realtime"],
                "summary": "Live moderation events",
                "parameters": [
                    {"type": "string", "name": "token", "in": "query", "required": true}
                ],
                "responses": {
                    "101": {"description": "Switching Protocols"},
                    "401": {"description": "Unauthorized"}
                }
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Type \"Bearer\" followed by a space and the JWT token.",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:10000",
	BasePath:         "/api",
	Schemes:          []string{"http", "https"},
	Title:            "NKO Map API",
	Description:      "Directory and map of non-profit organizations with a moderation workflow.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
