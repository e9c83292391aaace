// Package docs registers the OpenAPI document and serves the reference UI.
package docs

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/swaggo/swag"

	httptransport "github.com/arluqh/pregnancy-food-checker/internal/transport/http"
	"github.com/arluqh/pregnancy-food-checker/internal/utils"
)

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/analyze": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Analyze"],
                "summary": "Analyze a meal photo",
                "parameters": [
                    {
                        "description": "image data URL",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/analyze.Request"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/analyze.Response"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/httptransport.ErrorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/httptransport.ErrorResponse"}},
                    "429": {
                        "description": "Too Many Requests",
                        "headers": {"Retry-After": {"type": "integer", "description": "seconds until the window resets"}},
                        "schema": {"$ref": "#/definitions/httptransport.ErrorResponse"}
                    },
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/httptransport.ErrorResponse"}}
                }
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["System"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/webapi.HealthResponse"}}
                }
            }
        },
        "/foods/avoid": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Foods"],
                "summary": "Foods to avoid during pregnancy",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/webapi.AvoidFoodsResponse"}}
                }
            }
        }
    },
    "definitions": {
        "analysis.AvoidFood": {
            "type": "object",
            "properties": {
                "keywords": {"type": "array", "items": {"type": "string"}},
                "message": {"type": "string"},
                "details": {"type": "string"}
            }
        },
        "analysis.Verdict": {
            "type": "object",
            "properties": {
                "safe": {"type": "boolean"},
                "detected_food": {"type": "array", "items": {"type": "string"}, "x-nullable": true},
                "message": {"type": "string"},
                "details": {"type": "string"}
            }
        },
        "analyze.Request": {
            "type": "object",
            "required": ["image"],
            "properties": {
                "image": {"type": "string", "example": "data:image/jpeg;base64,/9j/4AAQ..."}
            }
        },
        "analyze.Response": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "result": {"$ref": "#/definitions/analysis.Verdict"}
            }
        },
        "httptransport.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "retryAfter": {"type": "integer"}
            }
        },
        "webapi.HealthResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "webapi.AvoidFoodsResponse": {
            "type": "object",
            "properties": {
                "avoid_foods": {
                    "type": "object",
                    "additionalProperties": {"$ref": "#/definitions/analysis.AvoidFood"}
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "Pregnancy Food Checker API",
	Description:      "Checks meal photos for foods to avoid during pregnancy.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

const scalarHTML = `<!DOCTYPE html>
<html lang="en">
	<head>
		<meta charset="utf-8" />
		<title>Pregnancy Food Checker API Reference</title>
		<meta name="viewport" content="width=device-width, initial-scale=1" />
	</head>
	<body>
		<script
			id="api-reference"
			data-url="/openapi.json"
			data-layout="modern"
			src="https://cdn.jsdelivr.net/npm/@scalar/api-reference"
		></script>
	</body>
</html>`

// Register mounts /openapi.json and /docs on the engine root.
func Register(ctx context.Context, router gin.IRoutes, logger *utils.Logger) {
	router.GET("/openapi.json", func(c *gin.Context) {
		doc, err := swag.ReadDoc()
		if err != nil {
			logger.ErrorTag("HTTP", "render openapi document: %v", err)
			httptransport.RespondError(c, http.StatusInternalServerError, "failed to generate openapi spec")
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(doc))
	})

	router.GET("/docs", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(scalarHTML))
	})
}
