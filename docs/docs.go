// Package docs holds the swagger spec served by -tags=swagger builds.
// Regenerate with `swag init -g cmd/inferd/docs.go` after changing handler
// annotations.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {"name": "inferd maintainers"},
        "license": {"name": "MIT", "url": "https://opensource.org/licenses/MIT"},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/v1/chat": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json", "application/x-ndjson"],
                "tags": ["sessions"],
                "summary": "Chat completion",
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/types.ChatRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ChatEvent"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/v1/tts": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json", "application/x-ndjson"],
                "tags": ["sessions"],
                "summary": "Text to speech",
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/types.TTSRequest"}},
                    {"in": "query", "name": "stream", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.AudioEvent"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/v1/asr": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json", "application/x-ndjson"],
                "tags": ["sessions"],
                "summary": "Speech to text",
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/types.ASRRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.TranscriptEvent"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/v1/sessions/{id}": {
            "delete": {
                "tags": ["sessions"],
                "summary": "Cancel an in-flight session",
                "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/runners": {
            "get": {
                "produces": ["application/json"],
                "tags": ["engine"],
                "summary": "List registered runners",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.RunnersResponse"}}}
            }
        },
        "/status": {
            "get": {
                "produces": ["application/json"],
                "tags": ["engine"],
                "summary": "Engine status",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.StatusResponse"}}}
            }
        }
    },
    "definitions": {
        "types.ChatRequest": {"type": "object"},
        "types.ChatEvent": {"type": "object"},
        "types.TTSRequest": {"type": "object"},
        "types.AudioEvent": {"type": "object"},
        "types.ASRRequest": {"type": "object"},
        "types.TranscriptEvent": {"type": "object"},
        "types.RunnersResponse": {"type": "object"},
        "types.StatusResponse": {"type": "object"},
        "types.ErrorResponse": {"type": "object"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "inferd API",
	Description:      "On-device inference orchestration: chat, speech and transcription sessions.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
