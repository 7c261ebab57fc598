//go:build swagger

package httpapi

import "github.com/swaggo/swag"

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
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "paths": {
        "/v1/chat/completions": {
            "post": {
                "summary": "Chat completion routed to one runner",
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/types.ChatCompletionRequest"}}],
                "responses": {
                    "200": {"description": "Runner response, relayed unchanged"},
                    "400": {"description": "Invalid request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "429": {"description": "Admission queue full or rate limited", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "502": {"description": "Runner rejected the request or was unreachable", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "504": {"description": "Timed out", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/v1/completions": {
            "post": {
                "summary": "Text completion routed to one runner",
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/types.CompletionRequest"}}],
                "responses": {
                    "200": {"description": "Runner response, relayed unchanged"},
                    "429": {"description": "Admission queue full or rate limited", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/v1/models": {
            "get": {
                "summary": "Model served by the pool",
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ModelsResponse"}}}
            }
        },
        "/status": {
            "get": {
                "summary": "Pool and queue status",
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.StatusResponse"}}}
            }
        },
        "/admin/runners": {
            "get": {"summary": "List runners", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}},
            "post": {
                "summary": "Register and probe a runner",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/types.RunnerRegistration"}}],
                "responses": {"201": {"description": "Runner ready"}, "409": {"description": "Already registered"}, "504": {"description": "Runner never became ready"}}
            },
            "delete": {
                "summary": "Drain and remove a runner",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "query", "name": "url", "type": "string", "required": true}],
                "responses": {"204": {"description": "Removed"}, "404": {"description": "Unknown runner"}}
            }
        },
        "/admin/runners/drain": {
            "post": {
                "summary": "Stop a runner from taking new work",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/types.RunnerRegistration"}}],
                "responses": {"202": {"description": "Draining"}, "404": {"description": "Unknown runner"}}
            }
        }
    },
    "definitions": {
        "types.ChatMessage": {"type": "object", "properties": {"role": {"type": "string", "example": "user"}, "content": {"type": "string"}}},
        "types.ChatCompletionRequest": {
            "type": "object",
            "properties": {
                "model": {"type": "string", "example": "llama3"},
                "messages": {"type": "array", "items": {"$ref": "#/definitions/types.ChatMessage"}},
                "max_tokens": {"type": "integer", "example": 128},
                "temperature": {"type": "number", "example": 0.7},
                "top_p": {"type": "number", "example": 0.9},
                "stop": {"type": "array", "items": {"type": "string"}},
                "seed": {"type": "integer", "example": 42}
            }
        },
        "types.CompletionRequest": {
            "type": "object",
            "properties": {
                "model": {"type": "string", "example": "llama3"},
                "prompt": {"type": "string"},
                "max_tokens": {"type": "integer", "example": 128},
                "temperature": {"type": "number", "example": 0.7},
                "top_p": {"type": "number", "example": 0.9},
                "top_k": {"type": "integer", "example": 40},
                "stop": {"type": "array", "items": {"type": "string"}},
                "seed": {"type": "integer", "example": 42},
                "repeat_penalty": {"type": "number", "example": 1.1}
            }
        },
        "types.ModelsResponse": {"type": "object", "properties": {"object": {"type": "string"}, "data": {"type": "array", "items": {"type": "object"}}}},
        "types.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "code": {"type": "integer"},
                "runner_status": {"type": "integer"},
                "runner_body": {"type": "string"}
            }
        },
        "types.StatusResponse": {
            "type": "object",
            "properties": {
                "state": {"type": "string", "example": "ready"},
                "model": {"type": "string"},
                "pool_size": {"type": "integer"},
                "idle": {"type": "integer"},
                "busy": {"type": "integer"},
                "queue_depth": {"type": "integer"},
                "queue_capacity": {"type": "integer"},
                "oldest_queued_seconds": {"type": "number"},
                "runners": {"type": "array", "items": {"type": "object"}}
            }
        },
        "types.RunnerRegistration": {"type": "object", "properties": {"url": {"type": "string", "example": "http://127.0.0.1:9003"}}}
    }
}`

var swaggerInfo = &swag.Spec{
	Version:          "1.0",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "runnerd API",
	Description:      "Admission and dispatch gateway in front of a pool of inference runners.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}
