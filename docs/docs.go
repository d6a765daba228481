// Package docs holds the swagger document served at /swagger/index.html.
// Regenerate with: swag init -g cmd/server/main.go
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "description": "Returns service health and the freshness of the rate cache",
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.healthResponse"}}
                }
            }
        },
        "/api/register": {
            "post": {
                "description": "Creates a user and a portfolio funded with the starting balance",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["users"],
                "summary": "Register a user",
                "parameters": [
                    {"description": "Credentials", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.credentialsRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handler.userResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/api/login": {
            "post": {
                "description": "Checks credentials and returns a bearer token",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["users"],
                "summary": "Log in",
                "parameters": [
                    {"description": "Credentials", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.credentialsRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.loginResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/api/portfolio": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Values every wallet entry in the requested base currency",
                "produces": ["application/json"],
                "tags": ["portfolio"],
                "summary": "Show portfolio",
                "parameters": [
                    {"type": "string", "description": "Base currency (defaults to the configured one)", "name": "base", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.portfolioResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/api/portfolio/buy": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Spends base currency at the cached rate",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["portfolio"],
                "summary": "Buy currency",
                "parameters": [
                    {"description": "Trade", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.tradeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.tradeResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/api/portfolio/sell": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Converts holdings back into the base currency at the cached rate",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["portfolio"],
                "summary": "Sell currency",
                "parameters": [
                    {"description": "Trade", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.tradeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.tradeResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/api/rates": {
            "get": {
                "description": "Returns every cached rate against base, or the top N by value",
                "produces": ["application/json"],
                "tags": ["rates"],
                "summary": "List cached rates",
                "parameters": [
                    {"type": "string", "description": "Base currency", "name": "base", "in": "query"},
                    {"type": "integer", "description": "Only the N highest rates", "name": "top", "in": "query"},
                    {"type": "string", "description": "Only this currency", "name": "currency", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.ratesResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/api/rates/refresh": {
            "post": {
                "description": "Runs one reconciliation cycle against the configured sources",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["rates"],
                "summary": "Refresh rates",
                "parameters": [
                    {"type": "string", "description": "Admin API key", "name": "X-API-Key", "in": "header"},
                    {"description": "Limit to these sources", "name": "body", "in": "body", "schema": {"$ref": "#/definitions/handler.refreshRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.refreshResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/api/rates/{from}/{to}": {
            "get": {
                "description": "Converts one unit of from into to through the pivot currency",
                "produces": ["application/json"],
                "tags": ["rates"],
                "summary": "Get a conversion rate",
                "parameters": [
                    {"type": "string", "description": "Source currency (e.g., BTC)", "name": "from", "in": "path", "required": true},
                    {"type": "string", "description": "Target currency (e.g., USD)", "name": "to", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.rateResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handler.errorResponse": {
            "type": "object",
            "properties": {"error": {"type": "string"}, "error_type": {"type": "string"}}
        },
        "handler.healthResponse": {
            "type": "object",
            "properties": {"status": {"type": "string"}, "rates_stale": {"type": "boolean"}, "last_refresh": {"type": "string"}}
        },
        "handler.credentialsRequest": {
            "type": "object",
            "required": ["password", "username"],
            "properties": {"username": {"type": "string"}, "password": {"type": "string"}}
        },
        "handler.userResponse": {
            "type": "object",
            "properties": {"user_id": {"type": "string"}, "username": {"type": "string"}, "registration_date": {"type": "string"}}
        },
        "handler.loginResponse": {
            "type": "object",
            "properties": {"token": {"type": "string"}, "expires_at": {"type": "string"}, "user": {"$ref": "#/definitions/handler.userResponse"}}
        },
        "handler.tradeRequest": {
            "type": "object",
            "required": ["currency"],
            "properties": {"currency": {"type": "string"}, "amount": {"type": "string", "example": "0.01"}}
        },
        "handler.tradeResponse": {
            "type": "object",
            "properties": {
                "side": {"type": "string"}, "currency": {"type": "string"}, "amount": {"type": "string"},
                "base": {"type": "string"}, "rate": {"type": "string"}, "total": {"type": "string"},
                "balance_before": {"type": "string"}, "balance_after": {"type": "string"}
            }
        },
        "handler.holdingResponse": {
            "type": "object",
            "properties": {"currency": {"type": "string"}, "balance": {"type": "string"}, "rate": {"type": "string"}, "value": {"type": "string"}}
        },
        "handler.portfolioResponse": {
            "type": "object",
            "properties": {
                "user_id": {"type": "string"}, "base": {"type": "string"}, "total": {"type": "string"},
                "holdings": {"type": "array", "items": {"$ref": "#/definitions/handler.holdingResponse"}}
            }
        },
        "handler.rateResponse": {
            "type": "object",
            "properties": {"from": {"type": "string"}, "to": {"type": "string"}, "rate": {"type": "string"}, "updated_at": {"type": "string"}}
        },
        "handler.ratesResponse": {
            "type": "object",
            "properties": {
                "base": {"type": "string"}, "last_refresh": {"type": "string"},
                "rates": {"type": "array", "items": {"$ref": "#/definitions/handler.rateResponse"}}
            }
        },
        "handler.refreshRequest": {
            "type": "object",
            "properties": {"sources": {"type": "array", "items": {"type": "string"}}}
        },
        "handler.refreshResponse": {
            "type": "object",
            "properties": {
                "outcome": {"type": "string"}, "last_refresh": {"type": "string"}, "total_rates": {"type": "integer"},
                "accepted": {"type": "integer"}, "succeeded": {"type": "array", "items": {"type": "string"}},
                "warnings": {"type": "array", "items": {"type": "object"}}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "fxledger API",
	Description:      "Multi-currency ledger with a reconciled exchange-rate cache.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
