package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "ERP Timetable Proxy",
        "description": "Automates the ERP portal CAPTCHA login and scrapes the student timetable.",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http",
        "https"
    ],
    "tags": [
        {"name": "Timetable", "description": "CAPTCHA issuance and timetable scraping"},
        {"name": "Health", "description": "Liveness, readiness and metrics"}
    ],
    "paths": {
        "/": {
            "get": {
                "tags": ["Health"],
                "summary": "Service status",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/HealthResponse"}}
                }
            }
        },
        "/health": {
            "get": {
                "tags": ["Health"],
                "summary": "Liveness check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "tags": ["Health"],
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "Ticket store unreachable"}
                }
            }
        },
        "/get-captcha": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Issue a CAPTCHA",
                "description": "Opens a portal session and returns its CAPTCHA image. The single-use session token is returned in the X-Session-ID header.",
                "produces": ["image/jpeg", "application/json"],
                "responses": {
                    "200": {
                        "description": "CAPTCHA image",
                        "schema": {"type": "file"},
                        "headers": {
                            "X-Session-ID": {"type": "string", "description": "Session token for /fetch-timetable"}
                        }
                    },
                    "500": {"description": "Portal error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/fetch-timetable": {
            "post": {
                "tags": ["Timetable"],
                "summary": "Log in and fetch the timetable",
                "description": "Consumes the session token, submits the login and scrapes the timetable. The token is invalid afterwards whatever the outcome.",
                "consumes": ["application/x-www-form-urlencoded", "multipart/form-data"],
                "produces": ["application/json", "text/csv", "application/pdf"],
                "parameters": [
                    {"name": "username", "in": "formData", "required": true, "type": "string"},
                    {"name": "password", "in": "formData", "required": true, "type": "string"},
                    {"name": "captcha", "in": "formData", "required": true, "type": "string"},
                    {"name": "session_id", "in": "formData", "required": true, "type": "string"},
                    {"name": "academic_year_code", "in": "formData", "type": "string", "default": "19"},
                    {"name": "semester_id", "in": "formData", "type": "string", "default": "1"},
                    {"name": "format", "in": "formData", "type": "string", "enum": ["json", "csv", "pdf"], "default": "json"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid session, rejected login or missing timetable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "500": {"description": "Portal error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "HealthResponse": {
            "type": "object",
            "properties": {
                "message": {"type": "string"},
                "status": {"type": "string"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "timetable": {
                    "type": "object",
                    "additionalProperties": {
                        "type": "object",
                        "additionalProperties": {"type": "string"}
                    }
                },
                "message": {"type": "string"},
                "code": {"type": "string"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
