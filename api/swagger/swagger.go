package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Campus Connect API",
        "description": "Multi-tenant campus management backend",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {"name": "Auth", "description": "Registration, sessions and tokens"},
        {"name": "Users", "description": "Account administration"},
        {"name": "Colleges", "description": "College tenants and membership links"},
        {"name": "Classes", "description": "Classes, enrollment and faculty assignments"},
        {"name": "Rooms", "description": "Rooms and booking workflow"},
        {"name": "Library", "description": "Catalogue and lending desk"},
        {"name": "Announcements", "description": "College and class announcements"},
        {"name": "Events", "description": "Campus events"},
        {"name": "Attendance", "description": "Per-session attendance records"},
        {"name": "Exports", "description": "Asynchronous dataset exports"},
        {"name": "Dashboard", "description": "Headline counts per college"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "Database unavailable"}
                }
            }
        },
        "/auth/register": {
            "post": {
                "tags": ["Auth"],
                "summary": "Register an account",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Email already registered"}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate and issue tokens",
                "responses": {
                    "200": {"description": "Token pair", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Auth"],
                "summary": "Rotate a refresh token",
                "responses": {
                    "200": {"description": "New token pair"},
                    "401": {"description": "Revoked or expired token"}
                }
            }
        },
        "/colleges/link": {
            "post": {
                "tags": ["Colleges"],
                "summary": "Request to join a college by code",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "202": {"description": "Link request pending"}
                }
            }
        },
        "/classes/join": {
            "post": {
                "tags": ["Classes"],
                "summary": "Request enrollment by class code",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "202": {"description": "Join request pending"},
                    "409": {"description": "Already requested or enrolled"}
                }
            }
        },
        "/rooms/{id}/availability": {
            "get": {
                "tags": ["Rooms"],
                "summary": "Check a room slot for conflicts",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "date", "in": "query", "required": true, "type": "string"},
                    {"name": "start", "in": "query", "required": true, "type": "string"},
                    {"name": "end", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Availability with conflicting bookings"}
                }
            }
        },
        "/bookings": {
            "post": {
                "tags": ["Rooms"],
                "summary": "Request a room booking",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Booking pending approval"},
                    "409": {"description": "Slot conflict"}
                }
            }
        },
        "/library/loans": {
            "post": {
                "tags": ["Library"],
                "summary": "Borrow a book",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Loan created"},
                    "409": {"description": "No copies available or loan cap reached"}
                }
            }
        },
        "/exports": {
            "post": {
                "tags": ["Exports"],
                "summary": "Request a dataset export",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "202": {"description": "Export job queued"}
                }
            }
        },
        "/dashboard": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "College dashboard summary",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Headline counts", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
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
