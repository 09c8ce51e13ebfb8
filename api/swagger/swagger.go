package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "CodeQuest API",
        "description": "Code quality analysis platform with missions, achievements and rankings",
        "version": "1.0.0"
    },
    "basePath": "/api",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Accounts, sessions and tokens"},
        {"name": "Analysis", "description": "Project submission and scan results"},
        {"name": "Missions", "description": "Findings turned into actionable tasks"},
        {"name": "Achievements", "description": "Gamification badges and points"},
        {"name": "Rankings", "description": "Quality leaderboards"},
        {"name": "Reports", "description": "CSV and PDF findings exports"},
        {"name": "Users", "description": "Admin account management"},
        {"name": "Metrics", "description": "Operational counters"}
    ],
    "paths": {
        "/auth/register": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Register student account",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RegisterRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Email already registered"}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Refresh access token",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RefreshTokenRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid or revoked refresh token"}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Logout current session",
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/auth/change-password": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Change password",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ChangePasswordRequest"}}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Get current user",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/analyses": {
            "post": {
                "tags": ["Analysis"],
                "summary": "Submit project for analysis",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "archive", "in": "formData", "required": true, "type": "file"},
                    {"name": "project_name", "in": "formData", "type": "string"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "An analysis is already running for this user"},
                    "413": {"description": "Archive too large"}
                }
            },
            "get": {
                "tags": ["Analysis"],
                "summary": "List analysis runs",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/analyses/summary": {
            "get": {
                "tags": ["Analysis"],
                "summary": "Aggregate the caller's completed runs",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/analyses/{id}": {
            "get": {
                "tags": ["Analysis"],
                "summary": "Get analysis run",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Run not found"}
                }
            },
            "delete": {
                "tags": ["Analysis"],
                "summary": "Delete analysis run and its missions",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/analyses/{id}/missions/summary": {
            "get": {
                "tags": ["Missions"],
                "summary": "Mission summary for a run",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/missions": {
            "get": {
                "tags": ["Missions"],
                "summary": "List missions",
                "parameters": [
                    {"name": "run_id", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/missions/{id}": {
            "get": {
                "tags": ["Missions"],
                "summary": "Get mission",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Mission not found"}
                }
            }
        },
        "/missions/{id}/fix": {
            "post": {
                "tags": ["Missions"],
                "summary": "Mark mission as fixed",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Mission already closed"}
                }
            }
        },
        "/missions/{id}/skip": {
            "post": {
                "tags": ["Missions"],
                "summary": "Mark mission as skipped",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Mission already closed"}
                }
            }
        },
        "/achievements": {
            "get": {
                "tags": ["Achievements"],
                "summary": "List achievements with unlock state",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/achievements/stats": {
            "get": {
                "tags": ["Achievements"],
                "summary": "Achievement progress counters",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/rankings": {
            "get": {
                "tags": ["Rankings"],
                "summary": "Quality leaderboard",
                "parameters": [
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Rankings disabled"}
                }
            }
        },
        "/rankings/me": {
            "get": {
                "tags": ["Rankings"],
                "summary": "Current user's rank",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/rankings/stats": {
            "get": {
                "tags": ["Rankings"],
                "summary": "Global leaderboard stats",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports": {
            "post": {
                "tags": ["Reports"],
                "summary": "Queue a findings export",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateReportRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Reports disabled or run not found"}
                }
            }
        },
        "/reports/{id}": {
            "get": {
                "tags": ["Reports"],
                "summary": "Report job status",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports/download/{token}": {
            "get": {
                "tags": ["Reports"],
                "summary": "Download a generated report",
                "produces": ["application/octet-stream"],
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Report file"},
                    "403": {"description": "Link expired or tampered"}
                }
            }
        },
        "/admin/metrics": {
            "get": {
                "tags": ["Metrics"],
                "summary": "System metrics snapshot",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/users": {
            "get": {
                "tags": ["Users"],
                "summary": "List user accounts",
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "role", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/users/{id}": {
            "delete": {
                "tags": ["Users"],
                "summary": "Deactivate user account",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        }
    },
    "definitions": {
        "RegisterRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"},
                "full_name": {"type": "string"}
            },
            "required": ["email", "password", "full_name"]
        },
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
        },
        "RefreshTokenRequest": {
            "type": "object",
            "properties": {
                "refresh_token": {"type": "string"}
            },
            "required": ["refresh_token"]
        },
        "ChangePasswordRequest": {
            "type": "object",
            "properties": {
                "old_password": {"type": "string"},
                "new_password": {"type": "string"}
            },
            "required": ["old_password", "new_password"]
        },
        "CreateReportRequest": {
            "type": "object",
            "properties": {
                "run_id": {"type": "string"},
                "format": {"type": "string", "enum": ["csv", "pdf"]}
            },
            "required": ["run_id", "format"]
        },
        "AnalysisRun": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "user_id": {"type": "string"},
                "project_name": {"type": "string"},
                "status": {"type": "string"},
                "quality_score": {"type": "number"},
                "file_stats": {"type": "object"},
                "findings": {"type": "array", "items": {"$ref": "#/definitions/Finding"}},
                "created_at": {"type": "string"},
                "completed_at": {"type": "string"}
            }
        },
        "Finding": {
            "type": "object",
            "properties": {
                "tool": {"type": "string"},
                "severity": {"type": "string"},
                "file": {"type": "string"},
                "line": {"type": "integer"},
                "rule": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "Mission": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "run_id": {"type": "string"},
                "user_id": {"type": "string"},
                "title": {"type": "string"},
                "status": {"type": "string"},
                "severity": {"type": "string"},
                "tool": {"type": "string"},
                "file": {"type": "string"},
                "line": {"type": "integer"},
                "rule": {"type": "string"},
                "created_at": {"type": "string"},
                "fixed_at": {"type": "string"}
            }
        },
        "Achievement": {
            "type": "object",
            "properties": {
                "type": {"type": "string"},
                "name": {"type": "string"},
                "description": {"type": "string"},
                "category": {"type": "string"},
                "points": {"type": "integer"},
                "progress_current": {"type": "integer"},
                "progress_target": {"type": "integer"},
                "unlocked": {"type": "boolean"},
                "unlocked_at": {"type": "string"}
            }
        },
        "RankingEntry": {
            "type": "object",
            "properties": {
                "rank": {"type": "integer"},
                "user_id": {"type": "string"},
                "full_name": {"type": "string"},
                "average_score": {"type": "number"},
                "run_count": {"type": "integer"},
                "total_points": {"type": "integer"}
            }
        },
        "ReportJob": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "run_id": {"type": "string"},
                "format": {"type": "string"},
                "status": {"type": "string"},
                "result_url": {"type": "string"},
                "created_at": {"type": "string"},
                "finished_at": {"type": "string"}
            }
        },
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
