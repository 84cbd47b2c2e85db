package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "School Archive API",
        "description": "Term archive, analytics and restore service",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Archives", "description": "Term snapshots, records and analytics"},
        {"name": "Restore", "description": "Copy an archived term into a target term"}
    ],
    "paths": {
        "/archives": {
            "get": {
                "tags": ["Archives"],
                "summary": "List archives or fetch one archive's records",
                "parameters": [
                    {"name": "archiveId", "in": "query", "type": "string"},
                    {"name": "term", "in": "query", "type": "string"},
                    {"name": "year", "in": "query", "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "offset", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}},
                    "404": {"description": "Archive not found", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            },
            "post": {
                "tags": ["Archives"],
                "summary": "Archive a term",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateArchiveRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/Envelope"}},
                    "400": {"description": "Validation failed or no data to archive", "schema": {"$ref": "#/definitions/Envelope"}},
                    "409": {"description": "Archive already exists", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            },
            "delete": {
                "tags": ["Archives"],
                "summary": "Delete an archive marker, keeping its records",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Deleted", "schema": {"$ref": "#/definitions/Envelope"}},
                    "404": {"description": "Archive not found", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/archives/{id}": {
            "delete": {
                "tags": ["Archives"],
                "summary": "Delete an archive marker by path",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Deleted", "schema": {"$ref": "#/definitions/Envelope"}},
                    "404": {"description": "Archive not found", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/archives/{id}/analytics": {
            "get": {
                "tags": ["Archives"],
                "summary": "Analyse one archive's marks",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}},
                    "404": {"description": "Archive not found", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/archives/compare": {
            "get": {
                "tags": ["Archives"],
                "summary": "Compare analytics of several archives",
                "parameters": [
                    {"name": "ids", "in": "query", "required": true, "type": "string", "description": "Comma separated archive IDs"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}},
                    "400": {"description": "Too few or too many ids", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/restore-archive": {
            "post": {
                "tags": ["Restore"],
                "summary": "Restore an archive into a target term",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RestoreArchiveRequest"}}
                ],
                "responses": {
                    "200": {"description": "Restored", "schema": {"$ref": "#/definitions/Envelope"}},
                    "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/Envelope"}},
                    "404": {"description": "Archive not found", "schema": {"$ref": "#/definitions/Envelope"}},
                    "412": {"description": "Destructive restore needs confirm=true", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/restore-archive/preview": {
            "post": {
                "tags": ["Restore"],
                "summary": "Preview a restore without writing",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RestoreArchiveRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        }
    },
    "definitions": {
        "CreateArchiveRequest": {
            "type": "object",
            "required": ["term", "academicYear"],
            "properties": {
                "term": {"type": "string", "example": "First Term"},
                "academicYear": {"type": "string", "example": "2024/2025"},
                "archivedBy": {"type": "string"},
                "metadata": {"type": "object"}
            }
        },
        "RestoreArchiveRequest": {
            "type": "object",
            "required": ["archiveId", "targetTerm", "targetYear"],
            "properties": {
                "archiveId": {"type": "string"},
                "targetTerm": {"type": "string", "example": "First Term"},
                "targetYear": {"type": "string", "example": "2025/2026"},
                "overwriteMode": {"type": "string", "enum": ["merge", "replace", "skip"]},
                "confirm": {"type": "boolean"}
            }
        },
        "Envelope": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "code": {"type": "string"},
                "message": {"type": "string"},
                "note": {"type": "string"},
                "data": {"type": "object"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "limit": {"type": "integer"},
                "offset": {"type": "integer"},
                "totalCount": {"type": "integer"},
                "hasMore": {"type": "boolean"}
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
