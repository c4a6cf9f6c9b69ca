package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "AHJ Registry API",
        "description": "Registry of Authorities Having Jurisdiction with a moderated edit workflow",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Auth", "description": "Authentication"},
        {"name": "AHJs", "description": "Authority search, detail, and exports"},
        {"name": "Edits", "description": "Edit submission and moderation"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate with email and password",
                "responses": {
                    "200": {"description": "Token issued"},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/ahjs": {
            "get": {
                "tags": ["AHJs"],
                "summary": "Search authorities",
                "parameters": [
                    {"name": "q", "in": "query", "type": "string"},
                    {"name": "state", "in": "query", "type": "string"},
                    {"name": "buildingCode", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "Search page"}
                }
            },
            "post": {
                "tags": ["AHJs"],
                "summary": "Register a new authority (admin)",
                "responses": {
                    "201": {"description": "Created"},
                    "403": {"description": "Forbidden"}
                }
            }
        },
        "/ahjs/{id}": {
            "get": {
                "tags": ["AHJs"],
                "summary": "Get one authority with confirmed child records",
                "parameters": [
                    {"name": "id", "in": "path", "type": "integer", "required": true}
                ],
                "responses": {
                    "200": {"description": "Authority detail"},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/ahjs/{id}/summary.pdf": {
            "get": {
                "tags": ["AHJs"],
                "summary": "Download a one-page PDF info sheet for an authority",
                "produces": ["application/pdf"],
                "parameters": [
                    {"name": "id", "in": "path", "type": "integer", "required": true}
                ],
                "responses": {
                    "200": {"description": "PDF document"},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/ahjs/{id}/edits/export": {
            "get": {
                "tags": ["Edits"],
                "summary": "Download an authority's edit history as CSV",
                "produces": ["text/csv"],
                "parameters": [
                    {"name": "id", "in": "path", "type": "integer", "required": true}
                ],
                "responses": {
                    "200": {"description": "CSV document"}
                }
            }
        },
        "/ahjs/export/csv": {
            "get": {
                "tags": ["AHJs"],
                "summary": "Export matching authorities as CSV",
                "produces": ["text/csv"],
                "responses": {
                    "200": {"description": "CSV document"}
                }
            }
        },
        "/ahjs/export/pdf": {
            "get": {
                "tags": ["AHJs"],
                "summary": "Export matching authorities as PDF",
                "produces": ["application/pdf"],
                "responses": {
                    "200": {"description": "PDF document"}
                }
            }
        },
        "/edits": {
            "get": {
                "tags": ["Edits"],
                "summary": "List ledger entries",
                "parameters": [
                    {"name": "ahjId", "in": "query", "type": "integer"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "sourceTable", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Ledger entries"}
                }
            },
            "post": {
                "tags": ["Edits"],
                "summary": "Submit field-change proposals",
                "responses": {
                    "201": {"description": "Edits recorded"},
                    "400": {"description": "Unknown field or bad payload"}
                }
            }
        },
        "/edits/additions": {
            "post": {
                "tags": ["Edits"],
                "summary": "Propose a new related record",
                "responses": {
                    "201": {"description": "Unconfirmed record and edit created"}
                }
            }
        },
        "/edits/deletions": {
            "post": {
                "tags": ["Edits"],
                "summary": "Propose deactivating related records",
                "responses": {
                    "201": {"description": "Deletion edits recorded"}
                }
            }
        },
        "/edits/{id}/review": {
            "post": {
                "tags": ["Edits"],
                "summary": "Approve or reject an edit",
                "parameters": [
                    {"name": "id", "in": "path", "type": "integer", "required": true}
                ],
                "responses": {
                    "200": {"description": "Decision recorded"},
                    "400": {"description": "Bad decision or missing edit"}
                }
            }
        },
        "/edits/{id}/revert": {
            "post": {
                "tags": ["Edits"],
                "summary": "Undo an edit with a corrective entry",
                "parameters": [
                    {"name": "id", "in": "path", "type": "integer", "required": true}
                ],
                "responses": {
                    "200": {"description": "Corrective entry created"},
                    "204": {"description": "Nothing to undo"}
                }
            }
        },
        "/edits/{id}/reset": {
            "post": {
                "tags": ["Edits"],
                "summary": "Un-approve an edit",
                "parameters": [
                    {"name": "id", "in": "path", "type": "integer", "required": true}
                ],
                "responses": {
                    "200": {"description": "Superseded, corrective entry created"},
                    "204": {"description": "Reset in place"}
                }
            }
        }
    },
    "definitions": {
        "Edit": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "sourceTable": {"type": "string"},
                "sourceRow": {"type": "integer"},
                "sourceColumn": {"type": "string"},
                "reviewStatus": {"type": "string", "enum": ["PENDING", "APPROVED", "REJECTED"]},
                "oldValue": {"type": "string"},
                "newValue": {"type": "string"},
                "editType": {"type": "string", "enum": ["ADDITION", "DELETION", "UPDATE"]},
                "dateRequested": {"type": "string", "format": "date-time"},
                "dateEffective": {"type": "string", "format": "date-time"},
                "isApplied": {"type": "boolean"}
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
                "pagination": {"type": "object"},
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
