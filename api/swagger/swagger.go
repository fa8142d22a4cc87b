package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Cert Hours API",
        "description": "Asynchronous certificate processing and activity-hours credit",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Students", "description": "Student registry and statements"},
        {"name": "Certificates", "description": "Certificate intake and status"},
        {"name": "Coordinator", "description": "Human review queue"}
    ],
    "paths": {
        "/students": {
            "post": {
                "tags": ["Students"],
                "summary": "Register a student",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RegisterStudentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Enrollment already registered"}
                }
            }
        },
        "/students/{enrollment}": {
            "get": {
                "tags": ["Students"],
                "summary": "Student profile and approved-hours total",
                "parameters": [
                    {"name": "enrollment", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            },
            "put": {
                "tags": ["Students"],
                "summary": "Update a student's profile",
                "parameters": [
                    {"name": "enrollment", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateStudentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/students/{enrollment}/submissions": {
            "get": {
                "tags": ["Students"],
                "summary": "List a student's submissions",
                "parameters": [
                    {"name": "enrollment", "in": "path", "required": true, "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer", "default": 50}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{enrollment}/statement.csv": {
            "get": {
                "tags": ["Students"],
                "summary": "Approved-hours statement as CSV",
                "produces": ["text/csv"],
                "parameters": [
                    {"name": "enrollment", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "CSV file"},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/students/{enrollment}/statement.pdf": {
            "get": {
                "tags": ["Students"],
                "summary": "Approved-hours statement as PDF",
                "produces": ["application/pdf"],
                "parameters": [
                    {"name": "enrollment", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "PDF file"},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/certificates": {
            "post": {
                "tags": ["Certificates"],
                "summary": "Submit a certificate for processing",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "enrollment_number", "in": "formData", "required": true, "type": "string"},
                    {"name": "file", "in": "formData", "required": true, "type": "file"}
                ],
                "responses": {
                    "202": {"description": "Queued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Duplicate submission"}
                }
            }
        },
        "/certificates/{id}": {
            "get": {
                "tags": ["Certificates"],
                "summary": "Submission processing status",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/files/{token}": {
            "get": {
                "tags": ["Certificates"],
                "summary": "Download the original certificate file",
                "produces": ["application/octet-stream"],
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File"},
                    "404": {"description": "Invalid or expired link"}
                }
            }
        },
        "/coordinator/pending": {
            "get": {
                "tags": ["Coordinator"],
                "summary": "Submissions awaiting review",
                "parameters": [
                    {"name": "page", "in": "query", "type": "integer", "default": 1},
                    {"name": "pageSize", "in": "query", "type": "integer", "default": 20},
                    {"name": "enrollment", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/coordinator/submissions/{id}": {
            "get": {
                "tags": ["Coordinator"],
                "summary": "Full extraction detail for one submission",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/coordinator/submissions/{id}/approve": {
            "post": {
                "tags": ["Coordinator"],
                "summary": "Approve a pending submission",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ApproveRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already reviewed"}
                }
            }
        },
        "/coordinator/submissions/{id}/reject": {
            "post": {
                "tags": ["Coordinator"],
                "summary": "Reject a pending submission",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RejectRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already reviewed"}
                }
            }
        },
        "/coordinator/submissions/{id}/override": {
            "post": {
                "tags": ["Coordinator"],
                "summary": "Approve with a corrected category or hours",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/OverrideRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already reviewed"}
                }
            }
        }
    },
    "definitions": {
        "RegisterStudentRequest": {
            "type": "object",
            "required": ["enrollment_number", "name", "email"],
            "properties": {
                "enrollment_number": {"type": "string"},
                "name": {"type": "string"},
                "email": {"type": "string"}
            }
        },
        "UpdateStudentRequest": {
            "type": "object",
            "required": ["name", "email"],
            "properties": {
                "name": {"type": "string"},
                "email": {"type": "string"}
            }
        },
        "ApproveRequest": {
            "type": "object",
            "required": ["coordinator_id"],
            "properties": {
                "coordinator_id": {"type": "string"},
                "comments": {"type": "string"},
                "hours": {"type": "integer"}
            }
        },
        "RejectRequest": {
            "type": "object",
            "required": ["coordinator_id", "reason"],
            "properties": {
                "coordinator_id": {"type": "string"},
                "reason": {"type": "string"}
            }
        },
        "OverrideRequest": {
            "type": "object",
            "required": ["coordinator_id", "rationale"],
            "properties": {
                "coordinator_id": {"type": "string"},
                "category_id": {"type": "string"},
                "hours": {"type": "integer"},
                "rationale": {"type": "string"}
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
