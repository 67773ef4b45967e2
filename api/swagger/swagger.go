package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SPCC Timetable API",
        "description": "Timetable generation, conflict detection and workload balancing.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Timetable", "description": "Generation, rebalancing and verification"}
    ],
    "paths": {
        "/timetables/generate": {
            "post": {
                "tags": ["Timetable"],
                "summary": "Generate the timetable of a period",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateTimetableRequest"}}
                ],
                "responses": {
                    "200": {"description": "Generation report", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid payload or configuration", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Period locked by another run", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/generate/async": {
            "post": {
                "tags": ["Timetable"],
                "summary": "Queue a timetable generation",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateTimetableRequest"}}
                ],
                "responses": {
                    "202": {"description": "Job queued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Async generation disabled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/jobs/{id}": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Get an async generation job",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Job status", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown job", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/rebalance": {
            "post": {
                "tags": ["Timetable"],
                "summary": "Rebalance professor workload for a period",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RebalanceRequest"}}
                ],
                "responses": {
                    "200": {"description": "Rebalance report", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/workload": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Professor workload report",
                "parameters": [
                    {"name": "schoolYear", "in": "query", "required": true, "type": "string"},
                    {"name": "term", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Workload report", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/runs": {
            "get": {
                "tags": ["Timetable"],
                "summary": "List generation runs for a period",
                "parameters": [
                    {"name": "schoolYear", "in": "query", "required": true, "type": "string"},
                    {"name": "term", "in": "query", "required": true, "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "Runs, newest first", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/verify": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Re-check the stored timetable of a period",
                "parameters": [
                    {"name": "schoolYear", "in": "query", "required": true, "type": "string"},
                    {"name": "term", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Invariant violations", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "FixedBlockRequest": {
            "type": "object",
            "required": ["label", "startTime", "endTime"],
            "properties": {
                "label": {"type": "string"},
                "startTime": {"type": "string", "example": "07:00"},
                "endTime": {"type": "string", "example": "07:30"}
            }
        },
        "GenerateTimetableRequest": {
            "type": "object",
            "required": ["schoolYear", "term"],
            "properties": {
                "schoolYear": {"type": "string", "example": "2024-2025"},
                "term": {"type": "string", "example": "1st"},
                "days": {"type": "array", "items": {"type": "string"}},
                "startTime": {"type": "string"},
                "endTime": {"type": "string"},
                "slotMinutes": {"type": "integer"},
                "lunchStart": {"type": "string"},
                "lunchEnd": {"type": "string"},
                "maxSectionPerDay": {"type": "integer"},
                "maxProfessorPerDay": {"type": "integer"},
                "subjectWeeklyCapMinutes": {"type": "integer"},
                "professorWeeklyCap": {"type": "integer"},
                "seedMode": {"type": "string", "enum": ["derive", "explicit"]},
                "insertFixedBlocks": {"type": "boolean"},
                "fixedBlocks": {"type": "array", "items": {"$ref": "#/definitions/FixedBlockRequest"}},
                "replaceExisting": {"type": "boolean"},
                "runBalancer": {"type": "boolean"},
                "tieBreak": {"type": "string", "enum": ["deterministic", "weighted"]},
                "seed": {"type": "integer"}
            }
        },
        "RebalanceRequest": {
            "type": "object",
            "required": ["schoolYear", "term"],
            "properties": {
                "schoolYear": {"type": "string"},
                "term": {"type": "string"},
                "maxHours": {"type": "number"},
                "maxSubjects": {"type": "integer"},
                "targetHours": {"type": "number"}
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
