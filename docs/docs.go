// Package docs holds the OpenAPI description of the run API served under /swagger.
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
        "/runs": {
            "get": {
                "description": "Get a list of all runs with their current status",
                "produces": ["application/json"],
                "tags": ["runs"],
                "summary": "List all runs",
                "responses": {
                    "200": {"description": "List of runs", "schema": {"type": "array", "items": {"$ref": "#/definitions/store.RunRecord"}}},
                    "500": {"description": "Internal server error", "schema": {"type": "object", "additionalProperties": true}}
                }
            },
            "post": {
                "description": "Start an analysis run over a delivery report CSV",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["runs"],
                "summary": "Create a new run",
                "parameters": [
                    {"description": "Run options", "name": "run", "in": "body", "schema": {"$ref": "#/definitions/handler.CreateRunRequest"}}
                ],
                "responses": {
                    "200": {"description": "Run created successfully", "schema": {"type": "object", "additionalProperties": true}},
                    "400": {"description": "Invalid request payload", "schema": {"type": "object", "additionalProperties": true}},
                    "500": {"description": "Internal server error", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/runs/{id}": {
            "get": {
                "description": "Retrieve a run's spec, status and, once completed, its report",
                "produces": ["application/json"],
                "tags": ["runs"],
                "summary": "Get run",
                "parameters": [{"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "Run details", "schema": {"type": "object", "additionalProperties": true}},
                    "404": {"description": "Run not found", "schema": {"type": "object", "additionalProperties": true}}
                }
            },
            "delete": {
                "description": "Delete a run, its stored results and its output files",
                "produces": ["application/json"],
                "tags": ["runs"],
                "summary": "Delete run",
                "parameters": [{"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "Run deleted", "schema": {"type": "object", "additionalProperties": true}},
                    "404": {"description": "Run not found", "schema": {"type": "object", "additionalProperties": true}},
                    "409": {"description": "Run still in flight", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/runs/{id}/cancel": {
            "patch": {
                "description": "Cancel a pending or running run and report the status it settled in",
                "produces": ["application/json"],
                "tags": ["runs"],
                "summary": "Cancel run",
                "parameters": [{"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "Run cancelled", "schema": {"type": "object", "additionalProperties": true}},
                    "202": {"description": "Cancellation requested, run still stopping", "schema": {"type": "object", "additionalProperties": true}},
                    "404": {"description": "Run not found", "schema": {"type": "object", "additionalProperties": true}},
                    "409": {"description": "Run already finished", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/runs/{id}/comparison": {
            "get": {
                "description": "Retrieve pre vs post decline metrics of a run",
                "produces": ["application/json"],
                "tags": ["results"],
                "summary": "Get comparison table",
                "parameters": [{"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "Comparison rows", "schema": {"type": "object", "additionalProperties": true}}}
            }
        },
        "/runs/{id}/coefficients": {
            "get": {
                "description": "Retrieve regression coefficients of a run, optionally for one model",
                "produces": ["application/json"],
                "tags": ["results"],
                "summary": "Get coefficients",
                "parameters": [
                    {"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true},
                    {"type": "string", "description": "Model name (daily_trend, daily_trend_break, row_level)", "name": "model", "in": "query"}
                ],
                "responses": {"200": {"description": "Coefficients keyed by model", "schema": {"type": "object", "additionalProperties": true}}}
            }
        },
        "/runs/{id}/errors": {
            "get": {
                "description": "Retrieve errors recorded while a run executed",
                "produces": ["application/json"],
                "tags": ["runs"],
                "summary": "Get run errors",
                "parameters": [{"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "Run errors", "schema": {"type": "object", "additionalProperties": true}}}
            }
        },
        "/runs/{id}/progress": {
            "get": {
                "description": "Retrieve per-stage status, record counts and durations",
                "produces": ["application/json"],
                "tags": ["runs"],
                "summary": "Get run progress",
                "parameters": [{"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "Stage progress", "schema": {"type": "object", "additionalProperties": true}}}
            }
        },
        "/runs/{id}/files": {
            "get": {
                "description": "List output files of a run with download URLs",
                "produces": ["application/json"],
                "tags": ["files"],
                "summary": "List run files",
                "parameters": [{"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "Run files", "schema": {"type": "object", "additionalProperties": true}}}
            }
        },
        "/download/{runID}/{filename}": {
            "get": {
                "description": "Download a specific output file of a run",
                "produces": ["application/octet-stream"],
                "tags": ["files"],
                "summary": "Download file",
                "parameters": [
                    {"type": "string", "description": "Run ID", "name": "runID", "in": "path", "required": true},
                    {"type": "string", "description": "File name", "name": "filename", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "File download", "schema": {"type": "file"}},
                    "404": {"description": "File not found", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        }
    },
    "definitions": {
        "handler.CreateRunRequest": {
            "type": "object",
            "properties": {
                "input": {"type": "string"},
                "charts": {"type": "boolean"},
                "validation": {"$ref": "#/definitions/model.Validation"}
            }
        },
        "model.Validation": {
            "type": "object",
            "properties": {
                "carriers": {"type": "array", "items": {"type": "string"}},
                "segments": {"type": "array", "items": {"type": "string"}}
            }
        },
        "store.RunRecord": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "status": {"type": "string"},
                "createdAt": {"type": "string"},
                "updatedAt": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "SMS Revenue Decline Analysis API",
	Description:      "Runs the pre/post decline analysis of an SMS delivery report and serves its results.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
