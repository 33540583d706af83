// Package docs holds the OpenAPI description served at /swagger.
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
        "/rate": {
            "get": {
                "produces": ["application/json"],
                "tags": ["ratings"],
                "summary": "Score a model",
                "parameters": [
                    {"type": "string", "name": "url", "in": "query", "required": true},
                    {"type": "string", "name": "code_url", "in": "query"},
                    {"type": "string", "name": "dataset_url", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/report.ModelRating"}},
                    "400": {"description": "cannot score"}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["ratings"],
                "summary": "Score a model",
                "parameters": [
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.RateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/report.ModelRating"}},
                    "400": {"description": "cannot score"}
                }
            }
        },
        "/ratings": {
            "get": {
                "produces": ["application/json"],
                "tags": ["ratings"],
                "summary": "Rating history of one model",
                "parameters": [
                    {"type": "string", "name": "model", "in": "query", "required": true},
                    {"type": "integer", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/report.ModelRating"}}}
                }
            }
        },
        "/ratings/top": {
            "get": {
                "produces": ["application/json"],
                "tags": ["ratings"],
                "summary": "Best latest rating per model",
                "parameters": [
                    {"type": "integer", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/report.ModelRating"}}}
                }
            }
        },
        "/ratings/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["ratings"],
                "summary": "Stored rating",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/report.ModelRating"}},
                    "404": {"description": "not found"}
                }
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["ops"],
                "summary": "Service health",
                "responses": {"200": {"description": "OK"}, "503": {"description": "a provider is in emergency"}}
            }
        },
        "/health/services": {
            "get": {
                "produces": ["application/json"],
                "tags": ["ops"],
                "summary": "Provider degradation and pool state",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/metrics": {
            "get": {
                "produces": ["application/json"],
                "tags": ["ops"],
                "summary": "Request, provider and evaluator metrics",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/ratelimit/status": {
            "get": {
                "produces": ["application/json"],
                "tags": ["ops"],
                "summary": "Rate limit status",
                "responses": {"200": {"description": "OK"}}
            }
        }
    },
    "definitions": {
        "types.RateRequest": {
            "type": "object",
            "required": ["url"],
            "properties": {
                "url": {"type": "string"},
                "code_url": {"type": "string"},
                "dataset_url": {"type": "string"}
            }
        },
        "report.ModelRating": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "created_at": {"type": "string"},
                "name": {"type": "string"},
                "category": {"type": "string"},
                "net_score": {"type": "number"},
                "net_score_latency": {"type": "integer"},
                "ramp_up_time": {"type": "number"},
                "ramp_up_time_latency": {"type": "integer"},
                "bus_factor": {"type": "number"},
                "bus_factor_latency": {"type": "integer"},
                "performance_claims": {"type": "number"},
                "performance_claims_latency": {"type": "integer"},
                "license": {"type": "number"},
                "license_latency": {"type": "integer"},
                "size_score": {"type": "object", "additionalProperties": {"type": "number"}},
                "size_score_latency": {"type": "integer"},
                "dataset_and_code_score": {"type": "number"},
                "dataset_and_code_score_latency": {"type": "integer"},
                "dataset_quality": {"type": "number"},
                "dataset_quality_latency": {"type": "integer"},
                "code_quality": {"type": "number"},
                "code_quality_latency": {"type": "integer"},
                "reproducibility": {"type": "number"},
                "reproducibility_latency": {"type": "integer"},
                "reviewedness": {"type": "number"},
                "reviewedness_latency": {"type": "integer"},
                "tree_score": {"type": "number"},
                "tree_score_latency": {"type": "integer"},
                "unavailable": {"type": "array", "items": {"type": "string"}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Model Trust Score API",
	Description:      "Scores registry models on documentation, licensing, maintenance, reproducibility and lineage.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
