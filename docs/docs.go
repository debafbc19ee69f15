// Package docs registers the OpenAPI document served at /openapi.json.
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
        "/api/predict": {
            "get": {
                "produces": ["text/plain"],
                "summary": "接口状态说明",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "string"}}
                }
            },
            "post": {
                "consumes": ["application/octet-stream"],
                "produces": ["application/json", "text/plain"],
                "summary": "识别图片中的交通标志",
                "parameters": [
                    {
                        "description": "原始图片字节",
                        "name": "image",
                        "in": "body",
                        "required": true,
                        "schema": {"type": "string", "format": "binary"}
                    },
                    {
                        "type": "string",
                        "description": "可选请求ID，原样回传",
                        "name": "X-Request-ID",
                        "in": "header"
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/prediction.Result"}},
                    "400": {"description": "Please pass image data in the request body", "schema": {"type": "string"}},
                    "413": {"description": "Request body too large", "schema": {"type": "string"}},
                    "500": {"description": "Configuration missing or prediction failed", "schema": {"type": "string"}}
                }
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "summary": "健康检查",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/httptransport.APIResponse"}}
                }
            }
        }
    },
    "definitions": {
        "prediction.Result": {
            "type": "object",
            "properties": {
                "sign": {"type": "string"},
                "confidence": {"type": "number"}
            }
        },
        "httptransport.APIResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "data": {},
                "message": {"type": "string"},
                "code": {"type": "integer"}
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
	Title:            "Prediction Relay API",
	Description:      "Forwards raw image bytes to a hosted classifier and returns the top label.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
