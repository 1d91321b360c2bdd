// Package api embeds the OpenAPI description served at /openapi.json.
package api

import _ "embed"

// OpenAPISpec is the raw YAML OpenAPI document.
//
//go:embed openapi.yaml
var OpenAPISpec []byte
