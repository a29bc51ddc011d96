// Package api embeds the OpenAPI description served at /openapi.json.
package api

import _ "embed"

//go:embed openapi.yaml
var OpenAPISpec []byte
