// Package api carries the service's OpenAPI description.
package api

import _ "embed"

//go:embed openapi.yaml
var OpenAPISpec []byte
