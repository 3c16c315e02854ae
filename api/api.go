// Package api embeds the OpenAPI document for the dive trip API.
// It is served by the HTTP server at /openapi.yaml.
package api

import _ "embed"

// OpenAPI contains the raw bytes of openapi.yaml, embedded at compile time.
//
//go:embed openapi.yaml
var OpenAPI []byte
