// Package contracts embeds the published OpenAPI documents.
package contracts

import _ "embed"

// Scheduling describes the stall and shift routes under /api/v1.
//
//go:embed openapi.yaml
var Scheduling []byte
