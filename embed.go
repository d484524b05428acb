package run5k

import "embed"

// WebFS holds the built frontend.
//
//go:embed web/dist
var WebFS embed.FS
