package ui

import "embed"

//go:embed static templates
var Files embed.FS
