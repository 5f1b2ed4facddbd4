// Package companion holds the files shared by every edition binary.
package companion

import "embed"

// Assets is the status page served in the companion window.
//
//go:embed all:frontend/dist
var Assets embed.FS
