// Package web carries the built chat UI bundle served by the daemon.
package web

import "embed"

// Dist holds the production build output. Asset file names are
// content-addressed by the bundler; manifest.json maps entry points to
// the hashed names.
//
//go:embed dist
var Dist embed.FS
