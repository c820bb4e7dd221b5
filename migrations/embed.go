// Package migrations embeds the goose schema migrations so the binary can
// bring up its own schema without shipping separate SQL files.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
