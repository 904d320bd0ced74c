// Package migrations embeds the SQL schema for every supported driver.
// Files live under a directory named after the driver.
package migrations

import "embed"

//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS
