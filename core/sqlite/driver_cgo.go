//go:build cgo_sqlite

// CGO SQLite driver. Build with: go build -tags cgo_sqlite (requires CGO_ENABLED=1).
package sqlite

import (
	_ "github.com/mattn/go-sqlite3" // registers "sqlite3"
)

const (
	driverName    = "sqlite3"
	driverType    = "cgo"
	driverPackage = "github.com/mattn/go-sqlite3"
)
