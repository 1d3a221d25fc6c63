// Package sqlite selects a SQLite driver at build time: pure Go
// (modernc.org/sqlite) by default, CGO (mattn/go-sqlite3) with the
// cgo_sqlite build tag. Use Open instead of sql.Open so the right driver
// name is used under either build.
package sqlite

import "database/sql"

// DriverName returns the registered SQL driver name of the active build.
func DriverName() string {
	return driverName
}

// DriverType returns "purego" or "cgo".
func DriverType() string {
	return driverType
}

// IsCGO reports whether the CGO driver is active.
func IsCGO() bool {
	return driverType == "cgo"
}

// Open opens a SQLite database with the active driver.
func Open(dataSourceName string) (*sql.DB, error) {
	return sql.Open(driverName, dataSourceName)
}

// OpenReadOnly opens a SQLite database in read-only mode.
func OpenReadOnly(path string) (*sql.DB, error) {
	return Open(path + "?mode=ro")
}
