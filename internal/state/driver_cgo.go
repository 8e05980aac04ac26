//go:build cgo

package state

// The cgo driver registers as "sqlite3" and is selected with state.driver.
import _ "github.com/mattn/go-sqlite3"
