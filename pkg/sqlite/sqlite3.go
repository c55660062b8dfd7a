package sqlite

// The engine is compiled from the vendored amalgamation (sqlite3.c/sqlite3.h,
// fetched into this directory by scripts/download-sqlite.sh). Thread safety is
// off: the bridge serializes access per connection and different connections
// never share engine state.

/*
#cgo CFLAGS: -DSQLITE_THREADSAFE=0
#cgo CFLAGS: -DSQLITE_OMIT_LOAD_EXTENSION
#cgo CFLAGS: -DSQLITE_ENABLE_COLUMN_METADATA
#cgo CFLAGS: -DSQLITE_ENABLE_FTS5
#cgo CFLAGS: -DSQLITE_ENABLE_RTREE
#cgo CFLAGS: -DSQLITE_DEFAULT_MEMSTATUS=0
#include "sqlite3.h"
*/
import "C"

var initErr error

func init() {
	if rc := C.sqlite3_initialize(); rc != C.SQLITE_OK {
		initErr = &Error{Code: int(rc), Message: "sqlite initialization failed"}
	}
}

// Version returns the run-time library version string, e.g. "3.46.0".
func Version() string {
	return C.GoString(C.sqlite3_libversion())
}
