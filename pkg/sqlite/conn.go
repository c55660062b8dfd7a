package sqlite

/*
#include "sqlite3.h"
#include "shim.h"
#include <stdlib.h>
*/
import "C"

import (
	"fmt"
	"runtime"
	"time"
	"unsafe"

	"github.com/go-pkgz/lgr"
	"github.com/hashicorp/go-multierror"
	pointer "github.com/mattn/go-pointer"
)

// Conn is a single database connection. A Conn is not safe for concurrent
// use; serialize access or open one connection per goroutine. Interrupt is
// the one exception and may be called from any goroutine.
type Conn struct {
	db   *C.sqlite3
	path string

	stmts   map[*Stmt]struct{} // outstanding prepared statements
	hookCtx unsafe.Pointer     // current update-hook context, single slot
	modules map[string]struct{}
}

// Open opens (creating if needed) a database file.
func Open(path string) (*Conn, error) {
	return open(path)
}

// OpenMemory opens a fresh private in-memory database.
func OpenMemory() (*Conn, error) {
	return open(":memory:")
}

func open(path string) (*Conn, error) {
	if initErr != nil {
		return nil, initErr
	}

	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))

	var db *C.sqlite3
	rc := C.sqlite3_open_v2(cpath, &db, C.SQLITE_OPEN_READWRITE|C.SQLITE_OPEN_CREATE, nil)
	if rc != C.SQLITE_OK {
		err := engineErr(rc, db)
		C.sqlite3_close_v2(db)
		return nil, fmt.Errorf("can't open database %q: %w", path, err)
	}

	c := &Conn{db: db, path: path, stmts: map[*Stmt]struct{}{}, modules: map[string]struct{}{}}
	C.sqlite3_extended_result_codes(db, 1)
	runtime.SetFinalizer(c, func(c *Conn) { c.finalize() })
	return c, nil
}

// finalize is the GC fallback for a connection that was never closed.
func (c *Conn) finalize() {
	if c.db != nil {
		lgr.Printf("[WARN] connection to %q collected without close", c.path)
		C.sqlite3_close_v2(c.db)
		c.db = nil
	}
}

// Close finalizes all outstanding statements and releases the connection.
// Close is idempotent; any operation after it fails with ErrClosedConn.
// Statement-finalize failures are collected but do not stop the close.
func (c *Conn) Close() error {
	if c.db == nil {
		return nil
	}

	var result error
	for s := range c.stmts {
		if err := s.Finalize(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	c.stmts = nil

	c.ClearUpdateHook()

	db := c.db
	c.db = nil
	runtime.SetFinalizer(c, nil)
	// close-v2 defers teardown while blob or backup handles are outstanding,
	// so finalization order of child handles can't fail the close
	if rc := C.sqlite3_close_v2(db); rc != C.SQLITE_OK {
		result = multierror.Append(result, engineErr(rc, db))
	}
	return result
}

// Exec runs one or more SQL statements, discarding any rows they produce.
// Intended for DDL and for DML whose results are not needed.
func (c *Conn) Exec(sql string) error {
	if c.db == nil {
		return ErrClosedConn
	}
	csql := C.CString(sql)
	defer C.free(unsafe.Pointer(csql))
	if rc := C.sqlite3_exec(c.db, csql, nil, nil, nil); rc != C.SQLITE_OK {
		return engineErr(rc, c.db)
	}
	return nil
}

// Query prepares the first statement in sql, reads all rows into memory and
// finalizes the statement. Rows carry the column descriptors recorded at
// prepare time and stay valid after the call.
func (c *Conn) Query(sql string, args ...any) ([]Row, error) {
	if c.db == nil {
		return nil, ErrClosedConn
	}
	s, err := c.Prepare(sql)
	if err != nil {
		return nil, err
	}
	defer s.Finalize() //nolint:errcheck // statement is consumed, finalize error is not actionable

	if len(args) > 0 {
		if err = s.BindAll(args...); err != nil {
			return nil, err
		}
	}

	var rows []Row
	for {
		more, err := s.Step()
		if err != nil {
			return nil, err
		}
		if !more {
			return rows, nil
		}
		rows = append(rows, s.currentRow())
	}
}

// QueryOne runs the query and returns its first row, or nil if the query
// produced no rows. Remaining rows are ignored.
func (c *Conn) QueryOne(sql string, args ...any) (*Row, error) {
	if c.db == nil {
		return nil, ErrClosedConn
	}
	s, err := c.Prepare(sql)
	if err != nil {
		return nil, err
	}
	defer s.Finalize() //nolint:errcheck // statement is consumed, finalize error is not actionable

	if len(args) > 0 {
		if err = s.BindAll(args...); err != nil {
			return nil, err
		}
	}

	more, err := s.Step()
	if err != nil {
		return nil, err
	}
	if !more {
		return nil, nil
	}
	row := s.currentRow()
	return &row, nil
}

// LastInsertRowID returns the rowid of the most recent successful INSERT.
func (c *Conn) LastInsertRowID() int64 {
	if c.db == nil {
		return 0
	}
	return int64(C.sqlite3_last_insert_rowid(c.db))
}

// Changes returns the number of rows changed by the most recent statement.
func (c *Conn) Changes() int64 {
	if c.db == nil {
		return 0
	}
	return int64(C.sqlite3_changes64(c.db))
}

// TotalChanges returns the number of rows changed since the connection
// opened.
func (c *Conn) TotalChanges() int64 {
	if c.db == nil {
		return 0
	}
	return int64(C.sqlite3_total_changes64(c.db))
}

// BusyTimeout sets how long the engine waits on a locked table before
// returning a busy error. Zero or negative disables the wait.
func (c *Conn) BusyTimeout(d time.Duration) error {
	if c.db == nil {
		return ErrClosedConn
	}
	if rc := C.sqlite3_busy_timeout(c.db, C.int(d/time.Millisecond)); rc != C.SQLITE_OK {
		return engineErr(rc, c.db)
	}
	return nil
}

// Interrupt makes any in-flight operation on this connection abort at its
// next safe point with ErrInterrupted. Safe to call from another goroutine
// as long as the connection outlives the call.
func (c *Conn) Interrupt() {
	if c.db != nil {
		C.sqlite3_interrupt(c.db)
	}
}

// IsInterrupted reports whether an interrupt is pending.
func (c *Conn) IsInterrupted() bool {
	if c.db == nil {
		return false
	}
	return C.sqlite3_is_interrupted(c.db) != 0
}

// AutoCommit reports whether the connection is outside an explicit
// transaction.
func (c *Conn) AutoCommit() bool {
	if c.db == nil {
		return false
	}
	return C.sqlite3_get_autocommit(c.db) != 0
}

// Filename returns the file path backing the given schema, or an empty
// string for in-memory and temporary databases.
func (c *Conn) Filename(schema string) string {
	if c.db == nil {
		return ""
	}
	cs := C.CString(schema)
	defer C.free(unsafe.Pointer(cs))
	if p := C.sqlite3_db_filename(c.db, cs); p != nil {
		return C.GoString(p)
	}
	return ""
}

// ErrCode returns the extended result code of the most recent failed engine
// call on this connection.
func (c *Conn) ErrCode() int {
	if c.db == nil {
		return 0
	}
	return int(C.sqlite3_extended_errcode(c.db))
}

// ErrMsg returns the printable message of the most recent engine error.
func (c *Conn) ErrMsg() string {
	if c.db == nil {
		return ""
	}
	return C.GoString(C.sqlite3_errmsg(c.db))
}

// unrefHook releases the connection's current update-hook context, if any.
func (c *Conn) unrefHook() {
	if c.hookCtx != nil {
		pointer.Unref(c.hookCtx)
		c.hookCtx = nil
	}
}
