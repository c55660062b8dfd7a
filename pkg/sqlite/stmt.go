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
	"strings"
	"unsafe"
)

type stmtState int

const (
	stmtIdle stmtState = iota
	stmtRow
	stmtDone
	stmtPoisoned
)

// Stmt is a prepared statement with a cursor over its result rows. The
// cursor starts idle, moves through rows with Step, and returns to idle on
// Reset. A step that fails poisons the statement: only Finalize is legal
// after that. Bindings survive a reset; ClearBindings zeroes them.
type Stmt struct {
	conn  *Conn
	stmt  *C.sqlite3_stmt
	state stmtState

	nParams int
	cols    []Column
}

// Prepare compiles the first statement in sql. Trailing statements after the
// first are ignored; use Exec for multi-statement scripts.
func (c *Conn) Prepare(sql string) (*Stmt, error) {
	if c.db == nil {
		return nil, ErrClosedConn
	}

	csql := C.CString(sql)
	defer C.free(unsafe.Pointer(csql))

	var stmt *C.sqlite3_stmt
	if rc := C.sqlite3_prepare_v2(c.db, csql, -1, &stmt, nil); rc != C.SQLITE_OK {
		return nil, engineErr(rc, c.db)
	}
	if stmt == nil {
		return nil, fmt.Errorf("sqlite: empty statement")
	}

	s := &Stmt{conn: c, stmt: stmt}
	s.nParams = int(C.sqlite3_bind_parameter_count(stmt))

	// column descriptors are recorded once, at prepare time
	nCols := int(C.sqlite3_column_count(stmt))
	if nCols > 0 {
		s.cols = make([]Column, nCols)
		for i := range s.cols {
			s.cols[i] = Column{
				Name:     goStr(C.sqlite3_column_name(stmt, C.int(i))),
				DeclType: goStr(C.sqlite3_column_decltype(stmt, C.int(i))),
				Table:    goStr(C.sqlite3_column_table_name(stmt, C.int(i))),
			}
		}
	}

	c.stmts[s] = struct{}{}
	runtime.SetFinalizer(s, func(s *Stmt) { s.Finalize() })
	return s, nil
}

// Finalize releases the statement. Idempotent; safe to call in any state.
func (s *Stmt) Finalize() error {
	stmt := s.stmt
	if stmt == nil {
		return nil
	}
	poisoned := s.state == stmtPoisoned
	s.stmt = nil
	s.state = stmtIdle
	runtime.SetFinalizer(s, nil)
	if s.conn.stmts != nil {
		delete(s.conn.stmts, s)
	}
	// after a failed step the engine repeats that step's error here; Step has
	// already returned it, so it is not reported twice
	if rc := C.sqlite3_finalize(stmt); rc != C.SQLITE_OK && !poisoned {
		return engineErr(rc, s.conn.db)
	}
	return nil
}

// Step advances the cursor. It returns true with a row available, false once
// the statement has run to completion. An error poisons the statement.
func (s *Stmt) Step() (bool, error) {
	if s.stmt == nil {
		return false, ErrClosedStmt
	}
	if s.state == stmtPoisoned {
		return false, ErrPoisonedStmt
	}

	switch rc := C.sqlite3_step(s.stmt); rc {
	case C.SQLITE_ROW:
		s.state = stmtRow
		return true, nil
	case C.SQLITE_DONE:
		s.state = stmtDone
		return false, nil
	default:
		s.state = stmtPoisoned
		return false, engineErr(rc, s.conn.db)
	}
}

// Reset returns the cursor to idle so the statement can run again. Bindings
// are kept. A poisoned statement can't be reset, only finalized.
func (s *Stmt) Reset() error {
	if s.stmt == nil {
		return ErrClosedStmt
	}
	if s.state == stmtPoisoned {
		return ErrPoisonedStmt
	}
	s.state = stmtIdle
	if rc := C.sqlite3_reset(s.stmt); rc != C.SQLITE_OK {
		return engineErr(rc, s.conn.db)
	}
	return nil
}

// ClearBindings sets all parameters back to NULL.
func (s *Stmt) ClearBindings() error {
	if s.stmt == nil {
		return ErrClosedStmt
	}
	if rc := C.sqlite3_clear_bindings(s.stmt); rc != C.SQLITE_OK {
		return engineErr(rc, s.conn.db)
	}
	return nil
}

// ParameterCount returns the number of parameters in the statement.
func (s *Stmt) ParameterCount() int { return s.nParams }

// ReadOnly reports whether the statement makes no direct changes to the
// database.
func (s *Stmt) ReadOnly() bool {
	return s.stmt == nil || C.sqlite3_stmt_readonly(s.stmt) != 0
}

// BindIndex resolves a named parameter to its one-based index. The name must
// include its sigil, one of ':', '@' or '$'.
func (s *Stmt) BindIndex(name string) (int, error) {
	if s.stmt == nil {
		return 0, ErrClosedStmt
	}
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	idx := int(C.sqlite3_bind_parameter_index(s.stmt, cname))
	if idx == 0 {
		return 0, &BindError{Param: name, Cause: fmt.Errorf("unknown parameter")}
	}
	return idx, nil
}

// BindNull binds NULL at the one-based index.
func (s *Stmt) BindNull(idx int) error {
	return s.bindCheck(idx, C.sqlite3_bind_null(s.stmt, C.int(idx)))
}

// BindInt binds an integer at the one-based index.
func (s *Stmt) BindInt(idx int, v int64) error {
	return s.bindCheck(idx, C.sqlite3_bind_int64(s.stmt, C.int(idx), C.sqlite3_int64(v)))
}

// BindFloat binds a float at the one-based index.
func (s *Stmt) BindFloat(idx int, v float64) error {
	return s.bindCheck(idx, C.sqlite3_bind_double(s.stmt, C.int(idx), C.double(v)))
}

// BindText binds a text string at the one-based index. The engine keeps its
// own copy.
func (s *Stmt) BindText(idx int, v string) error {
	cs := C.CString(v)
	defer C.free(unsafe.Pointer(cs))
	return s.bindCheck(idx, C.slate_bind_text(s.stmt, C.int(idx), cs, C.int(len(v))))
}

// BindBlob binds a blob at the one-based index. The engine keeps its own
// copy; empty and nil both bind a zero-length blob, not NULL.
func (s *Stmt) BindBlob(idx int, v []byte) error {
	if len(v) == 0 {
		return s.bindCheck(idx, C.slate_bind_blob(s.stmt, C.int(idx), nil, 0))
	}
	return s.bindCheck(idx, C.slate_bind_blob(s.stmt, C.int(idx), unsafe.Pointer(&v[0]), C.int(len(v))))
}

// BindBool binds a boolean as 0 or 1.
func (s *Stmt) BindBool(idx int, v bool) error {
	if v {
		return s.BindInt(idx, 1)
	}
	return s.BindInt(idx, 0)
}

// BindValue binds a Value, dispatching on its type.
func (s *Stmt) BindValue(idx int, v Value) error {
	switch v.typ {
	case TypeNull:
		return s.BindNull(idx)
	case TypeInteger:
		return s.BindInt(idx, v.i)
	case TypeFloat:
		return s.BindFloat(idx, v.f)
	case TypeText:
		return s.BindText(idx, v.s)
	case TypeBlob:
		return s.BindBlob(idx, v.b)
	}
	return &BindError{Index: idx, Cause: fmt.Errorf("invalid value type %d", v.typ)}
}

// BindAny converts a Go value and binds it. See toValue for the supported
// types.
func (s *Stmt) BindAny(idx int, v any) error {
	val, err := toValue(v)
	if err != nil {
		return &BindError{Index: idx, Cause: err}
	}
	return s.BindValue(idx, val)
}

// BindAll binds values by position starting at 1. The number of values must
// match the parameter count.
func (s *Stmt) BindAll(args ...any) error {
	if s.stmt == nil {
		return ErrClosedStmt
	}
	if len(args) != s.nParams {
		return &BindError{Cause: fmt.Errorf("statement has %d parameter(s), %d given", s.nParams, len(args))}
	}
	for i, v := range args {
		if err := s.BindAny(i+1, v); err != nil {
			return err
		}
	}
	return nil
}

// BindAllNamed binds a set of named parameters. Every name must resolve;
// parameters not in the map keep their current binding.
func (s *Stmt) BindAllNamed(args map[string]any) error {
	if s.stmt == nil {
		return ErrClosedStmt
	}
	for name, v := range args {
		idx, err := s.BindIndex(name)
		if err != nil {
			return err
		}
		if err = s.BindAny(idx, v); err != nil {
			return &BindError{Param: name, Cause: err}
		}
	}
	return nil
}

func (s *Stmt) bindCheck(idx int, rc C.int) error {
	if s.stmt == nil {
		return ErrClosedStmt
	}
	if rc != C.SQLITE_OK {
		return &BindError{Index: idx, Cause: engineErr(rc, s.conn.db)}
	}
	return nil
}

// ColumnCount returns the number of columns the statement produces.
func (s *Stmt) ColumnCount() int { return len(s.cols) }

// ColumnName returns the name of the zero-based column as the engine
// reported it at prepare time.
func (s *Stmt) ColumnName(i int) (string, error) {
	if i < 0 || i >= len(s.cols) {
		return "", &ColumnError{Index: i}
	}
	return s.cols[i].Name, nil
}

// Columns returns the column descriptors recorded at prepare time.
func (s *Stmt) Columns() []Column { return s.cols }

// ColumnValue reads the zero-based column of the current row. The returned
// Value owns its bytes and stays valid after the next step or reset.
func (s *Stmt) ColumnValue(i int) (Value, error) {
	if s.stmt == nil {
		return Null(), ErrClosedStmt
	}
	if s.state != stmtRow {
		return Null(), fmt.Errorf("sqlite: no row available")
	}
	if i < 0 || i >= len(s.cols) {
		return Null(), &ColumnError{Index: i}
	}
	return s.columnValue(i), nil
}

// columnValue copies cell i of the current row out of engine memory.
func (s *Stmt) columnValue(i int) Value {
	ci := C.int(i)
	switch C.sqlite3_column_type(s.stmt, ci) {
	case C.SQLITE_INTEGER:
		return Integer(int64(C.sqlite3_column_int64(s.stmt, ci)))
	case C.SQLITE_FLOAT:
		return Float(float64(C.sqlite3_column_double(s.stmt, ci)))
	case C.SQLITE_TEXT:
		p := C.sqlite3_column_text(s.stmt, ci)
		n := C.sqlite3_column_bytes(s.stmt, ci)
		if n == 0 {
			return Text("")
		}
		return Text(C.GoStringN((*C.char)(unsafe.Pointer(p)), n))
	case C.SQLITE_BLOB:
		p := C.sqlite3_column_blob(s.stmt, ci)
		n := C.sqlite3_column_bytes(s.stmt, ci)
		if n == 0 {
			return Blob([]byte{})
		}
		return Blob(C.GoBytes(p, n))
	}
	return Null()
}

// currentRow copies the whole current row; cols are shared with the
// statement, values are owned by the row.
func (s *Stmt) currentRow() Row {
	vals := make([]Value, len(s.cols))
	for i := range vals {
		vals[i] = s.columnValue(i)
	}
	return Row{cols: s.cols, values: vals}
}

// ColumnMetadata returns the origin of the zero-based result column. All
// fields are empty for expression and literal columns.
func (s *Stmt) ColumnMetadata(i int) (ColumnMetadata, error) {
	if s.stmt == nil {
		return ColumnMetadata{}, ErrClosedStmt
	}
	if i < 0 || i >= len(s.cols) {
		return ColumnMetadata{}, &ColumnError{Index: i}
	}
	ci := C.int(i)
	return ColumnMetadata{
		Database: goStr(C.sqlite3_column_database_name(s.stmt, ci)),
		Table:    goStr(C.sqlite3_column_table_name(s.stmt, ci)),
		Origin:   goStr(C.sqlite3_column_origin_name(s.stmt, ci)),
	}, nil
}

// SQL returns the text the statement was prepared from.
func (s *Stmt) SQL() string {
	if s.stmt == nil {
		return ""
	}
	return C.GoString(C.sqlite3_sql(s.stmt))
}

// normName folds an identifier for case-insensitive lookup. Column names in
// SQL are ASCII in practice, so ASCII folding is enough.
func normName(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return r
	}, s)
}
