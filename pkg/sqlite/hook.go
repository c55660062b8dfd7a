package sqlite

/*
#include "sqlite3.h"
#include "shim.h"
*/
import "C"

import (
	"unsafe"

	"github.com/go-pkgz/lgr"
	pointer "github.com/mattn/go-pointer"
)

// HookOp is the kind of row change an update hook observed.
type HookOp int

// update-hook opcodes
const (
	OpInsert HookOp = iota
	OpUpdate
	OpDelete
)

func (op HookOp) String() string {
	switch op {
	case OpInsert:
		return "insert"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	}
	return "unknown"
}

// UpdateHookFunc observes committed row changes. It runs synchronously
// during the change, in row-modification order, and must not run SQL on the
// same connection.
type UpdateHookFunc func(op HookOp, table string, rowid int64)

type hookContext struct {
	fn UpdateHookFunc
}

// SetUpdateHook installs fn as the connection's update hook, replacing and
// releasing any previous one. The hook slot is per connection and holds a
// single callback.
func (c *Conn) SetUpdateHook(fn UpdateHookFunc) error {
	if c.db == nil {
		return ErrClosedConn
	}
	if fn == nil {
		c.ClearUpdateHook()
		return nil
	}
	app := pointer.Save(&hookContext{fn: fn})
	prev := C.slate_set_update_hook(c.db, app)
	if prev != nil {
		pointer.Unref(prev)
	}
	c.hookCtx = app
	return nil
}

// ClearUpdateHook removes the update hook, releasing its context.
func (c *Conn) ClearUpdateHook() {
	if c.db == nil {
		c.unrefHook()
		return
	}
	prev := C.slate_set_update_hook(c.db, nil)
	if prev != nil {
		pointer.Unref(prev)
	}
	c.hookCtx = nil
}

//export goUpdateHookTramp
func goUpdateHookTramp(app unsafe.Pointer, op C.int, dbName, tblName *C.char, rowid C.sqlite3_int64) {
	hc, ok := pointer.Restore(app).(*hookContext)
	if !ok || hc.fn == nil {
		return
	}

	var hop HookOp
	switch op {
	case C.SQLITE_INSERT:
		hop = OpInsert
	case C.SQLITE_UPDATE:
		hop = OpUpdate
	case C.SQLITE_DELETE:
		hop = OpDelete
	default:
		return
	}

	// the engine accepts no error from a hook; a panicking callback is
	// recovered, logged and swallowed
	defer func() {
		if p := recover(); p != nil {
			lgr.Printf("[WARN] update hook panicked on %s %s rowid %d: %v", hop, goStr(tblName), int64(rowid), p)
		}
	}()
	hc.fn(hop, goStr(tblName), int64(rowid))
}
