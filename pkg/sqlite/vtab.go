package sqlite

/*
#include "sqlite3.h"
#include "shim.h"
#include <stdlib.h>
*/
import "C"

import (
	"fmt"
	"strings"
	"unsafe"

	pointer "github.com/mattn/go-pointer"
)

// ColumnDef is one column of a virtual table's schema. Hidden columns are
// usable as function-style arguments but don't show up in SELECT *.
type ColumnDef struct {
	Name   string
	Type   string
	Hidden bool
}

// ConstraintOp is the operator of one WHERE constraint handed to BestIndex.
type ConstraintOp int

// constraint operators
const (
	OpEQ    = ConstraintOp(C.SQLITE_INDEX_CONSTRAINT_EQ)
	OpGT    = ConstraintOp(C.SQLITE_INDEX_CONSTRAINT_GT)
	OpLE    = ConstraintOp(C.SQLITE_INDEX_CONSTRAINT_LE)
	OpLT    = ConstraintOp(C.SQLITE_INDEX_CONSTRAINT_LT)
	OpGE    = ConstraintOp(C.SQLITE_INDEX_CONSTRAINT_GE)
	OpMatch = ConstraintOp(C.SQLITE_INDEX_CONSTRAINT_MATCH)
	OpLike  = ConstraintOp(C.SQLITE_INDEX_CONSTRAINT_LIKE)
	OpGlob  = ConstraintOp(C.SQLITE_INDEX_CONSTRAINT_GLOB)
	OpNE    = ConstraintOp(C.SQLITE_INDEX_CONSTRAINT_NE)
)

// IndexConstraint is one WHERE-clause constraint on a virtual table; Column
// is -1 for a rowid constraint.
type IndexConstraint struct {
	Column int
	Op     ConstraintOp
	Usable bool
}

// IndexOrderBy is one ORDER BY term on a virtual table.
type IndexOrderBy struct {
	Column int
	Desc   bool
}

// IndexInfo is the planner's input to BestIndex.
type IndexInfo struct {
	Constraints []IndexConstraint
	OrderBy     []IndexOrderBy
	ColUsed     uint64
}

// ConstraintUsage tells the planner which constraints the table consumes.
// ArgvIndex of n>0 passes the constraint's value as Filter argument n;
// Omit lets the engine skip re-checking the constraint.
type ConstraintUsage struct {
	ArgvIndex int
	Omit      bool
}

// IndexPlan is BestIndex's answer: how the table wants the query executed.
// IdxNum and IdxStr are opaque to the engine and arrive back in Filter.
type IndexPlan struct {
	ConstraintUsage []ConstraintUsage
	IdxNum          int
	IdxStr          string
	OrderByConsumed bool
	EstimatedCost   float64
	EstimatedRows   int64
}

// FullScan is the minimally-correct plan: scan everything, estimate high.
func FullScan() *IndexPlan {
	return &IndexPlan{EstimatedCost: 1e9, EstimatedRows: 1e6}
}

// VTabOpKind is the kind of write decoded from the engine's xUpdate call.
type VTabOpKind int

// virtual table write kinds
const (
	VTabInsert VTabOpKind = iota
	VTabUpdate
	VTabDelete
)

// VTabOp is one decoded write against a virtual table. For VTabDelete only
// Rowid is set. For VTabInsert, NewRowid is the requested rowid or nil when
// the table should pick one. For VTabUpdate, Rowid is the addressed row and
// NewRowid the (possibly identical) replacement rowid.
type VTabOp struct {
	Kind     VTabOpKind
	Rowid    int64
	NewRowid *int64
	Values   []Value
}

// Module is a host-defined virtual table. The bridge declares the table from
// Schema, consults BestIndex during planning and drives row access through
// cursors. Implement Updater as well to accept writes; a module without it
// is read-only.
type Module interface {
	Schema() []ColumnDef
	BestIndex(in *IndexInfo) (*IndexPlan, error)
	Open() (Cursor, error)
}

// Updater is the optional write half of a Module. Update returns the rowid
// the operation settled on; for inserts it becomes last_insert_rowid.
type Updater interface {
	Update(op VTabOp) (int64, error)
}

// Cursor iterates one query's rows over a virtual table. The engine drives
// it strictly as filter, then column/rowid/next until EOF, then close.
type Cursor interface {
	Filter(idxNum int, idxStr string, args []Value) error
	Next() error
	EOF() bool
	Column(i int) (Value, error)
	Rowid() (int64, error)
	Close() error
}

type moduleContext struct {
	name string
	mod  Module
}

// CreateModule registers a virtual table module on this connection. Tables
// are then created with CREATE VIRTUAL TABLE t USING name. The module's
// callbacks are owned by the registration and released by the engine-invoked
// destructor at de-registration or connection close.
func (c *Conn) CreateModule(name string, mod Module) error {
	if c.db == nil {
		return ErrClosedConn
	}
	if mod == nil {
		return fmt.Errorf("sqlite: nil module %q", name)
	}

	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	// every module is registered with xUpdate: for a module without Updater,
	// goVtabUpdate answers SQLITE_READONLY, so writes fail with ErrReadOnly
	app := pointer.Save(&moduleContext{name: name, mod: mod})
	if rc := C.slate_create_module(c.db, cname, app, 1); rc != C.SQLITE_OK {
		pointer.Unref(app)
		return fmt.Errorf("can't register module %q: %w", name, engineErr(rc, c.db))
	}
	c.modules[name] = struct{}{}
	return nil
}

// declareSQL builds the CREATE TABLE string handed to the engine's
// declare-vtab entry point. Identifier quoting is the caller's concern.
func declareSQL(cols []ColumnDef) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE x(")
	for i, col := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(col.Name)
		if col.Type != "" {
			b.WriteString(" ")
			b.WriteString(col.Type)
		}
		if col.Hidden {
			b.WriteString(" HIDDEN")
		}
	}
	b.WriteString(")")
	return b.String()
}

// vtabError stores the message on the table instance and reports failure.
func vtabError(tab *C.sqlite3_vtab, err error) C.int {
	if tab.zErrMsg != nil {
		C.sqlite3_free(unsafe.Pointer(tab.zErrMsg))
	}
	cmsg := C.CString(err.Error())
	tab.zErrMsg = C.slate_errmsg_alloc(cmsg)
	C.free(unsafe.Pointer(cmsg))
	return C.SQLITE_ERROR
}

func restoreVtab(tab *C.sqlite3_vtab) Module {
	return pointer.Restore((*C.slate_vtab)(unsafe.Pointer(tab)).impl).(Module)
}

func restoreCursor(cur *C.sqlite3_vtab_cursor) Cursor {
	return pointer.Restore((*C.slate_cursor)(unsafe.Pointer(cur)).impl).(Cursor)
}

//export goVtabCreate
func goVtabCreate(db *C.sqlite3, pAux unsafe.Pointer, argc C.int, argv **C.char, pp **C.sqlite3_vtab, pzErr **C.char) C.int {
	mctx, ok := pointer.Restore(pAux).(*moduleContext)
	if !ok {
		return C.SQLITE_ERROR
	}

	sql := declareSQL(mctx.mod.Schema())
	csql := C.CString(sql)
	defer C.free(unsafe.Pointer(csql))
	if rc := C.sqlite3_declare_vtab(db, csql); rc != C.SQLITE_OK {
		cmsg := C.CString(fmt.Sprintf("can't declare schema for %s", mctx.name))
		*pzErr = C.slate_errmsg_alloc(cmsg)
		C.free(unsafe.Pointer(cmsg))
		return rc
	}

	return C.slate_vtab_alloc(pp, pointer.Save(mctx.mod))
}

//export goVtabBestIndex
func goVtabBestIndex(tab *C.sqlite3_vtab, info *C.sqlite3_index_info) C.int {
	mod := restoreVtab(tab)

	in := &IndexInfo{ColUsed: uint64(info.colUsed)}
	if n := int(info.nConstraint); n > 0 {
		for _, cons := range unsafe.Slice(info.aConstraint, n) {
			in.Constraints = append(in.Constraints, IndexConstraint{
				Column: int(cons.iColumn),
				Op:     ConstraintOp(cons.op),
				Usable: cons.usable != 0,
			})
		}
	}
	if n := int(info.nOrderBy); n > 0 {
		for _, ob := range unsafe.Slice(info.aOrderBy, n) {
			in.OrderBy = append(in.OrderBy, IndexOrderBy{Column: int(ob.iColumn), Desc: ob.desc != 0})
		}
	}

	plan, err := mod.BestIndex(in)
	if err != nil {
		return vtabError(tab, err)
	}
	if plan == nil {
		plan = FullScan()
	}

	// aConstraintUsage is pre-allocated by the engine, one per constraint
	if n := int(info.nConstraint); n > 0 && len(plan.ConstraintUsage) > 0 {
		usage := unsafe.Slice(info.aConstraintUsage, n)
		for i, u := range plan.ConstraintUsage {
			if i >= n {
				break
			}
			usage[i].argvIndex = C.int(u.ArgvIndex)
			if u.Omit {
				usage[i].omit = 1
			}
		}
	}

	info.idxNum = C.int(plan.IdxNum)
	if plan.IdxStr != "" {
		cs := C.CString(plan.IdxStr)
		info.idxStr = C.slate_errmsg_alloc(cs)
		C.free(unsafe.Pointer(cs))
		info.needToFreeIdxStr = 1
	}
	if plan.OrderByConsumed {
		info.orderByConsumed = 1
	}
	info.estimatedCost = C.double(plan.EstimatedCost)
	if plan.EstimatedRows > 0 {
		info.estimatedRows = C.sqlite3_int64(plan.EstimatedRows)
	}
	return C.SQLITE_OK
}

//export goVtabDisconnect
func goVtabDisconnect(tab *C.sqlite3_vtab) C.int {
	p := unsafe.Pointer(tab)
	pointer.Unref((*C.slate_vtab)(p).impl)
	C.sqlite3_free(p)
	return C.SQLITE_OK
}

//export goVtabOpen
func goVtabOpen(tab *C.sqlite3_vtab, pp **C.sqlite3_vtab_cursor) C.int {
	mod := restoreVtab(tab)
	cur, err := mod.Open()
	if err != nil {
		return vtabError(tab, err)
	}
	return C.slate_cursor_alloc(pp, pointer.Save(cur))
}

//export goVtabClose
func goVtabClose(cur *C.sqlite3_vtab_cursor) C.int {
	p := unsafe.Pointer(cur)
	cursor := restoreCursor(cur)
	err := cursor.Close()
	pointer.Unref((*C.slate_cursor)(p).impl)
	C.sqlite3_free(p)
	if err != nil {
		return C.SQLITE_ERROR
	}
	return C.SQLITE_OK
}

//export goVtabFilter
func goVtabFilter(cur *C.sqlite3_vtab_cursor, idxNum C.int, idxStr *C.char, argc C.int, argv **C.sqlite3_value) C.int {
	cursor := restoreCursor(cur)
	if err := cursor.Filter(int(idxNum), goStr(idxStr), valuesFromC(argc, argv)); err != nil {
		return vtabError(cur.pVtab, err)
	}
	return C.SQLITE_OK
}

//export goVtabNext
func goVtabNext(cur *C.sqlite3_vtab_cursor) C.int {
	if err := restoreCursor(cur).Next(); err != nil {
		return vtabError(cur.pVtab, err)
	}
	return C.SQLITE_OK
}

//export goVtabEof
func goVtabEof(cur *C.sqlite3_vtab_cursor) C.int {
	if restoreCursor(cur).EOF() {
		return 1
	}
	return 0
}

//export goVtabColumn
func goVtabColumn(cur *C.sqlite3_vtab_cursor, ctx *C.sqlite3_context, i C.int) C.int {
	v, err := restoreCursor(cur).Column(int(i))
	if err != nil {
		setError(ctx, err)
		return C.SQLITE_ERROR
	}
	setResult(ctx, v)
	return C.SQLITE_OK
}

//export goVtabRowid
func goVtabRowid(cur *C.sqlite3_vtab_cursor, rowid *C.sqlite3_int64) C.int {
	id, err := restoreCursor(cur).Rowid()
	if err != nil {
		return vtabError(cur.pVtab, err)
	}
	*rowid = C.sqlite3_int64(id)
	return C.SQLITE_OK
}

//export goVtabUpdate
func goVtabUpdate(tab *C.sqlite3_vtab, argc C.int, argv **C.sqlite3_value, rowidOut *C.sqlite3_int64) C.int {
	upd, ok := restoreVtab(tab).(Updater)
	if !ok {
		return C.SQLITE_READONLY
	}

	args := valuesFromC(argc, argv)
	var op VTabOp
	switch {
	case len(args) == 1:
		id, _ := args[0].Int()
		op = VTabOp{Kind: VTabDelete, Rowid: id}
	case args[0].IsNull():
		op = VTabOp{Kind: VTabInsert, Values: args[2:]}
		if id, ok := args[1].Int(); ok {
			op.NewRowid = &id
		}
	default:
		oldID, _ := args[0].Int()
		newID, _ := args[1].Int()
		op = VTabOp{Kind: VTabUpdate, Rowid: oldID, NewRowid: &newID, Values: args[2:]}
	}

	id, err := upd.Update(op)
	if err != nil {
		return vtabError(tab, err)
	}
	if op.Kind == VTabInsert && rowidOut != nil {
		*rowidOut = C.sqlite3_int64(id)
	}
	return C.SQLITE_OK
}

//export goModuleDestroy
func goModuleDestroy(pAux unsafe.Pointer) {
	if pAux != nil {
		pointer.Unref(pAux)
	}
}
