package sqlite

/*
#include "sqlite3.h"
#include <stdlib.h>
*/
import "C"

import (
	"fmt"
	"runtime"
	"unsafe"
)

// Backup is an online backup from one connection's database into another's.
// The destination must not be used for anything else until the backup
// finishes. Page counts are meaningful only after the first Step.
type Backup struct {
	b        *C.sqlite3_backup
	dst, src *Conn // held so neither connection is collected mid-backup
	finished bool

	pageCount int64
	remaining int64
}

// NewBackup starts a backup of src's srcName schema into dst's dstName
// schema, overwriting the destination's contents. Empty schema names default
// to "main". The two connections must be distinct.
func NewBackup(dst, src *Conn, dstName, srcName string) (*Backup, error) {
	if dst == nil || src == nil || dst.db == nil || src.db == nil {
		return nil, ErrClosedConn
	}
	if dst == src {
		return nil, fmt.Errorf("sqlite: backup source and destination must be distinct connections")
	}
	if dstName == "" {
		dstName = "main"
	}
	if srcName == "" {
		srcName = "main"
	}

	cdst, csrc := C.CString(dstName), C.CString(srcName)
	defer func() {
		C.free(unsafe.Pointer(cdst))
		C.free(unsafe.Pointer(csrc))
	}()

	bp := C.sqlite3_backup_init(dst.db, cdst, src.db, csrc)
	if bp == nil {
		return nil, engineErr(C.sqlite3_errcode(dst.db), dst.db)
	}

	b := &Backup{b: bp, dst: dst, src: src}
	runtime.SetFinalizer(b, func(b *Backup) { _ = b.Finish() })
	return b, nil
}

// Step copies up to n pages, or all remaining pages when n is negative. It
// returns true while pages remain. A busy or locked source is returned as a
// temporary engine error with the handle still usable; the caller may retry
// after a delay.
func (b *Backup) Step(n int) (bool, error) {
	if b.finished {
		return false, ErrFinishedBackup
	}

	rc := C.sqlite3_backup_step(b.b, C.int(n))
	b.pageCount = int64(C.sqlite3_backup_pagecount(b.b))
	b.remaining = int64(C.sqlite3_backup_remaining(b.b))

	switch rc {
	case C.SQLITE_OK:
		return true, nil
	case C.SQLITE_DONE:
		return false, nil
	case C.SQLITE_BUSY, C.SQLITE_LOCKED:
		return true, &Error{Code: int(rc), Message: C.GoString(C.sqlite3_errstr(rc))}
	default:
		return false, engineErr(rc, b.dst.db)
	}
}

// Remaining returns the number of pages still to copy after the last Step.
func (b *Backup) Remaining() int64 { return b.remaining }

// PageCount returns the total page count of the source as of the last Step.
func (b *Backup) PageCount() int64 { return b.pageCount }

// Progress returns percent complete in [0, 100]. Before the first step, or
// for an empty source, it reports 100.
func (b *Backup) Progress() float64 {
	if b.pageCount == 0 {
		return 100
	}
	return float64(b.pageCount-b.remaining) / float64(b.pageCount) * 100
}

// Finish releases the engine-side backup state. Idempotent.
func (b *Backup) Finish() error {
	if b.finished {
		return nil
	}
	b.finished = true
	runtime.SetFinalizer(b, nil)
	bp := b.b
	b.b = nil
	if rc := C.sqlite3_backup_finish(bp); rc != C.SQLITE_OK {
		return engineErr(rc, b.dst.db)
	}
	return nil
}

// RunAll copies everything in one step and finishes the backup.
func (b *Backup) RunAll() error {
	if _, err := b.Step(-1); err != nil {
		_ = b.Finish() // keep the step error, finish state is already broken
		return err
	}
	return b.Finish()
}

// BackupTo copies this connection's main database into dst's main database
// in one shot.
func (c *Conn) BackupTo(dst *Conn) error {
	b, err := NewBackup(dst, c, "main", "main")
	if err != nil {
		return err
	}
	return b.RunAll()
}
