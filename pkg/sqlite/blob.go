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

// BlobMode selects read-only or read-write access to a blob.
type BlobMode int

// blob open modes
const (
	BlobReadOnly  BlobMode = 0
	BlobReadWrite BlobMode = 1
)

// Blob is an incremental I/O handle over one blob cell. The blob's size is
// fixed while the handle addresses one row (Reopen re-reads it for the new
// row); growing it requires a SQL UPDATE. The handle keeps its connection
// alive until closed.
type Blob struct {
	conn   *Conn
	blob   *C.sqlite3_blob
	size   int
	closed bool
}

// OpenBlob opens the blob stored at (table, column, rowid) for incremental
// I/O. The optional last argument selects an attached database; it defaults
// to "main".
func (c *Conn) OpenBlob(table, column string, rowid int64, mode BlobMode, db ...string) (*Blob, error) {
	if c.db == nil {
		return nil, ErrClosedConn
	}
	dbName := "main"
	if len(db) > 0 {
		dbName = db[0]
	}

	cdb, ctbl, ccol := C.CString(dbName), C.CString(table), C.CString(column)
	defer func() {
		C.free(unsafe.Pointer(cdb))
		C.free(unsafe.Pointer(ctbl))
		C.free(unsafe.Pointer(ccol))
	}()

	var bp *C.sqlite3_blob
	rc := C.sqlite3_blob_open(c.db, cdb, ctbl, ccol, C.sqlite3_int64(rowid), C.int(mode), &bp)
	if rc != C.SQLITE_OK {
		return nil, fmt.Errorf("can't open blob %s.%s rowid %d: %w", table, column, rowid, engineErr(rc, c.db))
	}

	b := &Blob{conn: c, blob: bp, size: int(C.sqlite3_blob_bytes(bp))}
	runtime.SetFinalizer(b, func(b *Blob) { _ = b.Close() })
	return b, nil
}

// Size returns the blob's size in bytes.
func (b *Blob) Size() int { return b.size }

// Read returns exactly n bytes starting at offset. Reading past the end of
// the blob fails without touching the engine.
func (b *Blob) Read(offset, n int) ([]byte, error) {
	if b.closed {
		return nil, ErrClosedBlob
	}
	if offset < 0 || n < 0 || offset+n > b.size {
		return nil, fmt.Errorf("sqlite: blob read of %d byte(s) at %d exceeds size %d", n, offset, b.size)
	}
	if n == 0 {
		return []byte{}, nil
	}
	buf := make([]byte, n)
	rc := C.sqlite3_blob_read(b.blob, unsafe.Pointer(&buf[0]), C.int(n), C.int(offset))
	if rc != C.SQLITE_OK {
		return nil, engineErr(rc, b.conn.db)
	}
	return buf, nil
}

// Write stores data at offset. The write must fit inside the blob's current
// size; this API can't grow a blob.
func (b *Blob) Write(offset int, data []byte) error {
	if b.closed {
		return ErrClosedBlob
	}
	if offset < 0 || offset+len(data) > b.size {
		return fmt.Errorf("sqlite: blob write of %d byte(s) at %d exceeds size %d", len(data), offset, b.size)
	}
	if len(data) == 0 {
		return nil
	}
	rc := C.sqlite3_blob_write(b.blob, unsafe.Pointer(&data[0]), C.int(len(data)), C.int(offset))
	if rc != C.SQLITE_OK {
		return engineErr(rc, b.conn.db)
	}
	return nil
}

// Reopen points the handle at a different row of the same table and column,
// without the cost of a fresh open. The size is re-read for the new row.
func (b *Blob) Reopen(rowid int64) error {
	if b.closed {
		return ErrClosedBlob
	}
	rc := C.sqlite3_blob_reopen(b.blob, C.sqlite3_int64(rowid))
	if rc != C.SQLITE_OK {
		// a failed reopen aborts the handle, but the engine still requires a
		// close to release it
		err := engineErr(rc, b.conn.db)
		blob := b.blob
		b.blob = nil
		b.closed = true
		runtime.SetFinalizer(b, nil)
		C.sqlite3_blob_close(blob)
		return err
	}
	b.size = int(C.sqlite3_blob_bytes(b.blob))
	return nil
}

// Close releases the handle. Idempotent; any I/O after it fails with
// ErrClosedBlob.
func (b *Blob) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	runtime.SetFinalizer(b, nil)
	blob := b.blob
	b.blob = nil
	if rc := C.sqlite3_blob_close(blob); rc != C.SQLITE_OK {
		return engineErr(rc, b.conn.db)
	}
	return nil
}
