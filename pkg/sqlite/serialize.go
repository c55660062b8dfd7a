package sqlite

/*
#include "sqlite3.h"
#include <stdlib.h>
#include <string.h>
*/
import "C"

import (
	"fmt"
	"unsafe"
)

// Serialize returns the named schema ("main" if empty) as a byte sequence in
// the engine's on-disk format. A database with no schema serializes to an
// empty sequence, not an error.
func (c *Conn) Serialize(schema string) ([]byte, error) {
	if c.db == nil {
		return nil, ErrClosedConn
	}
	if schema == "" {
		schema = "main"
	}

	cs := C.CString(schema)
	defer C.free(unsafe.Pointer(cs))

	var size C.sqlite3_int64
	p := C.sqlite3_serialize(c.db, cs, &size, 0)
	if p == nil {
		if size == 0 {
			return []byte{}, nil
		}
		return nil, &Error{Code: int(C.SQLITE_NOMEM), Message: "can't serialize database"}
	}
	defer C.sqlite3_free(unsafe.Pointer(p))
	return C.GoBytes(unsafe.Pointer(p), C.int(size)), nil
}

// DeserializeInto replaces the connection's main database with the given
// serialized image. The bytes are duplicated into engine-allocated memory,
// so the engine's free-on-close semantics apply and data stays valid
// independent of the caller's buffer. With readOnly set, writes to the
// database fail with ErrReadOnly.
func (c *Conn) DeserializeInto(data []byte, readOnly bool) error {
	if c.db == nil {
		return ErrClosedConn
	}

	n := C.sqlite3_uint64(len(data))
	buf := C.sqlite3_malloc64(n + 1) // +1 keeps a valid allocation for the empty image
	if buf == nil {
		return &Error{Code: int(C.SQLITE_NOMEM), Message: "can't allocate deserialize buffer"}
	}
	if len(data) > 0 {
		C.memcpy(buf, unsafe.Pointer(&data[0]), C.size_t(len(data)))
	}

	flags := C.uint(C.SQLITE_DESERIALIZE_FREEONCLOSE)
	if readOnly {
		flags |= C.SQLITE_DESERIALIZE_READONLY
	} else {
		flags |= C.SQLITE_DESERIALIZE_RESIZEABLE
	}

	cs := C.CString("main")
	defer C.free(unsafe.Pointer(cs))
	rc := C.sqlite3_deserialize(c.db, cs, (*C.uchar)(buf), C.sqlite3_int64(n), C.sqlite3_int64(n), flags)
	if rc != C.SQLITE_OK {
		// on failure the engine has already freed buf (FREEONCLOSE)
		return fmt.Errorf("can't deserialize database: %w", engineErr(rc, c.db))
	}
	return nil
}

// Clone serializes the main database and deserializes it into a fresh
// in-memory connection. The copy is fully independent of the original.
func (c *Conn) Clone() (*Conn, error) {
	data, err := c.Serialize("main")
	if err != nil {
		return nil, err
	}
	clone, err := OpenMemory()
	if err != nil {
		return nil, err
	}
	if err = clone.DeserializeInto(data, false); err != nil {
		_ = clone.Close()
		return nil, err
	}
	return clone, nil
}
