package sqlite

/*
#include "sqlite3.h"
#include "shim.h"
#include <stdlib.h>
*/
import "C"

import (
	"bytes"
	"fmt"
	"math"
	"time"
	"unsafe"
)

// ValueType is the storage class of a Value, matching the engine's
// fundamental datatypes.
type ValueType int

// value types; the numbers are the bridge's own (the engine's NULL code is 5)
const (
	TypeNull ValueType = iota
	TypeInteger
	TypeFloat
	TypeText
	TypeBlob
)

func (t ValueType) String() string {
	switch t {
	case TypeNull:
		return "NULL"
	case TypeInteger:
		return "INTEGER"
	case TypeFloat:
		return "FLOAT"
	case TypeText:
		return "TEXT"
	case TypeBlob:
		return "BLOB"
	}
	return fmt.Sprintf("ValueType(%d)", int(t))
}

// Value is a single SQL value: NULL, a 64-bit integer, a float64, a text
// string, or a blob. Text and blob payloads are always copies owned by the
// Value; they never alias engine memory.
type Value struct {
	typ ValueType
	i   int64
	f   float64
	s   string
	b   []byte
}

// Null makes a NULL value.
func Null() Value { return Value{typ: TypeNull} }

// Integer makes an INTEGER value.
func Integer(i int64) Value { return Value{typ: TypeInteger, i: i} }

// Float makes a FLOAT value.
func Float(f float64) Value { return Value{typ: TypeFloat, f: f} }

// Text makes a TEXT value. All bytes are preserved, including embedded zeros.
func Text(s string) Value { return Value{typ: TypeText, s: s} }

// Blob makes a BLOB value. A zero-length blob is distinct from NULL.
func Blob(b []byte) Value {
	if b == nil {
		b = []byte{}
	}
	return Value{typ: TypeBlob, b: b}
}

// Type returns the storage class of the value.
func (v Value) Type() ValueType { return v.typ }

// IsNull reports whether the value is NULL.
func (v Value) IsNull() bool { return v.typ == TypeNull }

// Int returns the integer payload; ok is false for any other type.
func (v Value) Int() (i int64, ok bool) { return v.i, v.typ == TypeInteger }

// Float64 returns the float payload; ok is false for any other type.
func (v Value) Float64() (f float64, ok bool) { return v.f, v.typ == TypeFloat }

// Text returns the text payload; ok is false for any other type.
func (v Value) Text() (s string, ok bool) { return v.s, v.typ == TypeText }

// Blob returns the blob payload; ok is false for any other type.
func (v Value) Blob() (b []byte, ok bool) { return v.b, v.typ == TypeBlob }

// Equal reports deep equality of two values. NaN floats compare equal so
// round-tripped values stay comparable in tests.
func (v Value) Equal(o Value) bool {
	if v.typ != o.typ {
		return false
	}
	switch v.typ {
	case TypeNull:
		return true
	case TypeInteger:
		return v.i == o.i
	case TypeFloat:
		if math.IsNaN(v.f) && math.IsNaN(o.f) {
			return true
		}
		return v.f == o.f
	case TypeText:
		return v.s == o.s
	case TypeBlob:
		return bytes.Equal(v.b, o.b)
	}
	return false
}

func (v Value) String() string {
	switch v.typ {
	case TypeNull:
		return "NULL"
	case TypeInteger:
		return fmt.Sprintf("%d", v.i)
	case TypeFloat:
		return fmt.Sprintf("%g", v.f)
	case TypeText:
		return fmt.Sprintf("%q", v.s)
	case TypeBlob:
		return fmt.Sprintf("x'%x'", v.b)
	}
	return "invalid"
}

// toValue converts a Go value to a Value, the host-to-engine direction of
// typed binding. Booleans map to 0/1, nil pointers and nil interfaces to
// NULL, and time.Time to its unix seconds.
func toValue(src any) (Value, error) {
	switch t := src.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case int:
		return Integer(int64(t)), nil
	case int32:
		return Integer(int64(t)), nil
	case int64:
		return Integer(t), nil
	case uint:
		return Integer(int64(t)), nil
	case uint32:
		return Integer(int64(t)), nil
	case float32:
		return Float(float64(t)), nil
	case float64:
		return Float(t), nil
	case string:
		return Text(t), nil
	case []byte:
		return Blob(t), nil
	case bool:
		if t {
			return Integer(1), nil
		}
		return Integer(0), nil
	case time.Time:
		return Integer(t.Unix()), nil
	case *int64:
		if t == nil {
			return Null(), nil
		}
		return Integer(*t), nil
	case *float64:
		if t == nil {
			return Null(), nil
		}
		return Float(*t), nil
	case *string:
		if t == nil {
			return Null(), nil
		}
		return Text(*t), nil
	case *bool:
		if t == nil {
			return Null(), nil
		}
		return toValue(*t)
	}
	return Null(), fmt.Errorf("sqlite: unsupported type %T", src)
}

// As extracts a typed Go value out of a Value, the engine-to-host direction.
// The pointer targets *int64, *float64 and *string are optional: NULL turns
// into a nil pointer instead of a NullError. Other pointer types are not
// supported. Booleans follow the liberal rule: 0 is false, any other integer
// is true, NULL is false; text is never coerced to bool.
func As[T any](v Value, column string) (T, error) {
	var out T
	switch p := any(&out).(type) {
	case *int64:
		i, ok := v.Int()
		if !ok {
			return out, mismatch(v, "INTEGER", column)
		}
		*p = i
	case *int:
		i, ok := v.Int()
		if !ok {
			return out, mismatch(v, "INTEGER", column)
		}
		*p = int(i)
	case *uint64:
		i, ok := v.Int()
		if !ok {
			return out, mismatch(v, "INTEGER", column)
		}
		*p = uint64(i)
	case *uint:
		i, ok := v.Int()
		if !ok {
			return out, mismatch(v, "INTEGER", column)
		}
		*p = uint(i)
	case *uint32:
		i, ok := v.Int()
		if !ok {
			return out, mismatch(v, "INTEGER", column)
		}
		*p = uint32(i)
	case *float64:
		switch v.typ {
		case TypeFloat:
			*p = v.f
		case TypeInteger:
			*p = float64(v.i)
		default:
			return out, mismatch(v, "FLOAT", column)
		}
	case *string:
		s, ok := v.Text()
		if !ok {
			return out, mismatch(v, "TEXT", column)
		}
		*p = s
	case *[]byte:
		b, ok := v.Blob()
		if !ok {
			return out, mismatch(v, "BLOB", column)
		}
		*p = b
	case *bool:
		switch v.typ {
		case TypeNull:
			*p = false
			return out, nil
		case TypeInteger:
			*p = v.i != 0
		default:
			return out, mismatch(v, "INTEGER", column)
		}
	case *Value:
		*p = v
	case **int64:
		if v.IsNull() {
			return out, nil
		}
		i, ok := v.Int()
		if !ok {
			return out, mismatch(v, "INTEGER", column)
		}
		*p = &i
	case **float64:
		if v.IsNull() {
			return out, nil
		}
		f, err := As[float64](v, column)
		if err != nil {
			return out, err
		}
		*p = &f
	case **string:
		if v.IsNull() {
			return out, nil
		}
		s, ok := v.Text()
		if !ok {
			return out, mismatch(v, "TEXT", column)
		}
		*p = &s
	default:
		return out, fmt.Errorf("sqlite: unsupported extraction type %T", out)
	}
	return out, nil
}

// mismatch picks the right typed error for a failed extraction.
func mismatch(v Value, want, column string) error {
	if v.IsNull() {
		return &NullError{Column: column}
	}
	return &TypeError{Expected: want, Actual: v.typ.String(), Column: column}
}

// valueFromPtr copies one engine value into a Value. Text and blob are read
// with both the byte pointer and the byte count, so embedded zeros survive.
func valueFromPtr(p *C.sqlite3_value) Value {
	switch C.sqlite3_value_type(p) {
	case C.SQLITE_INTEGER:
		return Integer(int64(C.sqlite3_value_int64(p)))
	case C.SQLITE_FLOAT:
		return Float(float64(C.sqlite3_value_double(p)))
	case C.SQLITE_TEXT:
		s := C.sqlite3_value_text(p)
		n := C.sqlite3_value_bytes(p)
		if n == 0 {
			return Text("")
		}
		return Text(C.GoStringN((*C.char)(unsafe.Pointer(s)), n))
	case C.SQLITE_BLOB:
		b := C.sqlite3_value_blob(p)
		n := C.sqlite3_value_bytes(p)
		if n == 0 {
			return Blob([]byte{})
		}
		return Blob(C.GoBytes(b, n))
	}
	return Null()
}

// valuesFromC copies an engine argv array into Values.
func valuesFromC(argc C.int, argv **C.sqlite3_value) []Value {
	if argc <= 0 || argv == nil {
		return nil
	}
	out := make([]Value, int(argc))
	for i, p := range unsafe.Slice(argv, int(argc)) {
		out[i] = valueFromPtr(p)
	}
	return out
}

// setResult writes a Value into the engine's result slot. Byte payloads go
// through the transient pathway so the engine keeps its own copy.
func setResult(ctx *C.sqlite3_context, v Value) {
	switch v.typ {
	case TypeNull:
		C.sqlite3_result_null(ctx)
	case TypeInteger:
		C.sqlite3_result_int64(ctx, C.sqlite3_int64(v.i))
	case TypeFloat:
		C.sqlite3_result_double(ctx, C.double(v.f))
	case TypeText:
		cs := C.CString(v.s)
		C.slate_result_text(ctx, cs, C.int(len(v.s)))
		C.free(unsafe.Pointer(cs))
	case TypeBlob:
		if len(v.b) == 0 {
			C.slate_result_blob(ctx, nil, 0)
			return
		}
		C.slate_result_blob(ctx, unsafe.Pointer(&v.b[0]), C.int(len(v.b)))
	}
}

// setError writes an error message into the engine's per-call error slot.
func setError(ctx *C.sqlite3_context, err error) {
	msg := err.Error()
	cs := C.CString(msg)
	C.slate_result_error(ctx, cs, C.int(len(msg)))
	C.free(unsafe.Pointer(cs))
}
