package sqlite

/*
#include "sqlite3.h"
#include "shim.h"
#include <stdlib.h>
*/
import "C"

import (
	"fmt"
	"unsafe"

	pointer "github.com/mattn/go-pointer"
)

// ScalarFunc is a host scalar SQL function: one Value out per call. Returning
// an error fails the calling statement with that message.
type ScalarFunc func(args []Value) (Value, error)

// AggregateInit produces the initial accumulator for one aggregation site.
type AggregateInit func() Value

// AggregateStep folds one row into the accumulator and returns the new one.
type AggregateStep func(acc Value, args []Value) (Value, error)

// AggregateFinal turns the accumulator into the aggregate's result.
type AggregateFinal func(acc Value) (Value, error)

// funcContext is the heap context handed to the engine for a scalar
// function; the engine's destroy callback releases it.
type funcContext struct {
	fn ScalarFunc
}

// aggContext is the heap context for an aggregate function. The engine's
// per-aggregation space stores only a registry key; accumulators live in the
// active map, allocated on first step and consumed by final.
type aggContext struct {
	init   AggregateInit
	step   AggregateStep
	final  AggregateFinal
	active map[int64]Value
	next   int64
}

// CreateScalarFunc registers fn as a SQL function with the given argument
// count; nArgs of -1 makes it variadic. Re-registering a name and arity
// replaces the previous function and releases its context.
func (c *Conn) CreateScalarFunc(name string, nArgs int, fn ScalarFunc) error {
	if c.db == nil {
		return ErrClosedConn
	}
	if fn == nil {
		return fmt.Errorf("sqlite: nil scalar function %q", name)
	}

	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	app := pointer.Save(&funcContext{fn: fn})
	rc := C.slate_create_function(c.db, cname, C.int(nArgs), app, 1)
	if rc != C.SQLITE_OK {
		pointer.Unref(app)
		return fmt.Errorf("can't register function %q: %w", name, engineErr(rc, c.db))
	}
	return nil
}

// CreateAggregateFunc registers an aggregate SQL function. The accumulator
// is allocated lazily: init runs on the first row of each aggregation site,
// step folds every row, final produces the result. With zero rows the engine
// finalizes an unset accumulator and the result is NULL; init and final are
// not invoked.
func (c *Conn) CreateAggregateFunc(name string, nArgs int, init AggregateInit, step AggregateStep, final AggregateFinal) error {
	if c.db == nil {
		return ErrClosedConn
	}
	if init == nil || step == nil || final == nil {
		return fmt.Errorf("sqlite: aggregate %q needs init, step and final", name)
	}

	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	app := pointer.Save(&aggContext{init: init, step: step, final: final, active: map[int64]Value{}, next: 1})
	rc := C.slate_create_function(c.db, cname, C.int(nArgs), app, 0)
	if rc != C.SQLITE_OK {
		pointer.Unref(app)
		return fmt.Errorf("can't register aggregate %q: %w", name, engineErr(rc, c.db))
	}
	return nil
}

// RemoveFunc de-registers the function with the given name and arity. The
// engine releases the old context through its destroy callback.
func (c *Conn) RemoveFunc(name string, nArgs int) error {
	if c.db == nil {
		return ErrClosedConn
	}
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	if rc := C.slate_remove_function(c.db, cname, C.int(nArgs)); rc != C.SQLITE_OK {
		return fmt.Errorf("can't remove function %q: %w", name, engineErr(rc, c.db))
	}
	return nil
}

// CreateFunc1 registers a one-argument function over typed values. An
// argument that doesn't convert makes the function return NULL, consistent
// with SQL's treatment of ill-typed inputs.
func CreateFunc1[A, R any](c *Conn, name string, fn func(A) (R, error)) error {
	return c.CreateScalarFunc(name, 1, func(args []Value) (Value, error) {
		a, err := As[A](args[0], "")
		if err != nil {
			return Null(), nil
		}
		r, err := fn(a)
		if err != nil {
			return Null(), err
		}
		return toValue(r)
	})
}

// CreateFunc2 registers a two-argument typed function; see CreateFunc1.
func CreateFunc2[A, B, R any](c *Conn, name string, fn func(A, B) (R, error)) error {
	return c.CreateScalarFunc(name, 2, func(args []Value) (Value, error) {
		a, errA := As[A](args[0], "")
		b, errB := As[B](args[1], "")
		if errA != nil || errB != nil {
			return Null(), nil
		}
		r, err := fn(a, b)
		if err != nil {
			return Null(), err
		}
		return toValue(r)
	})
}

// CreateFunc3 registers a three-argument typed function; see CreateFunc1.
func CreateFunc3[A, B, D, R any](c *Conn, name string, fn func(A, B, D) (R, error)) error {
	return c.CreateScalarFunc(name, 3, func(args []Value) (Value, error) {
		a, errA := As[A](args[0], "")
		b, errB := As[B](args[1], "")
		d, errD := As[D](args[2], "")
		if errA != nil || errB != nil || errD != nil {
			return Null(), nil
		}
		r, err := fn(a, b, d)
		if err != nil {
			return Null(), err
		}
		return toValue(r)
	})
}

//export goScalarTramp
func goScalarTramp(ctx *C.sqlite3_context, argc C.int, argv **C.sqlite3_value) {
	fc, ok := pointer.Restore(C.sqlite3_user_data(ctx)).(*funcContext)
	if !ok || fc.fn == nil {
		setError(ctx, fmt.Errorf("sqlite: function context lost"))
		return
	}
	res, err := fc.fn(valuesFromC(argc, argv))
	if err != nil {
		setError(ctx, err)
		return
	}
	setResult(ctx, res)
}

// aggSlot returns the registry key slot for the current aggregation site.
// The engine zero-initializes the space, so key 0 means unset. With alloc
// false the slot is only looked up, never created.
func aggSlot(ctx *C.sqlite3_context, alloc bool) *int64 {
	size := C.int(0)
	if alloc {
		size = C.int(8)
	}
	p := C.sqlite3_aggregate_context(ctx, size)
	if p == nil {
		return nil
	}
	return (*int64)(p)
}

//export goStepTramp
func goStepTramp(ctx *C.sqlite3_context, argc C.int, argv **C.sqlite3_value) {
	ac, ok := pointer.Restore(C.sqlite3_user_data(ctx)).(*aggContext)
	if !ok {
		setError(ctx, fmt.Errorf("sqlite: aggregate context lost"))
		return
	}
	slot := aggSlot(ctx, true)
	if slot == nil {
		setError(ctx, &Error{Code: int(C.SQLITE_NOMEM), Message: "can't allocate aggregate context"})
		return
	}
	if *slot == 0 {
		*slot = ac.next
		ac.next++
		ac.active[*slot] = ac.init()
	}
	acc, err := ac.step(ac.active[*slot], valuesFromC(argc, argv))
	if err != nil {
		// the statement fails here; the engine's cleanup still calls final
		// for this site, so the accumulator is dropped now and final finds
		// nothing to finalize
		delete(ac.active, *slot)
		setError(ctx, err)
		return
	}
	ac.active[*slot] = acc
}

//export goFinalTramp
func goFinalTramp(ctx *C.sqlite3_context) {
	ac, ok := pointer.Restore(C.sqlite3_user_data(ctx)).(*aggContext)
	if !ok {
		setError(ctx, fmt.Errorf("sqlite: aggregate context lost"))
		return
	}
	slot := aggSlot(ctx, false)
	if slot == nil || *slot == 0 {
		// no row was ever stepped for this site
		C.sqlite3_result_null(ctx)
		return
	}
	acc, ok := ac.active[*slot]
	if !ok {
		// a failed step already dropped the accumulator
		C.sqlite3_result_null(ctx)
		return
	}
	delete(ac.active, *slot) // released on the error path as well
	res, err := ac.final(acc)
	if err != nil {
		setError(ctx, err)
		return
	}
	setResult(ctx, res)
}

//export goFuncDestroy
func goFuncDestroy(app unsafe.Pointer) {
	if app != nil {
		pointer.Unref(app)
	}
}
