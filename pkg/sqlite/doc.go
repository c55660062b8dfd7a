// Package sqlite is an embedded SQLite bridge: typed values, prepared
// statements, transactions and savepoints, user-defined scalar and aggregate
// functions, update hooks, incremental blob I/O, online backup,
// serialize/deserialize and host-defined virtual tables, all over the
// vendored engine.
//
// A Conn is single-threaded: one statement steps at a time and the
// connection must not be shared between goroutines without external
// serialization. Different connections are independent. Interrupt is safe
// from any goroutine.
//
// Every handle (connection, statement, blob, backup) has an explicit
// close/finalize that is idempotent, plus a GC finalizer as a backstop.
// Child handles keep their connection reachable, so finalization order is
// always safe.
package sqlite
