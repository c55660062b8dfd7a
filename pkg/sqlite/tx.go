package sqlite

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Transact runs fn inside a deferred transaction: commit on nil error,
// rollback otherwise. A rollback failure during cleanup is suppressed in
// favour of fn's error. A panic inside fn rolls back and re-panics.
func (c *Conn) Transact(fn func(c *Conn) error) error {
	return c.transact("BEGIN TRANSACTION", fn)
}

// ReadTransact runs fn inside BEGIN DEFERRED.
func (c *Conn) ReadTransact(fn func(c *Conn) error) error {
	return c.transact("BEGIN DEFERRED TRANSACTION", fn)
}

// WriteTransact runs fn inside BEGIN IMMEDIATE, taking the write lock up
// front.
func (c *Conn) WriteTransact(fn func(c *Conn) error) error {
	return c.transact("BEGIN IMMEDIATE TRANSACTION", fn)
}

// ExclusiveTransact runs fn inside BEGIN EXCLUSIVE.
func (c *Conn) ExclusiveTransact(fn func(c *Conn) error) error {
	return c.transact("BEGIN EXCLUSIVE TRANSACTION", fn)
}

func (c *Conn) transact(begin string, fn func(c *Conn) error) (err error) {
	if err = c.Exec(begin); err != nil {
		return fmt.Errorf("can't begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		_ = c.Exec("ROLLBACK") // the original failure wins over a rollback error
		if p := recover(); p != nil {
			panic(p)
		}
	}()

	if err = fn(c); err != nil {
		return err
	}
	if err = c.Exec("COMMIT"); err != nil {
		return fmt.Errorf("can't commit transaction: %w", err)
	}
	committed = true
	return nil
}

// WithSavepoint runs fn inside a named savepoint: release on nil error,
// rollback-to plus release otherwise. Savepoints nest, so this composes with
// Transact and with itself. An empty name gets a generated one. The name is
// passed through to the engine unvalidated; quoting is the caller's job.
func (c *Conn) WithSavepoint(name string, fn func(c *Conn) error) (err error) {
	if name == "" {
		name = "sp_" + strings.ReplaceAll(uuid.New().String(), "-", "")
	}

	if err = c.Exec("SAVEPOINT " + name); err != nil {
		return fmt.Errorf("can't create savepoint %s: %w", name, err)
	}

	released := false
	defer func() {
		if released {
			return
		}
		// rollback-to rewinds, release discards the savepoint frame itself
		_ = c.Exec("ROLLBACK TO SAVEPOINT " + name)
		_ = c.Exec("RELEASE SAVEPOINT " + name)
		if p := recover(); p != nil {
			panic(p)
		}
	}()

	if err = fn(c); err != nil {
		return err
	}
	if err = c.Exec("RELEASE SAVEPOINT " + name); err != nil {
		return fmt.Errorf("can't release savepoint %s: %w", name, err)
	}
	released = true
	return nil
}
