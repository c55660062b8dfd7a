package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/go-pkgz/syncs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConn_OpenClose(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		c, err := OpenMemory()
		require.NoError(t, err)
		require.NoError(t, c.Close())
		assert.NoError(t, c.Close(), "close is idempotent")
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "test.db")
		c, err := Open(path)
		require.NoError(t, err)
		require.NoError(t, c.Exec("CREATE TABLE t (v INTEGER)"))
		require.NoError(t, c.Close())
	})

	t.Run("bad path", func(t *testing.T) {
		_, err := Open(filepath.Join(t.TempDir(), "no", "such", "dir", "test.db"))
		assert.Error(t, err)
	})

	t.Run("use after close", func(t *testing.T) {
		c, err := OpenMemory()
		require.NoError(t, err)
		require.NoError(t, c.Close())

		assert.ErrorIs(t, c.Exec("SELECT 1"), ErrClosedConn)
		_, err = c.Query("SELECT 1")
		assert.ErrorIs(t, err, ErrClosedConn)
		_, err = c.Prepare("SELECT 1")
		assert.ErrorIs(t, err, ErrClosedConn)
	})
}

func TestConn_InsertAndQuery(t *testing.T) {
	c, err := OpenMemory()
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Exec("CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)"))
	require.NoError(t, c.Exec("INSERT INTO users (name) VALUES ('Alice')"))
	require.NoError(t, c.Exec("INSERT INTO users (name) VALUES ('Bob')"))

	rows, err := c.Query("SELECT id, name FROM users ORDER BY id")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	name, err := RowByNameAs[string](rows[0], "name")
	require.NoError(t, err)
	assert.Equal(t, "Alice", name)
	name, err = RowByNameAs[string](rows[1], "name")
	require.NoError(t, err)
	assert.Equal(t, "Bob", name)

	assert.Equal(t, int64(2), c.LastInsertRowID())
	assert.Equal(t, int64(1), c.Changes(), "changes reflects the last statement")
	assert.Equal(t, int64(2), c.TotalChanges())
}

func TestConn_QueryOne(t *testing.T) {
	c, err := OpenMemory()
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Exec("CREATE TABLE t (v INTEGER); INSERT INTO t VALUES (1), (2), (3)"))

	t.Run("first row wins", func(t *testing.T) {
		row, err := c.QueryOne("SELECT v FROM t ORDER BY v")
		require.NoError(t, err)
		require.NotNil(t, row)
		v, err := RowAs[int64](*row, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), v)
	})

	t.Run("no rows is nil, not an error", func(t *testing.T) {
		row, err := c.QueryOne("SELECT v FROM t WHERE v > 100")
		require.NoError(t, err)
		assert.Nil(t, row)
	})
}

func TestConn_QueryWithArgs(t *testing.T) {
	c, err := OpenMemory()
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Exec("CREATE TABLE t (a INTEGER, b TEXT)"))
	require.NoError(t, c.Exec("INSERT INTO t VALUES (1, 'one'), (2, 'two')"))

	rows, err := c.Query("SELECT b FROM t WHERE a = ?", 2)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	b, err := RowAs[string](rows[0], 0)
	require.NoError(t, err)
	assert.Equal(t, "two", b)
}

func TestConn_QueryError(t *testing.T) {
	c, err := OpenMemory()
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Query("SELECT * FROM nope")
	require.Error(t, err)
	var eng *Error
	require.ErrorAs(t, err, &eng)
	assert.NotEmpty(t, eng.Message)
	assert.Equal(t, eng.Code, c.ErrCode())
}

func TestConn_InterruptFromUDF(t *testing.T) {
	c, err := OpenMemory()
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Exec("CREATE TABLE t (v INTEGER)"))
	for i := 0; i < 100; i++ {
		require.NoError(t, c.Exec(fmt.Sprintf("INSERT INTO t VALUES (%d)", i)))
	}

	calls := 0
	require.NoError(t, c.CreateScalarFunc("poke", 1, func(args []Value) (Value, error) {
		calls++
		if calls == 3 {
			c.Interrupt()
		}
		return args[0], nil
	}))

	_, err = c.Query("SELECT poke(v) FROM t")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInterrupted)
	assert.Less(t, calls, 100, "interrupt stopped the scan early")
}

func TestConn_AutoCommit(t *testing.T) {
	c, err := OpenMemory()
	require.NoError(t, err)
	defer c.Close()

	assert.True(t, c.AutoCommit())
	require.NoError(t, c.Exec("BEGIN"))
	assert.False(t, c.AutoCommit())
	require.NoError(t, c.Exec("ROLLBACK"))
	assert.True(t, c.AutoCommit())
}

func TestConn_Filename(t *testing.T) {
	path := filepath.Join(t.TempDir(), "named.db")
	c, err := Open(path)
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, path, c.Filename("main"))

	m, err := OpenMemory()
	require.NoError(t, err)
	defer m.Close()
	assert.Empty(t, m.Filename("main"))
}

func TestConn_FTS5AndRTree(t *testing.T) {
	c, err := OpenMemory()
	require.NoError(t, err)
	defer c.Close()

	t.Run("fts5", func(t *testing.T) {
		require.NoError(t, c.Exec("CREATE VIRTUAL TABLE docs USING fts5(content)"))
		require.NoError(t, c.Exec("INSERT INTO docs VALUES ('the quick brown fox'), ('lazy dog')"))
		rows, err := c.Query("SELECT content FROM docs WHERE docs MATCH 'fox'")
		require.NoError(t, err)
		require.Len(t, rows, 1)
	})

	t.Run("rtree", func(t *testing.T) {
		require.NoError(t, c.Exec("CREATE VIRTUAL TABLE boxes USING rtree(id, minx, maxx)"))
		require.NoError(t, c.Exec("INSERT INTO boxes VALUES (1, 0.0, 10.0), (2, 20.0, 30.0)"))
		rows, err := c.Query("SELECT id FROM boxes WHERE minx < 15")
		require.NoError(t, err)
		require.Len(t, rows, 1)
	})
}

func TestConn_ConcurrentConnections(t *testing.T) {
	// one connection is single-threaded, but independent connections may run
	// in parallel
	swg := syncs.NewSizedGroup(4)
	errs := make(chan error, 4)

	for i := 0; i < 4; i++ {
		swg.Go(func(context.Context) {
			errs <- func() error {
				c, err := OpenMemory()
				if err != nil {
					return err
				}
				defer c.Close()

				if err = c.Exec("CREATE TABLE t (v INTEGER)"); err != nil {
					return err
				}
				for j := 0; j < 50; j++ {
					if err = c.Exec(fmt.Sprintf("INSERT INTO t VALUES (%d)", j)); err != nil {
						return err
					}
				}
				rows, err := c.Query("SELECT count(*) FROM t")
				if err != nil {
					return err
				}
				if n, _ := RowAs[int64](rows[0], 0); n != 50 {
					return errors.New("unexpected row count")
				}
				return nil
			}()
		})
	}
	swg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}
