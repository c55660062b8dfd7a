package sqlite

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func prepConn(t *testing.T) *Conn {
	t.Helper()
	c, err := OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestStmt_Lifecycle(t *testing.T) {
	c := prepConn(t)
	require.NoError(t, c.Exec("CREATE TABLE t (v INTEGER); INSERT INTO t VALUES (1), (2)"))

	s, err := c.Prepare("SELECT v FROM t ORDER BY v")
	require.NoError(t, err)

	more, err := s.Step()
	require.NoError(t, err)
	assert.True(t, more)

	v, err := s.ColumnValue(0)
	require.NoError(t, err)
	assert.True(t, Integer(1).Equal(v))

	more, err = s.Step()
	require.NoError(t, err)
	assert.True(t, more)

	more, err = s.Step()
	require.NoError(t, err)
	assert.False(t, more, "done after last row")

	require.NoError(t, s.Reset())
	more, err = s.Step()
	require.NoError(t, err)
	assert.True(t, more, "reset rewinds to the first row")

	require.NoError(t, s.Finalize())
	assert.NoError(t, s.Finalize(), "finalize is idempotent")

	_, err = s.Step()
	assert.ErrorIs(t, err, ErrClosedStmt)
}

func TestStmt_Poisoned(t *testing.T) {
	c := prepConn(t)
	require.NoError(t, c.CreateScalarFunc("boom", 0, func([]Value) (Value, error) {
		return Null(), errors.New("boom")
	}))

	s, err := c.Prepare("SELECT boom()")
	require.NoError(t, err)

	_, err = s.Step()
	require.Error(t, err)

	_, err = s.Step()
	assert.ErrorIs(t, err, ErrPoisonedStmt)
	assert.ErrorIs(t, s.Reset(), ErrPoisonedStmt)
	assert.NoError(t, s.Finalize(), "finalize is the only way out")
}

func TestStmt_BindPositional(t *testing.T) {
	c := prepConn(t)
	require.NoError(t, c.Exec("CREATE TABLE t (i INTEGER, f REAL, s TEXT, b BLOB, n INTEGER)"))

	s, err := c.Prepare("INSERT INTO t VALUES (?, ?, ?, ?, ?)")
	require.NoError(t, err)
	defer s.Finalize()

	assert.Equal(t, 5, s.ParameterCount())
	require.NoError(t, s.BindInt(1, 42))
	require.NoError(t, s.BindFloat(2, 1.25))
	require.NoError(t, s.BindText(3, "text"))
	require.NoError(t, s.BindBlob(4, []byte{0xDE, 0xAD}))
	require.NoError(t, s.BindNull(5))

	_, err = s.Step()
	require.NoError(t, err)

	row, err := c.QueryOne("SELECT i, f, s, b, n FROM t")
	require.NoError(t, err)
	require.NotNil(t, row)

	vals := row.Values()
	assert.True(t, Integer(42).Equal(vals[0]))
	assert.True(t, Float(1.25).Equal(vals[1]))
	assert.True(t, Text("text").Equal(vals[2]))
	assert.True(t, Blob([]byte{0xDE, 0xAD}).Equal(vals[3]))
	assert.True(t, Null().Equal(vals[4]))
}

func TestStmt_BindNamed(t *testing.T) {
	c := prepConn(t)
	require.NoError(t, c.Exec("CREATE TABLE t (a INTEGER, b TEXT, c REAL)"))

	s, err := c.Prepare("INSERT INTO t VALUES (:a, @b, $c)")
	require.NoError(t, err)
	defer s.Finalize()

	t.Run("sigils are part of the name", func(t *testing.T) {
		idx, err := s.BindIndex(":a")
		require.NoError(t, err)
		assert.Equal(t, 1, idx)
		idx, err = s.BindIndex("@b")
		require.NoError(t, err)
		assert.Equal(t, 2, idx)
		idx, err = s.BindIndex("$c")
		require.NoError(t, err)
		assert.Equal(t, 3, idx)
	})

	t.Run("unknown name", func(t *testing.T) {
		_, err := s.BindIndex(":nope")
		var berr *BindError
		require.ErrorAs(t, err, &berr)
		assert.Equal(t, ":nope", berr.Param)
	})

	t.Run("bind all named", func(t *testing.T) {
		require.NoError(t, s.BindAllNamed(map[string]any{":a": 1, "@b": "x", "$c": 0.5}))
		_, err := s.Step()
		require.NoError(t, err)

		row, err := c.QueryOne("SELECT a, b, c FROM t")
		require.NoError(t, err)
		require.NotNil(t, row)
		assert.True(t, Integer(1).Equal(row.Values()[0]))
		assert.True(t, Text("x").Equal(row.Values()[1]))
		assert.True(t, Float(0.5).Equal(row.Values()[2]))
	})
}

func TestStmt_RebindYieldsSameRows(t *testing.T) {
	c := prepConn(t)
	require.NoError(t, c.Exec("CREATE TABLE t (v INTEGER); INSERT INTO t VALUES (1), (2), (3)"))

	s, err := c.Prepare("SELECT v FROM t WHERE v >= ? ORDER BY v")
	require.NoError(t, err)
	defer s.Finalize()

	collect := func() []int64 {
		require.NoError(t, s.Reset())
		require.NoError(t, s.BindAll(2))
		var out []int64
		for {
			more, err := s.Step()
			require.NoError(t, err)
			if !more {
				return out
			}
			v, err := s.ColumnValue(0)
			require.NoError(t, err)
			i, _ := v.Int()
			out = append(out, i)
		}
	}

	first := collect()
	second := collect()
	assert.Equal(t, first, second, "identical binding gives identical rows")
	assert.Equal(t, []int64{2, 3}, first)
}

func TestStmt_ClearBindings(t *testing.T) {
	c := prepConn(t)
	s, err := c.Prepare("SELECT ?")
	require.NoError(t, err)
	defer s.Finalize()

	require.NoError(t, s.BindInt(1, 9))
	require.NoError(t, s.ClearBindings())

	more, err := s.Step()
	require.NoError(t, err)
	require.True(t, more)
	v, err := s.ColumnValue(0)
	require.NoError(t, err)
	assert.True(t, v.IsNull(), "cleared binding reads as NULL")
}

func TestStmt_BindAllCountMismatch(t *testing.T) {
	c := prepConn(t)
	s, err := c.Prepare("SELECT ?, ?")
	require.NoError(t, err)
	defer s.Finalize()

	var berr *BindError
	require.ErrorAs(t, s.BindAll(1), &berr)
}

func TestStmt_Columns(t *testing.T) {
	c := prepConn(t)
	require.NoError(t, c.Exec("CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)"))

	s, err := c.Prepare("SELECT id, name, 1+1 AS two FROM users")
	require.NoError(t, err)
	defer s.Finalize()

	assert.Equal(t, 3, s.ColumnCount())
	name, err := s.ColumnName(1)
	require.NoError(t, err)
	assert.Equal(t, "name", name)
	_, err = s.ColumnName(5)
	assert.Error(t, err)

	cols := s.Columns()
	assert.Equal(t, "INTEGER", cols[0].DeclType)
	assert.Equal(t, "users", cols[0].Table)
	assert.Empty(t, cols[2].Table, "expression column has no source table")

	t.Run("metadata", func(t *testing.T) {
		md, err := s.ColumnMetadata(1)
		require.NoError(t, err)
		assert.Equal(t, "main", md.Database)
		assert.Equal(t, "users", md.Table)
		assert.Equal(t, "name", md.Origin)

		md, err = s.ColumnMetadata(2)
		require.NoError(t, err)
		assert.Empty(t, md.Table, "expression column has no origin")
	})
}

func TestStmt_ReadOnly(t *testing.T) {
	c := prepConn(t)
	require.NoError(t, c.Exec("CREATE TABLE t (v INTEGER)"))

	s, err := c.Prepare("SELECT v FROM t")
	require.NoError(t, err)
	assert.True(t, s.ReadOnly())
	require.NoError(t, s.Finalize())

	s, err = c.Prepare("INSERT INTO t VALUES (1)")
	require.NoError(t, err)
	assert.False(t, s.ReadOnly())
	require.NoError(t, s.Finalize())
}
