package sqlite

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_Constructors(t *testing.T) {
	tbl := []struct {
		name string
		v    Value
		typ  ValueType
	}{
		{"null", Null(), TypeNull},
		{"integer", Integer(42), TypeInteger},
		{"float", Float(3.14), TypeFloat},
		{"text", Text("hello"), TypeText},
		{"blob", Blob([]byte{1, 2, 3}), TypeBlob},
		{"empty blob", Blob(nil), TypeBlob},
	}

	for _, tt := range tbl {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.typ, tt.v.Type())
		})
	}
}

func TestValue_Accessors(t *testing.T) {
	i, ok := Integer(7).Int()
	assert.True(t, ok)
	assert.Equal(t, int64(7), i)

	_, ok = Text("x").Int()
	assert.False(t, ok)

	s, ok := Text("hello").Text()
	assert.True(t, ok)
	assert.Equal(t, "hello", s)

	b, ok := Blob([]byte{0xA0}).Blob()
	assert.True(t, ok)
	assert.Equal(t, []byte{0xA0}, b)

	assert.True(t, Null().IsNull())
	assert.False(t, Integer(0).IsNull())
}

func TestValue_Equal(t *testing.T) {
	tbl := []struct {
		name string
		a, b Value
		eq   bool
	}{
		{"null = null", Null(), Null(), true},
		{"int = int", Integer(1), Integer(1), true},
		{"int != int", Integer(1), Integer(2), false},
		{"int != float", Integer(1), Float(1), false},
		{"nan = nan", Float(math.NaN()), Float(math.NaN()), true},
		{"float = float", Float(1.5), Float(1.5), true},
		{"text = text", Text("a"), Text("a"), true},
		{"text != text", Text("a"), Text("A"), false},
		{"blob = blob", Blob([]byte{1}), Blob([]byte{1}), true},
		{"empty blob = empty blob", Blob(nil), Blob([]byte{}), true},
		{"empty blob != null", Blob(nil), Null(), false},
	}

	for _, tt := range tbl {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.eq, tt.a.Equal(tt.b))
		})
	}
}

func TestToValue(t *testing.T) {
	tbl := []struct {
		name string
		in   any
		want Value
	}{
		{"nil", nil, Null()},
		{"int", 5, Integer(5)},
		{"int64", int64(5), Integer(5)},
		{"float64", 2.5, Float(2.5)},
		{"string", "s", Text("s")},
		{"bytes", []byte{9}, Blob([]byte{9})},
		{"bool true", true, Integer(1)},
		{"bool false", false, Integer(0)},
		{"value passthrough", Text("v"), Text("v")},
		{"nil string ptr", (*string)(nil), Null()},
	}

	for _, tt := range tbl {
		t.Run(tt.name, func(t *testing.T) {
			got, err := toValue(tt.in)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}

	t.Run("string ptr", func(t *testing.T) {
		s := "deref"
		got, err := toValue(&s)
		require.NoError(t, err)
		assert.True(t, Text("deref").Equal(got))
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := toValue(struct{}{})
		assert.Error(t, err)
	})
}

func TestAs_Typed(t *testing.T) {
	i, err := As[int64](Integer(10), "c")
	require.NoError(t, err)
	assert.Equal(t, int64(10), i)

	f, err := As[float64](Integer(10), "c")
	require.NoError(t, err)
	assert.Equal(t, 10.0, f)

	s, err := As[string](Text("x"), "c")
	require.NoError(t, err)
	assert.Equal(t, "x", s)

	b, err := As[[]byte](Blob([]byte{1, 2}), "c")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, b)

	u64, err := As[uint64](Integer(10), "c")
	require.NoError(t, err)
	assert.Equal(t, uint64(10), u64)

	u, err := As[uint](Integer(10), "c")
	require.NoError(t, err)
	assert.Equal(t, uint(10), u)

	u32, err := As[uint32](Integer(10), "c")
	require.NoError(t, err)
	assert.Equal(t, uint32(10), u32)

	_, err = As[uint64](Text("x"), "c")
	assert.Error(t, err)
}

func TestAs_Bool(t *testing.T) {
	tbl := []struct {
		name string
		v    Value
		want bool
		err  bool
	}{
		{"zero is false", Integer(0), false, false},
		{"one is true", Integer(1), true, false},
		{"any int is true", Integer(-7), true, false},
		{"null is false", Null(), false, false},
		{"text is not bool", Text("true"), false, true},
	}

	for _, tt := range tbl {
		t.Run(tt.name, func(t *testing.T) {
			got, err := As[bool](tt.v, "c")
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAs_Errors(t *testing.T) {
	t.Run("null into required", func(t *testing.T) {
		_, err := As[int64](Null(), "age")
		var nerr *NullError
		require.ErrorAs(t, err, &nerr)
		assert.Equal(t, "age", nerr.Column)
	})

	t.Run("type mismatch", func(t *testing.T) {
		_, err := As[int64](Text("nope"), "age")
		var terr *TypeError
		require.ErrorAs(t, err, &terr)
		assert.Equal(t, "INTEGER", terr.Expected)
		assert.Equal(t, "TEXT", terr.Actual)
	})

	t.Run("optional turns null into nil", func(t *testing.T) {
		p, err := As[*int64](Null(), "age")
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("optional wraps present value", func(t *testing.T) {
		p, err := As[*int64](Integer(3), "age")
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, int64(3), *p)
	})
}
