package sqlq

import (
	"database/sql"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type (
	Str   string
	Bytes []byte
	Num   int16
)

func TestValueOf(t *testing.T) {
	test := func(exp Value, src any) {
		t.Helper()
		act, err := ValueOf(src)
		require.NoError(t, err)
		assert.Equal(t, exp, act)
	}

	t.Run(`null`, func(t *testing.T) {
		test(Null(), nil)
		test(Null(), (*int)(nil))
		test(Null(), (*Value)(nil))
		test(Null(), sql.NullString{})
		test(Null(), (*sql.NullInt64)(nil))
	})

	t.Run(`integer`, func(t *testing.T) {
		test(Int(10), 10)
		test(Int(-10), int8(-10))
		test(Int(10), uint32(10))
		test(Int(math.MaxInt64), uint64(math.MaxInt64))
		test(Int(12), Num(12))
		test(Int(1), true)
		test(Int(0), false)
		test(Int(20), sql.NullInt64{Int64: 20, Valid: true})
	})

	t.Run(`float`, func(t *testing.T) {
		test(Float(1.5), 1.5)
		test(Float(0.5), float32(0.5))
	})

	t.Run(`text`, func(t *testing.T) {
		test(Text(``), ``)
		test(Text(`one`), `one`)
		test(Text(`two`), Str(`two`))
		test(Text(`three`), sql.NullString{String: `three`, Valid: true})
	})

	t.Run(`blob`, func(t *testing.T) {
		test(Blob([]byte(`one`)), []byte(`one`))
		test(Blob([]byte(`two`)), Bytes(`two`))
		test(Blob([]byte{}), []byte(nil))
	})

	t.Run(`blob is copied`, func(t *testing.T) {
		src := []byte(`one`)
		val := TryValueOf(src)
		src[0] = 'x'

		out, ok := val.Blob()
		require.True(t, ok)
		assert.Equal(t, `one`, string(out))
	})

	t.Run(`pointer`, func(t *testing.T) {
		num := 10
		ptr := &num
		test(Int(10), &num)
		test(Int(10), &ptr)

		inst := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
		test(Text(`2024-01-02 03:04:05+00:00`), &inst)
	})

	t.Run(`time`, func(t *testing.T) {
		test(
			Text(`2024-01-02 03:04:05.123+00:00`),
			time.Date(2024, 1, 2, 3, 4, 5, 123_000_000, time.UTC),
		)
	})

	t.Run(`value`, func(t *testing.T) {
		test(Int(10), Int(10))
		val := Text(`one`)
		test(Text(`one`), &val)
	})
}

func TestValueOf_unsupported(t *testing.T) {
	test := func(src any) {
		t.Helper()
		_, err := ValueOf(src)
		assert.ErrorIs(t, err, ErrUnsupportedValue)
	}

	test(uint64(math.MaxInt64) + 1)
	test(struct{}{})
	test([]int{10})
	test(map[string]any{})
	test(Q(`select 1`))
	test(func() {})
}

func TestValue_accessors(t *testing.T) {
	t.Run(`zero`, func(t *testing.T) {
		var val Value
		assert.True(t, val.IsNull())
		assert.Equal(t, KindNull, val.Kind())
		assert.Nil(t, val.Any())
	})

	t.Run(`integer`, func(t *testing.T) {
		val := Int(10)
		num, ok := val.Int64()
		assert.True(t, ok)
		assert.Equal(t, int64(10), num)

		flo, ok := val.Float64()
		assert.True(t, ok)
		assert.Equal(t, 10.0, flo)

		_, ok = val.Text()
		assert.False(t, ok)
	})

	t.Run(`text`, func(t *testing.T) {
		str, ok := Text(`one`).Text()
		assert.True(t, ok)
		assert.Equal(t, `one`, str)

		_, ok = Text(`one`).Int64()
		assert.False(t, ok)
	})

	t.Run(`driver value`, func(t *testing.T) {
		out, err := Int(10).Value()
		require.NoError(t, err)
		assert.Equal(t, int64(10), out)

		out, err = Null().Value()
		require.NoError(t, err)
		assert.Nil(t, out)
	})
}

func TestValue_String(t *testing.T) {
	assert.Equal(t, ``, Null().String())
	assert.Equal(t, `-10`, Int(-10).String())
	assert.Equal(t, `0.000001`, Float(0.000001).String())
	assert.Equal(t, `one`, Text(`one`).String())
	assert.Equal(t, `two`, Blob([]byte(`two`)).String())
}

func TestValue_MarshalJSON(t *testing.T) {
	out, err := json.Marshal([]Value{Null(), Int(10), Float(1.5), Text(`one`), Blob([]byte(`two`))})
	require.NoError(t, err)
	assert.JSONEq(t, `[null, 10, 1.5, "one", "dHdv"]`, string(out))
}

func TestValue_native(t *testing.T) {
	assert.Equal(t, Int(maxSafeInteger), Int(maxSafeInteger).native())
	assert.Equal(t, Int(-maxSafeInteger), Int(-maxSafeInteger).native())
	assert.Equal(t, Float(maxSafeInteger+1), Int(maxSafeInteger+1).native())
	assert.Equal(t, Float(-maxSafeInteger-1), Int(-maxSafeInteger-1).native())
	assert.Equal(t, Text(`one`), Text(`one`).native())
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, `integer`, KindInteger.String())
	assert.Equal(t, `Kind(100)`, Kind(100).String())
}
