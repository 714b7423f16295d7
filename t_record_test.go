package sqlq

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord() Record {
	return Record{
		Columns: []string{`id`, `name`, `score`, `data`, `missing`},
		Values:  []Value{Int(1), Text(`one`), Float(1.5), Blob([]byte(`blob`)), Null()},
	}
}

func TestRecord_access(t *testing.T) {
	rec := testRecord()

	assert.Equal(t, 5, rec.Len())
	assert.Equal(t, Int(1), rec.Get(`id`))
	assert.Equal(t, Null(), rec.Get(`nonexistent`))

	_, ok := rec.Lookup(`nonexistent`)
	assert.False(t, ok)

	val, ok := rec.Lookup(`missing`)
	assert.True(t, ok)
	assert.True(t, val.IsNull())

	assert.Equal(
		t,
		map[string]any{`id`: int64(1), `name`: `one`, `score`: 1.5, `data`: []byte(`blob`), `missing`: nil},
		rec.Map(),
	)
}

func TestRecord_MarshalJSON(t *testing.T) {
	out, err := json.Marshal(testRecord())
	require.NoError(t, err)
	assert.Equal(t, `{"id":1,"name":"one","score":1.5,"data":"YmxvYg==","missing":null}`, string(out))
}

func TestRecord_Decode_struct(t *testing.T) {
	t.Run(`simple`, func(t *testing.T) {
		var out User
		require.NoError(t, testRecord().Decode(&out))
		assert.Equal(t, User{Id: 1, Name: `one`}, out)
	})

	t.Run(`embedded`, func(t *testing.T) {
		rec := Record{
			Columns: []string{`outer_id`, `embed_id`, `embed_name`, `outer_name`, `Untagged`, `Skip`},
			Values:  []Value{Int(1), Int(2), Text(`embed`), Text(`outer`), Text(`x`), Text(`y`)},
		}

		var out Outer
		require.NoError(t, rec.Decode(&out))
		assert.Equal(t, Outer{
			Embed: Embed{Id: 2, Name: `embed`},
			Id:    1,
			Name:  `outer`,
		}, out)
	})

	t.Run(`absent columns leave fields unchanged`, func(t *testing.T) {
		out := User{Id: 10, Name: `prev`}
		rec := Record{Columns: []string{`id`}, Values: []Value{Int(20)}}
		require.NoError(t, rec.Decode(&out))
		assert.Equal(t, User{Id: 20, Name: `prev`}, out)
	})

	t.Run(`field kinds`, func(t *testing.T) {
		type Kinds struct {
			Int      int             `db:"int"`
			Uint     uint8           `db:"uint"`
			Float    float32         `db:"float"`
			FromInt  float64         `db:"from_int"`
			Bool     bool            `db:"bool"`
			Str      string          `db:"str"`
			Bytes    []byte          `db:"bytes"`
			Ptr      *string         `db:"ptr"`
			NilPtr   *string         `db:"nil_ptr"`
			Any      any             `db:"any"`
			Time     time.Time       `db:"time"`
			TimePtr  *time.Time      `db:"time_ptr"`
			Nullable sql.NullString  `db:"nullable"`
			NullInt  sql.NullInt64   `db:"null_int"`
			Integral int64           `db:"integral"`
			Map      json.RawMessage `db:"map"`
		}

		inst := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

		rec := Record{
			Columns: []string{
				`int`, `uint`, `float`, `from_int`, `bool`, `str`, `bytes`, `ptr`,
				`nil_ptr`, `any`, `time`, `time_ptr`, `nullable`, `null_int`,
				`integral`, `map`,
			},
			Values: []Value{
				Int(-1), Int(2), Float(0.5), Int(3), Int(1), Text(`str`), Blob([]byte(`bytes`)), Text(`ptr`),
				Null(), Text(`any`), Text(`2024-01-02 03:04:05+00:00`), Int(inst.Unix()), Text(`nullable`), Null(),
				Float(7), Text(`{}`),
			},
		}

		var out Kinds
		require.NoError(t, rec.Decode(&out))

		str := `ptr`
		assert.Equal(t, Kinds{
			Int:      -1,
			Uint:     2,
			Float:    0.5,
			FromInt:  3,
			Bool:     true,
			Str:      `str`,
			Bytes:    []byte(`bytes`),
			Ptr:      &str,
			Any:      `any`,
			Time:     inst,
			TimePtr:  &inst,
			Nullable: sql.NullString{String: `nullable`, Valid: true},
			Integral: 7,
			Map:      json.RawMessage(`{}`),
		}, out)
	})

	t.Run(`type mismatch`, func(t *testing.T) {
		rec := Record{Columns: []string{`id`}, Values: []Value{Text(`one`)}}
		var out User
		err := rec.Decode(&out)
		assert.ErrorIs(t, err, ErrInvalidInput)
		assert.Contains(t, err.Error(), `"id"`)
	})

	t.Run(`overflow`, func(t *testing.T) {
		type Small struct {
			Val int8 `db:"val"`
		}
		rec := Record{Columns: []string{`val`}, Values: []Value{Int(1000)}}
		var out Small
		assert.ErrorIs(t, rec.Decode(&out), ErrInvalidInput)
	})
}

func TestRecord_Decode_other(t *testing.T) {
	t.Run(`map`, func(t *testing.T) {
		var out map[string]any
		require.NoError(t, testRecord().Decode(&out))
		assert.Equal(t, testRecord().Map(), out)
	})

	t.Run(`single column`, func(t *testing.T) {
		rec := Record{Columns: []string{`count(*)`}, Values: []Value{Int(3)}}
		var out int
		require.NoError(t, rec.Decode(&out))
		assert.Equal(t, 3, out)
	})

	t.Run(`multiple columns into scalar`, func(t *testing.T) {
		var out int
		assert.ErrorIs(t, testRecord().Decode(&out), ErrInvalidInput)
	})

	t.Run(`invalid destination`, func(t *testing.T) {
		assert.ErrorIs(t, testRecord().Decode(nil), ErrInvalidInput)
		assert.ErrorIs(t, testRecord().Decode(User{}), ErrInvalidInput)
		assert.ErrorIs(t, testRecord().Decode((*User)(nil)), ErrInvalidInput)
	})
}
