package sqlq

import (
	"database/sql"
	"encoding/json"
	"math"
	r "reflect"
	"strconv"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/mitranim/refut"
)

/*
Single result row: column names and the corresponding values, in the order
returned by the engine. Structurally typed: a record is plain data, not a
tracked entity.
*/
type Record struct {
	Columns []string
	Values  []Value
}

// Number of columns.
func (self Record) Len() int { return len(self.Columns) }

/*
Returns the value of the first column with the given name, and true if found.
Column names are matched exactly.
*/
func (self Record) Lookup(col string) (Value, bool) {
	for ind, name := range self.Columns {
		if name == col && ind < len(self.Values) {
			return self.Values[ind], true
		}
	}
	return Value{}, false
}

// Same as `.Lookup` but returns only the value. Missing columns are null.
func (self Record) Get(col string) Value {
	val, _ := self.Lookup(col)
	return val
}

/*
Converts the record into a map of plain Go values, see `Value.Any`. For
duplicate column names, the last one wins.
*/
func (self Record) Map() map[string]any {
	out := make(map[string]any, len(self.Columns))
	for ind, name := range self.Columns {
		if ind < len(self.Values) {
			out[name] = self.Values[ind].Any()
		}
	}
	return out
}

// Implement `json.Marshaler`, encoding the record as an object with keys in
// column order.
func (self Record) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for ind, name := range self.Columns {
		if ind > 0 {
			buf = append(buf, ',')
		}

		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf = append(buf, key...)
		buf = append(buf, ':')

		var val Value
		if ind < len(self.Values) {
			val = self.Values[ind]
		}
		enc, err := val.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf = append(buf, enc...)
	}
	return append(buf, '}'), nil
}

/*
Decodes the record into the destination, which must be a non-nil pointer.
Supported destinations:

	* Struct: columns are matched to fields by the `db` tag. Embedded structs
	  are treated as part of the enclosing struct. Columns without a field are
	  ignored; fields without a column are left unchanged.

	* `map[string]any`: same as `.Map`, merged into the map.

	* Anything else: the record must have exactly one column, which is decoded
	  into the destination. Useful for `select count(*)` and similar.

Field decoding supports `sql.Scanner`, pointers (null becomes nil), integers,
floats, bools, strings, byte slices, `time.Time` and `any`.
*/
func (self Record) Decode(dest any) (err error) {
	defer rec(&err)

	rval := r.ValueOf(dest)
	if rval.Kind() != r.Pointer || rval.IsNil() {
		return ErrInvalidInput.while(`decoding record`).because(errf(
			`expected non-nil pointer, got %v`, typeName(r.TypeOf(dest)),
		))
	}
	rval = rval.Elem()

	if dict, ok := dest.(*map[string]any); ok {
		if *dict == nil {
			*dict = make(map[string]any, len(self.Columns))
		}
		for key, val := range self.Map() {
			(*dict)[key] = val
		}
		return nil
	}

	if rval.Kind() == r.Struct && !isScannableRtype(rval.Type()) {
		self.decodeStruct(rval)
		return nil
	}

	if len(self.Columns) != 1 || len(self.Values) != 1 {
		return ErrInvalidInput.while(`decoding record`).because(errf(
			`decoding into %v requires exactly one column, got %v`,
			rval.Type(), len(self.Columns),
		))
	}
	decodeValue(self.Columns[0], self.Values[0], rval)
	return nil
}

// Columns are matched by name; for duplicate column names, the first one wins.
func (self Record) decodeStruct(rval r.Value) {
	cols := make(map[string]int, len(self.Columns))
	for ind, col := range self.Columns {
		if _, ok := cols[col]; !ok && ind < len(self.Values) {
			cols[col] = ind
		}
	}

	try(refut.TraverseStructRval(rval, func(field r.Value, sfield r.StructField, _ []int) error {
		col := refut.TagIdent(sfield.Tag.Get(`db`))
		if col == `` {
			return nil
		}
		ind, ok := cols[col]
		if ok {
			decodeValue(col, self.Values[ind], field)
		}
		return nil
	}))
}

var (
	typeTime       = r.TypeOf((*time.Time)(nil)).Elem()
	typeSqlScanner = r.TypeOf((*sql.Scanner)(nil)).Elem()
	typeInterface  = r.TypeOf((*any)(nil)).Elem()
)

func isScannableRtype(typ r.Type) bool {
	return typ != nil &&
		(typ == typeTime || r.PointerTo(typ).Implements(typeSqlScanner))
}

func decodeValue(col string, src Value, out r.Value) {
	if out.CanAddr() && out.Addr().Type().Implements(typeSqlScanner) {
		err := out.Addr().Interface().(sql.Scanner).Scan(src.Any())
		if err != nil {
			panic(errDecode(col, out.Type(), err))
		}
		return
	}

	if out.Kind() == r.Pointer {
		if src.IsNull() {
			out.Set(r.Zero(out.Type()))
			return
		}
		if out.IsNil() {
			out.Set(r.New(out.Type().Elem()))
		}
		decodeValue(col, src, out.Elem())
		return
	}

	if out.Type() == typeTime {
		out.Set(r.ValueOf(decodeTime(col, src)))
		return
	}

	if src.IsNull() {
		out.Set(r.Zero(out.Type()))
		return
	}

	switch out.Kind() {
	case r.Int8, r.Int16, r.Int32, r.Int64, r.Int:
		num := decodeInt(col, src, out.Type())
		if out.OverflowInt(num) {
			panic(errDecode(col, out.Type(), errf(`%v overflows`, num)))
		}
		out.SetInt(num)

	case r.Uint8, r.Uint16, r.Uint32, r.Uint64, r.Uint, r.Uintptr:
		num := decodeInt(col, src, out.Type())
		if num < 0 || out.OverflowUint(uint64(num)) {
			panic(errDecode(col, out.Type(), errf(`%v overflows`, num)))
		}
		out.SetUint(uint64(num))

	case r.Float32, r.Float64:
		num, ok := src.Float64()
		if !ok {
			panic(errDecodeKind(col, src, out.Type()))
		}
		out.SetFloat(num)

	case r.Bool:
		num, ok := src.Int64()
		if !ok {
			panic(errDecodeKind(col, src, out.Type()))
		}
		out.SetBool(num != 0)

	case r.String:
		switch src.Kind() {
		case KindText:
			out.SetString(src.text)
		case KindBlob:
			out.SetString(string(src.blob))
		default:
			out.SetString(src.String())
		}

	case r.Slice:
		if out.Type().Elem().Kind() != r.Uint8 {
			panic(errDecodeKind(col, src, out.Type()))
		}
		var buf []byte
		switch src.Kind() {
		case KindBlob:
			buf = append([]byte(nil), src.blob...)
		case KindText:
			buf = []byte(src.text)
		default:
			panic(errDecodeKind(col, src, out.Type()))
		}
		out.SetBytes(buf)

	case r.Interface:
		if out.Type() != typeInterface {
			panic(errDecodeKind(col, src, out.Type()))
		}
		out.Set(r.ValueOf(src.Any()))

	default:
		panic(errDecodeKind(col, src, out.Type()))
	}
}

func decodeInt(col string, src Value, typ r.Type) int64 {
	switch src.Kind() {
	case KindInteger:
		return src.int
	case KindFloat:
		if src.float == math.Trunc(src.float) && src.float >= math.MinInt64 && src.float < math.MaxInt64 {
			return int64(src.float)
		}
	}
	panic(errDecodeKind(col, src, typ))
}

// Text in any go-sqlite3 timestamp format, or integer unix seconds.
func decodeTime(col string, src Value) time.Time {
	switch src.Kind() {
	case KindNull:
		return time.Time{}

	case KindInteger:
		return time.Unix(src.int, 0).UTC()

	case KindText:
		for _, format := range sqlite3.SQLiteTimestampFormats {
			out, err := time.ParseInLocation(format, src.text, time.UTC)
			if err == nil {
				return out
			}
		}
		panic(errDecode(col, typeTime, errf(`unrecognized timestamp %q`, src.text)))
	}
	panic(errDecodeKind(col, src, typeTime))
}

func errDecode(col string, typ r.Type, cause error) Err {
	return ErrInvalidInput.while(`decoding column ` + strconv.Quote(col) + ` into ` + typeName(typ)).because(cause)
}

func errDecodeKind(col string, src Value, typ r.Type) Err {
	return errDecode(col, typ, errf(`can't decode %v value`, src.Kind()))
}
