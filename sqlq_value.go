package sqlq

import (
	"database/sql/driver"
	"encoding/json"
	"math"
	r "reflect"
	"strconv"
	"time"

	"github.com/mattn/go-sqlite3"
)

// Largest integer that survives a round trip through `float64`.
const maxSafeInteger = 1<<53 - 1

// Storage classes accepted and returned by SQLite. Part of `Value`.
type Kind byte

const (
	KindNull Kind = iota
	KindInteger
	KindFloat
	KindText
	KindBlob
)

// Implement `fmt.Stringer` for debug purposes.
func (self Kind) String() string {
	switch self {
	case KindNull:
		return `null`
	case KindInteger:
		return `integer`
	case KindFloat:
		return `float`
	case KindText:
		return `text`
	case KindBlob:
		return `blob`
	default:
		return `Kind(` + strconv.Itoa(int(self)) + `)`
	}
}

/*
A single SQL value: null, integer, float, text or blob. This is the only type
that appears in `Query.Parameters` and in `Record.Values`. Arbitrary Go values
are converted into it explicitly via `ValueOf`. The zero value is null.
*/
type Value struct {
	kind  Kind
	int   int64
	float float64
	text  string
	blob  []byte
}

// Shortcut for the null value. Same as `Value{}`.
func Null() Value { return Value{} }

// Makes an integer value.
func Int(val int64) Value { return Value{kind: KindInteger, int: val} }

// Makes a float value.
func Float(val float64) Value { return Value{kind: KindFloat, float: val} }

// Makes a text value.
func Text(val string) Value { return Value{kind: KindText, text: val} }

// Makes a blob value. The slice is used as-is, without copying.
func Blob(val []byte) Value {
	if val == nil {
		val = []byte{}
	}
	return Value{kind: KindBlob, blob: val}
}

/*
Converts an arbitrary Go value into a `Value`. Supports ONLY the following
inputs, in this order of priority. For other inputs, returns an error with the
code `ErrCodeUnsupportedValue`.

	* Nil: null.
	* `Value` and non-nil `*Value`: as-is.
	* `time.Time`: text, in the first timestamp format of go-sqlite3.
	* `driver.Valuer`: its value, converted by these same rules.
	* Nil pointers: null. Other pointers are dereferenced.
	* Signed and unsigned integers: integer. Uints above `math.MaxInt64` are
	  rejected.
	* Floats: float.
	* Bools: integer 1 or 0.
	* Strings and string-kinded types: text.
	* Byte slices and their aliases: blob (copied).

Notably, `Query` is not a value. Nesting a query requires the raw marker, see
`Sql`.
*/
func ValueOf(src any) (Value, error) {
	switch src := src.(type) {
	case nil:
		return Value{}, nil

	case Value:
		return src, nil

	case *Value:
		if src == nil {
			return Value{}, nil
		}
		return *src, nil

	case time.Time:
		return Text(src.Format(sqlite3.SQLiteTimestampFormats[0])), nil

	case driver.Valuer:
		if isNil(src) {
			return Value{}, nil
		}
		val, err := src.Value()
		if err != nil {
			return Value{}, ErrUnsupportedValue.while(`converting driver.Valuer`).because(err)
		}
		return ValueOf(val)
	}

	val := r.ValueOf(src)

	switch val.Kind() {
	case r.Pointer:
		if val.IsNil() {
			return Value{}, nil
		}
		return ValueOf(val.Elem().Interface())

	case r.Int8, r.Int16, r.Int32, r.Int64, r.Int:
		return Int(val.Int()), nil

	case r.Uint8, r.Uint16, r.Uint32, r.Uint64, r.Uint, r.Uintptr:
		num := val.Uint()
		if num > math.MaxInt64 {
			return Value{}, ErrUnsupportedValue.while(`converting value`).because(
				errf(`unsigned integer %v overflows int64`, num),
			)
		}
		return Int(int64(num)), nil

	case r.Float32, r.Float64:
		return Float(val.Float()), nil

	case r.Bool:
		if val.Bool() {
			return Int(1), nil
		}
		return Int(0), nil

	case r.String:
		return Text(val.String()), nil

	case r.Slice:
		if val.Type().ConvertibleTo(typeBytes) {
			src := val.Bytes()
			out := make([]byte, len(src))
			copy(out, src)
			return Blob(out), nil
		}
	}

	return Value{}, errUnsupportedType(`converting value`, r.TypeOf(src))
}

// Variant of `ValueOf` that panics on error.
func TryValueOf(src any) Value { return try1(ValueOf(src)) }

// Returns the storage class of the value.
func (self Value) Kind() Kind { return self.kind }

// True if the value is null.
func (self Value) IsNull() bool { return self.kind == KindNull }

// Returns the integer and true if the value is an integer.
func (self Value) Int64() (int64, bool) { return self.int, self.kind == KindInteger }

/*
Returns the number as a float and true if the value is a float or an integer.
Integers beyond ±(2^53-1) lose precision.
*/
func (self Value) Float64() (float64, bool) {
	switch self.kind {
	case KindFloat:
		return self.float, true
	case KindInteger:
		return float64(self.int), true
	default:
		return 0, false
	}
}

// Returns the text and true if the value is text.
func (self Value) Text() (string, bool) { return self.text, self.kind == KindText }

// Returns the bytes and true if the value is a blob. The slice is not copied.
func (self Value) Blob() ([]byte, bool) { return self.blob, self.kind == KindBlob }

/*
Returns the underlying Go value: nil, `int64`, `float64`, `string` or
`[]byte`. These are exactly the types accepted by `database/sql/driver`.
*/
func (self Value) Any() any {
	switch self.kind {
	case KindInteger:
		return self.int
	case KindFloat:
		return self.float
	case KindText:
		return self.text
	case KindBlob:
		return self.blob
	default:
		return nil
	}
}

// Implement `driver.Valuer`. This is the binding boundary.
func (self Value) Value() (driver.Value, error) { return self.Any(), nil }

// Implement `Appender`. Null appends nothing. Floats avoid the scientific
// notation.
func (self Value) Append(buf []byte) []byte {
	switch self.kind {
	case KindInteger:
		return strconv.AppendInt(buf, self.int, 10)
	case KindFloat:
		return strconv.AppendFloat(buf, self.float, 'f', -1, 64)
	case KindText:
		return append(buf, self.text...)
	case KindBlob:
		return append(buf, self.blob...)
	default:
		return buf
	}
}

// Implement `fmt.Stringer`.
func (self Value) String() string { return appenderString(self) }

// Implement `fmt.GoStringer` for readable test failures.
func (self Value) GoString() string {
	switch self.kind {
	case KindInteger:
		return `sqlq.Int(` + strconv.FormatInt(self.int, 10) + `)`
	case KindFloat:
		return `sqlq.Float(` + strconv.FormatFloat(self.float, 'g', -1, 64) + `)`
	case KindText:
		return `sqlq.Text(` + strconv.Quote(self.text) + `)`
	case KindBlob:
		return `sqlq.Blob(` + strconv.Quote(string(self.blob)) + `)`
	default:
		return `sqlq.Null()`
	}
}

// Implement `json.Marshaler`. Blobs are encoded as base64, like `[]byte`.
func (self Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(self.Any())
}

// Integers beyond the float-safe range become floats. Used when safe integers
// are off.
func (self Value) native() Value {
	if self.kind == KindInteger && (self.int > maxSafeInteger || self.int < -maxSafeInteger) {
		return Float(float64(self.int))
	}
	return self
}

func valuesOf(src []any) ([]Value, error) {
	out := make([]Value, 0, len(src))
	for ind, val := range src {
		conv, err := ValueOf(val)
		if err != nil {
			return nil, err.(Err).while(`converting parameter at index ` + strconv.Itoa(ind))
		}
		out = append(out, conv)
	}
	return out, nil
}

func driverValues(src []Value) []any {
	out := make([]any, len(src))
	for ind, val := range src {
		out[ind] = val.Any()
	}
	return out
}
