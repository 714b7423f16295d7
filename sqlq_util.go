package sqlq

import (
	"context"
	r "reflect"
	"unsafe"
)

const (
	placeholderPrefix  = '?'
	ordinalParamPrefix = '$'
	rawMarker          = '$'
	slotText           = `{}`
	commentLinePrefix  = `--`
	commentBlockPrefix = `/*`
	commentBlockSuffix = `*/`
	quoteSingle        = '\''
	quoteDouble        = '"'
	quoteGrave         = '`'
	quoteBracketOpen   = '['
	quoteBracketClose  = ']'

	memoryPath = `:memory:`
)

var (
	typeBytes = r.TypeOf((*[]byte)(nil)).Elem()

	charsetDigitDec         = new(charset).addStr(`0123456789`)
	charsetIdentStart       = new(charset).addStr(`ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz_`)
	charsetIdent            = new(charset).addSet(charsetIdentStart).addSet(charsetDigitDec)
	charsetSpace            = new(charset).addStr(" \t\v")
	charsetNewline          = new(charset).addStr("\r\n")
	charsetWhitespace       = new(charset).addSet(charsetSpace).addSet(charsetNewline)
	charsetNamedParamPrefix = new(charset).addStr(`:@$`)
)

type charset [256]bool

func (self *charset) has(val byte) bool { return self[val] }

func (self *charset) addStr(vals string) *charset {
	for _, val := range vals {
		self[val] = true
	}
	return self
}

func (self *charset) addSet(vals *charset) *charset {
	for ind, val := range vals {
		if val {
			self[ind] = true
		}
	}
	return self
}

func leadingNewlineSize(val string) int {
	if len(val) >= 2 && val[0] == '\r' && val[1] == '\n' {
		return 2
	}
	if len(val) >= 1 && (val[0] == '\r' || val[0] == '\n') {
		return 1
	}
	return 0
}

/*
Allocation-free conversion. Reinterprets a byte slice as a string. Borrowed from
the standard library. Reasonably safe. Should not be used when the underlying
byte array is volatile.
*/
func bytesToMutableString(bytes []byte) string {
	return *(*string)(unsafe.Pointer(&bytes))
}

func appenderString(val Appender) string {
	return bytesToMutableString(val.Append(nil))
}

func try(err error) {
	if err != nil {
		panic(err)
	}
}

func try1[A any](val A, err error) A {
	try(err)
	return val
}

// Must be deferred.
func rec(ptr *error) {
	val := recover()
	if val == nil {
		return
	}

	err, _ := val.(error)
	if err != nil {
		*ptr = err
		return
	}

	panic(val)
}

/*
Returns a slice with room for at least `size` more elements, reallocating with
doubled capacity when needed. Length and contents are preserved.
*/
func growBytes(prev []byte, size int) []byte {
	len, cap := len(prev), cap(prev)
	if cap-len >= size {
		return prev
	}

	next := make([]byte, len, 2*cap+size)
	copy(next, prev)
	return next
}

// Same as `growBytes`.
func growValues(prev []Value, size int) []Value {
	len, cap := len(prev), cap(prev)
	if cap-len >= size {
		return prev
	}

	next := make([]Value, len, 2*cap+size)
	copy(next, prev)
	return next
}

func isNil(val any) bool {
	return val == nil || isValueNil(r.ValueOf(val))
}

func isValueNil(val r.Value) bool {
	return !val.IsValid() || isNilable(val.Kind()) && val.IsNil()
}

func isNilable(kind r.Kind) bool {
	switch kind {
	case r.Chan, r.Func, r.Interface, r.Map, r.Ptr, r.Slice:
		return true
	default:
		return false
	}
}

func typeName(typ r.Type) string {
	if typ == nil {
		return `nil`
	}
	return typ.String()
}

func errUnsupportedType(while string, typ r.Type) Err {
	return ErrUnsupportedValue.while(while).because(
		errf(`unsupported type %v`, typeName(typ)),
	)
}

/*
The public API has no cancellation. Engine calls use this context, which is
never canceled.
*/
func ctxBg() context.Context { return context.Background() }
