package sqlq

/*
Prealloc tool. Makes a `Bui` with the specified capacity of the text and args
buffers.
*/
func MakeBui(textCap, argsCap int) Bui {
	return Bui{
		make([]byte, 0, textCap),
		make([]Value, 0, argsCap),
	}
}

/*
Short for "builder". Accumulates SQL text with positional "?" placeholders and
the corresponding arguments. Used internally by the query composer. Unlike the
composer, `Bui` doesn't enforce anything: the caller is responsible for keeping
placeholders and arguments aligned. Use `.Query` to get a validated `Query`.
*/
type Bui struct {
	Text []byte
	Args []Value
}

// Shortcut for `self.String(), self.Args`.
func (self Bui) Reify() (string, []Value) {
	return self.String(), self.Args
}

// Returns inner text as a string, performing a free cast.
func (self Bui) String() string {
	return bytesToMutableString(self.Text)
}

// Increases the capacity (not length) of the text and args buffers by the
// specified amounts. If there's already enough capacity, avoids allocation.
func (self *Bui) Grow(textLen, argsLen int) {
	self.Text = growBytes(self.Text, textLen)
	self.Args = growValues(self.Args, argsLen)
}

// Appends the provided string verbatim. Literal fragments are never spaced or
// otherwise modified.
func (self *Bui) Str(val string) {
	self.Text = append(self.Text, val...)
}

/*
Appends a "?" placeholder. Requires caution: does not append the corresponding
argument.
*/
func (self *Bui) OrphanParam() {
	self.Text = append(self.Text, placeholderPrefix)
}

/*
Appends an arg to the inner slice of args. Requires caution: does not append
the corresponding placeholder.
*/
func (self *Bui) OrphanArg(val Value) {
	self.Args = append(self.Args, val)
}

// Appends a "?" placeholder to `.Text` and the corresponding argument to
// `.Args`.
func (self *Bui) Arg(val Value) {
	self.OrphanParam()
	self.OrphanArg(val)
}

/*
Appends an arbitrary value as an argument, converting it via `ValueOf`. Panics
if the value is not convertible.
*/
func (self *Bui) Any(val any) {
	self.Arg(try1(ValueOf(val)))
}

/*
Embeds another query: its source verbatim, without a placeholder, and its
parameters in order. This is how raw composition works.
*/
func (self *Bui) Sub(val Query) {
	self.Grow(len(val.source), len(val.params))
	self.Str(val.source)
	self.Args = append(self.Args, val.params...)
}

/*
Converts the accumulated text and args into a `Query`, verifying that the
placeholders in the text match the args.
*/
func (self Bui) Query() (Query, error) {
	return Raw(string(self.Text), valuesToAny(self.Args)...)
}

func valuesToAny(src []Value) []any {
	out := make([]any, len(src))
	for ind, val := range src {
		out[ind] = val
	}
	return out
}
