package sqlq

import (
	"encoding/json"
	"fmt"
	"slices"
)

/*
Parameterized SQL: source text with positional "?" placeholders, and the
corresponding parameters, in order. The count and order of placeholders in the
source always matches the parameters.

The fields are unexported. A `Query` is produced only by the composer (`Sql`,
`MustSql`, `Template.Sql`, `Q`) or by the validating constructor `Raw`. The
zero value is not a valid query: the execution methods of `DB` reject it with
`ErrInvalidQuery`, and the composer refuses to nest it.
*/
type Query struct {
	source   string
	params   []Value
	composed bool
}

// Returns the SQL text with "?" placeholders.
func (self Query) Source() string { return self.source }

// Returns a copy of the parameters, in placeholder order. Never nil for a
// valid query.
func (self Query) Parameters() []Value { return slices.Clone(self.params) }

// True if the query was produced by this package rather than zero-initialized.
func (self Query) IsValid() bool { return self.composed }

// True if the query has at least one parameter.
func (self Query) HasParameters() bool { return len(self.params) > 0 }

/*
Re-checks the query. Returns `ErrInvalidQuery` for a zero query and
`ErrArityMismatch` when the placeholders found by the tokenizer don't match the
parameters.
*/
func (self Query) Validate() error {
	if !self.composed {
		return ErrInvalidQuery.while(`validating query`).because(
			ErrStr(`query was not produced by the query composer`),
		)
	}
	count, err := countPlaceholders(self.source)
	if err != nil {
		return err
	}
	if count != len(self.params) {
		return errPlaceholderCount(`validating query`, count, len(self.params))
	}
	return nil
}

// Implement `fmt.Stringer`. Returns the source text.
func (self Query) String() string { return self.source }

// Implement `Appender`. Appends the source text.
func (self Query) Append(buf []byte) []byte { return append(buf, self.source...) }

/*
Implement `json.Marshaler`, encoding the query as
`{"source": "...", "parameters": [...]}`. Used in error messages.
*/
func (self Query) MarshalJSON() ([]byte, error) {
	params := self.params
	if params == nil {
		params = []Value{}
	}
	return json.Marshal(queryJson{self.source, params})
}

type queryJson struct {
	Source     string  `json:"source"`
	Parameters []Value `json:"parameters"`
}

func (self Query) jsonIndent() string {
	params := self.params
	if params == nil {
		params = []Value{}
	}
	out, err := json.MarshalIndent(queryJson{self.source, params}, ``, `  `)
	if err != nil {
		return fmt.Sprintf(`%q`, self.source)
	}
	return string(out)
}

// Engine arguments.
func (self Query) args() []any { return driverValues(self.params) }

/*
The query composer. Merges literal fragments and substitution values into a
single `Query`. The fragments must be exactly one more than the substitutions,
alternating like a tagged template: fragment, substitution, fragment, ...,
fragment.

For each substitution:

	* If the preceding fragment ends with the raw marker "$", the substitution
	  must be a `Query` (or non-nil `*Query`) produced by this package. The
	  marker is dropped; the nested source is appended verbatim, without a
	  placeholder; the nested parameters are appended in order. Anything else
	  fails with `ErrInvalidRawComposition`.

	* Otherwise the fragment is followed by one "?" placeholder, and the
	  substitution is converted via `ValueOf` and appended to the parameters.
	  Conversion failure is `ErrUnsupportedValue`.

The last fragment is appended unmodified. Fragments are never parsed: they may
start or end anywhere in the SQL text, including inside quotes.

Pure: doesn't touch any database. Nests to arbitrary depth.
*/
func Sql(fragments []string, substitutions ...any) (Query, error) {
	if len(fragments) == 0 && len(substitutions) == 0 {
		return Query{params: []Value{}, composed: true}, nil
	}

	if len(fragments) != len(substitutions)+1 {
		return Query{}, ErrArityMismatch.while(`composing query`).because(errf(
			`expected %v fragments for %v substitutions, got %v`,
			len(substitutions)+1, len(substitutions), len(fragments),
		))
	}

	size := 0
	for _, val := range fragments {
		size += len(val)
	}

	bui := MakeBui(size+len(substitutions), len(substitutions))

	for ind, sub := range substitutions {
		frag := fragments[ind]

		if hasRawMarker(frag) {
			nested, ok := asQuery(sub)
			if !ok {
				return Query{}, ErrInvalidRawComposition.while(`composing query`).because(errf(
					`failed to interpolate raw query %q at index %v because it was not produced by the query composer`,
					fmt.Sprint(sub), ind,
				))
			}
			bui.Str(frag[:len(frag)-1])
			bui.Sub(nested)
			continue
		}

		if _, ok := asQuery(sub); ok {
			return Query{}, ErrUnsupportedValue.while(`composing query`).because(errf(
				`query at index %v can't be bound as a parameter; prefix the substitution with the raw marker %q to nest it`,
				ind, string(rawMarker),
			))
		}

		val, err := ValueOf(sub)
		if err != nil {
			return Query{}, ErrUnsupportedValue.while(`composing query`).because(errf(
				`substitution at index %v of type %v: %w`, ind, fmt.Sprintf(`%T`, sub), err,
			))
		}
		bui.Str(frag)
		bui.Arg(val)
	}

	bui.Str(fragments[len(substitutions)])

	return Query{source: string(bui.Text), params: nonNilValues(bui.Args), composed: true}, nil
}

// Variant of `Sql` that panics on error.
func MustSql(fragments []string, substitutions ...any) Query {
	return try1(Sql(fragments, substitutions...))
}

/*
Validating constructor for hand-written SQL. Counts "?" placeholders outside
quotes and comments, and requires exactly one parameter per placeholder.
Other parameter syntaxes ("?NNN", "$N", ":name", "@name", "$name") are
rejected with `ErrUnexpectedParameter`, since they would desynchronize
positional binding. Parameters are converted via `ValueOf`.
*/
func Raw(source string, params ...any) (Query, error) {
	count, err := countPlaceholders(source)
	if err != nil {
		return Query{}, err
	}
	if count != len(params) {
		return Query{}, errPlaceholderCount(`constructing raw query`, count, len(params))
	}

	vals, err := valuesOf(params)
	if err != nil {
		return Query{}, err
	}
	return Query{source: source, params: vals, composed: true}, nil
}

/*
Template split into literal fragments on `{}` slots. The host-side equivalent
of a tagged template literal. Slots are recognized only outside quoted strings,
quoted identifiers and comments. A raw composition slot is written `${}`.

Example:

	tpl := sqlq.Tpl(`select * from users where id = {} ${}`)
	query, err := tpl.Sql(10, sqlq.Q(`and name = {}`, name))

Templates are immutable and may be reused.
*/
type Template struct {
	frags []string
	err   error
}

/*
Splits the source into fragments. Errors are deferred to `.Sql`: an
unterminated quote or comment, or a parameter placeholder in the template text,
which would desynchronize the composed query.
*/
func Tpl(src string) (out Template) {
	defer func() {
		if err := recErr(recover()); err != nil {
			out = Template{err: err}
		}
	}()

	var buf []byte
	tok := Tokenizer{Source: src}

	for {
		token := tok.Next()
		if token.IsInvalid() {
			break
		}

		switch {
		case token.Type == TokenTypeSlot:
			out.frags = append(out.frags, string(buf))
			buf = buf[:0]

		case token.Type == TokenTypePlaceholder || token.IsForeignParam():
			out.err = ErrUnexpectedParameter.while(`parsing template`).because(errf(
				`unexpected parameter %q in template text; use a "{}" slot instead`,
				token.Text,
			))
			return

		default:
			buf = append(buf, token.Text...)
		}
	}

	out.frags = append(out.frags, string(buf))
	return
}

// Returns a copy of the literal fragments.
func (self Template) Fragments() []string { return slices.Clone(self.frags) }

// Number of `{}` slots, which is the number of substitutions required by
// `.Sql`.
func (self Template) Slots() int {
	if len(self.frags) == 0 {
		return 0
	}
	return len(self.frags) - 1
}

// Composes the template with the given substitutions via `Sql`.
func (self Template) Sql(substitutions ...any) (Query, error) {
	if self.err != nil {
		return Query{}, self.err
	}
	return Sql(self.frags, substitutions...)
}

// Variant of `.Sql` that panics on error.
func (self Template) MustSql(substitutions ...any) Query {
	return try1(self.Sql(substitutions...))
}

/*
Shortcut for `Tpl(src).MustSql(substitutions...)`, convenient for nesting:

	sqlq.Q(`select * from users where true ${}`, sqlq.Q(`and id = {}`, 10))
*/
func Q(src string, substitutions ...any) Query {
	return Tpl(src).MustSql(substitutions...)
}

func hasRawMarker(frag string) bool {
	return len(frag) > 0 && frag[len(frag)-1] == rawMarker
}

// Nominal check: only composed queries qualify.
func asQuery(src any) (Query, bool) {
	switch src := src.(type) {
	case Query:
		return src, src.composed
	case *Query:
		if src != nil {
			return *src, src.composed
		}
	}
	return Query{}, false
}

func nonNilValues(src []Value) []Value {
	if src == nil {
		return []Value{}
	}
	return src
}

func errPlaceholderCount(while string, placeholders, params int) Err {
	return ErrArityMismatch.while(while).because(errf(
		`found %v placeholders but got %v parameters`, placeholders, params,
	))
}

func recErr(val any) error {
	if val == nil {
		return nil
	}
	err, _ := val.(error)
	if err != nil {
		return err
	}
	panic(val)
}
