package sqlq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenize(t testing.TB, src string) []Token {
	t.Helper()
	tok := Tokenizer{Source: src}
	out, err := tok.All()
	require.NoError(t, err)
	return out
}

func TestTokenizer(t *testing.T) {
	t.Run(`empty`, func(t *testing.T) {
		assert.Empty(t, tokenize(t, ``))
	})

	t.Run(`placeholders and slots`, func(t *testing.T) {
		assert.Equal(
			t,
			[]Token{
				{`select`, TokenTypeText},
				{` `, TokenTypeWhitespace},
				{`?`, TokenTypePlaceholder},
				{`,`, TokenTypeText},
				{` `, TokenTypeWhitespace},
				{`{}`, TokenTypeSlot},
				{`,`, TokenTypeText},
				{` `, TokenTypeWhitespace},
				{`$`, TokenTypeText},
				{`{}`, TokenTypeSlot},
			},
			tokenize(t, `select ?, {}, ${}`),
		)
	})

	t.Run(`quotes and comments`, func(t *testing.T) {
		assert.Equal(
			t,
			[]Token{
				{`'?{}'`, TokenTypeQuotedSingle},
				{`"?"`, TokenTypeQuotedDouble},
				{"`?`", TokenTypeQuotedGrave},
				{`[?]`, TokenTypeQuotedBracket},
				{"-- ?\n", TokenTypeCommentLine},
				{`/* {} */`, TokenTypeCommentBlock},
			},
			tokenize(t, "'?{}'\"?\"`?`[?]-- ?\n/* {} */"),
		)
	})

	t.Run(`parameter syntaxes`, func(t *testing.T) {
		assert.Equal(
			t,
			[]Token{
				{`?12`, TokenTypeNumberedParam},
				{` `, TokenTypeWhitespace},
				{`$3`, TokenTypeOrdinalParam},
				{` `, TokenTypeWhitespace},
				{`:one`, TokenTypeNamedParam},
				{` `, TokenTypeWhitespace},
				{`@two`, TokenTypeNamedParam},
				{` `, TokenTypeWhitespace},
				{`$three`, TokenTypeNamedParam},
			},
			tokenize(t, `?12 $3 :one @two $three`),
		)
	})

	t.Run(`lone prefixes are text`, func(t *testing.T) {
		assert.Equal(
			t,
			[]Token{{`a:`, TokenTypeText}, {` `, TokenTypeWhitespace}, {`@`, TokenTypeText}},
			tokenize(t, `a: @`),
		)
	})

	t.Run(`round trip`, func(t *testing.T) {
		const src = "select * from [t] where a = ? and b = '{}' -- c\n and d = {} /* e */"
		var out string
		for _, token := range tokenize(t, src) {
			out += token.Text
		}
		assert.Equal(t, src, out)
	})

	t.Run(`unterminated`, func(t *testing.T) {
		for _, src := range []string{`'one`, `"one`, "`one", `[one`, `/* one`} {
			tok := Tokenizer{Source: src}
			_, err := tok.All()
			assert.ErrorIs(t, err, ErrUnexpectedEOF, src)
		}
	})

	t.Run(`transform`, func(t *testing.T) {
		tok := Tokenizer{
			Source: `select /* one */ 1`,
			Transform: func(val Token) Token {
				if val.Type == TokenTypeCommentBlock {
					return Token{}
				}
				return val
			},
		}
		out, err := tok.All()
		require.NoError(t, err)
		assert.Equal(
			t,
			[]Token{
				{`select`, TokenTypeText},
				{` `, TokenTypeWhitespace},
				{` `, TokenTypeWhitespace},
				{`1`, TokenTypeText},
			},
			out,
		)
	})
}

func Test_countPlaceholders(t *testing.T) {
	test := func(exp int, src string) {
		t.Helper()
		act, err := countPlaceholders(src)
		require.NoError(t, err)
		assert.Equal(t, exp, act)
	}

	test(0, ``)
	test(0, `select 1`)
	test(1, `select ?`)
	test(3, `select ?, ?, ?`)
	test(1, `select '?', "?", [?], ? -- ?`)
	test(2, `select ?/* ? */?`)

	for _, src := range []string{`select ?1`, `select $1`, `select :one`, `select @one`, `select $one`} {
		_, err := countPlaceholders(src)
		assert.ErrorIs(t, err, ErrUnexpectedParameter, src)
	}

	_, err := countPlaceholders(`select '?`)
	assert.ErrorIs(t, err, ErrUnexpectedEOF)
}

func Benchmark_tokenize(b *testing.B) {
	const src = `select * from users where id = ? and name = '{}' -- trailing comment`
	for range counter(b.N) {
		_, _ = countPlaceholders(src)
	}
}
