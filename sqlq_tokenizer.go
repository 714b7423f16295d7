package sqlq

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

/*
Partial SQL tokenizer used internally by `Tpl` and `Raw`, in particular to find
`{}` substitution slots and to count `?` placeholders outside quoted strings,
quoted identifiers and comments.

Goals:

	* Correctly parse whitespace, comments, quoted strings and identifiers,
	  and every parameter syntax understood by SQLite.

	* Decently fast and allocation-free tokenization.

Non-goals:

	* Full SQL parser.

The tokenizer panics on unterminated quotes and block comments. Callers in this
package convert those panics into errors.
*/
type Tokenizer struct {
	Source    string
	Transform func(Token) Token
	cursor    int
	next      Token
}

/*
Returns the next token if possible. When the tokenizer reaches the end, this
returns an empty `Token{}`. Call `Token.IsInvalid` to detect the end.
*/
func (self *Tokenizer) Next() Token {
	for {
		token := self.nextToken()
		if token.IsInvalid() {
			return Token{}
		}

		if self.Transform != nil {
			token = self.Transform(token)
			if token.IsInvalid() {
				continue
			}
		}

		return token
	}
}

/*
Returns all remaining tokens. Unlike `.Next`, this converts tokenizer panics
into errors.
*/
func (self *Tokenizer) All() (out []Token, err error) {
	defer rec(&err)
	for {
		token := self.Next()
		if token.IsInvalid() {
			return
		}
		out = append(out, token)
	}
}

func (self *Tokenizer) nextToken() Token {
	next := self.next
	if !next.IsInvalid() {
		self.next = Token{}
		return next
	}

	start := self.cursor

	for self.more() {
		mid := self.cursor
		if self.maybeWhitespace(); self.cursor > mid {
			return self.choose(start, mid, TokenTypeWhitespace)
		}
		if self.maybeQuotedSingle(); self.cursor > mid {
			return self.choose(start, mid, TokenTypeQuotedSingle)
		}
		if self.maybeQuotedDouble(); self.cursor > mid {
			return self.choose(start, mid, TokenTypeQuotedDouble)
		}
		if self.maybeQuotedGrave(); self.cursor > mid {
			return self.choose(start, mid, TokenTypeQuotedGrave)
		}
		if self.maybeQuotedBracket(); self.cursor > mid {
			return self.choose(start, mid, TokenTypeQuotedBracket)
		}
		if self.maybeCommentLine(); self.cursor > mid {
			return self.choose(start, mid, TokenTypeCommentLine)
		}
		if self.maybeCommentBlock(); self.cursor > mid {
			return self.choose(start, mid, TokenTypeCommentBlock)
		}
		if self.maybeSlot(); self.cursor > mid {
			return self.choose(start, mid, TokenTypeSlot)
		}
		if self.maybeNumberedParam(); self.cursor > mid {
			return self.choose(start, mid, TokenTypeNumberedParam)
		}
		if self.maybePlaceholder(); self.cursor > mid {
			return self.choose(start, mid, TokenTypePlaceholder)
		}
		if self.maybeOrdinalParam(); self.cursor > mid {
			return self.choose(start, mid, TokenTypeOrdinalParam)
		}
		if self.maybeNamedParam(); self.cursor > mid {
			return self.choose(start, mid, TokenTypeNamedParam)
		}
		self.skipChar()
	}

	if self.cursor > start {
		return Token{self.from(start), TokenTypeText}
	}
	return Token{}
}

func (self *Tokenizer) choose(start, mid int, typ TokenType) Token {
	tok := Token{self.from(mid), typ}
	if mid > start {
		self.setNext(tok)
		return Token{self.Source[start:mid], TokenTypeText}
	}
	return tok
}

func (self *Tokenizer) setNext(val Token) {
	if !self.next.IsInvalid() {
		panic(ErrInternal.while(`tokenizing SQL`).because(errf(
			`attempted to overwrite non-empty pending token %#v with %#v`,
			self.next, val,
		)))
	}
	self.next = val
}

func (self *Tokenizer) maybeWhitespace() {
	for self.more() && charsetWhitespace.has(self.headByte()) {
		self.skipBytes(1)
	}
}

// Doubled quotes inside are escapes, which this handles as two adjacent
// quoted tokens. Both are non-text, which is all that matters here.
func (self *Tokenizer) maybeQuotedSingle() {
	self.maybeStringBetweenBytes(quoteSingle, quoteSingle)
}

func (self *Tokenizer) maybeQuotedDouble() {
	self.maybeStringBetweenBytes(quoteDouble, quoteDouble)
}

func (self *Tokenizer) maybeQuotedGrave() {
	self.maybeStringBetweenBytes(quoteGrave, quoteGrave)
}

func (self *Tokenizer) maybeQuotedBracket() {
	self.maybeStringBetweenBytes(quoteBracketOpen, quoteBracketClose)
}

func (self *Tokenizer) maybeCommentLine() {
	if !self.skippedString(commentLinePrefix) {
		return
	}
	for self.more() && !self.skippedNewline() && self.skippedChar() {
	}
}

func (self *Tokenizer) maybeCommentBlock() {
	self.maybeStringBetween(commentBlockPrefix, commentBlockSuffix)
}

func (self *Tokenizer) maybeSlot() {
	_ = self.skippedString(slotText)
}

func (self *Tokenizer) maybePlaceholder() {
	_ = self.skippedByte(placeholderPrefix)
}

// SQLite-style "?NNN".
func (self *Tokenizer) maybeNumberedParam() {
	start := self.cursor
	if !self.skippedByte(placeholderPrefix) {
		return
	}
	if !self.skippedDigits() {
		self.cursor = start
	}
}

// Postgres-style "$N", accepted by SQLite as a named parameter.
func (self *Tokenizer) maybeOrdinalParam() {
	start := self.cursor
	if !self.skippedByte(ordinalParamPrefix) {
		return
	}
	if !self.skippedDigits() {
		self.cursor = start
	}
}

// ":name", "@name" and "$name".
func (self *Tokenizer) maybeNamedParam() {
	start := self.cursor
	if !self.skippedByteFromCharset(charsetNamedParamPrefix) {
		return
	}
	if !self.skippedIdent() {
		self.cursor = start
	}
}

func (self *Tokenizer) skippedNewline() bool {
	start := self.cursor
	self.maybeNewline()
	return self.cursor > start
}

func (self *Tokenizer) maybeNewline() {
	self.skipBytes(leadingNewlineSize(self.rest()))
}

func (self *Tokenizer) skippedChar() bool {
	start := self.cursor
	self.skipChar()
	return self.cursor > start
}

func (self *Tokenizer) skipChar() {
	_, size := utf8.DecodeRuneInString(self.rest())
	self.skipBytes(size)
}

func (self *Tokenizer) skippedDigits() bool {
	start := self.cursor
	self.maybeSkipDigits()
	return self.cursor > start
}

func (self *Tokenizer) maybeSkipDigits() {
	for self.more() && charsetDigitDec.has(self.headByte()) {
		self.skipBytes(1)
	}
}

func (self *Tokenizer) skippedIdent() bool {
	start := self.cursor
	self.maybeIdent()
	return self.cursor > start
}

func (self *Tokenizer) maybeIdent() {
	if !self.more() || !self.skippedByteFromCharset(charsetIdentStart) {
		return
	}
	for self.more() && self.skippedByteFromCharset(charsetIdent) {
	}
}

func (self *Tokenizer) maybeStringBetween(prefix, suffix string) {
	if !self.skippedString(prefix) {
		return
	}

	for self.more() {
		if self.skippedString(suffix) {
			return
		}
		self.skipChar()
	}

	panic(ErrUnexpectedEOF.while(`tokenizing SQL`).because(
		fmt.Errorf(`expected closing %q, got unexpected %w`, suffix, io.EOF),
	))
}

func (self *Tokenizer) maybeStringBetweenBytes(prefix, suffix byte) {
	if !self.skippedByte(prefix) {
		return
	}

	for self.more() {
		if self.skippedByte(suffix) {
			return
		}
		self.skipChar()
	}

	panic(ErrUnexpectedEOF.while(`tokenizing SQL`).because(
		fmt.Errorf(`expected closing %q, got unexpected %w`, rune(suffix), io.EOF),
	))
}

func (self *Tokenizer) skipBytes(val int) {
	self.cursor += val
}

func (self *Tokenizer) more() bool {
	return self.cursor < len(self.Source)
}

func (self *Tokenizer) rest() string {
	return self.Source[self.cursor:]
}

func (self *Tokenizer) from(start int) string {
	return self.Source[start:self.cursor]
}

func (self *Tokenizer) headByte() byte {
	return self.Source[self.cursor]
}

func (self *Tokenizer) skippedByte(val byte) bool {
	if self.more() && self.headByte() == val {
		self.skipBytes(1)
		return true
	}
	return false
}

func (self *Tokenizer) skippedByteFromCharset(val *charset) bool {
	if self.more() && val.has(self.headByte()) {
		self.skipBytes(1)
		return true
	}
	return false
}

func (self *Tokenizer) skippedString(val string) bool {
	if strings.HasPrefix(self.rest(), val) {
		self.skipBytes(len(val))
		return true
	}
	return false
}

const (
	TokenTypeInvalid TokenType = iota
	TokenTypeText
	TokenTypeWhitespace
	TokenTypeQuotedSingle
	TokenTypeQuotedDouble
	TokenTypeQuotedGrave
	TokenTypeQuotedBracket
	TokenTypeCommentLine
	TokenTypeCommentBlock
	TokenTypeSlot
	TokenTypePlaceholder
	TokenTypeNumberedParam
	TokenTypeOrdinalParam
	TokenTypeNamedParam
)

// Part of `Token`.
type TokenType byte

// Represents an arbitrary chunk of SQL text parsed by `Tokenizer`.
type Token struct {
	Text string
	Type TokenType
}

/*
True if the token's type is `TokenTypeInvalid`. This is used to detect end of
iteration when calling `(*Tokenizer).Next`.
*/
func (self Token) IsInvalid() bool {
	return self.Type == TokenTypeInvalid
}

/*
True for parameter syntaxes other than the plain positional "?": "?NNN",
"$N", ":name", "@name", "$name". Queries produced by this package never
contain them.
*/
func (self Token) IsForeignParam() bool {
	switch self.Type {
	case TokenTypeNumberedParam, TokenTypeOrdinalParam, TokenTypeNamedParam:
		return true
	default:
		return false
	}
}

// Implement `fmt.Stringer` for debug purposes.
func (self Token) String() string { return self.Text }

/*
Counts `?` placeholders in the given SQL text. Fails with
`ErrUnexpectedParameter` on any other parameter syntax, and with
`ErrUnexpectedEOF` on unterminated quotes or comments.
*/
func countPlaceholders(src string) (count int, err error) {
	defer rec(&err)

	tok := Tokenizer{Source: src}
	for {
		token := tok.Next()
		if token.IsInvalid() {
			return
		}
		if token.Type == TokenTypePlaceholder {
			count++
			continue
		}
		if token.IsForeignParam() {
			return 0, ErrUnexpectedParameter.while(`scanning SQL`).because(errf(
				`unexpected parameter %q; only positional "?" placeholders are supported`,
				token.Text,
			))
		}
	}
}
