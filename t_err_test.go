package sqlq

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type FakeTracedErr string

func (self FakeTracedErr) Error() string { return string(self) }

func (self FakeTracedErr) Format(out fmt.State, _ rune) {
	try1(io.WriteString(out, self.Error()))

	if out.Flag('+') {
		if self != `` {
			try1(io.WriteString(out, `; `))
		}
		try1(io.WriteString(out, `fake stack trace`))
		return
	}
}

func Benchmark_errf(b *testing.B) {
	for range counter(b.N) {
		_ = errf(`error %v`, `message`)
	}
}

func TestErr_formatting(t *testing.T) {
	test := func(src Err, expBase, expPlus string) {
		t.Helper()
		assert.Equal(t, expBase, src.Error())
		assert.Equal(t, expBase, fmt.Sprintf(`%v`, src))
		assert.Equal(t, expPlus, fmt.Sprintf(`%+v`, src))
	}

	test(Err{}, ``, ``)

	test(
		Err{While: `doing some operation`},
		`[sqlq] error while doing some operation`,
		`[sqlq] error while doing some operation`,
	)

	test(
		Err{Cause: ErrStr(`some cause`)},
		`[sqlq] error: some cause`,
		`[sqlq] error: some cause`,
	)

	test(
		Err{
			Code:  ErrCodeInvalidInput,
			While: `doing some operation`,
			Cause: ErrStr(`some cause`),
		},
		`[sqlq] InvalidInput while doing some operation: some cause`,
		`[sqlq] InvalidInput while doing some operation: some cause`,
	)

	test(
		Err{
			While: `doing some operation`,
			Cause: FakeTracedErr(`some cause`),
		},
		`[sqlq] error while doing some operation: some cause`,
		`[sqlq] error while doing some operation: some cause; fake stack trace`,
	)
}

// Slice-based errors are not comparable.
type multiErr []error

func (self multiErr) Error() string { return errors.Join(self...).Error() }

func (self multiErr) Unwrap() []error { return self }

func TestErr_uncomparableCause(t *testing.T) {
	err := Err{
		While: `closing statements`,
		Cause: multiErr{ErrStr(`one`), ErrStr(`two`)},
	}

	const exp = "[sqlq] error while closing statements: one\ntwo"
	assert.NotPanics(t, func() { assert.Equal(t, exp, err.Error()) })
	assert.NotPanics(t, func() { assert.Equal(t, exp, fmt.Sprintf(`%+v`, err)) })
	assert.NotPanics(t, func() { assert.ErrorIs(t, err, ErrStr(`two`)) })
}

func TestErr_Is(t *testing.T) {
	err := ErrArityMismatch.while(`composing query`).because(ErrStr(`details`))

	assert.ErrorIs(t, err, ErrArityMismatch)
	assert.NotErrorIs(t, err, ErrInvalidRawComposition)
	assert.ErrorIs(t, err, ErrStr(`details`))

	t.Run(`unknown code never matches by code`, func(t *testing.T) {
		assert.NotErrorIs(t, Err{Cause: ErrStr(`one`)}, Err{Cause: ErrStr(`two`)})
	})

	t.Run(`wrapped`, func(t *testing.T) {
		wrapped := fmt.Errorf(`outer: %w`, err)
		assert.ErrorIs(t, wrapped, ErrArityMismatch)

		var target Err
		require.True(t, errors.As(wrapped, &target))
		assert.Equal(t, ErrCodeArityMismatch, target.Code)
		assert.Equal(t, `composing query`, target.While)
	})

	t.Run(`unwrap`, func(t *testing.T) {
		assert.Equal(t, ErrStr(`details`), errors.Unwrap(err))
	})
}
