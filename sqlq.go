package sqlq

import (
	"context"
	"database/sql"
)

/*
Appends a text repesentation. Sometimes allows better efficiency than
`fmt.Stringer`. Implemented by `Value` and `Query`.
*/
type Appender interface {
	Append([]byte) []byte
}

/*
Compiles SQL text into a statement. This is the only part of the engine used by
`StmtCache`. Implemented by `*sql.Conn`, `*sql.DB` and `*sql.Tx`.
*/
type Preparer interface {
	PrepareContext(context.Context, string) (*sql.Stmt, error)
}

/*
Per-call execution options, accepted by every query-executing method of `DB`.
When several are provided, the last one wins.
*/
type Options struct {
	/**
	When true, every INTEGER column is decoded as `KindInteger`, losslessly.
	When false, integers outside ±(2^53-1) are decoded as `KindFloat`, which is
	lossy, and other integers remain `KindInteger`.
	*/
	SafeIntegers bool
}

func lastOptions(src []Options) Options {
	if len(src) > 0 {
		return src[len(src)-1]
	}
	return Options{}
}

// Execution summary returned by `(*DB).Run`.
type RunResult struct {
	Changes         int64 `json:"changes"`
	LastInsertRowid int64 `json:"lastInsertRowid"`
}

var (
	_ = Appender(Value{})
	_ = Appender(Query{})
	_ = Preparer((*sql.Conn)(nil))
	_ = Preparer((*sql.DB)(nil))
	_ = Preparer((*sql.Tx)(nil))
)
