package sqlq

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mattn/go-sqlite3"
)

// Name of the go-sqlite3 driver registered with "database/sql".
const DriverName = `sqlite3`

/*
Connection facade over a single SQLite connection. Owns the engine handle and
the statement cache, which are never shared with other `DB` instances.

Every query goes through the cache: statements are compiled once per distinct
source text and reused. The exception is `.Execute`, which runs
multi-statement scripts directly.

`Open` until `.Close`, then `Closed` permanently: every operation fails with
`ErrClosed`. Not designed for concurrent use; serialize access externally or
open one `DB` per worker.
*/
type DB struct {
	conf  Config
	log   *slog.Logger
	pool  *sql.DB
	conn  *sql.Conn
	cache *StmtCache

	mu      sync.Mutex
	closed  bool
	iters   map[*Iter]struct{}
	txDepth int
}

/*
Opens a database at the given path: a file path, a "file:" URI, or ":memory:".
Missing parent directories of file paths are created.

	db, err := sqlq.Open(`:memory:`)
	db, err := sqlq.Open(`data/app.db`, sqlq.WithJournalMode(`WAL`))
*/
func Open(path string, opts ...Option) (*DB, error) {
	conf := DefaultConfig()
	conf.Path = path
	for _, opt := range opts {
		if opt != nil {
			opt(&conf)
		}
	}
	return OpenConfig(conf)
}

// Opens a database with the given configuration. See `Config`.
func OpenConfig(conf Config) (*DB, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	if !conf.IsMemory() && !strings.HasPrefix(conf.Path, `file:`) && !conf.ReadOnly {
		dir := filepath.Dir(conf.Path)
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	pool, err := sql.Open(DriverName, conf.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One engine connection per DB. In-memory databases, statements and
	// transactions all live on it.
	pool.SetMaxOpenConns(1)
	pool.SetMaxIdleConns(1)
	pool.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(ctxBg(), openTimeout)
	defer cancel()

	conn, err := pool.Conn(ctx)
	if err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		_ = pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	log := conf.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	log = log.With(`component`, `sqlq`, `path`, conf.Path)

	out := &DB{
		conf:  conf,
		log:   log,
		pool:  pool,
		conn:  conn,
		cache: NewStmtCache(conn, conf.StatementCacheSize, log),
		iters: map[*Iter]struct{}{},
	}

	log.Info(`database opened`,
		`journal_mode`, conf.JournalMode,
		`read_only`, conf.ReadOnly,
		`statement_cache_size`, conf.StatementCacheSize,
	)
	return out, nil
}

// Returns the path the database was opened with.
func (self *DB) Path() string { return self.conf.Path }

// Returns the configuration the database was opened with.
func (self *DB) Config() Config { return self.conf }

// Returns the statement cache counters.
func (self *DB) Stats() CacheStats { return self.cache.Stats() }

/*
Executes the query for its effect and returns the number of changed rows and
the last inserted rowid, as reported by the engine.
*/
func (self *DB) Run(query Query, opts ...Options) (RunResult, error) {
	stmt, err := self.statementFor(`running query`, query, opts)
	if err != nil {
		return RunResult{}, err
	}

	res, err := self.exec(stmt, query.args())
	if err != nil {
		return RunResult{}, err
	}

	changes, err := res.RowsAffected()
	if err != nil {
		return RunResult{}, err
	}

	lastID, err := res.LastInsertId()
	if err != nil {
		return RunResult{}, err
	}

	return RunResult{Changes: changes, LastInsertRowid: lastID}, nil
}

// Executes the query and returns the first record, or false if there are none.
func (self *DB) Get(query Query, opts ...Options) (Record, bool, error) {
	stmt, err := self.statementFor(`getting record`, query, opts)
	if err != nil {
		return Record{}, false, err
	}

	rows, err := self.query(stmt, query.args())
	if err != nil {
		return Record{}, false, err
	}
	return scanFirst(rows, stmt.SafeIntegers())
}

// Executes the query and returns every record, in order. The slice is never
// nil on success.
func (self *DB) All(query Query, opts ...Options) ([]Record, error) {
	stmt, err := self.statementFor(`getting records`, query, opts)
	if err != nil {
		return nil, err
	}

	rows, err := self.query(stmt, query.args())
	if err != nil {
		return nil, err
	}
	return scanAll(rows, stmt.SafeIntegers())
}

/*
Executes the query and returns a lazy iterator over its records. The
safe-integers mode is captured when the iterator is created. The caller must
exhaust or close the iterator; `.Close` on the `DB` closes any that remain.
*/
func (self *DB) Iterate(query Query, opts ...Options) (*Iter, error) {
	stmt, err := self.statementFor(`iterating records`, query, opts)
	if err != nil {
		return nil, err
	}

	safe := stmt.SafeIntegers()

	rows, err := self.query(stmt, query.args())
	if err != nil {
		return nil, err
	}
	stmt.acquire()

	cols, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		_ = stmt.release()
		return nil, err
	}

	out := &Iter{db: self, stmt: stmt, rows: rows, cols: cols, safe: safe}
	if !self.rememberIter(out) {
		_ = out.finish()
		return nil, errClosed(`iterating records`)
	}
	return out, nil
}

/*
Executes one or more semicolon-separated statements directly, bypassing the
statement cache. Intended for schema changes and scripts. Queries with
parameters are rejected with `ErrUnsupportedParameterizedExecute` before the
engine is touched.
*/
func (self *DB) Execute(query Query) error {
	if err := self.checkQuery(`executing script`, query); err != nil {
		return err
	}

	if query.HasParameters() {
		return ErrUnsupportedParameterizedExecute.while(`executing script`).because(errf(
			"failed to execute(%v) because execute() doesn't support queries with parameters",
			query.jsonIndent(),
		))
	}

	if err := self.checkOpen(`executing script`); err != nil {
		return err
	}

	self.logQuery(query)
	_, err := self.conn.ExecContext(ctxBg(), query.source)
	return err
}

/*
Returns the cached compiled statement for the exact source text, compiling it
on first use, with the given safe-integers mode applied. See `StmtCache.Get`.
*/
func (self *DB) Statement(source string, opts ...Options) (*Stmt, error) {
	if err := self.checkOpen(`getting statement`); err != nil {
		return nil, err
	}
	return self.cache.Get(source, lastOptions(opts))
}

/*
True while a transaction is open on the connection, whether started by
`.ExecuteTransaction` and its variants or by a manual "begin".
*/
func (self *DB) InTransaction() bool {
	if self.checkOpen(`checking transaction state`) != nil {
		return false
	}

	var out bool
	err := self.conn.Raw(func(driverConn any) error {
		conn, ok := driverConn.(*sqlite3.SQLiteConn)
		if !ok {
			return ErrInternal.while(`checking transaction state`).because(
				errf(`unexpected driver connection %T`, driverConn),
			)
		}
		out = !conn.AutoCommit()
		return nil
	})
	if err != nil {
		self.mu.Lock()
		defer self.mu.Unlock()
		return self.txDepth > 0
	}
	return out
}

/*
Closes every remaining iterator, every cached statement, the connection and
the pool. Idempotent: closing again is a nop. Afterwards, every operation
fails with `ErrClosed`.
*/
func (self *DB) Close() error {
	self.mu.Lock()
	if self.closed {
		self.mu.Unlock()
		return nil
	}
	self.closed = true
	iters := make([]*Iter, 0, len(self.iters))
	for val := range self.iters {
		iters = append(iters, val)
	}
	self.mu.Unlock()

	var err error
	for _, val := range iters {
		err = firstErr(err, val.Close())
	}
	err = firstErr(err, self.cache.Close())
	err = firstErr(err, self.conn.Close())
	err = firstErr(err, self.pool.Close())

	if err != nil {
		self.log.Warn(`database closed with error`, `error`, err)
	} else {
		self.log.Info(`database closed`)
	}
	return err
}

// True after `.Close`.
func (self *DB) IsClosed() bool {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.closed
}

func (self *DB) statementFor(while string, query Query, opts []Options) (*Stmt, error) {
	if err := self.checkQuery(while, query); err != nil {
		return nil, err
	}
	if err := self.checkOpen(while); err != nil {
		return nil, err
	}
	self.logQuery(query)
	return self.cache.Get(query.source, lastOptions(opts))
}

/*
A compiled statement has a single engine cursor. While an iterator is reading
from it, other uses of the same source text run as one-off statements on the
connection instead.
*/
func (self *DB) query(stmt *Stmt, args []any) (*sql.Rows, error) {
	if stmt.isBusy() {
		return self.conn.QueryContext(ctxBg(), stmt.source, args...)
	}
	return stmt.query(args)
}

func (self *DB) exec(stmt *Stmt, args []any) (sql.Result, error) {
	if stmt.isBusy() {
		return self.conn.ExecContext(ctxBg(), stmt.source, args...)
	}
	return stmt.exec(args)
}

func (self *DB) checkQuery(while string, query Query) error {
	if !query.IsValid() {
		return ErrInvalidQuery.while(while).because(
			ErrStr(`query was not produced by the query composer`),
		)
	}
	return nil
}

func (self *DB) checkOpen(while string) error {
	if self == nil {
		return errClosed(while)
	}
	self.mu.Lock()
	defer self.mu.Unlock()
	if self.closed {
		return errClosed(while)
	}
	return nil
}

func (self *DB) logQuery(query Query) {
	if self.conf.LogQueries {
		self.log.Debug(`query`, `source`, query.source, `parameters`, len(query.params))
	}
}

func (self *DB) rememberIter(val *Iter) bool {
	self.mu.Lock()
	defer self.mu.Unlock()
	if self.closed {
		return false
	}
	self.iters[val] = struct{}{}
	return true
}

func (self *DB) forgetIter(val *Iter) {
	self.mu.Lock()
	defer self.mu.Unlock()
	delete(self.iters, val)
}

/*
Shortcut for `DB.Get` followed by `Record.Decode` into a new `T`. Returns false
if there are no records.

	type User struct {
		Id   int64  `db:"id"`
		Name string `db:"name"`
	}

	user, ok, err := sqlq.GetAs[User](db, sqlq.Q(`select * from users where id = {}`, 1))
*/
func GetAs[T any](db *DB, query Query, opts ...Options) (T, bool, error) {
	var out T

	rec, ok, err := db.Get(query, opts...)
	if err != nil || !ok {
		return out, ok, err
	}

	if err := rec.Decode(&out); err != nil {
		var zero T
		return zero, false, err
	}
	return out, true, nil
}

// Shortcut for `DB.All` followed by `Record.Decode` of every record into `T`.
func AllAs[T any](db *DB, query Query, opts ...Options) ([]T, error) {
	recs, err := db.All(query, opts...)
	if err != nil {
		return nil, err
	}

	out := make([]T, len(recs))
	for ind, rec := range recs {
		if err := rec.Decode(&out[ind]); err != nil {
			return nil, err
		}
	}
	return out, nil
}
