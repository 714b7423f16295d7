package sqlq

import (
	"strconv"
)

// Locking mode of a transaction. See the SQLite docs on "begin transaction".
type TxMode byte

const (
	TxDeferred TxMode = iota
	TxImmediate
	TxExclusive
)

// Implement `fmt.Stringer` for debug purposes.
func (self TxMode) String() string {
	switch self {
	case TxDeferred:
		return `deferred`
	case TxImmediate:
		return `immediate`
	case TxExclusive:
		return `exclusive`
	default:
		return `TxMode(` + strconv.Itoa(int(self)) + `)`
	}
}

func (self TxMode) begin() (string, error) {
	switch self {
	case TxDeferred:
		return `begin deferred`, nil
	case TxImmediate:
		return `begin immediate`, nil
	case TxExclusive:
		return `begin exclusive`, nil
	default:
		return ``, ErrInvalidInput.while(`beginning transaction`).because(
			errf(`unknown transaction mode %v`, self),
		)
	}
}

/*
Runs the function in a deferred transaction. Commits if it returns nil. Rolls
back if it returns an error or panics, then returns the error or re-panics.
A failed commit is rolled back and its error returned.

Calls may be nested: a call made while a transaction is open, including one
started manually via "begin", runs in a savepoint, so its failure rolls back
only its own work. Inner calls keep the mode of the outermost transaction.
*/
func (self *DB) ExecuteTransaction(fn func() error) error {
	return self.transact(TxDeferred, fn)
}

// Same as `.ExecuteTransaction` but begins with "begin immediate", taking the
// write lock upfront.
func (self *DB) ExecuteTransactionImmediate(fn func() error) error {
	return self.transact(TxImmediate, fn)
}

// Same as `.ExecuteTransaction` but begins with "begin exclusive".
func (self *DB) ExecuteTransactionExclusive(fn func() error) error {
	return self.transact(TxExclusive, fn)
}

/*
Generic variant of `DB.ExecuteTransaction` that returns the result of the unit
of work. On failure, returns the zero `T`.

	id, err := sqlq.Transaction(db, sqlq.TxImmediate, func() (int64, error) {
		res, err := db.Run(sqlq.Q(`insert into users (name) values ({})`, name))
		return res.LastInsertRowid, err
	})
*/
func Transaction[T any](db *DB, mode TxMode, fn func() (T, error)) (T, error) {
	var out T
	if fn == nil {
		return out, ErrInvalidInput.while(`running transaction`).because(ErrStr(`nil function`))
	}

	err := db.transact(mode, func() (err error) {
		out, err = fn()
		return
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

func (self *DB) transact(mode TxMode, fn func() error) (err error) {
	if fn == nil {
		return ErrInvalidInput.while(`running transaction`).because(ErrStr(`nil function`))
	}
	if err := self.checkOpen(`beginning transaction`); err != nil {
		return err
	}

	begin, commit, rollback, err := self.txStatements(mode)
	if err != nil {
		return err
	}

	if err := self.execTx(begin); err != nil {
		return err
	}

	depth := self.enterTx()
	self.log.Debug(`transaction begun`, `mode`, mode.String(), `depth`, depth)
	defer self.leaveTx()

	done := false
	defer func() {
		if done {
			return
		}
		val := recover()
		self.rollbackTx(rollback, depth)
		if val != nil {
			panic(val)
		}
	}()

	err = fn()
	if err != nil {
		done = true
		self.rollbackTx(rollback, depth)
		return err
	}

	err = self.execTx(commit)
	done = true
	if err != nil {
		self.rollbackTx(rollback, depth)
		return err
	}

	self.log.Debug(`transaction committed`, `depth`, depth)
	return nil
}

/*
Outside a transaction, uses "begin", "commit" and "rollback". Inside one,
whether started by this package or by a manual "begin", uses a savepoint named
after the nesting depth.
*/
func (self *DB) txStatements(mode TxMode) (begin, commit string, rollback []string, err error) {
	self.mu.Lock()
	depth := self.txDepth
	self.mu.Unlock()

	if !self.InTransaction() {
		begin, err = mode.begin()
		return begin, `commit`, []string{`rollback`}, err
	}

	name := `sqlq_savepoint_` + strconv.Itoa(depth)
	return `savepoint ` + name,
		`release ` + name,
		[]string{`rollback to ` + name, `release ` + name},
		nil
}

func (self *DB) execTx(src string) error {
	_, err := self.conn.ExecContext(ctxBg(), src)
	return err
}

func (self *DB) rollbackTx(src []string, depth int) {
	for _, val := range src {
		if err := self.execTx(val); err != nil {
			self.log.Warn(`failed to roll back transaction`, `statement`, val, `depth`, depth, `error`, err)
			return
		}
	}
	self.log.Debug(`transaction rolled back`, `depth`, depth)
}

func (self *DB) enterTx() int {
	self.mu.Lock()
	defer self.mu.Unlock()
	self.txDepth++
	return self.txDepth
}

func (self *DB) leaveTx() {
	self.mu.Lock()
	defer self.mu.Unlock()
	self.txDepth--
}
