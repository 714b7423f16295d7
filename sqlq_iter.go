package sqlq

import (
	"database/sql"
	"iter"
	"slices"
)

/*
Lazy, forward-only, single-pass sequence of records returned by `DB.Iterate`.
Records are pulled from the engine on demand. The engine cursor is released
when the sequence is exhausted, when it fails, or on `.Close`. To iterate
again, call `DB.Iterate` again, which re-executes the query from the start.

Not safe for concurrent use.

	iter, err := db.Iterate(query)
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.Next() {
		fmt.Println(iter.Record())
	}
	return iter.Err()
*/
type Iter struct {
	db   *DB
	stmt *Stmt
	rows *sql.Rows
	cols []string
	safe bool
	rec  Record
	err  error
	done bool
}

/*
Advances to the next record. Returns false when the sequence is exhausted or
failed, after which `.Err` reports the failure, if any. Records produced before
a failure remain valid.
*/
func (self *Iter) Next() bool {
	if self == nil || self.done {
		return false
	}

	if !self.rows.Next() {
		self.err = self.rows.Err()
		self.finish()
		return false
	}

	rec, err := scanRecord(self.rows, self.cols, self.safe)
	if err != nil {
		self.err = err
		self.finish()
		return false
	}

	self.rec = rec
	return true
}

// Returns the current record. Valid after `.Next` returned true.
func (self *Iter) Record() Record {
	if self == nil {
		return Record{}
	}
	return self.rec
}

// Returns the failure that ended the sequence, if any.
func (self *Iter) Err() error {
	if self == nil {
		return nil
	}
	return self.err
}

// Releases the engine cursor. Idempotent. Safe to call after exhaustion.
func (self *Iter) Close() error {
	if self == nil || self.done {
		return nil
	}
	return self.finish()
}

/*
Adapts the iterator for range-over-func. Single-pass like the iterator itself.
Breaking out of the loop closes the iterator. A failure is yielded once, as the
last pair, with an empty record.

	for rec, err := range iter.Seq() {
		...
	}
*/
func (self *Iter) Seq() iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		defer self.Close()

		for self.Next() {
			if !yield(self.rec, nil) {
				return
			}
		}
		if err := self.Err(); err != nil {
			yield(Record{}, err)
		}
	}
}

// Drains the remaining records into a non-nil slice and closes the iterator.
func (self *Iter) Collect() ([]Record, error) {
	out := []Record{}
	for rec, err := range self.Seq() {
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (self *Iter) finish() error {
	self.done = true

	err := self.rows.Close()
	if self.stmt != nil {
		err = firstErr(err, self.stmt.release())
	}
	if self.db != nil {
		self.db.forgetIter(self)
	}
	return err
}

func scanRecord(rows *sql.Rows, cols []string, safe bool) (Record, error) {
	buf := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for ind := range buf {
		ptrs[ind] = &buf[ind]
	}

	err := rows.Scan(ptrs...)
	if err != nil {
		return Record{}, err
	}

	vals := make([]Value, len(buf))
	for ind, src := range buf {
		val, err := engineValue(src)
		if err != nil {
			return Record{}, err
		}
		if !safe {
			val = val.native()
		}
		vals[ind] = val
	}

	return Record{Columns: slices.Clone(cols), Values: vals}, nil
}

/*
Converts a value produced by the engine. The driver returns `time.Time` for
columns declared as dates and `bool` for columns declared as booleans; they
become text and integers, like every other value bound by this package. Text in
date-typed columns is therefore normalized: a stored "2024-01-01" is returned as
"2024-01-01 00:00:00+00:00". Declare such columns as text to get them back
verbatim.
*/
func engineValue(src any) (Value, error) {
	switch src := src.(type) {
	case nil:
		return Value{}, nil
	case int64:
		return Int(src), nil
	case float64:
		return Float(src), nil
	case string:
		return Text(src), nil
	case []byte:
		return Blob(src), nil
	default:
		return ValueOf(src)
	}
}

func scanAll(rows *sql.Rows, safe bool) ([]Record, error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows, cols, safe)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, rows.Close()
}

func scanFirst(rows *sql.Rows, safe bool) (Record, bool, error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return Record{}, false, err
	}

	if !rows.Next() {
		return Record{}, false, rows.Err()
	}

	rec, err := scanRecord(rows, cols, safe)
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, rows.Close()
}
