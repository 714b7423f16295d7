package sqlq

import (
	"context"
	"database/sql"
	"fmt"
	r "reflect"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type Embed struct {
	Id      int64  `db:"embed_id"`
	Name    string `db:"embed_name"`
	private string `db:"embed_private"` // nolint:unused
	Skip    string `db:"-"`
}

type Outer struct {
	Embed
	Id       int64  `db:"outer_id"`
	Name     string `db:"outer_name"`
	Untagged string
}

type User struct {
	Id   int64  `db:"id"`
	Name string `db:"name"`
}

func counter(val int) []struct{} { return make([]struct{}, val) }

func vals(src ...any) []Value {
	out := make([]Value, 0, len(src))
	for _, val := range src {
		out = append(out, TryValueOf(val))
	}
	return out
}

func openMem(t testing.TB, opts ...Option) *DB {
	t.Helper()
	db, err := Open(`:memory:`, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// Fresh in-memory database with an empty `users` table.
func openUsers(t testing.TB, opts ...Option) *DB {
	t.Helper()
	db := openMem(t, opts...)
	require.NoError(t, db.Execute(Q(`create table users (id integer primary key, name text not null)`)))
	return db
}

func insertUser(t testing.TB, db *DB, name string) RunResult {
	t.Helper()
	res, err := db.Run(Q(`insert into users (name) values ({})`, name))
	require.NoError(t, err)
	return res
}

func panics(t testing.TB, msg string, fun func()) {
	t.Helper()
	val := catchAny(fun)

	if val == nil {
		t.Fatalf(`expected %v to panic, found no panic`, funcName(fun))
	}

	str := fmt.Sprint(val)
	if !strings.Contains(str, msg) {
		t.Fatalf(
			`expected %v to panic with a message containing %q, found %q`,
			funcName(fun), msg, str,
		)
	}
}

func funcName(val any) string {
	return runtime.FuncForPC(r.ValueOf(val).Pointer()).Name()
}

func catchAny(fun func()) (val any) {
	defer recAny(&val)
	fun()
	return
}

func recAny(ptr *any) { *ptr = recover() }

// Wraps a real preparer, counting compilations per source text.
type countingPreparer struct {
	Preparer
	mu    sync.Mutex
	count map[string]int
}

func newCountingPreparer(inner Preparer) *countingPreparer {
	return &countingPreparer{Preparer: inner, count: map[string]int{}}
}

func (self *countingPreparer) PrepareContext(ctx context.Context, src string) (*sql.Stmt, error) {
	self.mu.Lock()
	self.count[src]++
	self.mu.Unlock()
	return self.Preparer.PrepareContext(ctx, src)
}

func (self *countingPreparer) Count(src string) int {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.count[src]
}

func (self *countingPreparer) Total() (out int) {
	self.mu.Lock()
	defer self.mu.Unlock()
	for _, val := range self.count {
		out += val
	}
	return
}

// Raw engine connection for cache tests, without a `DB` in front.
func openConn(t testing.TB) *sql.Conn {
	t.Helper()

	pool, err := sql.Open(DriverName, `:memory:`)
	require.NoError(t, err)
	pool.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = pool.Close() })

	conn, err := pool.Conn(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}
