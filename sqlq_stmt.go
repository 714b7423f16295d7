package sqlq

import (
	"database/sql"
	"log/slog"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

/*
Compiled statement owned by a `StmtCache`. For a given cache and source text,
the cache always returns the same `*Stmt`. Valid only while the owning
connection is open. Never close it manually: the cache does that.
*/
type Stmt struct {
	source string
	stmt   *sql.Stmt
	safe   atomic.Bool

	// Guards the fields below. An evicted statement with open iterators is
	// closed when the last iterator is released.
	mu      sync.Mutex
	busy    int
	retired bool
	closed  bool
}

// Returns the exact source text the statement was compiled from.
func (self *Stmt) Source() string { return self.source }

// Current safe-integers mode. See `Options.SafeIntegers`.
func (self *Stmt) SafeIntegers() bool { return self.safe.Load() }

/*
Sets the safe-integers mode of the shared handle. Affects every subsequent use
of this statement until changed again. `StmtCache.Get` calls this on every
lookup.
*/
func (self *Stmt) SetSafeIntegers(val bool) *Stmt {
	self.safe.Store(val)
	return self
}

// True once the statement has been closed by its cache.
func (self *Stmt) IsClosed() bool {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.closed
}

func (self *Stmt) exec(args []any) (sql.Result, error) {
	return self.stmt.ExecContext(ctxBg(), args...)
}

func (self *Stmt) query(args []any) (*sql.Rows, error) {
	return self.stmt.QueryContext(ctxBg(), args...)
}

// True while an open iterator is reading from the statement.
func (self *Stmt) isBusy() bool {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.busy > 0
}

// Marks the statement as used by an open iterator.
func (self *Stmt) acquire() {
	self.mu.Lock()
	defer self.mu.Unlock()
	self.busy++
}

// Releases an iterator's hold, closing the statement if it was retired in the
// meantime.
func (self *Stmt) release() error {
	self.mu.Lock()
	defer self.mu.Unlock()

	if self.busy > 0 {
		self.busy--
	}
	if self.busy == 0 && self.retired {
		return self.closeLocked()
	}
	return nil
}

// Closes the statement now, or when the last iterator is released.
func (self *Stmt) retire() error {
	self.mu.Lock()
	defer self.mu.Unlock()

	self.retired = true
	if self.busy > 0 {
		return nil
	}
	return self.closeLocked()
}

func (self *Stmt) closeLocked() error {
	if self.closed {
		return nil
	}
	self.closed = true
	return self.stmt.Close()
}

// Counters reported by `StmtCache.Stats` and `DB.Stats`.
type CacheStats struct {
	Entries      int `json:"entries"`
	Compilations int `json:"compilations"`
	Hits         int `json:"hits"`
	Evictions    int `json:"evictions"`
}

/*
Per-connection mapping from exact source text to a compiled `*Stmt`. Source
text is used as-is, without any normalization. Each distinct source is compiled
at most once while it stays in the cache. Failed compilations are not cached.

With `size <= 0` the cache is unbounded, and entries live until `.Close`. With
`size > 0` the least recently used entries are evicted and closed once the
cache is full, and recompiled on next use.
*/
type StmtCache struct {
	prep Preparer
	log  *slog.Logger

	mu     sync.Mutex
	dict   map[string]*Stmt
	lru    *lru.Cache[string, *Stmt]
	stats  CacheStats
	closed bool
}

/*
Creates a cache compiling statements via the given preparer, typically the
pinned `*sql.Conn` of a `DB`. Nil logger is allowed.
*/
func NewStmtCache(prep Preparer, size int, log *slog.Logger) *StmtCache {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	out := &StmtCache{prep: prep, log: log}

	if size > 0 {
		out.lru = try1(lru.NewWithEvict(size, out.onEvict))
	} else {
		out.dict = map[string]*Stmt{}
	}
	return out
}

/*
Returns the compiled statement for the exact source text, compiling and
storing it on a miss. On every call, hit or miss, applies `opt.SafeIntegers`
to the returned shared handle. The safe-integers mode is not part of the key.

Compilation errors are returned unchanged, as reported by the engine.
*/
func (self *StmtCache) Get(source string, opt Options) (*Stmt, error) {
	self.mu.Lock()
	defer self.mu.Unlock()

	if self.closed {
		return nil, errClosed(`getting statement`)
	}

	stmt, ok := self.lookup(source)
	if ok {
		self.stats.Hits++
		return stmt.SetSafeIntegers(opt.SafeIntegers), nil
	}

	prepared, err := self.prep.PrepareContext(ctxBg(), source)
	if err != nil {
		return nil, err
	}

	stmt = &Stmt{source: source, stmt: prepared}
	self.stats.Compilations++
	self.log.Debug(`statement compiled`, `source`, source)
	self.store(source, stmt)

	return stmt.SetSafeIntegers(opt.SafeIntegers), nil
}

// True if the source text currently has a compiled statement. Doesn't affect
// recency.
func (self *StmtCache) Has(source string) bool {
	self.mu.Lock()
	defer self.mu.Unlock()

	if self.lru != nil {
		return self.lru.Contains(source)
	}
	_, ok := self.dict[source]
	return ok
}

// Number of cached statements.
func (self *StmtCache) Len() int {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.lenLocked()
}

// Returns a snapshot of the counters.
func (self *StmtCache) Stats() CacheStats {
	self.mu.Lock()
	defer self.mu.Unlock()

	out := self.stats
	out.Entries = self.lenLocked()
	return out
}

/*
Closes every cached statement and empties the cache. Statements still used by
open iterators are closed when those iterators are closed. Idempotent. After
this, `.Get` fails with `ErrClosed`.
*/
func (self *StmtCache) Close() error {
	self.mu.Lock()
	defer self.mu.Unlock()

	if self.closed {
		return nil
	}
	self.closed = true

	var out error
	if self.lru != nil {
		for _, key := range self.lru.Keys() {
			stmt, ok := self.lru.Peek(key)
			if ok {
				out = firstErr(out, stmt.retire())
			}
		}
		// Remove without the eviction callback, which would close them again
		// and count them as evictions.
		self.lru = nil
	} else {
		for _, stmt := range self.dict {
			out = firstErr(out, stmt.retire())
		}
		self.dict = nil
	}
	return out
}

func (self *StmtCache) lookup(source string) (*Stmt, bool) {
	if self.lru != nil {
		return self.lru.Get(source)
	}
	stmt, ok := self.dict[source]
	return stmt, ok
}

func (self *StmtCache) store(source string, stmt *Stmt) {
	if self.lru != nil {
		self.lru.Add(source, stmt)
		return
	}
	self.dict[source] = stmt
}

func (self *StmtCache) lenLocked() int {
	if self.lru != nil {
		return self.lru.Len()
	}
	return len(self.dict)
}

// Called by the LRU with `.mu` held.
func (self *StmtCache) onEvict(source string, stmt *Stmt) {
	self.stats.Evictions++
	self.log.Debug(`statement evicted`, `source`, source)

	err := stmt.retire()
	if err != nil {
		self.log.Warn(`failed to close evicted statement`, `source`, source, `error`, err)
	}
}

func firstErr(prev, next error) error {
	if prev != nil {
		return prev
	}
	return next
}
