// Package cache memoizes grammar compilation. A Cache maps the fingerprint
// of a (grammar, vocabulary) pairing to its CompiledGrammar, with
// single-flight semantics: concurrent requests for the same fingerprint wait
// on one in-flight compile rather than redundantly recomputing. Entries are
// held while any Handle references them; an optional capacity cap evicts the
// least-recently-used unreferenced entries beyond it. A Cache may also be
// given a Persistence tier, in which case compiled results are saved as
// binary blobs (see codec.go) and rehydrated on a memory miss.
package cache

import (
	"fmt"
	"sync"

	"github.com/dekarrin/gramask/internal/compiler"
	"github.com/dekarrin/gramask/internal/grammar"
	"github.com/dekarrin/gramask/internal/vocab"
)

// Persistence is a blob store for compiled-grammar entries, keyed by
// fingerprint. Load returns ok=false (and a nil error) on a clean miss.
// server/dao provides implementations backed by its configured DB.
type Persistence interface {
	Load(key [16]byte) (blob []byte, ok bool, err error)
	Save(key [16]byte, blob []byte) error
}

type entry struct {
	ready chan struct{}

	// the fields below are written exactly once, before ready is closed,
	// and only read after ready is closed.
	cg  *compiler.CompiledGrammar
	err error

	refs    int
	lastUse uint64
}

// Cache is a process-wide compiled-grammar cache. The zero value is not
// usable; create one with New.
type Cache struct {
	mu      sync.Mutex
	entries map[[16]byte]*entry
	useSeq  uint64

	capacity int
	workers  int
	persist  Persistence
}

// Option configures a New call.
type Option func(*Cache)

// WithCapacity caps the number of unreferenced entries retained. 0 (the
// default) means unbounded: entries are only ever dropped by explicit
// refcount exhaustion plus a later eviction pass. Entries with live Handles
// are never evicted regardless of the cap.
func WithCapacity(n int) Option {
	return func(c *Cache) { c.capacity = n }
}

// WithWorkers sets the compiler worker pool size used for cache-miss
// compiles. Defaults to the compiler's own default.
func WithWorkers(n int) Option {
	return func(c *Cache) { c.workers = n }
}

// WithPersistence attaches a blob store consulted on memory misses and
// written through on fresh compiles.
func WithPersistence(p Persistence) Option {
	return func(c *Cache) { c.persist = p }
}

// New creates an empty Cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[[16]byte]*entry),
	}
	for _, apply := range opts {
		apply(c)
	}
	return c
}

// Handle is a counted reference to a cached CompiledGrammar. Each Handle
// must have Release called exactly once when its holder is done; the entry
// becomes evictable once no Handles remain.
type Handle struct {
	c        *Cache
	key      [16]byte
	cg       *compiler.CompiledGrammar
	released bool
}

// CompiledGrammar returns the compiled grammar this Handle references.
func (h *Handle) CompiledGrammar() *compiler.CompiledGrammar {
	return h.cg
}

// Release drops this Handle's reference. Calling Release more than once is
// a no-op.
func (h *Handle) Release() {
	if h.released {
		return
	}
	h.released = true
	h.c.release(h.key)
}

// Load returns a Handle on the CompiledGrammar for (g, v), compiling it if
// no cached copy exists. Concurrent Loads of the same pairing share one
// compile; every caller observes the same result (or the same error).
func (c *Cache) Load(g *grammar.Grammar, v *vocab.Vocabulary) (*Handle, error) {
	key := compiler.Fingerprint(g, v)

	c.mu.Lock()
	e, ok := c.entries[key]
	if ok {
		e.refs++
		e.lastUse = c.touch()
		c.mu.Unlock()

		<-e.ready
		if e.err != nil {
			c.release(key)
			return nil, e.err
		}
		return &Handle{c: c, key: key, cg: e.cg}, nil
	}

	// this caller owns the compile for key
	e = &entry{ready: make(chan struct{}), refs: 1, lastUse: c.touch()}
	c.entries[key] = e
	c.mu.Unlock()

	e.cg, e.err = c.build(key, g, v)
	close(e.ready)

	if e.err != nil {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, e.err
	}

	c.evictOverCap()
	return &Handle{c: c, key: key, cg: e.cg}, nil
}

// Len returns the number of entries currently held, including in-flight
// compiles.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) touch() uint64 {
	c.useSeq++
	return c.useSeq
}

func (c *Cache) release(key [16]byte) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && e.refs > 0 {
		e.refs--
	}
	c.mu.Unlock()
	c.evictOverCap()
}

// build produces the CompiledGrammar for key: from the persistence tier if
// one is attached and has a blob for key, otherwise by compiling, writing
// the fresh result through to persistence.
func (c *Cache) build(key [16]byte, g *grammar.Grammar, v *vocab.Vocabulary) (*compiler.CompiledGrammar, error) {
	if c.persist != nil {
		blob, ok, err := c.persist.Load(key)
		if err != nil {
			return nil, fmt.Errorf("load persisted compile: %w", err)
		}
		if ok {
			cg, err := Decode(blob)
			if err != nil {
				return nil, fmt.Errorf("decode persisted compile: %w", err)
			}
			return cg, nil
		}
	}

	var opts []compiler.Option
	if c.workers > 0 {
		opts = append(opts, compiler.WithWorkers(c.workers))
	}
	cg, err := compiler.Compile(g, v, opts...)
	if err != nil {
		return nil, err
	}

	if c.persist != nil {
		blob, err := Encode(cg)
		if err != nil {
			return nil, fmt.Errorf("encode compile for persistence: %w", err)
		}
		if err := c.persist.Save(key, blob); err != nil {
			return nil, fmt.Errorf("save persisted compile: %w", err)
		}
	}

	return cg, nil
}

// evictOverCap removes least-recently-used unreferenced entries until the
// total count is within capacity. In-flight compiles count as referenced
// (their owner holds a ref until Load returns).
func (c *Cache) evictOverCap() {
	if c.capacity <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for len(c.entries) > c.capacity {
		var victim [16]byte
		var victimUse uint64
		found := false
		for k, e := range c.entries {
			if e.refs > 0 {
				continue
			}
			if !found || e.lastUse < victimUse {
				victim = k
				victimUse = e.lastUse
				found = true
			}
		}
		if !found {
			return
		}
		delete(c.entries, victim)
	}
}
