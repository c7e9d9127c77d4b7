package cache

import (
	"sync"
	"testing"

	"github.com/dekarrin/gramask/internal/compiler"
	"github.com/dekarrin/gramask/internal/grammar"
	"github.com/dekarrin/gramask/internal/vocab"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildGrammar(t *testing.T, src string) *grammar.Grammar {
	t.Helper()
	g, err := grammar.Parse(src)
	require.NoError(t, err)
	return g
}

func buildVocab(t *testing.T) *vocab.Vocabulary {
	t.Helper()
	v, err := vocab.New(5, []vocab.Token{
		{ID: 0, Decoded: []byte("a"), Kind: vocab.Regular},
		{ID: 1, Decoded: []byte("ab"), Kind: vocab.Regular},
		{ID: 2, Decoded: []byte("b"), Kind: vocab.Regular},
		{ID: 3, Decoded: []byte{}, Kind: vocab.Stop},
		{ID: 4, Decoded: []byte("<pad>"), Kind: vocab.Special},
	}, vocab.ByteLevel, false)
	require.NoError(t, err)
	return v
}

func Test_Load_memoizes(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	c := New()
	g := buildGrammar(t, `root ::= "ab"`)
	v := buildVocab(t)

	h1, err := c.Load(g, v)
	require.NoError(err)
	h2, err := c.Load(g, v)
	require.NoError(err)

	// both handles see the very same compiled object
	assert.Same(h1.CompiledGrammar(), h2.CompiledGrammar())
	assert.Equal(1, c.Len())

	h1.Release()
	h2.Release()
}

func Test_Load_equivalentSourceHitsSameEntry(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	c := New()
	v := buildVocab(t)

	// same grammar, textually different source
	h1, err := c.Load(buildGrammar(t, `root ::= "ab"`), v)
	require.NoError(err)
	h2, err := c.Load(buildGrammar(t, "root   ::=   \"ab\"\n"), v)
	require.NoError(err)

	assert.Same(h1.CompiledGrammar(), h2.CompiledGrammar())
	assert.Equal(1, c.Len())
}

func Test_Load_concurrentSingleFlight(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	c := New(WithWorkers(2))
	g := buildGrammar(t, `root ::= [a-z]+`)
	v := buildVocab(t)

	const callers = 16
	results := make([]*compiler.CompiledGrammar, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := c.Load(g, v)
			if err != nil {
				return
			}
			results[i] = h.CompiledGrammar()
		}(i)
	}
	wg.Wait()

	require.NotNil(results[0])
	for i := 1; i < callers; i++ {
		assert.Same(results[0], results[i])
	}
	assert.Equal(1, c.Len())
}

func Test_Load_evictsLRUOverCapacity(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	c := New(WithCapacity(2))
	v := buildVocab(t)

	sources := []string{`root ::= "a"`, `root ::= "b"`, `root ::= "c"`}
	for _, src := range sources {
		h, err := c.Load(buildGrammar(t, src), v)
		require.NoError(err)
		h.Release()
	}

	assert.Equal(2, c.Len())
}

func Test_Load_referencedEntriesSurviveCapacity(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	c := New(WithCapacity(1))
	v := buildVocab(t)

	held, err := c.Load(buildGrammar(t, `root ::= "a"`), v)
	require.NoError(err)

	// a second entry pushes past capacity, but the held one cannot be the
	// victim
	other, err := c.Load(buildGrammar(t, `root ::= "b"`), v)
	require.NoError(err)
	other.Release()

	third, err := c.Load(buildGrammar(t, `root ::= "a"`), v)
	require.NoError(err)
	assert.Same(held.CompiledGrammar(), third.CompiledGrammar())
}

// memPersistence is a Persistence backed by a plain map, for testing the
// write-through and rehydration paths without a real DB.
type memPersistence struct {
	mu    sync.Mutex
	blobs map[[16]byte][]byte
	saves int
	loads int
}

func newMemPersistence() *memPersistence {
	return &memPersistence{blobs: make(map[[16]byte][]byte)}
}

func (p *memPersistence) Load(key [16]byte) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loads++
	blob, ok := p.blobs[key]
	return blob, ok, nil
}

func (p *memPersistence) Save(key [16]byte, blob []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saves++
	p.blobs[key] = blob
	return nil
}

func Test_Load_writesThroughToPersistence(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	p := newMemPersistence()
	g := buildGrammar(t, `root ::= "ab" [0-9]{1,3}`)
	v := buildVocab(t)

	c1 := New(WithPersistence(p))
	h, err := c1.Load(g, v)
	require.NoError(err)
	assert.Equal(1, p.saves)
	fresh := h.CompiledGrammar()

	// a brand-new cache with the same persistence tier rehydrates instead
	// of recompiling
	c2 := New(WithPersistence(p))
	h2, err := c2.Load(g, v)
	require.NoError(err)
	assert.Equal(1, p.saves)

	rehydrated := h2.CompiledGrammar()
	assert.Equal(fresh.Fingerprint, rehydrated.Fingerprint)
	assert.Equal(grammar.Print(fresh.Grammar), grammar.Print(rehydrated.Grammar))
}

func Test_EncodeDecode_roundTrip(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	g := buildGrammar(t, `root ::= "a" [b-d]* other`+"\n"+`other ::= "xyz"`)
	v := buildVocab(t)

	cg, err := compiler.Compile(g, v)
	require.NoError(err)

	blob, err := Encode(cg)
	require.NoError(err)

	back, err := Decode(blob)
	require.NoError(err)

	assert.Equal(cg.Fingerprint, back.Fingerprint)
	assert.Equal(grammar.Print(cg.Grammar), grammar.Print(back.Grammar))
	assert.Equal(cg.Vocab.Size(), back.Vocab.Size())
	require.ElementsMatch(cg.Positions(), back.Positions())

	for _, p := range cg.Positions() {
		want := cg.Mask(p)
		got := back.Mask(p)
		require.NotNil(got, "mask for %s missing after round trip", p)
		assert.Equal(want.Uncertain, got.Uncertain, "uncertain set for %s", p)
		assert.Equal(want.Accept.Row(0), got.Accept.Row(0), "accept words for %s", p)
	}
}

func Test_Decode_rejectsTruncatedBlob(t *testing.T) {
	require := require.New(t)

	g := buildGrammar(t, `root ::= "a"`)
	v := buildVocab(t)
	cg, err := compiler.Compile(g, v)
	require.NoError(err)

	blob, err := Encode(cg)
	require.NoError(err)

	// a truncated blob must fail loudly, not decode garbage
	_, err = Decode(blob[:len(blob)/2])
	require.Error(err)
}
