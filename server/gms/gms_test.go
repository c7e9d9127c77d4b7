package gms

import (
	"context"
	"testing"

	"github.com/dekarrin/gramask/server/dao/inmem"
	"github.com/dekarrin/gramask/server/serr"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testVocabSource = `
format = "gvf 1.0"
type = "VOCAB"
size = 5

[[token]]
id = 0
text = "a"

[[token]]
id = 1
text = "ab"

[[token]]
id = 2
text = "b"

[[token]]
id = 3
text = ""
kind = "stop"

[[token]]
id = 4
text = "<pad>"
kind = "special"
`

func setupMatcherSession(t *testing.T) (*Service, MatcherInfo) {
	t.Helper()
	ctx := context.Background()
	svc := New(inmem.NewDatastore())

	owner := uuid.New()
	g, err := svc.CreateGrammar(ctx, owner, "ab-grammar", `root ::= "ab"`)
	require.NoError(t, err)
	v, err := svc.CreateVocabulary(ctx, owner, "tiny", testVocabSource)
	require.NoError(t, err)

	info, err := svc.CreateMatcher(ctx, owner, g.ID.String(), v.ID.String(), MatcherOptions{MaxRollbackTokens: 4})
	require.NoError(t, err)

	return svc, info
}

func Test_CreateGrammar_rejectsBadSource(t *testing.T) {
	ctx := context.Background()
	svc := New(inmem.NewDatastore())

	_, err := svc.CreateGrammar(ctx, uuid.New(), "bad", `root ::= [Z-A]`)
	require.Error(t, err)
	assert.ErrorIs(t, err, serr.ErrGrammar)
	assert.ErrorIs(t, err, serr.ErrBadArgument)
}

func Test_CreateMatcher_missingGrammarIsNotFound(t *testing.T) {
	ctx := context.Background()
	svc := New(inmem.NewDatastore())

	owner := uuid.New()
	v, err := svc.CreateVocabulary(ctx, owner, "tiny", testVocabSource)
	require.NoError(t, err)

	_, err = svc.CreateMatcher(ctx, owner, uuid.New().String(), v.ID.String(), MatcherOptions{})
	assert.ErrorIs(t, err, serr.ErrNotFound)
}

func Test_MatcherLifecycle_acceptMaskRollback(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	svc, info := setupMatcherSession(t)
	id := info.ID

	// before any input, token 0 ("a") and token 1 ("ab") are admissible,
	// token 2 ("b") is not, and no stop token is yet acceptable
	words, needApply, err := svc.FillMask(ctx, id)
	require.NoError(err)
	assert.True(needApply)
	assert.NotZero(words[0]&(1<<0), "token 0 should be admissible")
	assert.NotZero(words[0]&(1<<1), "token 1 should be admissible")
	assert.Zero(words[0]&(1<<2), "token 2 should be masked")
	assert.Zero(words[0]&(1<<3), "stop should be masked before completion")

	// reject "b" up front, matcher unchanged
	accepted, _, err := svc.AcceptToken(ctx, id, 2)
	require.NoError(err)
	assert.False(accepted)

	// accept "a" then "b"
	accepted, _, err = svc.AcceptToken(ctx, id, 0)
	require.NoError(err)
	assert.True(accepted)
	accepted, _, err = svc.AcceptToken(ctx, id, 2)
	require.NoError(err)
	assert.True(accepted)

	// now only the stop token remains admissible
	words, _, err = svc.FillMask(ctx, id)
	require.NoError(err)
	assert.NotZero(words[0]&(1<<3), "stop should be admissible at completion")
	assert.Zero(words[0]&(1<<0))

	// stop terminates the session
	accepted, after, err := svc.AcceptToken(ctx, id, 3)
	require.NoError(err)
	assert.True(accepted)
	assert.True(after.Terminated)

	// roll all three steps back and confirm the session is live again
	after, err = svc.Rollback(ctx, id, 3)
	require.NoError(err)
	assert.False(after.Terminated)

	words, _, err = svc.FillMask(ctx, id)
	require.NoError(err)
	assert.NotZero(words[0]&(1<<0), "token 0 should be admissible after rollback")
}

func Test_JumpForward_forcedContinuation(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	svc, info := setupMatcherSession(t)

	// the grammar is the single literal "ab": both bytes are forced
	jump, ok, err := svc.JumpForward(ctx, info.ID)
	require.NoError(err)
	assert.True(ok)
	assert.Equal("ab", string(jump))
}

func Test_DeleteMatcher_removesSession(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	svc, info := setupMatcherSession(t)

	_, err := svc.DeleteMatcher(ctx, info.ID)
	require.NoError(err)

	_, err = svc.GetMatcher(ctx, info.ID)
	assert.ErrorIs(err, serr.ErrNotFound)
}

func Test_CreateMatcher_persistsCompiledBlob(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	svc, info := setupMatcherSession(t)

	// the compile that backed the session must have been written through
	// to the CompiledBlobs repository
	g, err := svc.GetGrammar(ctx, info.GrammarID.String())
	require.NoError(err)
	require.NotEmpty(g.Fingerprint)

	// grammar-record fingerprints hash only the source; the blob key also
	// covers the vocabulary, so enumerate via a second session sharing the
	// cache entry instead
	second, err := svc.CreateMatcher(ctx, info.OwnerID, info.GrammarID.String(), info.VocabularyID.String(), MatcherOptions{})
	require.NoError(err)
	require.Equal(info.VocabSize, second.VocabSize)
}
