package gms

import (
	"context"
	"errors"
	"sync"

	"github.com/dekarrin/gramask/internal/bitmask"
	"github.com/dekarrin/gramask/internal/cache"
	"github.com/dekarrin/gramask/internal/grammar"
	"github.com/dekarrin/gramask/internal/matcher"
	"github.com/dekarrin/gramask/internal/merrors"
	"github.com/dekarrin/gramask/internal/vocabfile"
	"github.com/dekarrin/gramask/server/dao"
	"github.com/dekarrin/gramask/server/serr"
	"github.com/google/uuid"
)

// matcherSession is one live matcher held by the service. The matcher
// itself is single-threaded; the session mutex serializes API calls that
// reach the same session concurrently.
type matcherSession struct {
	mtx sync.Mutex

	ownerID   uuid.UUID
	grammarID uuid.UUID
	vocabID   uuid.UUID

	m      *matcher.Matcher
	handle *cache.Handle
}

// MatcherOptions carries the construction options a client may set on a new
// matcher session.
type MatcherOptions struct {
	TerminateWithoutStopToken bool
	MaxRollbackTokens         int
	OverrideStopTokens        []int
}

// MatcherInfo is the client-visible state of a matcher session.
type MatcherInfo struct {
	ID           uuid.UUID
	OwnerID      uuid.UUID
	GrammarID    uuid.UUID
	VocabularyID uuid.UUID
	VocabSize    int
	Terminated   bool
}

// blobPersistence adapts the store's CompiledBlobs repository to the
// cache.Persistence interface. The cache has no request context, so DB
// calls run under context.Background().
type blobPersistence struct {
	db dao.Store
}

func (bp blobPersistence) Load(key [16]byte) ([]byte, bool, error) {
	blob, err := bp.db.CompiledBlobs().GetByFingerprint(context.Background(), key[:])
	if err != nil {
		if errors.Is(err, dao.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, serr.WrapDB("", err)
	}
	return blob.Data, true, nil
}

func (bp blobPersistence) Save(key [16]byte, blob []byte) error {
	_, err := bp.db.CompiledBlobs().Put(context.Background(), dao.CompiledBlob{
		Fingerprint: key[:],
		Data:        blob,
	})
	if err != nil {
		return serr.WrapDB("", err)
	}
	return nil
}

// CreateMatcher builds a new live matcher session over the stored grammar
// and vocabulary with the given IDs, compiling the pairing if the compiler
// cache has no entry for it yet. Returns the new session's info; the
// session ID in it addresses all subsequent matcher calls.
//
// The returned error, if non-nil, will return true for various calls to
// errors.Is depending on what caused the error. If either referenced record
// does not exist, it will match serr.ErrNotFound. If the stored sources
// fail to parse or compile, it will match serr.ErrGrammar or
// serr.ErrVocabulary. If the error occured due to an unexpected problem
// with the DB, it will match serr.ErrDB.
func (svc *Service) CreateMatcher(ctx context.Context, ownerID uuid.UUID, grammarID, vocabID string, opts MatcherOptions) (MatcherInfo, error) {
	gRec, err := svc.GetGrammar(ctx, grammarID)
	if err != nil {
		return MatcherInfo{}, err
	}
	vRec, err := svc.GetVocabulary(ctx, vocabID)
	if err != nil {
		return MatcherInfo{}, err
	}

	g, err := grammar.Parse(gRec.Source)
	if err != nil {
		return MatcherInfo{}, serr.New("stored grammar source no longer parses", err, serr.ErrGrammar)
	}
	v, err := vocabfile.Parse([]byte(vRec.Source))
	if err != nil {
		return MatcherInfo{}, serr.New("stored vocabulary source no longer parses", err, serr.ErrVocabulary)
	}

	handle, err := svc.Cache.Load(g, v)
	if err != nil {
		return MatcherInfo{}, serr.New("could not compile grammar", err, serr.ErrGrammar)
	}

	var mOpts []matcher.Option
	if opts.TerminateWithoutStopToken {
		mOpts = append(mOpts, matcher.WithTerminateWithoutStopToken(true))
	}
	if opts.MaxRollbackTokens > 0 {
		mOpts = append(mOpts, matcher.WithMaxRollbackTokens(opts.MaxRollbackTokens))
	}
	if opts.OverrideStopTokens != nil {
		mOpts = append(mOpts, matcher.WithOverrideStopTokens(opts.OverrideStopTokens))
	}

	m, err := matcher.New(handle.CompiledGrammar(), mOpts...)
	if err != nil {
		handle.Release()
		return MatcherInfo{}, serr.New("could not create matcher", err)
	}

	sesh := &matcherSession{
		ownerID:   ownerID,
		grammarID: gRec.ID,
		vocabID:   vRec.ID,
		m:         m,
		handle:    handle,
	}

	svc.mtx.Lock()
	svc.matchers[m.ID()] = sesh
	svc.mtx.Unlock()

	return svc.infoFor(m.ID(), sesh), nil
}

func (svc *Service) infoFor(id uuid.UUID, sesh *matcherSession) MatcherInfo {
	return MatcherInfo{
		ID:           id,
		OwnerID:      sesh.ownerID,
		GrammarID:    sesh.grammarID,
		VocabularyID: sesh.vocabID,
		VocabSize:    sesh.m.VocabSize(),
		Terminated:   sesh.m.IsTerminated(),
	}
}

func (svc *Service) session(id uuid.UUID) (*matcherSession, error) {
	svc.mtx.Lock()
	defer svc.mtx.Unlock()

	sesh, ok := svc.matchers[id]
	if !ok {
		return nil, serr.ErrNotFound
	}
	return sesh, nil
}

// GetMatcher returns the info of the live matcher session with the given
// ID. Matches serr.ErrNotFound if no such session exists.
func (svc *Service) GetMatcher(ctx context.Context, id uuid.UUID) (MatcherInfo, error) {
	sesh, err := svc.session(id)
	if err != nil {
		return MatcherInfo{}, err
	}

	sesh.mtx.Lock()
	defer sesh.mtx.Unlock()
	return svc.infoFor(id, sesh), nil
}

// DeleteMatcher tears down the live matcher session with the given ID and
// releases its hold on the compiled grammar. Matches serr.ErrNotFound if no
// such session exists.
func (svc *Service) DeleteMatcher(ctx context.Context, id uuid.UUID) (MatcherInfo, error) {
	svc.mtx.Lock()
	sesh, ok := svc.matchers[id]
	if ok {
		delete(svc.matchers, id)
	}
	svc.mtx.Unlock()

	if !ok {
		return MatcherInfo{}, serr.ErrNotFound
	}

	sesh.mtx.Lock()
	defer sesh.mtx.Unlock()

	info := svc.infoFor(id, sesh)
	sesh.handle.Release()
	return info, nil
}

// AcceptToken advances the session's matcher by one vocabulary token.
// accepted=false with a nil error means the token was rejected and the
// matcher is unchanged.
func (svc *Service) AcceptToken(ctx context.Context, id uuid.UUID, tokenID int) (accepted bool, info MatcherInfo, err error) {
	sesh, err := svc.session(id)
	if err != nil {
		return false, MatcherInfo{}, err
	}

	sesh.mtx.Lock()
	defer sesh.mtx.Unlock()

	accepted, err = sesh.m.AcceptToken(tokenID)
	if err != nil {
		return false, MatcherInfo{}, wrapMatcherErr(err)
	}
	return accepted, svc.infoFor(id, sesh), nil
}

// AcceptString advances the session's matcher by a raw byte string, counted
// as one rollback step.
func (svc *Service) AcceptString(ctx context.Context, id uuid.UUID, b []byte) (accepted bool, info MatcherInfo, err error) {
	sesh, err := svc.session(id)
	if err != nil {
		return false, MatcherInfo{}, err
	}

	sesh.mtx.Lock()
	defer sesh.mtx.Unlock()

	accepted, err = sesh.m.AcceptString(b)
	if err != nil {
		return false, MatcherInfo{}, wrapMatcherErr(err)
	}
	return accepted, svc.infoFor(id, sesh), nil
}

// FillMask computes the next-token bitmask for the session's current state.
// It returns the packed mask words and whether the caller actually needs to
// apply them (false means the mask is all-ones).
func (svc *Service) FillMask(ctx context.Context, id uuid.UUID) (words []int32, needApply bool, err error) {
	sesh, err := svc.session(id)
	if err != nil {
		return nil, false, err
	}

	sesh.mtx.Lock()
	defer sesh.mtx.Unlock()

	buf, err := bitmask.Allocate(1, sesh.m.VocabSize())
	if err != nil {
		return nil, false, wrapMatcherErr(err)
	}
	needApply, err = sesh.m.FillNextTokenBitmask(buf, 0)
	if err != nil {
		return nil, false, wrapMatcherErr(err)
	}

	return buf.Row(0), needApply, nil
}

// Rollback undoes the last n accepted steps of the session's matcher.
func (svc *Service) Rollback(ctx context.Context, id uuid.UUID, n int) (MatcherInfo, error) {
	sesh, err := svc.session(id)
	if err != nil {
		return MatcherInfo{}, err
	}

	sesh.mtx.Lock()
	defer sesh.mtx.Unlock()

	if err := sesh.m.Rollback(n); err != nil {
		return MatcherInfo{}, wrapMatcherErr(err)
	}
	return svc.infoFor(id, sesh), nil
}

// ResetMatcher restores the session's matcher to its initial state.
func (svc *Service) ResetMatcher(ctx context.Context, id uuid.UUID) (MatcherInfo, error) {
	sesh, err := svc.session(id)
	if err != nil {
		return MatcherInfo{}, err
	}

	sesh.mtx.Lock()
	defer sesh.mtx.Unlock()

	if err := sesh.m.Reset(); err != nil {
		return MatcherInfo{}, wrapMatcherErr(err)
	}
	return svc.infoFor(id, sesh), nil
}

// JumpForward returns the byte string forced by the grammar from the
// session's current state, if any.
func (svc *Service) JumpForward(ctx context.Context, id uuid.UUID) (jump []byte, ok bool, err error) {
	sesh, err := svc.session(id)
	if err != nil {
		return nil, false, err
	}

	sesh.mtx.Lock()
	defer sesh.mtx.Unlock()

	jump, ok = sesh.m.FindJumpForwardString()
	return jump, ok, nil
}

// wrapMatcherErr translates internal/merrors kinds into serr causes so API
// handlers can map them to HTTP statuses with errors.Is alone.
func wrapMatcherErr(err error) error {
	var argErr *merrors.ArgError
	if errors.As(err, &argErr) {
		return serr.New(argErr.Error(), err, serr.ErrBadArgument)
	}
	return err
}
