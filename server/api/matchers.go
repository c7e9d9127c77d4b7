package api

import (
	"errors"
	"net/http"

	"github.com/dekarrin/gramask/internal/merrors"
	"github.com/dekarrin/gramask/server/dao"
	"github.com/dekarrin/gramask/server/gms"
	"github.com/dekarrin/gramask/server/middle"
	"github.com/dekarrin/gramask/server/result"
	"github.com/dekarrin/gramask/server/serr"
)

// HTTPCreateMatcher returns a HandlerFunc that starts a new live matcher
// session over a stored grammar and vocabulary.
//
// The handler has requirements for the request context it receives, and if
// the requirements are not met it may return an HTTP-500. The context must
// contain the logged-in user of the client making the request.
func (api API) HTTPCreateMatcher() http.HandlerFunc {
	return api.endpoint(api.epCreateMatcher)
}

func (api API) epCreateMatcher(req *http.Request) result.Result {
	user := req.Context().Value(middle.AuthUser).(dao.User)

	var createData CreateMatcherRequest
	if err := parseJSON(req, &createData); err != nil {
		return result.BadRequest(err.Error(), err.Error())
	}

	if createData.GrammarID == "" {
		return result.BadRequest("grammar_id: property is empty or missing from request", "empty grammar_id")
	}
	if createData.VocabularyID == "" {
		return result.BadRequest("vocabulary_id: property is empty or missing from request", "empty vocabulary_id")
	}
	if createData.MaxRollbackTokens < 0 {
		return result.BadRequest("max_rollback_tokens: must be non-negative", "negative max_rollback_tokens")
	}

	opts := gms.MatcherOptions{
		TerminateWithoutStopToken: createData.TerminateWithoutStopToken,
		MaxRollbackTokens:         createData.MaxRollbackTokens,
		OverrideStopTokens:        createData.OverrideStopTokens,
	}

	info, err := api.Backend.CreateMatcher(req.Context(), user.ID, createData.GrammarID, createData.VocabularyID, opts)
	if err != nil {
		if errors.Is(err, serr.ErrNotFound) {
			return result.NotFound()
		}
		if errors.Is(err, serr.ErrBadArgument) {
			return result.BadRequest(err.Error(), err.Error())
		}
		return result.InternalServerError(err.Error())
	}

	return result.Created(matcherModelFrom(info), "user '%s' created matcher %s", user.Username, info.ID)
}

// HTTPGetMatcher returns a HandlerFunc that retrieves the state of a live
// matcher session.
func (api API) HTTPGetMatcher() http.HandlerFunc {
	return api.endpoint(api.epGetMatcher)
}

func (api API) epGetMatcher(req *http.Request) result.Result {
	id := requireIDParam(req)
	user := req.Context().Value(middle.AuthUser).(dao.User)

	info, err := api.Backend.GetMatcher(req.Context(), id)
	if err != nil {
		if errors.Is(err, serr.ErrNotFound) {
			return result.NotFound()
		}
		return result.InternalServerError(err.Error())
	}

	if denied := api.checkMatcherAccess(user, info); denied != nil {
		return *denied
	}

	return result.OK(matcherModelFrom(info), "user '%s' got matcher %s", user.Username, id)
}

// HTTPDeleteMatcher returns a HandlerFunc that tears down a live matcher
// session.
func (api API) HTTPDeleteMatcher() http.HandlerFunc {
	return api.endpoint(api.epDeleteMatcher)
}

func (api API) epDeleteMatcher(req *http.Request) result.Result {
	id := requireIDParam(req)
	user := req.Context().Value(middle.AuthUser).(dao.User)

	info, err := api.Backend.GetMatcher(req.Context(), id)
	if err != nil {
		if errors.Is(err, serr.ErrNotFound) {
			return result.NotFound()
		}
		return result.InternalServerError(err.Error())
	}

	if denied := api.checkMatcherAccess(user, info); denied != nil {
		return *denied
	}

	if _, err := api.Backend.DeleteMatcher(req.Context(), id); err != nil {
		if errors.Is(err, serr.ErrNotFound) {
			return result.NotFound()
		}
		return result.InternalServerError(err.Error())
	}

	return result.NoContent("user '%s' deleted matcher %s", user.Username, id)
}

// HTTPAcceptMatcher returns a HandlerFunc that advances a live matcher
// session by a token id or a raw string.
func (api API) HTTPAcceptMatcher() http.HandlerFunc {
	return api.endpoint(api.epAcceptMatcher)
}

func (api API) epAcceptMatcher(req *http.Request) result.Result {
	id := requireIDParam(req)
	user := req.Context().Value(middle.AuthUser).(dao.User)

	var acceptData AcceptRequest
	if err := parseJSON(req, &acceptData); err != nil {
		return result.BadRequest(err.Error(), err.Error())
	}

	if (acceptData.TokenID == nil) == (acceptData.Text == "") {
		return result.BadRequest("exactly one of token_id and text must be set", "bad accept body")
	}

	info, err := api.Backend.GetMatcher(req.Context(), id)
	if err != nil {
		if errors.Is(err, serr.ErrNotFound) {
			return result.NotFound()
		}
		return result.InternalServerError(err.Error())
	}
	if denied := api.checkMatcherAccess(user, info); denied != nil {
		return *denied
	}

	var accepted bool
	if acceptData.TokenID != nil {
		accepted, info, err = api.Backend.AcceptToken(req.Context(), id, *acceptData.TokenID)
	} else {
		accepted, info, err = api.Backend.AcceptString(req.Context(), id, []byte(acceptData.Text))
	}
	if err != nil {
		return matcherErrResult(err)
	}

	return result.OK(AcceptResponse{Accepted: accepted, Matcher: matcherModelFrom(info)}, "user '%s' advanced matcher %s (accepted=%v)", user.Username, id, accepted)
}

// HTTPFillMatcherMask returns a HandlerFunc that computes the next-token
// bitmask of a live matcher session without advancing it.
func (api API) HTTPFillMatcherMask() http.HandlerFunc {
	return api.endpoint(api.epFillMatcherMask)
}

func (api API) epFillMatcherMask(req *http.Request) result.Result {
	id := requireIDParam(req)
	user := req.Context().Value(middle.AuthUser).(dao.User)

	info, err := api.Backend.GetMatcher(req.Context(), id)
	if err != nil {
		if errors.Is(err, serr.ErrNotFound) {
			return result.NotFound()
		}
		return result.InternalServerError(err.Error())
	}
	if denied := api.checkMatcherAccess(user, info); denied != nil {
		return *denied
	}

	words, needApply, err := api.Backend.FillMask(req.Context(), id)
	if err != nil {
		return matcherErrResult(err)
	}

	resp := MaskResponse{
		Words:     words,
		VocabSize: info.VocabSize,
		NeedApply: needApply,
	}
	return result.OK(resp, "user '%s' filled mask for matcher %s", user.Username, id)
}

// HTTPRollbackMatcher returns a HandlerFunc that undoes the last n accepted
// steps of a live matcher session.
func (api API) HTTPRollbackMatcher() http.HandlerFunc {
	return api.endpoint(api.epRollbackMatcher)
}

func (api API) epRollbackMatcher(req *http.Request) result.Result {
	id := requireIDParam(req)
	user := req.Context().Value(middle.AuthUser).(dao.User)

	var rollbackData RollbackRequest
	if err := parseJSON(req, &rollbackData); err != nil {
		return result.BadRequest(err.Error(), err.Error())
	}

	info, err := api.Backend.GetMatcher(req.Context(), id)
	if err != nil {
		if errors.Is(err, serr.ErrNotFound) {
			return result.NotFound()
		}
		return result.InternalServerError(err.Error())
	}
	if denied := api.checkMatcherAccess(user, info); denied != nil {
		return *denied
	}

	info, err = api.Backend.Rollback(req.Context(), id, rollbackData.Count)
	if err != nil {
		return matcherErrResult(err)
	}

	return result.OK(matcherModelFrom(info), "user '%s' rolled back matcher %s by %d", user.Username, id, rollbackData.Count)
}

// HTTPResetMatcher returns a HandlerFunc that restores a live matcher
// session to its initial state.
func (api API) HTTPResetMatcher() http.HandlerFunc {
	return api.endpoint(api.epResetMatcher)
}

func (api API) epResetMatcher(req *http.Request) result.Result {
	id := requireIDParam(req)
	user := req.Context().Value(middle.AuthUser).(dao.User)

	info, err := api.Backend.GetMatcher(req.Context(), id)
	if err != nil {
		if errors.Is(err, serr.ErrNotFound) {
			return result.NotFound()
		}
		return result.InternalServerError(err.Error())
	}
	if denied := api.checkMatcherAccess(user, info); denied != nil {
		return *denied
	}

	info, err = api.Backend.ResetMatcher(req.Context(), id)
	if err != nil {
		return matcherErrResult(err)
	}

	return result.OK(matcherModelFrom(info), "user '%s' reset matcher %s", user.Username, id)
}

// HTTPGetMatcherJump returns a HandlerFunc that retrieves the byte string
// forced by the grammar from a live matcher session's current state.
func (api API) HTTPGetMatcherJump() http.HandlerFunc {
	return api.endpoint(api.epGetMatcherJump)
}

func (api API) epGetMatcherJump(req *http.Request) result.Result {
	id := requireIDParam(req)
	user := req.Context().Value(middle.AuthUser).(dao.User)

	info, err := api.Backend.GetMatcher(req.Context(), id)
	if err != nil {
		if errors.Is(err, serr.ErrNotFound) {
			return result.NotFound()
		}
		return result.InternalServerError(err.Error())
	}
	if denied := api.checkMatcherAccess(user, info); denied != nil {
		return *denied
	}

	jump, ok, err := api.Backend.JumpForward(req.Context(), id)
	if err != nil {
		return matcherErrResult(err)
	}

	return result.OK(JumpForwardResponse{Text: string(jump), OK: ok}, "user '%s' got jump-forward for matcher %s", user.Username, id)
}

// checkMatcherAccess returns a non-nil Forbidden result if user may not
// operate on the matcher session described by info. Sessions are private to
// their owner; admins may reach all of them.
func (api API) checkMatcherAccess(user dao.User, info gms.MatcherInfo) *result.Result {
	if info.OwnerID == user.ID || user.Role == dao.Admin {
		return nil
	}
	r := result.Forbidden("user '%s' (role %s) access to matcher %s: forbidden", user.Username, user.Role, info.ID)
	return &r
}

// matcherErrResult maps matcher-operation errors onto HTTP results:
// recursion-depth overflow and bad arguments are the client's problem,
// everything else is a 500.
func matcherErrResult(err error) result.Result {
	var recErr *merrors.RecursionError
	if errors.As(err, &recErr) {
		return result.BadRequest(recErr.Error(), "recursion depth exceeded: %s", recErr.Error())
	}
	if errors.Is(err, serr.ErrBadArgument) {
		return result.BadRequest(err.Error(), err.Error())
	}
	if errors.Is(err, serr.ErrNotFound) {
		return result.NotFound()
	}
	return result.InternalServerError(err.Error())
}
