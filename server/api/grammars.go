package api

import (
	"errors"
	"net/http"

	"github.com/dekarrin/gramask/server/dao"
	"github.com/dekarrin/gramask/server/middle"
	"github.com/dekarrin/gramask/server/result"
	"github.com/dekarrin/gramask/server/serr"
)

// HTTPCreateGrammar returns a HandlerFunc that validates and stores an
// uploaded grammar.
//
// The handler has requirements for the request context it receives, and if
// the requirements are not met it may return an HTTP-500. The context must
// contain the logged-in user of the client making the request.
func (api API) HTTPCreateGrammar() http.HandlerFunc {
	return api.endpoint(api.epCreateGrammar)
}

func (api API) epCreateGrammar(req *http.Request) result.Result {
	user := req.Context().Value(middle.AuthUser).(dao.User)

	var createData CreateGrammarRequest
	if err := parseJSON(req, &createData); err != nil {
		return result.BadRequest(err.Error(), err.Error())
	}

	created, err := api.Backend.CreateGrammar(req.Context(), user.ID, createData.Name, createData.Source)
	if err != nil {
		if errors.Is(err, serr.ErrAlreadyExists) {
			return result.Conflict("A grammar with that name already exists", "grammar %q already exists", createData.Name)
		}
		if errors.Is(err, serr.ErrBadArgument) {
			return result.BadRequest(err.Error(), err.Error())
		}
		return result.InternalServerError(err.Error())
	}

	return result.Created(grammarModelFrom(created), "user '%s' created grammar '%s'", user.Username, created.Name)
}

// HTTPGetGrammar returns a HandlerFunc that retrieves a single stored
// grammar by ID.
func (api API) HTTPGetGrammar() http.HandlerFunc {
	return api.endpoint(api.epGetGrammar)
}

func (api API) epGetGrammar(req *http.Request) result.Result {
	id := requireIDParam(req)
	user := req.Context().Value(middle.AuthUser).(dao.User)

	g, err := api.Backend.GetGrammar(req.Context(), id.String())
	if err != nil {
		if errors.Is(err, serr.ErrNotFound) {
			return result.NotFound()
		}
		return result.InternalServerError(err.Error())
	}

	return result.OK(grammarModelFrom(g), "user '%s' got grammar '%s'", user.Username, g.Name)
}

// HTTPGetAllGrammars returns a HandlerFunc that retrieves every stored
// grammar.
func (api API) HTTPGetAllGrammars() http.HandlerFunc {
	return api.endpoint(api.epGetAllGrammars)
}

func (api API) epGetAllGrammars(req *http.Request) result.Result {
	user := req.Context().Value(middle.AuthUser).(dao.User)

	grammars, err := api.Backend.GetAllGrammars(req.Context())
	if err != nil {
		return result.InternalServerError(err.Error())
	}

	resp := make([]GrammarModel, len(grammars))
	for i := range grammars {
		resp[i] = grammarModelFrom(grammars[i])
	}

	return result.OK(resp, "user '%s' got all grammars", user.Username)
}

// HTTPDeleteGrammar returns a HandlerFunc that deletes a stored grammar.
// Only the grammar's owner or an admin may delete it.
func (api API) HTTPDeleteGrammar() http.HandlerFunc {
	return api.endpoint(api.epDeleteGrammar)
}

func (api API) epDeleteGrammar(req *http.Request) result.Result {
	id := requireIDParam(req)
	user := req.Context().Value(middle.AuthUser).(dao.User)

	g, err := api.Backend.GetGrammar(req.Context(), id.String())
	if err != nil {
		if errors.Is(err, serr.ErrNotFound) {
			return result.NotFound()
		}
		return result.InternalServerError(err.Error())
	}

	if g.OwnerID != user.ID && user.Role != dao.Admin {
		return result.Forbidden("user '%s' (role %s) delete of grammar '%s': forbidden", user.Username, user.Role, g.Name)
	}

	deleted, err := api.Backend.DeleteGrammar(req.Context(), id.String())
	if err != nil {
		if errors.Is(err, serr.ErrNotFound) {
			return result.NotFound()
		}
		return result.InternalServerError(err.Error())
	}

	return result.NoContent("user '%s' deleted grammar '%s'", user.Username, deleted.Name)
}
