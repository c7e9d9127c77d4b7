package api

import (
	"errors"
	"net/http"

	"github.com/dekarrin/gramask/server/dao"
	"github.com/dekarrin/gramask/server/middle"
	"github.com/dekarrin/gramask/server/result"
	"github.com/dekarrin/gramask/server/serr"
)

// HTTPCreateVocabulary returns a HandlerFunc that validates and stores an
// uploaded vocabulary in GVF source form.
//
// The handler has requirements for the request context it receives, and if
// the requirements are not met it may return an HTTP-500. The context must
// contain the logged-in user of the client making the request.
func (api API) HTTPCreateVocabulary() http.HandlerFunc {
	return api.endpoint(api.epCreateVocabulary)
}

func (api API) epCreateVocabulary(req *http.Request) result.Result {
	user := req.Context().Value(middle.AuthUser).(dao.User)

	var createData CreateVocabularyRequest
	if err := parseJSON(req, &createData); err != nil {
		return result.BadRequest(err.Error(), err.Error())
	}

	created, err := api.Backend.CreateVocabulary(req.Context(), user.ID, createData.Name, createData.Source)
	if err != nil {
		if errors.Is(err, serr.ErrAlreadyExists) {
			return result.Conflict("A vocabulary with that name already exists", "vocabulary %q already exists", createData.Name)
		}
		if errors.Is(err, serr.ErrBadArgument) {
			return result.BadRequest(err.Error(), err.Error())
		}
		return result.InternalServerError(err.Error())
	}

	return result.Created(vocabularyModelFrom(created, false), "user '%s' created vocabulary '%s'", user.Username, created.Name)
}

// HTTPGetVocabulary returns a HandlerFunc that retrieves a single stored
// vocabulary by ID, including its GVF source.
func (api API) HTTPGetVocabulary() http.HandlerFunc {
	return api.endpoint(api.epGetVocabulary)
}

func (api API) epGetVocabulary(req *http.Request) result.Result {
	id := requireIDParam(req)
	user := req.Context().Value(middle.AuthUser).(dao.User)

	v, err := api.Backend.GetVocabulary(req.Context(), id.String())
	if err != nil {
		if errors.Is(err, serr.ErrNotFound) {
			return result.NotFound()
		}
		return result.InternalServerError(err.Error())
	}

	return result.OK(vocabularyModelFrom(v, true), "user '%s' got vocabulary '%s'", user.Username, v.Name)
}

// HTTPGetAllVocabularies returns a HandlerFunc that retrieves every stored
// vocabulary, without GVF sources.
func (api API) HTTPGetAllVocabularies() http.HandlerFunc {
	return api.endpoint(api.epGetAllVocabularies)
}

func (api API) epGetAllVocabularies(req *http.Request) result.Result {
	user := req.Context().Value(middle.AuthUser).(dao.User)

	vocabs, err := api.Backend.GetAllVocabularies(req.Context())
	if err != nil {
		return result.InternalServerError(err.Error())
	}

	resp := make([]VocabularyModel, len(vocabs))
	for i := range vocabs {
		resp[i] = vocabularyModelFrom(vocabs[i], false)
	}

	return result.OK(resp, "user '%s' got all vocabularies", user.Username)
}

// HTTPDeleteVocabulary returns a HandlerFunc that deletes a stored
// vocabulary. Only the vocabulary's owner or an admin may delete it.
func (api API) HTTPDeleteVocabulary() http.HandlerFunc {
	return api.endpoint(api.epDeleteVocabulary)
}

func (api API) epDeleteVocabulary(req *http.Request) result.Result {
	id := requireIDParam(req)
	user := req.Context().Value(middle.AuthUser).(dao.User)

	v, err := api.Backend.GetVocabulary(req.Context(), id.String())
	if err != nil {
		if errors.Is(err, serr.ErrNotFound) {
			return result.NotFound()
		}
		return result.InternalServerError(err.Error())
	}

	if v.OwnerID != user.ID && user.Role != dao.Admin {
		return result.Forbidden("user '%s' (role %s) delete of vocabulary '%s': forbidden", user.Username, user.Role, v.Name)
	}

	deleted, err := api.Backend.DeleteVocabulary(req.Context(), id.String())
	if err != nil {
		if errors.Is(err, serr.ErrNotFound) {
			return result.NotFound()
		}
		return result.InternalServerError(err.Error())
	}

	return result.NoContent("user '%s' deleted vocabulary '%s'", user.Username, deleted.Name)
}
