package api

import (
	"errors"
	"net/http"

	"github.com/dekarrin/gramask/server/dao"
	"github.com/dekarrin/gramask/server/middle"
	"github.com/dekarrin/gramask/server/result"
	"github.com/dekarrin/gramask/server/serr"
)

// HTTPCreateUser returns a HandlerFunc that creates a new user. Only admin
// users may set a role other than the default.
//
// The handler has requirements for the request context it receives, and if
// the requirements are not met it may return an HTTP-500. The context must
// contain the logged-in user of the client making the request.
func (api API) HTTPCreateUser() http.HandlerFunc {
	return api.endpoint(api.epCreateUser)
}

func (api API) epCreateUser(req *http.Request) result.Result {
	user := req.Context().Value(middle.AuthUser).(dao.User)

	var createData CreateUserRequest
	if err := parseJSON(req, &createData); err != nil {
		return result.BadRequest(err.Error(), err.Error())
	}

	role := dao.Normal
	if createData.Role != "" {
		parsed, err := dao.ParseRole(createData.Role)
		if err != nil {
			return result.BadRequest("role: "+err.Error(), "bad role %q", createData.Role)
		}
		if parsed != dao.Normal && user.Role != dao.Admin {
			return result.Forbidden("user '%s' tried to create a user with role %s", user.Username, parsed)
		}
		role = parsed
	}

	created, err := api.Backend.CreateUser(req.Context(), createData.Username, createData.Password, createData.Email, role)
	if err != nil {
		if errors.Is(err, serr.ErrAlreadyExists) {
			return result.Conflict("A user with that username already exists", "user %q already exists", createData.Username)
		}
		if errors.Is(err, serr.ErrBadArgument) {
			return result.BadRequest(err.Error(), err.Error())
		}
		return result.InternalServerError(err.Error())
	}

	return result.Created(userModelFrom(created), "user '%s' created user '%s'", user.Username, created.Username)
}

// HTTPGetUser returns a HandlerFunc that retrieves a single user by ID.
func (api API) HTTPGetUser() http.HandlerFunc {
	return api.endpoint(api.epGetUser)
}

func (api API) epGetUser(req *http.Request) result.Result {
	id := requireIDParam(req)
	user := req.Context().Value(middle.AuthUser).(dao.User)

	retrieved, err := api.Backend.GetUser(req.Context(), id.String())
	if err != nil {
		if errors.Is(err, serr.ErrNotFound) {
			return result.NotFound()
		}
		return result.InternalServerError(err.Error())
	}

	return result.OK(userModelFrom(retrieved), "user '%s' got user '%s'", user.Username, retrieved.Username)
}

// HTTPGetAllUsers returns a HandlerFunc that retrieves all users. Admin
// only.
func (api API) HTTPGetAllUsers() http.HandlerFunc {
	return api.endpoint(api.epGetAllUsers)
}

func (api API) epGetAllUsers(req *http.Request) result.Result {
	user := req.Context().Value(middle.AuthUser).(dao.User)

	if user.Role != dao.Admin {
		return result.Forbidden("user '%s' (role %s) listing all users: forbidden", user.Username, user.Role)
	}

	users, err := api.Backend.GetAllUsers(req.Context())
	if err != nil {
		return result.InternalServerError(err.Error())
	}

	resp := make([]UserModel, len(users))
	for i := range users {
		resp[i] = userModelFrom(users[i])
	}

	return result.OK(resp, "user '%s' got all users", user.Username)
}

// HTTPDeleteUser returns a HandlerFunc that deletes a user. Only admin
// users can delete users other than themselves.
func (api API) HTTPDeleteUser() http.HandlerFunc {
	return api.endpoint(api.epDeleteUser)
}

func (api API) epDeleteUser(req *http.Request) result.Result {
	id := requireIDParam(req)
	user := req.Context().Value(middle.AuthUser).(dao.User)

	if id != user.ID && user.Role != dao.Admin {
		return result.Forbidden("user '%s' (role %s) delete of user %s: forbidden", user.Username, user.Role, id)
	}

	deleted, err := api.Backend.DeleteUser(req.Context(), id.String())
	if err != nil {
		if errors.Is(err, serr.ErrNotFound) {
			return result.NotFound()
		}
		return result.InternalServerError(err.Error())
	}

	return result.NoContent("user '%s' deleted user '%s'", user.Username, deleted.Username)
}
