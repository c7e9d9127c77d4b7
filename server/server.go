// Package server provides the gramask HTTP server: a REST surface over the
// grammar compiler, the compiled-grammar cache, and live matcher sessions,
// with JWT-authenticated clients held in persistence.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/dekarrin/gramask/server/api"
	"github.com/dekarrin/gramask/server/dao"
	"github.com/dekarrin/gramask/server/gms"
	"github.com/dekarrin/gramask/server/middle"
	"github.com/go-chi/chi/v5"
)

// Server is an HTTP gramask server. Create one with New; the zero value is
// not ready to use.
//
//	- POST   /api/v1/login                 - log in and receive a JWT
//	- DELETE /api/v1/login/{id}            - log out a user (self, or any user for admins)
//	- POST   /api/v1/tokens                - mint a fresh token for the logged-in user
//	- GET    /api/v1/info                  - version info (auth optional)
//	- POST   /api/v1/users                 - create an account
//	- GET    /api/v1/users                 - list accounts (admin)
//	- GET    /api/v1/users/{id}            - get an account
//	- DELETE /api/v1/users/{id}            - delete an account (self or admin)
//	- POST   /api/v1/grammars              - upload + validate a grammar
//	- GET    /api/v1/grammars              - list grammars
//	- GET    /api/v1/grammars/{id}         - get a grammar
//	- DELETE /api/v1/grammars/{id}         - delete a grammar (owner or admin)
//	- POST   /api/v1/vocabularies          - upload + validate a GVF vocabulary
//	- GET    /api/v1/vocabularies          - list vocabularies
//	- GET    /api/v1/vocabularies/{id}     - get a vocabulary with source
//	- DELETE /api/v1/vocabularies/{id}     - delete a vocabulary (owner or admin)
//	- POST   /api/v1/matchers              - start a matcher session (compiles on cache miss)
//	- GET    /api/v1/matchers/{id}         - get session state
//	- DELETE /api/v1/matchers/{id}         - end a session
//	- POST   /api/v1/matchers/{id}/accept  - advance by token id or raw text
//	- POST   /api/v1/matchers/{id}/mask    - fill the next-token bitmask
//	- POST   /api/v1/matchers/{id}/rollback - undo accepted steps
//	- POST   /api/v1/matchers/{id}/reset   - restore initial state
//	- GET    /api/v1/matchers/{id}/jump    - grammar-forced continuation bytes
type Server struct {
	router chi.Router
	api    api.API
	svc    *gms.Service
	db     dao.Store

	jwtSecret []byte
}

// New creates a new Server from the given config.
func New(cfg Config) (*Server, error) {
	cfg = cfg.FillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	db, err := cfg.DB.Connect()
	if err != nil {
		return nil, fmt.Errorf("connect DB: %w", err)
	}

	svc := gms.New(db)

	srv := &Server{
		svc:       svc,
		db:        db,
		jwtSecret: cfg.TokenSecret,
		api: api.API{
			Backend:     svc,
			UnauthDelay: cfg.UnauthDelay(),
			Secret:      cfg.TokenSecret,
		},
	}

	srv.router = srv.routes()
	return srv, nil
}

// CreateUser creates a user directly in the backend, bypassing the HTTP
// layer. It exists so runners can seed an initial admin account before
// serving.
func (srv *Server) CreateUser(ctx context.Context, username, password, email string, role dao.Role) (dao.User, error) {
	return srv.svc.CreateUser(ctx, username, password, email, role)
}

// Close releases the server's hold on its persistence layer.
func (srv *Server) Close() error {
	return srv.db.Close()
}

// ServeForever begins listening on the given address and port. If address
// is blank, "localhost" is used; if port is 0, port 8080 is used.
func (srv *Server) ServeForever(address string, port int) error {
	if address == "" {
		address = "localhost"
	}
	if port == 0 {
		port = 8080
	}

	listenAddr := fmt.Sprintf("%s:%d", address, port)
	log.Printf("INFO  Listening on %s", listenAddr)
	return http.ListenAndServe(listenAddr, srv.router)
}

// ServeHTTP lets the Server act as an http.Handler directly, mostly for
// tests.
func (srv *Server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	srv.router.ServeHTTP(w, req)
}

func (srv *Server) routes() chi.Router {
	optAuth := middle.OptionalAuth(srv.db.Users(), srv.jwtSecret, srv.api.UnauthDelay, dao.User{})
	reqAuth := middle.RequireAuth(srv.db.Users(), srv.jwtSecret, srv.api.UnauthDelay, dao.User{})

	r := chi.NewRouter()
	r.Use(middle.DontPanic())

	r.Route(api.PathPrefix, func(r chi.Router) {
		r.Post("/login", srv.api.HTTPCreateLogin())
		r.With(reqAuth).Delete("/login/{id}", srv.api.HTTPDeleteLogin())
		r.With(reqAuth).Post("/tokens", srv.api.HTTPCreateToken())

		r.With(optAuth).Get("/info", srv.api.HTTPGetInfo())

		r.Route("/users", func(r chi.Router) {
			// user creation is open; role escalation inside is gated on the
			// (optionally) logged-in user
			r.With(optAuth).Post("/", srv.api.HTTPCreateUser())
			r.With(reqAuth).Get("/", srv.api.HTTPGetAllUsers())
			r.With(reqAuth).Get("/{id}", srv.api.HTTPGetUser())
			r.With(reqAuth).Delete("/{id}", srv.api.HTTPDeleteUser())
		})

		r.Route("/grammars", func(r chi.Router) {
			r.Use(reqAuth)
			r.Post("/", srv.api.HTTPCreateGrammar())
			r.Get("/", srv.api.HTTPGetAllGrammars())
			r.Get("/{id}", srv.api.HTTPGetGrammar())
			r.Delete("/{id}", srv.api.HTTPDeleteGrammar())
		})

		r.Route("/vocabularies", func(r chi.Router) {
			r.Use(reqAuth)
			r.Post("/", srv.api.HTTPCreateVocabulary())
			r.Get("/", srv.api.HTTPGetAllVocabularies())
			r.Get("/{id}", srv.api.HTTPGetVocabulary())
			r.Delete("/{id}", srv.api.HTTPDeleteVocabulary())
		})

		r.Route("/matchers", func(r chi.Router) {
			r.Use(reqAuth)
			r.Post("/", srv.api.HTTPCreateMatcher())
			r.Get("/{id}", srv.api.HTTPGetMatcher())
			r.Delete("/{id}", srv.api.HTTPDeleteMatcher())
			r.Post("/{id}/accept", srv.api.HTTPAcceptMatcher())
			r.Post("/{id}/mask", srv.api.HTTPFillMatcherMask())
			r.Post("/{id}/rollback", srv.api.HTTPRollbackMatcher())
			r.Post("/{id}/reset", srv.api.HTTPResetMatcher())
			r.Get("/{id}/jump", srv.api.HTTPGetMatcherJump())
		})
	})

	return r
}
