// Package gms has services for interacting with the gramask server backend
// decoupled from the API that accesses it.
package gms

import (
	"sync"

	"github.com/dekarrin/gramask/internal/cache"
	"github.com/dekarrin/gramask/server/dao"
	"github.com/google/uuid"
)

// Service is a service for interacting with and modifying the gramask server
// backend. It performs the actions requested and makes calls to server
// persistence to preserve the backend state. Live matcher sessions are held
// in memory only; grammars, vocabularies, users, and compiled-grammar blobs
// go through persistence.
//
// Create a Service with New; the zero value is not ready to use.
type Service struct {

	// DB is the persistence store of the service.
	DB dao.Store

	// Cache memoizes grammar compilation across matcher sessions.
	Cache *cache.Cache

	mtx      sync.Mutex
	matchers map[uuid.UUID]*matcherSession
}

// New creates a Service over the given store. The cache is wired to persist
// compiled-grammar blobs through the store's CompiledBlobs repository.
func New(db dao.Store) *Service {
	svc := &Service{
		DB:       db,
		matchers: make(map[uuid.UUID]*matcherSession),
	}
	svc.Cache = cache.New(cache.WithPersistence(blobPersistence{db: db}))
	return svc
}
