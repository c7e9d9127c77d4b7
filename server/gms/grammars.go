package gms

import (
	"context"
	"errors"
	"hash/fnv"

	"github.com/dekarrin/gramask/internal/grammar"
	"github.com/dekarrin/gramask/server/dao"
	"github.com/dekarrin/gramask/server/serr"
	"github.com/google/uuid"
)

// CreateGrammar validates and stores a new grammar with the given name and
// EBNF source, owned by ownerID. The stored source is the normalized print
// form of the parsed grammar, not the raw upload, so equivalent uploads
// carry equal fingerprints. Returns the newly-created grammar record.
//
// The returned error, if non-nil, will return true for various calls to
// errors.Is depending on what caused the error. If the source does not
// parse, it will match both serr.ErrGrammar and serr.ErrBadArgument. If a
// grammar with that name already exists, it will match serr.ErrAlreadyExists.
// If the error occured due to an unexpected problem with the DB, it will
// match serr.ErrDB.
func (svc *Service) CreateGrammar(ctx context.Context, ownerID uuid.UUID, name, source string) (dao.Grammar, error) {
	if name == "" {
		return dao.Grammar{}, serr.New("name cannot be blank", serr.ErrBadArgument)
	}

	g, err := grammar.Parse(source)
	if err != nil {
		return dao.Grammar{}, serr.New(err.Error(), err, serr.ErrGrammar, serr.ErrBadArgument)
	}
	if err := g.Validate(); err != nil {
		return dao.Grammar{}, serr.New(err.Error(), err, serr.ErrGrammar, serr.ErrBadArgument)
	}

	normalized := grammar.Print(g)

	h := fnv.New128a()
	h.Write([]byte(normalized))

	newGrammar := dao.Grammar{
		OwnerID:     ownerID,
		Name:        name,
		Source:      normalized,
		Fingerprint: h.Sum(nil),
	}

	created, err := svc.DB.Grammars().Create(ctx, newGrammar)
	if err != nil {
		if errors.Is(err, dao.ErrConstraintViolation) {
			return dao.Grammar{}, serr.ErrAlreadyExists
		}
		return dao.Grammar{}, serr.WrapDB("could not create grammar", err)
	}

	return created, nil
}

// GetGrammar returns the grammar with the given ID.
func (svc *Service) GetGrammar(ctx context.Context, id string) (dao.Grammar, error) {
	uuidID, err := uuid.Parse(id)
	if err != nil {
		return dao.Grammar{}, serr.New("ID is not valid", serr.ErrBadArgument)
	}

	g, err := svc.DB.Grammars().GetByID(ctx, uuidID)
	if err != nil {
		if errors.Is(err, dao.ErrNotFound) {
			return dao.Grammar{}, serr.ErrNotFound
		}
		return dao.Grammar{}, serr.WrapDB("could not get grammar", err)
	}

	return g, nil
}

// GetAllGrammars returns all grammars currently in persistence.
func (svc *Service) GetAllGrammars(ctx context.Context) ([]dao.Grammar, error) {
	grammars, err := svc.DB.Grammars().GetAll(ctx)
	if err != nil {
		return nil, serr.WrapDB("", err)
	}

	return grammars, nil
}

// DeleteGrammar removes the grammar with the given ID from persistence and
// returns it as it was just before deletion.
func (svc *Service) DeleteGrammar(ctx context.Context, id string) (dao.Grammar, error) {
	uuidID, err := uuid.Parse(id)
	if err != nil {
		return dao.Grammar{}, serr.New("ID is not valid", serr.ErrBadArgument)
	}

	g, err := svc.DB.Grammars().Delete(ctx, uuidID)
	if err != nil {
		if errors.Is(err, dao.ErrNotFound) {
			return dao.Grammar{}, serr.ErrNotFound
		}
		return dao.Grammar{}, serr.WrapDB("could not delete grammar", err)
	}

	return g, nil
}
