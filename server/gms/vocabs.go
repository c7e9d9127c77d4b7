package gms

import (
	"context"
	"errors"

	"github.com/dekarrin/gramask/internal/vocabfile"
	"github.com/dekarrin/gramask/server/dao"
	"github.com/dekarrin/gramask/server/serr"
	"github.com/google/uuid"
)

// CreateVocabulary validates and stores a new vocabulary with the given name
// and GVF source, owned by ownerID. Returns the newly-created vocabulary
// record.
//
// The returned error, if non-nil, will return true for various calls to
// errors.Is depending on what caused the error. If the source does not
// parse as GVF, it will match both serr.ErrVocabulary and
// serr.ErrBadArgument. If a vocabulary with that name already exists, it
// will match serr.ErrAlreadyExists. If the error occured due to an
// unexpected problem with the DB, it will match serr.ErrDB.
func (svc *Service) CreateVocabulary(ctx context.Context, ownerID uuid.UUID, name, source string) (dao.Vocabulary, error) {
	if name == "" {
		return dao.Vocabulary{}, serr.New("name cannot be blank", serr.ErrBadArgument)
	}

	v, err := vocabfile.Parse([]byte(source))
	if err != nil {
		return dao.Vocabulary{}, serr.New(err.Error(), err, serr.ErrVocabulary, serr.ErrBadArgument)
	}

	newVocab := dao.Vocabulary{
		OwnerID: ownerID,
		Name:    name,
		Source:  source,
		Size:    v.Size(),
	}

	created, err := svc.DB.Vocabularies().Create(ctx, newVocab)
	if err != nil {
		if errors.Is(err, dao.ErrConstraintViolation) {
			return dao.Vocabulary{}, serr.ErrAlreadyExists
		}
		return dao.Vocabulary{}, serr.WrapDB("could not create vocabulary", err)
	}

	return created, nil
}

// GetVocabulary returns the vocabulary with the given ID.
func (svc *Service) GetVocabulary(ctx context.Context, id string) (dao.Vocabulary, error) {
	uuidID, err := uuid.Parse(id)
	if err != nil {
		return dao.Vocabulary{}, serr.New("ID is not valid", serr.ErrBadArgument)
	}

	v, err := svc.DB.Vocabularies().GetByID(ctx, uuidID)
	if err != nil {
		if errors.Is(err, dao.ErrNotFound) {
			return dao.Vocabulary{}, serr.ErrNotFound
		}
		return dao.Vocabulary{}, serr.WrapDB("could not get vocabulary", err)
	}

	return v, nil
}

// GetAllVocabularies returns all vocabularies currently in persistence.
func (svc *Service) GetAllVocabularies(ctx context.Context) ([]dao.Vocabulary, error) {
	vocabs, err := svc.DB.Vocabularies().GetAll(ctx)
	if err != nil {
		return nil, serr.WrapDB("", err)
	}

	return vocabs, nil
}

// DeleteVocabulary removes the vocabulary with the given ID from persistence
// and returns it as it was just before deletion.
func (svc *Service) DeleteVocabulary(ctx context.Context, id string) (dao.Vocabulary, error) {
	uuidID, err := uuid.Parse(id)
	if err != nil {
		return dao.Vocabulary{}, serr.New("ID is not valid", serr.ErrBadArgument)
	}

	v, err := svc.DB.Vocabularies().Delete(ctx, uuidID)
	if err != nil {
		if errors.Is(err, dao.ErrNotFound) {
			return dao.Vocabulary{}, serr.ErrNotFound
		}
		return dao.Vocabulary{}, serr.WrapDB("could not delete vocabulary", err)
	}

	return v, nil
}
