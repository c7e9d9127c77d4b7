package inmem

import (
	"context"
	"fmt"
	"time"

	"github.com/dekarrin/gramask/internal/util"
	"github.com/dekarrin/gramask/server/dao"
	"github.com/google/uuid"
)

func NewVocabulariesRepository() *VocabulariesRepository {
	return &VocabulariesRepository{
		vocabs:      make(map[uuid.UUID]dao.Vocabulary),
		byNameIndex: make(map[string]uuid.UUID),
	}
}

type VocabulariesRepository struct {
	vocabs      map[uuid.UUID]dao.Vocabulary
	byNameIndex map[string]uuid.UUID
}

func (imvr *VocabulariesRepository) Close() error {
	return nil
}

func (imvr *VocabulariesRepository) Create(ctx context.Context, v dao.Vocabulary) (dao.Vocabulary, error) {
	newUUID, err := uuid.NewRandom()
	if err != nil {
		return dao.Vocabulary{}, fmt.Errorf("could not generate ID: %w", err)
	}

	v.ID = newUUID

	if _, ok := imvr.byNameIndex[v.Name]; ok {
		return dao.Vocabulary{}, dao.ErrConstraintViolation
	}

	v.Created = time.Now()

	imvr.vocabs[v.ID] = v
	imvr.byNameIndex[v.Name] = v.ID

	return v, nil
}

func (imvr *VocabulariesRepository) GetByID(ctx context.Context, id uuid.UUID) (dao.Vocabulary, error) {
	v, ok := imvr.vocabs[id]
	if !ok {
		return dao.Vocabulary{}, dao.ErrNotFound
	}

	return v, nil
}

func (imvr *VocabulariesRepository) GetAll(ctx context.Context) ([]dao.Vocabulary, error) {
	all := make([]dao.Vocabulary, len(imvr.vocabs))

	i := 0
	for k := range imvr.vocabs {
		all[i] = imvr.vocabs[k]
		i++
	}

	all = util.SortBy(all, func(l, r dao.Vocabulary) bool {
		return l.ID.String() < r.ID.String()
	})

	return all, nil
}

func (imvr *VocabulariesRepository) GetAllByOwner(ctx context.Context, ownerID uuid.UUID) ([]dao.Vocabulary, error) {
	var owned []dao.Vocabulary
	for k := range imvr.vocabs {
		if imvr.vocabs[k].OwnerID == ownerID {
			owned = append(owned, imvr.vocabs[k])
		}
	}

	owned = util.SortBy(owned, func(l, r dao.Vocabulary) bool {
		return l.ID.String() < r.ID.String()
	})

	return owned, nil
}

func (imvr *VocabulariesRepository) Update(ctx context.Context, id uuid.UUID, v dao.Vocabulary) (dao.Vocabulary, error) {
	existing, ok := imvr.vocabs[id]
	if !ok {
		return dao.Vocabulary{}, dao.ErrNotFound
	}

	if v.Name != existing.Name {
		if _, ok := imvr.byNameIndex[v.Name]; ok {
			return dao.Vocabulary{}, dao.ErrConstraintViolation
		}
	} else if v.ID != id {
		if _, ok := imvr.vocabs[v.ID]; ok {
			return dao.Vocabulary{}, dao.ErrConstraintViolation
		}
	}

	imvr.vocabs[v.ID] = v
	imvr.byNameIndex[v.Name] = v.ID
	if v.ID != id {
		delete(imvr.vocabs, id)
	}
	if v.Name != existing.Name {
		delete(imvr.byNameIndex, existing.Name)
	}

	return v, nil
}

func (imvr *VocabulariesRepository) Delete(ctx context.Context, id uuid.UUID) (dao.Vocabulary, error) {
	v, ok := imvr.vocabs[id]
	if !ok {
		return dao.Vocabulary{}, dao.ErrNotFound
	}

	delete(imvr.byNameIndex, v.Name)
	delete(imvr.vocabs, v.ID)

	return v, nil
}
