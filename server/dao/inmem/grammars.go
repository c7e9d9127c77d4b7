package inmem

import (
	"context"
	"fmt"
	"time"

	"github.com/dekarrin/gramask/internal/util"
	"github.com/dekarrin/gramask/server/dao"
	"github.com/google/uuid"
)

func NewGrammarsRepository() *GrammarsRepository {
	return &GrammarsRepository{
		grammars:    make(map[uuid.UUID]dao.Grammar),
		byNameIndex: make(map[string]uuid.UUID),
	}
}

// GrammarsRepository enforces name uniqueness per store, not per owner;
// grammar names are a flat global namespace the same way usernames are.
type GrammarsRepository struct {
	grammars    map[uuid.UUID]dao.Grammar
	byNameIndex map[string]uuid.UUID
}

func (imgr *GrammarsRepository) Close() error {
	return nil
}

func (imgr *GrammarsRepository) Create(ctx context.Context, g dao.Grammar) (dao.Grammar, error) {
	newUUID, err := uuid.NewRandom()
	if err != nil {
		return dao.Grammar{}, fmt.Errorf("could not generate ID: %w", err)
	}

	g.ID = newUUID

	if _, ok := imgr.byNameIndex[g.Name]; ok {
		return dao.Grammar{}, dao.ErrConstraintViolation
	}

	g.Created = time.Now()
	g.Modified = g.Created

	imgr.grammars[g.ID] = g
	imgr.byNameIndex[g.Name] = g.ID

	return g, nil
}

func (imgr *GrammarsRepository) GetByID(ctx context.Context, id uuid.UUID) (dao.Grammar, error) {
	g, ok := imgr.grammars[id]
	if !ok {
		return dao.Grammar{}, dao.ErrNotFound
	}

	return g, nil
}

func (imgr *GrammarsRepository) GetAll(ctx context.Context) ([]dao.Grammar, error) {
	all := make([]dao.Grammar, len(imgr.grammars))

	i := 0
	for k := range imgr.grammars {
		all[i] = imgr.grammars[k]
		i++
	}

	all = util.SortBy(all, func(l, r dao.Grammar) bool {
		return l.ID.String() < r.ID.String()
	})

	return all, nil
}

func (imgr *GrammarsRepository) GetAllByOwner(ctx context.Context, ownerID uuid.UUID) ([]dao.Grammar, error) {
	var owned []dao.Grammar
	for k := range imgr.grammars {
		if imgr.grammars[k].OwnerID == ownerID {
			owned = append(owned, imgr.grammars[k])
		}
	}

	owned = util.SortBy(owned, func(l, r dao.Grammar) bool {
		return l.ID.String() < r.ID.String()
	})

	return owned, nil
}

func (imgr *GrammarsRepository) Update(ctx context.Context, id uuid.UUID, g dao.Grammar) (dao.Grammar, error) {
	existing, ok := imgr.grammars[id]
	if !ok {
		return dao.Grammar{}, dao.ErrNotFound
	}

	if g.Name != existing.Name {
		if _, ok := imgr.byNameIndex[g.Name]; ok {
			return dao.Grammar{}, dao.ErrConstraintViolation
		}
	} else if g.ID != id {
		if _, ok := imgr.grammars[g.ID]; ok {
			return dao.Grammar{}, dao.ErrConstraintViolation
		}
	}

	g.Modified = time.Now()

	imgr.grammars[g.ID] = g
	imgr.byNameIndex[g.Name] = g.ID
	if g.ID != id {
		delete(imgr.grammars, id)
	}
	if g.Name != existing.Name {
		delete(imgr.byNameIndex, existing.Name)
	}

	return g, nil
}

func (imgr *GrammarsRepository) Delete(ctx context.Context, id uuid.UUID) (dao.Grammar, error) {
	g, ok := imgr.grammars[id]
	if !ok {
		return dao.Grammar{}, dao.ErrNotFound
	}

	delete(imgr.byNameIndex, g.Name)
	delete(imgr.grammars, g.ID)

	return g, nil
}
