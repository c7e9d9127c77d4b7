// Package inmem provides an entirely in-memory implementation of the gramask
// server's persistence layer. It enforces uniqueness constraints within each
// repository but, unlike the sqlite implementation, does not enforce foreign
// keys across them.
package inmem

import (
	"fmt"

	"github.com/dekarrin/gramask/server/dao"
)

type store struct {
	users    *UsersRepository
	grammars *GrammarsRepository
	vocabs   *VocabulariesRepository
	blobs    *CompiledBlobsRepository
}

func NewDatastore() dao.Store {
	return &store{
		users:    NewUsersRepository(),
		grammars: NewGrammarsRepository(),
		vocabs:   NewVocabulariesRepository(),
		blobs:    NewCompiledBlobsRepository(),
	}
}

func (s *store) Users() dao.UserRepository {
	return s.users
}

func (s *store) Grammars() dao.GrammarRepository {
	return s.grammars
}

func (s *store) Vocabularies() dao.VocabularyRepository {
	return s.vocabs
}

func (s *store) CompiledBlobs() dao.CompiledBlobRepository {
	return s.blobs
}

func (s *store) Close() error {
	var err error

	for _, closer := range []interface{ Close() error }{s.users, s.grammars, s.vocabs, s.blobs} {
		if nextErr := closer.Close(); nextErr != nil {
			if err != nil {
				err = fmt.Errorf("%s\nadditionally, %w", err, nextErr)
			} else {
				err = nextErr
			}
		}
	}

	return err
}
