// Package dao provides data access objects for use in the gramask server.
package dao

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store holds all the repositories.
type Store interface {
	Users() UserRepository
	Grammars() GrammarRepository
	Vocabularies() VocabularyRepository
	CompiledBlobs() CompiledBlobRepository
	Close() error
}

type UserRepository interface {

	// Create creates a new User. All attributes except for auto-generated
	// fields are taken from the provided User.
	Create(ctx context.Context, user User) (User, error)
	GetByID(ctx context.Context, id uuid.UUID) (User, error)
	GetByUsername(ctx context.Context, username string) (User, error)
	GetAll(ctx context.Context) ([]User, error)
	Update(ctx context.Context, id uuid.UUID, user User) (User, error)
	Delete(ctx context.Context, id uuid.UUID) (User, error)

	// Close closes the connection.
	Close() error
}

// GrammarRepository persists uploaded grammar sources. The source stored is
// the normalized print form, so two uploads that parse to the same grammar
// carry the same fingerprint.
type GrammarRepository interface {
	Create(ctx context.Context, g Grammar) (Grammar, error)
	GetByID(ctx context.Context, id uuid.UUID) (Grammar, error)
	GetAllByOwner(ctx context.Context, ownerID uuid.UUID) ([]Grammar, error)
	GetAll(ctx context.Context) ([]Grammar, error)
	Update(ctx context.Context, id uuid.UUID, g Grammar) (Grammar, error)
	Delete(ctx context.Context, id uuid.UUID) (Grammar, error)
	Close() error
}

type Grammar struct {
	ID          uuid.UUID
	OwnerID     uuid.UUID
	Name        string
	Source      string
	Fingerprint []byte
	Created     time.Time
	Modified    time.Time
}

// VocabularyRepository persists uploaded vocabularies in their GVF source
// form; the server re-parses on load rather than storing a second decoded
// representation that could drift from the source of truth.
type VocabularyRepository interface {
	Create(ctx context.Context, v Vocabulary) (Vocabulary, error)
	GetByID(ctx context.Context, id uuid.UUID) (Vocabulary, error)
	GetAllByOwner(ctx context.Context, ownerID uuid.UUID) ([]Vocabulary, error)
	GetAll(ctx context.Context) ([]Vocabulary, error)
	Update(ctx context.Context, id uuid.UUID, v Vocabulary) (Vocabulary, error)
	Delete(ctx context.Context, id uuid.UUID) (Vocabulary, error)
	Close() error
}

type Vocabulary struct {
	ID      uuid.UUID
	OwnerID uuid.UUID
	Name    string
	Source  string
	Size    int
	Created time.Time
}

// CompiledBlobRepository persists serialized compiled-grammar cache entries,
// keyed by fingerprint. It backs the compiler cache's persistence tier.
type CompiledBlobRepository interface {
	Put(ctx context.Context, blob CompiledBlob) (CompiledBlob, error)
	GetByFingerprint(ctx context.Context, fingerprint []byte) (CompiledBlob, error)
	Delete(ctx context.Context, fingerprint []byte) (CompiledBlob, error)
	Close() error
}

type CompiledBlob struct {
	Fingerprint []byte
	Data        []byte
	Created     time.Time
}

type Role int

const (
	Guest Role = iota
	Unverified
	Normal

	Admin Role = 100
)

func (r Role) String() string {
	switch r {
	case Guest:
		return "guest"
	case Unverified:
		return "unverified"
	case Normal:
		return "normal"
	case Admin:
		return "admin"
	default:
		return fmt.Sprintf("Role(%d)", r)
	}
}

func ParseRole(s string) (Role, error) {
	check := strings.ToLower(s)
	switch check {
	case "guest":
		return Guest, nil
	case "unverified":
		return Unverified, nil
	case "normal":
		return Normal, nil
	case "admin":
		return Admin, nil
	default:
		return Guest, fmt.Errorf("must be one of 'guest', 'unverified', 'normal', or 'admin'")
	}
}

type User struct {
	ID             uuid.UUID     // PK, NOT NULL
	Username       string        // UNIQUE, NOT NULL
	Password       string        // NOT NULL
	Email          *mail.Address // NOT NULL
	Role           Role          // NOT NULL
	Created        time.Time     // NOT NULL
	Modified       time.Time
	LastLogoutTime time.Time // NOT NULL DEFAULT NOW()
	LastLoginTime  time.Time // NOT NULL
}
