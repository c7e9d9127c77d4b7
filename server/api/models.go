package api

import (
	"encoding/hex"
	"time"

	"github.com/dekarrin/gramask/server/dao"
	"github.com/dekarrin/gramask/server/gms"
)

// LoginRequest is the request body for creating a login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the response body for a successful login or token
// refresh.
type LoginResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}

// InfoModel is the response body of the API info endpoint.
type InfoModel struct {
	Version struct {
		Server  string `json:"server"`
		Gramask string `json:"gramask"`
	} `json:"version"`
}

// UserModel is the representation of a user entity in API responses.
// Passwords are never included.
type UserModel struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Created  string `json:"created"`
}

func userModelFrom(u dao.User) UserModel {
	email := ""
	if u.Email != nil {
		email = u.Email.Address
	}
	return UserModel{
		ID:       u.ID.String(),
		Username: u.Username,
		Email:    email,
		Role:     u.Role.String(),
		Created:  u.Created.Format(time.RFC3339),
	}
}

// CreateUserRequest is the request body for creating a user.
type CreateUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// CreateGrammarRequest is the request body for uploading a grammar.
type CreateGrammarRequest struct {
	Name   string `json:"name"`
	Source string `json:"source"`
}

// GrammarModel is the representation of a stored grammar in API responses.
// Source is the normalized print form, not the raw upload.
type GrammarModel struct {
	ID          string `json:"id"`
	OwnerID     string `json:"owner_id"`
	Name        string `json:"name"`
	Source      string `json:"source"`
	Fingerprint string `json:"fingerprint"`
	Created     string `json:"created"`
	Modified    string `json:"modified"`
}

func grammarModelFrom(g dao.Grammar) GrammarModel {
	return GrammarModel{
		ID:          g.ID.String(),
		OwnerID:     g.OwnerID.String(),
		Name:        g.Name,
		Source:      g.Source,
		Fingerprint: hex.EncodeToString(g.Fingerprint),
		Created:     g.Created.Format(time.RFC3339),
		Modified:    g.Modified.Format(time.RFC3339),
	}
}

// CreateVocabularyRequest is the request body for uploading a vocabulary in
// GVF source form.
type CreateVocabularyRequest struct {
	Name   string `json:"name"`
	Source string `json:"source"`
}

// VocabularyModel is the representation of a stored vocabulary in API
// responses. The GVF source is only included when a single vocabulary is
// requested, not in listings.
type VocabularyModel struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`
	Name    string `json:"name"`
	Size    int    `json:"size"`
	Source  string `json:"source,omitempty"`
	Created string `json:"created"`
}

func vocabularyModelFrom(v dao.Vocabulary, includeSource bool) VocabularyModel {
	m := VocabularyModel{
		ID:      v.ID.String(),
		OwnerID: v.OwnerID.String(),
		Name:    v.Name,
		Size:    v.Size,
		Created: v.Created.Format(time.RFC3339),
	}
	if includeSource {
		m.Source = v.Source
	}
	return m
}

// CreateMatcherRequest is the request body for starting a new matcher
// session.
type CreateMatcherRequest struct {
	GrammarID    string `json:"grammar_id"`
	VocabularyID string `json:"vocabulary_id"`

	TerminateWithoutStopToken bool  `json:"terminate_without_stop_token,omitempty"`
	MaxRollbackTokens         int   `json:"max_rollback_tokens,omitempty"`
	OverrideStopTokens        []int `json:"override_stop_tokens,omitempty"`
}

// MatcherModel is the representation of a live matcher session in API
// responses.
type MatcherModel struct {
	ID           string `json:"id"`
	OwnerID      string `json:"owner_id"`
	GrammarID    string `json:"grammar_id"`
	VocabularyID string `json:"vocabulary_id"`
	VocabSize    int    `json:"vocab_size"`
	Terminated   bool   `json:"terminated"`
}

func matcherModelFrom(info gms.MatcherInfo) MatcherModel {
	return MatcherModel{
		ID:           info.ID.String(),
		OwnerID:      info.OwnerID.String(),
		GrammarID:    info.GrammarID.String(),
		VocabularyID: info.VocabularyID.String(),
		VocabSize:    info.VocabSize,
		Terminated:   info.Terminated,
	}
}

// AcceptRequest is the request body for advancing a matcher. Exactly one of
// TokenID and Text must be set.
type AcceptRequest struct {
	TokenID *int   `json:"token_id,omitempty"`
	Text    string `json:"text,omitempty"`
}

// AcceptResponse reports whether the matcher consumed the input.
type AcceptResponse struct {
	Accepted bool         `json:"accepted"`
	Matcher  MatcherModel `json:"matcher"`
}

// MaskResponse carries a packed next-token bitmask: bit k of word w
// corresponds to vocabulary id w*32+k, and a 1 bit means the token is
// admissible. NeedApply is false when the mask is all-ones and may be
// skipped.
type MaskResponse struct {
	Words     []int32 `json:"words"`
	VocabSize int     `json:"vocab_size"`
	NeedApply bool    `json:"need_apply"`
}

// RollbackRequest is the request body for rolling a matcher back.
type RollbackRequest struct {
	Count int `json:"count"`
}

// JumpForwardResponse carries the byte string forced by the grammar from
// the matcher's current state, if any.
type JumpForwardResponse struct {
	Text string `json:"text"`
	OK   bool   `json:"ok"`
}
