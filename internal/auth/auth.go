// Package auth resolves bearer tokens to identities.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/KaramelBytes/dataglimpse/internal/model"
)

// ErrInvalidToken reports a bearer token that maps to no identity.
var ErrInvalidToken = errors.New("invalid token")

type account struct {
	token string
	id    string
	role  string
}

// Resolver maps tokens to identities. Tokens with the guest_ prefix name a
// guest session; any other token must be in the configured table.
type Resolver struct {
	accounts []account
}

// NewResolver parses entries of the form "token=accountId" or
// "token=accountId:role".
func NewResolver(entries []string) (*Resolver, error) {
	r := &Resolver{}
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		tok, rest, ok := strings.Cut(e, "=")
		tok, rest = strings.TrimSpace(tok), strings.TrimSpace(rest)
		if !ok || tok == "" || rest == "" {
			return nil, fmt.Errorf("api token entry %q: want token=accountId[:role]", e)
		}
		if model.IsGuestToken(tok) {
			return nil, fmt.Errorf("api token entry for %q: account tokens must not start with %q", rest, model.GuestTokenPrefix)
		}
		id, role, _ := strings.Cut(rest, ":")
		switch role {
		case "":
			role = model.RoleUser
		case model.RoleUser, model.RoleAdmin:
		default:
			return nil, fmt.Errorf("api token entry for %q: unknown role %q", id, role)
		}
		r.accounts = append(r.accounts, account{token: tok, id: id, role: role})
	}
	return r, nil
}

// Resolve returns the identity for token. An empty token is anonymous.
func (r *Resolver) Resolve(token string) (model.Identity, error) {
	token = strings.TrimSpace(token)
	switch {
	case token == "":
		return model.Identity{}, nil
	case model.IsGuestToken(token):
		if len(token) == len(model.GuestTokenPrefix) {
			return model.Identity{}, ErrInvalidToken
		}
		return model.Identity{GuestSessionID: token, Role: model.RoleGuest}, nil
	}
	for _, a := range r.accounts {
		if subtle.ConstantTimeCompare([]byte(a.token), []byte(token)) == 1 {
			return model.Identity{AccountID: a.id, Role: a.role}, nil
		}
	}
	return model.Identity{}, ErrInvalidToken
}

// FromRequest resolves the request's "Authorization: Bearer" header.
func (r *Resolver) FromRequest(req *http.Request) (model.Identity, error) {
	h := req.Header.Get("Authorization")
	if h == "" {
		return model.Identity{}, nil
	}
	scheme, tok, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return model.Identity{}, ErrInvalidToken
	}
	return r.Resolve(tok)
}
