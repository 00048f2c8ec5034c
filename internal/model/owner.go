package model

import "strings"

// OwnerKind discriminates the Owner union.
type OwnerKind string

const (
	OwnerNone    OwnerKind = ""
	OwnerAccount OwnerKind = "account"
	OwnerGuest   OwnerKind = "guest"
)

// Owner is either an account, a guest session, or nobody.
type Owner struct {
	Kind OwnerKind `json:"kind,omitempty"`
	ID   string    `json:"id,omitempty"`
}

func AccountOwner(accountID string) Owner { return Owner{Kind: OwnerAccount, ID: accountID} }

func GuestOwner(sessionID string) Owner { return Owner{Kind: OwnerGuest, ID: sessionID} }

// IsZero reports an unowned (public) record.
func (o Owner) IsZero() bool { return o.Kind == OwnerNone || o.ID == "" }

// AccountID returns the account id or "" for non-account owners.
func (o Owner) AccountID() string {
	if o.Kind == OwnerAccount {
		return o.ID
	}
	return ""
}

// SessionID returns the guest session id or "" for non-guest owners.
func (o Owner) SessionID() string {
	if o.Kind == OwnerGuest {
		return o.ID
	}
	return ""
}

func (o Owner) String() string {
	if o.IsZero() {
		return "none"
	}
	return string(o.Kind) + ":" + o.ID
}

// Roles.
const (
	RoleUser  = "user"
	RoleGuest = "guest"
	RoleAdmin = "admin"
)

// GuestTokenPrefix marks bearer tokens that name a guest session.
const GuestTokenPrefix = "guest_"

// IsGuestToken reports whether token names a guest session.
func IsGuestToken(token string) bool { return strings.HasPrefix(token, GuestTokenPrefix) }

// Identity is the resolved caller of a request. The zero value is anonymous.
type Identity struct {
	AccountID      string
	GuestSessionID string
	Role           string
}

// Owner converts the identity into the owner recorded on new records.
func (i Identity) Owner() Owner {
	switch {
	case i.AccountID != "":
		return AccountOwner(i.AccountID)
	case i.GuestSessionID != "":
		return GuestOwner(i.GuestSessionID)
	default:
		return Owner{}
	}
}

func (i Identity) IsAnonymous() bool { return i.AccountID == "" && i.GuestSessionID == "" }

func (i Identity) IsGuest() bool { return i.AccountID == "" && i.GuestSessionID != "" }

func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

// Owns reports whether the identity is the given owner.
func (i Identity) Owns(o Owner) bool {
	if o.IsZero() {
		return false
	}
	return i.Owner() == o
}
