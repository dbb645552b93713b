package domain

import "strings"

// Identity is the authenticated principal. It is captured once per successful
// authentication, embedded into signed tokens and never mutated afterwards.
type Identity struct {
	ID        UserID `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// Valid reports whether the identity carries the fields every token must have.
func (i Identity) Valid() bool {
	return !i.ID.IsNil() && strings.TrimSpace(i.Email) != ""
}
