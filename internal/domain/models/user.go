package models

// User is the opaque identity handed to the core by the identity layer.
// Two users are the same participant iff their IDs match; Issuer records
// which identity provider minted the ID and is never compared.
type User struct {
	ID       string `json:"userId"`
	Issuer   string `json:"issuer"`
	Username string `json:"username,omitempty"`
}

// Same reports whether two users refer to the same participant.
func (u User) Same(other User) bool {
	return u.ID == other.ID
}
