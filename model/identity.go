package model

// Identity identifies the current user session. A new token for the same user is treated as
// a different identity.
type Identity struct {
	User  string `json:"user"`
	Token string `json:"token"`
}
