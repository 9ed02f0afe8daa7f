package domain

// Credential is what the caller proved about itself. Only the email is used
// to resolve the identity.
type Credential struct {
	Email string
	Role  string
}

type Identity struct {
	ID    int64
	Email string
	Name  string
	Role  string
}
