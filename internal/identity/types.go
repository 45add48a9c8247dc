package identity

import "errors"

// Role partitions identities into the two portal actors.
type Role string

const (
	RoleAdmin   Role = "admin"
	RolePatient Role = "patient"
)

// Identity is a stored credential record. The secret is compared verbatim;
// see VerifySecret for the single substitution point if hashing is added.
type Identity struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Secret string `json:"-"`
	Role   Role   `json:"role"`
}

var (
	ErrNotFound           = errors.New("identity not found")
	ErrMissingField       = errors.New("name, email and password are required")
	ErrDuplicateEmail     = errors.New("an account with this email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)
