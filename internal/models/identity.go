package models

import "time"

// Identity is the credential record behind a user account. It is owned by
// the auth layer and kept separate from the User profile document: the two
// are written together on signup, and the identity is deleted again if the
// profile write fails.
type Identity struct {
	// ID is the unique identifier for the identity (UUID format). The
	// user's profile document shares this ID.
	ID string

	// Email is the login email (unique).
	Email string

	// DisplayName is the name set at signup.
	DisplayName string

	// PasswordHash is the bcrypt hash of the password.
	PasswordHash string

	// CreatedAt is when the account was created.
	CreatedAt time.Time
}
