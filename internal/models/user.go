package models

import "time"

// User is the profile document for a registered account.
//
// The identity record (email + password hash) lives separately in the auth
// layer; this is the document other users see and the one the session
// observer joins onto the identity after login.
type User struct {
	// ID is the unique identifier for the user (UUID format). It matches
	// the ID of the corresponding identity record.
	ID string `json:"id"`

	// Name is the display name of the user.
	Name string `json:"name"`

	// Email is the user's email address (unique).
	Email string `json:"email"`

	// AllianceIDs lists the alliances this user belongs to. Mirrors
	// Alliance.UserIDs; both sides are updated atomically on join/leave.
	AllianceIDs []string `json:"allianceIds"`

	// CreatedAt is when the profile document was written.
	CreatedAt time.Time `json:"createdAt"`
}
