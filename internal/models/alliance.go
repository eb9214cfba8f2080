package models

import (
	"slices"
	"time"
)

// Alliance is a named group of users who share a task list.
type Alliance struct {
	// ID is the unique identifier for the alliance (UUID format).
	ID string `json:"id"`

	// Name is the display name of the alliance.
	Name string `json:"name"`

	// UserIDs lists the member user IDs. The creator is the first member.
	UserIDs []string `json:"userIds"`

	// CreatedAt is when the alliance was created.
	CreatedAt time.Time `json:"createdAt"`
}

// HasMember reports whether the given user is in the member list.
func (a *Alliance) HasMember(userID string) bool {
	if a == nil || userID == "" {
		return false
	}
	return slices.Contains(a.UserIDs, userID)
}
