// Package auth implements the identity side of Taskally: credential
// storage, the ambient session the live layer observes, JWT tokens for the
// HTTP API, and the signup flow that writes identity and profile together.
package auth

import "context"

// Session describes an active signed-in identity.
type Session struct {
	UserID      string
	Email       string
	DisplayName string
}

// Provider is the identity-provider capability consumed by the live layer.
// It models the upstream auth SDK's ambient session: one current session,
// observable through OnSessionChange. The HTTP API does not use the
// ambient session; it authenticates per request with JWTs.
type Provider interface {
	// SignUp creates a new identity and signs it in.
	SignUp(ctx context.Context, email, password, displayName string) (*Session, error)

	// SignIn verifies credentials and makes the identity the current
	// session.
	SignIn(ctx context.Context, email, password string) (*Session, error)

	// SignOut clears the current session.
	SignOut(ctx context.Context) error

	// CurrentSession returns the active session, or nil when signed out.
	CurrentSession() *Session

	// OnSessionChange registers a listener for session transitions. The
	// listener is invoked immediately with the current session (possibly
	// nil), then again on every sign-in and sign-out, always with nil or a
	// complete Session — never a partial update. The returned cancel
	// removes the listener.
	OnSessionChange(fn func(*Session)) (cancel func())

	// DeleteIdentity removes an identity record. Used to roll back a
	// signup whose profile write failed.
	DeleteIdentity(ctx context.Context, id string) error
}
