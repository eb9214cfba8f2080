package live

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hmallik/taskally/internal/auth"
	"github.com/hmallik/taskally/internal/models"
	"github.com/hmallik/taskally/internal/storage"
)

// SessionState is the auth lifecycle state of a SessionView.
type SessionState string

const (
	// SessionLoading is the initial state, before the identity provider
	// has reported anything.
	SessionLoading SessionState = "Loading"

	// SessionSignedOut means no active session.
	SessionSignedOut SessionState = "SignedOut"

	// SessionSignedIn means a session exists and the profile document has
	// been read at least once (the profile itself may not exist yet).
	SessionSignedIn SessionState = "SignedIn"
)

// SessionSnapshot is one emission of the session view. User is nil unless
// State is SessionSignedIn; when signed in with no profile document yet,
// User carries only the identity fields.
type SessionSnapshot struct {
	State SessionState
	User  *models.User
}

// SessionView observes the identity provider's session and joins the live
// profile document onto it. Profile updates re-emit SignedIn with fresh
// fields, without dropping back to Loading.
type SessionView struct {
	store storage.Store
	box   *mailbox[SessionSnapshot]

	mu            sync.Mutex
	gen           int
	closed        bool
	cancelAuth    func()
	cancelProfile storage.CancelFunc
}

// NewSessionView subscribes to the provider's session changes. Close must
// be called to release both the session listener and the nested profile
// watch.
func NewSessionView(provider auth.Provider, store storage.Store) *SessionView {
	v := &SessionView{
		store: store,
		box:   newMailbox[SessionSnapshot](),
	}
	v.box.put(SessionSnapshot{State: SessionLoading})
	v.cancelAuth = provider.OnSessionChange(v.onSession)
	return v
}

// Updates delivers session snapshots. The channel closes after Close.
func (v *SessionView) Updates() <-chan SessionSnapshot {
	return v.box.out
}

// Close cancels the session listener and any active profile watch.
func (v *SessionView) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	v.gen++
	cancelAuth := v.cancelAuth
	cancelProfile := v.cancelProfile
	v.cancelProfile = nil
	v.mu.Unlock()

	if cancelAuth != nil {
		cancelAuth()
	}
	if cancelProfile != nil {
		cancelProfile()
	}
	v.box.close()
}

func (v *SessionView) onSession(session *auth.Session) {
	v.mu.Lock()
	v.gen++
	gen := v.gen
	if v.cancelProfile != nil {
		v.cancelProfile()
		v.cancelProfile = nil
	}
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.mu.Unlock()

	if session == nil {
		v.box.put(SessionSnapshot{State: SessionSignedOut})
		return
	}

	ch, cancel, err := v.store.WatchUser(context.Background(), session.UserID)
	if err != nil {
		// The session is real even if the profile cannot be read; emit
		// the identity-only user rather than wedging in Loading.
		slog.Error("profile watch failed", "user_id", session.UserID, "error", err)
		v.box.put(SessionSnapshot{State: SessionSignedIn, User: identityUser(session)})
		return
	}

	v.mu.Lock()
	if v.closed || v.gen != gen {
		v.mu.Unlock()
		cancel()
		return
	}
	v.cancelProfile = cancel
	v.mu.Unlock()

	go func() {
		for profile := range ch {
			v.mu.Lock()
			stale := v.closed || v.gen != gen
			v.mu.Unlock()
			if stale {
				return
			}
			v.box.put(SessionSnapshot{State: SessionSignedIn, User: mergeUser(session, profile)})
		}
	}()
}

// identityUser builds a user record from identity fields alone, for the
// signup race where the profile document does not exist yet.
func identityUser(session *auth.Session) *models.User {
	return &models.User{
		ID:    session.UserID,
		Email: session.Email,
		Name:  session.DisplayName,
	}
}

// mergeUser joins the profile document onto the identity. A nil profile
// yields the identity-only record.
func mergeUser(session *auth.Session, profile *models.User) *models.User {
	if profile == nil {
		return identityUser(session)
	}
	merged := *profile
	if merged.ID == "" {
		merged.ID = session.UserID
	}
	if merged.Email == "" {
		merged.Email = session.Email
	}
	return &merged
}
