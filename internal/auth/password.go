package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/hmallik/taskally/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrEmailExists        = errors.New("email already registered")
)

// IdentityStorage defines the interface for identity persistence. This
// allows the provider to be independent of the storage implementation.
// Lookup methods return nil, nil when no record exists.
type IdentityStorage interface {
	CreateIdentity(ctx context.Context, identity *models.Identity) error
	GetIdentityByEmail(ctx context.Context, email string) (*models.Identity, error)
	GetIdentityByID(ctx context.Context, id string) (*models.Identity, error)
	DeleteIdentity(ctx context.Context, id string) error
}

// Ensure PasswordProvider implements Provider
var _ Provider = (*PasswordProvider)(nil)

// PasswordProvider implements password-based identity using bcrypt, with
// an in-process ambient session and listener broadcast.
type PasswordProvider struct {
	storage IdentityStorage

	mu        sync.Mutex
	current   *Session
	listeners map[int]func(*Session)
	nextID    int
}

// NewPasswordProvider creates a password-based identity provider.
func NewPasswordProvider(storage IdentityStorage) *PasswordProvider {
	return &PasswordProvider{
		storage:   storage,
		listeners: make(map[int]func(*Session)),
	}
}

// validatePassword checks minimum password requirements.
func validatePassword(password string) error {
	if len(password) < 8 {
		return ErrWeakPassword
	}
	return nil
}

// SignUp creates a new identity with a hashed password and signs it in.
func (p *PasswordProvider) SignUp(ctx context.Context, email, password, displayName string) (*Session, error) {
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	existing, err := p.storage.GetIdentityByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	identity := &models.Identity{
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: string(hash),
	}
	if err := p.storage.CreateIdentity(ctx, identity); err != nil {
		return nil, fmt.Errorf("failed to create identity: %w", err)
	}

	session := &Session{UserID: identity.ID, Email: identity.Email, DisplayName: identity.DisplayName}
	p.setSession(session)
	return session, nil
}

// Authenticate verifies credentials without touching the ambient session.
// The HTTP login handler uses this; SignIn builds on it.
func (p *PasswordProvider) Authenticate(ctx context.Context, email, password string) (*Session, error) {
	identity, err := p.storage.GetIdentityByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up identity: %w", err)
	}
	if identity == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &Session{UserID: identity.ID, Email: identity.Email, DisplayName: identity.DisplayName}, nil
}

// SignIn verifies credentials and makes the identity the current session.
func (p *PasswordProvider) SignIn(ctx context.Context, email, password string) (*Session, error) {
	session, err := p.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	p.setSession(session)
	return session, nil
}

// SignOut clears the current session.
func (p *PasswordProvider) SignOut(ctx context.Context) error {
	p.setSession(nil)
	return nil
}

// CurrentSession returns the active session, or nil.
func (p *PasswordProvider) CurrentSession() *Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// OnSessionChange registers a listener, invoking it immediately with the
// current state.
func (p *PasswordProvider) OnSessionChange(fn func(*Session)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	current := p.current
	p.mu.Unlock()

	fn(current)

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// DeleteIdentity removes an identity record, signing it out first if it is
// the current session.
func (p *PasswordProvider) DeleteIdentity(ctx context.Context, id string) error {
	p.mu.Lock()
	signedIn := p.current != nil && p.current.UserID == id
	p.mu.Unlock()
	if signedIn {
		p.setSession(nil)
	}
	return p.storage.DeleteIdentity(ctx, id)
}

func (p *PasswordProvider) setSession(session *Session) {
	p.mu.Lock()
	p.current = session
	listeners := make([]func(*Session), 0, len(p.listeners))
	for _, fn := range p.listeners {
		listeners = append(listeners, fn)
	}
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(session)
	}
}
