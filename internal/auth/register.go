package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hmallik/taskally/internal/models"
	"github.com/hmallik/taskally/internal/storage"
)

// RegisterWithProfile creates an identity and its user profile document
// together. If the profile write fails after the identity exists, the
// identity is deleted again so no half-created account is left behind.
func RegisterWithProfile(ctx context.Context, provider Provider, store storage.Store, name, email, password string) (*models.User, error) {
	session, err := provider.SignUp(ctx, email, password, name)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:    session.UserID,
		Name:  name,
		Email: email,
	}
	if err := store.CreateUser(ctx, user); err != nil {
		if delErr := provider.DeleteIdentity(ctx, session.UserID); delErr != nil {
			slog.Error("failed to roll back identity after profile write failure",
				"user_id", session.UserID, "error", delErr)
		}
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	return user, nil
}
