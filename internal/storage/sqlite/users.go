package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/hmallik/taskally/internal/models"
	"github.com/hmallik/taskally/internal/storage"
)

// CreateUser persists a new user profile.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users (id, name, email, created_at) VALUES (?, ?, ?, ?)",
		user.ID, user.Name, user.Email, toMillis(user.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	s.hub.publish(change{colUsers, user.ID})
	return nil
}

// UpdateUser replaces the mutable profile fields.
func (s *Store) UpdateUser(ctx context.Context, user *models.User) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET name = ?, email = ? WHERE id = ?",
		user.Name, user.Email, user.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("user %s: %w", user.ID, storage.ErrNotFound)
	}

	s.hub.publish(change{colUsers, user.ID})
	return nil
}

// GetUser retrieves a user profile by ID.
func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.getUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	return user, nil
}

// getUser returns nil, nil for a missing user so watches can report
// absence without an error.
func (s *Store) getUser(ctx context.Context, id string) (*models.User, error) {
	user := &models.User{}
	var createdAt int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, email, created_at FROM users WHERE id = ?", id,
	).Scan(&user.ID, &user.Name, &user.Email, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	user.CreatedAt = fromMillis(createdAt)

	user.AllianceIDs, err = s.userAllianceIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Store) userAllianceIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT alliance_id FROM user_alliances WHERE user_id = ? ORDER BY rowid", userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get user alliances: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan alliance id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user alliances: %w", err)
	}
	return ids, nil
}

// WatchUser follows a single user profile.
func (s *Store) WatchUser(ctx context.Context, id string) (<-chan *models.User, storage.CancelFunc, error) {
	return watch(ctx, s, docInterest(colUsers, id), func(ctx context.Context) (*models.User, error) {
		return s.getUser(ctx, id)
	})
}

// WatchUsersByIDs follows the profiles of at most storage.MaxIDBatch
// users.
func (s *Store) WatchUsersByIDs(ctx context.Context, ids []string) (<-chan []models.User, storage.CancelFunc, error) {
	if len(ids) > storage.MaxIDBatch {
		return nil, nil, fmt.Errorf("%d ids: %w", len(ids), storage.ErrBatchTooLarge)
	}

	idSet := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		idSet[id] = struct{}{}
	}
	interested := func(c change) bool {
		if c.collection != colUsers {
			return false
		}
		_, ok := idSet[c.id]
		return ok
	}

	batch := make([]string, len(ids))
	copy(batch, ids)
	return watch(ctx, s, interested, func(ctx context.Context) ([]models.User, error) {
		return s.getUsersByIDs(ctx, batch)
	})
}

// getUsersByIDs loads the users with the given IDs. Missing users are
// omitted. Result order follows the input order.
func (s *Store) getUsersByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}

	query := "SELECT id, name, email, created_at FROM users WHERE id IN (" + placeholders(len(ids)) + ")"
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get users by ids: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]models.User, len(ids))
	for rows.Next() {
		var user models.User
		var createdAt int64
		if err := rows.Scan(&user.ID, &user.Name, &user.Email, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		user.CreatedAt = fromMillis(createdAt)
		byID[user.ID] = user
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	users := make([]models.User, 0, len(byID))
	for _, id := range ids {
		user, ok := byID[id]
		if !ok {
			continue
		}
		user.AllianceIDs, err = s.userAllianceIDs(ctx, id)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

// Identity storage, used by the auth layer. Identities are deliberately
// not published on the hub; nothing watches credentials.

// CreateIdentity inserts a new identity record.
func (s *Store) CreateIdentity(ctx context.Context, identity *models.Identity) error {
	if identity.ID == "" {
		identity.ID = uuid.New().String()
	}
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = s.now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO identities (id, email, display_name, password_hash, created_at) VALUES (?, ?, ?, ?, ?)",
		identity.ID, identity.Email, identity.DisplayName, identity.PasswordHash, toMillis(identity.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create identity: %w", err)
	}
	return nil
}

// GetIdentityByEmail retrieves an identity by email. Returns nil, nil when
// no identity exists for the email.
func (s *Store) GetIdentityByEmail(ctx context.Context, email string) (*models.Identity, error) {
	return s.scanIdentity(s.db.QueryRowContext(ctx,
		"SELECT id, email, display_name, password_hash, created_at FROM identities WHERE email = ?", email,
	))
}

// GetIdentityByID retrieves an identity by ID. Returns nil, nil when
// absent.
func (s *Store) GetIdentityByID(ctx context.Context, id string) (*models.Identity, error) {
	return s.scanIdentity(s.db.QueryRowContext(ctx,
		"SELECT id, email, display_name, password_hash, created_at FROM identities WHERE id = ?", id,
	))
}

func (s *Store) scanIdentity(row *sql.Row) (*models.Identity, error) {
	identity := &models.Identity{}
	var createdAt int64
	err := row.Scan(&identity.ID, &identity.Email, &identity.DisplayName, &identity.PasswordHash, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get identity: %w", err)
	}
	identity.CreatedAt = fromMillis(createdAt)
	return identity, nil
}

// DeleteIdentity removes an identity record. Used to roll back a signup
// whose profile write failed.
func (s *Store) DeleteIdentity(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM identities WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete identity: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("identity %s: %w", id, storage.ErrNotFound)
	}
	return nil
}
