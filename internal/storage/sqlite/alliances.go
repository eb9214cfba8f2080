package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/hmallik/taskally/internal/models"
	"github.com/hmallik/taskally/internal/storage"
)

// CreateAlliance persists a new alliance and mirrors every initial member
// onto the members' alliance lists in the same transaction.
func (s *Store) CreateAlliance(ctx context.Context, alliance *models.Alliance) error {
	if alliance.ID == "" {
		alliance.ID = uuid.New().String()
	}
	if alliance.CreatedAt.IsZero() {
		alliance.CreatedAt = s.now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO alliances (id, name, created_at) VALUES (?, ?, ?)",
		alliance.ID, alliance.Name, toMillis(alliance.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert alliance: %w", err)
	}

	for _, userID := range alliance.UserIDs {
		if err := insertMembership(ctx, tx, alliance.ID, userID); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	changes := []change{{colAlliances, alliance.ID}}
	for _, userID := range alliance.UserIDs {
		changes = append(changes, change{colUsers, userID})
	}
	s.hub.publish(changes...)
	return nil
}

// GetAlliance retrieves an alliance by ID.
func (s *Store) GetAlliance(ctx context.Context, id string) (*models.Alliance, error) {
	alliance, err := s.getAlliance(ctx, id)
	if err != nil {
		return nil, err
	}
	if alliance == nil {
		return nil, fmt.Errorf("alliance %s: %w", id, storage.ErrNotFound)
	}
	return alliance, nil
}

func (s *Store) getAlliance(ctx context.Context, id string) (*models.Alliance, error) {
	alliance := &models.Alliance{}
	var createdAt int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, created_at FROM alliances WHERE id = ?", id,
	).Scan(&alliance.ID, &alliance.Name, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alliance: %w", err)
	}
	alliance.CreatedAt = fromMillis(createdAt)

	rows, err := s.db.QueryContext(ctx,
		"SELECT user_id FROM alliance_members WHERE alliance_id = ? ORDER BY rowid", id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get alliance members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		alliance.UserIDs = append(alliance.UserIDs, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}
	return alliance, nil
}

// WatchAlliance follows a single alliance record.
func (s *Store) WatchAlliance(ctx context.Context, id string) (<-chan *models.Alliance, storage.CancelFunc, error) {
	return watch(ctx, s, docInterest(colAlliances, id), func(ctx context.Context) (*models.Alliance, error) {
		return s.getAlliance(ctx, id)
	})
}

// JoinAlliance adds both sides of the membership atomically.
func (s *Store) JoinAlliance(ctx context.Context, allianceID, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := requireAlliance(ctx, tx, allianceID); err != nil {
		return err
	}
	if err := insertMembership(ctx, tx, allianceID, userID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.hub.publish(change{colAlliances, allianceID}, change{colUsers, userID})
	return nil
}

// LeaveAlliance removes both sides of the membership atomically.
func (s *Store) LeaveAlliance(ctx context.Context, allianceID, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := requireAlliance(ctx, tx, allianceID); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		"DELETE FROM alliance_members WHERE alliance_id = ? AND user_id = ?",
		allianceID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"DELETE FROM user_alliances WHERE user_id = ? AND alliance_id = ?",
		userID, allianceID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove user alliance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.hub.publish(change{colAlliances, allianceID}, change{colUsers, userID})
	return nil
}

func requireAlliance(ctx context.Context, tx *sql.Tx, allianceID string) error {
	var one int
	err := tx.QueryRowContext(ctx, "SELECT 1 FROM alliances WHERE id = ?", allianceID).Scan(&one)
	if err == sql.ErrNoRows {
		return fmt.Errorf("alliance %s: %w", allianceID, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to check alliance: %w", err)
	}
	return nil
}

// insertMembership writes both mirror rows for one membership. INSERT OR
// IGNORE makes re-joining a no-op.
func insertMembership(ctx context.Context, tx *sql.Tx, allianceID, userID string) error {
	_, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO alliance_members (alliance_id, user_id) VALUES (?, ?)",
		allianceID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert member: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO user_alliances (user_id, alliance_id) VALUES (?, ?)",
		userID, allianceID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user alliance: %w", err)
	}
	return nil
}
