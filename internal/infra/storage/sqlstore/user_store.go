package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/docsite/internal/core/domain"
)

// UserStore implements storage.UserStore.
type UserStore struct {
	db *DB
}

// NewUserStore creates a new SQL user store.
func NewUserStore(db *DB) *UserStore {
	return &UserStore{db: db}
}

// Insert saves a new user.
func (s *UserStore) Insert(ctx context.Context, user *domain.User) (*domain.User, error) {
	query := s.db.Rebind(`INSERT INTO users (id, email, name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING ` + userColumns)

	var row userRow
	err := s.db.GetContext(ctx, &row, query,
		user.ID, user.Email, user.Name, dbTime(user.CreatedAt), dbTime(user.UpdatedAt))
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return row.toDomain(), nil
}

// GetByID retrieves a live user by id.
func (s *UserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.getOne(ctx, "id", id)
}

// GetByEmail retrieves a live user by email.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.getOne(ctx, "email", email)
}

func (s *UserStore) getOne(ctx context.Context, column string, value any) (*domain.User, error) {
	query := s.db.Rebind(`SELECT ` + userColumns + ` FROM users
		WHERE ` + column + ` = ? AND deleted_at IS NULL
		LIMIT 1`)

	var row userRow
	err := s.db.GetContext(ctx, &row, query, value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by %s: %w", column, err)
	}
	return row.toDomain(), nil
}

// List retrieves live users, newest first.
func (s *UserStore) List(ctx context.Context, page domain.Page) ([]*domain.User, error) {
	query, args := s.db.paginate(`SELECT `+userColumns+` FROM users
		WHERE deleted_at IS NULL
		ORDER BY created_at DESC, id`, nil, page)

	var rows []userRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]*domain.User, 0, len(rows))
	for i := range rows {
		users = append(users, rows[i].toDomain())
	}
	return users, nil
}

// Update applies a patch to a live user.
func (s *UserStore) Update(
	ctx context.Context,
	id uuid.UUID,
	patch domain.UserPatch,
	now time.Time,
) (*domain.User, error) {
	sets := []string{"updated_at = ?"}
	args := []any{dbTime(now)}
	if patch.Email != nil {
		sets = append(sets, "email = ?")
		args = append(args, *patch.Email)
	}
	if patch.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *patch.Name)
	}
	args = append(args, id)

	query := s.db.Rebind(`UPDATE users SET ` + strings.Join(sets, ", ") + `
		WHERE id = ? AND deleted_at IS NULL
		RETURNING ` + userColumns)

	var row userRow
	err := s.db.GetContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return row.toDomain(), nil
}

// SoftDelete stamps deleted_at on a live user.
func (s *UserStore) SoftDelete(ctx context.Context, id uuid.UUID, now time.Time) (*domain.User, error) {
	query := s.db.Rebind(`UPDATE users SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
		RETURNING ` + userColumns)

	var row userRow
	err := s.db.GetContext(ctx, &row, query, dbTime(now), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete user: %w", err)
	}
	return row.toDomain(), nil
}

// Count returns the number of live users.
func (s *UserStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users WHERE deleted_at IS NULL`); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

// CountDeleted returns the number of soft-deleted users.
func (s *UserStore) CountDeleted(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users WHERE deleted_at IS NOT NULL`); err != nil {
		return 0, fmt.Errorf("failed to count deleted users: %w", err)
	}
	return n, nil
}

// PurgeDeleted hard deletes users soft-deleted before the threshold. Their
// posts go with them through the cascading foreign key.
func (s *UserStore) PurgeDeleted(ctx context.Context, before time.Time) (int64, error) {
	query := s.db.Rebind(`DELETE FROM users WHERE deleted_at IS NOT NULL AND deleted_at < ?`)
	res, err := s.db.ExecContext(ctx, query, dbTime(before))
	if err != nil {
		return 0, fmt.Errorf("failed to purge deleted users: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read purged user count: %w", err)
	}
	return n, nil
}
