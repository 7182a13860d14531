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

// PostStore implements storage.PostStore.
type PostStore struct {
	db *DB
}

// NewPostStore creates a new SQL post store.
func NewPostStore(db *DB) *PostStore {
	return &PostStore{db: db}
}

// Insert saves a new post.
func (s *PostStore) Insert(ctx context.Context, post *domain.Post) (*domain.Post, error) {
	query := s.db.Rebind(`INSERT INTO posts
		(id, user_id, title, content, slug, published_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING ` + postColumns)

	var row postRow
	err := s.db.GetContext(ctx, &row, query,
		post.ID,
		post.UserID,
		post.Title,
		post.Content,
		post.Slug,
		dbTimePtr(post.Published),
		dbTime(post.CreatedAt),
		dbTime(post.UpdatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert post: %w", err)
	}
	return row.toDomain(), nil
}

// GetByID retrieves a live post by id.
func (s *PostStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Post, error) {
	return s.getOne(ctx, "id", id)
}

// GetBySlug retrieves a live post by slug.
func (s *PostStore) GetBySlug(ctx context.Context, slug string) (*domain.Post, error) {
	return s.getOne(ctx, "slug", slug)
}

func (s *PostStore) getOne(ctx context.Context, column string, value any) (*domain.Post, error) {
	query := s.db.Rebind(`SELECT ` + postColumns + ` FROM posts
		WHERE ` + column + ` = ? AND deleted_at IS NULL
		LIMIT 1`)

	var row postRow
	err := s.db.GetContext(ctx, &row, query, value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post by %s: %w", column, err)
	}
	return row.toDomain(), nil
}

// GetWithAuthor retrieves a live post joined with its author. The author's
// own deletion state is not checked.
func (s *PostStore) GetWithAuthor(ctx context.Context, id uuid.UUID) (*domain.PostWithAuthor, error) {
	query := s.db.Rebind(`SELECT ` + postAuthorColumns + `
		FROM posts p
		JOIN users u ON u.id = p.user_id
		WHERE p.id = ? AND p.deleted_at IS NULL
		LIMIT 1`)

	var row postAuthorRow
	err := s.db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post with author: %w", err)
	}
	return row.toDomain(), nil
}

// ListByUser retrieves a user's live posts, newest first.
func (s *PostStore) ListByUser(ctx context.Context, userID uuid.UUID, page domain.Page) ([]*domain.Post, error) {
	query, args := s.db.paginate(`SELECT `+postColumns+` FROM posts
		WHERE user_id = ? AND deleted_at IS NULL
		ORDER BY created_at DESC, id`, []any{userID}, page)

	var rows []postRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list posts by user: %w", err)
	}

	posts := make([]*domain.Post, 0, len(rows))
	for i := range rows {
		posts = append(posts, rows[i].toDomain())
	}
	return posts, nil
}

// ListPublished retrieves published live posts of live authors, latest publication first.
func (s *PostStore) ListPublished(ctx context.Context, page domain.Page) ([]*domain.PostWithAuthor, error) {
	query, args := s.db.paginate(`SELECT `+postAuthorColumns+`
		FROM posts p
		JOIN users u ON u.id = p.user_id
		WHERE p.deleted_at IS NULL
			AND u.deleted_at IS NULL
			AND p.published_at IS NOT NULL
		ORDER BY p.published_at DESC, p.id`, nil, page)

	var rows []postAuthorRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list published posts: %w", err)
	}

	posts := make([]*domain.PostWithAuthor, 0, len(rows))
	for i := range rows {
		posts = append(posts, rows[i].toDomain())
	}
	return posts, nil
}

// Update applies a patch to a live post.
func (s *PostStore) Update(
	ctx context.Context,
	id uuid.UUID,
	patch domain.PostPatch,
	now time.Time,
) (*domain.Post, error) {
	sets := []string{"updated_at = ?"}
	args := []any{dbTime(now)}
	if patch.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *patch.Title)
	}
	if patch.Content != nil {
		sets = append(sets, "content = ?")
		args = append(args, *patch.Content)
	}
	if patch.Slug != nil {
		sets = append(sets, "slug = ?")
		args = append(args, *patch.Slug)
	}
	if patch.Published != nil {
		sets = append(sets, "published_at = ?")
		args = append(args, dbTime(*patch.Published))
	}
	args = append(args, id)

	query := s.db.Rebind(`UPDATE posts SET ` + strings.Join(sets, ", ") + `
		WHERE id = ? AND deleted_at IS NULL
		RETURNING ` + postColumns)

	var row postRow
	err := s.db.GetContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update post: %w", err)
	}
	return row.toDomain(), nil
}

// Publish sets published_at, keeping an earlier publication time, and refreshes updated_at.
func (s *PostStore) Publish(ctx context.Context, id uuid.UUID, now time.Time) (*domain.Post, error) {
	query := s.db.Rebind(`UPDATE posts
		SET published_at = COALESCE(published_at, ?), updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
		RETURNING ` + postColumns)

	var row postRow
	err := s.db.GetContext(ctx, &row, query, dbTime(now), dbTime(now), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to publish post: %w", err)
	}
	return row.toDomain(), nil
}

// SoftDelete stamps deleted_at on a live post.
func (s *PostStore) SoftDelete(ctx context.Context, id uuid.UUID, now time.Time) (*domain.Post, error) {
	query := s.db.Rebind(`UPDATE posts SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
		RETURNING ` + postColumns)

	var row postRow
	err := s.db.GetContext(ctx, &row, query, dbTime(now), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete post: %w", err)
	}
	return row.toDomain(), nil
}

// Count returns the number of live posts.
func (s *PostStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM posts WHERE deleted_at IS NULL`); err != nil {
		return 0, fmt.Errorf("failed to count posts: %w", err)
	}
	return n, nil
}

// CountDeleted returns the number of soft-deleted posts.
func (s *PostStore) CountDeleted(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM posts WHERE deleted_at IS NOT NULL`); err != nil {
		return 0, fmt.Errorf("failed to count deleted posts: %w", err)
	}
	return n, nil
}

// PurgeDeleted hard deletes posts soft-deleted before the threshold.
func (s *PostStore) PurgeDeleted(ctx context.Context, before time.Time) (int64, error) {
	query := s.db.Rebind(`DELETE FROM posts WHERE deleted_at IS NOT NULL AND deleted_at < ?`)
	res, err := s.db.ExecContext(ctx, query, dbTime(before))
	if err != nil {
		return 0, fmt.Errorf("failed to purge deleted posts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read purged post count: %w", err)
	}
	return n, nil
}
