package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vietddude/docsite/internal/core/domain"
)

// Constraint names shared by the SQL migrations and the in-memory store.
const (
	ConstraintUserEmail  = "users_email_live_key"
	ConstraintPostSlug   = "posts_slug_key"
	ConstraintPostAuthor = "posts_user_id_fkey"
)

// ConstraintKind distinguishes the constraint families a store can report.
type ConstraintKind int

const (
	UniqueViolation ConstraintKind = iota
	ForeignKeyViolation
)

// ConstraintError is returned by stores that enforce constraints themselves
// instead of delegating to a database engine.
type ConstraintError struct {
	Kind       ConstraintKind
	Constraint string
}

func (e *ConstraintError) Error() string {
	if e.Kind == ForeignKeyViolation {
		return fmt.Sprintf("foreign key constraint %q violated", e.Constraint)
	}
	return fmt.Sprintf("unique constraint %q violated", e.Constraint)
}

// UserStore handles user persistence. Lookups only see live rows and return
// nil, nil when nothing matches.
type UserStore interface {
	// Insert persists a fully populated user and returns the stored row
	Insert(ctx context.Context, user *domain.User) (*domain.User, error)

	// GetByID retrieves a live user by id
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// GetByEmail retrieves a live user by email
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// List retrieves live users, newest first
	List(ctx context.Context, page domain.Page) ([]*domain.User, error)

	// Update applies a patch to a live user. Returns nil, nil when no live row matched.
	Update(
		ctx context.Context,
		id uuid.UUID,
		patch domain.UserPatch,
		now time.Time,
	) (*domain.User, error)

	// SoftDelete stamps deleted_at on a live user. Returns nil, nil when no live row matched.
	SoftDelete(ctx context.Context, id uuid.UUID, now time.Time) (*domain.User, error)

	// Count returns the number of live users
	Count(ctx context.Context) (int64, error)

	// CountDeleted returns the number of soft-deleted users
	CountDeleted(ctx context.Context) (int64, error)

	// PurgeDeleted hard deletes users soft-deleted before the threshold
	PurgeDeleted(ctx context.Context, before time.Time) (int64, error)
}

// PostStore handles post persistence with the same live-row conventions as UserStore.
type PostStore interface {
	// Insert persists a fully populated post and returns the stored row
	Insert(ctx context.Context, post *domain.Post) (*domain.Post, error)

	// GetByID retrieves a live post by id
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Post, error)

	// GetBySlug retrieves a live post by slug
	GetBySlug(ctx context.Context, slug string) (*domain.Post, error)

	// GetWithAuthor retrieves a live post joined with its author
	GetWithAuthor(ctx context.Context, id uuid.UUID) (*domain.PostWithAuthor, error)

	// ListByUser retrieves a user's live posts, newest first
	ListByUser(ctx context.Context, userID uuid.UUID, page domain.Page) ([]*domain.Post, error)

	// ListPublished retrieves published live posts of live authors, latest publication first
	ListPublished(ctx context.Context, page domain.Page) ([]*domain.PostWithAuthor, error)

	// Update applies a patch to a live post. Returns nil, nil when no live row matched.
	Update(
		ctx context.Context,
		id uuid.UUID,
		patch domain.PostPatch,
		now time.Time,
	) (*domain.Post, error)

	// Publish sets published_at (keeping an existing value) and refreshes updated_at
	Publish(ctx context.Context, id uuid.UUID, now time.Time) (*domain.Post, error)

	// SoftDelete stamps deleted_at on a live post. Returns nil, nil when no live row matched.
	SoftDelete(ctx context.Context, id uuid.UUID, now time.Time) (*domain.Post, error)

	// Count returns the number of live posts
	Count(ctx context.Context) (int64, error)

	// CountDeleted returns the number of soft-deleted posts
	CountDeleted(ctx context.Context) (int64, error)

	// PurgeDeleted hard deletes posts soft-deleted before the threshold
	PurgeDeleted(ctx context.Context, before time.Time) (int64, error)
}

// Pinger reports backend reachability for health checks.
type Pinger interface {
	Ping(ctx context.Context) error
}
