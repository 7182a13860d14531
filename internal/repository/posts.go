package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/vietddude/docsite/internal/core/dberr"
	"github.com/vietddude/docsite/internal/core/domain"
	"github.com/vietddude/docsite/internal/core/querylog"
	"github.com/vietddude/docsite/internal/infra/events"
	"github.com/vietddude/docsite/internal/infra/storage"
)

const postResource = "Post"

// Posts is the post repository.
type Posts struct {
	base
	store storage.PostStore
}

// NewPosts creates a post repository on top of a store.
func NewPosts(store storage.PostStore, opts ...Option) *Posts {
	return &Posts{base: newBase(opts), store: store}
}

// Create validates and inserts a new post. An author that does not exist is
// a validation failure on userId.
func (r *Posts) Create(ctx context.Context, in CreatePostInput) (*domain.Post, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	userID, err := uuid.Parse(in.UserID)
	if err != nil {
		return nil, dberr.Validation("userId", "userId must be a valid UUID")
	}

	now := r.timestamp()
	post := &domain.Post{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     in.Title,
		Content:   in.Content,
		Slug:      in.Slug,
		Published: in.Published,
		CreatedAt: now,
		UpdatedAt: now,
	}

	created, err := mutate(ctx, &r.base, querylog.Op{Name: "posts.create", Description: "INSERT posts"},
		func(ctx context.Context) (*domain.Post, error) {
			return r.store.Insert(ctx, post)
		})
	if err != nil {
		return nil, r.translate(err)
	}

	r.publish(ctx, events.Event{Type: events.PostCreated, EntityID: created.ID, OccurredAt: now, Data: created})
	return created, nil
}

// FindByID returns the live post with id, or nil when there is none.
func (r *Posts) FindByID(ctx context.Context, id uuid.UUID) (*domain.Post, error) {
	return query(ctx, &r.base,
		querylog.Op{Name: "posts.find_by_id", Description: fmt.Sprintf("SELECT posts WHERE id = %s", id)},
		func(ctx context.Context) (*domain.Post, error) {
			return r.store.GetByID(ctx, id)
		})
}

// FindByIDOrThrow is FindByID with absence reported as a not-found error.
func (r *Posts) FindByIDOrThrow(ctx context.Context, id uuid.UUID) (*domain.Post, error) {
	post, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, dberr.NotFound(postResource, id.String())
	}
	return post, nil
}

// FindBySlug returns the live post with slug, or nil when there is none.
func (r *Posts) FindBySlug(ctx context.Context, slug string) (*domain.Post, error) {
	return query(ctx, &r.base,
		querylog.Op{Name: "posts.find_by_slug", Description: fmt.Sprintf("SELECT posts WHERE slug = %s", slug)},
		func(ctx context.Context) (*domain.Post, error) {
			return r.store.GetBySlug(ctx, slug)
		})
}

// FindBySlugOrThrow is FindBySlug with absence reported as a not-found error.
func (r *Posts) FindBySlugOrThrow(ctx context.Context, slug string) (*domain.Post, error) {
	post, err := r.FindBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, dberr.NotFound(postResource, slug)
	}
	return post, nil
}

// FindByIDWithAuthor returns a live post with its author summary, or nil.
func (r *Posts) FindByIDWithAuthor(ctx context.Context, id uuid.UUID) (*domain.PostWithAuthor, error) {
	return query(ctx, &r.base,
		querylog.Op{Name: "posts.find_with_author", Description: fmt.Sprintf("SELECT posts WITH author WHERE id = %s", id)},
		func(ctx context.Context) (*domain.PostWithAuthor, error) {
			return r.store.GetWithAuthor(ctx, id)
		})
}

// FindByUserID lists a user's live posts, newest first.
func (r *Posts) FindByUserID(ctx context.Context, userID uuid.UUID, page domain.Page) ([]*domain.Post, error) {
	return query(ctx, &r.base,
		querylog.Op{Name: "posts.find_by_user", Description: fmt.Sprintf("SELECT posts WHERE userId = %s", userID)},
		func(ctx context.Context) ([]*domain.Post, error) {
			return r.store.ListByUser(ctx, userID, page)
		})
}

// FindPublished lists published live posts by live authors, latest publication first.
func (r *Posts) FindPublished(ctx context.Context, page domain.Page) ([]*domain.PostWithAuthor, error) {
	return query(ctx, &r.base,
		querylog.Op{Name: "posts.find_published", Description: "SELECT published posts WITH authors"},
		func(ctx context.Context) ([]*domain.PostWithAuthor, error) {
			return r.store.ListPublished(ctx, page)
		})
}

// Update applies a validated partial update to a live post.
func (r *Posts) Update(ctx context.Context, id uuid.UUID, in UpdatePostInput) (*domain.Post, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	patch := domain.PostPatch{
		Title:     in.Title,
		Content:   in.Content,
		Slug:      in.Slug,
		Published: in.Published,
	}
	now := r.timestamp()

	updated, err := mutate(ctx, &r.base,
		querylog.Op{Name: "posts.update", Description: fmt.Sprintf("UPDATE posts WHERE id = %s", id)},
		func(ctx context.Context) (*domain.Post, error) {
			post, err := r.store.Update(ctx, id, patch, now)
			if err != nil {
				return nil, err
			}
			if post == nil {
				return nil, dberr.NotFound(postResource, id.String())
			}
			return post, nil
		})
	if err != nil {
		return nil, r.translate(err)
	}
	return updated, nil
}

// Publish stamps the publication time on a live post. A post that is
// already published keeps its original publication time.
func (r *Posts) Publish(ctx context.Context, id uuid.UUID) (*domain.Post, error) {
	now := r.timestamp()

	published, err := mutate(ctx, &r.base,
		querylog.Op{Name: "posts.publish", Description: fmt.Sprintf("PUBLISH post WHERE id = %s", id)},
		func(ctx context.Context) (*domain.Post, error) {
			post, err := r.store.Publish(ctx, id, now)
			if err != nil {
				return nil, err
			}
			if post == nil {
				return nil, dberr.NotFound(postResource, id.String())
			}
			return post, nil
		})
	if err != nil {
		return nil, err
	}

	r.publish(ctx, events.Event{Type: events.PostPublished, EntityID: published.ID, OccurredAt: now, Data: published})
	return published, nil
}

// Delete soft deletes a live post.
func (r *Posts) Delete(ctx context.Context, id uuid.UUID) (*domain.Post, error) {
	now := r.timestamp()

	deleted, err := mutate(ctx, &r.base,
		querylog.Op{Name: "posts.delete", Description: fmt.Sprintf("DELETE posts WHERE id = %s", id)},
		func(ctx context.Context) (*domain.Post, error) {
			post, err := r.store.SoftDelete(ctx, id, now)
			if err != nil {
				return nil, err
			}
			if post == nil {
				return nil, dberr.NotFound(postResource, id.String())
			}
			return post, nil
		})
	if err != nil {
		return nil, err
	}

	r.publish(ctx, events.Event{Type: events.PostDeleted, EntityID: deleted.ID, OccurredAt: now})
	return deleted, nil
}

// Count returns the number of live posts.
func (r *Posts) Count(ctx context.Context) (int64, error) {
	return query(ctx, &r.base, querylog.Op{Name: "posts.count", Description: "COUNT posts"},
		r.store.Count)
}

// CountDeleted returns the number of soft-deleted posts awaiting purge.
func (r *Posts) CountDeleted(ctx context.Context) (int64, error) {
	return query(ctx, &r.base, querylog.Op{Name: "posts.count_deleted", Description: "COUNT deleted posts"},
		r.store.CountDeleted)
}

// Exists reports whether a live post with id exists. Lookup failures are
// returned rather than read as absence.
func (r *Posts) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	post, err := r.FindByID(ctx, id)
	if err != nil {
		return false, err
	}
	return post != nil, nil
}

func (r *Posts) translate(err error) error {
	e, ok := dberr.As(err)
	if !ok {
		return err
	}
	switch {
	case e.Kind == dberr.KindConflict:
		return conflict(e, "slug", "Post with this slug already exists")
	case e.Kind == dberr.KindValidation && e.Code != "":
		// Foreign key violation on the author reference.
		return &dberr.Error{
			Kind:       dberr.KindValidation,
			Code:       e.Code,
			Field:      fieldFor(e.Constraint, "userId"),
			Constraint: e.Constraint,
			Message:    "userId must reference an existing user",
			Err:        e.Err,
		}
	}
	return err
}
