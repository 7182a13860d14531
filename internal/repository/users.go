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

const userResource = "User"

// Users is the user repository.
type Users struct {
	base
	store storage.UserStore
}

// NewUsers creates a user repository on top of a store.
func NewUsers(store storage.UserStore, opts ...Option) *Users {
	return &Users{base: newBase(opts), store: store}
}

// Create validates and inserts a new user.
func (r *Users) Create(ctx context.Context, in CreateUserInput) (*domain.User, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	now := r.timestamp()
	user := &domain.User{
		ID:        uuid.New(),
		Email:     in.Email,
		Name:      in.Name,
		CreatedAt: now,
		UpdatedAt: now,
	}

	created, err := mutate(ctx, &r.base, querylog.Op{Name: "users.create", Description: "INSERT users"},
		func(ctx context.Context) (*domain.User, error) {
			return r.store.Insert(ctx, user)
		})
	if err != nil {
		return nil, r.translate(err)
	}

	r.publish(ctx, events.Event{Type: events.UserCreated, EntityID: created.ID, OccurredAt: now, Data: created})
	return created, nil
}

// FindByID returns the live user with id, or nil when there is none.
func (r *Users) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return query(ctx, &r.base,
		querylog.Op{Name: "users.find_by_id", Description: fmt.Sprintf("SELECT users WHERE id = %s", id)},
		func(ctx context.Context) (*domain.User, error) {
			return r.store.GetByID(ctx, id)
		})
}

// FindByIDOrThrow is FindByID with absence reported as a not-found error.
func (r *Users) FindByIDOrThrow(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, dberr.NotFound(userResource, id.String())
	}
	return user, nil
}

// FindByEmail returns the live user with email, or nil when there is none.
func (r *Users) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return query(ctx, &r.base,
		querylog.Op{Name: "users.find_by_email", Description: fmt.Sprintf("SELECT users WHERE email = %s", email)},
		func(ctx context.Context) (*domain.User, error) {
			return r.store.GetByEmail(ctx, email)
		})
}

// FindByEmailOrThrow is FindByEmail with absence reported as a not-found error.
func (r *Users) FindByEmailOrThrow(ctx context.Context, email string) (*domain.User, error) {
	user, err := r.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, dberr.NotFound(userResource, email)
	}
	return user, nil
}

// FindAll lists live users, newest first.
func (r *Users) FindAll(ctx context.Context, page domain.Page) ([]*domain.User, error) {
	return query(ctx, &r.base, querylog.Op{Name: "users.find_all", Description: "SELECT users (all)"},
		func(ctx context.Context) ([]*domain.User, error) {
			return r.store.List(ctx, page)
		})
}

// Update applies a validated partial update to a live user.
func (r *Users) Update(ctx context.Context, id uuid.UUID, in UpdateUserInput) (*domain.User, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	patch := domain.UserPatch{Email: in.Email, Name: in.Name}
	now := r.timestamp()

	updated, err := mutate(ctx, &r.base,
		querylog.Op{Name: "users.update", Description: fmt.Sprintf("UPDATE users WHERE id = %s", id)},
		func(ctx context.Context) (*domain.User, error) {
			user, err := r.store.Update(ctx, id, patch, now)
			if err != nil {
				return nil, err
			}
			if user == nil {
				return nil, dberr.NotFound(userResource, id.String())
			}
			return user, nil
		})
	if err != nil {
		return nil, r.translate(err)
	}
	return updated, nil
}

// Delete soft deletes a live user.
func (r *Users) Delete(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	now := r.timestamp()

	deleted, err := mutate(ctx, &r.base,
		querylog.Op{Name: "users.delete", Description: fmt.Sprintf("DELETE users WHERE id = %s", id)},
		func(ctx context.Context) (*domain.User, error) {
			user, err := r.store.SoftDelete(ctx, id, now)
			if err != nil {
				return nil, err
			}
			if user == nil {
				return nil, dberr.NotFound(userResource, id.String())
			}
			return user, nil
		})
	if err != nil {
		return nil, err
	}

	r.publish(ctx, events.Event{Type: events.UserDeleted, EntityID: deleted.ID, OccurredAt: now})
	return deleted, nil
}

// Count returns the number of live users.
func (r *Users) Count(ctx context.Context) (int64, error) {
	return query(ctx, &r.base, querylog.Op{Name: "users.count", Description: "COUNT users"},
		r.store.Count)
}

// CountDeleted returns the number of soft-deleted users awaiting purge.
func (r *Users) CountDeleted(ctx context.Context) (int64, error) {
	return query(ctx, &r.base, querylog.Op{Name: "users.count_deleted", Description: "COUNT deleted users"},
		r.store.CountDeleted)
}

// Exists reports whether a live user with id exists. Lookup failures are
// returned rather than read as absence.
func (r *Users) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	user, err := r.FindByID(ctx, id)
	if err != nil {
		return false, err
	}
	return user != nil, nil
}

func (r *Users) translate(err error) error {
	if e, ok := dberr.As(err); ok && e.Kind == dberr.KindConflict {
		return conflict(e, "email", "User with this email already exists")
	}
	return err
}
