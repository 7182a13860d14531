// Package memory provides map-backed stores with the same live-row and
// constraint semantics as the SQL stores. It backs local runs without a
// database URL and the handler tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/docsite/internal/core/domain"
	"github.com/vietddude/docsite/internal/infra/storage"
)

type MemoryStorage struct {
	users map[uuid.UUID]*domain.User
	posts map[uuid.UUID]*domain.Post
	mu    sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		users: make(map[uuid.UUID]*domain.User),
		posts: make(map[uuid.UUID]*domain.Post),
	}
}

// Ping always succeeds.
func (s *MemoryStorage) Ping(ctx context.Context) error {
	return ctx.Err()
}

func copyUser(u *domain.User) *domain.User {
	c := *u
	if u.DeletedAt != nil {
		d := *u.DeletedAt
		c.DeletedAt = &d
	}
	return &c
}

func copyPost(p *domain.Post) *domain.Post {
	c := *p
	if p.Published != nil {
		v := *p.Published
		c.Published = &v
	}
	if p.DeletedAt != nil {
		v := *p.DeletedAt
		c.DeletedAt = &v
	}
	return &c
}

func window[T any](items []T, page domain.Page) []T {
	if page.Offset > 0 {
		if page.Offset >= len(items) {
			return items[:0]
		}
		items = items[page.Offset:]
	}
	if page.Limit > 0 && page.Limit < len(items) {
		items = items[:page.Limit]
	}
	return items
}

// -----------------------------------------------------------------------------
// User Store
// -----------------------------------------------------------------------------

type UserStore struct {
	store *MemoryStorage
}

func NewUserStore(store *MemoryStorage) *UserStore {
	return &UserStore{store: store}
}

// emailTaken must be called with the lock held.
func (r *UserStore) emailTaken(email string, except uuid.UUID) bool {
	for _, u := range r.store.users {
		if u.ID != except && u.DeletedAt == nil && u.Email == email {
			return true
		}
	}
	return false
}

func (r *UserStore) Insert(ctx context.Context, user *domain.User) (*domain.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.users[user.ID]; ok || r.emailTaken(user.Email, uuid.Nil) {
		return nil, &storage.ConstraintError{Kind: storage.UniqueViolation, Constraint: storage.ConstraintUserEmail}
	}
	r.store.users[user.ID] = copyUser(user)
	return copyUser(user), nil
}

func (r *UserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	if u, ok := r.store.users[id]; ok && u.DeletedAt == nil {
		return copyUser(u), nil
	}
	return nil, nil
}

func (r *UserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, u := range r.store.users {
		if u.DeletedAt == nil && u.Email == email {
			return copyUser(u), nil
		}
	}
	return nil, nil
}

func (r *UserStore) List(ctx context.Context, page domain.Page) ([]*domain.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var live []*domain.User
	for _, u := range r.store.users {
		if u.DeletedAt == nil {
			live = append(live, copyUser(u))
		}
	}
	sort.Slice(live, func(i, j int) bool {
		if !live[i].CreatedAt.Equal(live[j].CreatedAt) {
			return live[i].CreatedAt.After(live[j].CreatedAt)
		}
		return live[i].ID.String() < live[j].ID.String()
	})
	return window(live, page), nil
}

func (r *UserStore) Update(
	ctx context.Context,
	id uuid.UUID,
	patch domain.UserPatch,
	now time.Time,
) (*domain.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	u, ok := r.store.users[id]
	if !ok || u.DeletedAt != nil {
		return nil, nil
	}
	if patch.Email != nil && r.emailTaken(*patch.Email, id) {
		return nil, &storage.ConstraintError{Kind: storage.UniqueViolation, Constraint: storage.ConstraintUserEmail}
	}
	if patch.Email != nil {
		u.Email = *patch.Email
	}
	if patch.Name != nil {
		u.Name = *patch.Name
	}
	u.UpdatedAt = now
	return copyUser(u), nil
}

func (r *UserStore) SoftDelete(ctx context.Context, id uuid.UUID, now time.Time) (*domain.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	u, ok := r.store.users[id]
	if !ok || u.DeletedAt != nil {
		return nil, nil
	}
	u.DeletedAt = &now
	return copyUser(u), nil
}

func (r *UserStore) Count(ctx context.Context) (int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var n int64
	for _, u := range r.store.users {
		if u.DeletedAt == nil {
			n++
		}
	}
	return n, nil
}

func (r *UserStore) CountDeleted(ctx context.Context) (int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var n int64
	for _, u := range r.store.users {
		if u.DeletedAt != nil {
			n++
		}
	}
	return n, nil
}

// PurgeDeleted removes old soft-deleted users and, like the cascading foreign
// key, every post they own.
func (r *UserStore) PurgeDeleted(ctx context.Context, before time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var n int64
	for id, u := range r.store.users {
		if u.DeletedAt != nil && u.DeletedAt.Before(before) {
			delete(r.store.users, id)
			for pid, p := range r.store.posts {
				if p.UserID == id {
					delete(r.store.posts, pid)
				}
			}
			n++
		}
	}
	return n, nil
}

// -----------------------------------------------------------------------------
// Post Store
// -----------------------------------------------------------------------------

type PostStore struct {
	store *MemoryStorage
}

func NewPostStore(store *MemoryStorage) *PostStore {
	return &PostStore{store: store}
}

// slugTaken must be called with the lock held. Slugs stay reserved by deleted posts.
func (r *PostStore) slugTaken(slug string, except uuid.UUID) bool {
	for _, p := range r.store.posts {
		if p.ID != except && p.Slug == slug {
			return true
		}
	}
	return false
}

func (r *PostStore) author(id uuid.UUID) domain.Author {
	u := r.store.users[id]
	return domain.Author{ID: u.ID, Name: u.Name, Email: u.Email}
}

func (r *PostStore) Insert(ctx context.Context, post *domain.Post) (*domain.Post, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.users[post.UserID]; !ok {
		return nil, &storage.ConstraintError{Kind: storage.ForeignKeyViolation, Constraint: storage.ConstraintPostAuthor}
	}
	if _, ok := r.store.posts[post.ID]; ok || r.slugTaken(post.Slug, uuid.Nil) {
		return nil, &storage.ConstraintError{Kind: storage.UniqueViolation, Constraint: storage.ConstraintPostSlug}
	}
	r.store.posts[post.ID] = copyPost(post)
	return copyPost(post), nil
}

func (r *PostStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Post, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	if p, ok := r.store.posts[id]; ok && p.DeletedAt == nil {
		return copyPost(p), nil
	}
	return nil, nil
}

func (r *PostStore) GetBySlug(ctx context.Context, slug string) (*domain.Post, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, p := range r.store.posts {
		if p.DeletedAt == nil && p.Slug == slug {
			return copyPost(p), nil
		}
	}
	return nil, nil
}

func (r *PostStore) GetWithAuthor(ctx context.Context, id uuid.UUID) (*domain.PostWithAuthor, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	p, ok := r.store.posts[id]
	if !ok || p.DeletedAt != nil {
		return nil, nil
	}
	return &domain.PostWithAuthor{Post: copyPost(p), Author: r.author(p.UserID)}, nil
}

func (r *PostStore) ListByUser(ctx context.Context, userID uuid.UUID, page domain.Page) ([]*domain.Post, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var posts []*domain.Post
	for _, p := range r.store.posts {
		if p.UserID == userID && p.DeletedAt == nil {
			posts = append(posts, copyPost(p))
		}
	}
	sort.Slice(posts, func(i, j int) bool {
		if !posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].CreatedAt.After(posts[j].CreatedAt)
		}
		return posts[i].ID.String() < posts[j].ID.String()
	})
	return window(posts, page), nil
}

func (r *PostStore) ListPublished(ctx context.Context, page domain.Page) ([]*domain.PostWithAuthor, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*domain.PostWithAuthor
	for _, p := range r.store.posts {
		if p.DeletedAt != nil || p.Published == nil {
			continue
		}
		if u, ok := r.store.users[p.UserID]; !ok || u.DeletedAt != nil {
			continue
		}
		out = append(out, &domain.PostWithAuthor{Post: copyPost(p), Author: r.author(p.UserID)})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Post, out[j].Post
		if !a.Published.Equal(*b.Published) {
			return a.Published.After(*b.Published)
		}
		return a.ID.String() < b.ID.String()
	})
	return window(out, page), nil
}

func (r *PostStore) Update(
	ctx context.Context,
	id uuid.UUID,
	patch domain.PostPatch,
	now time.Time,
) (*domain.Post, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	p, ok := r.store.posts[id]
	if !ok || p.DeletedAt != nil {
		return nil, nil
	}
	if patch.Slug != nil && r.slugTaken(*patch.Slug, id) {
		return nil, &storage.ConstraintError{Kind: storage.UniqueViolation, Constraint: storage.ConstraintPostSlug}
	}
	if patch.Title != nil {
		p.Title = *patch.Title
	}
	if patch.Content != nil {
		p.Content = *patch.Content
	}
	if patch.Slug != nil {
		p.Slug = *patch.Slug
	}
	if patch.Published != nil {
		v := *patch.Published
		p.Published = &v
	}
	p.UpdatedAt = now
	return copyPost(p), nil
}

func (r *PostStore) Publish(ctx context.Context, id uuid.UUID, now time.Time) (*domain.Post, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	p, ok := r.store.posts[id]
	if !ok || p.DeletedAt != nil {
		return nil, nil
	}
	if p.Published == nil {
		v := now
		p.Published = &v
	}
	p.UpdatedAt = now
	return copyPost(p), nil
}

func (r *PostStore) SoftDelete(ctx context.Context, id uuid.UUID, now time.Time) (*domain.Post, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	p, ok := r.store.posts[id]
	if !ok || p.DeletedAt != nil {
		return nil, nil
	}
	p.DeletedAt = &now
	return copyPost(p), nil
}

func (r *PostStore) Count(ctx context.Context) (int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var n int64
	for _, p := range r.store.posts {
		if p.DeletedAt == nil {
			n++
		}
	}
	return n, nil
}

func (r *PostStore) CountDeleted(ctx context.Context) (int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var n int64
	for _, p := range r.store.posts {
		if p.DeletedAt != nil {
			n++
		}
	}
	return n, nil
}

func (r *PostStore) PurgeDeleted(ctx context.Context, before time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var n int64
	for id, p := range r.store.posts {
		if p.DeletedAt != nil && p.DeletedAt.Before(before) {
			delete(r.store.posts, id)
			n++
		}
	}
	return n, nil
}
