package domain

import (
	"time"

	"github.com/google/uuid"
)

// Post is a documentation page owned by exactly one user.
// Published is nil for drafts.
type Post struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Title     string
	Content   string
	Slug      string
	Published *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// IsPublished reports whether the post has a publication timestamp.
func (p *Post) IsPublished() bool {
	return p.Published != nil
}

// IsDeleted reports whether the post has been soft deleted.
func (p *Post) IsDeleted() bool {
	return p.DeletedAt != nil
}

// PostPatch carries the fields of a partial post update. The author is not patchable.
type PostPatch struct {
	Title     *string
	Content   *string
	Slug      *string
	Published *time.Time
}

// Empty reports whether the patch changes no column besides the update timestamp.
func (p PostPatch) Empty() bool {
	return p.Title == nil && p.Content == nil && p.Slug == nil && p.Published == nil
}

// Author is the public summary of a user joined onto a post.
type Author struct {
	ID    uuid.UUID
	Name  string
	Email string
}

// PostWithAuthor pairs a post with its author summary.
type PostWithAuthor struct {
	Post   *Post
	Author Author
}
