package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is a registered author of the documentation site.
// DeletedAt is nil while the user is live.
type User struct {
	ID        uuid.UUID
	Email     string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// IsDeleted reports whether the user has been soft deleted.
func (u *User) IsDeleted() bool {
	return u.DeletedAt != nil
}

// UserPatch carries the fields of a partial user update. Nil fields are left untouched.
type UserPatch struct {
	Email *string
	Name  *string
}

// Empty reports whether the patch changes no column besides the update timestamp.
func (p UserPatch) Empty() bool {
	return p.Email == nil && p.Name == nil
}
