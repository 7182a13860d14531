package sqlstore

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/vietddude/docsite/internal/core/domain"
)

// timestamp scans both native timestamps and the text form sqlite returns
// for RETURNING and expression columns.
type timestamp struct {
	time.Time
}

func (t *timestamp) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		t.Time = v.UTC()
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	default:
		return fmt.Errorf("cannot scan %T into timestamp", src)
	}
}

func (t *timestamp) parse(s string) error {
	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t.Time = parsed.UTC()
		return nil
	}
	s = strings.TrimSuffix(s, "Z")
	for _, layout := range sqlite3.SQLiteTimestampFormats {
		if parsed, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

type nullTimestamp struct {
	Time  time.Time
	Valid bool
}

func (t *nullTimestamp) Scan(src any) error {
	if src == nil {
		t.Time, t.Valid = time.Time{}, false
		return nil
	}
	var ts timestamp
	if err := ts.Scan(src); err != nil {
		return err
	}
	t.Time, t.Valid = ts.Time, true
	return nil
}

func (t nullTimestamp) ptr() *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// dbTime normalizes timestamps written to the database so text comparisons
// in sqlite order correctly.
func dbTime(t time.Time) time.Time {
	return t.UTC()
}

func dbTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return dbTime(*t)
}

const userColumns = "id, email, name, created_at, updated_at, deleted_at"

type userRow struct {
	ID        uuid.UUID     `db:"id"`
	Email     string        `db:"email"`
	Name      string        `db:"name"`
	CreatedAt timestamp     `db:"created_at"`
	UpdatedAt timestamp     `db:"updated_at"`
	DeletedAt nullTimestamp `db:"deleted_at"`
}

func (r *userRow) toDomain() *domain.User {
	return &domain.User{
		ID:        r.ID,
		Email:     r.Email,
		Name:      r.Name,
		CreatedAt: r.CreatedAt.Time,
		UpdatedAt: r.UpdatedAt.Time,
		DeletedAt: r.DeletedAt.ptr(),
	}
}

const postColumns = "id, user_id, title, content, slug, published_at, created_at, updated_at, deleted_at"

type postRow struct {
	ID          uuid.UUID     `db:"id"`
	UserID      uuid.UUID     `db:"user_id"`
	Title       string        `db:"title"`
	Content     string        `db:"content"`
	Slug        string        `db:"slug"`
	PublishedAt nullTimestamp `db:"published_at"`
	CreatedAt   timestamp     `db:"created_at"`
	UpdatedAt   timestamp     `db:"updated_at"`
	DeletedAt   nullTimestamp `db:"deleted_at"`
}

func (r *postRow) toDomain() *domain.Post {
	return &domain.Post{
		ID:        r.ID,
		UserID:    r.UserID,
		Title:     r.Title,
		Content:   r.Content,
		Slug:      r.Slug,
		Published: r.PublishedAt.ptr(),
		CreatedAt: r.CreatedAt.Time,
		UpdatedAt: r.UpdatedAt.Time,
		DeletedAt: r.DeletedAt.ptr(),
	}
}

// postAuthorRow is a post joined with the author summary.
type postAuthorRow struct {
	postRow
	AuthorID    uuid.UUID `db:"author_id"`
	AuthorName  string    `db:"author_name"`
	AuthorEmail string    `db:"author_email"`
}

func (r *postAuthorRow) toDomain() *domain.PostWithAuthor {
	return &domain.PostWithAuthor{
		Post: r.postRow.toDomain(),
		Author: domain.Author{
			ID:    r.AuthorID,
			Name:  r.AuthorName,
			Email: r.AuthorEmail,
		},
	}
}

const postAuthorColumns = "p.id, p.user_id, p.title, p.content, p.slug, p.published_at, " +
	"p.created_at, p.updated_at, p.deleted_at, " +
	"u.id AS author_id, u.name AS author_name, u.email AS author_email"

// paginate appends LIMIT/OFFSET for a page. Zero values leave the bound off.
func (db *DB) paginate(query string, args []any, page domain.Page) (string, []any) {
	switch {
	case page.Limit > 0 && page.Offset > 0:
		return query + " LIMIT ? OFFSET ?", append(args, page.Limit, page.Offset)
	case page.Limit > 0:
		return query + " LIMIT ?", append(args, page.Limit)
	case page.Offset > 0:
		if db.dialect == DialectSQLite3 {
			// sqlite requires a LIMIT before OFFSET; -1 means no limit.
			return query + " LIMIT -1 OFFSET ?", append(args, page.Offset)
		}
		return query + " OFFSET ?", append(args, page.Offset)
	default:
		return query, args
	}
}
