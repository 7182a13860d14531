package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/docsite/internal/core/domain"
)

type userResponse struct {
	ID        uuid.UUID  `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	DeletedAt *time.Time `json:"deletedAt"`
}

func toUser(u *domain.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
		DeletedAt: u.DeletedAt,
	}
}

type authorResponse struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

type postResponse struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"userId"`
	Title     string          `json:"title"`
	Content   string          `json:"content"`
	Slug      string          `json:"slug"`
	Published *time.Time      `json:"published"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
	DeletedAt *time.Time      `json:"deletedAt"`
	Author    *authorResponse `json:"author,omitempty"`
}

func toPost(p *domain.Post) postResponse {
	return postResponse{
		ID:        p.ID,
		UserID:    p.UserID,
		Title:     p.Title,
		Content:   p.Content,
		Slug:      p.Slug,
		Published: p.Published,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
		DeletedAt: p.DeletedAt,
	}
}

func toPostWithAuthor(pa *domain.PostWithAuthor) postResponse {
	resp := toPost(pa.Post)
	resp.Author = &authorResponse{
		ID:    pa.Author.ID,
		Name:  pa.Author.Name,
		Email: pa.Author.Email,
	}
	return resp
}

type pagination struct {
	Page       int    `json:"page"`
	PageSize   int    `json:"pageSize"`
	Total      *int64 `json:"total,omitempty"`
	TotalPages *int64 `json:"totalPages,omitempty"`
}

type userListResponse struct {
	Users      []userResponse `json:"users"`
	Pagination pagination     `json:"pagination"`
}

type postListResponse struct {
	Posts      []postResponse `json:"posts"`
	Pagination pagination     `json:"pagination"`
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}
