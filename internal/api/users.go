package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vietddude/docsite/internal/core/dberr"
	"github.com/vietddude/docsite/internal/repository"
)

func (s *Server) listUsers(c echo.Context) error {
	page, pageSize, ok := parsePagination(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: msgInvalidPagination})
	}

	ctx := c.Request().Context()
	users, err := s.users.FindAll(ctx, pageOf(page, pageSize))
	if err != nil {
		return s.respondError(c, err, "Failed to fetch users")
	}
	total, err := s.users.Count(ctx)
	if err != nil {
		return s.respondError(c, err, "Failed to fetch users")
	}

	pages := totalPages(total, pageSize)
	resp := userListResponse{
		Users: make([]userResponse, 0, len(users)),
		Pagination: pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      &total,
			TotalPages: &pages,
		},
	}
	for _, u := range users {
		resp.Users = append(resp.Users, toUser(u))
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) createUser(c echo.Context) error {
	var in repository.CreateUserInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: msgInvalidBody})
	}

	user, err := s.users.Create(c.Request().Context(), in)
	if err != nil {
		return s.respondError(c, err, "Failed to create user")
	}
	return c.JSON(http.StatusCreated, toUser(user))
}

func (s *Server) getUser(c echo.Context) error {
	id, err := parseID(c, "User")
	if err != nil {
		return s.respondError(c, err, "Failed to fetch user")
	}

	user, err := s.users.FindByIDOrThrow(c.Request().Context(), id)
	if err != nil {
		return s.respondError(c, err, "Failed to fetch user")
	}
	return c.JSON(http.StatusOK, toUser(user))
}

func (s *Server) updateUser(c echo.Context) error {
	id, err := parseID(c, "User")
	if err != nil {
		return s.respondError(c, err, "Failed to update user")
	}

	var in repository.UpdateUserInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: msgInvalidBody})
	}

	user, err := s.users.Update(c.Request().Context(), id, in)
	if err != nil {
		return s.respondError(c, err, "Failed to update user")
	}
	return c.JSON(http.StatusOK, toUser(user))
}

func (s *Server) deleteUser(c echo.Context) error {
	id, err := parseID(c, "User")
	if err != nil {
		return s.respondError(c, err, "Failed to delete user")
	}

	user, err := s.users.Delete(c.Request().Context(), id)
	if err != nil {
		return s.respondError(c, err, "Failed to delete user")
	}
	return c.JSON(http.StatusOK, toUser(user))
}

func (s *Server) listUserPosts(c echo.Context) error {
	id, err := parseID(c, "User")
	if err != nil {
		return s.respondError(c, err, "Failed to fetch user posts")
	}
	page, pageSize, ok := parsePagination(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: msgInvalidPagination})
	}

	ctx := c.Request().Context()
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return s.respondError(c, err, "Failed to fetch user posts")
	}
	if user == nil {
		return s.respondError(c, dberr.NotFound("User", id.String()), "Failed to fetch user posts")
	}

	posts, err := s.posts.FindByUserID(ctx, id, pageOf(page, pageSize))
	if err != nil {
		return s.respondError(c, err, "Failed to fetch user posts")
	}

	resp := postListResponse{
		Posts:      make([]postResponse, 0, len(posts)),
		Pagination: pagination{Page: page, PageSize: pageSize},
	}
	for _, p := range posts {
		resp.Posts = append(resp.Posts, toPost(p))
	}
	return c.JSON(http.StatusOK, resp)
}
