package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vietddude/docsite/internal/repository"
)

func (s *Server) listPosts(c echo.Context) error {
	page, pageSize, ok := parsePagination(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: msgInvalidPagination})
	}

	posts, err := s.posts.FindPublished(c.Request().Context(), pageOf(page, pageSize))
	if err != nil {
		return s.respondError(c, err, "Failed to fetch posts")
	}

	resp := postListResponse{
		Posts:      make([]postResponse, 0, len(posts)),
		Pagination: pagination{Page: page, PageSize: pageSize},
	}
	for _, p := range posts {
		resp.Posts = append(resp.Posts, toPostWithAuthor(p))
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) createPost(c echo.Context) error {
	var in repository.CreatePostInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: msgInvalidBody})
	}

	post, err := s.posts.Create(c.Request().Context(), in)
	if err != nil {
		return s.respondError(c, err, "Failed to create post")
	}
	return c.JSON(http.StatusCreated, toPost(post))
}

func (s *Server) getPost(c echo.Context) error {
	id, err := parseID(c, "Post")
	if err != nil {
		return s.respondError(c, err, "Failed to fetch post")
	}

	post, err := s.posts.FindByIDWithAuthor(c.Request().Context(), id)
	if err != nil {
		return s.respondError(c, err, "Failed to fetch post")
	}
	if post == nil {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "Post not found"})
	}
	return c.JSON(http.StatusOK, toPostWithAuthor(post))
}

func (s *Server) updatePost(c echo.Context) error {
	id, err := parseID(c, "Post")
	if err != nil {
		return s.respondError(c, err, "Failed to update post")
	}

	var in repository.UpdatePostInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: msgInvalidBody})
	}

	post, err := s.posts.Update(c.Request().Context(), id, in)
	if err != nil {
		return s.respondError(c, err, "Failed to update post")
	}
	return c.JSON(http.StatusOK, toPost(post))
}

func (s *Server) deletePost(c echo.Context) error {
	id, err := parseID(c, "Post")
	if err != nil {
		return s.respondError(c, err, "Failed to delete post")
	}

	post, err := s.posts.Delete(c.Request().Context(), id)
	if err != nil {
		return s.respondError(c, err, "Failed to delete post")
	}
	return c.JSON(http.StatusOK, toPost(post))
}

func (s *Server) publishPost(c echo.Context) error {
	id, err := parseID(c, "Post")
	if err != nil {
		return s.respondError(c, err, "Failed to publish post")
	}

	post, err := s.posts.Publish(c.Request().Context(), id)
	if err != nil {
		return s.respondError(c, err, "Failed to publish post")
	}
	return c.JSON(http.StatusOK, toPost(post))
}
