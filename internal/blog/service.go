package blog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/inkpress/inkpress/internal/auth"
	"github.com/inkpress/inkpress/internal/shared"
)

// RepositoryPort defines data access methods for posts and comments.
type RepositoryPort interface {
	ListPosts(ctx context.Context, filter ListFilter) ([]PostSummary, int, error)
	ListPostsByUser(ctx context.Context, userID int64, page shared.PageRequest) ([]PostSummary, int, error)
	GetPost(ctx context.Context, id int64) (Post, error)
	CreatePost(ctx context.Context, in NewPost) (Post, error)
	UpdatePost(ctx context.Context, id int64, changes PostChanges) (Post, error)
	DeactivatePost(ctx context.Context, id int64) error
	UserActive(ctx context.Context, userID int64) (bool, error)
	CreateComment(ctx context.Context, in NewComment) (Comment, error)
	ListComments(ctx context.Context, postID int64) ([]Comment, error)
}

// Service handles blog business logic.
type Service struct {
	repo   RepositoryPort
	cache  *PostCache
	logger *slog.Logger
}

// NewService builds Service instance. cache may be nil.
func NewService(repo RepositoryPort, cache *PostCache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger}
}

// ListPosts returns one page of active posts.
func (s *Service) ListPosts(ctx context.Context, filter ListFilter) (shared.Page[PostSummary], error) {
	posts, total, err := s.repo.ListPosts(ctx, filter)
	if err != nil {
		return shared.Page[PostSummary]{}, err
	}
	return shared.NewPage(posts, filter.PageRequest, total), nil
}

// ListPostsByUser returns one page of the posts written by userID.
func (s *Service) ListPostsByUser(ctx context.Context, userID int64, page shared.PageRequest) (shared.Page[PostSummary], error) {
	posts, total, err := s.repo.ListPostsByUser(ctx, userID, page)
	if err != nil {
		return shared.Page[PostSummary]{}, err
	}
	return shared.NewPage(posts, page, total), nil
}

// GetPost returns an active post through the cache.
func (s *Service) GetPost(ctx context.Context, id int64) (Post, error) {
	post, err := s.cache.Fetch(ctx, id, func(ctx context.Context) (Post, error) {
		return s.repo.GetPost(ctx, id)
	})
	if errors.Is(err, shared.ErrNotFound) {
		return Post{}, ErrPostNotFound
	}
	if err != nil {
		return Post{}, err
	}
	if !post.IsActive {
		return Post{}, ErrPostNotFound
	}
	return post, nil
}

// CreatePost stores a post owned by the caller.
func (s *Service) CreatePost(ctx context.Context, caller shared.Principal, in NewPost) (Post, error) {
	if !in.Category.Valid() {
		return Post{}, fmt.Errorf("%w: unknown category %q", shared.ErrValidation, in.Category)
	}
	if err := s.requireActive(ctx, caller.UserID); err != nil {
		return Post{}, err
	}
	in.UserID = caller.UserID
	return s.repo.CreatePost(ctx, in)
}

// UpdatePost changes a post owned by the caller, or any post for managers.
func (s *Service) UpdatePost(ctx context.Context, caller shared.Principal, id int64, changes PostChanges) (Post, error) {
	if changes.Category != nil && !changes.Category.Valid() {
		return Post{}, fmt.Errorf("%w: unknown category %q", shared.ErrValidation, *changes.Category)
	}
	post, err := s.editablePost(ctx, caller, id)
	if err != nil {
		return Post{}, err
	}
	if changes.Empty() {
		return post, nil
	}
	post, err = s.repo.UpdatePost(ctx, id, changes)
	if errors.Is(err, shared.ErrNotFound) {
		return Post{}, ErrPostNotFound
	}
	if err != nil {
		return Post{}, err
	}
	s.invalidate(ctx, id)
	return post, nil
}

// DeletePost soft deletes a post owned by the caller, or any post for managers.
func (s *Service) DeletePost(ctx context.Context, caller shared.Principal, id int64) error {
	if _, err := s.editablePost(ctx, caller, id); err != nil {
		return err
	}
	if err := s.repo.DeactivatePost(ctx, id); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return ErrPostNotFound
		}
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

// CreateComment adds the caller's comment to an active post.
func (s *Service) CreateComment(ctx context.Context, caller shared.Principal, postID int64, body string) (Comment, error) {
	if err := s.requireActive(ctx, caller.UserID); err != nil {
		return Comment{}, err
	}
	post, err := s.repo.GetPost(ctx, postID)
	if errors.Is(err, shared.ErrNotFound) || (err == nil && !post.IsActive) {
		return Comment{}, ErrPostNotFound
	}
	if err != nil {
		return Comment{}, err
	}
	return s.repo.CreateComment(ctx, NewComment{PostID: postID, UserID: caller.UserID, Body: body})
}

// ListComments returns the comments of an existing post.
func (s *Service) ListComments(ctx context.Context, postID int64) ([]Comment, error) {
	if _, err := s.repo.GetPost(ctx, postID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return s.repo.ListComments(ctx, postID)
}

func (s *Service) requireActive(ctx context.Context, userID int64) error {
	active, err := s.repo.UserActive(ctx, userID)
	if errors.Is(err, shared.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return err
	}
	if !active {
		return ErrUserInactive
	}
	return nil
}

func (s *Service) editablePost(ctx context.Context, caller shared.Principal, id int64) (Post, error) {
	if err := s.requireActive(ctx, caller.UserID); err != nil {
		return Post{}, err
	}
	post, err := s.repo.GetPost(ctx, id)
	if errors.Is(err, shared.ErrNotFound) {
		return Post{}, ErrPostNotFound
	}
	if err != nil {
		return Post{}, err
	}
	if post.UserID != caller.UserID && caller.Role != string(auth.RoleManager) {
		return Post{}, ErrForbidden
	}
	return post, nil
}

func (s *Service) invalidate(ctx context.Context, id int64) {
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logger.Warn("invalidate post cache", slog.Int64("post_id", id), slog.Any("error", err))
	}
}
