package blog

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/inkpress/inkpress/internal/platform/httpx"
	"github.com/inkpress/inkpress/internal/shared"
)

// Handler manages blog endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	protect   func(http.Handler) http.Handler
	validator *validator.Validate
}

// NewHandler builds Handler instance. protect guards the management routes.
func NewHandler(logger *slog.Logger, service *Service, protect func(http.Handler) http.Handler) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, protect: protect, validator: httpx.NewValidator()}
}

// MountRoutes registers public and management blog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/list", h.listPosts)
	r.Get("/{id}", h.getPost)
	r.Get("/{id}/comments", h.listComments)
	r.Route("/management", func(r chi.Router) {
		r.Use(h.protect)
		r.Post("/create", h.createPost)
		r.Get("/user_posts/{id}", h.listUserPosts)
		r.Patch("/update/{id}", h.updatePost)
		r.Patch("/delete/{id}", h.deletePost)
		r.Post("/comment", h.createComment)
	})
}

type createPostRequest struct {
	Title       string `json:"post_title" validate:"required,min=3,max=60"`
	Summary     string `json:"summary" validate:"required,min=3,max=150"`
	Author      string `json:"author" validate:"required,max=100"`
	Category    string `json:"category" validate:"required,oneof=technology science lifestyle travel education"`
	ImgURL      string `json:"img_url" validate:"omitempty,max=2048"`
	MainContent string `json:"main_content" validate:"required,max=5000"`
}

type updatePostRequest struct {
	Title       *string `json:"post_title" validate:"omitempty,min=3,max=60"`
	Summary     *string `json:"summary" validate:"omitempty,min=3,max=150"`
	Author      *string `json:"author" validate:"omitempty,max=100"`
	Category    *string `json:"category" validate:"omitempty,oneof=technology science lifestyle travel education"`
	ImgURL      *string `json:"img_url" validate:"omitempty,max=2048"`
	MainContent *string `json:"main_content" validate:"omitempty,max=5000"`
}

func (req updatePostRequest) changes() PostChanges {
	changes := PostChanges{
		Title:       req.Title,
		Summary:     req.Summary,
		Author:      req.Author,
		ImgURL:      req.ImgURL,
		MainContent: req.MainContent,
	}
	if req.Category != nil {
		category := Category(*req.Category)
		changes.Category = &category
	}
	return changes
}

type createCommentRequest struct {
	PostID  int64  `json:"post_id" validate:"required,gt=0"`
	Comment string `json:"comment" validate:"required,min=10,max=150"`
}

func (h *Handler) listPosts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.service.ListPosts(r.Context(), ListFilter{
		Search:      q.Get("search"),
		PageRequest: shared.PageRequestFromQuery(q),
	})
	if err != nil {
		h.fail(w, "list posts", err)
		return
	}
	httpx.Success(w, http.StatusOK, "The blog posts have been retrieved successfully", page)
}

func (h *Handler) getPost(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParseID(r, "id")
	if err != nil {
		httpx.BadID(w)
		return
	}
	post, err := h.service.GetPost(r.Context(), id)
	if err != nil {
		h.fail(w, "get post", err)
		return
	}
	httpx.Success(w, http.StatusOK, "Post has been found", post)
}

func (h *Handler) listComments(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParseID(r, "id")
	if err != nil {
		httpx.BadID(w)
		return
	}
	comments, err := h.service.ListComments(r.Context(), id)
	if err != nil {
		h.fail(w, "list comments", err)
		return
	}
	httpx.Success(w, http.StatusOK, "Post comments found", comments)
}

func (h *Handler) createPost(w http.ResponseWriter, r *http.Request) {
	caller, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		notAuthenticated(w)
		return
	}
	var req createPostRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.ValidationFailed(w, err)
		return
	}
	post, err := h.service.CreatePost(r.Context(), caller, NewPost{
		Title:       req.Title,
		Summary:     req.Summary,
		Author:      req.Author,
		Category:    Category(req.Category),
		ImgURL:      req.ImgURL,
		MainContent: req.MainContent,
	})
	if err != nil {
		h.fail(w, "create post", err)
		return
	}
	httpx.Success(w, http.StatusCreated, "The blog post has been created successfully", post)
}

func (h *Handler) listUserPosts(w http.ResponseWriter, r *http.Request) {
	userID, err := httpx.ParseID(r, "id")
	if err != nil {
		httpx.BadID(w)
		return
	}
	page, err := h.service.ListPostsByUser(r.Context(), userID, shared.PageRequestFromQuery(r.URL.Query()))
	if err != nil {
		h.fail(w, "list user posts", err)
		return
	}
	httpx.Success(w, http.StatusOK, "The blog posts have been retrieved successfully", page)
}

func (h *Handler) updatePost(w http.ResponseWriter, r *http.Request) {
	caller, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		notAuthenticated(w)
		return
	}
	id, err := httpx.ParseID(r, "id")
	if err != nil {
		httpx.BadID(w)
		return
	}
	var req updatePostRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.ValidationFailed(w, err)
		return
	}
	post, err := h.service.UpdatePost(r.Context(), caller, id, req.changes())
	if err != nil {
		h.fail(w, "update post", err)
		return
	}
	httpx.Success(w, http.StatusOK, "The post data has been updated", post)
}

func (h *Handler) deletePost(w http.ResponseWriter, r *http.Request) {
	caller, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		notAuthenticated(w)
		return
	}
	id, err := httpx.ParseID(r, "id")
	if err != nil {
		httpx.BadID(w)
		return
	}
	if err := h.service.DeletePost(r.Context(), caller, id); err != nil {
		h.fail(w, "delete post", err)
		return
	}
	httpx.Success(w, http.StatusOK, "Post has been deactivated", nil)
}

func (h *Handler) createComment(w http.ResponseWriter, r *http.Request) {
	caller, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		notAuthenticated(w)
		return
	}
	var req createCommentRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.ValidationFailed(w, err)
		return
	}
	comment, err := h.service.CreateComment(r.Context(), caller, req.PostID, req.Comment)
	if err != nil {
		h.fail(w, "create comment", err)
		return
	}
	httpx.Success(w, http.StatusCreated, "The comment has been created", comment)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrPostNotFound):
		httpx.Fail(w, http.StatusNotFound, "post_not_found", "The post has not been found")
	case errors.Is(err, ErrUserNotFound):
		httpx.Fail(w, http.StatusNotFound, httpx.CodeNotFound, "User not found")
	case errors.Is(err, ErrUserInactive):
		httpx.Fail(w, http.StatusForbidden, "account_inactive", "The user account is inactive")
	case errors.Is(err, ErrForbidden):
		httpx.Fail(w, http.StatusForbidden, "forbidden", "You are not allowed to modify this post")
	case errors.Is(err, shared.ErrValidation):
		httpx.Fail(w, http.StatusUnprocessableEntity, httpx.CodeValidation, err.Error())
	default:
		h.logger.Error(op+" failed", slog.Any("error", err))
		httpx.Internal(w)
	}
}

func notAuthenticated(w http.ResponseWriter) {
	httpx.Fail(w, http.StatusUnauthorized, "not_authenticated", "Invalid or missing authorization header")
}
