package users

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/inkpress/inkpress/internal/auth"
	"github.com/inkpress/inkpress/internal/platform/httpx"
	"github.com/inkpress/inkpress/internal/shared"
)

// Handler manages user management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: httpx.NewValidator()}
}

// MountRoutes registers user routes. The caller is expected to mount them
// behind the auth gate.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/users", h.listUsers)
	r.Get("/{id}", h.getUser)
	r.Patch("/update/{id}", h.updateUser)
	r.Patch("/delete/{id}", h.deleteUser)
	r.Patch("/unlock/{id}", h.unlockUser)
}

type updateRequest struct {
	Name                 *string `json:"name" validate:"omitempty,min=3,max=60"`
	Lastname             *string `json:"lastname" validate:"omitempty,min=3,max=60"`
	Email                *string `json:"email" validate:"omitempty,email,max=100"`
	Password             string  `json:"password" validate:"omitempty,min=8"`
	PasswordConfirmation string  `json:"password_confirmation" validate:"required_with=Password,eqfield=Password"`
	IsActive             *bool   `json:"is_active"`
	Role                 *string `json:"role" validate:"omitempty,oneof=manager registered_user"`
}

func (req updateRequest) input() UpdateInput {
	in := UpdateInput{
		Name:     req.Name,
		Lastname: req.Lastname,
		Email:    req.Email,
		IsActive: req.IsActive,
	}
	if req.Password != "" {
		password := req.Password
		in.Password = &password
	}
	if req.Role != nil {
		role := auth.Role(*req.Role)
		in.Role = &role
	}
	return in
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.service.ListUsers(r.Context(), ListFilter{
		Search:      q.Get("search"),
		PageRequest: shared.PageRequestFromQuery(q),
	})
	if err != nil {
		h.logger.Error("list users failed", slog.Any("error", err))
		httpx.Internal(w)
		return
	}
	httpx.Success(w, http.StatusOK, "Users retrieved successfully", page)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParseID(r, "id")
	if err != nil {
		httpx.BadID(w)
		return
	}
	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		h.fail(w, "get user", err)
		return
	}
	httpx.Success(w, http.StatusOK, "User has been found", user)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParseID(r, "id")
	if err != nil {
		httpx.BadID(w)
		return
	}
	var req updateRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.ValidationFailed(w, err)
		return
	}
	user, err := h.service.UpdateUser(r.Context(), id, req.input())
	if err != nil {
		h.fail(w, "update user", err)
		return
	}
	httpx.Success(w, http.StatusOK, "The user data has been updated", user)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParseID(r, "id")
	if err != nil {
		httpx.BadID(w)
		return
	}
	if err := h.service.DeactivateUser(r.Context(), id); err != nil {
		h.fail(w, "deactivate user", err)
		return
	}
	httpx.Success(w, http.StatusOK, "User has been deactivated", nil)
}

func (h *Handler) unlockUser(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParseID(r, "id")
	if err != nil {
		httpx.BadID(w)
		return
	}
	if err := h.service.UnlockUser(r.Context(), id); err != nil {
		h.fail(w, "unlock user", err)
		return
	}
	httpx.Success(w, http.StatusOK, "User has been unlocked", nil)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.Fail(w, http.StatusNotFound, httpx.CodeNotFound, "User not found")
	case errors.Is(err, shared.ErrForbidden):
		httpx.Fail(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, ErrEmailTaken):
		httpx.Fail(w, http.StatusConflict, "email_taken", "The email has already been taken")
	case errors.Is(err, shared.ErrValidation):
		httpx.Fail(w, http.StatusUnprocessableEntity, httpx.CodeValidation, err.Error())
	default:
		h.logger.Error(op+" failed", slog.Any("error", err))
		httpx.Internal(w)
	}
}
