package auth

import (
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/inkpress/inkpress/internal/platform/httpx"
	"github.com/inkpress/inkpress/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		validator: httpx.NewValidator(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/signup", h.handleSignup)
	r.Post("/signin", h.handleSignin)
	r.Post("/refresh", h.handleRefresh)
	r.Post("/validate", h.handleValidate)
}

type signupRequest struct {
	Name                 string `json:"name" validate:"required,min=3,max=60"`
	Lastname             string `json:"lastname" validate:"required,min=3,max=60"`
	Email                string `json:"email" validate:"required,email,max=100"`
	Password             string `json:"password" validate:"required,min=8"`
	PasswordConfirmation string `json:"password_confirmation" validate:"required,eqfield=Password"`
	Role                 string `json:"role" validate:"omitempty,oneof=manager registered_user"`
}

type signinRequest struct {
	Email    string `json:"email" validate:"required,email,max=100"`
	Password string `json:"password" validate:"required,min=8"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type validateRequest struct {
	AccessToken string `json:"access_token" validate:"required"`
}

type wrongCredentialsResponse struct {
	Status            string `json:"status"`
	Message           string `json:"message"`
	LoginAttemptsLeft int    `json:"login_attempts_left"`
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.Bind(r, h.validator, target); err != nil {
		httpx.ValidationFailed(w, err)
		return false
	}
	return true
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !h.decode(w, r, &req) {
		return
	}
	_, err := h.service.Register(r.Context(), RegisterInput{
		Name:     req.Name,
		Lastname: req.Lastname,
		Email:    req.Email,
		Password: req.Password,
		Role:     Role(req.Role),
	})
	switch {
	case err == nil:
		httpx.Success(w, http.StatusCreated, "The user has been created successfully", nil)
	case errors.Is(err, ErrEmailTaken):
		httpx.Fail(w, http.StatusConflict, "email_taken", "The email has already been taken")
	case errors.Is(err, shared.ErrValidation):
		httpx.Fail(w, http.StatusUnprocessableEntity, httpx.CodeValidation, err.Error())
	default:
		h.logger.Error("register user", slog.Any("error", err))
		httpx.Internal(w)
	}
}

func (h *Handler) handleSignin(w http.ResponseWriter, r *http.Request) {
	var req signinRequest
	if !h.decode(w, r, &req) {
		return
	}
	pair, err := h.service.Login(r.Context(), req.Email, req.Password, clientInfo(r))
	if err == nil {
		httpx.Success(w, http.StatusOK, "Login successful", pair)
		return
	}

	var wrong *WrongCredentialsError
	switch {
	case errors.As(err, &wrong):
		httpx.JSON(w, http.StatusUnauthorized, wrongCredentialsResponse{
			Status:            "wrong_credentials",
			Message:           "Invalid credentials",
			LoginAttemptsLeft: wrong.AttemptsLeft,
		})
	case errors.Is(err, ErrUserNotFound):
		httpx.Fail(w, http.StatusUnauthorized, "user_not_found", "Invalid credentials")
	case errors.Is(err, ErrAccountInactive):
		httpx.Fail(w, http.StatusUnauthorized, "account_inactive", "The account is inactive, please contact support")
	case errors.Is(err, ErrAccountLocked):
		httpx.Fail(w, http.StatusUnauthorized, "account_locked", "Account is locked due to too many login attempts, please contact support")
	default:
		httpx.Internal(w)
	}
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !h.decode(w, r, &req) {
		return
	}
	access, err := h.service.Refresh(r.Context(), req.RefreshToken)
	switch {
	case err == nil:
		httpx.Success(w, http.StatusOK, "Token refreshed successfully", map[string]string{"access_token": access})
	case errors.Is(err, ErrWrongTokenType):
		httpx.Fail(w, http.StatusUnauthorized, "invalid_type", "Invalid refresh token type")
	case errors.Is(err, ErrInvalidRefreshToken):
		httpx.Fail(w, http.StatusUnauthorized, "invalid_refresh_token", err.Error())
	case errors.Is(err, ErrUserNotFound):
		httpx.Fail(w, http.StatusNotFound, httpx.CodeNotFound, "User not found")
	case errors.Is(err, ErrAccountInactive):
		httpx.Fail(w, http.StatusUnauthorized, "account_inactive", "The account is inactive, please contact support")
	default:
		h.logger.Error("refresh token", slog.Any("error", err))
		httpx.Internal(w)
	}
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if !h.decode(w, r, &req) {
		return
	}
	claims, err := h.service.ValidateAccessToken(req.AccessToken)
	switch {
	case err == nil:
		httpx.Success(w, http.StatusOK, "Token is valid", shared.Principal{
			UserID: claims.UserID,
			Role:   claims.Role,
			Email:  claims.Email,
		})
	case errors.Is(err, ErrWrongTokenType):
		httpx.Fail(w, http.StatusUnauthorized, "invalid_type", "Invalid access token type")
	default:
		httpx.Fail(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token: "+unauthorizedCause(err))
	}
}

func clientInfo(r *http.Request) ClientInfo {
	var info ClientInfo
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	if ip != "" {
		info.IPAddress = &ip
	}
	if ua := r.UserAgent(); ua != "" {
		info.UserAgent = &ua
	}
	return info
}
