package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/gatekeeper/internal/platform/httpx"
	"github.com/odyssey-erp/gatekeeper/internal/rbac"
	"github.com/odyssey-erp/gatekeeper/internal/shared"
	"github.com/odyssey-erp/gatekeeper/internal/users"
)

// HandlerConfig tunes the auth endpoints.
type HandlerConfig struct {
	// VerifyRateLimit caps 2FA verification attempts per IP per minute.
	VerifyRateLimit int
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger        *slog.Logger
	service       *Service
	authenticator *rbac.Authenticator
	validator     *validator.Validate
	config        HandlerConfig
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, authenticator *rbac.Authenticator, cfg HandlerConfig) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.VerifyRateLimit <= 0 {
		cfg.VerifyRateLimit = 10
	}
	return &Handler{
		logger:        logger,
		service:       service,
		authenticator: authenticator,
		validator:     validator.New(),
		config:        cfg,
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/identify", h.handleIdentify)
	r.With(httprate.LimitByIP(h.config.VerifyRateLimit, time.Minute)).Post("/verify-2fa", h.handleVerify)
	r.Post("/permissions/check", h.handleCheckPermission)
}

type identifyRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type verifyRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Code   string `json:"code" validate:"required,numeric"`
}

type checkPermissionRequest struct {
	Token  string `json:"token" validate:"required"`
	MenuID string `json:"menu_id" validate:"required"`
	Action string `json:"action" validate:"required"`
}

type identifyResponse struct {
	User users.User `json:"user"`
}

type verifyResponse struct {
	User  users.User `json:"user"`
	Token string     `json:"token"`
}

type principalResponse struct {
	RoleID string `json:"role_id"`
	UserID string `json:"user_id,omitempty"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
}

func (h *Handler) handleIdentify(w http.ResponseWriter, r *http.Request) {
	var req identifyRequest
	if !h.decode(w, r, &req) {
		return
	}
	user, err := h.service.Identify(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, "identify", err)
		return
	}
	httpx.JSON(w, http.StatusOK, identifyResponse{User: user})
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !h.decode(w, r, &req) {
		return
	}
	redemption, err := h.service.VerifyCode(r.Context(), req.UserID, req.Code)
	if err != nil {
		h.fail(w, "verify 2fa", err)
		return
	}
	httpx.JSON(w, http.StatusOK, verifyResponse{User: redemption.User, Token: redemption.Token})
}

func (h *Handler) handleCheckPermission(w http.ResponseWriter, r *http.Request) {
	var req checkPermissionRequest
	if !h.decode(w, r, &req) {
		return
	}
	action, err := rbac.ParseAction(req.Action)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: action must be one of list, create, edit, delete, download", httpx.ErrValidation))
		return
	}
	principal, err := h.authenticator.Authenticate(r.Context(), req.Token, req.MenuID, action)
	if err != nil {
		h.fail(w, "check permission", err)
		return
	}
	httpx.JSON(w, http.StatusOK, principalResponse{
		RoleID: principal.RoleID,
		UserID: principal.UserID,
		Name:   principal.Name,
		Email:  principal.Email,
	})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: malformed body", httpx.ErrValidation))
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			httpx.RespondError(w, fmt.Errorf("%w: %s is %s", httpx.ErrValidation, fieldErrs[0].Field(), fieldErrs[0].Tag()))
			return false
		}
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, shared.ErrInvalidCredentials),
		errors.Is(err, shared.ErrInvalidOrExpiredCode),
		errors.Is(err, shared.ErrUnauthenticated),
		errors.Is(err, shared.ErrForbidden):
		h.logger.Info(op+" rejected", slog.String("result", err.Error()))
	default:
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
