package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/auth-service/internal/api/dto"
	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/service"
	apperrors "github.com/spec-kit/auth-service/pkg/util"
)

// AuthHandler exposes the account and token endpoints.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	_, pair, err := h.auth.Register(c.UserContext(), req.Email, req.Password, req.FullName)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(dto.NewTokenResponse(pair))
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}

	_, pair, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(dto.NewTokenResponse(pair))
}

// Refresh handles POST /auth/refresh.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req dto.RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	pair, err := h.auth.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(dto.NewTokenResponse(pair))
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	token, _ := auth.BearerTokenFromContext(c)

	user, err := h.auth.CurrentUser(c.UserContext(), token)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(dto.NewUserResponse(user))
}

// DeleteMe handles DELETE /auth/me.
func (h *AuthHandler) DeleteMe(c *fiber.Ctx) error {
	token, _ := auth.BearerTokenFromContext(c)

	if err := h.auth.DeleteAccount(c.UserContext(), token); err != nil {
		return mapServiceError(err)
	}
	return c.JSON(fiber.Map{"status": "deleted"})
}

func mapServiceError(err error) error {
	switch {
	case errors.Is(err, service.ErrValidation):
		return apperrors.NewValidationError(strings.TrimPrefix(err.Error(), service.ErrValidation.Error()+": "), nil)
	case errors.Is(err, service.ErrDuplicateEmail):
		return apperrors.NewDuplicateEmail()
	case errors.Is(err, service.ErrInvalidCredentials):
		return apperrors.NewInvalidCredentials()
	case errors.Is(err, service.ErrInvalidToken):
		return apperrors.NewInvalidToken("invalid refresh token")
	case errors.Is(err, service.ErrUnauthorized):
		return apperrors.NewUnauthorized(apperrors.MsgUnauthenticated)
	case errors.Is(err, service.ErrNotFound):
		return apperrors.NewNotFound("user", nil)
	default:
		return apperrors.NewInternalError(err)
	}
}
