package handlers

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/backend"
	"github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/dto"
	"github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/restaurant-portal/internal/sessionstore"
)

const (
	defaultLanding = "/dashboard"

	msgCredentialsRequired = "Email and password are required."
	msgInvalidCredentials  = "Invalid email or password."
	msgBackendUnavailable  = "Unable to reach the server. Please try again."
)

type LoginAPI interface {
	Login(ctx context.Context, req backend.LoginRequest) (*backend.LoginResponse, error)
}

type AuthHandler struct {
	api LoginAPI
}

func NewAuthHandler(api LoginAPI) *AuthHandler {
	return &AuthHandler{api: api}
}

type loginPage struct {
	Title      string
	Error      string
	Flash      string
	Redirect   string
	Email      string
	Password   string
	RememberMe bool
}

func (h *AuthHandler) LoginPage(c *fiber.Ctx) error {
	redirect := safeRedirect(c.Query("redirect"), "")
	errMsg := c.Query("error")
	if middleware.CurrentPrincipal(c) != nil && errMsg == "" {
		return c.Redirect(safeRedirect(redirect, defaultLanding), fiber.StatusFound)
	}

	ctx := c.UserContext()
	sess := middleware.CurrentSession(c)
	data := loginPage{Title: "Sign in", Error: errMsg, Redirect: redirect}

	flash, err := sess.TakeFlash(ctx)
	if err != nil {
		slog.Warn("failed to read flash", "session_id", sess.ID(), "error", err)
	}
	data.Flash = flash

	remember, err := sess.RememberMe(ctx)
	if err != nil {
		slog.Warn("failed to read remember-me flag", "session_id", sess.ID(), "error", err)
	}
	if remember {
		creds, err := sess.RememberedCredentials(ctx)
		if err != nil {
			slog.Warn("remembered credentials unreadable", "session_id", sess.ID(), "error", err)
		}
		if creds != nil {
			data.Email = creds.Email
			data.Password = creds.Password
			data.RememberMe = true
		}
	}

	return render(c, fiber.StatusOK, "login", data)
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var form dto.LoginForm
	if err := c.BodyParser(&form); err != nil {
		return h.loginFailed(c, fiber.StatusBadRequest, form, "Invalid request body")
	}
	form.Email = strings.TrimSpace(form.Email)
	if form.Email == "" || form.Password == "" {
		return h.loginFailed(c, fiber.StatusBadRequest, form, msgCredentialsRequired)
	}

	ctx := c.UserContext()
	sess := middleware.CurrentSession(c)

	resp, err := h.api.Login(ctx, backend.LoginRequest{Email: form.Email, Password: form.Password})
	if err != nil {
		if apiErr, ok := backend.AsAPIError(err); ok && apiErr.Status < 500 {
			msg := msgInvalidCredentials
			if apiErr.Status != fiber.StatusUnauthorized && apiErr.Message != "" {
				msg = apiErr.Message
			}
			slog.Info("login rejected", "session_id", sess.ID(), "status", apiErr.Status)
			return h.loginFailed(c, fiber.StatusUnauthorized, form, msg)
		}
		slog.Error("login failed", "session_id", sess.ID(), "action", "login", "error", err)
		return h.loginFailed(c, fiber.StatusBadGateway, form, msgBackendUnavailable)
	}

	isEmployee := resp.IsEmployee || resp.User.IsEmployee
	login := sessionstore.Login{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		User: sessionstore.User{
			ID:           string(resp.User.ID),
			Email:        resp.User.Email,
			Name:         resp.User.Name,
			RestaurantID: string(resp.User.RestaurantID),
		},
		IsEmployee: isEmployee,
		RememberMe: form.RememberMe,
	}
	if form.RememberMe {
		login.Credentials = &sessionstore.Credentials{Email: form.Email, Password: form.Password}
	}
	if err := sess.SaveLogin(ctx, login); err != nil {
		if errors.Is(err, sessionstore.ErrNoSealer) {
			slog.Warn("remember me unavailable", "session_id", sess.ID())
			login.RememberMe, login.Credentials = false, nil
			err = sess.SaveLogin(ctx, login)
		}
		if err != nil {
			slog.Error("failed to store login", "session_id", sess.ID(), "action", "login", "error", err)
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to store session")
		}
	}

	target := safeRedirect(form.Redirect, defaultLanding)
	slog.Info("login succeeded", "session_id", sess.ID(), "principal", string(resp.User.ID), "is_employee", isEmployee)

	if wantsJSON(c) {
		return c.JSON(dto.LoginResult{Redirect: target, IsEmployee: isEmployee})
	}
	return c.Redirect(target, fiber.StatusSeeOther)
}

func (h *AuthHandler) loginFailed(c *fiber.Ctx, status int, form dto.LoginForm, message string) error {
	if wantsJSON(c) {
		return c.Status(status).JSON(dto.ErrorResponse{Error: true, Message: message})
	}
	return render(c, status, "login", loginPage{
		Title:      "Sign in",
		Error:      message,
		Redirect:   safeRedirect(form.Redirect, ""),
		Email:      form.Email,
		RememberMe: form.RememberMe,
	})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	sess := middleware.CurrentSession(c)
	if err := sess.Logout(c.UserContext()); err != nil {
		slog.Error("logout failed", "session_id", sess.ID(), "action", "logout", "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to logout")
	}

	if wantsJSON(c) {
		return c.JSON(dto.MessageResponse{Message: "Logged out successfully"})
	}
	return c.Redirect("/login", fiber.StatusSeeOther)
}
