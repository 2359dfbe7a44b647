package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/rjmacleod/sentinel/internal/services"
	pkghttp "github.com/rjmacleod/sentinel/pkg/http"
)

// LoginServiceInterface defines the interface for login evaluation
type LoginServiceInterface interface {
	Login(ctx context.Context, username, password, ipAddress, userAgent string) (*services.LoginResult, error)
}

// AuthHandler handles the login form submission
type AuthHandler struct {
	service  LoginServiceInterface
	ipConfig *pkghttp.IPConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service LoginServiceInterface, ipConfig *pkghttp.IPConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		ipConfig: ipConfig,
	}
}

// LoginRequest represents the login form fields
type LoginRequest struct {
	Username string `validate:"required,max=64"`
	Password string `validate:"required,max=256"`
}

// Login handles the login form POST. Every submission is evaluated and
// answered with a small HTML page; the status code carries the outcome.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeMessagePage(w, http.StatusBadRequest, "Invalid request", "The form submission could not be read.")
		return
	}

	req := LoginRequest{
		Username: strings.TrimSpace(r.PostFormValue("username")),
		Password: r.PostFormValue("password"),
	}

	if err := ValidateRequest(req); err != nil {
		writeMessagePage(w, http.StatusBadRequest, "Invalid request", "Username and password are required.")
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)
	userAgent := r.UserAgent()

	result, err := h.service.Login(r.Context(), req.Username, req.Password, ipAddress, userAgent)
	if err != nil {
		writeMessagePage(w, http.StatusInternalServerError, "Something went wrong", "Please try again later.")
		return
	}

	switch result.Outcome {
	case services.OutcomeSuccess:
		writeMessagePage(w, http.StatusOK, "Login successful", "Welcome back, "+result.Username+".")
	case services.OutcomeInvalidCredentials:
		writeMessagePage(w, http.StatusUnauthorized, "Invalid credentials", "The username or password is incorrect.")
	case services.OutcomeBlocked, services.OutcomeBlockedNow:
		writeMessagePage(w, http.StatusTooManyRequests, "Temporarily blocked", "This address is temporarily blocked due to suspicious activity. Try again later.")
	default:
		writeMessagePage(w, http.StatusInternalServerError, "Something went wrong", "Please try again later.")
	}
}
