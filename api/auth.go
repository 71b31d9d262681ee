package api

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/garnizeh/devcompanion/internal/apperr"
	"github.com/garnizeh/devcompanion/pkg/models"
)

// AdminUsername is the only account that can obtain a token.
const AdminUsername = "admin"

type AuthHandler struct {
	passwordHash  string
	jwtSecret     string
	tokenDuration time.Duration
}

// NewAuthHandler creates an AuthHandler checking logins against a bcrypt hash.
// An empty hash disables login.
func NewAuthHandler(passwordHash, jwtSecret string, tokenDuration time.Duration) *AuthHandler {
	return &AuthHandler{passwordHash: passwordHash, jwtSecret: jwtSecret, tokenDuration: tokenDuration}
}

type authResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

// Token exchanges the admin credentials for a signed JWT.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := bind(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	if h.passwordHash == "" {
		writeError(w, apperr.Unauthorized("Admin login is disabled"))
		return
	}
	if req.Username != AdminUsername ||
		bcrypt.CompareHashAndPassword([]byte(h.passwordHash), []byte(req.Password)) != nil {
		writeError(w, apperr.Unauthorized("Credentials not found"))
		return
	}

	exp := time.Now().Add(h.tokenDuration)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  req.Username,
		"role": RoleAdmin,
		"exp":  exp.Unix(),
	})
	tokenStr, err := token.SignedString([]byte(h.jwtSecret))
	if err != nil {
		writeError(w, apperr.Internal(err))
		return
	}

	writeJSON(w, authResponse{Token: tokenStr, ExpiresAt: exp.Unix()}, http.StatusOK)
}
