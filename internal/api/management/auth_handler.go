package management

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/CaioWing/Arcade/internal/api/middleware"
	"github.com/CaioWing/Arcade/internal/api/request"
	"github.com/CaioWing/Arcade/internal/api/response"
	"github.com/CaioWing/Arcade/internal/auth"
)

type AuthHandler struct {
	jwtMgr        *auth.JWTManager
	adminEmail    string
	adminPassHash []byte
	log           *zap.Logger
}

// NewAuthHandler creates an auth handler backed by a single configured
// operator account.
func NewAuthHandler(jwtMgr *auth.JWTManager, adminEmail, adminPassword string, log *zap.Logger) (*AuthHandler, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return &AuthHandler{
		jwtMgr:        jwtMgr,
		adminEmail:    strings.ToLower(adminEmail),
		adminPassHash: hash,
		log:           log,
	}, nil
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := request.Decode(w, r, &req); err != nil {
		response.FromError(w, err, "invalid request body")
		return
	}

	if strings.ToLower(req.Email) != h.adminEmail {
		response.Error(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err := bcrypt.CompareHashAndPassword(h.adminPassHash, []byte(req.Password)); err != nil {
		h.log.Warn("failed login", zap.String("email", req.Email), zap.String("ip", r.RemoteAddr))
		response.Error(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	h.issue(w, h.adminEmail)
}

// Refresh generates a new JWT token for an already authenticated user.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	if userID == "" {
		response.Error(w, http.StatusUnauthorized, "invalid token")
		return
	}
	h.issue(w, userID)
}

func (h *AuthHandler) issue(w http.ResponseWriter, userID string) {
	token, expiresAt, err := h.jwtMgr.Generate(userID)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "failed to generate token")
		return
	}
	response.JSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
	})
}
