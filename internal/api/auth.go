package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"hubitatbridge/internal/auth"
)

// rememberDuration is the token lifetime when "remember me" is set
const rememberDuration = 30 * 24 * time.Hour

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authenticator *auth.Authenticator
	jwtManager    *auth.JWTManager
	wsTokenStore  *auth.WSTokenStore
	rateLimiter   *auth.LoginRateLimiter
	logger        zerolog.Logger
}

// NewAuthHandler creates new auth handler
func NewAuthHandler(authenticator *auth.Authenticator, jwtManager *auth.JWTManager, wsTokenStore *auth.WSTokenStore, rateLimiter *auth.LoginRateLimiter, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		authenticator: authenticator,
		jwtManager:    jwtManager,
		wsTokenStore:  wsTokenStore,
		rateLimiter:   rateLimiter,
		logger:        logger,
	}
}

// LoginRequest represents login request body
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Remember bool   `json:"remember"`
}

// LoginResponse represents login response
type LoginResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message,omitempty"`
	Token   string     `json:"token,omitempty"`
	User    *auth.User `json:"user,omitempty"`
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	clientIP := getClientIP(r)

	if h.authenticator == nil || !h.authenticator.Enabled() {
		writeJSON(w, http.StatusNotFound, LoginResponse{Message: "Authentication is disabled"})
		return
	}

	// Check rate limit first - reject immediately without wasting resources
	if allowed, wait := h.rateLimiter.Allow(clientIP); !allowed {
		w.Header().Set("Retry-After", strconv.Itoa(wait))
		writeJSON(w, http.StatusTooManyRequests, LoginResponse{Message: "Too many login attempts"})
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, LoginResponse{Message: "Invalid request body"})
		return
	}

	if req.Username == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, LoginResponse{Message: "Username and password are required"})
		return
	}

	user, err := h.authenticator.Authenticate(req.Username, req.Password)
	if err != nil {
		h.logger.Warn().Str("username", req.Username).Str("client_ip", clientIP).Msg("login failed")
		writeJSON(w, http.StatusUnauthorized, LoginResponse{Message: "Invalid username or password"})
		return
	}

	h.rateLimiter.Reset(clientIP)

	tokenDuration := h.jwtManager.TokenDuration()
	if req.Remember {
		tokenDuration = rememberDuration
	}

	token, err := h.jwtManager.GenerateTokenWithDuration(user, tokenDuration)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, LoginResponse{Message: "Failed to generate token"})
		return
	}

	// Cookie for browsers, token in the body for API clients
	auth.SetAuthCookie(w, r, token, int(tokenDuration.Seconds()))

	h.logger.Info().Str("username", user.Username).Str("client_ip", clientIP).Msg("login")

	writeJSON(w, http.StatusOK, LoginResponse{
		Success: true,
		Token:   token,
		User:    user,
	})
}

// Logout handles POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearAuthCookie(w)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Refresh handles POST /api/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	token, err := h.jwtManager.GenerateToken(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	auth.SetAuthCookie(w, r, token, int(h.jwtManager.TokenDuration().Seconds()))
	writeJSON(w, http.StatusOK, LoginResponse{Success: true, Token: token, User: user})
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user": user,
	})
}

// WSToken handles GET /api/auth/ws-token
// Returns a one-time token for the event stream
func (h *AuthHandler) WSToken(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	token, err := h.wsTokenStore.Generate(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}
