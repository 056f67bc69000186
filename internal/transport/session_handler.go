package transport

import (
	"net/http"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// LoginRequest asserts the identity of the signed-in user. Credentials are
// checked upstream of this service.
type LoginRequest struct {
	UserID string `json:"user_id" validate:"required,max=100"`
}

// SessionResponse is returned whenever a token is issued
type SessionResponse struct {
	Token     string          `json:"token"`
	SessionID string          `json:"session_id"`
	Identity  domain.Identity `json:"identity"`
	Role      string          `json:"role"`
	Cart      *domain.Cart    `json:"cart,omitempty"`
}

// SessionHandler handles the session lifecycle: start, sign-in, sign-out
type SessionHandler struct {
	sessionResolver
	sessions *service.SessionManager
	logger   *zap.Logger
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(sessions *service.SessionManager, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		sessionResolver: sessionResolver{sessions: sessions, logger: logger},
		sessions:        sessions,
		logger:          logger,
	}
}

// RegisterRoutes registers all session routes
func (h *SessionHandler) RegisterRoutes(r chi.Router, sessionMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/session", func(r chi.Router) {
		r.Post("/", h.Start)

		r.Group(func(r chi.Router) {
			r.Use(sessionMiddleware)
			r.Get("/", h.Get)
			r.Post("/login", h.Login)
			r.Post("/logout", h.Logout)
		})
	})
}

// Start opens a new guest session
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	sess, token, err := h.sessions.Start(r.Context())
	if err != nil {
		h.logger.Error("Failed to start session", zap.Error(err))
		middleware.RespondWithError(w, http.StatusServiceUnavailable, "session store unavailable")
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, SessionResponse{
		Token:     token,
		SessionID: sess.ID,
		Identity:  sess.Store.Identity(),
		Role:      service.RoleGuest,
	})
}

// Get returns the session's identity, slice status and pending notifications
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.resolve(w, r)
	if !ok {
		return
	}
	respondWithSession(w, http.StatusOK, sess, sess.Store.Identity())
}

// Login signs the session in and merges the guest cart into the user's cart
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.resolve(w, r)
	if !ok {
		return
	}

	var req LoginRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Login validation failed", zap.Error(err))
		respondWithDecodeError(w, err)
		return
	}

	token, cart, err := h.sessions.SignIn(r.Context(), sess, req.UserID)
	if err != nil {
		h.logger.Warn("Sign-in failed",
			zap.String("session_id", sess.ID),
			zap.String("user_id", req.UserID),
			zap.Error(err),
		)
		respondWithServiceError(w, sess, err)
		return
	}

	respondWithSession(w, http.StatusOK, sess, SessionResponse{
		Token:     token,
		SessionID: sess.ID,
		Identity:  sess.Store.Identity(),
		Role:      h.sessions.RoleFor(req.UserID),
		Cart:      &cart,
	})
}

// Logout ends the session. The client starts a fresh guest session after.
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sessionID, _ := middleware.GetSessionID(r.Context())

	if err := h.sessions.SignOut(r.Context(), sessionID); err != nil {
		h.logger.Error("Logout failed", zap.String("session_id", sessionID), zap.Error(err))
		middleware.RespondWithError(w, http.StatusServiceUnavailable, "failed to end session")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "signed out"})
}
